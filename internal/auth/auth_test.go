package auth

import (
	"context"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
)

// memRepo is an in-memory UserRepository for service tests.
type memRepo struct {
	users map[string]*User
}

func newMemRepo() *memRepo { return &memRepo{users: make(map[string]*User)} }

func (m *memRepo) Create(_ context.Context, user *User) error {
	m.users[user.Email] = user
	return nil
}

func (m *memRepo) GetByEmail(_ context.Context, email string) (*User, error) {
	return m.users[email], nil
}

func TestService_RegisterAndLogin(t *testing.T) {
	svc := NewService(Config{SecretKey: "test-secret"}, newMemRepo())

	user, err := svc.Register(context.Background(), "analyst@example.com", "hunter22")
	if err != nil {
		t.Fatalf("register: %v", err)
	}
	if user.PasswordHash == "hunter22" {
		t.Error("password stored unhashed")
	}

	token, err := svc.Login(context.Background(), "analyst@example.com", "hunter22")
	if err != nil {
		t.Fatalf("login: %v", err)
	}

	claims, err := svc.ValidateToken(token)
	if err != nil {
		t.Fatalf("validate: %v", err)
	}
	if claims.Email != "analyst@example.com" {
		t.Errorf("unexpected claims email %q", claims.Email)
	}
}

func TestService_RegisterDuplicate(t *testing.T) {
	svc := NewService(Config{SecretKey: "test-secret"}, newMemRepo())

	if _, err := svc.Register(context.Background(), "a@example.com", "password1"); err != nil {
		t.Fatalf("register: %v", err)
	}
	if _, err := svc.Register(context.Background(), "a@example.com", "password2"); err != ErrUserExists {
		t.Errorf("expected ErrUserExists, got %v", err)
	}
}

func TestService_LoginWrongPassword(t *testing.T) {
	svc := NewService(Config{SecretKey: "test-secret"}, newMemRepo())
	if _, err := svc.Register(context.Background(), "a@example.com", "password1"); err != nil {
		t.Fatalf("register: %v", err)
	}
	if _, err := svc.Login(context.Background(), "a@example.com", "wrong"); err != ErrInvalidCredentials {
		t.Errorf("expected ErrInvalidCredentials, got %v", err)
	}
}

func TestService_ValidateTokenWrongSecret(t *testing.T) {
	repo := newMemRepo()
	issuer := NewService(Config{SecretKey: "secret-a"}, repo)
	verifier := NewService(Config{SecretKey: "secret-b"}, repo)

	if _, err := issuer.Register(context.Background(), "a@example.com", "password1"); err != nil {
		t.Fatalf("register: %v", err)
	}
	token, err := issuer.Login(context.Background(), "a@example.com", "password1")
	if err != nil {
		t.Fatalf("login: %v", err)
	}
	if _, err := verifier.ValidateToken(token); err != ErrInvalidToken {
		t.Errorf("expected ErrInvalidToken, got %v", err)
	}
}

func TestPostgresRepository_Create(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("failed to create mock db: %v", err)
	}
	defer db.Close()

	repo := NewPostgresRepository(db)
	user := &User{
		Email:        "test@example.com",
		PasswordHash: "hashed_password",
		CreatedAt:    time.Now(),
	}

	mock.ExpectExec("INSERT INTO users").
		WithArgs(sqlmock.AnyArg(), user.Email, user.PasswordHash, user.CreatedAt).
		WillReturnResult(sqlmock.NewResult(1, 1))

	if err := repo.Create(context.Background(), user); err != nil {
		t.Errorf("expected no error, got %v", err)
	}
	if user.ID == "" {
		t.Error("expected user ID to be generated")
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("unfulfilled expectations: %v", err)
	}
}

func TestPostgresRepository_GetByEmail_NotFound(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("failed to create mock db: %v", err)
	}
	defer db.Close()

	repo := NewPostgresRepository(db)

	mock.ExpectQuery("SELECT (.+) FROM users").
		WithArgs("missing@example.com").
		WillReturnRows(sqlmock.NewRows([]string{"id"}))

	user, err := repo.GetByEmail(context.Background(), "missing@example.com")
	if err != nil {
		t.Errorf("expected no error, got %v", err)
	}
	if user != nil {
		t.Error("expected nil user")
	}
}
