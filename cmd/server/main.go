package main

import (
	"database/sql"
	"log"
	"os"
	"time"

	"github.com/joho/godotenv"
	_ "github.com/lib/pq"

	"github.com/todmy/doc-checker/internal/api"
	"github.com/todmy/doc-checker/internal/auth"
	"github.com/todmy/doc-checker/internal/config"
	"github.com/todmy/doc-checker/internal/embeddings"
	"github.com/todmy/doc-checker/internal/nli"
	"github.com/todmy/doc-checker/internal/storage"
)

func main() {
	// Missing .env is fine; real deployments set the environment directly.
	_ = godotenv.Load()

	configPath := os.Getenv("CONFIG_PATH")
	if configPath == "" {
		configPath = "config.yaml"
	}
	cfg, err := config.Load(configPath)
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	dbURL := cfg.Database.URL
	if url := os.Getenv("DATABASE_URL"); url != "" {
		dbURL = url
	}
	db, err := sql.Open("postgres", dbURL)
	if err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}
	defer db.Close()

	if err := db.Ping(); err != nil {
		log.Fatalf("Failed to ping database: %v", err)
	}

	jwtSecret := os.Getenv(cfg.Auth.SecretEnv)
	if jwtSecret == "" {
		log.Fatalf("%s is not set", cfg.Auth.SecretEnv)
	}

	classifier := nli.NewClient(cfg.NLI.BaseURL,
		nli.WithModel(cfg.NLI.Model),
		nli.WithAPIKey(os.Getenv(cfg.NLI.APIKeyEnv)),
		nli.WithBatchSize(cfg.NLI.BatchSize),
		nli.WithMaxConcurrent(cfg.NLI.MaxConcurrent),
		nli.WithTimeout(time.Duration(cfg.NLI.TimeoutSecs)*time.Second),
	)

	// The embedder is optional; without it uploads store no embeddings
	// and the similarity prefilter has nothing to skip on.
	var embedder api.Embedder
	if key := os.Getenv("OPENROUTER_API_KEY"); key != "" {
		embedder = embeddings.NewClient(key)
	}

	authService := auth.NewService(auth.Config{
		SecretKey:     jwtSecret,
		TokenDuration: time.Duration(cfg.Auth.TokenHours) * time.Hour,
	}, auth.NewPostgresRepository(db))

	server := api.NewServer(api.Deps{
		AuthService:  authService,
		Classifier:   classifier,
		Embedder:     embedder,
		BaseConfig:   cfg.EngineConfig(),
		ProjectRepo:  storage.NewPostgresProjectRepository(db),
		DocumentRepo: storage.NewPostgresDocumentRepository(db),
		RunRepo:      storage.NewPostgresRunRepository(db),
	})

	log.Printf("Starting doc-checker server on port %s", cfg.Server.Port)
	if err := server.Run(":" + cfg.Server.Port); err != nil {
		log.Fatalf("Failed to start server: %v", err)
	}
}
