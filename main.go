package main

import (
	"context"
	"embed"
	"io/fs"
	"log"
	"time"

	"datalens/adapters/llm"
	"datalens/adapters/postgres"
	"datalens/internal"
	"datalens/internal/config"
	"datalens/internal/insight"
	"datalens/internal/usage"
	"datalens/ports"
	"datalens/ui"

	"github.com/jmoiron/sqlx"
	"github.com/joho/godotenv"
	_ "github.com/lib/pq"
)

//go:embed ui/templates/* ui/static/*
var embeddedFiles embed.FS

// initUsageRepository connects the optional usage ledger database. The
// application runs fine without one.
func initUsageRepository(cfg *config.Config, logger *internal.Logger) ports.UsageRepository {
	if cfg.Database.URL == "" {
		logger.Info("DATABASE_URL not set, usage ledger disabled")
		return nil
	}

	db, err := sqlx.Connect("postgres", cfg.Database.URL)
	if err != nil {
		logger.Warn("usage ledger database unavailable, continuing without it: %v", err)
		return nil
	}

	repo := postgres.NewUsageRepository(db)
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := repo.EnsureSchema(ctx); err != nil {
		logger.Warn("failed to prepare usage schema, ledger disabled: %v", err)
		return nil
	}
	logger.Info("usage ledger enabled")
	return repo
}

func main() {
	if err := godotenv.Load(); err != nil {
		log.Println("no .env file found, using environment variables")
	}

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("configuration error: %v", err)
	}

	logger := internal.DefaultLogger

	client, err := llm.NewOpenRouterClient(cfg.AI)
	if err != nil {
		log.Fatalf("llm client error: %v", err)
	}

	ledger := usage.NewLedger(initUsageRepository(cfg, logger))
	insightSvc := insight.NewService(client, ledger, cfg.AI)

	assets, err := fs.Sub(embeddedFiles, "ui")
	if err != nil {
		log.Fatalf("embedded assets error: %v", err)
	}
	server, err := ui.NewServer(cfg, insightSvc, ledger, assets)
	if err != nil {
		log.Fatalf("server setup error: %v", err)
	}

	addr := ":" + cfg.Server.Port
	logger.Info("starting server on %s", addr)
	if err := server.Start(addr); err != nil {
		log.Fatalf("server error: %v", err)
	}
}
