package main

import (
	"context"
	"flag"
	"fmt"
	"os"

	"github.com/casecompass/case-compass/internal/config"
	"github.com/casecompass/case-compass/internal/database"
	"github.com/casecompass/case-compass/internal/server"
	"github.com/casecompass/case-compass/pkg/logger"
)

func main() {
	var migrate bool
	flag.BoolVar(&migrate, "migrate", false, "Run database migrations and exit")
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		fmt.Printf("Failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	log, err := logger.NewLogger(cfg.LogLevel, cfg.LogFormat)
	if err != nil {
		fmt.Printf("Failed to initialize logger: %v\n", err)
		os.Exit(1)
	}
	defer log.Sync()

	ctx := context.Background()

	db, err := database.Connect(ctx, cfg, log)
	if err != nil {
		log.Fatal("Failed to initialize database", "error", err)
	}

	if migrate {
		if err := db.Migrate(ctx); err != nil {
			log.Fatal("Failed to run migrations", "error", err)
		}
		log.Info("Database migrations completed successfully")
		return
	}

	if db.Pooled() {
		if err := db.Migrate(ctx); err != nil {
			log.Warn("Could not apply migrations at startup", "error", err)
		}
	}

	if cfg.FrontendEnvFile != "" {
		if err := config.WriteFrontendEnv(cfg.FrontendEnvFile, cfg.APIBaseURL); err != nil {
			log.Warn("Could not update frontend env file", "file", cfg.FrontendEnvFile, "error", err)
		} else {
			log.Info("Frontend env file updated", "file", cfg.FrontendEnvFile, "api", cfg.APIBaseURL)
		}
	}

	srv := server.New(cfg, db, log)

	log.Info("Starting Case Compass",
		"host", cfg.Host,
		"port", cfg.Port,
		"driver", cfg.DBDriver,
		"pooled", db.Pooled(),
	)

	if err := srv.Run(); err != nil {
		log.Fatal("Server failed", "error", err)
	}
}
