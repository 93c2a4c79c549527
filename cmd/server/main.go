// Package main is the entry point for the SecureLearn dashboard server.
//
// The main package stays minimal — its job is to:
//  1. Load configuration (a .env file if present, then env vars)
//  2. Create the logger
//  3. Hand both to the server package and start it
//
// All actual logic lives in imported packages (internal/server,
// internal/service, internal/session, ...), which keeps the app
// testable and main boring.
package main

import (
	"log/slog"
	"os"
	"path/filepath"

	"github.com/joho/godotenv"

	"github.com/securelearn/dashboard/internal/config"
	"github.com/securelearn/dashboard/internal/server"
)

func main() {
	// A .env file is a development convenience; absence is not an error.
	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		slog.Error("invalid configuration", slog.String("error", err.Error()))
		os.Exit(1)
	}

	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{
		Level: cfg.LogLevel,
	}))

	// Ensure the database directory exists before SQLite tries to create
	// the file inside it.
	if dir := filepath.Dir(cfg.DBPath); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			logger.Error("failed to create database directory",
				slog.String("dir", dir),
				slog.String("error", err.Error()),
			)
			os.Exit(1)
		}
	}

	srv, err := server.New(cfg, logger)
	if err != nil {
		logger.Error("failed to create server", slog.String("error", err.Error()))
		os.Exit(1)
	}

	// Start blocks until the server is shut down (Ctrl+C or SIGTERM).
	if err := srv.Start(); err != nil {
		logger.Error("server error", slog.String("error", err.Error()))
		os.Exit(1)
	}
}
