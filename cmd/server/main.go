// Package main is the entry point for the sentiment analysis backend.
//
// The main package is kept minimal — its job is to:
//  1. Read configuration (env vars, optionally from a .env file)
//  2. Create the logger
//  3. Start the application
//
// All actual logic lives in imported packages (internal/server,
// internal/handler, etc.). This separation makes the app testable and
// its components reusable.
package main

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/joho/godotenv"

	"github.com/sakif/sentiment-api/internal/auth"
	"github.com/sakif/sentiment-api/internal/server"
)

func main() {
	// Load a .env file when one exists. Real environment variables win
	// over .env values, so production deployments can ignore the file
	// entirely. A missing file is not an error — that's the normal case
	// outside local development.
	_ = godotenv.Load()

	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}))

	// === PORT ===
	port := 8080
	if portStr := os.Getenv("PORT"); portStr != "" {
		var err error
		port, err = strconv.Atoi(portStr)
		if err != nil {
			logger.Error("invalid PORT value", slog.String("value", portStr))
			os.Exit(1)
		}
	}

	// === DATABASE PATH ===
	// DB_PATH overrides for production, e.g. DB_PATH=/var/lib/sentiment/prod.db
	dbPath := "data/sentiment.db"
	if envDB := os.Getenv("DB_PATH"); envDB != "" {
		dbPath = envDB
	}
	if dbDir := filepath.Dir(dbPath); dbDir != "." {
		if err := os.MkdirAll(dbDir, 0755); err != nil {
			logger.Error("failed to create database directory",
				slog.String("dir", dbDir),
				slog.String("error", err.Error()),
			)
			os.Exit(1)
		}
	}

	// === JWT SECRET ===
	// JWT_SECRET must be a long random string. Generate one with:
	//   JWT_SECRET=$(openssl rand -hex 32)
	// Every endpoint except /healthz depends on issued tokens, so an
	// unset secret is fatal, not a degraded mode.
	jwtSecret := os.Getenv("JWT_SECRET")
	if jwtSecret == "" {
		logger.Error("JWT_SECRET not set — generate one with: openssl rand -hex 32")
		os.Exit(1)
	}

	// === TOKEN TTL ===
	tokenTTL := auth.DefaultTokenTTL
	if ttlStr := os.Getenv("TOKEN_TTL_MINUTES"); ttlStr != "" {
		minutes, err := strconv.Atoi(ttlStr)
		if err != nil || minutes <= 0 {
			logger.Error("invalid TOKEN_TTL_MINUTES value", slog.String("value", ttlStr))
			os.Exit(1)
		}
		tokenTTL = time.Duration(minutes) * time.Minute
	}

	// === INFERENCE SERVICE ===
	inferenceURL := os.Getenv("INFERENCE_URL")
	if inferenceURL == "" {
		inferenceURL = "http://localhost:9000"
		logger.Warn("INFERENCE_URL not set — using default",
			slog.String("url", inferenceURL),
		)
	}

	// === IDENTIFIER POLICY ===
	// IDENTIFIER_EMAIL=false switches to opaque usernames.
	emailIdentifiers := true
	if v := os.Getenv("IDENTIFIER_EMAIL"); v != "" {
		parsed, err := strconv.ParseBool(v)
		if err != nil {
			logger.Error("invalid IDENTIFIER_EMAIL value", slog.String("value", v))
			os.Exit(1)
		}
		emailIdentifiers = parsed
	}

	// === GITHUB OAUTH (optional) ===
	githubClientID := os.Getenv("GITHUB_CLIENT_ID")
	githubClientSecret := os.Getenv("GITHUB_CLIENT_SECRET")
	githubCallbackURL := os.Getenv("GITHUB_CALLBACK_URL")
	if githubCallbackURL == "" {
		githubCallbackURL = fmt.Sprintf("http://localhost:%d/auth/github/callback", port)
	}

	cfg := server.Config{
		Port:               port,
		DBPath:             dbPath,
		JWTSecret:          jwtSecret,
		TokenTTL:           tokenTTL,
		InferenceURL:       inferenceURL,
		EmailIdentifiers:   emailIdentifiers,
		GitHubClientID:     githubClientID,
		GitHubClientSecret: githubClientSecret,
		GitHubCallbackURL:  githubCallbackURL,
	}

	srv, err := server.New(cfg, logger)
	if err != nil {
		logger.Error("failed to create server", slog.String("error", err.Error()))
		os.Exit(1)
	}

	// Start() blocks until the server is shut down (via Ctrl+C or SIGTERM)
	if err := srv.Start(); err != nil {
		logger.Error("server error", slog.String("error", err.Error()))
		os.Exit(1)
	}
}
