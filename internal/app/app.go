// Package app wires configuration, storage, the AI backend and the engine
// into one value shared by the CLI and the HTTP server.
package app

import (
	"context"
	"database/sql"
	"fmt"
	"io"
	"log/slog"

	"clientpilot/internal/ai"
	"clientpilot/internal/config"
	"clientpilot/internal/db"
	"clientpilot/internal/engine"
	"clientpilot/internal/engine/auth"
	"clientpilot/internal/migrate"
)

type App struct {
	DB      *sql.DB
	Config  *config.Config
	Logger  *slog.Logger
	Engine  engine.Engine
	Auth    auth.Service
	Tokens  auth.Tokens
	Backend ai.Backend
}

// NewLogger builds the process logger from the log section.
func NewLogger(cfg config.LogConfig, w io.Writer) (*slog.Logger, error) {
	level, err := config.ParseLevel(cfg.Level)
	if err != nil {
		return nil, err
	}
	opts := &slog.HandlerOptions{Level: level}
	if cfg.Format == "text" {
		return slog.New(slog.NewTextHandler(w, opts)), nil
	}
	return slog.New(slog.NewJSONHandler(w, opts)), nil
}

// SelectGenerator picks the generation port for the configured provider.
// It returns nil when the process should run in mock mode.
func SelectGenerator(cfg config.AIConfig, logger *slog.Logger) (ai.Generator, string) {
	switch cfg.Provider {
	case "mock":
		return nil, "mock"
	case "gemini":
		if cfg.GeminiAPIKey == "" {
			logger.Warn("ai provider gemini has no api key, using mock output")
			return nil, "mock"
		}
		return ai.NewGeminiClient(cfg.GeminiAPIKey, cfg.Model, cfg.Timeout), "gemini"
	case "openai":
		if cfg.OpenAIAPIKey == "" {
			logger.Warn("ai provider openai has no api key, using mock output")
			return nil, "mock"
		}
		return ai.NewOpenAIClient(cfg.OpenAIAPIKey, cfg.Model, cfg.Timeout), "openai"
	case "ollama":
		return ai.NewOllamaClient(cfg.OllamaURL, cfg.Model, cfg.Timeout), "ollama"
	}
	switch {
	case cfg.GeminiAPIKey != "":
		return ai.NewGeminiClient(cfg.GeminiAPIKey, cfg.Model, cfg.Timeout), "gemini"
	case cfg.OpenAIAPIKey != "":
		return ai.NewOpenAIClient(cfg.OpenAIAPIKey, cfg.Model, cfg.Timeout), "openai"
	}
	return nil, "mock"
}

// Open opens and migrates the database and builds the engine.
func Open(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*App, error) {
	if logger == nil {
		logger = slog.Default()
	}
	conn, err := db.Open(db.Config{Path: cfg.Database.Path})
	if err != nil {
		return nil, err
	}
	applied, err := migrate.Migrate(ctx, conn)
	if err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}
	if applied > 0 {
		logger.Info("database migrated", "path", cfg.Database.Path, "applied", applied)
	}

	gen, provider := SelectGenerator(cfg.AI, logger)
	backend := ai.NewBackend(gen, provider)
	logger.Info("ai backend selected", "backend", backend.Name())

	eng := engine.New(conn, cfg, backend)
	eng.Logger = logger
	eng.AI.Logger = logger

	return &App{
		DB:      conn,
		Config:  cfg,
		Logger:  logger,
		Engine:  eng,
		Auth:    auth.NewService(conn),
		Tokens:  auth.Tokens{Secret: cfg.Auth.JWTSecret, TTL: cfg.Auth.TokenTTL},
		Backend: backend,
	}, nil
}

func (a *App) Close() error {
	return a.DB.Close()
}
