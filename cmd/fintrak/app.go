package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/crzyc98/fintrak/internal/common"
	"github.com/crzyc98/fintrak/internal/config"
	"github.com/crzyc98/fintrak/internal/engine"
	"github.com/crzyc98/fintrak/internal/llm"
	"github.com/crzyc98/fintrak/internal/storage"
	"github.com/spf13/viper"
)

// app bundles the resources shared by commands.
type app struct {
	store    *storage.SQLiteStorage
	engine   *engine.Orchestrator
	settings config.Settings
}

// openApp loads settings, opens and migrates the database and builds the
// classification engine. When withAI is false, or no provider credentials
// are configured, the engine runs without a provider.
func openApp(ctx context.Context, withAI bool) (*app, error) {
	settings, err := config.Load(viper.GetViper())
	if err != nil {
		return nil, err
	}

	store, err := initStorage(ctx, settings.Database.Path)
	if err != nil {
		return nil, err
	}

	var ai engine.AIClient
	if withAI {
		client, err := newAIClient(ctx, settings.LLM)
		switch {
		case errors.Is(err, common.ErrNotConfigured):
			slog.Warn("No AI provider configured; only rules will be applied",
				"provider", settings.LLM.Provider)
		case err != nil:
			_ = store.Close()
			return nil, err
		default:
			ai = client
		}
	}

	orch := engine.New(store, ai, nil, nil, engine.Config{
		BatchSize:               settings.Classification.BatchSize,
		ConfidenceThreshold:     settings.Classification.ConfidenceThreshold,
		RuleConfidenceThreshold: settings.Classification.RuleConfidenceThreshold,
		Timeout:                 settings.LLM.Timeout,
		CandidateLimit:          settings.Classification.CandidateLimit,
	}, slog.Default())

	return &app{store: store, engine: orch, settings: settings}, nil
}

// Close waits for background work and closes the database.
func (a *app) Close() {
	a.engine.Wait()
	if err := a.store.Close(); err != nil {
		common.LogError(err, "Failed to close database", common.Fields{"path": a.settings.Database.Path})
	}
}

// initStorage opens the database at path and runs migrations.
func initStorage(ctx context.Context, path string) (*storage.SQLiteStorage, error) {
	store, err := storage.NewSQLiteStorage(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if err := store.Migrate(ctx); err != nil {
		_ = store.Close()
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}

	slog.Debug("Connected to database", "path", path)
	return store, nil
}

// newAIClient wraps the configured provider with rate limiting and retries.
func newAIClient(ctx context.Context, cfg llm.Config) (*llm.Client, error) {
	provider, err := llm.NewProvider(ctx, cfg)
	if err != nil {
		return nil, err
	}
	return llm.NewClient(provider, cfg, slog.Default()), nil
}
