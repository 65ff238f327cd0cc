package cmd

import (
	"context"
	"database/sql"

	"github.com/kyleking/energy-expert/internal/config"
	"github.com/kyleking/energy-expert/internal/database"
	"github.com/kyleking/energy-expert/internal/errors"
	"github.com/kyleking/energy-expert/internal/llm"
	"github.com/kyleking/energy-expert/internal/logging"
	"github.com/kyleking/energy-expert/internal/pipeline"
	"github.com/kyleking/energy-expert/internal/query"
	"github.com/kyleking/energy-expert/internal/schema"
	"github.com/kyleking/energy-expert/internal/storage"
	"github.com/kyleking/energy-expert/internal/summarizer"
)

// app holds the components shared by the commands that answer questions
type app struct {
	cfg          *config.Config
	db           *sql.DB
	catalog      *schema.PostgresCatalog
	orchestrator *pipeline.Orchestrator
	history      *storage.DuckDBRepository // nil when history is disabled or unavailable
}

// newApp connects to the energy database and wires the pipeline
func newApp(ctx context.Context, cfg *config.Config) (*app, error) {
	completer, err := llm.NewCompleter(cfg.LLM)
	if err != nil {
		return nil, err
	}

	db, err := database.Open(ctx, cfg.Database)
	if err != nil {
		return nil, err
	}

	a := &app{
		cfg:     cfg,
		db:      db,
		catalog: schema.NewPostgresCatalog(db, cfg.Database.Schema),
	}

	opts := []pipeline.Option{
		pipeline.WithValidator(query.NewValidator(cfg.Pipeline.MaxRows)),
	}

	if cfg.History.Enabled {
		history, err := openHistory(ctx, cfg.History)
		if err != nil {
			logging.GetLogger().WithError(err).Warn("Query history unavailable; continuing without it")
		} else {
			a.history = history
			opts = append(opts, pipeline.WithRecorder(history))
		}
	}

	a.orchestrator = pipeline.New(
		a.catalog,
		completer,
		query.NewExecutor(db, cfg.Pipeline.MaxRows, cfg.Database.QueryTimeoutDuration()),
		summarizer.New(completer, cfg.Pipeline.PreviewRows),
		opts...,
	)

	logging.WithFields(map[string]any{
		"provider": completer.Name(),
		"schema":   cfg.Database.Schema,
		"history":  a.history != nil,
	}).Debug("Pipeline ready")

	return a, nil
}

// Close releases the database handles
func (a *app) Close() error {
	var firstErr error

	if a.history != nil {
		firstErr = a.history.Close()
	}

	if err := a.db.Close(); err != nil && firstErr == nil {
		firstErr = err
	}

	return firstErr
}

// openHistory opens and migrates the local history store
func openHistory(ctx context.Context, cfg config.HistoryConfig) (*storage.DuckDBRepository, error) {
	repo, err := storage.NewDuckDBRepositoryFromConfig(cfg)
	if err != nil {
		return nil, err
	}

	if err := repo.Initialize(ctx); err != nil {
		_ = repo.Close()

		return nil, errors.Wrap(err, errors.ErrTypeDatabase, "failed to initialize query history")
	}

	return repo, nil
}
