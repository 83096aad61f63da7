// Package app wires the ingestion pipeline from configuration.
// It serves as dependency injection for the server binary.
package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/raphaelgruber/helix/internal/config"
	"github.com/raphaelgruber/helix/internal/db"
	"github.com/raphaelgruber/helix/internal/docstore"
	"github.com/raphaelgruber/helix/internal/extract"
	"github.com/raphaelgruber/helix/internal/llm"
	"github.com/raphaelgruber/helix/internal/metrics"
	"github.com/raphaelgruber/helix/internal/placement"
	"github.com/raphaelgruber/helix/internal/resolve"
	"github.com/raphaelgruber/helix/internal/service"
	"github.com/raphaelgruber/helix/internal/status"
)

// App holds every long-lived component of the server.
type App struct {
	Store   status.Store
	Catalog *placement.Catalog
	Runner  *service.BatchRunner
	Metrics *metrics.Collector

	closers []func(context.Context) error
	logger  *slog.Logger
}

// New builds the pipeline: process store, processed storage, classifier,
// extractor, orchestrator and runner.
func New(ctx context.Context, cfg config.Config, logger *slog.Logger) (*App, error) {
	if logger == nil {
		logger = slog.Default()
	}
	a := &App{Metrics: metrics.NewCollector(), logger: logger}

	store, err := a.openStore(ctx, cfg)
	if err != nil {
		a.Close(ctx)
		return nil, err
	}
	a.Store = store

	storage, err := a.openStorage(ctx, cfg)
	if err != nil {
		a.Close(ctx)
		return nil, err
	}

	model, err := llm.NewModel(ctx, cfg)
	if err != nil {
		a.Close(ctx)
		return nil, fmt.Errorf("create classifier model: %w", err)
	}
	classifier := llm.NewClassifier(model, a.Metrics, logger)

	links := resolve.NewDispatcher(resolve.Options{
		Timeout:      cfg.HTTPTimeout,
		UserAgent:    cfg.UserAgent,
		GitHubToken:  cfg.GitHubToken,
		XBearerToken: cfg.XBearerToken,
		Logger:       logger,
	})
	var media extract.Transcriber
	if cfg.TranscribeKey != "" {
		media = extract.NewWhisperTranscriber(cfg.TranscribeURL, cfg.TranscribeModel, cfg.TranscribeKey, 0)
	} else {
		logger.Warn("no transcription key configured, media items will fail")
	}
	extractor := extract.New(extract.NewDocumentConverter(), media, links, extract.Options{
		CacheSize: cfg.URLCacheSize,
		CacheTTL:  cfg.URLCacheTTL,
		Logger:    logger,
	})

	propagator := status.NewPropagator(store, logger, a.Metrics)
	engine := placement.NewEngine(storage, logger)
	a.Catalog = placement.NewCatalog(storage, logger)

	orchestrator := service.NewOrchestrator(extractor, classifier, engine, propagator, a.Metrics, logger)
	staging := service.NewStaging(cfg.DataDir)
	a.Runner = service.NewBatchRunner(orchestrator, propagator, staging, cfg.BatchConcurrency, a.Metrics, logger)

	logger.Info("pipeline ready",
		"store", cfg.Store,
		"storage", cfg.Storage,
		"llm_provider", cfg.LLMProvider,
		"llm_model", model.Model(),
		"batch_concurrency", a.Runner.Concurrency())
	return a, nil
}

func (a *App) openStore(ctx context.Context, cfg config.Config) (status.Store, error) {
	switch cfg.Store {
	case "surrealdb":
		client, err := db.Open(ctx, db.Config{
			URL:       cfg.SurrealDBURL,
			Namespace: cfg.SurrealDBNamespace,
			Database:  cfg.SurrealDBDatabase,
			Username:  cfg.SurrealDBUser,
			Password:  cfg.SurrealDBPass,
			AuthLevel: cfg.SurrealDBAuthLevel,
		}, a.logger)
		if err != nil {
			return nil, fmt.Errorf("connect surrealdb: %w", err)
		}
		a.closers = append(a.closers, client.Close)
		return client, nil
	case "firestore":
		if cfg.GCPProject == "" {
			return nil, errors.New("GOOGLE_CLOUD_PROJECT is required for the firestore store")
		}
		fs, err := docstore.New(ctx, cfg.GCPProject, cfg.FirestoreDB, a.logger)
		if err != nil {
			return nil, err
		}
		a.closers = append(a.closers, func(context.Context) error { return fs.Close() })
		return fs, nil
	case "memory":
		a.logger.Warn("using in-memory process store, batches are lost on restart")
		return status.NewMemoryStore(), nil
	default:
		return nil, fmt.Errorf("unknown store %q", cfg.Store)
	}
}

func (a *App) openStorage(ctx context.Context, cfg config.Config) (placement.Storage, error) {
	switch cfg.Storage {
	case "local":
		return placement.NewLocalStorage(cfg.DataDir), nil
	case "gcs":
		if cfg.GCSBucket == "" {
			return nil, errors.New("HELIX_GCS_BUCKET is required for gcs storage")
		}
		gcs, err := placement.NewGCSStorage(ctx, cfg.GCSBucket, "")
		if err != nil {
			return nil, err
		}
		a.closers = append(a.closers, func(context.Context) error { return gcs.Close() })
		return gcs, nil
	default:
		return nil, fmt.Errorf("unknown storage %q", cfg.Storage)
	}
}

// Close waits for running batches and releases connections in reverse order.
func (a *App) Close(ctx context.Context) error {
	if a.Runner != nil {
		if err := a.Runner.Wait(ctx); err != nil {
			a.logger.Warn("batches still running at shutdown", "active", len(a.Runner.Active()), "error", err)
		}
	}
	var errs []error
	for i := len(a.closers) - 1; i >= 0; i-- {
		errs = append(errs, a.closers[i](ctx))
	}
	a.closers = nil
	return errors.Join(errs...)
}
