// Package app assembles the application: configuration, logging, tracing,
// the database pool, the Genkit AI provider, and the ingestion and query
// pipelines. Construction is explicit so every dependency is visible at
// the wiring site.
package app

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/firebase/genkit/go/genkit"
	"github.com/firebase/genkit/go/plugins/googlegenai"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/docbase/docbase/db"
	"github.com/docbase/docbase/internal/config"
	"github.com/docbase/docbase/internal/ingest"
	"github.com/docbase/docbase/internal/loader"
	"github.com/docbase/docbase/internal/log"
	"github.com/docbase/docbase/internal/observability"
	"github.com/docbase/docbase/internal/query"
	"github.com/docbase/docbase/internal/retrieval"
	"github.com/docbase/docbase/internal/store"
	"github.com/docbase/docbase/internal/vectorstore"
)

// App holds the wired application components.
type App struct {
	Config  *config.Config
	Logger  *slog.Logger
	Pool    *pgxpool.Pool
	Genkit  *genkit.Genkit
	Store   *store.Store
	Vectors *vectorstore.Store
	Loader  *loader.Loader

	Retrieval *retrieval.Engine
	Query     *query.Engine
	Ingest    *ingest.Service
	Queue     *ingest.Queue

	otelShutdown func(context.Context) error
}

// Setup builds the application from configuration. Call Close to release
// resources.
func Setup(ctx context.Context, cfg *config.Config) (_ *App, retErr error) {
	if cfg == nil {
		return nil, config.ErrConfigNil
	}

	logger := log.New(log.Config{Level: slog.LevelInfo})
	a := &App{Config: cfg, Logger: logger}

	defer func() {
		if retErr != nil {
			a.Close()
		}
	}()

	if cfg.TracingEnabled {
		shutdown, err := observability.Setup(ctx, observability.Config{
			Endpoint:    cfg.OTLPEndpoint,
			ServiceName: "docbase",
		}, logger)
		if err != nil {
			return nil, fmt.Errorf("setting up tracing: %w", err)
		}
		a.otelShutdown = shutdown
	}

	pool, err := providePool(ctx, cfg)
	if err != nil {
		return nil, err
	}
	a.Pool = pool

	g := genkit.Init(ctx, genkit.WithPlugins(&googlegenai.GoogleAI{}))
	if g == nil {
		return nil, fmt.Errorf("initializing genkit with provider %q", cfg.Provider)
	}
	a.Genkit = g

	embedder := googlegenai.GoogleAIEmbedder(g, cfg.EmbedderModel)
	if embedder == nil {
		return nil, fmt.Errorf("embedder %q not found", cfg.EmbedderModel)
	}

	pgIndex, err := vectorstore.NewPgIndex(pool)
	if err != nil {
		return nil, err
	}
	a.Vectors = vectorstore.New(embedder, pgIndex, cfg.EmbedRateLimit, logger)

	a.Store, err = store.New(pool, logger)
	if err != nil {
		return nil, err
	}

	if err := os.MkdirAll(cfg.UploadDir, 0750); err != nil {
		return nil, fmt.Errorf("creating upload directory: %w", err)
	}
	a.Loader = loader.New(logger)

	a.Ingest, err = ingest.NewService(a.Store, a.Vectors, a.Loader, logger)
	if err != nil {
		return nil, err
	}
	a.Queue, err = ingest.NewQueue(a.Ingest, cfg.IngestWorkers, cfg.IngestQueueSize, logger)
	if err != nil {
		return nil, err
	}

	a.Retrieval = retrieval.NewEngine(a.Vectors, logger)

	// Both provider aliases register models under the googleai prefix.
	generator := newGenerator(g, "googleai/"+cfg.GenerationModel)
	a.Query, err = query.NewEngine(a.Retrieval, generator, a.Store, logger)
	if err != nil {
		return nil, err
	}

	return a, nil
}

// Close drains the ingestion queue and releases the pool and tracer.
func (a *App) Close() {
	if a.Queue != nil {
		a.Queue.Close()
	}
	if a.Pool != nil {
		a.Pool.Close()
	}
	if a.otelShutdown != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := a.otelShutdown(ctx); err != nil {
			a.Logger.Warn("shutting down tracer provider", "error", err)
		}
	}
}

// providePool runs migrations and opens the connection pool.
func providePool(ctx context.Context, cfg *config.Config) (*pgxpool.Pool, error) {
	if err := db.Migrate(cfg.ConnString()); err != nil {
		return nil, fmt.Errorf("running migrations: %w", err)
	}

	poolCfg, err := pgxpool.ParseConfig(cfg.ConnString())
	if err != nil {
		return nil, fmt.Errorf("parsing connection config: %w", err)
	}
	poolCfg.MaxConns = 10
	poolCfg.MinConns = 2
	poolCfg.MaxConnLifetime = 30 * time.Minute
	poolCfg.MaxConnIdleTime = 5 * time.Minute
	poolCfg.HealthCheckPeriod = time.Minute

	pool, err := pgxpool.NewWithConfig(ctx, poolCfg)
	if err != nil {
		return nil, fmt.Errorf("creating connection pool: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("pinging database: %w", err)
	}
	return pool, nil
}
