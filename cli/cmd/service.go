package cmd

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
	_ "modernc.org/sqlite"

	"github.com/arbelos-io/glean/adapter"
	redisadapter "github.com/arbelos-io/glean/adapter/redis"
	"github.com/arbelos-io/glean/adapter/webhook"
	"github.com/arbelos-io/glean/cli/config"
	"github.com/arbelos-io/glean/engine"
	"github.com/arbelos-io/glean/gen"
	"github.com/arbelos-io/glean/iox"
	"github.com/arbelos-io/glean/metrics"
	"github.com/arbelos-io/glean/pii"
	"github.com/arbelos-io/glean/runtime"
	"github.com/arbelos-io/glean/schema"
	"github.com/arbelos-io/glean/sqlcheck"
)

// buildService wires a runtime.Service from the loaded config.
// The returned closer releases database and adapter resources.
func buildService(ctx context.Context, cfg *config.Config) (*runtime.Service, *metrics.Collector, func(), error) {
	closers := []func(){}
	closeAll := func() {
		for i := len(closers) - 1; i >= 0; i-- {
			closers[i]()
		}
	}

	eng, source, err := buildDatabase(ctx, cfg, &closers)
	if err != nil {
		closeAll()
		return nil, nil, nil, err
	}

	generator, err := gen.NewGemini(ctx, gen.GeminiConfig{
		APIKey:            cfg.Model.APIKey,
		Model:             cfg.Model.Model,
		BaseURL:           cfg.Model.BaseURL,
		RequestsPerSecond: cfg.Model.RequestsPerSecond,
		Burst:             cfg.Model.Burst,
	})
	if err != nil {
		closeAll()
		return nil, nil, nil, fmt.Errorf("generator: %w", err)
	}

	masker, err := buildMasker(cfg)
	if err != nil {
		closeAll()
		return nil, nil, nil, err
	}

	adapters, err := buildAdapters(cfg)
	if err != nil {
		closeAll()
		return nil, nil, nil, err
	}
	for _, a := range adapters {
		closers = append(closers, iox.CloseFunc(a))
	}

	collector := metrics.NewCollector(cfg.Database.Engine, cfg.Model.Model)

	svc, err := runtime.NewService(runtime.ServiceConfig{
		Source:    source,
		Generator: generator,
		Engine:    eng,
		Masker:    masker,
		Collector: collector,
		Adapters:  adapters,
		RoleRules: cfg.RoleRules(),
		Validator: sqlcheck.Config{
			RowCap:    cfg.Limits.RowCap,
			MaxLength: cfg.Limits.MaxStatementLength,
		},
		MaxConcurrentRuns: cfg.Limits.MaxConcurrentRuns,
		MaxRowCap:         cfg.Limits.MaxRowCap,
		RetryBackoff:      cfg.Limits.RetryBackoff.Duration,
	})
	if err != nil {
		closeAll()
		return nil, nil, nil, err
	}

	return svc, collector, closeAll, nil
}

// buildDatabase opens the configured database and returns the paired
// execution engine and schema source.
func buildDatabase(ctx context.Context, cfg *config.Config, closers *[]func()) (engine.Engine, schema.Source, error) {
	engCfg := engine.Config{
		Timeout: cfg.Limits.QueryTimeout.Duration,
		RowCap:  cfg.Limits.RowCap,
	}

	switch cfg.Database.Engine {
	case "postgres":
		if cfg.Database.URL == "" {
			return nil, nil, fmt.Errorf("database.url required for postgres")
		}
		pool, err := pgxpool.New(ctx, cfg.Database.URL)
		if err != nil {
			return nil, nil, fmt.Errorf("postgres: %w", err)
		}
		*closers = append(*closers, pool.Close)
		return engine.NewPostgres(pool, engCfg), schema.NewPostgres(pool, "public"), nil

	case "sqlite":
		if cfg.Database.Path == "" {
			return nil, nil, fmt.Errorf("database.path required for sqlite")
		}
		db, err := sql.Open("sqlite", cfg.Database.Path)
		if err != nil {
			return nil, nil, fmt.Errorf("sqlite: %w", err)
		}
		*closers = append(*closers, iox.CloseFunc(db))
		return engine.NewSQLite(db, engCfg), schema.NewSQLite(db), nil

	default:
		return nil, nil, fmt.Errorf("unknown database.engine: %q (must be postgres or sqlite)", cfg.Database.Engine)
	}
}

func buildMasker(cfg *config.Config) (*pii.Masker, error) {
	if !cfg.Privacy.Enabled {
		return nil, nil
	}

	var store pii.TokenStore
	switch cfg.Privacy.Store {
	case "", "memory":
		store = pii.NewMemoryStore()
	case "redis":
		s, err := pii.NewRedisStore(cfg.Privacy.RedisURL, cfg.Privacy.KeyPrefix)
		if err != nil {
			return nil, fmt.Errorf("privacy store: %w", err)
		}
		store = s
	default:
		return nil, fmt.Errorf("unknown privacy.store: %q (must be memory or redis)", cfg.Privacy.Store)
	}

	return &pii.Masker{Store: store, TTLSeconds: cfg.Privacy.TTLSeconds}, nil
}

func buildAdapters(cfg *config.Config) ([]adapter.Adapter, error) {
	retries := 0
	if cfg.Adapter.Retries != nil {
		retries = *cfg.Adapter.Retries
	}

	switch cfg.Adapter.Type {
	case "":
		return nil, nil
	case "webhook":
		a, err := webhook.New(webhook.Config{
			URL:     cfg.Adapter.URL,
			Headers: cfg.Adapter.Headers,
			Timeout: cfg.Adapter.Timeout.Duration,
			Retries: retries,
		})
		if err != nil {
			return nil, fmt.Errorf("webhook adapter: %w", err)
		}
		return []adapter.Adapter{a}, nil
	case "redis":
		a, err := redisadapter.New(redisadapter.Config{
			URL:     cfg.Adapter.URL,
			Channel: cfg.Adapter.Channel,
			Timeout: cfg.Adapter.Timeout.Duration,
			Retries: retries,
		})
		if err != nil {
			return nil, fmt.Errorf("redis adapter: %w", err)
		}
		return []adapter.Adapter{a}, nil
	default:
		return nil, fmt.Errorf("unknown adapter.type: %q (must be webhook or redis)", cfg.Adapter.Type)
	}
}
