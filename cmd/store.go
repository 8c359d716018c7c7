package main

import (
	"context"
	"time"

	"github.com/rotisserie/eris"

	"github.com/sells-group/employer-import/internal/db"
	"github.com/sells-group/employer-import/internal/employer"
	"github.com/sells-group/employer-import/internal/importer"
	"github.com/sells-group/employer-import/internal/resilience"
)

const defaultSQLitePath = "employers.db"

// initStore opens the configured employer store. SQLite databases are local
// and are migrated on open.
func initStore(ctx context.Context) (employer.Store, error) {
	switch cfg.Store.Driver {
	case "sqlite":
		dsn := cfg.Store.DatabaseURL
		if dsn == "" {
			dsn = defaultSQLitePath
		}
		st, err := employer.NewSQLite(dsn)
		if err != nil {
			return nil, err
		}
		if err := st.Migrate(ctx); err != nil {
			st.Close() //nolint:errcheck
			return nil, err
		}
		return st, nil
	case "postgres":
		pool, err := db.NewPool(ctx, cfg.Store.DatabaseURL, db.PoolConfig{
			MaxConns: cfg.Store.MaxConns,
			MinConns: cfg.Store.MinConns,
		})
		if err != nil {
			return nil, err
		}
		return employer.NewPostgresStore(pool), nil
	default:
		return nil, eris.Errorf("unsupported store driver: %s", cfg.Store.Driver)
	}
}

func retryPolicy() resilience.Policy {
	return resilience.Policy{
		Attempts: cfg.Retry.MaxAttempts,
		Base:     time.Duration(cfg.Retry.InitialBackoffMS) * time.Millisecond,
		Cap:      time.Duration(cfg.Retry.MaxBackoffMS) * time.Millisecond,
		Jitter:   0.2,
	}
}

// initService opens the store and session directory and wires the import
// service. Callers close the returned store.
func initService(ctx context.Context) (*importer.Service, employer.Store, error) {
	st, err := initStore(ctx)
	if err != nil {
		return nil, nil, err
	}
	sessions, err := importer.NewFileSessionStore(cfg.Session.Dir)
	if err != nil {
		st.Close() //nolint:errcheck
		return nil, nil, err
	}
	return importer.NewService(st, sessions, retryPolicy(), cfg.Import.BatchSize), st, nil
}
