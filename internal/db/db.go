package db

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"
)

// Drivers accepted by Open.
const (
	DriverPostgres = "postgres"
	DriverSQLite   = "sqlite"
)

// Connect opens and pings a PostgreSQL pool.
func Connect(ctx context.Context, databaseURL string) (*pgxpool.Pool, error) {
	if databaseURL == "" {
		return nil, fmt.Errorf("database url is empty")
	}

	config, err := pgxpool.ParseConfig(databaseURL)
	if err != nil {
		return nil, fmt.Errorf("error parsing db config: %w", err)
	}

	pool, err := pgxpool.NewWithConfig(ctx, config)
	if err != nil {
		return nil, fmt.Errorf("error connecting to db: %w", err)
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("error pinging db: %w", err)
	}

	return pool, nil
}

// Open returns a migrated store for the given driver. dsn is a PostgreSQL
// URL for DriverPostgres and a file path for DriverSQLite.
func Open(ctx context.Context, driver, dsn string, log *zap.Logger) (Store, error) {
	switch driver {
	case DriverPostgres:
		pool, err := Connect(ctx, dsn)
		if err != nil {
			return nil, err
		}
		if err := ApplyMigrations(ctx, pool, log); err != nil {
			pool.Close()
			return nil, err
		}
		return NewPgStore(pool), nil
	case DriverSQLite:
		store, err := OpenSQLite(dsn)
		if err != nil {
			return nil, err
		}
		if err := store.EnsureSchema(ctx); err != nil {
			store.Close()
			return nil, err
		}
		return store, nil
	default:
		return nil, fmt.Errorf("unknown store driver %q", driver)
	}
}
