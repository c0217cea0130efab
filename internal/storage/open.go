// Package storage selects and opens the configured core.Store backend.
package storage

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/JonMunkholm/bookings/internal/config"
	"github.com/JonMunkholm/bookings/internal/core"
	"github.com/JonMunkholm/bookings/internal/storage/memory"
	"github.com/JonMunkholm/bookings/internal/storage/migrations"
	"github.com/JonMunkholm/bookings/internal/storage/postgres"
	"github.com/JonMunkholm/bookings/internal/storage/sqlite"
)

// Open opens the store selected by cfg.Driver and applies pending
// migrations.
func Open(ctx context.Context, cfg config.DatabaseConfig) (core.Store, error) {
	var (
		store core.Store
		err   error
	)

	switch cfg.Driver {
	case config.DriverSQLite:
		store, err = sqlite.Open(ctx, cfg.URL, cfg.BusyTimeout)
	case config.DriverPostgres:
		store, err = postgres.Open(ctx, cfg.URL, postgres.PoolOptions{
			MaxConns:        cfg.MaxConns,
			MinConns:        cfg.MinConns,
			MaxConnLifetime: cfg.MaxConnLifetime,
			MaxConnIdleTime: cfg.MaxConnIdleTime,
		})
	case config.DriverMemory:
		store = memory.New()
	default:
		return nil, fmt.Errorf("unsupported database driver %q", cfg.Driver)
	}
	if err != nil {
		return nil, err
	}

	if err := store.EnsureSchema(ctx); err != nil {
		_ = store.Close()
		return nil, fmt.Errorf("ensure schema: %w", err)
	}
	return store, nil
}

// SQLStore is a store that exposes a database/sql handle.
type SQLStore interface {
	core.Store
	DB() *sql.DB
}

// OpenSQL opens a SQL-backed store without migrating, for the migration
// command. It returns the store and its goose dialect.
func OpenSQL(ctx context.Context, cfg config.DatabaseConfig) (SQLStore, string, error) {
	switch cfg.Driver {
	case config.DriverSQLite:
		store, err := sqlite.Open(ctx, cfg.URL, cfg.BusyTimeout)
		if err != nil {
			return nil, "", err
		}
		return store, migrations.DialectSQLite, nil
	case config.DriverPostgres:
		store, err := postgres.Open(ctx, cfg.URL, postgres.PoolOptions{MaxConns: 2})
		if err != nil {
			return nil, "", err
		}
		return store, migrations.DialectPostgres, nil
	default:
		return nil, "", fmt.Errorf("driver %q has no migrations", cfg.Driver)
	}
}
