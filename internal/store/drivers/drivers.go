// Package drivers opens the store.Store selected by configuration.
package drivers

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/JonMunkholm/menuimport/internal/config"
	"github.com/JonMunkholm/menuimport/internal/store"
	"github.com/JonMunkholm/menuimport/internal/store/memory"
	"github.com/JonMunkholm/menuimport/internal/store/postgres"
	"github.com/JonMunkholm/menuimport/internal/store/sqlite"
)

// Open connects to the configured database and, when AutoMigrate is set,
// applies the schema.
func Open(ctx context.Context, cfg config.DatabaseConfig) (store.Store, error) {
	switch cfg.Driver {
	case config.DriverPostgres:
		return openPostgres(ctx, cfg)
	case config.DriverSQLite:
		return openSQLite(ctx, cfg)
	case config.DriverMemory:
		slog.Warn("using in-memory store; data is lost on exit")
		return memory.New(), nil
	default:
		return nil, fmt.Errorf("unknown database driver %q", cfg.Driver)
	}
}

// Migrate applies the schema regardless of AutoMigrate.
func Migrate(ctx context.Context, cfg config.DatabaseConfig) error {
	cfg.AutoMigrate = true
	s, err := Open(ctx, cfg)
	if err != nil {
		return err
	}
	return s.Close()
}

func openPostgres(ctx context.Context, cfg config.DatabaseConfig) (store.Store, error) {
	poolCfg, err := pgxpool.ParseConfig(cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("parse database URL: %w", err)
	}
	poolCfg.MaxConns = int32(cfg.MaxConns)
	poolCfg.MinConns = int32(cfg.MinConns)
	poolCfg.MaxConnLifetime = cfg.MaxConnLifetime
	poolCfg.MaxConnIdleTime = cfg.MaxConnIdleTime

	pool, err := pgxpool.NewWithConfig(ctx, poolCfg)
	if err != nil {
		return nil, fmt.Errorf("create connection pool: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	if cfg.AutoMigrate {
		if err := postgres.Migrate(ctx, pool); err != nil {
			pool.Close()
			return nil, err
		}
	}

	slog.Info("database connected",
		"driver", cfg.Driver,
		"max_conns", cfg.MaxConns,
		"min_conns", cfg.MinConns,
	)
	return postgres.New(pool), nil
}

func openSQLite(ctx context.Context, cfg config.DatabaseConfig) (store.Store, error) {
	s, err := sqlite.Open(ctx, cfg.URL)
	if err != nil {
		return nil, err
	}
	if err := s.DB().PingContext(ctx); err != nil {
		s.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	if cfg.AutoMigrate {
		if err := s.Migrate(ctx); err != nil {
			s.Close()
			return nil, err
		}
	}

	slog.Info("database connected", "driver", cfg.Driver)
	return s, nil
}
