// Package database
package database

import (
	"context"
	"database/sql"
	"fmt"
	"sync"

	"github.com/jackc/pgx/v5/pgxpool"
	_ "github.com/lib/pq"
	"github.com/pressly/goose/v3"

	"github.com/jrheling/pybotz/internal/config"
)

var (
	instance *sql.DB
	once     sync.Once
)

func InitDB(cfg *config.Config) (*sql.DB, error) {
	var err error
	once.Do(func() {
		conStr := cfg.Database.GetDSN()
		instance, err = sql.Open("postgres", conStr)
		if err != nil {
			return
		}

		if err = instance.Ping(); err != nil {
			return
		}
	})

	return instance, err
}

// NewPool opens the pgx connection pool used for inventory queries and
// bulk reading inserts.
func NewPool(ctx context.Context, cfg *config.Config) (*pgxpool.Pool, error) {
	poolCfg, err := pgxpool.ParseConfig(cfg.Database.GetDSN())
	if err != nil {
		return nil, fmt.Errorf("failed to parse database config: %w", err)
	}
	if cfg.Database.MaxConns > 0 {
		poolCfg.MaxConns = cfg.Database.MaxConns
	}

	pool, err := pgxpool.NewWithConfig(ctx, poolCfg)
	if err != nil {
		return nil, fmt.Errorf("failed to create connection pool: %w", err)
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	return pool, nil
}

// RunMigrations runs all pending database migrations using embedded SQL files.
// The migrations are compiled into the binary and don't require external files.
func RunMigrations() error {
	if instance == nil {
		return fmt.Errorf("database not initialized: call InitDB first")
	}

	goose.SetBaseFS(EmbeddedMigrations)

	if err := goose.SetDialect("postgres"); err != nil {
		return fmt.Errorf("failed to set goose dialect: %w", err)
	}

	if err := goose.Up(instance, "migrations"); err != nil {
		return fmt.Errorf("failed to run goose migrations: %w", err)
	}

	return nil
}

func Close() error {
	if instance != nil {
		return instance.Close()
	}
	return nil
}
