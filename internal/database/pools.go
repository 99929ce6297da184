// Package database builds pgx connection pools from config.DBConfig.
//
// Grounded on the teacher's internal/database.Connect: same
// pgxpool.ParseConfig + MinConns/MaxConns + ping-on-connect shape,
// trimmed from a two-pool (Postgres/TimescaleDB) wrapper to the single
// pool the history SQL backend needs.
package database

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/rickgao/bridge-sync-core/internal/config"
)

// Connect creates and pings a connection pool for cfg.
func Connect(ctx context.Context, cfg config.DBConfig) (*pgxpool.Pool, error) {
	connStr := BuildConnString(cfg)

	poolCfg, err := pgxpool.ParseConfig(connStr)
	if err != nil {
		return nil, fmt.Errorf("parse connection string: %w", err)
	}

	poolCfg.MinConns = int32(cfg.MinConns)
	poolCfg.MaxConns = int32(cfg.MaxConns)

	pool, err := pgxpool.NewWithConfig(ctx, poolCfg)
	if err != nil {
		return nil, fmt.Errorf("create pool: %w", err)
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	return pool, nil
}
