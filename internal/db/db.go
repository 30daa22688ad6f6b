// Package db wraps pgx/v5 with the small set of capabilities the
// ingestion and closure pipelines need: a bounded connection pool,
// explicit transaction control (including a "no sync" mode for bulk
// package loads), dual-mode advisory locks, and a COPY-based bulk
// loader. It is deliberately narrow: the pipeline drives one worker per
// connection, so there is no general-purpose ORM surface here.
package db

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/quay/zlog"
)

// Pool wraps a pgxpool.Pool with the application-specific helpers symboldb
// needs.
type Pool struct {
	*pgxpool.Pool
}

// Connect opens a pool against connString, tagging the connection with
// applicationName so it is identifiable in pg_stat_activity, matching
// the teacher's datastore/postgres.Connect.
func Connect(ctx context.Context, connString, applicationName string) (*Pool, error) {
	cfg, err := pgxpool.ParseConfig(connString)
	if err != nil {
		return nil, fmt.Errorf("db: parsing connection string: %w", err)
	}
	// The pipeline drives one worker per connection (spec §4.2), so a
	// small pool suffices; this also bounds how many concurrent workers
	// contend for the same advisory lock namespace.
	cfg.MaxConns = 16
	const appNameKey = "application_name"
	if _, ok := cfg.ConnConfig.RuntimeParams[appNameKey]; !ok {
		cfg.ConnConfig.RuntimeParams[appNameKey] = applicationName
	}

	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("db: creating connection pool: %w", err)
	}
	if err := prometheus.Register(poolCollector(pool, applicationName)); err != nil {
		zlog.Debug(ctx).Msg("pool metrics already registered")
	}
	return &Pool{Pool: pool}, nil
}
