package database

import (
	"context"
	"fmt"

	pgxzero "github.com/jackc/pgx-zerolog"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/jackc/pgx/v5/tracelog"
	"github.com/rs/zerolog"
	"github.com/stemsi/exstem-roster/internal/config"
	"github.com/stemsi/exstem-roster/internal/logger"
)

// NewPostgresPool creates and validates a PostgreSQL connection pool.
func NewPostgresPool(ctx context.Context, cfg *config.Config, log zerolog.Logger) (*pgxpool.Pool, error) {
	poolCfg, err := poolConfig(cfg, log)
	if err != nil {
		return nil, err
	}

	pool, err := pgxpool.NewWithConfig(ctx, poolCfg)
	if err != nil {
		return nil, fmt.Errorf("create pool: %w", err)
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	log.Info().
		Int32("max_conns", cfg.MaxDBConns).
		Str("sql_trace", cfg.DBLogLevel).
		Msg("PostgreSQL connected")

	return pool, nil
}

// poolConfig translates the application config into a pgxpool config.
// SQL tracing is attached only in the local environment and only when
// DBLogLevel asks for it.
func poolConfig(cfg *config.Config, log zerolog.Logger) (*pgxpool.Config, error) {
	poolCfg, err := pgxpool.ParseConfig(cfg.DatabaseURL)
	if err != nil {
		return nil, fmt.Errorf("parse database URL: %w", err)
	}

	if cfg.MaxDBConns > 0 {
		poolCfg.MaxConns = cfg.MaxDBConns
	}
	if cfg.DBConnectTimeout > 0 {
		poolCfg.ConnConfig.ConnectTimeout = cfg.DBConnectTimeout
	}

	level, err := tracelog.LogLevelFromString(cfg.DBLogLevel)
	if err != nil {
		return nil, fmt.Errorf("parse DB_LOG_LEVEL: %w", err)
	}
	if cfg.Env == "local" && level != tracelog.LogLevelNone {
		poolCfg.ConnConfig.Tracer = &tracelog.TraceLog{
			Logger:   pgxzero.NewLogger(logger.Component(log, "pgx")),
			LogLevel: level,
		}
	}

	return poolCfg, nil
}
