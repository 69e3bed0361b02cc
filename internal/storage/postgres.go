// Package storage provides database connections and repositories for users, agent flows,
// swap logs, sessions and the research corpus.
package storage

import (
	"context"
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/defi-health-scanner/internal/config"
)

// ErrNotFound is returned by repositories when no row or document matches
var ErrNotFound = errors.New("not found")

const (
	postgresConnectTimeout = 10 * time.Second
	postgresMinConns       = 2
	applicationName        = "defi-health-scanner"
)

// PostgresDB holds the pool behind the user and agent flow repositories
type PostgresDB struct {
	pool *pgxpool.Pool
}

// postgresPoolConfig builds the pool settings from the same URL the migrator uses
func postgresPoolConfig(cfg *config.PostgresConfig) (*pgxpool.Config, error) {
	if cfg.MaxConnections < 1 || cfg.MaxConnections > math.MaxInt32 {
		return nil, fmt.Errorf("postgres max connections out of range: %d", cfg.MaxConnections)
	}

	poolConfig, err := pgxpool.ParseConfig(cfg.URL())
	if err != nil {
		return nil, fmt.Errorf("invalid postgres url: %w", err)
	}

	poolConfig.MaxConns = int32(cfg.MaxConnections) // #nosec G115 - range checked above
	poolConfig.MinConns = min(postgresMinConns, poolConfig.MaxConns)
	// wallet lookups and flow reads are short; idle connections are recycled quickly
	poolConfig.MaxConnIdleTime = 10 * time.Minute
	poolConfig.MaxConnLifetime = time.Hour
	poolConfig.HealthCheckPeriod = time.Minute
	poolConfig.ConnConfig.RuntimeParams["application_name"] = applicationName
	return poolConfig, nil
}

// NewPostgresDB opens the pool and waits until the database answers a ping
func NewPostgresDB(ctx context.Context, cfg *config.PostgresConfig) (*PostgresDB, error) {
	poolConfig, err := postgresPoolConfig(cfg)
	if err != nil {
		return nil, err
	}

	ctx, cancel := context.WithTimeout(ctx, postgresConnectTimeout)
	defer cancel()

	pool, err := pgxpool.NewWithConfig(ctx, poolConfig)
	if err != nil {
		return nil, fmt.Errorf("unable to create postgres pool: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("postgres %s:%s unreachable: %w", cfg.Host, cfg.Port, err)
	}
	return &PostgresDB{pool: pool}, nil
}

// Close closes the pool
func (db *PostgresDB) Close() {
	if db.pool != nil {
		db.pool.Close()
	}
}

// Pool returns the underlying pool
func (db *PostgresDB) Pool() *pgxpool.Pool {
	return db.pool
}

// Ping reports whether the database answers. Used by the health endpoint.
func (db *PostgresDB) Ping(ctx context.Context) error {
	return db.pool.Ping(ctx)
}
