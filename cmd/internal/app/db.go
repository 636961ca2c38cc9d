package app

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"chatauth/cmd/internal/config"
)

// NewDBPool builds a pgxpool from the database section and validates
// connectivity. It does not run migrations; schema management is external.
func NewDBPool(ctx context.Context, cfg config.DatabaseSection) (*pgxpool.Pool, error) {
	pcfg, err := pgxpool.ParseConfig(cfg.URL)
	if err != nil {
		return nil, err
	}

	if cfg.MaxConnections > 0 {
		pcfg.MaxConns = cfg.MaxConnections
	}
	if cfg.MinConnections >= 0 {
		pcfg.MinConns = cfg.MinConnections
	}

	pool, err := pgxpool.NewWithConfig(ctx, pcfg)
	if err != nil {
		return nil, err
	}

	if err := PingDB(ctx, pool, cfg.ConnectTimeout); err != nil {
		pool.Close()
		return nil, err
	}

	return pool, nil
}

// PingDB checks if a connection can be acquired within timeout.
func PingDB(parent context.Context, pool *pgxpool.Pool, timeout time.Duration) error {
	ctx, cancel := context.WithTimeout(parent, timeout)
	defer cancel()

	conn, err := pool.Acquire(ctx)
	if err != nil {
		return err
	}
	conn.Release()
	return nil
}
