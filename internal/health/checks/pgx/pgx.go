// Package pgx is a liveness check for the Postgres pool backing
// internal/store: a failing ping means the scheduler cannot read or write
// jobs or executions, a system error the liveness probe's body should
// report as down even though the process itself is still responsive.
package pgx

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
)

// ErrNilPool is returned when Config.Pool is nil.
var ErrNilPool = errors.New("pgx: pool is nil")

// Pinger is satisfied by *pgxpool.Pool.
type Pinger interface {
	Ping(ctx context.Context) error
}

var _ Pinger = (*pgxpool.Pool)(nil)

// Config configures the check.
type Config struct {
	Pool Pinger
}

// New returns a CheckFunc that pings the pool.
func New(cfg Config) func(context.Context) error {
	return func(ctx context.Context) error {
		if cfg.Pool == nil {
			return ErrNilPool
		}
		if err := cfg.Pool.Ping(ctx); err != nil {
			return fmt.Errorf("pgx: ping failed: %w", err)
		}
		return nil
	}
}
