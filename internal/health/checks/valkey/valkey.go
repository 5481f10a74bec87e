// Package valkey is a liveness check for the optional Valkey cache in
// front of internal/store: a Pinger interface, a Config, and a New that
// returns a CheckFunc, built against valkey-io/valkey-go's command-builder
// client since that's the client internal/store/cache.go actually holds.
package valkey

import (
	"context"
	"errors"
	"fmt"

	"github.com/valkey-io/valkey-go"
)

// ErrNilClient is returned when the configured client is nil.
var ErrNilClient = errors.New("valkey: client is nil")

// Pinger is the subset of valkey.Client this check needs.
type Pinger interface {
	Do(ctx context.Context, cmd valkey.Completed) valkey.ValkeyResult
	B() valkey.Builder
}

// Config configures the check. Client is required.
type Config struct {
	Client Pinger
}

// New builds a CheckFunc that PINGs cfg.Client and expects "PONG" back.
func New(cfg Config) func(context.Context) error {
	return func(ctx context.Context) error {
		if cfg.Client == nil {
			return ErrNilClient
		}
		pong, err := cfg.Client.Do(ctx, cfg.Client.B().Ping().Build()).ToString()
		if err != nil {
			return fmt.Errorf("valkey: ping failed: %w", err)
		}
		if pong != "PONG" {
			return fmt.Errorf("valkey: unexpected ping reply %q", pong)
		}
		return nil
	}
}
