package health

import (
	"context"
	"errors"
	"sync/atomic"
)

// ShutdownCheck is a liveness check that fails once the process has begun
// its graceful-shutdown drain, so an external probe sees the instance as
// unhealthy before the process actually exits.
type ShutdownCheck struct {
	shuttingDown atomic.Bool
}

// NewShutdownCheck creates a ShutdownCheck, initially healthy.
func NewShutdownCheck() *ShutdownCheck {
	return &ShutdownCheck{}
}

// Check implements CheckFunc.
func (c *ShutdownCheck) Check(_ context.Context) error {
	if c.shuttingDown.Load() {
		return errors.New("health: instance is draining for shutdown")
	}
	return nil
}

// MarkShuttingDown flips the check to unhealthy. Idempotent.
func (c *ShutdownCheck) MarkShuttingDown() {
	c.shuttingDown.Store(true)
}
