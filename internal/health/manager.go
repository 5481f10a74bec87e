package health

import (
	"context"
	"sync"

	"github.com/alexliesenfeld/health"
)

// CheckFunc performs one health check, returning an error if the
// dependency it probes is unhealthy.
type CheckFunc func(context.Context) error

// Manager accumulates liveness checks and builds the health.Checker the
// liveness handler runs on every request.
type Manager struct {
	mu     sync.Mutex
	checks []health.Check
}

// NewManager creates an empty Manager.
func NewManager() *Manager {
	return &Manager{}
}

// AddCheck registers a named liveness check.
func (m *Manager) AddCheck(name string, check CheckFunc) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.checks = append(m.checks, health.Check{Name: name, Check: check})
}

// LivenessChecker builds the health.Checker over every registered check.
//
//nolint:ireturn // health.Checker is the external interface callers need.
func (m *Manager) LivenessChecker() health.Checker {
	m.mu.Lock()
	defer m.mu.Unlock()

	opts := make([]health.CheckerOption, 0, len(m.checks))
	for _, c := range m.checks {
		opts = append(opts, health.WithCheck(c))
	}
	return health.NewChecker(opts...)
}
