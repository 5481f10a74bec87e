package health

import (
	"net/http"

	"github.com/alexliesenfeld/health"
)

// NewLivenessHandler returns 200 even when checks are down, relying on the
// body's status field: a degraded dependency (e.g. an unreachable
// database) is a system error the caller should observe, not a reason for
// an orchestrator to restart an otherwise-responsive process.
func (m *Manager) NewLivenessHandler() http.Handler {
	return health.NewHandler(m.LivenessChecker(),
		health.WithResultWriter(newIETFResultWriter()),
		health.WithStatusCodeUp(http.StatusOK),
		health.WithStatusCodeDown(http.StatusOK),
	)
}
