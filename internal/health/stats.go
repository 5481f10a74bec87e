package health

import (
	"encoding/json"
	"net/http"

	"github.com/cronmasterd/core/internal/reconciler"
)

// SnapshotSource is whatever publishes the reconciler's periodic health
// snapshot. Satisfied by *reconciler.Reconciler.
type SnapshotSource interface {
	Last() reconciler.Snapshot
}

// statsResponse is the keep-alive probe's body: scheduler statistics an
// external caller polls to confirm the scheduler is making progress.
type statsResponse struct {
	UptimeSeconds        float64 `json:"uptime_seconds"`
	ArmedCount           int     `json:"armed_count"`
	RSSBytes             uint64  `json:"rss_bytes"`
	CPUPercent           float64 `json:"cpu_percent"`
	ReconciliationLagSec float64 `json:"reconciliation_lag_seconds"`
}

// NewStatsHandler serves the most recent reconciler snapshot as JSON.
func NewStatsHandler(src SnapshotSource) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		snap := src.Last()
		resp := statsResponse{
			UptimeSeconds:        snap.UptimeSeconds,
			ArmedCount:           snap.ArmedCount,
			RSSBytes:             snap.RSSBytes,
			CPUPercent:           snap.CPUPercent,
			ReconciliationLagSec: snap.ReconciliationLag.Seconds(),
		}
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(resp)
	})
}
