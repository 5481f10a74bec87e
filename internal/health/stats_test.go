package health_test

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/cronmasterd/core/internal/health"
	"github.com/cronmasterd/core/internal/reconciler"
)

type fakeSnapshotSource struct {
	snap reconciler.Snapshot
}

func (f fakeSnapshotSource) Last() reconciler.Snapshot {
	return f.snap
}

func TestStatsHandler_ReportsSnapshotFields(t *testing.T) {
	src := fakeSnapshotSource{snap: reconciler.Snapshot{
		UptimeSeconds:     12.5,
		ArmedCount:        3,
		RSSBytes:          1024,
		CPUPercent:        2.5,
		ReconciliationLag: 250 * time.Millisecond,
	}}

	req := httptest.NewRequest(http.MethodGet, "/stats", nil)
	rec := httptest.NewRecorder()
	health.NewStatsHandler(src).ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)

	var body struct {
		UptimeSeconds        float64 `json:"uptime_seconds"`
		ArmedCount           int     `json:"armed_count"`
		RSSBytes             uint64  `json:"rss_bytes"`
		CPUPercent           float64 `json:"cpu_percent"`
		ReconciliationLagSec float64 `json:"reconciliation_lag_seconds"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	require.InDelta(t, 12.5, body.UptimeSeconds, 0.001)
	require.Equal(t, 3, body.ArmedCount)
	require.EqualValues(t, 1024, body.RSSBytes)
	require.InDelta(t, 2.5, body.CPUPercent, 0.001)
	require.InDelta(t, 0.25, body.ReconciliationLagSec, 0.001)
}
