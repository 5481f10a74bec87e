package health

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/alexliesenfeld/health"
)

// ietfResultWriter writes health.CheckerResult in the IETF
// draft-inadarei-api-health-check JSON shape.
type ietfResultWriter struct{}

func newIETFResultWriter() *ietfResultWriter {
	return &ietfResultWriter{}
}

func (w *ietfResultWriter) Write(result *health.CheckerResult, statusCode int, rw http.ResponseWriter, _ *http.Request) error {
	resp := struct {
		Status string                 `json:"status"`
		Checks map[string][]ietfCheck `json:"checks,omitempty"`
	}{
		Status: mapStatus(result.Status),
		Checks: make(map[string][]ietfCheck, len(result.Details)),
	}

	for name, cr := range result.Details {
		c := ietfCheck{Status: mapStatus(cr.Status), Time: cr.Timestamp.Format(time.RFC3339)}
		if cr.Error != nil {
			c.Output = cr.Error.Error()
		}
		resp.Checks[name] = []ietfCheck{c}
	}

	rw.Header().Set("Content-Type", "application/health+json")
	rw.WriteHeader(statusCode)
	return json.NewEncoder(rw).Encode(resp)
}

type ietfCheck struct {
	Status string `json:"status"`
	Time   string `json:"time,omitempty"`
	Output string `json:"output,omitempty"`
}

func mapStatus(s health.AvailabilityStatus) string {
	switch s {
	case health.StatusUp:
		return "pass"
	case health.StatusDown:
		return "fail"
	default:
		return "warn"
	}
}
