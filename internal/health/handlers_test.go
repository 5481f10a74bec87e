package health_test

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/cronmasterd/core/internal/health"
)

func TestLivenessHandler_AllChecksUp_ReportsPass(t *testing.T) {
	m := health.NewManager()
	m.AddCheck("ok", func(context.Context) error { return nil })

	req := httptest.NewRequest(http.MethodGet, "/live", nil)
	rec := httptest.NewRecorder()
	m.NewLivenessHandler().ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	var body struct {
		Status string `json:"status"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	require.Equal(t, "pass", body.Status)
}

func TestLivenessHandler_FailingCheck_StillReturns200WithFailBody(t *testing.T) {
	m := health.NewManager()
	m.AddCheck("db", func(context.Context) error { return errors.New("connection refused") })

	req := httptest.NewRequest(http.MethodGet, "/live", nil)
	rec := httptest.NewRecorder()
	m.NewLivenessHandler().ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	var body struct {
		Status string `json:"status"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	require.Equal(t, "fail", body.Status)
}

func TestShutdownCheck_MarkShuttingDown_FailsSubsequentChecks(t *testing.T) {
	sc := health.NewShutdownCheck()
	require.NoError(t, sc.Check(context.Background()))

	sc.MarkShuttingDown()
	require.Error(t, sc.Check(context.Background()))
}
