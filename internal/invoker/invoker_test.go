package invoker_test

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/cronmasterd/core/internal/invoker"
	"github.com/cronmasterd/core/internal/logging"
	"github.com/cronmasterd/core/internal/model"
)

func newJob(method model.Method, url string) *model.Job {
	return &model.Job{
		ID:     1,
		Method: method,
		URL:    url,
	}
}

func TestInvoke_SuccessCapturesResponse(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("X-Custom", "yes")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"ok":true}`))
	}))
	defer srv.Close()

	inv := invoker.New(invoker.Config{}, nil)
	outcome := inv.Invoke(context.Background(), newJob(model.MethodGET, srv.URL))

	require.Equal(t, model.ExecSuccess, outcome.Status)
	require.NotNil(t, outcome.ResponseCode)
	require.Equal(t, 200, *outcome.ResponseCode)
	require.Equal(t, `{"ok":true}`, outcome.ResponseBody)
	require.Equal(t, "yes", outcome.ResponseHeaders["X-Custom"])
	require.Nil(t, outcome.ErrorMessage)
}

func TestInvoke_NonSuccessStatusIsFailed(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	inv := invoker.New(invoker.Config{}, nil)
	outcome := inv.Invoke(context.Background(), newJob(model.MethodGET, srv.URL))

	require.Equal(t, model.ExecFailed, outcome.Status)
	require.NotNil(t, outcome.ErrorMessage)
	require.Contains(t, *outcome.ErrorMessage, model.ErrorHTTPNon2xx)
}

func TestInvoke_ResponseBodyIsTruncated(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(strings.Repeat("a", 100)))
	}))
	defer srv.Close()

	inv := invoker.New(invoker.Config{ResponseBodyLimit: 10}, nil)
	outcome := inv.Invoke(context.Background(), newJob(model.MethodGET, srv.URL))

	require.Equal(t, model.ExecSuccess, outcome.Status)
	require.Len(t, outcome.ResponseBody, 10)
}

func TestInvoke_TimeoutIsClassified(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		time.Sleep(50 * time.Millisecond)
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	inv := invoker.New(invoker.Config{Timeout: 5 * time.Millisecond}, nil)
	outcome := inv.Invoke(context.Background(), newJob(model.MethodGET, srv.URL))

	require.Equal(t, model.ExecTimeout, outcome.Status)
	require.NotNil(t, outcome.ErrorMessage)
	require.Contains(t, *outcome.ErrorMessage, model.ErrorTimeout)
}

func TestInvoke_SetsDefaultUserAgentAndContentType(t *testing.T) {
	var gotUA, gotCT string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotUA = r.Header.Get("User-Agent")
		gotCT = r.Header.Get("Content-Type")
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	job := newJob(model.MethodPOST, srv.URL)
	job.Body = `{"k":"v"}`

	inv := invoker.New(invoker.Config{}, nil)
	outcome := inv.Invoke(context.Background(), job)

	require.Equal(t, model.ExecSuccess, outcome.Status)
	require.Equal(t, "CronMaster/1.0", gotUA)
	require.Equal(t, "application/json", gotCT)
}

func TestReconfigure_ChangesUserAgentForSubsequentInvokes(t *testing.T) {
	var gotUA string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotUA = r.Header.Get("User-Agent")
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	inv := invoker.New(invoker.Config{}, nil)

	inv.Invoke(context.Background(), newJob(model.MethodGET, srv.URL))
	require.Equal(t, "CronMaster/1.0", gotUA)

	inv.Reconfigure(invoker.Config{UserAgent: "CronMaster-Reloaded/2.0"})

	inv.Invoke(context.Background(), newJob(model.MethodGET, srv.URL))
	require.Equal(t, "CronMaster-Reloaded/2.0", gotUA)
}

func TestInvoke_NonJSONBodyDefaultsToOctetStream(t *testing.T) {
	var gotCT string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotCT = r.Header.Get("Content-Type")
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	job := newJob(model.MethodPOST, srv.URL)
	job.Body = "plain opaque payload"

	inv := invoker.New(invoker.Config{}, nil)
	outcome := inv.Invoke(context.Background(), job)

	require.Equal(t, model.ExecSuccess, outcome.Status)
	require.Equal(t, "application/octet-stream", gotCT)
}

func TestInvoke_PropagatesFiringIDHeader(t *testing.T) {
	var gotHeader string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotHeader = r.Header.Get("X-Cronmaster-Firing-Id")
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	ctx := logging.WithFiringID(context.Background(), "firing-xyz")
	inv := invoker.New(invoker.Config{}, nil)
	outcome := inv.Invoke(ctx, newJob(model.MethodGET, srv.URL))

	require.Equal(t, model.ExecSuccess, outcome.Status)
	require.Equal(t, "firing-xyz", gotHeader)
}

func TestInvoke_ConnectionRefusedIsClassified(t *testing.T) {
	inv := invoker.New(invoker.Config{Timeout: time.Second}, nil)
	outcome := inv.Invoke(context.Background(), newJob(model.MethodGET, "http://127.0.0.1:1"))

	require.NotEqual(t, model.ExecSuccess, outcome.Status)
	require.NotNil(t, outcome.ErrorMessage)
}
