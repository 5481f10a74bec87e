package dispatcher_test

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/cronmasterd/core/internal/dispatcher"
	"github.com/cronmasterd/core/internal/model"
	"github.com/cronmasterd/core/internal/store"
)

// fakeInvoker counts invocations and returns a fixed outcome, optionally
// blocking until released — used to exercise the pause-while-firing and
// shutdown-drain scenarios.
type fakeInvoker struct {
	mu       sync.Mutex
	calls    int
	outcome  model.Outcome
	release  chan struct{}
	onInvoke func()
}

func newFakeInvoker() *fakeInvoker {
	return &fakeInvoker{outcome: model.Outcome{Status: model.ExecSuccess, DurationMS: 1}}
}

func (f *fakeInvoker) Invoke(ctx context.Context, job *model.Job) model.Outcome {
	f.mu.Lock()
	f.calls++
	f.mu.Unlock()
	if f.onInvoke != nil {
		f.onInvoke()
	}
	if f.release != nil {
		select {
		case <-f.release:
		case <-ctx.Done():
			return model.Outcome{Status: model.ExecCancelled}
		}
	}
	return f.outcome
}

func (f *fakeInvoker) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

func waitFor(t *testing.T, timeout time.Duration, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(2 * time.Millisecond)
	}
	t.Fatal("condition not met before timeout")
}

func TestDispatcher_FiresScheduledJobAndRearms(t *testing.T) {
	repo := store.NewFakeRepository()
	now := time.Now()
	spec := model.JobSpec{Name: "n", URL: "http://example.com", Method: model.MethodGET, CronExpr: "* * * * *"}
	job, err := repo.CreateJob(context.Background(), 1, spec, now.Add(-59*time.Second))
	require.NoError(t, err)

	inv := newFakeInvoker()
	d := dispatcher.New(repo, inv, nil, dispatcher.Config{})
	d.AddJob(job)

	waitFor(t, 3*time.Second, func() bool { return inv.callCount() >= 1 })
	require.Equal(t, 1, d.Stats().ArmedCount)
}

func TestDispatcher_RemoveJobStopsFiring(t *testing.T) {
	repo := store.NewFakeRepository()
	now := time.Now()
	spec := model.JobSpec{Name: "n", URL: "http://example.com", Method: model.MethodGET, CronExpr: "* * * * *"}
	job, err := repo.CreateJob(context.Background(), 1, spec, now.Add(time.Hour))
	require.NoError(t, err)

	inv := newFakeInvoker()
	d := dispatcher.New(repo, inv, nil, dispatcher.Config{})
	d.AddJob(job)
	require.Equal(t, 1, d.Stats().ArmedCount)

	d.RemoveJob(job.ID)
	waitFor(t, time.Second, func() bool { return d.Stats().ArmedCount == 0 })
}

func TestDispatcher_Trigger_RecordsManualExecution(t *testing.T) {
	repo := store.NewFakeRepository()
	now := time.Now()
	spec := model.JobSpec{Name: "n", URL: "http://example.com", Method: model.MethodGET, CronExpr: "* * * * *"}
	job, err := repo.CreateJob(context.Background(), 1, spec, now.Add(time.Hour))
	require.NoError(t, err)

	inv := newFakeInvoker()
	d := dispatcher.New(repo, inv, nil, dispatcher.Config{})

	require.NoError(t, d.Trigger(context.Background(), 1, job.ID))
	require.Equal(t, 1, inv.callCount())

	got, err := repo.GetJob(context.Background(), 1, job.ID)
	require.NoError(t, err)
	require.EqualValues(t, 1, got.SuccessCount)
}

func TestDispatcher_PauseWhileFiringCompletesNormally(t *testing.T) {
	repo := store.NewFakeRepository()
	now := time.Now()
	spec := model.JobSpec{Name: "n", URL: "http://example.com", Method: model.MethodGET, CronExpr: "* * * * *"}
	job, err := repo.CreateJob(context.Background(), 1, spec, now.Add(-59*time.Second))
	require.NoError(t, err)

	inv := newFakeInvoker()
	inv.release = make(chan struct{})
	var invoked atomic.Bool
	inv.onInvoke = func() { invoked.Store(true) }

	d := dispatcher.New(repo, inv, nil, dispatcher.Config{})
	d.AddJob(job)

	waitFor(t, 3*time.Second, func() bool { return invoked.Load() })

	// Pause while the firing is in flight: RemoveJob must return promptly.
	d.RemoveJob(job.ID)
	paused := model.JobPaused
	_, err = repo.UpdateJob(context.Background(), 1, job.ID, model.JobPatch{Status: &paused}, time.Now())
	require.NoError(t, err)

	close(inv.release)

	waitFor(t, time.Second, func() bool {
		got, err := repo.GetJob(context.Background(), 1, job.ID)
		return err == nil && got.SuccessCount == 1
	})

	got, err := repo.GetJob(context.Background(), 1, job.ID)
	require.NoError(t, err)
	require.EqualValues(t, 1, got.SuccessCount)
	require.Equal(t, model.JobPaused, got.Status)
	require.Nil(t, got.NextExecution)
}

func TestDispatcher_ShutdownDrainsInFlightFirings(t *testing.T) {
	repo := store.NewFakeRepository()
	now := time.Now()
	spec := model.JobSpec{Name: "n", URL: "http://example.com", Method: model.MethodGET, CronExpr: "* * * * *"}
	job, err := repo.CreateJob(context.Background(), 1, spec, now.Add(-59*time.Second))
	require.NoError(t, err)

	inv := newFakeInvoker()
	inv.release = make(chan struct{})
	var invoked atomic.Bool
	inv.onInvoke = func() { invoked.Store(true) }

	d := dispatcher.New(repo, inv, nil, dispatcher.Config{})
	d.AddJob(job)
	waitFor(t, 3*time.Second, func() bool { return invoked.Load() })

	go func() {
		time.Sleep(20 * time.Millisecond)
		close(inv.release)
	}()

	err = d.Shutdown(context.Background(), time.Second)
	require.NoError(t, err)

	got, err := repo.GetJob(context.Background(), 1, job.ID)
	require.NoError(t, err)
	require.EqualValues(t, 1, got.SuccessCount)
}

func TestDispatcher_ShutdownCancelsPastDeadline(t *testing.T) {
	repo := store.NewFakeRepository()
	now := time.Now()
	spec := model.JobSpec{Name: "n", URL: "http://example.com", Method: model.MethodGET, CronExpr: "* * * * *"}
	job, err := repo.CreateJob(context.Background(), 1, spec, now.Add(-59*time.Second))
	require.NoError(t, err)

	inv := newFakeInvoker()
	inv.release = make(chan struct{}) // never closed: invocation only ends via context cancellation
	var invoked atomic.Bool
	inv.onInvoke = func() { invoked.Store(true) }

	d := dispatcher.New(repo, inv, nil, dispatcher.Config{})
	d.AddJob(job)
	waitFor(t, 3*time.Second, func() bool { return invoked.Load() })

	err = d.Shutdown(context.Background(), 20*time.Millisecond)
	require.NoError(t, err)

	got, err := repo.GetJob(context.Background(), 1, job.ID)
	require.NoError(t, err)
	require.EqualValues(t, 1, got.FailureCount)
}
