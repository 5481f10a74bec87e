// Package dispatcher is the in-process scheduler: it keeps the live set of
// active jobs armed, fires each at its computed instant, feeds the
// resulting invocation to the invoker, and persists the outcome via the
// repository. Its state machine (armed / firing / rearming / removed)
// exposes the Starter/Stopper OnStart/OnStop shape used throughout this
// service's long-running components, built on a per-job actor model: one
// goroutine per armed job rather than a shared supervised worker pool.
package dispatcher

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/cronmasterd/core/internal/cronspec"
	"github.com/cronmasterd/core/internal/invoker"
	"github.com/cronmasterd/core/internal/logging"
	"github.com/cronmasterd/core/internal/model"
	"github.com/cronmasterd/core/internal/retry"
	"github.com/cronmasterd/core/internal/store"
)

// Config tunes a Dispatcher. The zero value leaves firings unbounded.
type Config struct {
	MaxConcurrentFirings int // 0 means unbounded
}

// Stats is the snapshot Stats() returns for the keep-alive health probe.
type Stats struct {
	ArmedCount int
	StartedAt  time.Time
}

// Dispatcher maintains the live set and runs one actor goroutine per armed
// job. AddJob, RemoveJob, and Trigger are all safe to call concurrently
// with each other and with a running dispatcher.
type Dispatcher struct {
	repo   store.Repository
	inv    invoker.Invoker
	logger *slog.Logger
	cfg    Config

	sem chan struct{} // nil when unbounded

	mu   sync.Mutex
	live map[int64]*armedJob

	wg sync.WaitGroup // every armed-job loop goroutine and every in-flight firing

	cancelMu  sync.Mutex
	cancels   map[int64]context.CancelFunc
	nextCanID int64

	shutdownOnce sync.Once
	shutdownCh   chan struct{}

	startedAt time.Time
}

// New builds a Dispatcher. Nothing is armed until AddJob is called for
// each active job (the reconciler does this at startup).
func New(repo store.Repository, inv invoker.Invoker, logger *slog.Logger, cfg Config) *Dispatcher {
	if logger == nil {
		logger = slog.Default()
	}
	d := &Dispatcher{
		repo:       repo,
		inv:        inv,
		logger:     logger.With(slog.String("component", "dispatcher")),
		cfg:        cfg,
		live:       make(map[int64]*armedJob),
		cancels:    make(map[int64]context.CancelFunc),
		shutdownCh: make(chan struct{}),
		startedAt:  time.Now(),
	}
	if cfg.MaxConcurrentFirings > 0 {
		d.sem = make(chan struct{}, cfg.MaxConcurrentFirings)
	}
	return d
}

// OnStart satisfies the Starter contract this service's long-running
// components expect. The dispatcher itself has nothing to initialize;
// population of the live set is the reconciler's job.
func (d *Dispatcher) OnStart(_ context.Context) error {
	d.logger.Info("dispatcher started")
	return nil
}

// OnStop is equivalent to Shutdown with a hard-capped deadline.
func (d *Dispatcher) OnStop(ctx context.Context) error {
	return d.Shutdown(ctx, 30*time.Second)
}

type jobStatus int32

const (
	statusArmed jobStatus = iota
	statusFiring
	statusRearming
	statusRemoved
)

// armedJob is one entry in the live set: a job snapshot plus the stop
// signal for its actor goroutine.
type armedJob struct {
	id int64

	mu     sync.RWMutex
	job    *model.Job
	status jobStatus

	stop     chan struct{}
	stopOnce sync.Once
}

func newArmedJob(job *model.Job) *armedJob {
	return &armedJob{id: job.ID, job: job, status: statusArmed, stop: make(chan struct{})}
}

func (a *armedJob) requestStop() {
	a.stopOnce.Do(func() { close(a.stop) })
}

func (a *armedJob) stopped() bool {
	select {
	case <-a.stop:
		return true
	default:
		return false
	}
}

func (a *armedJob) snapshot() *model.Job {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.job
}

func (a *armedJob) setSnapshot(job *model.Job, status jobStatus) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.job = job
	a.status = status
}

// AddJob arms job in the live set. If job.ID is already armed, the
// existing actor is asked to stop (without disturbing any invocation it
// may currently have in flight) and a fresh actor takes its place — the
// disarm/re-arm semantics an update requires.
func (d *Dispatcher) AddJob(job *model.Job) {
	if !job.Armable() || job.NextExecution == nil {
		d.RemoveJob(job.ID)
		return
	}

	d.mu.Lock()
	if existing, ok := d.live[job.ID]; ok {
		existing.requestStop()
	}
	aj := newArmedJob(job)
	d.live[job.ID] = aj
	d.mu.Unlock()

	d.wg.Add(1)
	go d.run(aj)
}

// RemoveJob disarms job.ID. It does not wait for any in-flight invocation
// to finish — that invocation completes on its own and its actor simply
// declines to rearm afterward, matching the pause-while-firing behavior
// update and pause share.
func (d *Dispatcher) RemoveJob(jobID int64) {
	d.mu.Lock()
	aj, ok := d.live[jobID]
	if ok {
		delete(d.live, jobID)
	}
	d.mu.Unlock()

	if ok {
		aj.requestStop()
	}
}

// forget removes aj from the live set, but only if aj is still the
// current entry for its id (a concurrent AddJob may have already replaced
// it with a fresher armedJob).
func (d *Dispatcher) forget(aj *armedJob) {
	d.mu.Lock()
	if current, ok := d.live[aj.id]; ok && current == aj {
		delete(d.live, aj.id)
	}
	d.mu.Unlock()
}

// run is the per-job actor loop: wait for the next scheduled instant (or
// a stop/shutdown signal), fire, persist the outcome, refresh the job
// snapshot from the repository (which already recomputed next_execution),
// and loop. It exits once the job is no longer armable.
func (d *Dispatcher) run(aj *armedJob) {
	defer d.wg.Done()

	for {
		job := aj.snapshot()
		if job.NextExecution == nil {
			d.forget(aj)
			return
		}

		now := time.Now()
		delay := job.NextExecution.Sub(now)
		if delay < 0 {
			if missed := missedFirings(job, *job.NextExecution, now); missed > 0 {
				d.logger.Warn("dispatcher: missed scheduled firings, executing most recent only",
					slog.Int64("job_id", job.ID), slog.Int("missed_count", missed))
			}
			delay = 0
		}
		timer := time.NewTimer(delay)

		select {
		case <-aj.stop:
			timer.Stop()
			return
		case <-d.shutdownCh:
			timer.Stop()
			d.forget(aj)
			return
		case <-timer.C:
		}

		if aj.stopped() {
			return
		}

		aj.setSnapshot(job, statusFiring)
		d.fireOnce(job, model.TriggerCron)

		if aj.stopped() {
			return
		}
		aj.setSnapshot(job, statusRearming)

		updated, err := d.repo.GetJobForExecution(context.Background(), aj.id)
		if err != nil {
			d.logger.Error("dispatcher: reload after firing failed, disarming", slog.Int64("job_id", aj.id), slog.Any("error", err))
			d.forget(aj)
			return
		}
		if !updated.Armable() || updated.NextExecution == nil {
			d.forget(aj)
			return
		}
		aj.setSnapshot(updated, statusArmed)
	}
}

// missedFirings counts the scheduled instants strictly between from (the
// job's last computed NextExecution) and now; from itself is not counted.
// When from has elapsed too, this is the number of elapsed instants the
// actor skips, since it executes only the most recent one; the count is
// for the miss it logs, not anything it acts on.
func missedFirings(job *model.Job, from, now time.Time) int {
	loc, err := time.LoadLocation(job.Timezone)
	if err != nil {
		return 0
	}
	expr, err := cronspec.Parse(job.CronExpr)
	if err != nil {
		return 0
	}

	count := 0
	cur := from
	for {
		next := expr.Next(cur, loc)
		if !next.Before(now) {
			break
		}
		count++
		cur = next
	}
	return count
}

// fireOnce runs one invocation end to end: start row, invoke, persist
// outcome with a bounded retry against transaction conflicts. It never
// panics the caller; failures are logged and leave the execution row as
// whatever the repository last committed.
func (d *Dispatcher) fireOnce(job *model.Job, trigger model.TriggerSource) {
	if d.sem != nil {
		d.sem <- struct{}{}
		defer func() { <-d.sem }()
	}

	d.wg.Add(1)
	defer d.wg.Done()

	firingID := uuid.New().String()

	fireCtx, cancel := context.WithCancel(context.Background())
	fireCtx = logging.WithJobID(fireCtx, job.ID)
	fireCtx = logging.WithTrigger(fireCtx, string(trigger))
	fireCtx = logging.WithFiringID(fireCtx, firingID)
	canID := d.registerCancel(cancel)
	defer d.unregisterCancel(canID)

	start := time.Now()
	execID, err := d.repo.RecordExecutionStart(fireCtx, job.ID, trigger, start)
	if err != nil {
		d.logger.ErrorContext(fireCtx, "dispatcher: record execution start failed", slog.Any("error", err))
		return
	}
	fireCtx = logging.WithExecutionID(fireCtx, execID)

	outcome := d.inv.Invoke(fireCtx, job)
	if errors.Is(fireCtx.Err(), context.Canceled) {
		msg := "shutdown: invocation cancelled before completion"
		outcome.Status = model.ExecCancelled
		outcome.ErrorMessage = &msg
	}

	persistCtx := logging.WithFiringID(
		logging.WithExecutionID(logging.WithTrigger(logging.WithJobID(context.Background(), job.ID), string(trigger)), execID),
		firingID)
	err = retry.Retry(persistCtx, func() error {
		return d.repo.RecordExecutionEnd(persistCtx, execID, outcome, time.Now())
	}, retry.NewFixedSequenceBackOff(50*time.Millisecond, 200*time.Millisecond, 500*time.Millisecond))
	if err != nil {
		d.logger.ErrorContext(persistCtx, "dispatcher: record execution end failed permanently, job left armed with stale counters",
			slog.Any("error", err))
	}
}

// Trigger runs one firing of job immediately with triggered_by=manual,
// without disturbing the scheduled arming. It blocks until the execution
// outcome is persisted, matching the single-shot semantics an API caller
// expects from a synchronous "run now" operation.
func (d *Dispatcher) Trigger(ctx context.Context, userID, jobID int64) error {
	job, err := d.repo.GetJob(ctx, userID, jobID)
	if err != nil {
		return err
	}
	d.fireOnce(job, model.TriggerManual)
	return nil
}

// Shutdown stops arming new scheduled firings and waits up to deadline
// for every in-flight actor loop and invocation to finish draining to a
// final RecordExecutionEnd. Anything still running past the deadline has
// its invocation context cancelled, which records as cancelled.
func (d *Dispatcher) Shutdown(ctx context.Context, deadline time.Duration) error {
	d.shutdownOnce.Do(func() { close(d.shutdownCh) })

	done := make(chan struct{})
	go func() {
		d.wg.Wait()
		close(done)
	}()

	timer := time.NewTimer(deadline)
	defer timer.Stop()

	select {
	case <-done:
		return nil
	case <-timer.C:
		d.cancelAllInFlight()
		select {
		case <-done:
			return nil
		case <-ctx.Done():
			return ctx.Err()
		}
	case <-ctx.Done():
		d.cancelAllInFlight()
		<-done
		return ctx.Err()
	}
}

func (d *Dispatcher) registerCancel(cancel context.CancelFunc) int64 {
	d.cancelMu.Lock()
	defer d.cancelMu.Unlock()
	d.nextCanID++
	id := d.nextCanID
	d.cancels[id] = cancel
	return id
}

func (d *Dispatcher) unregisterCancel(id int64) {
	d.cancelMu.Lock()
	defer d.cancelMu.Unlock()
	delete(d.cancels, id)
}

func (d *Dispatcher) cancelAllInFlight() {
	d.cancelMu.Lock()
	defer d.cancelMu.Unlock()
	for _, cancel := range d.cancels {
		cancel()
	}
}

// Stats reports the current armed count and start time, for the
// keep-alive health probe.
func (d *Dispatcher) Stats() Stats {
	d.mu.Lock()
	defer d.mu.Unlock()
	return Stats{ArmedCount: len(d.live), StartedAt: d.startedAt}
}

// ArmedJobIDs returns the ids currently armed, for the reconciler to diff
// against the repository's authoritative active set.
func (d *Dispatcher) ArmedJobIDs() []int64 {
	d.mu.Lock()
	defer d.mu.Unlock()
	ids := make([]int64, 0, len(d.live))
	for id := range d.live {
		ids = append(ids, id)
	}
	return ids
}
