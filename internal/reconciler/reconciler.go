// Package reconciler keeps the dispatcher's live set converged with the
// repository's authoritative active-job set, prunes old execution rows,
// reclaims executions orphaned by a prior crash, and emits a periodic
// health snapshot. Reconciliation, pruning and the snapshot each run their
// own goroutine behind a ticker; orphan reclamation runs once, during
// OnStart. All of it is wired through the OnStart/OnStop Starter/Stopper
// hooks the rest of this service's long-running components use.
package reconciler

import (
	"context"
	"log/slog"
	"os"
	"sync"
	"time"

	"github.com/shirou/gopsutil/v4/process"

	"github.com/cronmasterd/core/internal/dispatcher"
	"github.com/cronmasterd/core/internal/model"
	"github.com/cronmasterd/core/internal/store"
)

// Config tunes the reconciler's periodic tasks.
type Config struct {
	ReconcileInterval      time.Duration // default 5m
	PruneInterval          time.Duration // default 1h
	ExecutionRetention     time.Duration // default 30 * 24h
	HealthSnapshotInterval time.Duration // default 1m
}

func (c Config) withDefaults() Config {
	if c.ReconcileInterval <= 0 {
		c.ReconcileInterval = 5 * time.Minute
	}
	if c.PruneInterval <= 0 {
		c.PruneInterval = time.Hour
	}
	if c.ExecutionRetention <= 0 {
		c.ExecutionRetention = 30 * 24 * time.Hour
	}
	if c.HealthSnapshotInterval <= 0 {
		c.HealthSnapshotInterval = time.Minute
	}
	return c
}

// Snapshot is one point-in-time health observation, published to Last()
// for the keep-alive probe to read.
type Snapshot struct {
	TakenAt           time.Time
	UptimeSeconds     float64
	ArmedCount        int
	RSSBytes          uint64
	CPUPercent        float64
	ReconciliationLag time.Duration // time since the last successful reconcile
}

// Reconciler owns the reconcile and prune loops, the startup orphan
// reclamation, and the health snapshot. It
// has no exported mutating methods beyond OnStart/OnStop: all convergence
// happens internally against repo and dispatcher.
type Reconciler struct {
	repo   store.Repository
	disp   *dispatcher.Dispatcher
	logger *slog.Logger
	cfg    Config

	startedAt time.Time
	proc      *process.Process

	mu            sync.RWMutex
	lastSnapshot  Snapshot
	lastReconcile time.Time

	wg   sync.WaitGroup
	stop chan struct{}
}

// New builds a Reconciler. Nothing runs until OnStart.
func New(repo store.Repository, disp *dispatcher.Dispatcher, logger *slog.Logger, cfg Config) *Reconciler {
	if logger == nil {
		logger = slog.Default()
	}
	proc, _ := process.NewProcess(int32(os.Getpid()))
	return &Reconciler{
		repo:   repo,
		disp:   disp,
		logger: logger.With(slog.String("component", "reconciler")),
		cfg:    cfg.withDefaults(),
		proc:   proc,
		stop:   make(chan struct{}),
	}
}

// OnStart runs startup-only reconciliation and orphan reclamation
// synchronously (so the dispatcher's live set is converged before OnStart
// returns), then launches the three periodic background loops.
func (r *Reconciler) OnStart(ctx context.Context) error {
	r.startedAt = time.Now()

	if err := r.reconcileLiveSet(ctx); err != nil {
		r.logger.Error("reconciler: startup reconcile failed", slog.Any("error", err))
	}
	if err := r.reclaimOrphanedRunning(ctx); err != nil {
		r.logger.Error("reconciler: startup orphan reclamation failed", slog.Any("error", err))
	}
	r.publishSnapshot(ctx)

	r.wg.Add(3)
	go r.loop(r.cfg.ReconcileInterval, r.reconcileLiveSet)
	go r.loop(r.cfg.PruneInterval, r.pruneExecutions)
	go r.healthLoop()

	r.logger.Info("reconciler started",
		slog.Duration("reconcile_interval", r.cfg.ReconcileInterval),
		slog.Duration("prune_interval", r.cfg.PruneInterval))
	return nil
}

// OnStop stops all three loops and waits for them to exit.
func (r *Reconciler) OnStop(_ context.Context) error {
	close(r.stop)
	r.wg.Wait()
	return nil
}

// loop runs task every interval until Stop is signaled. One goroutine per
// task.
func (r *Reconciler) loop(interval time.Duration, task func(context.Context) error) {
	defer r.wg.Done()
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-r.stop:
			return
		case <-ticker.C:
			if err := task(context.Background()); err != nil {
				r.logger.Error("reconciler: periodic task failed", slog.Any("error", err))
			}
		}
	}
}

func (r *Reconciler) healthLoop() {
	defer r.wg.Done()
	ticker := time.NewTicker(r.cfg.HealthSnapshotInterval)
	defer ticker.Stop()

	for {
		select {
		case <-r.stop:
			return
		case <-ticker.C:
			r.publishSnapshot(context.Background())
		}
	}
}

// reconcileLiveSet arms every active job absent from the dispatcher and
// disarms every armed job no longer active in the repository. This is the
// only place that guards against out-of-process mutations and lost
// in-process AddJob/RemoveJob events.
func (r *Reconciler) reconcileLiveSet(ctx context.Context) error {
	active, err := r.repo.ListActiveJobs(ctx)
	if err != nil {
		return err
	}

	wantArmed := make(map[int64]struct{}, len(active))
	for _, job := range active {
		wantArmed[job.ID] = struct{}{}
		r.disp.AddJob(job)
	}

	for _, id := range r.disp.ArmedJobIDs() {
		if _, ok := wantArmed[id]; !ok {
			r.disp.RemoveJob(id)
		}
	}

	r.mu.Lock()
	r.lastReconcile = time.Now()
	r.mu.Unlock()
	return nil
}

// pruneExecutions deletes execution rows older than the configured
// retention window.
func (r *Reconciler) pruneExecutions(ctx context.Context) error {
	cutoff := time.Now().Add(-r.cfg.ExecutionRetention)
	n, err := r.repo.PruneExecutions(ctx, cutoff)
	if err != nil {
		return err
	}
	if n > 0 {
		r.logger.Info("reconciler: pruned executions", slog.Int64("rows_deleted", n), slog.Time("cutoff", cutoff))
	}
	return nil
}

// reclaimOrphanedRunning finalizes every execution left in status running
// from before this process started — the crash-recovery path: a prior
// process died mid-invocation and never wrote a terminal outcome. Each is
// finalized through the ordinary RecordExecutionEnd path so the parent
// job's failure_count and next_execution are recomputed exactly as they
// would be for any other failed firing.
func (r *Reconciler) reclaimOrphanedRunning(ctx context.Context) error {
	ids, err := r.repo.ListOrphanedRunning(ctx, r.startedAt)
	if err != nil {
		return err
	}
	if len(ids) == 0 {
		return nil
	}

	msg := model.ErrorWorkerCrashed
	outcome := model.Outcome{Status: model.ExecFailed, ErrorMessage: &msg}
	now := time.Now()
	for _, execID := range ids {
		if err := r.repo.RecordExecutionEnd(ctx, execID, outcome, now); err != nil {
			r.logger.Error("reconciler: reclaiming orphaned execution failed",
				slog.Int64("execution_id", execID), slog.Any("error", err))
		}
	}
	r.logger.Warn("reconciler: reclaimed orphaned running executions", slog.Int("count", len(ids)))
	return nil
}

func (r *Reconciler) publishSnapshot(_ context.Context) {
	snap := Snapshot{
		TakenAt:       time.Now(),
		UptimeSeconds: time.Since(r.startedAt).Seconds(),
		ArmedCount:    r.disp.Stats().ArmedCount,
	}
	if r.proc != nil {
		if mem, err := r.proc.MemoryInfo(); err == nil && mem != nil {
			snap.RSSBytes = mem.RSS
		}
		if cpuPct, err := r.proc.CPUPercent(); err == nil {
			snap.CPUPercent = cpuPct
		}
	}

	r.mu.Lock()
	snap.ReconciliationLag = time.Since(r.lastReconcile)
	r.lastSnapshot = snap
	r.mu.Unlock()
}

// Last returns the most recent health snapshot.
func (r *Reconciler) Last() Snapshot {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.lastSnapshot
}

// LastReconcileAt returns the instant the live set was last successfully
// converged against the repository's active-job set. Zero until the first
// reconcile (run synchronously during OnStart) completes.
func (r *Reconciler) LastReconcileAt() time.Time {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.lastReconcile
}
