// Package control is the façade an API layer (out of scope here) and the
// process supervisor call into: job CRUD backed by the repository, plus
// the live-set mutations and shutdown/stats surface backed by the
// dispatcher. No method here takes a global lock — every call is either a
// repository transaction scoped to one job, or a dispatcher operation
// already safe for concurrent use.
package control

import (
	"context"
	"time"

	"github.com/cronmasterd/core/internal/dispatcher"
	"github.com/cronmasterd/core/internal/model"
	"github.com/cronmasterd/core/internal/store"
)

// ReconcileStatusSource is the last-reconcile instant, satisfied by
// *reconciler.Reconciler. Kept as a narrow interface (rather than an import
// of the reconciler package's full type) so Surface depends only on the one
// method it needs.
type ReconcileStatusSource interface {
	LastReconcileAt() time.Time
}

// Surface is the control interface: job CRUD, live-set mutation,
// immediate execution, and graceful shutdown.
type Surface struct {
	repo  store.Repository
	disp  *dispatcher.Dispatcher
	recon ReconcileStatusSource
}

// New builds a Surface over repo and disp. recon may be nil (e.g. the
// one-shot trigger CLI path, which runs no reconciler); Stats then reports
// a zero LastReconcileAt.
func New(repo store.Repository, disp *dispatcher.Dispatcher, recon ReconcileStatusSource) *Surface {
	return &Surface{repo: repo, disp: disp, recon: recon}
}

// CreateJob validates and persists a new job, then arms it if its status
// is active.
func (s *Surface) CreateJob(ctx context.Context, userID int64, spec model.JobSpec) (*model.Job, error) {
	job, err := s.repo.CreateJob(ctx, userID, spec, time.Now())
	if err != nil {
		return nil, err
	}
	s.disp.AddJob(job)
	return job, nil
}

// GetJob returns job, scoped to userID.
func (s *Surface) GetJob(ctx context.Context, userID, jobID int64) (*model.Job, error) {
	return s.repo.GetJob(ctx, userID, jobID)
}

// ListJobs returns one page of jobs owned by userID.
func (s *Surface) ListJobs(ctx context.Context, userID int64, filter store.Filter, page store.Page) ([]*model.Job, int, error) {
	return s.repo.ListJobs(ctx, userID, filter, page)
}

// UpdateJob applies patch and re-arms (or disarms) the job according to
// its resulting status.
func (s *Surface) UpdateJob(ctx context.Context, userID, jobID int64, patch model.JobPatch) (*model.Job, error) {
	job, err := s.repo.UpdateJob(ctx, userID, jobID, patch, time.Now())
	if err != nil {
		return nil, err
	}
	s.disp.AddJob(job)
	return job, nil
}

// ToggleJob flips a job between active and paused, re-arming or disarming
// it accordingly.
func (s *Surface) ToggleJob(ctx context.Context, userID, jobID int64) (*model.Job, error) {
	job, err := s.repo.ToggleJob(ctx, userID, jobID, time.Now())
	if err != nil {
		return nil, err
	}
	s.disp.AddJob(job)
	return job, nil
}

// DeleteJob soft-deletes the job and disarms it.
func (s *Surface) DeleteJob(ctx context.Context, userID, jobID int64) error {
	if err := s.repo.DeleteJob(ctx, userID, jobID, time.Now()); err != nil {
		return err
	}
	s.disp.RemoveJob(jobID)
	return nil
}

// Trigger runs job immediately with triggered_by=manual, independent of
// its scheduled arming, and blocks until the outcome is persisted.
func (s *Surface) Trigger(ctx context.Context, userID, jobID int64) error {
	return s.disp.Trigger(ctx, userID, jobID)
}

// Shutdown stops arming new scheduled firings and drains in-flight ones,
// hard-capped at 30s regardless of the deadline requested.
func (s *Surface) Shutdown(ctx context.Context, deadline time.Duration) error {
	const hardCap = 30 * time.Second
	if deadline > hardCap || deadline <= 0 {
		deadline = hardCap
	}
	return s.disp.Shutdown(ctx, deadline)
}

// Stats is the snapshot Stats() returns: armed count and startup instant
// from the dispatcher, plus the last reconciliation instant.
type Stats struct {
	dispatcher.Stats
	LastReconcileAt time.Time
}

// Stats reports the dispatcher's current armed count and start time, plus
// the last instant the live set was reconciled against the repository.
func (s *Surface) Stats() Stats {
	st := Stats{Stats: s.disp.Stats()}
	if s.recon != nil {
		st.LastReconcileAt = s.recon.LastReconcileAt()
	}
	return st
}
