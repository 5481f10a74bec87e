// Package store is the job repository: durable storage of jobs and their
// execution history, scoped by owning user, with atomic counter/next-fire
// bookkeeping on every execution finalization. The pgx-backed implementation
// takes an already-connected pool rather than owning dial lifecycle; the
// interface and its fakes follow a thin-interface, hand-written-test-double
// style throughout this package.
package store

import (
	"context"
	"time"

	"github.com/cronmasterd/core/internal/model"
)

// SortField restricts ListJobs ordering to a whitelist — never sort by
// whatever column name the caller happens to send. id is always the
// tie-breaker.
type SortField string

// Allowed sort fields for ListJobs.
const (
	SortByCreatedAt SortField = "created_at"
	SortByUpdatedAt SortField = "updated_at"
	SortByName      SortField = "name"
	SortByNextRun   SortField = "next_execution"
)

// Filter narrows ListJobs. A zero value matches every non-deleted job
// owned by the caller.
type Filter struct {
	Status *model.JobStatus
	Search string // case-insensitive substring match on name or URL
	SortBy SortField
}

// Page requests one page of a ListJobs result. Limit is clamped to
// [1,100]; the row offset is (Number-1)*Limit.
type Page struct {
	Number int // 1-based
	Limit  int
}

// normalize clamps Limit to [1,100] (default 20) and Number to >=1.
func (p Page) normalize() Page {
	if p.Limit <= 0 {
		p.Limit = 20
	}
	if p.Limit > 100 {
		p.Limit = 100
	}
	if p.Number < 1 {
		p.Number = 1
	}
	return p
}

func (p Page) offset() int {
	return (p.Number - 1) * p.Limit
}

// Repository is the durable store consumed by the control façade and the
// dispatcher/reconciler. Every operation taking a userID scopes its effect
// to that owner; ListActiveJobs, ListOrphanedRunning, and PruneExecutions
// are the named exceptions (global, reconciler-only).
type Repository interface {
	CreateJob(ctx context.Context, userID int64, spec model.JobSpec, now time.Time) (*model.Job, error)
	GetJob(ctx context.Context, userID, jobID int64) (*model.Job, error)
	ListJobs(ctx context.Context, userID int64, filter Filter, page Page) ([]*model.Job, int, error)
	UpdateJob(ctx context.Context, userID, jobID int64, patch model.JobPatch, now time.Time) (*model.Job, error)
	DeleteJob(ctx context.Context, userID, jobID int64, now time.Time) error
	ToggleJob(ctx context.Context, userID, jobID int64, now time.Time) (*model.Job, error)

	RecordExecutionStart(ctx context.Context, jobID int64, triggeredBy model.TriggerSource, now time.Time) (int64, error)
	RecordExecutionEnd(ctx context.Context, execID int64, outcome model.Outcome, now time.Time) error

	ListActiveJobs(ctx context.Context) ([]*model.Job, error)
	ListOrphanedRunning(ctx context.Context, olderThan time.Time) ([]int64, error)
	PruneExecutions(ctx context.Context, olderThan time.Time) (int64, error)

	// GetJobForExecution loads a job without user scoping, for use by the
	// dispatcher which already holds the authoritative job id from the
	// live set. It still excludes soft-deleted jobs.
	GetJobForExecution(ctx context.Context, jobID int64) (*model.Job, error)
}
