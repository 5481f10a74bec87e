package store

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/cronmasterd/core/internal/cronspec"
	"github.com/cronmasterd/core/internal/model"
)

// FakeRepository is an in-memory Repository used by dispatcher and
// reconciler tests: no mocking framework, just the narrowest
// implementation that exercises the real interface contract.
type FakeRepository struct {
	mu         sync.Mutex
	jobs       map[int64]*model.Job
	executions map[int64]*model.JobExecution
	nextJobID  int64
	nextExecID int64
}

// NewFakeRepository returns an empty fake.
func NewFakeRepository() *FakeRepository {
	return &FakeRepository{
		jobs:       make(map[int64]*model.Job),
		executions: make(map[int64]*model.JobExecution),
	}
}

func cloneJob(j *model.Job) *model.Job {
	cp := *j
	if j.Headers != nil {
		cp.Headers = make(model.Headers, len(j.Headers))
		for k, v := range j.Headers {
			cp.Headers[k] = v
		}
	}
	if j.LastExecution != nil {
		t := *j.LastExecution
		cp.LastExecution = &t
	}
	if j.NextExecution != nil {
		t := *j.NextExecution
		cp.NextExecution = &t
	}
	return &cp
}

func (f *FakeRepository) CreateJob(_ context.Context, userID int64, spec model.JobSpec, now time.Time) (*model.Job, error) {
	if cerr := spec.Validate(); cerr != nil {
		return nil, cerr
	}
	tz := spec.Timezone
	if tz == "" {
		tz = "UTC"
	}
	loc, err := time.LoadLocation(tz)
	if err != nil {
		return nil, model.ValidationError("timezone", "not a recognized IANA timezone")
	}
	expr, err := cronspec.Parse(spec.CronExpr)
	if err != nil {
		return nil, model.ValidationError("cron_expression", err.Error())
	}
	next := expr.Next(now, loc)

	f.mu.Lock()
	defer f.mu.Unlock()
	f.nextJobID++
	job := &model.Job{
		ID:            f.nextJobID,
		UserID:        userID,
		Name:          strings.TrimSpace(spec.Name),
		Description:   spec.Description,
		URL:           spec.URL,
		Method:        spec.Method,
		Headers:       spec.Headers,
		Body:          spec.Body,
		CronExpr:      spec.CronExpr,
		Timezone:      tz,
		Status:        model.JobActive,
		NextExecution: &next,
		CreatedAt:     now,
		UpdatedAt:     now,
	}
	f.jobs[job.ID] = job
	return cloneJob(job), nil
}

func (f *FakeRepository) GetJob(_ context.Context, userID, jobID int64) (*model.Job, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	job, ok := f.jobs[jobID]
	if !ok || job.UserID != userID || job.Status == model.JobDeleted {
		return nil, model.NotFoundError("job not found")
	}
	return cloneJob(job), nil
}

func (f *FakeRepository) GetJobForExecution(_ context.Context, jobID int64) (*model.Job, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	job, ok := f.jobs[jobID]
	if !ok || job.Status == model.JobDeleted {
		return nil, model.NotFoundError("job not found")
	}
	return cloneJob(job), nil
}

func (f *FakeRepository) ListJobs(_ context.Context, userID int64, filter Filter, page Page) ([]*model.Job, int, error) {
	page = page.normalize()

	f.mu.Lock()
	defer f.mu.Unlock()

	var matched []*model.Job
	for _, job := range f.jobs {
		if job.UserID != userID || job.Status == model.JobDeleted {
			continue
		}
		if filter.Status != nil && job.Status != *filter.Status {
			continue
		}
		if filter.Search != "" {
			needle := strings.ToLower(filter.Search)
			if !strings.Contains(strings.ToLower(job.Name), needle) && !strings.Contains(strings.ToLower(job.URL), needle) {
				continue
			}
		}
		matched = append(matched, job)
	}

	sort.Slice(matched, func(i, j int) bool {
		a, b := matched[i], matched[j]
		switch filter.SortBy {
		case SortByUpdatedAt:
			if !a.UpdatedAt.Equal(b.UpdatedAt) {
				return a.UpdatedAt.Before(b.UpdatedAt)
			}
		case SortByName:
			if a.Name != b.Name {
				return a.Name < b.Name
			}
		case SortByNextRun:
			ak, bk := nextRunKey(a), nextRunKey(b)
			if !ak.Equal(bk) {
				return ak.Before(bk)
			}
		default:
			if !a.CreatedAt.Equal(b.CreatedAt) {
				return a.CreatedAt.Before(b.CreatedAt)
			}
		}
		return a.ID < b.ID // id is always the tie-breaker
	})

	total := len(matched)
	start := page.offset()
	if start > total {
		start = total
	}
	end := start + page.Limit
	if end > total {
		end = total
	}

	out := make([]*model.Job, 0, end-start)
	for _, job := range matched[start:end] {
		out = append(out, cloneJob(job))
	}
	return out, total, nil
}

func nextRunKey(j *model.Job) time.Time {
	if j.NextExecution == nil {
		return time.Unix(1<<62, 0)
	}
	return *j.NextExecution
}

func (f *FakeRepository) UpdateJob(_ context.Context, userID, jobID int64, patch model.JobPatch, now time.Time) (*model.Job, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	job, ok := f.jobs[jobID]
	if !ok || job.UserID != userID || job.Status == model.JobDeleted {
		return nil, model.NotFoundError("job not found")
	}
	working := cloneJob(job)
	if err := applyPatch(working, patch); err != nil {
		return nil, err
	}

	loc, err := time.LoadLocation(working.Timezone)
	if err != nil {
		return nil, model.ValidationError("timezone", "not a recognized IANA timezone")
	}

	switch {
	case patch.Status != nil && *patch.Status == model.JobPaused:
		working.NextExecution = nil
	case patch.Status != nil && *patch.Status == model.JobActive:
		next := mustCronspec(working.CronExpr).Next(now, loc)
		working.NextExecution = &next
	case patch.CronExpr != nil || patch.Timezone != nil:
		if working.Status == model.JobActive {
			next := mustCronspec(working.CronExpr).Next(now, loc)
			working.NextExecution = &next
		}
	}

	working.UpdatedAt = now
	f.jobs[jobID] = working
	return cloneJob(working), nil
}

func (f *FakeRepository) ToggleJob(ctx context.Context, userID, jobID int64, now time.Time) (*model.Job, error) {
	job, err := f.GetJob(ctx, userID, jobID)
	if err != nil {
		return nil, err
	}
	var newStatus model.JobStatus
	switch job.Status {
	case model.JobActive:
		newStatus = model.JobPaused
	case model.JobPaused:
		newStatus = model.JobActive
	default:
		return nil, model.ValidationError("status", "only active/paused jobs can be toggled")
	}
	return f.UpdateJob(ctx, userID, jobID, model.JobPatch{Status: &newStatus}, now)
}

func (f *FakeRepository) DeleteJob(_ context.Context, userID, jobID int64, now time.Time) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	job, ok := f.jobs[jobID]
	if !ok || job.UserID != userID {
		return model.NotFoundError("job not found")
	}
	if job.Status == model.JobDeleted {
		return nil
	}
	job.Status = model.JobDeleted
	job.NextExecution = nil
	job.UpdatedAt = now
	return nil
}

func (f *FakeRepository) RecordExecutionStart(_ context.Context, jobID int64, triggeredBy model.TriggerSource, now time.Time) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.nextExecID++
	f.executions[f.nextExecID] = &model.JobExecution{
		ID:          f.nextExecID,
		JobID:       jobID,
		ExecutedAt:  now,
		Status:      model.ExecRunning,
		TriggeredBy: triggeredBy,
	}
	return f.nextExecID, nil
}

func (f *FakeRepository) RecordExecutionEnd(_ context.Context, execID int64, outcome model.Outcome, now time.Time) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	exec, ok := f.executions[execID]
	if !ok {
		return model.NotFoundError("execution not found")
	}
	exec.Status = outcome.Status
	exec.DurationMS = outcome.DurationMS
	exec.ResponseCode = outcome.ResponseCode
	exec.ResponseBody = outcome.ResponseBody
	exec.ResponseHeaders = outcome.ResponseHeaders
	exec.ErrorMessage = outcome.ErrorMessage

	job, ok := f.jobs[exec.JobID]
	if !ok {
		return model.NotFoundError("job not found")
	}
	if outcome.Status == model.ExecSuccess {
		job.SuccessCount++
	} else {
		job.FailureCount++
	}
	job.LastExecution = &now
	job.UpdatedAt = now

	if job.Status == model.JobActive {
		if loc, err := time.LoadLocation(job.Timezone); err == nil {
			next := mustCronspec(job.CronExpr).Next(now, loc)
			job.NextExecution = &next
		}
	} else {
		job.NextExecution = nil
	}
	return nil
}

func (f *FakeRepository) ListActiveJobs(_ context.Context) ([]*model.Job, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []*model.Job
	for _, job := range f.jobs {
		if job.Status == model.JobActive {
			out = append(out, cloneJob(job))
		}
	}
	return out, nil
}

func (f *FakeRepository) ListOrphanedRunning(_ context.Context, olderThan time.Time) ([]int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var ids []int64
	for _, exec := range f.executions {
		if exec.Status == model.ExecRunning && exec.ExecutedAt.Before(olderThan) {
			ids = append(ids, exec.ID)
		}
	}
	return ids, nil
}

func (f *FakeRepository) PruneExecutions(_ context.Context, olderThan time.Time) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var pruned int64
	for id, exec := range f.executions {
		if exec.ExecutedAt.Before(olderThan) {
			delete(f.executions, id)
			pruned++
		}
	}
	return pruned, nil
}
