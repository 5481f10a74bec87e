package store

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/valkey-io/valkey-go"

	"github.com/cronmasterd/core/internal/model"
)

// CachedRepository is a read-through cache decorator in front of a
// Repository, used for GetJob on the hot path of a busy tenant. It is
// optional: cmd/cronmasterd only wraps the pgx repository with one when a
// Valkey address is configured. UpdateJob, ToggleJob and DeleteJob
// invalidate the affected key after the write. RecordExecutionEnd
// invalidates only for executions started through this decorator's
// RecordExecutionStart; finalizing any other execution (such as one
// reclaimed after a restart) leaves a cached copy in place until its TTL
// expires.
type CachedRepository struct {
	Repository
	client valkey.Client
	ttl    time.Duration

	mu        sync.Mutex
	execToJob map[int64]int64 // execution id -> job id, so RecordExecutionEnd can invalidate without a userID param
}

// NewCachedRepository wraps inner with a Valkey-backed cache for GetJob.
func NewCachedRepository(inner Repository, client valkey.Client, ttl time.Duration) *CachedRepository {
	return &CachedRepository{Repository: inner, client: client, ttl: ttl, execToJob: make(map[int64]int64)}
}

func cacheKey(userID, jobID int64) string {
	return fmt.Sprintf("cronmaster:job:%d:%d", userID, jobID)
}

func (c *CachedRepository) GetJob(ctx context.Context, userID, jobID int64) (*model.Job, error) {
	key := cacheKey(userID, jobID)

	if cached, err := c.client.Do(ctx, c.client.B().Get().Key(key).Build()).ToString(); err == nil {
		var job model.Job
		if jsonErr := json.Unmarshal([]byte(cached), &job); jsonErr == nil {
			return &job, nil
		}
	}

	job, err := c.Repository.GetJob(ctx, userID, jobID)
	if err != nil {
		return nil, err
	}

	if encoded, encErr := json.Marshal(job); encErr == nil {
		_ = c.client.Do(ctx, c.client.B().Set().Key(key).Value(string(encoded)).Ex(c.ttl).Build()).Error()
	}
	return job, nil
}

func (c *CachedRepository) UpdateJob(ctx context.Context, userID, jobID int64, patch model.JobPatch, now time.Time) (*model.Job, error) {
	job, err := c.Repository.UpdateJob(ctx, userID, jobID, patch, now)
	c.invalidate(ctx, userID, jobID)
	return job, err
}

func (c *CachedRepository) ToggleJob(ctx context.Context, userID, jobID int64, now time.Time) (*model.Job, error) {
	job, err := c.Repository.ToggleJob(ctx, userID, jobID, now)
	c.invalidate(ctx, userID, jobID)
	return job, err
}

func (c *CachedRepository) DeleteJob(ctx context.Context, userID, jobID int64, now time.Time) error {
	err := c.Repository.DeleteJob(ctx, userID, jobID, now)
	c.invalidate(ctx, userID, jobID)
	return err
}

// RecordExecutionStart remembers the execID->jobID mapping RecordExecutionEnd
// needs to invalidate the right cache key, since RecordExecutionEnd's own
// signature carries no jobID or userID.
func (c *CachedRepository) RecordExecutionStart(ctx context.Context, jobID int64, triggeredBy model.TriggerSource, now time.Time) (int64, error) {
	execID, err := c.Repository.RecordExecutionStart(ctx, jobID, triggeredBy, now)
	if err != nil {
		return 0, err
	}
	c.mu.Lock()
	c.execToJob[execID] = jobID
	c.mu.Unlock()
	return execID, nil
}

// RecordExecutionEnd invalidates the cached job view since it advances
// counters and next_execution out from under any cached copy. It looks up
// the owning jobID from the mapping RecordExecutionStart left behind, then
// the job's userID via GetJobForExecution, to rebuild the cache key.
func (c *CachedRepository) RecordExecutionEnd(ctx context.Context, execID int64, outcome model.Outcome, now time.Time) error {
	err := c.Repository.RecordExecutionEnd(ctx, execID, outcome, now)

	c.mu.Lock()
	jobID, ok := c.execToJob[execID]
	delete(c.execToJob, execID)
	c.mu.Unlock()

	if ok {
		if job, jobErr := c.Repository.GetJobForExecution(ctx, jobID); jobErr == nil {
			c.invalidate(ctx, job.UserID, jobID)
		}
	}
	return err
}

func (c *CachedRepository) invalidate(ctx context.Context, userID, jobID int64) {
	_ = c.client.Do(ctx, c.client.B().Del().Key(cacheKey(userID, jobID)).Build()).Error()
}
