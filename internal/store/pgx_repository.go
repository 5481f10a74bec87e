package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/cronmasterd/core/internal/cronspec"
	"github.com/cronmasterd/core/internal/model"
)

const uniqueViolation = "23505"

// PgxRepository is the Postgres-backed Repository implementation. It owns
// no connection lifecycle beyond the pool it is handed; callers construct
// the pool (e.g. via pgxpool.New) and pass it in rather than this type
// opening its own.
type PgxRepository struct {
	pool *pgxpool.Pool
}

// NewPgxRepository wraps an already-connected pool.
func NewPgxRepository(pool *pgxpool.Pool) *PgxRepository {
	return &PgxRepository{pool: pool}
}

// Pool exposes the underlying pool so callers can register it as a health
// check (it satisfies health/checks/pgx's Pinger interface) without this
// package depending on the health package.
func (r *PgxRepository) Pool() *pgxpool.Pool { return r.pool }

func (r *PgxRepository) CreateJob(ctx context.Context, userID int64, spec model.JobSpec, now time.Time) (*model.Job, error) {
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

	headersJSON, err := json.Marshal(spec.Headers)
	if err != nil {
		return nil, fmt.Errorf("store: marshal headers: %w", err)
	}

	const q = `
INSERT INTO jobs (user_id, name, description, url, method, headers, body,
                   cron_expression, timezone, status, success_count,
                   failure_count, next_execution, created_at, updated_at)
VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,'active',0,0,$10,$11,$11)
RETURNING id`

	var id int64
	err = r.pool.QueryRow(ctx, q, userID, strings.TrimSpace(spec.Name), spec.Description,
		spec.URL, string(spec.Method), headersJSON, spec.Body, spec.CronExpr, tz, next, now).Scan(&id)
	if err != nil {
		return nil, translateWriteErr(err)
	}

	return r.GetJobForExecution(ctx, id)
}

func (r *PgxRepository) GetJob(ctx context.Context, userID, jobID int64) (*model.Job, error) {
	const q = jobSelectBase + ` WHERE id=$1 AND user_id=$2 AND status <> 'deleted'`
	row := r.pool.QueryRow(ctx, q, jobID, userID)
	return scanJob(row)
}

func (r *PgxRepository) GetJobForExecution(ctx context.Context, jobID int64) (*model.Job, error) {
	const q = jobSelectBase + ` WHERE id=$1 AND status <> 'deleted'`
	row := r.pool.QueryRow(ctx, q, jobID)
	return scanJob(row)
}

func (r *PgxRepository) ListJobs(ctx context.Context, userID int64, filter Filter, page Page) ([]*model.Job, int, error) {
	page = page.normalize()

	var where strings.Builder
	where.WriteString(` WHERE user_id=$1 AND status <> 'deleted'`)
	args := []any{userID}

	if filter.Status != nil {
		args = append(args, string(*filter.Status))
		where.WriteString(fmt.Sprintf(" AND status=$%d", len(args)))
	}
	if filter.Search != "" {
		args = append(args, "%"+strings.ToLower(filter.Search)+"%")
		where.WriteString(fmt.Sprintf(" AND (LOWER(name) LIKE $%d OR LOWER(url) LIKE $%d)", len(args), len(args)))
	}

	var total int
	countQ := "SELECT COUNT(*) FROM jobs" + where.String()
	if err := r.pool.QueryRow(ctx, countQ, args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("store: count jobs: %w", err)
	}

	orderCol := sortColumn(filter.SortBy)
	args = append(args, page.Limit, page.offset())
	listQ := jobSelectBase + where.String() +
		fmt.Sprintf(" ORDER BY %s, id ASC LIMIT $%d OFFSET $%d", orderCol, len(args)-1, len(args))

	rows, err := r.pool.Query(ctx, listQ, args...)
	if err != nil {
		return nil, 0, fmt.Errorf("store: list jobs: %w", err)
	}
	defer rows.Close()

	var jobs []*model.Job
	for rows.Next() {
		j, err := scanJobRows(rows)
		if err != nil {
			return nil, 0, err
		}
		jobs = append(jobs, j)
	}
	return jobs, total, rows.Err()
}

// sortColumn maps the SortField whitelist to a physical column; any other
// value (including the zero value) falls back to created_at.
func sortColumn(f SortField) string {
	switch f {
	case SortByUpdatedAt:
		return "updated_at"
	case SortByName:
		return "name"
	case SortByNextRun:
		return "next_execution"
	default:
		return "created_at"
	}
}

func (r *PgxRepository) UpdateJob(ctx context.Context, userID, jobID int64, patch model.JobPatch, now time.Time) (*model.Job, error) {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("store: begin tx: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	const q = jobSelectBase + ` WHERE id=$1 AND user_id=$2 AND status <> 'deleted' FOR UPDATE`
	job, err := scanJob(tx.QueryRow(ctx, q, jobID, userID))
	if err != nil {
		return nil, err
	}

	if err := applyPatch(job, patch); err != nil {
		return nil, err
	}

	tz := job.Timezone
	loc, err := time.LoadLocation(tz)
	if err != nil {
		return nil, model.ValidationError("timezone", "not a recognized IANA timezone")
	}

	switch {
	case patch.Status != nil && *patch.Status == model.JobPaused:
		job.NextExecution = nil
	case patch.Status != nil && *patch.Status == model.JobActive:
		next := mustCronspec(job.CronExpr).Next(now, loc)
		job.NextExecution = &next
	case patch.CronExpr != nil || patch.Timezone != nil:
		if job.Status == model.JobActive {
			next := mustCronspec(job.CronExpr).Next(now, loc)
			job.NextExecution = &next
		}
	}

	headersJSON, err := json.Marshal(job.Headers)
	if err != nil {
		return nil, fmt.Errorf("store: marshal headers: %w", err)
	}

	const upd = `
UPDATE jobs SET name=$1, description=$2, url=$3, method=$4, headers=$5, body=$6,
  cron_expression=$7, timezone=$8, status=$9, next_execution=$10, updated_at=$11
WHERE id=$12`
	_, err = tx.Exec(ctx, upd, job.Name, job.Description, job.URL, string(job.Method),
		headersJSON, job.Body, job.CronExpr, job.Timezone, string(job.Status), job.NextExecution, now, job.ID)
	if err != nil {
		return nil, translateWriteErr(err)
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("store: commit: %w", err)
	}
	job.UpdatedAt = now
	return job, nil
}

// applyPatch validates and merges a JobPatch onto job in place. Fields the
// cron evaluator must see (CronExpr) are re-validated here, matching
// CreateJob's checks.
func applyPatch(job *model.Job, patch model.JobPatch) *model.CoreError {
	if patch.Name != nil {
		name := strings.TrimSpace(*patch.Name)
		if name == "" || len(name) > 100 {
			return model.ValidationError("name", "must be 1..100 characters after trimming")
		}
		job.Name = name
	}
	if patch.Description != nil {
		if len(*patch.Description) > 500 {
			return model.ValidationError("description", "must be at most 500 characters")
		}
		job.Description = *patch.Description
	}
	if patch.URL != nil {
		job.URL = *patch.URL
	}
	if patch.Method != nil {
		job.Method = *patch.Method
	}
	if patch.Headers != nil {
		job.Headers = patch.Headers
	}
	if patch.Body != nil {
		if len(*patch.Body) > 10000 {
			return model.ValidationError("body", "must be at most 10000 characters")
		}
		job.Body = *patch.Body
	}
	if patch.CronExpr != nil {
		if _, err := cronspec.Parse(*patch.CronExpr); err != nil {
			return model.ValidationError("cron_expression", err.Error())
		}
		job.CronExpr = *patch.CronExpr
	}
	// Use the patch's timezone if present, else retain the job's existing
	// one; never pair the old timezone with a cron expression validated
	// against a different zone's DST rules.
	if patch.Timezone != nil {
		job.Timezone = *patch.Timezone
	}
	if patch.Status != nil {
		job.Status = *patch.Status
	}

	spec := model.JobSpec{
		Name: job.Name, Description: job.Description, URL: job.URL,
		Method: job.Method, Body: job.Body, CronExpr: job.CronExpr,
	}
	return spec.Validate()
}

func mustCronspec(expr string) *cronspec.Expression {
	e, err := cronspec.Parse(expr)
	if err != nil {
		// Every stored cron expression was validated at write time.
		// Reaching here means a row was written by something that
		// bypassed that check.
		panic(fmt.Sprintf("store: stored cron expression %q no longer parses: %v", expr, err))
	}
	return e
}

func (r *PgxRepository) DeleteJob(ctx context.Context, userID, jobID int64, now time.Time) error {
	const q = `UPDATE jobs SET status='deleted', next_execution=NULL, updated_at=$3
WHERE id=$1 AND user_id=$2 AND status <> 'deleted'`
	tag, err := r.pool.Exec(ctx, q, jobID, userID, now)
	if err != nil {
		return fmt.Errorf("store: delete job: %w", err)
	}
	if tag.RowsAffected() == 0 {
		// Idempotent: if already deleted (or never owned), confirm which
		// and report accordingly.
		var one int
		err := r.pool.QueryRow(ctx, `SELECT 1 FROM jobs WHERE id=$1 AND user_id=$2`, jobID, userID).Scan(&one)
		if errors.Is(err, pgx.ErrNoRows) {
			return model.NotFoundError("job not found")
		}
		if err != nil {
			return fmt.Errorf("store: delete job: %w", err)
		}
	}
	return nil
}

func (r *PgxRepository) ToggleJob(ctx context.Context, userID, jobID int64, now time.Time) (*model.Job, error) {
	job, err := r.GetJob(ctx, userID, jobID)
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
	return r.UpdateJob(ctx, userID, jobID, model.JobPatch{Status: &newStatus}, now)
}

func (r *PgxRepository) RecordExecutionStart(ctx context.Context, jobID int64, triggeredBy model.TriggerSource, now time.Time) (int64, error) {
	const q = `INSERT INTO executions (job_id, executed_at, status, triggered_by)
VALUES ($1,$2,'running',$3) RETURNING id`
	var id int64
	err := r.pool.QueryRow(ctx, q, jobID, now, string(triggeredBy)).Scan(&id)
	if err != nil {
		return 0, fmt.Errorf("store: record execution start: %w", err)
	}
	return id, nil
}

func (r *PgxRepository) RecordExecutionEnd(ctx context.Context, execID int64, outcome model.Outcome, now time.Time) error {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("store: begin tx: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	var jobID int64
	if err := tx.QueryRow(ctx, `SELECT job_id FROM executions WHERE id=$1 FOR UPDATE`, execID).Scan(&jobID); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return model.NotFoundError("execution not found")
		}
		return fmt.Errorf("store: lookup execution: %w", err)
	}

	headersJSON, err := json.Marshal(outcome.ResponseHeaders)
	if err != nil {
		return fmt.Errorf("store: marshal response headers: %w", err)
	}

	const updExec = `UPDATE executions SET status=$1, duration_ms=$2, response_code=$3,
response_body=$4, response_headers=$5, error_message=$6 WHERE id=$7`
	if _, err := tx.Exec(ctx, updExec, string(outcome.Status), outcome.DurationMS, outcome.ResponseCode,
		outcome.ResponseBody, headersJSON, outcome.ErrorMessage, execID); err != nil {
		return translateWriteErr(err)
	}

	const q = jobSelectBase + ` WHERE id=$1 FOR UPDATE`
	job, err := scanJob(tx.QueryRow(ctx, q, jobID))
	if err != nil {
		return err
	}

	successDelta, failureDelta := 0, 0
	if outcome.Status == model.ExecSuccess {
		successDelta = 1
	} else {
		failureDelta = 1
	}

	var nextExec *time.Time
	if job.Status == model.JobActive {
		loc, locErr := time.LoadLocation(job.Timezone)
		if locErr == nil {
			n := mustCronspec(job.CronExpr).Next(now, loc)
			nextExec = &n
		}
	}

	const updJob = `UPDATE jobs SET success_count=success_count+$1, failure_count=failure_count+$2,
last_execution=$3, next_execution=$4, updated_at=$3 WHERE id=$5`
	if _, err := tx.Exec(ctx, updJob, successDelta, failureDelta, now, nextExec, jobID); err != nil {
		return translateWriteErr(err)
	}

	return tx.Commit(ctx)
}

func (r *PgxRepository) ListActiveJobs(ctx context.Context) ([]*model.Job, error) {
	rows, err := r.pool.Query(ctx, jobSelectBase+` WHERE status='active'`)
	if err != nil {
		return nil, fmt.Errorf("store: list active jobs: %w", err)
	}
	defer rows.Close()

	var jobs []*model.Job
	for rows.Next() {
		j, err := scanJobRows(rows)
		if err != nil {
			return nil, err
		}
		jobs = append(jobs, j)
	}
	return jobs, rows.Err()
}

func (r *PgxRepository) ListOrphanedRunning(ctx context.Context, olderThan time.Time) ([]int64, error) {
	rows, err := r.pool.Query(ctx, `SELECT id FROM executions WHERE status='running' AND executed_at < $1`, olderThan)
	if err != nil {
		return nil, fmt.Errorf("store: list orphaned running: %w", err)
	}
	defer rows.Close()

	var ids []int64
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

func (r *PgxRepository) PruneExecutions(ctx context.Context, olderThan time.Time) (int64, error) {
	tag, err := r.pool.Exec(ctx, `DELETE FROM executions WHERE executed_at < $1`, olderThan)
	if err != nil {
		return 0, fmt.Errorf("store: prune executions: %w", err)
	}
	return tag.RowsAffected(), nil
}

func translateWriteErr(err error) error {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
		return model.ConflictError(pgErr.Detail)
	}
	return fmt.Errorf("store: write failed: %w", err)
}
