package store

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/cronmasterd/core/internal/model"
)

const jobSelectBase = `SELECT id, user_id, name, description, url, method, headers, body,
  cron_expression, timezone, status, success_count, failure_count,
  last_execution, next_execution, created_at, updated_at FROM jobs`

// rowScanner is satisfied by both pgx.Row (QueryRow) and pgx.Rows (Query),
// letting scanJob and scanJobRows share one Scan call shape.
type rowScanner interface {
	Scan(dest ...any) error
}

func scanJob(row rowScanner) (*model.Job, error) {
	return scan(row)
}

func scanJobRows(rows pgx.Rows) (*model.Job, error) {
	return scan(rows)
}

func scan(row rowScanner) (*model.Job, error) {
	var j model.Job
	var method, status string
	var headersJSON []byte

	err := row.Scan(&j.ID, &j.UserID, &j.Name, &j.Description, &j.URL, &method, &headersJSON,
		&j.Body, &j.CronExpr, &j.Timezone, &status, &j.SuccessCount, &j.FailureCount,
		&j.LastExecution, &j.NextExecution, &j.CreatedAt, &j.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, model.NotFoundError("job not found")
		}
		return nil, fmt.Errorf("store: scan job: %w", err)
	}

	j.Method = model.Method(method)
	j.Status = model.JobStatus(status)
	if len(headersJSON) > 0 {
		if err := json.Unmarshal(headersJSON, &j.Headers); err != nil {
			return nil, fmt.Errorf("store: unmarshal headers: %w", err)
		}
	}
	return &j, nil
}
