// Package model holds the durable types shared by the repository, the
// dispatcher, and the invoker: jobs, executions, and the small error
// taxonomy the core surfaces to its callers.
package model

import "errors"

// Kind identifies which error taxonomy bucket an error belongs to. The API
// layer (out of scope here) maps a Kind to a transport status code; the
// core never invents a new one ad hoc.
type Kind string

// Error kinds surfaced by the core.
const (
	KindValidation  Kind = "validation"
	KindNotFound    Kind = "not_found"
	KindConflict    Kind = "conflict"
	KindConcurrency Kind = "concurrency"
	KindInternal    Kind = "scheduler_internal"
)

// Sentinel errors. Use errors.Is against these; use errors.As with a
// *CoreError to recover the Kind and, for validation failures, the field.
var (
	ErrNotFound    = errors.New("model: not found")
	ErrConflict    = errors.New("model: conflict")
	ErrConcurrency = errors.New("model: concurrent modification, retry")
	ErrInternal    = errors.New("model: scheduler internal error")
)

// CoreError is the concrete error type returned by repository operations;
// a cron expression that cronspec.Parse rejects reaches callers as a
// validation CoreError from the repository. It wraps a sentinel (for errors.Is) with a human message and,
// for validation failures, the offending field.
type CoreError struct {
	Kind    Kind
	Field   string // set only for KindValidation
	Message string
	sentinel error
}

func (e *CoreError) Error() string {
	if e.Field != "" {
		return "model: " + string(e.Kind) + ": " + e.Field + ": " + e.Message
	}
	return "model: " + string(e.Kind) + ": " + e.Message
}

// Unwrap lets errors.Is(err, model.ErrNotFound) etc. succeed.
func (e *CoreError) Unwrap() error {
	return e.sentinel
}

// ValidationError reports a single rejected field. Repository operations
// that reject input, including a cron expression the evaluator cannot
// parse, return this; it is never retried.
func ValidationError(field, message string) *CoreError {
	return &CoreError{Kind: KindValidation, Field: field, Message: message}
}

// NotFoundError reports an ownership or soft-delete miss.
func NotFoundError(message string) *CoreError {
	return &CoreError{Kind: KindNotFound, Message: message, sentinel: ErrNotFound}
}

// ConflictError reports a uniqueness violation (e.g. duplicate user email).
func ConflictError(message string) *CoreError {
	return &CoreError{Kind: KindConflict, Message: message, sentinel: ErrConflict}
}

// ConcurrencyError reports a repository transaction conflict. Callers that
// mutate job counters retry a bounded number of times before surfacing this.
func ConcurrencyError(message string) *CoreError {
	return &CoreError{Kind: KindConcurrency, Message: message, sentinel: ErrConcurrency}
}

// InternalError reports an evaluator or dispatcher invariant violation. The
// affected job is disarmed; the process continues running other jobs.
func InternalError(message string) *CoreError {
	return &CoreError{Kind: KindInternal, Message: message, sentinel: ErrInternal}
}
