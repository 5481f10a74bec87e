package retry

import (
	"context"
	"errors"
	"time"
)

// Operation is a function executed by Retry. It should return nil on
// success, or an error if the attempt failed.
type Operation func() error

// Notify is called with the error and the upcoming delay after each failed
// attempt that will be retried.
type Notify func(error, time.Duration)

// PermanentError signals that the operation should not be retried.
type PermanentError struct {
	Err error
}

func (e *PermanentError) Error() string { return e.Err.Error() }
func (e *PermanentError) Unwrap() error { return e.Err }

// Permanent wraps err so Retry stops immediately instead of retrying it.
func Permanent(err error) error {
	if err == nil {
		return nil
	}
	return &PermanentError{Err: err}
}

// Retry runs operation until it succeeds, returns a *PermanentError, b
// stops the sequence, or ctx is cancelled. operation always runs at least
// once.
func Retry(ctx context.Context, operation Operation, b BackOff) error {
	return RetryNotify(ctx, operation, b, nil)
}

// RetryNotify is Retry with a callback invoked before each retry sleep.
func RetryNotify(ctx context.Context, operation Operation, b BackOff, notify Notify) error {
	b.Reset()
	for {
		err := operation()
		if err == nil {
			return nil
		}

		var perm *PermanentError
		if errors.As(err, &perm) {
			return perm.Err
		}

		next := b.NextBackOff()
		if next == Stop {
			return err
		}

		if notify != nil {
			notify(err, next)
		}

		timer := time.NewTimer(next)
		select {
		case <-ctx.Done():
			timer.Stop()
			return ctx.Err()
		case <-timer.C:
		}
	}
}
