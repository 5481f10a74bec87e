package retry

import (
	"context"
	"errors"
	"testing"
	"time"
)

func TestRetry_SucceedsOnFirstTry(t *testing.T) {
	attempts := 0
	err := Retry(context.Background(), func() error {
		attempts++
		return nil
	}, NewFixedSequenceBackOff(time.Millisecond))
	if err != nil {
		t.Errorf("expected no error, got %v", err)
	}
	if attempts != 1 {
		t.Errorf("expected 1 attempt, got %d", attempts)
	}
}

func TestRetry_RetriesUntilSequenceExhausted(t *testing.T) {
	attempts := 0
	err := Retry(context.Background(), func() error {
		attempts++
		return errors.New("conflict")
	}, NewFixedSequenceBackOff(time.Millisecond, time.Millisecond, time.Millisecond))
	if err == nil {
		t.Fatal("expected error once the sequence is exhausted")
	}
	if attempts != 4 { // initial attempt + 3 retries
		t.Errorf("expected 4 attempts, got %d", attempts)
	}
}

func TestRetry_StopsOnPermanentError(t *testing.T) {
	attempts := 0
	sentinel := errors.New("not retryable")
	err := Retry(context.Background(), func() error {
		attempts++
		return Permanent(sentinel)
	}, NewFixedSequenceBackOff(time.Millisecond, time.Millisecond))
	if !errors.Is(err, sentinel) {
		t.Errorf("expected sentinel error, got %v", err)
	}
	if attempts != 1 {
		t.Errorf("expected 1 attempt, got %d", attempts)
	}
}

func TestRetry_StopsOnContextCancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	attempts := 0
	err := Retry(ctx, func() error {
		attempts++
		return errors.New("transient")
	}, NewFixedSequenceBackOff(time.Second))
	if !errors.Is(err, context.Canceled) {
		t.Errorf("expected context.Canceled, got %v", err)
	}
	if attempts != 1 {
		t.Errorf("expected 1 attempt before cancellation is observed, got %d", attempts)
	}
}

func TestFixedSequenceBackOff_ResetRewinds(t *testing.T) {
	b := NewFixedSequenceBackOff(10 * time.Millisecond, 20*time.Millisecond)
	if got := b.NextBackOff(); got != 10*time.Millisecond {
		t.Fatalf("expected first delay 10ms, got %v", got)
	}
	b.Reset()
	if got := b.NextBackOff(); got != 10*time.Millisecond {
		t.Fatalf("expected reset to rewind to first delay, got %v", got)
	}
}
