package logging

import "context"

type ctxKey string

const (
	ctxKeyTraceID     ctxKey = "trace_id"
	ctxKeyRequestID   ctxKey = "request_id"
	ctxKeyJobID       ctxKey = "job_id"
	ctxKeyExecutionID ctxKey = "execution_id"
	ctxKeyTrigger     ctxKey = "trigger"
	ctxKeyFiringID    ctxKey = "firing_id"
)

// Log attribute keys used by ContextHandler when it finds a value under the
// matching context key.
const (
	TraceIDKey     = "trace_id"
	RequestIDKey   = "request_id"
	JobIDKey       = "job_id"
	ExecutionIDKey = "execution_id"
	TriggerKey     = "trigger"
	FiringIDKey    = "firing_id"
)

// WithTraceID attaches an OTel trace id to ctx for ContextHandler to surface
// on every record logged against it.
func WithTraceID(ctx context.Context, traceID string) context.Context {
	return context.WithValue(ctx, ctxKeyTraceID, traceID)
}

// GetTraceID returns the trace id stashed by WithTraceID, if any.
func GetTraceID(ctx context.Context) (string, bool) {
	v, ok := ctx.Value(ctxKeyTraceID).(string)
	return v, ok
}

// WithRequestID attaches a control-surface request id to ctx.
func WithRequestID(ctx context.Context, requestID string) context.Context {
	return context.WithValue(ctx, ctxKeyRequestID, requestID)
}

// GetRequestID returns the request id stashed by WithRequestID, if any.
func GetRequestID(ctx context.Context) (string, bool) {
	v, ok := ctx.Value(ctxKeyRequestID).(string)
	return v, ok
}

// WithJobID attaches the id of the job a firing belongs to, so every log
// line emitted while that firing runs — from the invoker through the
// dispatcher's persistence retry — can be correlated without threading the
// id through every function signature.
func WithJobID(ctx context.Context, jobID int64) context.Context {
	return context.WithValue(ctx, ctxKeyJobID, jobID)
}

// GetJobID returns the job id stashed by WithJobID, if any.
func GetJobID(ctx context.Context) (int64, bool) {
	v, ok := ctx.Value(ctxKeyJobID).(int64)
	return v, ok
}

// WithExecutionID attaches the id of the execution row a firing is writing
// to.
func WithExecutionID(ctx context.Context, executionID int64) context.Context {
	return context.WithValue(ctx, ctxKeyExecutionID, executionID)
}

// GetExecutionID returns the execution id stashed by WithExecutionID, if any.
func GetExecutionID(ctx context.Context) (int64, bool) {
	v, ok := ctx.Value(ctxKeyExecutionID).(int64)
	return v, ok
}

// WithTrigger attaches the trigger source ("cron" or "manual") of the
// firing a context belongs to.
func WithTrigger(ctx context.Context, trigger string) context.Context {
	return context.WithValue(ctx, ctxKeyTrigger, trigger)
}

// GetTrigger returns the trigger source stashed by WithTrigger, if any.
func GetTrigger(ctx context.Context) (string, bool) {
	v, ok := ctx.Value(ctxKeyTrigger).(string)
	return v, ok
}

// WithFiringID attaches a per-firing UUID, generated once per invocation
// attempt, distinct from the numeric execution id — it correlates a
// firing's log lines, OTel span, and outbound request header even across
// a RecordExecutionEnd retry that the numeric execution id wouldn't
// survive reading back from until the row exists.
func WithFiringID(ctx context.Context, firingID string) context.Context {
	return context.WithValue(ctx, ctxKeyFiringID, firingID)
}

// GetFiringID returns the firing id stashed by WithFiringID, if any.
func GetFiringID(ctx context.Context) (string, bool) {
	v, ok := ctx.Value(ctxKeyFiringID).(string)
	return v, ok
}
