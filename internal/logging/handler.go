package logging

import (
	"context"
	"log/slog"
)

// ContextHandler wraps another slog.Handler and enriches every record with
// whatever correlation fields the call site stashed on ctx via WithTraceID,
// WithRequestID, WithJobID, WithExecutionID, WithTrigger, or WithFiringID.
type ContextHandler struct {
	slog.Handler
}

// NewContextHandler wraps h.
func NewContextHandler(h slog.Handler) *ContextHandler {
	return &ContextHandler{Handler: h}
}

// Handle adds the context's correlation fields as attributes before
// delegating to the wrapped handler.
func (h *ContextHandler) Handle(ctx context.Context, r slog.Record) error {
	if traceID, ok := GetTraceID(ctx); ok {
		r.AddAttrs(slog.String(TraceIDKey, traceID))
	}
	if requestID, ok := GetRequestID(ctx); ok {
		r.AddAttrs(slog.String(RequestIDKey, requestID))
	}
	if jobID, ok := GetJobID(ctx); ok {
		r.AddAttrs(slog.Int64(JobIDKey, jobID))
	}
	if execID, ok := GetExecutionID(ctx); ok {
		r.AddAttrs(slog.Int64(ExecutionIDKey, execID))
	}
	if trigger, ok := GetTrigger(ctx); ok {
		r.AddAttrs(slog.String(TriggerKey, trigger))
	}
	if firingID, ok := GetFiringID(ctx); ok {
		r.AddAttrs(slog.String(FiringIDKey, firingID))
	}
	return h.Handler.Handle(ctx, r)
}

// WithAttrs preserves the ContextHandler wrapper across slog's With().
func (h *ContextHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	return &ContextHandler{Handler: h.Handler.WithAttrs(attrs)}
}

// WithGroup preserves the ContextHandler wrapper across slog's WithGroup().
func (h *ContextHandler) WithGroup(name string) slog.Handler {
	return &ContextHandler{Handler: h.Handler.WithGroup(name)}
}
