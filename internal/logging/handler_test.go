package logging

import (
	"bytes"
	"context"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type mockHandler struct {
	attrs []slog.Attr
}

func (m *mockHandler) Enabled(context.Context, slog.Level) bool { return true }
func (m *mockHandler) Handle(_ context.Context, r slog.Record) error {
	r.Attrs(func(a slog.Attr) bool {
		m.attrs = append(m.attrs, a)
		return true
	})
	return nil
}
func (m *mockHandler) WithAttrs(attrs []slog.Attr) slog.Handler { return m }
func (m *mockHandler) WithGroup(name string) slog.Handler       { return m }

func TestContextHandler_Handle_AddsCorrelationIDs(t *testing.T) {
	mock := &mockHandler{}
	handler := NewContextHandler(mock)

	ctx := context.Background()
	ctx = WithTraceID(ctx, "trace-1")
	ctx = WithRequestID(ctx, "req-1")
	ctx = WithJobID(ctx, 42)
	ctx = WithExecutionID(ctx, 7)
	ctx = WithTrigger(ctx, "cron")
	ctx = WithFiringID(ctx, "firing-1")

	record := slog.NewRecord(time.Now(), slog.LevelInfo, "fired", 0)
	require.NoError(t, handler.Handle(ctx, record))

	attrs := make(map[string]string)
	for _, a := range mock.attrs {
		attrs[a.Key] = a.Value.String()
	}

	assert.Equal(t, "trace-1", attrs[TraceIDKey])
	assert.Equal(t, "req-1", attrs[RequestIDKey])
	assert.Equal(t, "42", attrs[JobIDKey])
	assert.Equal(t, "7", attrs[ExecutionIDKey])
	assert.Equal(t, "cron", attrs[TriggerKey])
	assert.Equal(t, "firing-1", attrs[FiringIDKey])
}

func TestContextHandler_Handle_NoCorrelationIDsWhenAbsent(t *testing.T) {
	mock := &mockHandler{}
	handler := NewContextHandler(mock)

	record := slog.NewRecord(time.Now(), slog.LevelInfo, "no ids", 0)
	require.NoError(t, handler.Handle(context.Background(), record))

	assert.Empty(t, mock.attrs)
}

func TestNewLoggerWithWriter_JSONFormat(t *testing.T) {
	var buf bytes.Buffer
	cfg := DefaultConfig()
	cfg.Format = "json"

	logger := NewLoggerWithWriter(&cfg, &buf)
	logger.Info("hello", slog.String("k", "v"))

	out := buf.String()
	assert.Contains(t, out, `"msg":"hello"`)
	assert.Contains(t, out, `"k":"v"`)
}

func TestNewLoggerWithWriter_TextFormatRespectsLevel(t *testing.T) {
	var buf bytes.Buffer
	cfg := DefaultConfig()
	cfg.Format = "text"
	cfg.Level = slog.LevelWarn

	logger := NewLoggerWithWriter(&cfg, &buf)
	logger.Info("suppressed")
	logger.Warn("kept")

	out := buf.String()
	assert.NotContains(t, out, "suppressed")
	assert.Contains(t, out, "kept")
}
