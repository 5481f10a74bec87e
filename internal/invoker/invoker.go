// Package invoker executes the outbound HTTP request described by a job.
// It never returns an error for a failed invocation: invocation failure is
// an ordinary, recordable model.Outcome. A request that cannot even be
// built is likewise reported as a failed Outcome.
package invoker

import (
	"bytes"
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"strings"
	"sync/atomic"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"go.opentelemetry.io/otel/trace"

	"github.com/cronmasterd/core/internal/logging"
	"github.com/cronmasterd/core/internal/model"
)

const defaultUserAgent = "CronMaster/1.0"

const maxSameOriginRedirects = 5

// Config tunes an HTTPInvoker. Zero values fall back to the defaults below.
type Config struct {
	Timeout           time.Duration // default 30s
	ResponseBodyLimit int64         // default 10 KiB
	UserAgent         string        // default "CronMaster/1.0"
}

func (c Config) withDefaults() Config {
	if c.Timeout <= 0 {
		c.Timeout = 30 * time.Second
	}
	if c.ResponseBodyLimit <= 0 {
		c.ResponseBodyLimit = 10 * 1024
	}
	if c.UserAgent == "" {
		c.UserAgent = defaultUserAgent
	}
	return c
}

// Invoker executes one HTTP call described by a job snapshot.
type Invoker interface {
	Invoke(ctx context.Context, job *model.Job) model.Outcome
}

// HTTPInvoker is the production Invoker. Its *http.Client transport is
// wrapped in otelhttp so every call emits a standard HTTP client span in
// addition to the "cron.invoke" span this package starts explicitly.
type HTTPInvoker struct {
	client *http.Client
	cfg    atomic.Pointer[Config]
	tracer trace.Tracer
}

// New builds an HTTPInvoker. A nil tracer provider falls back to the
// globally configured one (a no-op tracer if OTel was never initialized).
func New(cfg Config, tp trace.TracerProvider) *HTTPInvoker {
	cfg = cfg.withDefaults()
	if tp == nil {
		tp = otel.GetTracerProvider()
	}

	transport := otelhttp.NewTransport(http.DefaultTransport.(*http.Transport).Clone())

	inv := &HTTPInvoker{
		tracer: tp.Tracer("cronmasterd/invoker"),
	}
	inv.cfg.Store(&cfg)
	inv.client = &http.Client{
		Transport:     transport,
		CheckRedirect: inv.checkRedirect,
	}
	return inv
}

// Reconfigure atomically swaps the timeout, response body limit, and
// default user agent for every Invoke call that starts after it returns.
// Safe to call concurrently with Invoke — e.g. from a config hot-reload
// callback.
func (i *HTTPInvoker) Reconfigure(cfg Config) {
	cfg = cfg.withDefaults()
	i.cfg.Store(&cfg)
}

// checkRedirect enforces the redirect policy: follow up to 5 same-origin
// redirects, and drop Authorization on any cross-origin hop.
func (i *HTTPInvoker) checkRedirect(req *http.Request, via []*http.Request) error {
	if len(via) >= maxSameOriginRedirects {
		return fmt.Errorf("invoker: stopped after %d redirects", maxSameOriginRedirects)
	}
	if req.URL.Host != via[0].URL.Host || req.URL.Scheme != via[0].URL.Scheme {
		req.Header.Del("Authorization")
	}
	return nil
}

// Invoke executes one request for job and returns a fully-populated
// Outcome. Invoke bounds the call with Config.Timeout, on top of any
// earlier deadline ctx already carries.
func (i *HTTPInvoker) Invoke(ctx context.Context, job *model.Job) model.Outcome {
	ctx, cancel := context.WithTimeout(ctx, i.cfg.Load().Timeout)
	defer cancel()

	spanAttrs := []attribute.KeyValue{
		attribute.Int64("job.id", job.ID),
		attribute.String("job.method", string(job.Method)),
	}
	firingID, hasFiringID := logging.GetFiringID(ctx)
	if hasFiringID {
		spanAttrs = append(spanAttrs, attribute.String("firing.id", firingID))
	}
	ctx, span := i.tracer.Start(ctx, "cron.invoke", trace.WithAttributes(spanAttrs...))
	defer span.End()

	start := time.Now()
	req, err := i.buildRequest(ctx, job)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "build request")
		return model.Outcome{
			Status:       model.ExecFailed,
			DurationMS:   time.Since(start).Milliseconds(),
			ErrorMessage: strPtr(err.Error()),
		}
	}

	resp, err := i.client.Do(req)
	duration := time.Since(start)
	if err != nil {
		outcome := i.classifyError(ctx, err, duration)
		span.RecordError(err)
		span.SetStatus(codes.Error, outcomeErrOrEmpty(outcome))
		return outcome
	}
	defer resp.Body.Close()

	outcome := i.captureResponse(resp, duration)
	if outcome.Status != model.ExecSuccess {
		span.SetStatus(codes.Error, outcomeErrOrEmpty(outcome))
	}
	span.SetAttributes(attribute.Int("http.status_code", resp.StatusCode))
	return outcome
}

func (i *HTTPInvoker) buildRequest(ctx context.Context, job *model.Job) (*http.Request, error) {
	var body io.Reader
	if job.Body != "" {
		body = strings.NewReader(job.Body)
	}
	req, err := http.NewRequestWithContext(ctx, string(job.Method), job.URL, body)
	if err != nil {
		return nil, fmt.Errorf("invoker: build request: %w", err)
	}
	for k, v := range job.Headers {
		req.Header.Set(k, v)
	}
	if _, ok := job.Headers.Get("User-Agent"); !ok {
		req.Header.Set("User-Agent", i.cfg.Load().UserAgent)
	}
	if job.Body != "" {
		if _, ok := job.Headers.Get("Content-Type"); !ok {
			req.Header.Set("Content-Type", inferContentType(job.Body))
		}
	}
	if firingID, ok := logging.GetFiringID(ctx); ok {
		req.Header.Set("X-Cronmaster-Firing-Id", firingID)
	}
	return req, nil
}

func inferContentType(body string) string {
	trimmed := strings.TrimSpace(body)
	if strings.HasPrefix(trimmed, "{") || strings.HasPrefix(trimmed, "[") {
		return "application/json"
	}
	return "application/octet-stream"
}

// classifyError maps a transport-level failure to one of the categorized
// reasons. ctx.Err() is checked first so a deadline exceeded during dial
// or read is always reported as a timeout, not whatever the underlying
// net error happens to say.
func (i *HTTPInvoker) classifyError(ctx context.Context, err error, duration time.Duration) model.Outcome {
	status := model.ExecFailed
	reason := model.ErrorHTTPNon2xx

	switch {
	case errors.Is(ctx.Err(), context.DeadlineExceeded):
		status = model.ExecTimeout
		reason = model.ErrorTimeout
	case isDNSError(err):
		reason = model.ErrorDNSFailure
	case isConnectionRefused(err):
		reason = model.ErrorConnectRefused
	case isTLSError(err):
		reason = model.ErrorTLSFailure
	default:
		reason = model.ErrorConnectRefused
	}

	msg := fmt.Sprintf("%s: %s", reason, err.Error())
	return model.Outcome{
		Status:       status,
		DurationMS:   duration.Milliseconds(),
		ErrorMessage: &msg,
	}
}

func isDNSError(err error) bool {
	var dnsErr *net.DNSError
	return errors.As(err, &dnsErr)
}

func isConnectionRefused(err error) bool {
	var opErr *net.OpError
	return errors.As(err, &opErr) && strings.Contains(opErr.Err.Error(), "connection refused")
}

func isTLSError(err error) bool {
	var certErr *tls.CertificateVerificationError
	if errors.As(err, &certErr) {
		return true
	}
	return strings.Contains(err.Error(), "tls:") || strings.Contains(err.Error(), "x509:")
}

// captureResponse reads up to ResponseBodyLimit+1 bytes to detect
// truncation, records all response headers verbatim, and classifies
// status 2xx as success.
func (i *HTTPInvoker) captureResponse(resp *http.Response, duration time.Duration) model.Outcome {
	limit := i.cfg.Load().ResponseBodyLimit
	limited := io.LimitReader(resp.Body, limit+1)
	buf, readErr := io.ReadAll(limited)

	truncated := int64(len(buf)) > limit
	if truncated {
		buf = buf[:limit]
	}

	headers := make(map[string]string, len(resp.Header))
	for k := range resp.Header {
		headers[k] = resp.Header.Get(k)
	}

	code := resp.StatusCode
	outcome := model.Outcome{
		DurationMS:      duration.Milliseconds(),
		ResponseCode:    &code,
		ResponseBody:    string(bytes.TrimSpace(buf)),
		ResponseHeaders: headers,
	}

	switch {
	case readErr != nil && readErr != io.EOF:
		outcome.Status = model.ExecFailed
		outcome.ErrorMessage = strPtr(fmt.Sprintf("%s: %s", model.ErrorResponseTruncatedRead, readErr.Error()))
	case resp.StatusCode >= 200 && resp.StatusCode < 300:
		outcome.Status = model.ExecSuccess
	default:
		outcome.Status = model.ExecFailed
		outcome.ErrorMessage = strPtr(fmt.Sprintf("%s: status %d", model.ErrorHTTPNon2xx, resp.StatusCode))
	}
	return outcome
}

func strPtr(s string) *string { return &s }

func outcomeErrOrEmpty(o model.Outcome) string {
	if o.ErrorMessage == nil {
		return ""
	}
	return *o.ErrorMessage
}
