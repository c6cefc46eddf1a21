package telemetry

import (
	"context"
	"database/sql"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/uptrace/bun"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// Metric attribute keys
const (
	AttrHTTPMethod     = "http.method"
	AttrHTTPRoute      = "http.route"
	AttrHTTPStatusCode = "http.status_code"

	AttrDBOperation = "db.operation"

	AttrAuthMethod  = "auth.method"
	AttrAuthSuccess = "auth.success"

	AttrAttendanceStep = "attendance.step"
)

// instruments creates counters and histograms on one meter and keeps the
// first error, so constructors can declare everything and check once.
type instruments struct {
	meter metric.Meter
	err   error
}

func newInstruments(scope string) *instruments {
	return &instruments{meter: otel.Meter(scope)}
}

func (b *instruments) counter(name, desc, unit string) metric.Int64Counter {
	c, err := b.meter.Int64Counter(name, metric.WithDescription(desc), metric.WithUnit(unit))
	if err != nil && b.err == nil {
		b.err = err
	}
	return c
}

func (b *instruments) histogram(name, desc string, bounds ...float64) metric.Float64Histogram {
	h, err := b.meter.Float64Histogram(name,
		metric.WithDescription(desc),
		metric.WithUnit("ms"),
		metric.WithExplicitBucketBoundaries(bounds...),
	)
	if err != nil && b.err == nil {
		b.err = err
	}
	return h
}

func sinceMs(start time.Time) float64 {
	return float64(time.Since(start).Microseconds()) / 1000
}

// ServerMetrics counts page and API requests per chi route.
type ServerMetrics struct {
	Requests metric.Int64Counter
	Duration metric.Float64Histogram
	Errors   metric.Int64Counter // 5xx only
}

// NewServerMetrics creates the HTTP instruments on the global meter provider.
func NewServerMetrics() (*ServerMetrics, error) {
	b := newInstruments("eventhive/http")
	m := &ServerMetrics{
		Requests: b.counter("http.server.request.count", "HTTP requests served", "{request}"),
		Duration: b.histogram("http.server.request.duration", "HTTP request latency",
			5, 10, 25, 50, 100, 250, 500, 1000, 2500, 5000),
		Errors: b.counter("http.server.error.count", "HTTP requests answered with 5xx", "{error}"),
	}
	if b.err != nil {
		return nil, b.err
	}
	return m, nil
}

// RecordRequest records one request.
func (m *ServerMetrics) RecordRequest(ctx context.Context, method, route string, status int, durationMs float64) {
	attrs := metric.WithAttributes(
		attribute.String(AttrHTTPMethod, method),
		attribute.String(AttrHTTPRoute, route),
		attribute.String(AttrHTTPStatusCode, strconv.Itoa(status)),
	)
	m.Requests.Add(ctx, 1, attrs)
	m.Duration.Record(ctx, durationMs, attrs)
	if status >= http.StatusInternalServerError {
		m.Errors.Add(ctx, 1, attrs)
	}
}

// Middleware records every request against its route pattern, e.g.
// /edit_event/{id} rather than /edit_event/42.
func (m *ServerMetrics) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)

		route := r.URL.Path
		if rctx := chi.RouteContext(r.Context()); rctx != nil && rctx.RoutePattern() != "" {
			route = rctx.RoutePattern()
		}
		status := ww.Status()
		if status == 0 {
			status = http.StatusOK
		}
		m.RecordRequest(r.Context(), r.Method, route, status, sinceMs(start))
	})
}

// DatabaseMetrics is a bun.QueryHook timing every query.
type DatabaseMetrics struct {
	Queries  metric.Int64Counter
	Duration metric.Float64Histogram
	Errors   metric.Int64Counter
}

var _ bun.QueryHook = (*DatabaseMetrics)(nil)

// NewDatabaseMetrics creates the query instruments.
func NewDatabaseMetrics() (*DatabaseMetrics, error) {
	b := newInstruments("eventhive/database")
	d := &DatabaseMetrics{
		Queries: b.counter("db.query.count", "Database queries executed", "{query}"),
		Duration: b.histogram("db.query.duration", "Database query latency",
			1, 5, 10, 25, 50, 100, 250, 500, 1000, 2000),
		Errors: b.counter("db.query.error.count", "Database queries that failed", "{error}"),
	}
	if b.err != nil {
		return nil, b.err
	}
	return d, nil
}

// BeforeQuery implements bun.QueryHook.
func (d *DatabaseMetrics) BeforeQuery(ctx context.Context, _ *bun.QueryEvent) context.Context {
	return ctx
}

// AfterQuery implements bun.QueryHook. sql.ErrNoRows is a lookup miss, not a failure.
func (d *DatabaseMetrics) AfterQuery(ctx context.Context, event *bun.QueryEvent) {
	attrs := metric.WithAttributes(attribute.String(AttrDBOperation, event.Operation()))
	d.Queries.Add(ctx, 1, attrs)
	d.Duration.Record(ctx, sinceMs(event.StartTime), attrs)
	if event.Err != nil && !errors.Is(event.Err, sql.ErrNoRows) {
		d.Errors.Add(ctx, 1, attrs)
	}
}

// AuthMetrics counts login attempts.
type AuthMetrics struct {
	Attempts metric.Int64Counter
	Failures metric.Int64Counter
}

// NewAuthMetrics creates the login instruments.
func NewAuthMetrics() (*AuthMetrics, error) {
	b := newInstruments("eventhive/auth")
	a := &AuthMetrics{
		Attempts: b.counter("auth.attempt.count", "Login attempts", "{attempt}"),
		Failures: b.counter("auth.failure.count", "Rejected login attempts", "{failure}"),
	}
	if b.err != nil {
		return nil, b.err
	}
	return a, nil
}

// RecordAuth records a login attempt.
func (a *AuthMetrics) RecordAuth(ctx context.Context, method string, success bool) {
	attrs := metric.WithAttributes(
		attribute.String(AttrAuthMethod, method),
		attribute.Bool(AttrAuthSuccess, success),
	)
	a.Attempts.Add(ctx, 1, attrs)
	if !success {
		a.Failures.Add(ctx, 1, attrs)
	}
}

// Attendance steps recorded by AttendanceMetrics.
const (
	StepRegistered   = "registered"
	StepUnregistered = "unregistered"
	StepCheckedIn    = "checked_in"
	StepRescanned    = "rescanned"
	StepScanRejected = "scan_rejected"
	StepFeedback     = "feedback"
)

// AttendanceMetrics counts registration lifecycle transitions. A nil
// *AttendanceMetrics records nothing.
type AttendanceMetrics struct {
	Transitions metric.Int64Counter
}

// NewAttendanceMetrics creates the lifecycle counter.
func NewAttendanceMetrics() (*AttendanceMetrics, error) {
	b := newInstruments("eventhive/attendance")
	m := &AttendanceMetrics{
		Transitions: b.counter("attendance.transition.count", "Registration lifecycle transitions", "{transition}"),
	}
	if b.err != nil {
		return nil, b.err
	}
	return m, nil
}

// Record counts one transition.
func (m *AttendanceMetrics) Record(ctx context.Context, step string) {
	if m == nil {
		return
	}
	m.Transitions.Add(ctx, 1, metric.WithAttributes(attribute.String(AttrAttendanceStep, step)))
}
