package observability

import (
	"context"
	"strconv"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// Metrics holds the service's OpenTelemetry instruments. A nil *Metrics
// records nothing.
type Metrics struct {
	requests    metric.Int64Counter
	errors      metric.Int64Counter
	duration    metric.Float64Histogram
	transitions metric.Int64Counter
	burnout     metric.Int64Counter
	assignments metric.Int64Counter
}

// NewMetrics registers instruments on meter.
func NewMetrics(meter metric.Meter) (*Metrics, error) {
	m := &Metrics{}
	var err error
	if m.requests, err = meter.Int64Counter("modcenter.http.requests",
		metric.WithDescription("HTTP requests served")); err != nil {
		return nil, err
	}
	if m.errors, err = meter.Int64Counter("modcenter.http.errors",
		metric.WithDescription("HTTP requests that ended in a domain error")); err != nil {
		return nil, err
	}
	if m.duration, err = meter.Float64Histogram("modcenter.http.duration",
		metric.WithUnit("ms"),
		metric.WithDescription("HTTP request latency")); err != nil {
		return nil, err
	}
	if m.transitions, err = meter.Int64Counter("modcenter.ticket.transitions",
		metric.WithDescription("Ticket lifecycle transitions by resulting status")); err != nil {
		return nil, err
	}
	if m.burnout, err = meter.Int64Counter("modcenter.burnout.checks",
		metric.WithDescription("Burnout classifications by level")); err != nil {
		return nil, err
	}
	if m.assignments, err = meter.Int64Counter("modcenter.assignment.decisions",
		metric.WithDescription("Assignment engine outcomes")); err != nil {
		return nil, err
	}
	return m, nil
}

// RecordRequest counts a served request and its latency.
func (m *Metrics) RecordRequest(path, method string, status int, duration time.Duration) {
	if m == nil {
		return
	}
	attrs := metric.WithAttributes(
		attribute.String("route", path),
		attribute.String("method", method),
		attribute.String("status", strconv.Itoa(status)),
	)
	ctx := context.Background()
	m.requests.Add(ctx, 1, attrs)
	m.duration.Record(ctx, float64(duration)/float64(time.Millisecond), attrs)
}

// RecordError counts a request that failed with code.
func (m *Metrics) RecordError(path, method, code string) {
	if m == nil {
		return
	}
	m.errors.Add(context.Background(), 1, metric.WithAttributes(
		attribute.String("route", path),
		attribute.String("method", method),
		attribute.String("code", code),
	))
}

// RecordTransition counts a ticket moving into status.
func (m *Metrics) RecordTransition(ctx context.Context, status string) {
	if m == nil {
		return
	}
	m.transitions.Add(ctx, 1, metric.WithAttributes(attribute.String("status", status)))
}

// RecordBurnout counts a burnout classification.
func (m *Metrics) RecordBurnout(ctx context.Context, level string) {
	if m == nil {
		return
	}
	m.burnout.Add(ctx, 1, metric.WithAttributes(attribute.String("level", level)))
}

// RecordAssignment counts an assignment engine outcome such as "selected",
// "fallback" or "none".
func (m *Metrics) RecordAssignment(ctx context.Context, outcome string) {
	if m == nil {
		return
	}
	m.assignments.Add(ctx, 1, metric.WithAttributes(attribute.String("outcome", outcome)))
}
