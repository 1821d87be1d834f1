package keyauth

import (
	"context"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"
)

const instrumentationName = "bearloader/internal/keyauth"

// Metrics holds the OpenTelemetry instruments for the license client. A
// nil *Metrics is valid and records nothing, so tests and embedders can
// skip metric setup entirely.
type Metrics struct {
	validations metric.Int64Counter
	cacheHits   metric.Int64Counter
	cacheMisses metric.Int64Counter
	failovers   metric.Int64Counter
	retries     metric.Int64Counter
	refreshes   metric.Int64Counter
	duration    metric.Float64Histogram
}

// NewMetrics creates the client instruments on the given meter. Pass the
// result to NewClient; exporters are the embedder's concern.
func NewMetrics(meter metric.Meter) (*Metrics, error) {
	m := &Metrics{}
	var err error

	if m.validations, err = meter.Int64Counter("keyauth.validations",
		metric.WithDescription("License validation attempts by outcome")); err != nil {
		return nil, err
	}
	if m.cacheHits, err = meter.Int64Counter("keyauth.cache.hits",
		metric.WithDescription("Response cache hits")); err != nil {
		return nil, err
	}
	if m.cacheMisses, err = meter.Int64Counter("keyauth.cache.misses",
		metric.WithDescription("Response cache misses")); err != nil {
		return nil, err
	}
	if m.failovers, err = meter.Int64Counter("keyauth.endpoint.failovers",
		metric.WithDescription("Switches to the alternate endpoint")); err != nil {
		return nil, err
	}
	if m.retries, err = meter.Int64Counter("keyauth.request.retries",
		metric.WithDescription("Numeric retry attempts")); err != nil {
		return nil, err
	}
	if m.refreshes, err = meter.Int64Counter("keyauth.session.refreshes",
		metric.WithDescription("Successful session refreshes")); err != nil {
		return nil, err
	}
	if m.duration, err = meter.Float64Histogram("keyauth.operation.duration",
		metric.WithDescription("Client operation duration"),
		metric.WithUnit("ms")); err != nil {
		return nil, err
	}

	return m, nil
}

func (m *Metrics) recordValidation(ctx context.Context, outcome string) {
	if m == nil {
		return
	}
	m.validations.Add(ctx, 1, metric.WithAttributes(attribute.String("outcome", outcome)))
}

func (m *Metrics) recordCacheHit(ctx context.Context) {
	if m == nil {
		return
	}
	m.cacheHits.Add(ctx, 1)
}

func (m *Metrics) recordCacheMiss(ctx context.Context) {
	if m == nil {
		return
	}
	m.cacheMisses.Add(ctx, 1)
}

func (m *Metrics) recordFailover(ctx context.Context) {
	if m == nil {
		return
	}
	m.failovers.Add(ctx, 1)
}

func (m *Metrics) recordRetry(ctx context.Context) {
	if m == nil {
		return
	}
	m.retries.Add(ctx, 1)
}

func (m *Metrics) recordRefresh(ctx context.Context) {
	if m == nil {
		return
	}
	m.refreshes.Add(ctx, 1)
}

func (m *Metrics) recordDuration(ctx context.Context, operation string, ms float64) {
	if m == nil {
		return
	}
	m.duration.Record(ctx, ms, metric.WithAttributes(attribute.String("operation", operation)))
}

// tracer returns the package tracer from the global provider
func tracer() trace.Tracer {
	return otel.Tracer(instrumentationName)
}
