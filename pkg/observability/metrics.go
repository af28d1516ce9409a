package observability

import (
	"context"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// EngineMetrics holds the decision-engine instruments. The zero value is a
// usable no-op, so callers never need nil checks.
type EngineMetrics struct {
	decisionCounter    metric.Int64Counter
	projectionDuration metric.Float64Histogram
	cacheHits          metric.Int64Counter
	cacheMisses        metric.Int64Counter
}

func newEngineMetrics(meter metric.Meter) (*EngineMetrics, error) {
	m := &EngineMetrics{}
	var err error

	m.decisionCounter, err = meter.Int64Counter("redline.decisions.total",
		metric.WithDescription("Decisions appended, by action type"),
		metric.WithUnit("{decision}"),
	)
	if err != nil {
		return nil, err
	}

	m.projectionDuration, err = meter.Float64Histogram("redline.projection.duration",
		metric.WithDescription("Time to replay a clause projection"),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(0.0001, 0.0005, 0.001, 0.005, 0.01, 0.05, 0.1, 0.5),
	)
	if err != nil {
		return nil, err
	}

	m.cacheHits, err = meter.Int64Counter("redline.projection.cache.hits",
		metric.WithUnit("{lookup}"),
	)
	if err != nil {
		return nil, err
	}

	m.cacheMisses, err = meter.Int64Counter("redline.projection.cache.misses",
		metric.WithUnit("{lookup}"),
	)
	if err != nil {
		return nil, err
	}
	return m, nil
}

// RecordDecision counts one appended decision.
func (m *EngineMetrics) RecordDecision(ctx context.Context, action string) {
	if m.decisionCounter != nil {
		m.decisionCounter.Add(ctx, 1, metric.WithAttributes(attribute.String("action", action)))
	}
}

// RecordProjection records one projection replay.
func (m *EngineMetrics) RecordProjection(ctx context.Context, d time.Duration) {
	if m.projectionDuration != nil {
		m.projectionDuration.Record(ctx, d.Seconds())
	}
}

// RecordCache counts one cache lookup.
func (m *EngineMetrics) RecordCache(ctx context.Context, hit bool) {
	if hit {
		if m.cacheHits != nil {
			m.cacheHits.Add(ctx, 1)
		}
		return
	}
	if m.cacheMisses != nil {
		m.cacheMisses.Add(ctx, 1)
	}
}
