package observability

import (
	"context"
	"fmt"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// IngestMetrics records inbound webhook processing metrics.
type IngestMetrics interface {
	RecordEvent(ctx context.Context, eventType, outcome string, duration time.Duration)
	RecordAuditFailure(ctx context.Context, eventType string)
}

type ingestMetrics struct {
	events        metric.Int64Counter
	duration      metric.Float64Histogram
	auditFailures metric.Int64Counter
}

// NewIngestMetrics creates IngestMetrics. Returns (nil, nil) when meter is nil (metrics disabled).
func NewIngestMetrics(meter metric.Meter) (IngestMetrics, error) {
	if meter == nil {
		//nolint:nilnil // intentional: callers use "if metrics != nil" when metrics disabled
		return nil, nil
	}

	events, err := meter.Int64Counter(
		MetricNameWebhookEvents,
		metric.WithDescription("Inbound webhook events by event type and processing outcome"),
		metric.WithUnit("1"),
	)
	if err != nil {
		return nil, fmt.Errorf("create webhook events counter: %w", err)
	}

	duration, err := meter.Float64Histogram(
		MetricNameWebhookProcessingDuration,
		metric.WithDescription("Time spent dispatching one inbound event, excluding the audit write"),
		metric.WithUnit("s"),
	)
	if err != nil {
		return nil, fmt.Errorf("create webhook processing duration histogram: %w", err)
	}

	auditFailures, err := meter.Int64Counter(
		MetricNameWebhookAuditFailures,
		metric.WithDescription("Audit log appends that failed; the request outcome is not affected"),
		metric.WithUnit("1"),
	)
	if err != nil {
		return nil, fmt.Errorf("create audit failures counter: %w", err)
	}

	return &ingestMetrics{events: events, duration: duration, auditFailures: auditFailures}, nil
}

func (m *ingestMetrics) RecordEvent(ctx context.Context, eventType, outcome string, duration time.Duration) {
	et := attribute.String(AttrEventType, NormalizeEventType(eventType))
	m.events.Add(ctx, 1, metric.WithAttributes(et,
		attribute.String(AttrOutcome, NormalizeReason(outcome, AllowedOutcomes))))
	m.duration.Record(ctx, duration.Seconds(), metric.WithAttributes(et))
}

func (m *ingestMetrics) RecordAuditFailure(ctx context.Context, eventType string) {
	m.auditFailures.Add(ctx, 1, metric.WithAttributes(attribute.String(AttrEventType, NormalizeEventType(eventType))))
}
