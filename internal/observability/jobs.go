package observability

import (
	"context"
	"fmt"
	"sync/atomic"

	"go.opentelemetry.io/otel/metric"
)

// JobMetrics records background job metrics (River queue depth, retention purges).
type JobMetrics interface {
	SetRiverQueueDepth(depth int64)
	RecordWebhookLogsPurged(ctx context.Context, count int64)
}

type jobMetrics struct {
	queueDepth atomic.Int64
	purged     metric.Int64Counter
}

// NewJobMetrics creates JobMetrics. Returns (nil, nil) when meter is nil (metrics disabled).
func NewJobMetrics(meter metric.Meter) (JobMetrics, error) {
	if meter == nil {
		//nolint:nilnil // intentional: callers use "if metrics != nil" when metrics disabled
		return nil, nil
	}

	m := &jobMetrics{}

	_, err := meter.Int64ObservableGauge(
		MetricNameRiverQueueDepth,
		metric.WithDescription("River jobs waiting in the default queue (available, retryable, scheduled)"),
		metric.WithInt64Callback(func(_ context.Context, o metric.Int64Observer) error {
			o.Observe(m.queueDepth.Load())

			return nil
		}),
	)
	if err != nil {
		return nil, fmt.Errorf("create river queue depth gauge: %w", err)
	}

	m.purged, err = meter.Int64Counter(
		MetricNameWebhookLogsPurged,
		metric.WithDescription("Webhook log rows deleted by the retention job"),
		metric.WithUnit("1"),
	)
	if err != nil {
		return nil, fmt.Errorf("create webhook logs purged counter: %w", err)
	}

	return m, nil
}

func (m *jobMetrics) SetRiverQueueDepth(depth int64) {
	m.queueDepth.Store(depth)
}

func (m *jobMetrics) RecordWebhookLogsPurged(ctx context.Context, count int64) {
	m.purged.Add(ctx, count)
}
