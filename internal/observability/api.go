package observability

import (
	"context"
	"fmt"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// APIMetrics records rejections made by HTTP middleware before a handler runs.
type APIMetrics interface {
	RecordRequestBodyTooLarge(ctx context.Context)
	RecordRateLimited(ctx context.Context)
	RecordSignatureFailure(ctx context.Context, reason string)
}

type apiMetrics struct {
	requestBodyTooLarge metric.Int64Counter
	rateLimited         metric.Int64Counter
	signatureFailures   metric.Int64Counter
}

// NewAPIMetrics creates APIMetrics. Returns (nil, nil) when meter is nil (metrics disabled).
func NewAPIMetrics(meter metric.Meter) (APIMetrics, error) {
	if meter == nil {
		//nolint:nilnil // intentional: callers use "if metrics != nil" when metrics disabled
		return nil, nil
	}

	tooLarge, err := meter.Int64Counter(
		MetricNameRequestBodyTooLarge,
		metric.WithDescription("Requests rejected because the body exceeded the configured limit (413)"),
		metric.WithUnit("1"),
	)
	if err != nil {
		return nil, fmt.Errorf("create request body too large counter: %w", err)
	}

	rateLimited, err := meter.Int64Counter(
		MetricNameRateLimited,
		metric.WithDescription("Webhook requests rejected by the rate limiter (429)"),
		metric.WithUnit("1"),
	)
	if err != nil {
		return nil, fmt.Errorf("create rate limited counter: %w", err)
	}

	signatureFailures, err := meter.Int64Counter(
		MetricNameSignatureFailures,
		metric.WithDescription("Webhook requests rejected by signature verification (401), by reason"),
		metric.WithUnit("1"),
	)
	if err != nil {
		return nil, fmt.Errorf("create signature failures counter: %w", err)
	}

	return &apiMetrics{
		requestBodyTooLarge: tooLarge,
		rateLimited:         rateLimited,
		signatureFailures:   signatureFailures,
	}, nil
}

func (a *apiMetrics) RecordRequestBodyTooLarge(ctx context.Context) {
	a.requestBodyTooLarge.Add(ctx, 1)
}

func (a *apiMetrics) RecordRateLimited(ctx context.Context) {
	a.rateLimited.Add(ctx, 1)
}

func (a *apiMetrics) RecordSignatureFailure(ctx context.Context, reason string) {
	a.signatureFailures.Add(ctx, 1,
		metric.WithAttributes(attribute.String(AttrReason, NormalizeReason(reason, AllowedSignatureReasons))))
}
