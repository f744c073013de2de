package observability

import (
	"fmt"

	"go.opentelemetry.io/otel/metric"
)

// Metrics holds all metric collectors. When metrics are disabled, the *Metrics is nil;
// components take the individual interfaces and treat nil as "do not record".
type Metrics struct {
	Ingest IngestMetrics
	Cache  CacheMetrics
	API    APIMetrics
	Jobs   JobMetrics
}

// NewMetrics creates every collector from the given meter.
// Returns (nil, nil) when meter is nil (metrics disabled).
func NewMetrics(meter metric.Meter) (*Metrics, error) {
	if meter == nil {
		//nolint:nilnil // intentional: callers use "if metrics != nil" when metrics disabled
		return nil, nil
	}

	ingest, err := NewIngestMetrics(meter)
	if err != nil {
		return nil, fmt.Errorf("ingest metrics: %w", err)
	}

	cache, err := NewCacheMetrics(meter)
	if err != nil {
		return nil, fmt.Errorf("cache metrics: %w", err)
	}

	api, err := NewAPIMetrics(meter)
	if err != nil {
		return nil, fmt.Errorf("api metrics: %w", err)
	}

	jobs, err := NewJobMetrics(meter)
	if err != nil {
		return nil, fmt.Errorf("job metrics: %w", err)
	}

	return &Metrics{Ingest: ingest, Cache: cache, API: api, Jobs: jobs}, nil
}
