// Package observability provides OpenTelemetry metrics and tracing for the webhook service.
package observability

import (
	"github.com/agendopro/webhook/internal/datatypes"
)

// Metric names (Prometheus / OpenTelemetry).
const (
	MetricNameWebhookEvents             = "agendopro_webhook_events_total"
	MetricNameWebhookProcessingDuration = "agendopro_webhook_processing_duration_seconds"
	MetricNameWebhookAuditFailures      = "agendopro_webhook_audit_failures_total"
	MetricNameCacheHits                 = "agendopro_cache_hits_total"
	MetricNameCacheMisses               = "agendopro_cache_misses_total"
	MetricNameRequestBodyTooLarge       = "agendopro_request_body_too_large_total"
	MetricNameRateLimited               = "agendopro_rate_limited_total"
	MetricNameSignatureFailures         = "agendopro_signature_failures_total"
	MetricNameRiverQueueDepth           = "agendopro_river_queue_depth"
	MetricNameWebhookLogsPurged         = "agendopro_webhook_logs_purged_total"
)

// Attribute keys.
const (
	AttrEventType = "event_type"
	AttrOutcome   = "outcome"
	AttrReason    = "reason"
	AttrCache     = "cache"
)

// AllowedOutcomes for agendopro_webhook_events_total. Mirrors agendopro.Outcome values.
var AllowedOutcomes = map[string]bool{
	"created":                true,
	"updated":                true,
	"status_changed":         true,
	"skipped_no_account":     true,
	"skipped_no_appointment": true,
	"skipped_no_external_id": true,
	"ignored":                true,
	"failed":                 true,
}

// AllowedSignatureReasons for agendopro_signature_failures_total.
var AllowedSignatureReasons = map[string]bool{
	"missing_headers": true,
	"invalid":         true,
	"read_failed":     true,
}

// AllowedCacheNames for agendopro_cache_{hits,misses}_total.
var AllowedCacheNames = map[string]bool{
	"account_by_professional_id": true,
}

// NormalizeEventType returns eventType if it is a recognized event kind, otherwise "unknown".
// Inbound event strings are attacker-controlled, so they never reach a label unfiltered.
func NormalizeEventType(eventType string) string {
	if datatypes.IsValidEventType(eventType) {
		return eventType
	}

	return "unknown"
}

// NormalizeReason returns reason if in allowed, otherwise "other".
func NormalizeReason(reason string, allowed map[string]bool) string {
	if allowed[reason] {
		return reason
	}

	return "other"
}

// NormalizeCacheName returns name if in AllowedCacheNames, otherwise "other".
func NormalizeCacheName(name string) string {
	return NormalizeReason(name, AllowedCacheNames)
}
