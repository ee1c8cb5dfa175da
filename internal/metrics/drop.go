package metrics

import "feeflow/logger"

// DropMetric identifies the metric name emitted when channel messages are dropped.
type DropMetric string

const (
	// DropMetricQuoteAudit records quote audit records dropped on a full buffer.
	DropMetricQuoteAudit DropMetric = "quote_audit_records_dropped"
	// DropMetricLedgerUpdate records ledger volume updates dropped before apply.
	DropMetricLedgerUpdate DropMetric = "ledger_updates_dropped"
)

// EmitDropMetric logs and emits a metric representing a dropped channel message. The
// metric value is always incremented by one so callers should invoke this helper for
// each dropped message. Optional metadata (venue, account, stage) is added to the
// metric fields when provided which enables downstream aggregation per venue.
func EmitDropMetric(log *logger.Log, metric DropMetric, venue, account, stage string) {
	fields := logger.Fields{}
	if venue != "" {
		fields["venue"] = venue
	}
	if account != "" {
		fields["account"] = account
	}
	if stage != "" {
		fields["stage"] = stage
	}

	EmitMetric(log, "channel_drops", string(metric), 1, "counter", fields)
}
