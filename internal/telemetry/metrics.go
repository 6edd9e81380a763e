package telemetry

import (
	"sync"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/metric"
)

const (
	meterName = "github.com/wolfeidau/traceledger"
)

// Metrics holds all the OpenTelemetry metric instruments
type Metrics struct {
	// Operation metrics
	OperationsAppliedTotal  metric.Int64Counter
	OperationsRejectedTotal metric.Int64Counter
	OperationDuration       metric.Float64Histogram

	// Audit log metrics
	AuditRecordsAppendedTotal metric.Int64Counter
	AuditAppendErrorsTotal    metric.Int64Counter
	AuditRecordsRestoredTotal metric.Int64Counter

	// Subscription metrics
	ActiveSubscriptions      metric.Int64UpDownCounter
	HistoricalReplayDuration metric.Float64Histogram
	HistoricalRecordsReplay  metric.Int64Counter
	SubscriberOverflowTotal  metric.Int64Counter

	// Sequencer metrics
	SequencerQueueDepth metric.Int64UpDownCounter
}

var (
	once    sync.Once
	metrics *Metrics
)

// GetMetrics returns the singleton Metrics instance, initializing it if necessary
func GetMetrics() *Metrics {
	once.Do(func() {
		metrics = initMetrics()
	})
	return metrics
}

// initMetrics creates and registers all metric instruments
func initMetrics() *Metrics {
	meter := otel.GetMeterProvider().Meter(meterName)

	m := &Metrics{}

	m.OperationsAppliedTotal, _ = meter.Int64Counter(
		"traceledger.operations.applied.total",
		metric.WithDescription("Total number of mutating operations applied"),
		metric.WithUnit("{operation}"),
	)

	m.OperationsRejectedTotal, _ = meter.Int64Counter(
		"traceledger.operations.rejected.total",
		metric.WithDescription("Total number of operations rejected, by error kind"),
		metric.WithUnit("{operation}"),
	)

	m.OperationDuration, _ = meter.Float64Histogram(
		"traceledger.operations.duration",
		metric.WithDescription("Duration of mutating operations including the audit append"),
		metric.WithUnit("ms"),
	)

	m.AuditRecordsAppendedTotal, _ = meter.Int64Counter(
		"traceledger.audit.appended.total",
		metric.WithDescription("Total number of audit records durably appended"),
		metric.WithUnit("{record}"),
	)

	m.AuditAppendErrorsTotal, _ = meter.Int64Counter(
		"traceledger.audit.append.errors.total",
		metric.WithDescription("Total number of failed audit appends"),
		metric.WithUnit("{error}"),
	)

	m.AuditRecordsRestoredTotal, _ = meter.Int64Counter(
		"traceledger.audit.restored.total",
		metric.WithDescription("Total number of audit records replayed into state on startup"),
		metric.WithUnit("{record}"),
	)

	m.ActiveSubscriptions, _ = meter.Int64UpDownCounter(
		"traceledger.subscriptions.active",
		metric.WithDescription("Number of active audit subscriptions"),
		metric.WithUnit("{subscription}"),
	)

	m.HistoricalReplayDuration, _ = meter.Float64Histogram(
		"traceledger.subscriptions.historical_replay.duration",
		metric.WithDescription("Duration of historical audit replay for a subscription"),
		metric.WithUnit("ms"),
	)

	m.HistoricalRecordsReplay, _ = meter.Int64Counter(
		"traceledger.subscriptions.historical_replay.records.total",
		metric.WithDescription("Total number of historical audit records replayed to subscribers"),
		metric.WithUnit("{record}"),
	)

	m.SubscriberOverflowTotal, _ = meter.Int64Counter(
		"traceledger.subscriptions.overflow.total",
		metric.WithDescription("Total number of subscriptions closed because they fell behind"),
		metric.WithUnit("{subscription}"),
	)

	m.SequencerQueueDepth, _ = meter.Int64UpDownCounter(
		"traceledger.sequencer.queue.depth",
		metric.WithDescription("Number of operations waiting for the sequencer"),
		metric.WithUnit("{operation}"),
	)

	return m
}
