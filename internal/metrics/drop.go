package metrics

import "tickflow/logger"

// DropMetric identifies the metric name emitted when inbound data is dropped.
type DropMetric string

const (
	// DropMetricInvalidTick records ticks rejected by boundary validation.
	DropMetricInvalidTick DropMetric = "invalid_ticks_dropped"
	// DropMetricMalformedMessage records stream messages that failed to parse.
	DropMetricMalformedMessage DropMetric = "malformed_messages_dropped"
	// DropMetricChannelFull records batches dropped because the raw channel was full.
	DropMetricChannelFull DropMetric = "raw_batches_dropped"
	// DropMetricStaleHistorical records historical responses discarded after a symbol switch.
	DropMetricStaleHistorical DropMetric = "stale_historical_dropped"
)

// EmitDropMetric logs and emits a metric representing dropped inbound data.
// The metric value is always incremented by one so callers should invoke
// this helper for each dropped message. Optional metadata (symbol, stage)
// is added to the metric fields when provided which enables downstream
// aggregation per stream type.
func EmitDropMetric(log *logger.Log, metric DropMetric, symbol, stage string) {
	fields := logger.Fields{}
	if symbol != "" {
		fields["symbol"] = symbol
	}
	if stage != "" {
		fields["stage"] = stage
	}

	AddTicksDropped(string(metric), 1)
	log.LogMetric("drops", string(metric), 1, "counter", fields)
}
