package ledger

import "github.com/shopspring/decimal"

// MetricsCollector receives operation outcomes from the engine.
type MetricsCollector interface {
	RecordTransaction(operation string, amount decimal.Decimal)
	RecordError(operation, errType string)
}

// NoopMetricsCollector discards all metrics.
type NoopMetricsCollector struct{}

func (*NoopMetricsCollector) RecordTransaction(string, decimal.Decimal) {}
func (*NoopMetricsCollector) RecordError(string, string)               {}
