package auction

import "time"

// MetricsCollector receives one observation per processed share event.
type MetricsCollector interface {
	RecordShare(outcome string, duration time.Duration)
}

// NoOpMetricsCollector is used when metrics aren't wired.
type NoOpMetricsCollector struct{}

func (NoOpMetricsCollector) RecordShare(outcome string, duration time.Duration) {}
