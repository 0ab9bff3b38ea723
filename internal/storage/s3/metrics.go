package s3

import (
	"sync"
	"time"
)

// BackendMetrics tracks S3 backend request metrics
type BackendMetrics struct {
	Requests        int64         `json:"requests"`
	Errors          int64         `json:"errors"`
	NotFound        int64         `json:"not_found"`
	Retries         int64         `json:"retries"`
	BytesDownloaded int64         `json:"bytes_downloaded"`
	AverageLatency  time.Duration `json:"average_latency"`
	LastError       string        `json:"last_error"`
	LastErrorTime   time.Time     `json:"last_error_time"`
	BreakerState    string        `json:"breaker_state,omitempty"`
}

// Observer receives one event per backend call. metrics.Collector
// satisfies it.
type Observer interface {
	RecordBackendOperation(operation string, duration time.Duration, err error)
	RecordListPage(entries int)
}

type nopObserver struct{}

func (nopObserver) RecordBackendOperation(string, time.Duration, error) {}
func (nopObserver) RecordListPage(int)                                  {}

// MetricsCollector aggregates backend metrics in memory
type MetricsCollector struct {
	mu      sync.RWMutex
	metrics BackendMetrics
}

// NewMetricsCollector creates a new metrics collector
func NewMetricsCollector() *MetricsCollector {
	return &MetricsCollector{}
}

// RecordMetrics records operation metrics with duration and error status
func (mc *MetricsCollector) RecordMetrics(duration time.Duration, isError bool) {
	mc.mu.Lock()
	defer mc.mu.Unlock()

	mc.metrics.Requests++
	if isError {
		mc.metrics.Errors++
	}

	// Rolling average latency
	if mc.metrics.Requests == 1 {
		mc.metrics.AverageLatency = duration
	} else {
		mc.metrics.AverageLatency = time.Duration(
			(int64(mc.metrics.AverageLatency)*9 + int64(duration)) / 10,
		)
	}
}

// RecordError records an error occurrence
func (mc *MetricsCollector) RecordError(err error, at time.Time) {
	mc.mu.Lock()
	defer mc.mu.Unlock()

	mc.metrics.LastError = err.Error()
	mc.metrics.LastErrorTime = at
}

// RecordNotFound counts a lookup of a missing object
func (mc *MetricsCollector) RecordNotFound() {
	mc.mu.Lock()
	mc.metrics.NotFound++
	mc.mu.Unlock()
}

// RecordRetry counts one retried attempt
func (mc *MetricsCollector) RecordRetry() {
	mc.mu.Lock()
	mc.metrics.Retries++
	mc.mu.Unlock()
}

// RecordBytesDownloaded records downloaded bytes
func (mc *MetricsCollector) RecordBytesDownloaded(bytes int64) {
	mc.mu.Lock()
	mc.metrics.BytesDownloaded += bytes
	mc.mu.Unlock()
}

// GetMetrics returns a snapshot of the current metrics
func (mc *MetricsCollector) GetMetrics() BackendMetrics {
	mc.mu.RLock()
	defer mc.mu.RUnlock()
	return mc.metrics
}
