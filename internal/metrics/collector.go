package metrics

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"sort"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/objectfs/metacache/internal/config"
	"github.com/objectfs/metacache/pkg/errors"
)

// Collector records cache and backend metrics into a private Prometheus
// registry. It implements cache.Recorder.
type Collector struct {
	mu       sync.RWMutex
	config   *Config
	registry *prometheus.Registry
	logger   *slog.Logger

	// Prometheus metrics
	lookupCounter   *prometheus.CounterVec
	insertCounter   *prometheus.CounterVec
	evictionCounter *prometheus.CounterVec
	entriesGauge    *prometheus.GaugeVec
	backendCounter  *prometheus.CounterVec
	backendDuration *prometheus.HistogramVec
	listPageCounter prometheus.Counter
	listEntriesHist prometheus.Histogram
	errorCounter    *prometheus.CounterVec

	// Internal tracking
	operations map[string]*OperationMetrics
	lastReset  time.Time

	// HTTP server for metrics endpoint
	server *http.Server
}

// Config represents metrics configuration
type Config struct {
	Enabled   bool              `yaml:"enabled"`
	Port      int               `yaml:"port"`
	Path      string            `yaml:"path"`
	Labels    map[string]string `yaml:"labels"`
	Namespace string            `yaml:"namespace"`
	Subsystem string            `yaml:"subsystem"`
}

// ConfigFrom converts the monitoring section of the application config.
func ConfigFrom(mc config.MetricsConfig) *Config {
	return &Config{
		Enabled:   mc.Enabled,
		Port:      mc.Port,
		Path:      mc.Path,
		Labels:    mc.CustomLabels,
		Namespace: mc.Namespace,
	}
}

// OperationMetrics tracks metrics for a specific backend operation
type OperationMetrics struct {
	Count         int64         `json:"count"`
	TotalDuration time.Duration `json:"total_duration"`
	Errors        int64         `json:"errors"`
	LastOperation time.Time     `json:"last_operation"`
	AvgDuration   time.Duration `json:"avg_duration"`
}

// NewCollector creates a new metrics collector
func NewCollector(config *Config) (*Collector, error) {
	if config == nil {
		config = &Config{
			Enabled:   true,
			Port:      9100,
			Path:      "/metrics",
			Namespace: "metacache",
			Labels:    make(map[string]string),
		}
	}
	if config.Path == "" {
		config.Path = "/metrics"
	}

	logger := slog.Default().With("component", "metrics")
	if !config.Enabled {
		return &Collector{config: config, logger: logger}, nil
	}

	collector := &Collector{
		config:     config,
		registry:   prometheus.NewRegistry(),
		logger:     logger,
		operations: make(map[string]*OperationMetrics),
		lastReset:  time.Now(),
	}

	collector.initMetrics()

	if err := collector.registerMetrics(); err != nil {
		return nil, fmt.Errorf("failed to register metrics: %w", err)
	}

	return collector, nil
}

// Enabled reports whether the collector records anything.
func (c *Collector) Enabled() bool {
	return c.config.Enabled
}

// Registry returns the private registry, nil when disabled.
func (c *Collector) Registry() *prometheus.Registry {
	return c.registry
}

// Handler returns the HTTP handler serving the registry.
func (c *Collector) Handler() http.Handler {
	if !c.config.Enabled {
		return http.NotFoundHandler()
	}
	return promhttp.HandlerFor(c.registry, promhttp.HandlerOpts{
		EnableOpenMetrics: true,
	})
}

// Start starts the metrics HTTP endpoint. The server stops when ctx is done.
func (c *Collector) Start(ctx context.Context) error {
	if !c.config.Enabled {
		return nil
	}

	mux := http.NewServeMux()
	mux.Handle(c.config.Path, c.Handler())
	mux.HandleFunc("/health", c.healthHandler)
	mux.HandleFunc("/debug/operations", c.debugOperationsHandler)

	c.server = &http.Server{
		Addr:              fmt.Sprintf(":%d", c.config.Port),
		Handler:           mux,
		ReadHeaderTimeout: 30 * time.Second, // Prevent Slowloris attacks
		ReadTimeout:       60 * time.Second,
		WriteTimeout:      60 * time.Second,
		IdleTimeout:       120 * time.Second,
	}

	go func() {
		if err := c.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			c.logger.Error("metrics server error", "error", err)
		}
	}()

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = c.server.Shutdown(shutdownCtx)
	}()

	c.logger.Info("metrics endpoint started", "port", c.config.Port, "path", c.config.Path)
	return nil
}

// Stop stops the metrics HTTP endpoint
func (c *Collector) Stop(ctx context.Context) error {
	if c.server != nil {
		return c.server.Shutdown(ctx)
	}
	return nil
}

// RecordLookup counts a cache lookup by result (hit, miss, absent).
func (c *Collector) RecordLookup(cache, result string) {
	if !c.config.Enabled {
		return
	}
	c.lookupCounter.With(prometheus.Labels{"cache": cache, "result": result}).Inc()
}

// RecordInsert counts a cache insertion by kind (positive, negative).
func (c *Collector) RecordInsert(cache, kind string) {
	if !c.config.Enabled {
		return
	}
	c.insertCounter.With(prometheus.Labels{"cache": cache, "kind": kind}).Inc()
}

// RecordEviction counts n entries removed for reason (ttl, capacity, etag).
func (c *Collector) RecordEviction(cache, reason string, n int) {
	if !c.config.Enabled || n <= 0 {
		return
	}
	c.evictionCounter.With(prometheus.Labels{"cache": cache, "reason": reason}).Add(float64(n))
}

// SetEntries sets the current entry count of a cache.
func (c *Collector) SetEntries(cache string, n int) {
	if !c.config.Enabled {
		return
	}
	c.entriesGauge.With(prometheus.Labels{"cache": cache}).Set(float64(n))
}

// RecordBackendOperation records a backend call with its duration and
// outcome. A not-found result counts as success.
func (c *Collector) RecordBackendOperation(operation string, duration time.Duration, err error) {
	if !c.config.Enabled {
		return
	}

	failed := err != nil && !errors.IsNotFound(err)

	c.mu.Lock()
	metrics, exists := c.operations[operation]
	if !exists {
		metrics = &OperationMetrics{}
		c.operations[operation] = metrics
	}
	metrics.Count++
	metrics.TotalDuration += duration
	if failed {
		metrics.Errors++
	}
	metrics.LastOperation = time.Now()
	metrics.AvgDuration = time.Duration(int64(metrics.TotalDuration) / metrics.Count)
	c.mu.Unlock()

	status := "success"
	switch {
	case failed:
		status = "error"
	case err != nil:
		status = "not_found"
	}
	c.backendCounter.With(prometheus.Labels{"operation": operation, "status": status}).Inc()
	c.backendDuration.With(prometheus.Labels{"operation": operation}).Observe(duration.Seconds())

	if failed {
		c.RecordError(operation, err)
	}
}

// RecordListPage counts one LIST page and its entry count.
func (c *Collector) RecordListPage(entries int) {
	if !c.config.Enabled {
		return
	}
	c.listPageCounter.Inc()
	c.listEntriesHist.Observe(float64(entries))
}

// RecordError records an error
func (c *Collector) RecordError(operation string, err error) {
	if !c.config.Enabled || err == nil {
		return
	}

	c.errorCounter.With(prometheus.Labels{
		"operation": operation,
		"type":      classifyError(err),
	}).Inc()
}

// GetMetrics returns a copy of the per-operation tracking
func (c *Collector) GetMetrics() map[string]OperationMetrics {
	c.mu.RLock()
	defer c.mu.RUnlock()

	out := make(map[string]OperationMetrics, len(c.operations))
	for k, v := range c.operations {
		out[k] = *v
	}
	return out
}

// ResetMetrics resets the per-operation tracking
func (c *Collector) ResetMetrics() {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.operations = make(map[string]*OperationMetrics)
	c.lastReset = time.Now()
}

// Helper methods

func (c *Collector) initMetrics() {
	ns, sub, labels := c.config.Namespace, c.config.Subsystem, prometheus.Labels(c.config.Labels)

	c.lookupCounter = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace:   ns,
			Subsystem:   sub,
			Name:        "cache_lookups_total",
			Help:        "Total number of metadata cache lookups by result",
			ConstLabels: labels,
		},
		[]string{"cache", "result"},
	)

	c.insertCounter = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace:   ns,
			Subsystem:   sub,
			Name:        "cache_inserts_total",
			Help:        "Total number of metadata cache insertions",
			ConstLabels: labels,
		},
		[]string{"cache", "kind"},
	)

	c.evictionCounter = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace:   ns,
			Subsystem:   sub,
			Name:        "cache_evictions_total",
			Help:        "Total number of metadata cache entries removed",
			ConstLabels: labels,
		},
		[]string{"cache", "reason"},
	)

	c.entriesGauge = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Namespace:   ns,
			Subsystem:   sub,
			Name:        "cache_entries",
			Help:        "Current number of metadata cache entries",
			ConstLabels: labels,
		},
		[]string{"cache"},
	)

	c.backendCounter = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace:   ns,
			Subsystem:   sub,
			Name:        "backend_operations_total",
			Help:        "Total number of object store calls",
			ConstLabels: labels,
		},
		[]string{"operation", "status"},
	)

	c.backendDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace:   ns,
			Subsystem:   sub,
			Name:        "backend_operation_duration_seconds",
			Help:        "Duration of object store calls in seconds",
			Buckets:     prometheus.ExponentialBuckets(0.001, 2, 15), // 1ms to ~32s
			ConstLabels: labels,
		},
		[]string{"operation"},
	)

	c.listPageCounter = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace:   ns,
			Subsystem:   sub,
			Name:        "list_pages_total",
			Help:        "Total number of LIST pages fetched",
			ConstLabels: labels,
		},
	)

	c.listEntriesHist = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Namespace:   ns,
			Subsystem:   sub,
			Name:        "list_page_entries",
			Help:        "Number of entries per LIST page",
			Buckets:     prometheus.ExponentialBuckets(1, 4, 6), // 1 to 1024
			ConstLabels: labels,
		},
	)

	c.errorCounter = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace:   ns,
			Subsystem:   sub,
			Name:        "errors_total",
			Help:        "Total number of errors",
			ConstLabels: labels,
		},
		[]string{"operation", "type"},
	)
}

func (c *Collector) registerMetrics() error {
	metrics := []prometheus.Collector{
		c.lookupCounter,
		c.insertCounter,
		c.evictionCounter,
		c.entriesGauge,
		c.backendCounter,
		c.backendDuration,
		c.listPageCounter,
		c.listEntriesHist,
		c.errorCounter,
	}

	for _, metric := range metrics {
		if err := c.registry.Register(metric); err != nil {
			return err
		}
	}

	return nil
}

func classifyError(err error) string {
	switch errors.CodeOf(err) {
	case errors.ErrCodeOperationTimeout:
		return "timeout"
	case errors.ErrCodeConnectionFailed, errors.ErrCodeNetworkError:
		return "connection"
	case errors.ErrCodeObjectNotFound, errors.ErrCodeFileNotFound, errors.ErrCodeBucketNotFound:
		return "not_found"
	case errors.ErrCodeAccessDenied:
		return "permission"
	case errors.ErrCodeOperationCanceled:
		return "canceled"
	default:
		return "other"
	}
}

// HTTP handlers

func (c *Collector) healthHandler(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte(`{"status":"healthy","service":"metacache-metrics"}`))
}

func (c *Collector) debugOperationsHandler(w http.ResponseWriter, r *http.Request) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	w.Header().Set("Content-Type", "text/plain")

	writef := func(format string, args ...interface{}) { _, _ = fmt.Fprintf(w, format, args...) }

	writef("Backend Operations Summary\n")
	writef("==========================\n\n")
	writef("Uptime: %v\n", time.Since(c.lastReset))
	writef("Last Reset: %v\n\n", c.lastReset)

	if len(c.operations) == 0 {
		writef("No operations recorded.\n")
		return
	}

	writef("%-20s %10s %10s %12s %10s\n", "Operation", "Count", "Errors", "Avg Duration", "Last Op")
	writef("%-20s %10s %10s %12s %10s\n", "---------", "-----", "------", "------------", "-------")

	names := make([]string, 0, len(c.operations))
	for name := range c.operations {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		op := c.operations[name]
		writef("%-20s %10d %10d %12v %10s\n",
			name, op.Count, op.Errors, op.AvgDuration, op.LastOperation.Format("15:04:05"))
	}
}
