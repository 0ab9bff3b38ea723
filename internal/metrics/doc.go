/*
Package metrics exports metacache activity as Prometheus metrics.

Architecture

	┌─────────────┐
	│  Collector  │  ← implements cache.Recorder
	└──────┬──────┘
	       │
	   ┌───┴────────────────────────────┐
	   │                                │
	┌──▼───────────┐         ┌──────────▼────────┐
	│  Prometheus  │         │  HTTP Endpoints   │
	│   Registry   │         │  /metrics         │
	│  (private)   │         │  /health          │
	│              │         │  /debug/operations│
	└──────────────┘         └───────────────────┘

# Metrics

All names carry the configured namespace and subsystem.

	cache_lookups_total{cache,result}             hit, miss, absent
	cache_inserts_total{cache,kind}               positive, negative
	cache_evictions_total{cache,reason}           ttl, capacity, etag
	cache_entries{cache}                          current size
	backend_operations_total{operation,status}    success, not_found, error
	backend_operation_duration_seconds{operation}
	list_pages_total
	list_page_entries
	errors_total{operation,type}

The cache label is "stat", "symlink" or "pinned". A HEAD that reports a
missing object is recorded with status not_found and is not an error.

# Usage

	collector, err := metrics.NewCollector(metrics.ConfigFrom(cfg.Monitoring.Metrics))
	if err != nil {
		return err
	}
	c := cache.New(cache.WithRecorder(collector))

	if err := collector.Start(ctx); err != nil {
		return err
	}
	defer collector.Stop(context.Background())

A disabled collector has no registry and every Record method returns
immediately, so callers never need to check Enabled.

Each collector owns its registry. Creating several in one process, as tests
do, never conflicts with the global default registry.
*/
package metrics
