/*
Package config provides configuration management for metacache.

Configuration is assembled from three sources, later ones overriding earlier:

	┌─────────────────────────────────────────────┐
	│        Environment Variables                │ ← Highest Priority
	│           (METACACHE_*)                     │
	└─────────────────────────────────────────────┘
	                      │
	┌─────────────────────────────────────────────┐
	│         Configuration File                  │
	│            (YAML format)                    │
	└─────────────────────────────────────────────┘
	                      │
	┌─────────────────────────────────────────────┐
	│           Default Values                    │ ← Lowest Priority
	│        (NewDefault)                         │
	└─────────────────────────────────────────────┘

Command line flags in cmd/metacache are applied on top of the result.

# Sections

	global:      log level, log file, rotation and format
	cache:       metadata cache capacity, TTL and TTL mode, negative caching
	listing:     LIST page size and attribute prefetch concurrency
	storage.s3:  bucket, region, endpoint, key prefix, static credentials
	network:     timeouts and retry policy for backend calls
	monitoring:  Prometheus metrics endpoint

# Example

	global:
	  log_level: INFO
	  log_file: /var/log/metacache.log
	  logging:
	    format: json
	    max_size_mb: 100
	    max_backups: 3

	cache:
	  max_entries: 100000
	  ttl: 15m
	  ttl_mode: refresh        # disabled | absolute | refresh
	  negative_cache: true

	listing:
	  page_size: 1000
	  prefetch_attributes: true
	  prefetch_concurrency: 16

	storage:
	  s3:
	    bucket: my-bucket
	    region: us-west-2
	    prefix: team/data

	network:
	  retry:
	    max_attempts: 3
	    base_delay: 200ms
	    max_delay: 5s

	monitoring:
	  metrics:
	    enabled: true
	    port: 9100

Durations use Go syntax ("90s", "15m"). A cache TTL of zero disables expiry.

# Usage

	cfg := config.NewDefault()
	if err := cfg.LoadFromFile(path); err != nil {
		return err
	}
	if err := cfg.LoadFromEnv(); err != nil {
		return err
	}
	if err := cfg.Validate(); err != nil {
		return err
	}

Load and validation failures are *errors.MetacacheError values with codes
CONFIG_LOAD, INVALID_CONFIG and CONFIG_VALIDATION.
*/
package config
