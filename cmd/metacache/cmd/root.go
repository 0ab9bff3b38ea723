// Package cmd implements the metacache command line: metadata queries
// against a bucket, answered through the metadata cache.
package cmd

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/objectfs/metacache/internal/cache"
	"github.com/objectfs/metacache/internal/config"
	"github.com/objectfs/metacache/internal/filesystem"
	"github.com/objectfs/metacache/internal/metrics"
	"github.com/objectfs/metacache/internal/storage/s3"
	"github.com/objectfs/metacache/pkg/utils"
)

var (
	configFile string
	logLevel   string
	bucket     string
	withStats  bool
	metricsOn  bool
)

var rootCmd = &cobra.Command{
	Use:           "metacache",
	Short:         "Cached POSIX metadata for an S3 bucket",
	SilenceUsage:  true,
	SilenceErrors: true,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configFile, "config", "", "config file (YAML)")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "log level override (DEBUG, INFO, WARN, ERROR)")
	rootCmd.PersistentFlags().StringVar(&bucket, "bucket", "", "bucket override")
	rootCmd.PersistentFlags().BoolVar(&withStats, "stats", false, "print cache statistics on exit")
	rootCmd.PersistentFlags().BoolVar(&metricsOn, "metrics", false, "serve Prometheus metrics while running")
}

// Execute runs the root command and exits non-zero on failure.
func Execute() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		stop()
		fmt.Fprintln(os.Stderr, "metacache:", err)
		os.Exit(1)
	}
}

// app is the wired metadata stack shared by the subcommands.
type app struct {
	meta      *filesystem.Metadata
	backend   *s3.Backend
	collector *metrics.Collector
	logs      io.Closer
	logger    *slog.Logger
}

func loadConfig() (*config.Configuration, error) {
	cfg := config.NewDefault()
	if configFile != "" {
		if err := cfg.LoadFromFile(configFile); err != nil {
			return nil, err
		}
	}
	if err := cfg.LoadFromEnv(); err != nil {
		return nil, err
	}

	if logLevel != "" {
		cfg.Global.LogLevel = logLevel
	}
	if bucket != "" {
		cfg.Storage.S3.Bucket = bucket
	}
	if metricsOn {
		cfg.Monitoring.Metrics.Enabled = true
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if cfg.Storage.S3.Bucket == "" {
		return nil, fmt.Errorf("no bucket configured: set storage.s3.bucket or --bucket")
	}
	return cfg, nil
}

func newApp(ctx context.Context) (*app, error) {
	cfg, err := loadConfig()
	if err != nil {
		return nil, err
	}

	logger, logs, err := utils.NewLogger(utils.LogConfig{
		Level:      cfg.Global.LogLevel,
		Format:     cfg.Global.Logging.Format,
		File:       cfg.Global.LogFile,
		MaxSizeMB:  cfg.Global.Logging.MaxSizeMB,
		MaxBackups: cfg.Global.Logging.MaxBackups,
		MaxAgeDays: cfg.Global.Logging.MaxAgeDays,
		Compress:   cfg.Global.Logging.Compress,
	})
	if err != nil {
		return nil, err
	}
	slog.SetDefault(logger)

	collector, err := metrics.NewCollector(metrics.ConfigFrom(cfg.Monitoring.Metrics))
	if err != nil {
		_ = logs.Close()
		return nil, err
	}
	if err := collector.Start(ctx); err != nil {
		_ = logs.Close()
		return nil, err
	}

	backend, err := s3.NewBackend(ctx, cfg.Storage.S3.Bucket,
		s3.ConfigFrom(cfg.Storage.S3, cfg.Network),
		s3.WithObserver(collector),
		s3.WithLogger(logger),
	)
	if err != nil {
		_ = logs.Close()
		return nil, err
	}

	c, err := cache.FromConfig(cfg.Cache,
		cache.WithRecorder(collector),
		cache.WithLogger(logger),
	)
	if err != nil {
		_ = logs.Close()
		return nil, err
	}

	fsCfg := filesystem.ConfigFrom(cfg.Listing, cfg.Storage.S3)
	fsCfg.Logger = logger

	logger.Debug("metadata stack ready",
		"bucket", cfg.Storage.S3.Bucket,
		"prefix", cfg.Storage.S3.Prefix,
		"max_entries", cfg.Cache.MaxEntries,
		"ttl", cfg.Cache.TTL,
		"ttl_mode", cfg.Cache.TTLMode)

	return &app{
		meta:      filesystem.NewMetadata(backend, c, fsCfg),
		backend:   backend,
		collector: collector,
		logs:      logs,
		logger:    logger,
	}, nil
}

func (a *app) close(w io.Writer) {
	if withStats {
		printStats(w, a.meta.Cache())
		printBackendStats(w, a.backend.GetMetrics())
	}
	_ = a.collector.Stop(context.Background())
	_ = a.logs.Close()
}

// withApp wires the stack, runs fn and tears the stack down.
func withApp(cmd *cobra.Command, fn func(ctx context.Context, a *app) error) error {
	ctx, cancel := context.WithCancel(cmd.Context())
	defer cancel()

	a, err := newApp(ctx)
	if err != nil {
		return err
	}
	defer a.close(cmd.ErrOrStderr())
	return fn(ctx, a)
}

func printStats(w io.Writer, c *cache.Cache) {
	s := c.Stats()
	fmt.Fprintf(w, "cache: %d/%d entries, %d symlinks, %d pinned, hits %d, misses %d, negative hits %d, hit rate %.1f%%\n",
		s.Entries, s.Capacity, s.SymlinkEntries, s.PinnedEntries,
		s.Hits, s.Misses, s.NegativeHits, s.HitRate*100)
}

func printBackendStats(w io.Writer, m s3.BackendMetrics) {
	fmt.Fprintf(w, "s3: %d requests, %d errors, %d not found, %d retries, avg latency %s",
		m.Requests, m.Errors, m.NotFound, m.Retries, m.AverageLatency.Round(time.Microsecond))
	if m.BreakerState != "" {
		fmt.Fprintf(w, ", breaker %s", m.BreakerState)
	}
	fmt.Fprintln(w)
	if m.LastError != "" {
		fmt.Fprintf(w, "s3: last error at %s: %s\n", m.LastErrorTime.Format(time.RFC3339), m.LastError)
	}
}
