package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v2"

	"github.com/objectfs/metacache/pkg/errors"
)

// Configuration represents the complete application configuration
type Configuration struct {
	Global     GlobalConfig     `yaml:"global"`
	Cache      CacheConfig      `yaml:"cache"`
	Listing    ListingConfig    `yaml:"listing"`
	Storage    StorageConfig    `yaml:"storage"`
	Network    NetworkConfig    `yaml:"network"`
	Monitoring MonitoringConfig `yaml:"monitoring"`
}

// GlobalConfig represents global application settings
type GlobalConfig struct {
	LogLevel string        `yaml:"log_level"`
	LogFile  string        `yaml:"log_file"`
	Logging  LoggingConfig `yaml:"logging"`
}

// LoggingConfig represents log output and rotation settings
type LoggingConfig struct {
	Format     string `yaml:"format"`
	MaxSizeMB  int    `yaml:"max_size_mb"`
	MaxBackups int    `yaml:"max_backups"`
	MaxAgeDays int    `yaml:"max_age_days"`
	Compress   bool   `yaml:"compress"`
}

// CacheConfig represents metadata cache configuration
type CacheConfig struct {
	MaxEntries    int           `yaml:"max_entries"`
	TTL           time.Duration `yaml:"ttl"`
	TTLMode       string        `yaml:"ttl_mode"`
	NegativeCache bool          `yaml:"negative_cache"`
	DefaultUID    uint32        `yaml:"default_uid"`
	DefaultGID    uint32        `yaml:"default_gid"`
}

// ListingConfig represents directory listing settings
type ListingConfig struct {
	PageSize            int  `yaml:"page_size"`
	PrefetchAttributes  bool `yaml:"prefetch_attributes"`
	PrefetchConcurrency int  `yaml:"prefetch_concurrency"`
}

// StorageConfig represents backend storage settings
type StorageConfig struct {
	S3 S3Config `yaml:"s3"`
}

// S3Config represents S3 backend settings
type S3Config struct {
	Bucket          string `yaml:"bucket"`
	Region          string `yaml:"region"`
	Endpoint        string `yaml:"endpoint"`
	Prefix          string `yaml:"prefix"`
	ForcePathStyle  bool   `yaml:"force_path_style"`
	AccessKeyID     string `yaml:"access_key_id"`
	SecretAccessKey string `yaml:"secret_access_key"`
	SessionToken    string `yaml:"session_token"`
}

// NetworkConfig represents network configuration
type NetworkConfig struct {
	Timeouts       TimeoutConfig        `yaml:"timeouts"`
	Retry          RetryConfig          `yaml:"retry"`
	CircuitBreaker CircuitBreakerConfig `yaml:"circuit_breaker"`
}

// TimeoutConfig represents timeout settings
type TimeoutConfig struct {
	Connect time.Duration `yaml:"connect"`
	Read    time.Duration `yaml:"read"`
}

// RetryConfig represents retry settings
type RetryConfig struct {
	MaxAttempts int           `yaml:"max_attempts"`
	BaseDelay   time.Duration `yaml:"base_delay"`
	MaxDelay    time.Duration `yaml:"max_delay"`
}

// CircuitBreakerConfig represents circuit breaker settings
type CircuitBreakerConfig struct {
	Enabled          bool          `yaml:"enabled"`
	FailureThreshold int           `yaml:"failure_threshold"`
	Timeout          time.Duration `yaml:"timeout"`
}

// MonitoringConfig represents monitoring settings
type MonitoringConfig struct {
	Metrics MetricsConfig `yaml:"metrics"`
}

// MetricsConfig represents metrics settings
type MetricsConfig struct {
	Enabled      bool              `yaml:"enabled"`
	Port         int               `yaml:"port"`
	Path         string            `yaml:"path"`
	Namespace    string            `yaml:"namespace"`
	CustomLabels map[string]string `yaml:"custom_labels"`
}

// NewDefault returns a configuration with sensible defaults
func NewDefault() *Configuration {
	return &Configuration{
		Global: GlobalConfig{
			LogLevel: "INFO",
			LogFile:  "",
			Logging: LoggingConfig{
				Format:     "text",
				MaxSizeMB:  100,
				MaxBackups: 3,
				MaxAgeDays: 28,
				Compress:   true,
			},
		},
		Cache: CacheConfig{
			MaxEntries:    100000,
			TTL:           900 * time.Second,
			TTLMode:       "absolute",
			NegativeCache: true,
		},
		Listing: ListingConfig{
			PageSize:            1000,
			PrefetchAttributes:  true,
			PrefetchConcurrency: 16,
		},
		Storage: StorageConfig{
			S3: S3Config{
				Region: "us-east-1",
			},
		},
		Network: NetworkConfig{
			Timeouts: TimeoutConfig{
				Connect: 10 * time.Second,
				Read:    30 * time.Second,
			},
			Retry: RetryConfig{
				MaxAttempts: 3,
				BaseDelay:   200 * time.Millisecond,
				MaxDelay:    5 * time.Second,
			},
			CircuitBreaker: CircuitBreakerConfig{
				Enabled:          true,
				FailureThreshold: 5,
				Timeout:          60 * time.Second,
			},
		},
		Monitoring: MonitoringConfig{
			Metrics: MetricsConfig{
				Enabled:   false,
				Port:      9100,
				Path:      "/metrics",
				Namespace: "metacache",
				CustomLabels: map[string]string{
					"service": "metacache",
				},
			},
		},
	}
}

// LoadFromFile loads configuration from a YAML file
func (c *Configuration) LoadFromFile(filename string) error {
	data, err := os.ReadFile(filename)
	if err != nil {
		return errors.NewError(errors.ErrCodeConfigLoad, "failed to read config file").
			WithComponent("config").WithContext("file", filename).WithCause(err)
	}

	if err := yaml.Unmarshal(data, c); err != nil {
		return errors.NewError(errors.ErrCodeConfigLoad, "failed to parse config file").
			WithComponent("config").WithContext("file", filename).WithCause(err)
	}

	return nil
}

// LoadFromEnv loads configuration from METACACHE_* environment variables.
// Malformed numeric and duration values are reported as errors.
func (c *Configuration) LoadFromEnv() error {
	// Global settings
	if val := os.Getenv("METACACHE_LOG_LEVEL"); val != "" {
		c.Global.LogLevel = val
	}
	if val := os.Getenv("METACACHE_LOG_FILE"); val != "" {
		c.Global.LogFile = val
	}
	if val := os.Getenv("METACACHE_LOG_FORMAT"); val != "" {
		c.Global.Logging.Format = val
	}

	// Cache settings
	if val := os.Getenv("METACACHE_CACHE_MAX_ENTRIES"); val != "" {
		n, err := strconv.Atoi(val)
		if err != nil {
			return envError("METACACHE_CACHE_MAX_ENTRIES", val, err)
		}
		c.Cache.MaxEntries = n
	}
	if val := os.Getenv("METACACHE_CACHE_TTL"); val != "" {
		d, err := time.ParseDuration(val)
		if err != nil {
			return envError("METACACHE_CACHE_TTL", val, err)
		}
		c.Cache.TTL = d
	}
	if val := os.Getenv("METACACHE_CACHE_TTL_MODE"); val != "" {
		c.Cache.TTLMode = val
	}
	if val := os.Getenv("METACACHE_NEGATIVE_CACHE"); val != "" {
		c.Cache.NegativeCache = strings.ToLower(val) == "true"
	}

	// Listing settings
	if val := os.Getenv("METACACHE_LIST_PAGE_SIZE"); val != "" {
		n, err := strconv.Atoi(val)
		if err != nil {
			return envError("METACACHE_LIST_PAGE_SIZE", val, err)
		}
		c.Listing.PageSize = n
	}

	// Storage settings
	if val := os.Getenv("METACACHE_S3_BUCKET"); val != "" {
		c.Storage.S3.Bucket = val
	}
	if val := os.Getenv("METACACHE_S3_REGION"); val != "" {
		c.Storage.S3.Region = val
	}
	if val := os.Getenv("METACACHE_S3_ENDPOINT"); val != "" {
		c.Storage.S3.Endpoint = val
	}
	if val := os.Getenv("METACACHE_S3_PREFIX"); val != "" {
		c.Storage.S3.Prefix = val
	}
	if val := os.Getenv("METACACHE_S3_FORCE_PATH_STYLE"); val != "" {
		c.Storage.S3.ForcePathStyle = strings.ToLower(val) == "true"
	}

	// Monitoring settings
	if val := os.Getenv("METACACHE_METRICS_ENABLED"); val != "" {
		c.Monitoring.Metrics.Enabled = strings.ToLower(val) == "true"
	}
	if val := os.Getenv("METACACHE_METRICS_PORT"); val != "" {
		port, err := strconv.Atoi(val)
		if err != nil {
			return envError("METACACHE_METRICS_PORT", val, err)
		}
		c.Monitoring.Metrics.Port = port
	}

	return nil
}

func envError(name, val string, cause error) error {
	return errors.Newf(errors.ErrCodeInvalidConfig, "invalid value for %s", name).
		WithComponent("config").WithContext("value", val).WithCause(cause)
}

// SaveToFile saves the configuration to a YAML file
func (c *Configuration) SaveToFile(filename string) error {
	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	if err := os.MkdirAll(filepath.Dir(filename), 0750); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	if err := os.WriteFile(filename, data, 0600); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	return nil
}

// Validate validates the configuration
func (c *Configuration) Validate() error {
	validLogLevels := []string{"DEBUG", "INFO", "WARN", "ERROR"}
	logLevelValid := false
	for _, level := range validLogLevels {
		if strings.ToUpper(c.Global.LogLevel) == level {
			logLevelValid = true
			break
		}
	}
	if !logLevelValid {
		return validationError("invalid log_level: %s (must be one of: %s)",
			c.Global.LogLevel, strings.Join(validLogLevels, ", "))
	}

	switch strings.ToLower(c.Global.Logging.Format) {
	case "", "text", "json":
	default:
		return validationError("invalid logging format: %s (must be text or json)", c.Global.Logging.Format)
	}

	if c.Cache.MaxEntries < 0 {
		return validationError("max_entries must not be negative")
	}
	if c.Cache.TTL < 0 {
		return validationError("ttl must not be negative")
	}
	switch strings.ToLower(c.Cache.TTLMode) {
	case "", "disabled", "none", "off", "absolute", "refresh", "refresh_on_hit", "interval":
	default:
		return validationError("invalid ttl_mode: %s (must be one of: disabled, absolute, refresh)", c.Cache.TTLMode)
	}

	if c.Listing.PageSize <= 0 || c.Listing.PageSize > 1000 {
		return validationError("page_size must be between 1 and 1000")
	}
	if c.Listing.PrefetchConcurrency <= 0 {
		return validationError("prefetch_concurrency must be greater than 0")
	}

	if c.Network.Retry.MaxAttempts <= 0 {
		return validationError("max_attempts must be greater than 0")
	}

	if c.Network.CircuitBreaker.Enabled && c.Network.CircuitBreaker.FailureThreshold <= 0 {
		return validationError("circuit_breaker.failure_threshold must be greater than 0")
	}

	if (c.Storage.S3.AccessKeyID == "") != (c.Storage.S3.SecretAccessKey == "") {
		return validationError("access_key_id and secret_access_key must be set together")
	}

	if c.Monitoring.Metrics.Enabled && (c.Monitoring.Metrics.Port <= 0 || c.Monitoring.Metrics.Port > 65535) {
		return validationError("invalid metrics port: %d", c.Monitoring.Metrics.Port)
	}

	return nil
}

func validationError(format string, args ...interface{}) error {
	return errors.Newf(errors.ErrCodeConfigValidation, format, args...).WithComponent("config")
}
