package s3

import (
	"time"

	"github.com/objectfs/metacache/internal/config"
)

// Config represents S3 backend configuration
type Config struct {
	Region          string `yaml:"region"`
	Endpoint        string `yaml:"endpoint"`
	AccessKeyID     string `yaml:"access_key_id"`
	SecretAccessKey string `yaml:"secret_access_key"`
	SessionToken    string `yaml:"session_token"`
	ForcePathStyle  bool   `yaml:"force_path_style"`

	// Retry settings for transient failures
	MaxAttempts int           `yaml:"max_attempts"`
	BaseDelay   time.Duration `yaml:"base_delay"`
	MaxDelay    time.Duration `yaml:"max_delay"`

	// Per-request timeout, zero means none
	RequestTimeout time.Duration `yaml:"request_timeout"`

	// Fail fast after consecutive store failures
	CircuitBreaker   bool          `yaml:"circuit_breaker"`
	FailureThreshold int           `yaml:"failure_threshold"`
	BreakerTimeout   time.Duration `yaml:"breaker_timeout"`

	// Skip the HeadBucket probe in NewBackend
	SkipHealthCheck bool `yaml:"skip_health_check"`
}

// NewDefaultConfig creates a new S3 config with default values
func NewDefaultConfig() *Config {
	return &Config{
		Region:         "us-east-1",
		MaxAttempts:    3,
		BaseDelay:      200 * time.Millisecond,
		MaxDelay:       5 * time.Second,
		RequestTimeout: 30 * time.Second,
	}
}

// ConfigFrom builds a backend config from the application storage and
// network sections.
func ConfigFrom(s3cfg config.S3Config, netcfg config.NetworkConfig) *Config {
	cfg := NewDefaultConfig()
	if s3cfg.Region != "" {
		cfg.Region = s3cfg.Region
	}
	cfg.Endpoint = s3cfg.Endpoint
	cfg.ForcePathStyle = s3cfg.ForcePathStyle
	cfg.AccessKeyID = s3cfg.AccessKeyID
	cfg.SecretAccessKey = s3cfg.SecretAccessKey
	cfg.SessionToken = s3cfg.SessionToken

	if netcfg.Retry.MaxAttempts > 0 {
		cfg.MaxAttempts = netcfg.Retry.MaxAttempts
	}
	if netcfg.Retry.BaseDelay > 0 {
		cfg.BaseDelay = netcfg.Retry.BaseDelay
	}
	if netcfg.Retry.MaxDelay > 0 {
		cfg.MaxDelay = netcfg.Retry.MaxDelay
	}
	if netcfg.Timeouts.Read > 0 {
		cfg.RequestTimeout = netcfg.Timeouts.Read
	}

	cfg.CircuitBreaker = netcfg.CircuitBreaker.Enabled
	cfg.FailureThreshold = netcfg.CircuitBreaker.FailureThreshold
	cfg.BreakerTimeout = netcfg.CircuitBreaker.Timeout
	return cfg
}

func (c *Config) applyDefaults() {
	def := NewDefaultConfig()
	if c.Region == "" {
		c.Region = def.Region
	}
	if c.MaxAttempts <= 0 {
		c.MaxAttempts = def.MaxAttempts
	}
	if c.BaseDelay <= 0 {
		c.BaseDelay = def.BaseDelay
	}
	if c.MaxDelay <= 0 {
		c.MaxDelay = def.MaxDelay
	}
}
