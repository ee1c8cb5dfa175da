package config

import (
	"fmt"
	"os"
	"regexp"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

type Config struct {
	Feeflow  FeeflowConfig  `yaml:"feeflow"`
	Server   ServerConfig   `yaml:"server"`
	Channels ChannelsConfig `yaml:"channels"`
	Ledger   LedgerConfig   `yaml:"ledger"`
	Audit    AuditConfig    `yaml:"audit"`
	Metrics  MetricsConfig  `yaml:"metrics"`
	Storage  StorageConfig  `yaml:"storage"`
	Logging  LoggingConfig  `yaml:"logging"`
}

type FeeflowConfig struct {
	Name    string `yaml:"name"`
	Version string `yaml:"version"`
}

type ServerConfig struct {
	Enabled   bool            `yaml:"enabled"`
	Address   string          `yaml:"address"`
	RateLimit RateLimitConfig `yaml:"rate_limit"`
}

type RateLimitConfig struct {
	RequestsPerSecond int `yaml:"requests_per_second"`
	BurstSize         int `yaml:"burst_size"`
}

type ChannelsConfig struct {
	AuditBuffer int `yaml:"audit_buffer"`
}

type LedgerConfig struct {
	Snapshot SnapshotConfig `yaml:"snapshot"`
	Feed     FeedConfig     `yaml:"feed"`
}

// SnapshotConfig drives the daily volume snapshot fetch. KeyPrefix and
// TimeFormat combine into the object key, e.g. volumes/date=2026-08-29.json.
type SnapshotConfig struct {
	Enabled    bool          `yaml:"enabled"`
	KeyPrefix  string        `yaml:"key_prefix"`
	TimeFormat string        `yaml:"time_format"`
	RetryDelay time.Duration `yaml:"retry_delay"`
}

// FeedConfig drives the optional websocket subscription to the ledger's
// push stream of per-account volume updates.
type FeedConfig struct {
	Enabled        bool          `yaml:"enabled"`
	URL            string        `yaml:"url"`
	ReconnectDelay time.Duration `yaml:"reconnect_delay"`
	KeepAlive      time.Duration `yaml:"keep_alive"`
}

type AuditConfig struct {
	Enabled       bool          `yaml:"enabled"`
	KeyPrefix     string        `yaml:"key_prefix"`
	BatchSize     int           `yaml:"batch_size"`
	FlushInterval time.Duration `yaml:"flush_interval"`
	MaxWorkers    int           `yaml:"max_workers"`
}

type MetricsConfig struct {
	ChannelSize   bool             `yaml:"channel_size"`
	QuoteCounters bool             `yaml:"quote_counters"`
	Listen        string           `yaml:"listen"`
	CloudWatch    CloudWatchConfig `yaml:"cloudwatch"`
}

type CloudWatchConfig struct {
	Enabled   bool   `yaml:"enabled"`
	Region    string `yaml:"region"`
	Namespace string `yaml:"namespace"`
	Dashboard string `yaml:"dashboard"`
}

type StorageConfig struct {
	S3 S3Config `yaml:"s3"`
}

type S3Config struct {
	Enabled         bool   `yaml:"enabled"`
	Bucket          string `yaml:"bucket"`
	Region          string `yaml:"region"`
	Endpoint        string `yaml:"endpoint"`
	AccessKeyID     string `yaml:"access_key_id"`
	SecretAccessKey string `yaml:"secret_access_key"`
	PathStyle       bool   `yaml:"path_style"`
}

type LoggingConfig struct {
	Level         string                 `yaml:"level"`
	Format        string                 `yaml:"format"`
	Output        string                 `yaml:"output"`
	MaxAge        int                    `yaml:"max_age"`
	Fields        map[string]interface{} `yaml:"fields"`
	DashboardName string                 `yaml:"dashboard_name"`
}

func LoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	config := Config{
		Metrics: MetricsConfig{
			ChannelSize:   true,
			QuoteCounters: true,
		},
	}
	if err := yaml.Unmarshal(data, &config); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	// Override S3 settings from environment variables if available
	if config.Storage.S3.Enabled {
		if v := os.Getenv("AWS_ACCESS_KEY_ID"); v != "" {
			config.Storage.S3.AccessKeyID = strings.TrimSpace(v)
		}
		if v := os.Getenv("AWS_SECRET_ACCESS_KEY"); v != "" {
			config.Storage.S3.SecretAccessKey = strings.TrimSpace(v)
		}
		if v := os.Getenv("AWS_REGION"); v != "" {
			config.Storage.S3.Region = strings.TrimSpace(v)
		}
		if v := os.Getenv("S3_BUCKET"); v != "" {
			config.Storage.S3.Bucket = strings.TrimSpace(v)
		}
	}

	config.Storage.S3.Bucket = strings.TrimSpace(config.Storage.S3.Bucket)
	applyDefaults(&config)

	if err := validateConfig(&config); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	return &config, nil
}

func applyDefaults(cfg *Config) {
	if cfg.Channels.AuditBuffer <= 0 {
		cfg.Channels.AuditBuffer = 1024
	}
	if cfg.Server.Address == "" {
		cfg.Server.Address = "0.0.0.0:8080"
	}
	if cfg.Ledger.Snapshot.KeyPrefix == "" {
		cfg.Ledger.Snapshot.KeyPrefix = "volumes"
	}
	if cfg.Ledger.Snapshot.TimeFormat == "" {
		cfg.Ledger.Snapshot.TimeFormat = "2006-01-02"
	}
	if cfg.Ledger.Snapshot.RetryDelay <= 0 {
		cfg.Ledger.Snapshot.RetryDelay = 10 * time.Minute
	}
	if cfg.Ledger.Feed.ReconnectDelay <= 0 {
		cfg.Ledger.Feed.ReconnectDelay = 5 * time.Second
	}
	if cfg.Ledger.Feed.KeepAlive <= 0 {
		cfg.Ledger.Feed.KeepAlive = 20 * time.Second
	}
	if cfg.Audit.KeyPrefix == "" {
		cfg.Audit.KeyPrefix = "quotes"
	}
	if cfg.Audit.BatchSize <= 0 {
		cfg.Audit.BatchSize = 500
	}
	if cfg.Audit.FlushInterval <= 0 {
		cfg.Audit.FlushInterval = time.Minute
	}
	if cfg.Audit.MaxWorkers <= 0 {
		cfg.Audit.MaxWorkers = 1
	}
}

func validateConfig(cfg *Config) error {
	if cfg.Feeflow.Name == "" {
		return fmt.Errorf("feeflow.name is required")
	}

	if cfg.Feeflow.Version == "" {
		return fmt.Errorf("feeflow.version is required")
	}

	if cfg.Server.Enabled {
		if cfg.Server.RateLimit.RequestsPerSecond <= 0 {
			return fmt.Errorf("server.rate_limit.requests_per_second must be greater than 0")
		}
		if cfg.Server.RateLimit.BurstSize <= 0 {
			return fmt.Errorf("server.rate_limit.burst_size must be greater than 0")
		}
	}

	if cfg.Ledger.Feed.Enabled && cfg.Ledger.Feed.URL == "" {
		return fmt.Errorf("ledger.feed.url is required when the feed is enabled")
	}

	if cfg.Ledger.Snapshot.Enabled && !cfg.Storage.S3.Enabled {
		return fmt.Errorf("ledger.snapshot requires storage.s3 to be enabled")
	}

	if cfg.Audit.Enabled && !cfg.Storage.S3.Enabled {
		return fmt.Errorf("audit requires storage.s3 to be enabled")
	}

	if cfg.Storage.S3.Enabled {
		if cfg.Storage.S3.Bucket == "" {
			return fmt.Errorf("storage.s3.bucket is required when S3 is enabled")
		}
		if cfg.Storage.S3.Region == "" {
			return fmt.Errorf("storage.s3.region is required when S3 is enabled")
		}
		if cfg.Storage.S3.AccessKeyID == "" || cfg.Storage.S3.SecretAccessKey == "" {
			return fmt.Errorf("storage.s3.access_key_id and storage.s3.secret_access_key are required when S3 is enabled")
		}
		if !isValidS3Bucket(cfg.Storage.S3.Bucket) {
			return fmt.Errorf("storage.s3.bucket '%s' is invalid", cfg.Storage.S3.Bucket)
		}
	}

	return nil
}

var s3BucketRegexp = regexp.MustCompile(`^[a-z0-9][a-z0-9.-]{1,61}[a-z0-9]$`)

func isValidS3Bucket(name string) bool {
	if len(name) < 3 || len(name) > 63 {
		return false
	}
	if strings.Contains(name, "..") || strings.HasPrefix(name, ".") || strings.HasSuffix(name, ".") {
		return false
	}
	return s3BucketRegexp.MatchString(name)
}
