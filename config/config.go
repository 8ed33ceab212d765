package config

import (
	"errors"
	"fmt"
	"os"
	"regexp"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"histflow/models"
)

// ErrInvalidConfiguration marks a global run parameter that fails
// validation. It is fatal for the whole run before any instrument is
// processed.
var ErrInvalidConfiguration = errors.New("invalid configuration")

type Config struct {
	Histflow HistflowConfig `yaml:"histflow"`
	Download DownloadConfig `yaml:"download"`
	Reader   ReaderConfig   `yaml:"reader"`
	Source   SourceConfig   `yaml:"source"`
	Storage  StorageConfig  `yaml:"storage"`
	Metrics  MetricsConfig  `yaml:"metrics"`
	Logging  LoggingConfig  `yaml:"logging"`
}

type HistflowConfig struct {
	Name    string `yaml:"name"`
	Version string `yaml:"version"`
}

// DownloadConfig holds the raw (string-token) run parameters supplied by the
// config file or CLI flags. DownloadParams parses them against the closed
// enums.
type DownloadConfig struct {
	Tickers      []string `yaml:"tickers"`
	SecurityType string   `yaml:"security_type"`
	Resolution   string   `yaml:"resolution"`
	Market       string   `yaml:"market"`
	Start        string   `yaml:"start"`
	End          string   `yaml:"end"`
	MaxWorkers   int      `yaml:"max_workers"`
}

type ReaderConfig struct {
	Timeout        time.Duration        `yaml:"timeout"`
	RateLimit      RateLimitConfig      `yaml:"rate_limit"`
	Retry          RetryConfig          `yaml:"retry"`
	ConnectionPool ConnectionPoolConfig `yaml:"connection_pool"`
}

type RateLimitConfig struct {
	RequestsPerSecond int `yaml:"requests_per_second"`
	BurstSize         int `yaml:"burst_size"`
}

type RetryConfig struct {
	MaxAttempts int           `yaml:"max_attempts"`
	BaseDelay   time.Duration `yaml:"base_delay"`
	MaxDelay    time.Duration `yaml:"max_delay"`
}

type ConnectionPoolConfig struct {
	MaxIdleConns    int           `yaml:"max_idle_conns"`
	MaxConnsPerHost int           `yaml:"max_conns_per_host"`
	IdleConnTimeout time.Duration `yaml:"idle_conn_timeout"`
}

type SourceConfig struct {
	CryptoProvider string              `yaml:"crypto_provider"`
	Binance        BinanceSourceConfig `yaml:"binance"`
	Bybit          BybitSourceConfig   `yaml:"bybit"`
	Rest           RestSourceConfig    `yaml:"rest"`
}

type BinanceSourceConfig struct {
	URL string `yaml:"url"`
}

type BybitSourceConfig struct {
	URL      string `yaml:"url"`
	Category string `yaml:"category"`
}

// RestSourceConfig configures the generic JSON bar source used for
// non-crypto security types.
type RestSourceConfig struct {
	URL       string `yaml:"url"`
	AuthToken string `yaml:"auth_token"`
}

type StorageConfig struct {
	Root    string        `yaml:"root"`
	Formats FormatsConfig `yaml:"formats"`
	S3      S3Config      `yaml:"s3"`
}

type FormatsConfig struct {
	Parquet ParquetConfig `yaml:"parquet"`
	Csv     CsvConfig     `yaml:"csv"`
}

type ParquetConfig struct {
	Enabled     bool   `yaml:"enabled"`
	Compression string `yaml:"compression"`
}

type CsvConfig struct {
	Enabled bool `yaml:"enabled"`
}

type S3Config struct {
	Enabled         bool   `yaml:"enabled"`
	Bucket          string `yaml:"bucket"`
	Prefix          string `yaml:"prefix"`
	Region          string `yaml:"region"`
	AccessKeyID     string `yaml:"access_key_id"`
	SecretAccessKey string `yaml:"secret_access_key"`
}

type MetricsConfig struct {
	CloudWatch CloudWatchConfig `yaml:"cloudwatch"`
}

type CloudWatchConfig struct {
	Enabled   bool   `yaml:"enabled"`
	Region    string `yaml:"region"`
	Namespace string `yaml:"namespace"`
}

type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
	Output string `yaml:"output"`
	MaxAge int    `yaml:"max_age"`
}

func LoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	// Expand ${VAR} environment variables before parsing
	expanded := os.ExpandEnv(string(data))

	config := Config{}
	if err := yaml.Unmarshal([]byte(expanded), &config); err != nil {
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
	if cfg.Download.MaxWorkers <= 0 {
		cfg.Download.MaxWorkers = 1
	}
	if cfg.Reader.Timeout <= 0 {
		cfg.Reader.Timeout = 30 * time.Second
	}
	if cfg.Reader.RateLimit.RequestsPerSecond <= 0 {
		cfg.Reader.RateLimit.RequestsPerSecond = 5
	}
	if cfg.Reader.RateLimit.BurstSize <= 0 {
		cfg.Reader.RateLimit.BurstSize = 1
	}
	if cfg.Reader.Retry.MaxAttempts <= 0 {
		cfg.Reader.Retry.MaxAttempts = 3
	}
	if cfg.Reader.Retry.BaseDelay <= 0 {
		cfg.Reader.Retry.BaseDelay = 500 * time.Millisecond
	}
	if cfg.Reader.Retry.MaxDelay <= 0 {
		cfg.Reader.Retry.MaxDelay = 10 * time.Second
	}
	if cfg.Source.CryptoProvider == "" {
		cfg.Source.CryptoProvider = "binance"
	}
	if cfg.Source.Bybit.Category == "" {
		cfg.Source.Bybit.Category = "spot"
	}
	if cfg.Storage.Root == "" {
		cfg.Storage.Root = "data"
	}
	if !cfg.Storage.Formats.Parquet.Enabled && !cfg.Storage.Formats.Csv.Enabled {
		cfg.Storage.Formats.Parquet.Enabled = true
	}
	if cfg.Logging.Level == "" {
		cfg.Logging.Level = "info"
	}
	if cfg.Logging.Format == "" {
		cfg.Logging.Format = "json"
	}
}

func validateConfig(cfg *Config) error {
	if cfg.Histflow.Name == "" {
		return fmt.Errorf("%w: histflow.name is required", ErrInvalidConfiguration)
	}
	if cfg.Histflow.Version == "" {
		return fmt.Errorf("%w: histflow.version is required", ErrInvalidConfiguration)
	}

	if cfg.Storage.S3.Enabled {
		if cfg.Storage.S3.Bucket == "" {
			return fmt.Errorf("%w: storage.s3.bucket is required when S3 is enabled", ErrInvalidConfiguration)
		}
		if cfg.Storage.S3.Region == "" {
			return fmt.Errorf("%w: storage.s3.region is required when S3 is enabled", ErrInvalidConfiguration)
		}
		if !isValidS3Bucket(cfg.Storage.S3.Bucket) {
			return fmt.Errorf("%w: storage.s3.bucket '%s' is invalid", ErrInvalidConfiguration, cfg.Storage.S3.Bucket)
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

// DownloadParams is the typed form of DownloadConfig after validation
// against the closed enums. End stays zero when unset so the planner can
// default it to the run start time.
type DownloadParams struct {
	Tickers      []string
	SecurityType models.SecurityType
	Resolution   models.Resolution
	Market       string
	Start        time.Time
	End          time.Time
	MaxWorkers   int
}

var dateLayouts = []string{"20060102", "2006-01-02", time.RFC3339}

func parseDate(token string) (time.Time, error) {
	token = strings.TrimSpace(token)
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, token); err == nil {
			return t.UTC(), nil
		}
	}
	return time.Time{}, fmt.Errorf("unparseable timestamp %q", token)
}

// DownloadParams parses the raw download tokens. Any failure here is an
/// ErrInvalidConfiguration: global parameters are shared by every instrument,
// so a bad one aborts the run before any ticker is touched.
func (c *Config) DownloadParams() (DownloadParams, error) {
	securityType, err := models.ParseSecurityType(c.Download.SecurityType)
	if err != nil {
		return DownloadParams{}, fmt.Errorf("%w: download.security_type: %v", ErrInvalidConfiguration, err)
	}

	resolution, err := models.ParseResolution(c.Download.Resolution)
	if err != nil {
		return DownloadParams{}, fmt.Errorf("%w: download.resolution: %v", ErrInvalidConfiguration, err)
	}

	if strings.TrimSpace(c.Download.Start) == "" {
		return DownloadParams{}, fmt.Errorf("%w: download.start is required", ErrInvalidConfiguration)
	}
	start, err := parseDate(c.Download.Start)
	if err != nil {
		return DownloadParams{}, fmt.Errorf("%w: download.start: %v", ErrInvalidConfiguration, err)
	}

	var end time.Time
	if strings.TrimSpace(c.Download.End) != "" {
		end, err = parseDate(c.Download.End)
		if err != nil {
			return DownloadParams{}, fmt.Errorf("%w: download.end: %v", ErrInvalidConfiguration, err)
		}
		if start.After(end) {
			return DownloadParams{}, fmt.Errorf("%w: download.start %s is after download.end %s",
				ErrInvalidConfiguration, start.Format(time.RFC3339), end.Format(time.RFC3339))
		}
	}

	return DownloadParams{
		Tickers:      c.Download.Tickers,
		SecurityType: securityType,
		Resolution:   resolution,
		Market:       c.Download.Market,
		Start:        start,
		End:          end,
		MaxWorkers:   c.Download.MaxWorkers,
	}, nil
}
