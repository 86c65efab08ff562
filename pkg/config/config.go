// Package config provides the unified configuration system for aribaflow.
// It defines a single Config structure organized into logical sections:
//
//   - Connection: API endpoints, tenant selectors, OAuth credentials
//   - Extraction: view template and date-range filter parameters
//   - Retry: backoff tuning and rate-limit wait behavior
//   - Timeouts: uniform HTTP timeouts and the job poll interval
//   - Performance: worker counts and buffer sizes for the read path
//   - Observability: metrics and logging
//
// Example usage:
//
//	cfg := config.NewConfig("ariba-source")
//	cfg.Connection.Realm = "mytenant"
//
//	if err := cfg.Validate(); err != nil {
//	    log.Fatal(err)
//	}
package config

import (
	"fmt"
	"runtime"
	"time"
)

// DateTimeLayout is the wire format for extraction date-range bounds.
const DateTimeLayout = "2006-01-02T15:04:05Z"

// Config is the validated configuration structure for an extraction run.
type Config struct {
	// Name identifies the connector instance
	Name string `yaml:"name" json:"name"`
	// Version indicates the configuration version
	Version string `yaml:"version" json:"version"`

	// Connection holds API endpoints and credentials
	Connection ConnectionConfig `yaml:"connection" json:"connection"`

	// Extraction holds the view template and filter parameters
	Extraction ExtractionConfig `yaml:"extraction" json:"extraction"`

	// Retry holds backoff tuning for retryable failures
	Retry RetryConfig `yaml:"retry" json:"retry"`

	// Timeouts define HTTP timeout durations and the poll interval
	Timeouts TimeoutConfig `yaml:"timeouts" json:"timeouts"`

	// Performance settings control the concurrent read path
	Performance PerformanceConfig `yaml:"performance" json:"performance"`

	// Observability settings for monitoring and debugging
	Observability ObservabilityConfig `yaml:"observability" json:"observability"`
}

// ConnectionConfig contains the connection parameters required on every
// request: the API gateway, the tenant realm and environment selector,
// and the OAuth client-credentials grant inputs.
type ConnectionConfig struct {
	// BaseURL is the API gateway host, e.g. https://openapi.ariba.com
	BaseURL string `yaml:"base_url" json:"base_url"`
	// TokenURL is the OAuth server host; the token path is appended to it
	TokenURL string `yaml:"token_url" json:"token_url"`
	// Realm is the tenant selector carried on every request URL
	Realm string `yaml:"realm" json:"realm"`
	// SystemType selects the environment (prod or sandbox) path segment
	SystemType string `yaml:"system_type" json:"system_type"`
	// ClientID for the client-credentials grant
	ClientID string `yaml:"client_id" json:"client_id"`
	// ClientSecret for the client-credentials grant
	ClientSecret string `yaml:"client_secret" json:"client_secret"`
	// APIKey is sent as the apiKey header on every API request
	APIKey string `yaml:"api_key" json:"api_key"`
}

// ExtractionConfig contains the view template and filter parameters.
type ExtractionConfig struct {
	// ViewTemplateName selects the reporting view to extract
	ViewTemplateName string `yaml:"view_template_name" json:"view_template_name"`
	// FromDate is the optional filter lower bound, DateTimeLayout format
	FromDate string `yaml:"from_date" json:"from_date"`
	// ToDate is the optional filter upper bound, DateTimeLayout format
	ToDate string `yaml:"to_date" json:"to_date"`
	// PreviewMode disables pagination beyond the first page
	PreviewMode bool `yaml:"preview_mode" json:"preview_mode"`
}

// RetryConfig contains backoff tuning for retryable failures.
type RetryConfig struct {
	// InitialRetryDuration is the delay before the first retry
	InitialRetryDuration time.Duration `yaml:"initial_retry_duration" json:"initial_retry_duration"`
	// MaxRetryDuration caps the delay between retries
	MaxRetryDuration time.Duration `yaml:"max_retry_duration" json:"max_retry_duration"`
	// MaxRetryCount sets maximum retry attempts
	MaxRetryCount int `yaml:"max_retry_count" json:"max_retry_count"`
	// RetryMultiplier increases delay exponentially
	RetryMultiplier float64 `yaml:"retry_multiplier" json:"retry_multiplier"`
	// WaitOnRateLimit blocks until the breached rate-limit window resets
	// before retrying, instead of retrying on the backoff schedule alone
	WaitOnRateLimit bool `yaml:"wait_on_rate_limit" json:"wait_on_rate_limit"`
}

// TimeoutConfig contains HTTP timeout settings. The remote service is
// slow under load, so connect, read and write all default to five
// minutes and apply uniformly to every call.
type TimeoutConfig struct {
	// Connect timeout for establishing connections
	Connect time.Duration `yaml:"connect" json:"connect"`
	// Read timeout for response reads
	Read time.Duration `yaml:"read" json:"read"`
	// Write timeout for request writes
	Write time.Duration `yaml:"write" json:"write"`
	// PollInterval is the fixed wait between job status checks
	PollInterval time.Duration `yaml:"poll_interval" json:"poll_interval"`
}

// PerformanceConfig contains settings for the concurrent read path.
type PerformanceConfig struct {
	// Workers defines the number of concurrent file download workers
	Workers int `yaml:"workers" json:"workers"`
	// BufferSize sets the record stream channel buffer
	BufferSize int `yaml:"buffer_size" json:"buffer_size"`
	// BatchSize controls records per batch on the batch stream
	BatchSize int `yaml:"batch_size" json:"batch_size"`
}

// ObservabilityConfig contains monitoring settings.
type ObservabilityConfig struct {
	// EnableMetrics activates prometheus metrics collection
	EnableMetrics bool `yaml:"enable_metrics" json:"enable_metrics"`
	// EnableLogging controls logging output
	EnableLogging bool `yaml:"enable_logging" json:"enable_logging"`
	// LogLevel sets logging verbosity (debug, info, warn, error)
	LogLevel string `yaml:"log_level" json:"log_level"`
}

// NewConfig creates a Config with production-ready defaults. Callers
// fill in the Connection and Extraction sections and then Validate.
func NewConfig(name string) *Config {
	return &Config{
		Name:    name,
		Version: "1.0.0",
		Retry: RetryConfig{
			InitialRetryDuration: 10 * time.Second,
			MaxRetryDuration:     10 * time.Minute,
			MaxRetryCount:        5,
			RetryMultiplier:      2.0,
			WaitOnRateLimit:      true,
		},
		Timeouts: TimeoutConfig{
			Connect:      300 * time.Second,
			Read:         300 * time.Second,
			Write:        300 * time.Second,
			PollInterval: 2 * time.Minute,
		},
		Performance: PerformanceConfig{
			Workers:    runtime.NumCPU(),
			BufferSize: 10000,
			BatchSize:  1000,
		},
		Observability: ObservabilityConfig{
			EnableMetrics: true,
			EnableLogging: true,
			LogLevel:      "info",
		},
	}
}

// Validate validates the configuration for correctness. It checks
// required connection fields, the extraction date range, and retry
// tuning, so errors surface before any network call is made.
func (c *Config) Validate() error {
	if c.Name == "" {
		return fmt.Errorf("name is required")
	}
	if c.Connection.BaseURL == "" {
		return fmt.Errorf("connection.base_url is required")
	}
	if c.Connection.TokenURL == "" {
		return fmt.Errorf("connection.token_url is required")
	}
	if c.Connection.Realm == "" {
		return fmt.Errorf("connection.realm is required")
	}
	if c.Connection.SystemType == "" {
		return fmt.Errorf("connection.system_type is required")
	}
	if c.Connection.ClientID == "" {
		return fmt.Errorf("connection.client_id is required")
	}
	if c.Connection.ClientSecret == "" {
		return fmt.Errorf("connection.client_secret is required")
	}
	if c.Connection.APIKey == "" {
		return fmt.Errorf("connection.api_key is required")
	}
	if c.Extraction.ViewTemplateName == "" {
		return fmt.Errorf("extraction.view_template_name is required")
	}
	if err := c.validateDateRange(); err != nil {
		return err
	}
	if c.Retry.InitialRetryDuration <= 0 {
		return fmt.Errorf("retry.initial_retry_duration must be positive")
	}
	if c.Retry.MaxRetryDuration < c.Retry.InitialRetryDuration {
		return fmt.Errorf("retry.max_retry_duration must be at least initial_retry_duration")
	}
	if c.Retry.MaxRetryCount < 0 {
		return fmt.Errorf("retry.max_retry_count cannot be negative")
	}
	if c.Retry.RetryMultiplier <= 1 {
		return fmt.Errorf("retry.retry_multiplier must be greater than 1")
	}
	if c.Performance.Workers <= 0 {
		return fmt.Errorf("performance.workers must be positive")
	}
	if c.Performance.BatchSize <= 0 {
		return fmt.Errorf("performance.batch_size must be positive")
	}
	return nil
}

// validateDateRange checks that fromDate/toDate are given together, are
// well formed, ordered, and span at most one year.
func (c *Config) validateDateRange() error {
	from, to := c.Extraction.FromDate, c.Extraction.ToDate
	if from == "" && to == "" {
		return nil
	}
	if from == "" || to == "" {
		return fmt.Errorf("extraction.from_date and extraction.to_date must be set together")
	}
	fromTime, err := time.Parse(DateTimeLayout, from)
	if err != nil {
		return fmt.Errorf("extraction.from_date is not in %s format: %w", DateTimeLayout, err)
	}
	toTime, err := time.Parse(DateTimeLayout, to)
	if err != nil {
		return fmt.Errorf("extraction.to_date is not in %s format: %w", DateTimeLayout, err)
	}
	if fromTime.After(toTime) {
		return fmt.Errorf("extraction.from_date must not be after extraction.to_date")
	}
	if toTime.After(fromTime.AddDate(1, 0, 0)) {
		return fmt.Errorf("extraction date range must not exceed one year")
	}
	return nil
}

// SchemaBuildRequired reports whether enough configuration is present to
// derive a schema through live metadata calls.
func (c *Config) SchemaBuildRequired() bool {
	return c.Connection.BaseURL != "" &&
		c.Connection.TokenURL != "" &&
		c.Connection.Realm != "" &&
		c.Connection.SystemType != "" &&
		c.Connection.ClientID != "" &&
		c.Connection.ClientSecret != "" &&
		c.Connection.APIKey != "" &&
		c.Extraction.ViewTemplateName != ""
}

// GetWorkers returns the number of workers, ensuring it's at least 1
func (p *PerformanceConfig) GetWorkers() int {
	if p.Workers <= 0 {
		return runtime.NumCPU()
	}
	return p.Workers
}
