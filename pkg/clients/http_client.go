// Package clients provides the HTTP execution layer for the Ariba API
// surface: a pooled HTTP client, circuit breaker, rate-limit governor,
// and OAuth token provider.
package clients

import (
	"context"
	"crypto/tls"
	"fmt"
	"io"
	"net"
	"net/http"
	"strconv"
	"sync/atomic"
	"time"

	"go.uber.org/zap"
	"golang.org/x/net/http2"

	"github.com/ajitpratap0/aribaflow/pkg/json"
	"github.com/ajitpratap0/aribaflow/pkg/metrics"
)

// HTTPClient provides an HTTP client with connection pooling tuned for
// the slow, coarse-grained Ariba endpoints. One fixed timeout
// configuration applies uniformly to every call.
type HTTPClient struct {
	config     *HTTPConfig
	logger     *zap.Logger
	httpClient *http.Client
	transport  *http.Transport

	totalRequests  int64
	failedRequests int64

	circuitBreaker *CircuitBreaker
}

// HTTPConfig configures the HTTP client
type HTTPConfig struct {
	// Connection settings
	MaxIdleConns        int           `json:"max_idle_conns"`
	MaxIdleConnsPerHost int           `json:"max_idle_conns_per_host"`
	IdleConnTimeout     time.Duration `json:"idle_conn_timeout"`

	// HTTP/2 settings
	EnableHTTP2 bool `json:"enable_http2"`

	// Timeouts; connect, read and write apply uniformly to all calls
	ConnectTimeout time.Duration `json:"connect_timeout"`
	ReadTimeout    time.Duration `json:"read_timeout"`
	WriteTimeout   time.Duration `json:"write_timeout"`
	KeepAlive      time.Duration `json:"keep_alive"`

	// TLS settings
	InsecureSkipVerify bool   `json:"insecure_skip_verify"`
	TLSMinVersion      uint16 `json:"tls_min_version"`

	// Circuit breaker
	CircuitBreakerEnabled bool          `json:"circuit_breaker_enabled"`
	FailureThreshold      int           `json:"failure_threshold"`
	SuccessThreshold      int           `json:"success_threshold"`
	BreakerTimeout        time.Duration `json:"breaker_timeout"`
}

// DefaultHTTPConfig returns the default configuration. The five minute
// timeouts match how long result-file downloads can take under load.
func DefaultHTTPConfig() *HTTPConfig {
	return &HTTPConfig{
		MaxIdleConns:          100,
		MaxIdleConnsPerHost:   20,
		IdleConnTimeout:       90 * time.Second,
		EnableHTTP2:           true,
		ConnectTimeout:        300 * time.Second,
		ReadTimeout:           300 * time.Second,
		WriteTimeout:          300 * time.Second,
		KeepAlive:             30 * time.Second,
		InsecureSkipVerify:    false,
		TLSMinVersion:         tls.VersionTLS12,
		CircuitBreakerEnabled: true,
		FailureThreshold:      5,
		SuccessThreshold:      3,
		BreakerTimeout:        30 * time.Second,
	}
}

// NewHTTPClient creates a new HTTP client
func NewHTTPClient(config *HTTPConfig, logger *zap.Logger) *HTTPClient {
	if config == nil {
		config = DefaultHTTPConfig()
	}

	client := &HTTPClient{
		config: config,
		logger: logger.With(zap.String("component", "http_client")),
	}

	client.transport = &http.Transport{
		DialContext: (&net.Dialer{
			Timeout:   config.ConnectTimeout,
			KeepAlive: config.KeepAlive,
		}).DialContext,
		MaxIdleConns:          config.MaxIdleConns,
		MaxIdleConnsPerHost:   config.MaxIdleConnsPerHost,
		IdleConnTimeout:       config.IdleConnTimeout,
		TLSHandshakeTimeout:   10 * time.Second,
		ResponseHeaderTimeout: config.ReadTimeout,
		ExpectContinueTimeout: 1 * time.Second,
		TLSClientConfig: &tls.Config{
			InsecureSkipVerify: config.InsecureSkipVerify,
			MinVersion:         config.TLSMinVersion,
		},
	}

	if config.EnableHTTP2 {
		if err := http2.ConfigureTransport(client.transport); err != nil {
			logger.Warn("failed to configure HTTP/2", zap.Error(err))
		}
	}

	// The overall client timeout covers write + read of one request
	requestTimeout := config.ReadTimeout
	if config.WriteTimeout > requestTimeout {
		requestTimeout = config.WriteTimeout
	}

	client.httpClient = &http.Client{
		Transport: client.transport,
		Timeout:   requestTimeout,
		CheckRedirect: func(req *http.Request, via []*http.Request) error {
			if len(via) >= 10 {
				return fmt.Errorf("too many redirects")
			}
			return nil
		},
	}

	if config.CircuitBreakerEnabled {
		client.circuitBreaker = NewCircuitBreaker(CircuitBreakerConfig{
			FailureThreshold: config.FailureThreshold,
			SuccessThreshold: config.SuccessThreshold,
			Timeout:          config.BreakerTimeout,
		}, logger)
	}

	return client
}

// ResponseContainer holds a fully drained HTTP response. The body is
// read eagerly so the connection can be reused and rate-limit headers
// inspected after the fact.
type ResponseContainer struct {
	StatusCode int
	Status     string
	Headers    http.Header
	Body       []byte
}

// Message extracts the service error message from the response: the
// body's "message" member when present, otherwise the HTTP reason phrase.
func (rc *ResponseContainer) Message() string {
	if len(rc.Body) > 0 {
		var envelope struct {
			Message string `json:"message"`
		}
		if err := json.Unmarshal(rc.Body, &envelope); err == nil && envelope.Message != "" {
			return envelope.Message
		}
	}
	// Status is of the form "400 Bad Request"
	if len(rc.Status) > 4 {
		return rc.Status[4:]
	}
	return rc.Status
}

// Header returns the first value for the named response header.
func (rc *ResponseContainer) Header(name string) string {
	return rc.Headers.Get(name)
}

// IntHeader returns the named header parsed as an integer, with ok
// reporting whether the header was present and well formed.
func (rc *ResponseContainer) IntHeader(name string) (int, bool) {
	v := rc.Headers.Get(name)
	if v == "" {
		return 0, false
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, false
	}
	return n, true
}

// Execute performs an HTTP request and drains the response into a
// ResponseContainer. The endpoint label feeds the request metrics.
func (c *HTTPClient) Execute(ctx context.Context, method, url, endpoint string, body io.Reader, headers map[string]string) (*ResponseContainer, error) {
	req, err := http.NewRequestWithContext(ctx, method, url, body)
	if err != nil {
		return nil, err
	}

	for key, value := range headers {
		req.Header.Set(key, value)
	}
	if req.Header.Get("User-Agent") == "" {
		req.Header.Set("User-Agent", "aribaflow/1.0")
	}

	if c.circuitBreaker != nil && !c.circuitBreaker.Allow() {
		atomic.AddInt64(&c.failedRequests, 1)
		return nil, fmt.Errorf("circuit breaker open")
	}

	atomic.AddInt64(&c.totalRequests, 1)
	timer := metrics.NewTimer(endpoint)

	resp, err := c.httpClient.Do(req)

	metrics.RequestLatency.WithLabelValues(endpoint).Observe(timer.Stop().Seconds())

	if err != nil {
		atomic.AddInt64(&c.failedRequests, 1)
		if c.circuitBreaker != nil {
			c.circuitBreaker.RecordFailure()
		}
		metrics.APIRequests.WithLabelValues(endpoint, "transport_error").Inc()
		return nil, err
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		atomic.AddInt64(&c.failedRequests, 1)
		if c.circuitBreaker != nil {
			c.circuitBreaker.RecordFailure()
		}
		return nil, fmt.Errorf("failed to read response body: %w", err)
	}

	if c.circuitBreaker != nil {
		c.circuitBreaker.RecordSuccess()
	}
	metrics.APIRequests.WithLabelValues(endpoint, strconv.Itoa(resp.StatusCode)).Inc()

	return &ResponseContainer{
		StatusCode: resp.StatusCode,
		Status:     resp.Status,
		Headers:    resp.Header,
		Body:       data,
	}, nil
}

// Get performs an HTTP GET request
func (c *HTTPClient) Get(ctx context.Context, url, endpoint string, headers map[string]string) (*ResponseContainer, error) {
	return c.Execute(ctx, http.MethodGet, url, endpoint, nil, headers)
}

// Post performs an HTTP POST request
func (c *HTTPClient) Post(ctx context.Context, url, endpoint string, body io.Reader, headers map[string]string) (*ResponseContainer, error) {
	return c.Execute(ctx, http.MethodPost, url, endpoint, body, headers)
}

// GetStats returns current client statistics
func (c *HTTPClient) GetStats() HTTPStats {
	totalRequests := atomic.LoadInt64(&c.totalRequests)
	failedRequests := atomic.LoadInt64(&c.failedRequests)

	stats := HTTPStats{
		TotalRequests:  totalRequests,
		FailedRequests: failedRequests,
	}
	if totalRequests > 0 {
		stats.SuccessRate = float64(totalRequests-failedRequests) / float64(totalRequests) * 100
	}
	return stats
}

// Close closes the HTTP client and releases idle connections
func (c *HTTPClient) Close() error {
	c.logger.Info("closing HTTP client")
	c.transport.CloseIdleConnections()
	return nil
}

// HTTPStats represents HTTP client statistics
type HTTPStats struct {
	TotalRequests  int64   `json:"total_requests"`
	FailedRequests int64   `json:"failed_requests"`
	SuccessRate    float64 `json:"success_rate"`
}
