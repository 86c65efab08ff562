// Package base provides shared connector scaffolding: lifecycle
// management, health checking, retry policies, and progress reporting.
// Concrete connectors embed BaseConnector and override the pieces
// they need.
package base

import (
	"context"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/ajitpratap0/aribaflow/pkg/clients"
	"github.com/ajitpratap0/aribaflow/pkg/config"
	"github.com/ajitpratap0/aribaflow/pkg/connector/core"
	"github.com/ajitpratap0/aribaflow/pkg/errors"
	"github.com/ajitpratap0/aribaflow/pkg/logger"
	"github.com/ajitpratap0/aribaflow/pkg/metrics"
)

// BaseConnector provides common functionality for all connectors
type BaseConnector struct {
	name    string
	ctype   core.ConnectorType
	version string

	config *config.Config
	logger *zap.Logger

	metricsCollector *metrics.Collector
	healthChecker    *HealthChecker
	circuitBreaker   *clients.CircuitBreaker
	retryPolicy      *RetryPolicy

	state      core.State
	stateMutex sync.RWMutex

	initialized bool
	closed      bool
	mu          sync.RWMutex
}

// NewBaseConnector creates a new base connector
func NewBaseConnector(name string, ctype core.ConnectorType) *BaseConnector {
	return &BaseConnector{
		name:    name,
		ctype:   ctype,
		version: "1.0.0",
		logger: logger.Get().With(
			zap.String("connector", name),
			zap.String("type", string(ctype)),
		),
		state:       make(core.State),
		retryPolicy: DefaultRetryPolicy(),
	}
}

// Name returns the connector name
func (bc *BaseConnector) Name() string {
	return bc.name
}

// Type returns the connector type
func (bc *BaseConnector) Type() core.ConnectorType {
	return bc.ctype
}

// Version returns the connector version
func (bc *BaseConnector) Version() string {
	return bc.version
}

// Initialize sets up the base connector components
func (bc *BaseConnector) Initialize(ctx context.Context, cfg *config.Config) error {
	bc.mu.Lock()
	defer bc.mu.Unlock()

	if bc.initialized {
		return errors.New(errors.ErrorTypeInternal, "connector already initialized")
	}
	if cfg == nil {
		return errors.New(errors.ErrorTypeConfig, "configuration is required")
	}
	if err := cfg.Validate(); err != nil {
		return err
	}

	bc.config = cfg
	bc.metricsCollector = metrics.NewCollector(bc.name)
	bc.retryPolicy = FromConfig(cfg.Retry)

	bc.circuitBreaker = clients.NewCircuitBreaker(clients.CircuitBreakerConfig{
		FailureThreshold: 5,
		SuccessThreshold: 2,
		Timeout:          30 * time.Second,
	}, bc.logger)

	bc.healthChecker = NewHealthChecker(bc.name, 30*time.Second)
	bc.healthChecker.Start(ctx)

	bc.initialized = true
	bc.logger.Info("connector initialized",
		zap.String("version", bc.version),
		zap.String("view_template", cfg.Extraction.ViewTemplateName))

	return nil
}

// Close shuts down the base connector components
func (bc *BaseConnector) Close(ctx context.Context) error {
	bc.mu.Lock()
	defer bc.mu.Unlock()

	if bc.closed {
		return nil
	}

	if bc.healthChecker != nil {
		bc.healthChecker.Stop()
	}

	bc.closed = true
	bc.logger.Info("connector closed")

	return nil
}

// Config returns the connector configuration
func (bc *BaseConnector) Config() *config.Config {
	bc.mu.RLock()
	defer bc.mu.RUnlock()
	return bc.config
}

// Logger returns the connector logger
func (bc *BaseConnector) Logger() *zap.Logger {
	return bc.logger
}

// MetricsCollector returns the metrics collector
func (bc *BaseConnector) MetricsCollector() *metrics.Collector {
	return bc.metricsCollector
}

// CircuitBreaker returns the circuit breaker
func (bc *BaseConnector) CircuitBreaker() *clients.CircuitBreaker {
	return bc.circuitBreaker
}

// RetryPolicy returns the retry policy
func (bc *BaseConnector) RetryPolicy() *RetryPolicy {
	return bc.retryPolicy
}

// HealthChecker returns the health checker
func (bc *BaseConnector) HealthChecker() *HealthChecker {
	return bc.healthChecker
}

// GetState returns a copy of the connector state
func (bc *BaseConnector) GetState() core.State {
	bc.stateMutex.RLock()
	defer bc.stateMutex.RUnlock()

	stateCopy := make(core.State, len(bc.state))
	for k, v := range bc.state {
		stateCopy[k] = v
	}
	return stateCopy
}

// SetState replaces the connector state
func (bc *BaseConnector) SetState(state core.State) error {
	bc.stateMutex.Lock()
	defer bc.stateMutex.Unlock()

	bc.state = make(core.State, len(state))
	for k, v := range state {
		bc.state[k] = v
	}
	return nil
}

// SetStateValue sets a single state key
func (bc *BaseConnector) SetStateValue(key string, value interface{}) {
	bc.stateMutex.Lock()
	defer bc.stateMutex.Unlock()
	bc.state[key] = value
}

// GetStateValue returns a single state key
func (bc *BaseConnector) GetStateValue(key string) (interface{}, bool) {
	bc.stateMutex.RLock()
	defer bc.stateMutex.RUnlock()
	v, ok := bc.state[key]
	return v, ok
}

// Health returns the current health of the connector
func (bc *BaseConnector) Health(ctx context.Context) error {
	bc.mu.RLock()
	defer bc.mu.RUnlock()

	if !bc.initialized {
		return errors.New(errors.ErrorTypeInternal, "connector not initialized")
	}
	if bc.closed {
		return errors.New(errors.ErrorTypeInternal, "connector closed")
	}

	if bc.healthChecker != nil && !bc.healthChecker.IsHealthy() {
		status := bc.healthChecker.GetStatus()
		return errors.New(errors.ErrorTypeConnection,
			fmt.Sprintf("connector unhealthy: %s", status.Status))
	}

	return nil
}

// Metrics returns current connector metrics
func (bc *BaseConnector) Metrics() map[string]interface{} {
	bc.mu.RLock()
	defer bc.mu.RUnlock()

	m := map[string]interface{}{
		"connector": bc.name,
		"type":      string(bc.ctype),
		"version":   bc.version,
	}

	if bc.metricsCollector != nil {
		for k, v := range bc.metricsCollector.GetAll() {
			m[k] = v
		}
	}
	if bc.circuitBreaker != nil {
		m["circuit_breaker_state"] = bc.circuitBreaker.GetState().State
	}
	if bc.healthChecker != nil {
		m["healthy"] = bc.healthChecker.IsHealthy()
	}

	return m
}

// ExecuteWithRetry runs fn under the connector retry policy and
// circuit breaker.
func (bc *BaseConnector) ExecuteWithRetry(ctx context.Context, fn func() error) error {
	return bc.retryPolicy.Execute(ctx, func() error {
		if bc.circuitBreaker != nil {
			return bc.circuitBreaker.Execute(fn)
		}
		return fn()
	})
}

// IsInitialized reports whether Initialize has completed
func (bc *BaseConnector) IsInitialized() bool {
	bc.mu.RLock()
	defer bc.mu.RUnlock()
	return bc.initialized
}

// IsClosed reports whether Close has completed
func (bc *BaseConnector) IsClosed() bool {
	bc.mu.RLock()
	defer bc.mu.RUnlock()
	return bc.closed
}
