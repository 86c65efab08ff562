package base

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/ajitpratap0/aribaflow/pkg/connector/core"
	"github.com/ajitpratap0/aribaflow/pkg/logger"
	"go.uber.org/zap"
)

// CheckFunc verifies a single dependency of a connector, such as a token
// endpoint or an API gateway. A nil error means the dependency is reachable.
type CheckFunc func(ctx context.Context) error

// HealthChecker runs registered dependency checks on a fixed interval and
// aggregates the results into a single connector health status.
type HealthChecker struct {
	name             string
	interval         time.Duration
	checkTimeout     time.Duration
	status           *core.HealthStatus
	statusMutex      sync.RWMutex
	checksMutex      sync.RWMutex
	checks           map[string]CheckFunc
	logger           *zap.Logger
	stopCh           chan struct{}
	wg               sync.WaitGroup
	checkCount       int64
	failureCount     int64
	consecutiveFails int
}

// NewHealthChecker creates a health checker with no registered checks.
// Until a check is registered the status stays healthy.
func NewHealthChecker(name string, interval time.Duration) *HealthChecker {
	return &HealthChecker{
		name:         name,
		interval:     interval,
		checkTimeout: 10 * time.Second,
		checks:       make(map[string]CheckFunc),
		status: &core.HealthStatus{
			Status:    "healthy",
			Timestamp: time.Now(),
			Details:   make(map[string]interface{}),
		},
		logger: logger.Get().With(zap.String("component", "health_checker"), zap.String("connector", name)),
		stopCh: make(chan struct{}),
	}
}

// RegisterCheck adds a named dependency check. Registering the same name
// again replaces the previous check.
func (hc *HealthChecker) RegisterCheck(name string, fn CheckFunc) {
	hc.checksMutex.Lock()
	defer hc.checksMutex.Unlock()
	hc.checks[name] = fn
}

// Start begins periodic health checks
func (hc *HealthChecker) Start(ctx context.Context) {
	hc.wg.Add(1)
	go func() {
		defer hc.wg.Done()
		ticker := time.NewTicker(hc.interval)
		defer ticker.Stop()

		// Initial check
		hc.performCheck(ctx)

		for {
			select {
			case <-ctx.Done():
				return
			case <-hc.stopCh:
				return
			case <-ticker.C:
				hc.performCheck(ctx)
			}
		}
	}()
}

// Stop stops the health checker
func (hc *HealthChecker) Stop() {
	close(hc.stopCh)
	hc.wg.Wait()
}

// performCheck runs every registered check and folds the results into the
// aggregate status. Three consecutive failing rounds mark the connector
// unhealthy; fewer mark it degraded.
func (hc *HealthChecker) performCheck(ctx context.Context) {
	atomic.AddInt64(&hc.checkCount, 1)

	hc.checksMutex.RLock()
	checks := make(map[string]CheckFunc, len(hc.checks))
	for name, fn := range hc.checks {
		checks[name] = fn
	}
	hc.checksMutex.RUnlock()

	var failed []string
	var lastErr error
	for name, fn := range checks {
		checkCtx, cancel := context.WithTimeout(ctx, hc.checkTimeout)
		err := fn(checkCtx)
		cancel()
		if err != nil {
			failed = append(failed, name)
			lastErr = err
			hc.logger.Warn("dependency check failed",
				zap.String("check", name),
				zap.Error(err))
		}
	}

	hc.statusMutex.Lock()
	defer hc.statusMutex.Unlock()

	hc.status.Timestamp = time.Now()

	if len(failed) > 0 {
		atomic.AddInt64(&hc.failureCount, 1)
		hc.consecutiveFails++

		if hc.consecutiveFails >= 3 {
			hc.status.Status = "unhealthy"
		} else {
			hc.status.Status = "degraded"
		}

		hc.status.Error = lastErr
		hc.status.Details["failing_checks"] = failed
		hc.status.Details["consecutive_failures"] = hc.consecutiveFails
		hc.status.Details["last_error"] = lastErr.Error()

		hc.logger.Warn("health check round failed",
			zap.Strings("failing_checks", failed),
			zap.String("status", hc.status.Status),
			zap.Int("consecutive_failures", hc.consecutiveFails))
	} else {
		hc.consecutiveFails = 0
		hc.status.Status = "healthy"
		hc.status.Error = nil
		delete(hc.status.Details, "failing_checks")
		delete(hc.status.Details, "consecutive_failures")
		delete(hc.status.Details, "last_error")

		hc.logger.Debug("health check round passed", zap.Int("checks", len(checks)))
	}

	hc.status.Details["check_count"] = atomic.LoadInt64(&hc.checkCount)
	hc.status.Details["failure_count"] = atomic.LoadInt64(&hc.failureCount)
}

// GetStatus returns the current health status
func (hc *HealthChecker) GetStatus() *core.HealthStatus {
	hc.statusMutex.RLock()
	defer hc.statusMutex.RUnlock()

	// Return a copy
	statusCopy := &core.HealthStatus{
		Status:    hc.status.Status,
		Timestamp: hc.status.Timestamp,
		Details:   make(map[string]interface{}),
		Error:     hc.status.Error,
	}

	for k, v := range hc.status.Details {
		statusCopy.Details[k] = v
	}

	return statusCopy
}

// UpdateStatus manually updates the health status
func (hc *HealthChecker) UpdateStatus(healthy bool, details map[string]interface{}) {
	hc.statusMutex.Lock()
	defer hc.statusMutex.Unlock()

	hc.status.Timestamp = time.Now()

	if healthy {
		hc.status.Status = "healthy"
		hc.status.Error = nil
		hc.consecutiveFails = 0
	} else {
		hc.status.Status = "unhealthy"
	}

	// Merge details
	for k, v := range details {
		hc.status.Details[k] = v
	}
}

// IsHealthy returns true if the service is healthy
func (hc *HealthChecker) IsHealthy() bool {
	hc.statusMutex.RLock()
	defer hc.statusMutex.RUnlock()
	return hc.status.Status == "healthy"
}
