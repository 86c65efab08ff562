// Package metrics provides performance tracking for aribaflow using
// Prometheus metrics. It offers collectors for throughput, API call
// latency, rate-limit waits, and job lifecycle events.
//
// # Basic Usage
//
//	// Record decoded records
//	metrics.RecordsDecoded.WithLabelValues("SourcingProjectFactSystemView", "success").Inc()
//
//	// Track API call latency
//	timer := metrics.NewTimer("job_status")
//	checkStatus(jobID)
//	metrics.RequestLatency.WithLabelValues("job_status").Observe(timer.Stop().Seconds())
package metrics

import (
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Collector provides a centralized metrics handle for a component.
// Each component should create its own collector.
type Collector struct {
	name      string
	startTime time.Time
	mu        sync.RWMutex
}

// NewCollector creates a new metrics collector for a component.
// The name parameter identifies the component in metrics labels.
func NewCollector(name string) *Collector {
	return &Collector{
		name:      name,
		startTime: time.Now(),
	}
}

// GetAll returns all current metric values
func (c *Collector) GetAll() map[string]interface{} {
	c.mu.RLock()
	defer c.mu.RUnlock()

	return map[string]interface{}{
		"component":  c.name,
		"start_time": c.startTime,
		"uptime":     time.Since(c.startTime).Seconds(),
	}
}

// StartTime returns when the collector was created
func (c *Collector) StartTime() time.Time {
	return c.startTime
}

var (
	// RecordsDecoded tracks records decoded from result files.
	// Labels: view_template, status (success/failure)
	RecordsDecoded = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "aribaflow_records_decoded_total",
			Help: "Total number of records decoded from result files",
		},
		[]string{"view_template", "status"},
	)

	// APIRequests tracks calls against the remote API surface.
	// Labels: endpoint (token/metadata/filter/job_create/job_status/file),
	// status (HTTP status class)
	APIRequests = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "aribaflow_api_requests_total",
			Help: "Total number of API requests by endpoint and status",
		},
		[]string{"endpoint", "status"},
	)

	// RequestLatency tracks API call latency in seconds.
	RequestLatency = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "aribaflow_request_latency_seconds",
			Help:    "API request latency in seconds",
			Buckets: []float64{0.1, 0.5, 1, 2, 5, 10, 30, 60, 120, 300},
		},
		[]string{"endpoint"},
	)

	// RateLimitWaits tracks blocking waits caused by rate-limit breaches.
	// Labels: window (hour/minute/second)
	RateLimitWaits = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "aribaflow_rate_limit_waits_total",
			Help: "Total number of blocking waits on rate-limit windows",
		},
		[]string{"window"},
	)

	// JobPolls tracks job status poll outcomes.
	// Labels: status (pending/completed/completed_zero_records/failed)
	JobPolls = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "aribaflow_job_polls_total",
			Help: "Total number of job status polls by outcome",
		},
		[]string{"status"},
	)

	// ActiveDownloads tracks in-flight file downloads.
	ActiveDownloads = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "aribaflow_active_downloads",
			Help: "Number of in-flight result file downloads",
		},
	)

	// Throughput tracks records per second by view template.
	Throughput = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "aribaflow_throughput_records_per_second",
			Help: "Current decode throughput in records per second",
		},
		[]string{"view_template"},
	)
)

// Timer provides a simple timing mechanism for measuring operation durations.
type Timer struct {
	start time.Time
	name  string
}

// NewTimer creates a new timer and starts timing immediately.
func NewTimer(name string) *Timer {
	return &Timer{
		start: time.Now(),
		name:  name,
	}
}

// Stop returns the elapsed duration since creation. The timer can be
// stopped multiple times, each returning the total elapsed time.
func (t *Timer) Stop() time.Duration {
	return time.Since(t.start)
}

// ThroughputTracker tracks records per second over time windows.
// Thread-safe for concurrent use.
type ThroughputTracker struct {
	mu           sync.Mutex
	count        int64
	lastReset    time.Time
	viewTemplate string
}

// NewThroughputTracker creates a throughput tracker labeled with the
// view template being extracted.
func NewThroughputTracker(viewTemplate string) *ThroughputTracker {
	return &ThroughputTracker{
		lastReset:    time.Now(),
		viewTemplate: viewTemplate,
	}
}

// Increment adds n to the record count. Safe for concurrent use.
func (t *ThroughputTracker) Increment(n int64) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.count += n
}

// GetAndReset calculates the current throughput, updates the Prometheus
// metric, resets the counter, and returns the calculated value.
func (t *ThroughputTracker) GetAndReset() float64 {
	t.mu.Lock()
	defer t.mu.Unlock()

	elapsed := time.Since(t.lastReset).Seconds()
	if elapsed == 0 {
		return 0
	}

	throughput := float64(t.count) / elapsed

	t.count = 0
	t.lastReset = time.Now()

	Throughput.WithLabelValues(t.viewTemplate).Set(throughput)

	return throughput
}
