package base

import (
	"sync"
	"sync/atomic"
	"time"

	"github.com/ajitpratap0/aribaflow/pkg/metrics"
	"go.uber.org/zap"
)

// ProgressReporter tracks and reports progress of an extraction run.
// Counts are records emitted on the stream; the total is only known
// when the extraction service reports page counts up front.
type ProgressReporter struct {
	logger  *zap.Logger
	tracker *metrics.ThroughputTracker

	totalRecords     int64
	processedRecords int64
	startTime        time.Time
	lastReportTime   time.Time
	reportInterval   time.Duration

	throughputHistory []float64
	historyMutex      sync.RWMutex

	stopCh chan struct{}
	wg     sync.WaitGroup
}

// NewProgressReporter creates a new progress reporter. The view
// template name labels the throughput metric.
func NewProgressReporter(logger *zap.Logger, viewTemplate string) *ProgressReporter {
	return &ProgressReporter{
		logger:            logger,
		tracker:           metrics.NewThroughputTracker(viewTemplate),
		startTime:         time.Now(),
		lastReportTime:    time.Now(),
		reportInterval:    10 * time.Second,
		stopCh:            make(chan struct{}),
		throughputHistory: make([]float64, 0, 100),
	}
}

// Start begins periodic progress reporting
func (pr *ProgressReporter) Start() {
	pr.wg.Add(1)
	go func() {
		defer pr.wg.Done()
		ticker := time.NewTicker(pr.reportInterval)
		defer ticker.Stop()

		for {
			select {
			case <-pr.stopCh:
				return
			case <-ticker.C:
				pr.reportCurrentProgress()
			}
		}
	}()
}

// Stop stops progress reporting and logs a final summary
func (pr *ProgressReporter) Stop() {
	close(pr.stopCh)
	pr.wg.Wait()

	pr.reportFinalProgress()
}

// SetTotal sets the total number of records to process
func (pr *ProgressReporter) SetTotal(total int64) {
	atomic.StoreInt64(&pr.totalRecords, total)
}

// ReportProgress updates the progress
func (pr *ProgressReporter) ReportProgress(processed, total int64) {
	atomic.StoreInt64(&pr.processedRecords, processed)
	if total > 0 {
		atomic.StoreInt64(&pr.totalRecords, total)
	}
}

// IncrementProcessed increments the processed count
func (pr *ProgressReporter) IncrementProcessed(count int64) {
	atomic.AddInt64(&pr.processedRecords, count)
	pr.tracker.Increment(count)
}

// ReportThroughput records an externally measured throughput sample
func (pr *ProgressReporter) ReportThroughput(recordsPerSecond float64) {
	pr.historyMutex.Lock()
	defer pr.historyMutex.Unlock()

	pr.throughputHistory = append(pr.throughputHistory, recordsPerSecond)
	if len(pr.throughputHistory) > 100 {
		pr.throughputHistory = pr.throughputHistory[1:]
	}
}

// GetProgress returns current progress
func (pr *ProgressReporter) GetProgress() (processed, total int64) {
	return atomic.LoadInt64(&pr.processedRecords), atomic.LoadInt64(&pr.totalRecords)
}

// GetElapsedTime returns time since start
func (pr *ProgressReporter) GetElapsedTime() time.Duration {
	return time.Since(pr.startTime)
}

// GetETA estimates time remaining
func (pr *ProgressReporter) GetETA() time.Duration {
	processed := atomic.LoadInt64(&pr.processedRecords)
	total := atomic.LoadInt64(&pr.totalRecords)

	if processed == 0 || total == 0 || processed >= total {
		return 0
	}

	elapsed := time.Since(pr.startTime)
	rate := float64(processed) / elapsed.Seconds()
	if rate == 0 {
		return 0
	}

	remaining := total - processed
	return time.Duration(float64(remaining)/rate) * time.Second
}

// GetAverageThroughput returns average throughput
func (pr *ProgressReporter) GetAverageThroughput() float64 {
	pr.historyMutex.RLock()
	defer pr.historyMutex.RUnlock()

	if len(pr.throughputHistory) == 0 {
		processed := atomic.LoadInt64(&pr.processedRecords)
		elapsed := time.Since(pr.startTime).Seconds()
		if elapsed > 0 {
			return float64(processed) / elapsed
		}
		return 0
	}

	sum := 0.0
	for _, t := range pr.throughputHistory {
		sum += t
	}
	return sum / float64(len(pr.throughputHistory))
}

// reportCurrentProgress logs current progress
func (pr *ProgressReporter) reportCurrentProgress() {
	processed := atomic.LoadInt64(&pr.processedRecords)
	total := atomic.LoadInt64(&pr.totalRecords)

	elapsed := time.Since(pr.startTime)
	intervalElapsed := time.Since(pr.lastReportTime)
	throughput := pr.tracker.GetAndReset()
	pr.ReportThroughput(throughput)
	eta := pr.GetETA()

	var percentage float64
	if total > 0 {
		percentage = float64(processed) / float64(total) * 100
	}

	fields := []zap.Field{
		zap.Int64("processed", processed),
		zap.Float64("throughput", throughput),
		zap.Duration("elapsed", elapsed),
		zap.Duration("interval", intervalElapsed),
	}

	if total > 0 {
		fields = append(fields,
			zap.Int64("total", total),
			zap.Float64("percentage", percentage),
			zap.Duration("eta", eta),
		)
	}

	pr.logger.Info("progress update", fields...)

	pr.lastReportTime = time.Now()
}

// reportFinalProgress logs final progress summary
func (pr *ProgressReporter) reportFinalProgress() {
	processed := atomic.LoadInt64(&pr.processedRecords)
	total := atomic.LoadInt64(&pr.totalRecords)
	elapsed := time.Since(pr.startTime)

	avgThroughput := pr.GetAverageThroughput()

	fields := []zap.Field{
		zap.Int64("total_processed", processed),
		zap.Duration("total_time", elapsed),
		zap.Float64("avg_throughput", avgThroughput),
	}

	if total > 0 {
		fields = append(fields,
			zap.Int64("expected_total", total),
			zap.Float64("completion_percentage", float64(processed)/float64(total)*100),
		)
	}

	pr.logger.Info("extraction completed", fields...)
}
