package ariba

import (
	"context"
	"net/http"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/ajitpratap0/aribaflow/pkg/clients"
	"github.com/ajitpratap0/aribaflow/pkg/config"
	"github.com/ajitpratap0/aribaflow/pkg/errors"
	"github.com/ajitpratap0/aribaflow/pkg/json"
	"github.com/ajitpratap0/aribaflow/pkg/metrics"
)

// Job status values reported by the job result endpoint.
const (
	JobStatusCompleted            = "completed"
	JobStatusCompletedZeroRecords = "completedZeroRecords"
	JobStatusMaxReached           = "maxReached"
	JobStatusInternalError        = "internalError"
	JobStatusInvalidDateRange     = "invalidDateRange"
)

// pageTokenNull is the literal token value marking the last page.
const pageTokenNull = "null"

// Split identifies one result file of one extraction job. Each split
// is independently downloadable once the job chain has completed.
type Split struct {
	JobID    string `json:"job_id"`
	FileName string `json:"file_name"`
}

// JobResult is the wire shape shared by the job submission and job
// status endpoints.
type JobResult struct {
	JobID       string   `json:"jobId"`
	Status      string   `json:"status"`
	PageToken   string   `json:"pageToken"`
	TotalPages  int      `json:"totalNumOfPages"`
	CurrentPage int      `json:"currentPageNum"`
	Files       []string `json:"files"`
	Message     string   `json:"message"`
}

type filterExpression struct {
	Name string `json:"name"`
}

type viewTemplateResponse struct {
	FilterExpressions []filterExpression `json:"filterExpressions"`
}

// ExtractionJobController drives the asynchronous extraction protocol:
// submit a job, poll it to completion, verify the remaining day quota
// covers the remaining pages, collect the produced files, and follow
// the page token into the next job until the token is "null" or
// preview mode stops after the first page.
type ExtractionJobController struct {
	transport    Caller
	endpoints    *Endpoints
	extraction   config.ExtractionConfig
	pollInterval time.Duration
	sleep        func(context.Context, time.Duration) error
	logger       *zap.Logger

	// dayQuota is the remaining day-tier quota reported by the most
	// recent job submission; the quota check reads it during polling.
	dayQuota int

	// updateFilter caches the template's filter-expression check so
	// each page of the chain decides the filter body the same way.
	updateFilter        bool
	updateFilterChecked bool
}

// NewExtractionJobController creates a job controller.
func NewExtractionJobController(
	transport Caller,
	endpoints *Endpoints,
	extraction config.ExtractionConfig,
	pollInterval time.Duration,
	logger *zap.Logger,
) *ExtractionJobController {
	return &ExtractionJobController{
		transport:    transport,
		endpoints:    endpoints,
		extraction:   extraction,
		pollInterval: pollInterval,
		sleep:        sleepContext,
		logger:       logger.With(zap.String("component", "job_controller")),
	}
}

// SetSleeper overrides the poll wait, used by tests to avoid real
// two minute sleeps.
func (c *ExtractionJobController) SetSleeper(sleep func(context.Context, time.Duration) error) {
	c.sleep = sleep
}

func sleepContext(ctx context.Context, d time.Duration) error {
	select {
	case <-ctx.Done():
		return errors.Wrap(ctx.Err(), errors.ErrorTypeTimeout, "wait interrupted")
	case <-time.After(d):
		return nil
	}
}

// EnumerateSplits runs the full job chain for the configured view
// template and returns the ordered split descriptors for every file
// produced across all pages.
func (c *ExtractionJobController) EnumerateSplits(ctx context.Context) ([]Split, error) {
	var splits []Split
	pageToken := ""

	for {
		jobID, err := c.CreateJob(ctx, pageToken)
		if err != nil {
			return nil, err
		}

		job, err := c.AwaitCompletion(ctx, jobID)
		if err != nil {
			return nil, err
		}

		for _, file := range job.Files {
			splits = append(splits, Split{JobID: jobID, FileName: file})
		}

		c.logger.Info("page completed",
			zap.String("job_id", jobID),
			zap.Int("current_page", job.CurrentPage),
			zap.Int("total_pages", job.TotalPages),
			zap.Int("files", len(job.Files)))

		if c.extraction.PreviewMode || job.PageToken == "" ||
			strings.EqualFold(job.PageToken, pageTokenNull) {
			return splits, nil
		}
		pageToken = job.PageToken
	}
}

// CreateJob submits one extraction job, optionally continuing from a
// page token, and returns the created job id. The day-tier quota
// reported on the submission response is kept for the quota check.
func (c *ExtractionJobController) CreateJob(ctx context.Context, pageToken string) (string, error) {
	body, err := c.buildFilterBody(ctx)
	if err != nil {
		return "", err
	}

	rc, err := c.transport.Post(ctx, c.endpoints.JobSubmit(pageToken), "job_create", body)
	if err != nil {
		return "", err
	}
	if rc.StatusCode != http.StatusOK {
		return "", errors.New(errors.ErrorTypeJob, rc.Message()).WithCode(rc.StatusCode)
	}

	if quota, ok := rc.IntHeader(clients.HeaderRemainingDay); ok {
		c.dayQuota = quota
		c.logger.Info("job submitted", zap.Int("remaining_day_quota", quota))
	}

	var job JobResult
	if err := json.Unmarshal(rc.Body, &job); err != nil {
		return "", errors.Wrap(err, errors.ErrorTypeJob, "failed to parse job submission response")
	}
	if job.JobID == "" {
		return "", errors.New(errors.ErrorTypeJob, "job submission response carries no job id")
	}
	return job.JobID, nil
}

// AwaitCompletion polls the job status at the configured interval
// until the job reaches a terminal state. A fatal job status surfaces
// verbatim; on success the remaining day quota is verified against the
// remaining pages before the page is consumed.
func (c *ExtractionJobController) AwaitCompletion(ctx context.Context, jobID string) (*JobResult, error) {
	for {
		job, err := c.FetchJobStatus(ctx, jobID)
		if err != nil {
			return nil, err
		}

		switch job.Status {
		case JobStatusCompleted, JobStatusCompletedZeroRecords:
			metrics.JobPolls.WithLabelValues(job.Status).Inc()
			if err := c.verifyAvailableQuota(job); err != nil {
				return nil, err
			}
			return job, nil
		default:
			metrics.JobPolls.WithLabelValues("pending").Inc()
			c.logger.Info("job still running, waiting",
				zap.String("job_id", jobID),
				zap.String("status", job.Status),
				zap.Duration("poll_interval", c.pollInterval))
			if err := c.sleep(ctx, c.pollInterval); err != nil {
				return nil, err
			}
		}
	}
}

// FetchJobStatus reads the job result endpoint once.
func (c *ExtractionJobController) FetchJobStatus(ctx context.Context, jobID string) (*JobResult, error) {
	rc, err := c.transport.Get(ctx, c.endpoints.JobStatus(jobID), "job_status")
	if err != nil {
		return nil, err
	}
	if rc.StatusCode != http.StatusOK {
		metrics.JobPolls.WithLabelValues("failed").Inc()
		return nil, errors.New(errors.ErrorTypeJob, rc.Message()).WithCode(rc.StatusCode)
	}

	var job JobResult
	if err := json.Unmarshal(rc.Body, &job); err != nil {
		return nil, errors.Wrap(err, errors.ErrorTypeJob, "failed to parse job status response")
	}

	switch job.Status {
	case JobStatusMaxReached, JobStatusInternalError, JobStatusInvalidDateRange:
		metrics.JobPolls.WithLabelValues("failed").Inc()
		return nil, errors.New(errors.ErrorTypeJob, job.Status).
			WithDetail("job_id", jobID)
	}
	return &job, nil
}

// verifyAvailableQuota aborts before consuming a page when the day
// quota left over from job submission cannot cover the pages still to
// be fetched.
func (c *ExtractionJobController) verifyAvailableQuota(job *JobResult) error {
	remainingPages := job.TotalPages - job.CurrentPage
	if remainingPages > c.dayQuota {
		c.logger.Warn("insufficient day quota for remaining pages",
			zap.Int("remaining_pages", remainingPages),
			zap.Int("day_quota", c.dayQuota))
		return errors.New(errors.ErrorTypeQuota, "available day quota is less than required").
			WithDetail("remaining_pages", remainingPages).
			WithDetail("day_quota", c.dayQuota)
	}
	return nil
}

// buildFilterBody builds the job submission body. Templates whose
// first declared filter expression is an updatedDate filter take an
// updatedDateFrom/To window only when an explicit from date is
// configured; every other template gets a createdDateFrom/To window
// defaulting to the trailing year.
func (c *ExtractionJobController) buildFilterBody(ctx context.Context) ([]byte, error) {
	updateFilter, err := c.checkUpdateFilter(ctx)
	if err != nil {
		return nil, err
	}

	now := time.Now().UTC().Truncate(time.Second)
	fromDate := c.extraction.FromDate
	if fromDate == "" {
		fromDate = now.AddDate(-1, 0, 0).Format(config.DateTimeLayout)
	}
	toDate := c.extraction.ToDate
	if toDate == "" {
		toDate = now.Format(config.DateTimeLayout)
	}

	type filters map[string]string
	payload := map[string]interface{}{
		paramViewTemplateName: c.extraction.ViewTemplateName,
	}

	switch {
	case !updateFilter:
		payload["filters"] = filters{
			"createdDateFrom": fromDate,
			"createdDateTo":   toDate,
		}
	case c.extraction.FromDate != "":
		payload["filters"] = filters{
			"updatedDateFrom": fromDate,
			"updatedDateTo":   toDate,
		}
	}

	return json.Marshal(payload)
}

// checkUpdateFilter inspects the view template's declared filter
// expressions. It reports true when the first expression's name
// contains "updatedDate"; a missing or empty listing, or a non-200
// response, reports false.
func (c *ExtractionJobController) checkUpdateFilter(ctx context.Context) (bool, error) {
	if c.updateFilterChecked {
		return c.updateFilter, nil
	}

	rc, err := c.transport.Get(ctx, c.endpoints.FilterExpressions(c.extraction.ViewTemplateName), "filter")
	if err != nil {
		return false, err
	}

	result := false
	if rc.StatusCode == http.StatusOK {
		var tpl viewTemplateResponse
		if err := json.Unmarshal(rc.Body, &tpl); err == nil && len(tpl.FilterExpressions) > 0 {
			result = strings.Contains(tpl.FilterExpressions[0].Name, "updatedDate")
		}
	}

	c.updateFilter = result
	c.updateFilterChecked = true
	return result, nil
}
