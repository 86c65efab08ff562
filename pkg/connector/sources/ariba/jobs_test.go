package ariba

import (
	"context"
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/ajitpratap0/aribaflow/pkg/clients"
	"github.com/ajitpratap0/aribaflow/pkg/config"
	"github.com/ajitpratap0/aribaflow/pkg/errors"
)

// fakeCaller routes calls by endpoint label to canned responses.
type fakeCaller struct {
	handler func(method, url, endpoint string, body []byte) (*clients.ResponseContainer, error)
}

func (f *fakeCaller) Do(_ context.Context, method, url, endpoint string, body []byte) (*clients.ResponseContainer, error) {
	return f.handler(method, url, endpoint, body)
}

func (f *fakeCaller) Get(ctx context.Context, url, endpoint string) (*clients.ResponseContainer, error) {
	return f.Do(ctx, http.MethodGet, url, endpoint, nil)
}

func (f *fakeCaller) Post(ctx context.Context, url, endpoint string, body []byte) (*clients.ResponseContainer, error) {
	return f.Do(ctx, http.MethodPost, url, endpoint, body)
}

func jsonResponse(status int, body string, headers map[string]string) *clients.ResponseContainer {
	h := http.Header{}
	for k, v := range headers {
		h.Set(k, v)
	}
	return &clients.ResponseContainer{
		StatusCode: status,
		Status:     http.StatusText(status),
		Headers:    h,
		Body:       []byte(body),
	}
}

func newTestController(caller Caller, extraction config.ExtractionConfig) *ExtractionJobController {
	c := NewExtractionJobController(caller, testEndpoints(), extraction, time.Minute, zap.NewNop())
	c.SetSleeper(func(context.Context, time.Duration) error { return nil })
	return c
}

func noUpdateFilter() string {
	return `{"filterExpressions":[{"name":"createdDateFrom"}]}`
}

func TestEnumerateSplits_FollowsPageTokensUntilNull(t *testing.T) {
	createCalls := 0
	caller := &fakeCaller{handler: func(method, url, endpoint string, body []byte) (*clients.ResponseContainer, error) {
		switch endpoint {
		case "filter":
			return jsonResponse(200, noUpdateFilter(), nil), nil
		case "job_create":
			createCalls++
			if createCalls == 1 {
				return jsonResponse(200, `{"jobId":"job-1"}`,
					map[string]string{clients.HeaderRemainingDay: "40"}), nil
			}
			return jsonResponse(200, `{"jobId":"job-2"}`,
				map[string]string{clients.HeaderRemainingDay: "39"}), nil
		case "job_status":
			if createCalls == 1 {
				return jsonResponse(200, `{
					"jobId":"job-1","status":"completed","pageToken":"tok-2",
					"totalNumOfPages":2,"currentPageNum":1,
					"files":["a.zip","b.zip"]}`, nil), nil
			}
			return jsonResponse(200, `{
				"jobId":"job-2","status":"completed","pageToken":"null",
				"totalNumOfPages":2,"currentPageNum":2,
				"files":["c.zip"]}`, nil), nil
		default:
			t.Fatalf("unexpected endpoint %q", endpoint)
			return nil, nil
		}
	}}

	c := newTestController(caller, config.ExtractionConfig{ViewTemplateName: "V"})
	splits, err := c.EnumerateSplits(context.Background())
	require.NoError(t, err)

	assert.Equal(t, []Split{
		{JobID: "job-1", FileName: "a.zip"},
		{JobID: "job-1", FileName: "b.zip"},
		{JobID: "job-2", FileName: "c.zip"},
	}, splits)
	assert.Equal(t, 2, createCalls, "pagination must stop on the null token")
}

func TestEnumerateSplits_PreviewModeStopsAfterFirstPage(t *testing.T) {
	createCalls := 0
	caller := &fakeCaller{handler: func(method, url, endpoint string, body []byte) (*clients.ResponseContainer, error) {
		switch endpoint {
		case "filter":
			return jsonResponse(200, noUpdateFilter(), nil), nil
		case "job_create":
			createCalls++
			return jsonResponse(200, `{"jobId":"job-1"}`,
				map[string]string{clients.HeaderRemainingDay: "40"}), nil
		default:
			return jsonResponse(200, `{
				"jobId":"job-1","status":"completed","pageToken":"tok-2",
				"totalNumOfPages":9,"currentPageNum":1,
				"files":["a.zip"]}`, nil), nil
		}
	}}

	c := newTestController(caller, config.ExtractionConfig{ViewTemplateName: "V", PreviewMode: true})
	splits, err := c.EnumerateSplits(context.Background())
	require.NoError(t, err)

	assert.Len(t, splits, 1)
	assert.Equal(t, 1, createCalls)
}

func TestAwaitCompletion_PollsUntilTerminal(t *testing.T) {
	polls := 0
	sleeps := 0
	caller := &fakeCaller{handler: func(method, url, endpoint string, body []byte) (*clients.ResponseContainer, error) {
		polls++
		if polls < 3 {
			return jsonResponse(200, `{"jobId":"j","status":"processing"}`, nil), nil
		}
		return jsonResponse(200, `{
			"jobId":"j","status":"completedZeroRecords","pageToken":"null",
			"totalNumOfPages":0,"currentPageNum":0,"files":[]}`, nil), nil
	}}

	c := newTestController(caller, config.ExtractionConfig{ViewTemplateName: "V"})
	c.SetSleeper(func(context.Context, time.Duration) error {
		sleeps++
		return nil
	})

	job, err := c.AwaitCompletion(context.Background(), "j")
	require.NoError(t, err)
	assert.Equal(t, JobStatusCompletedZeroRecords, job.Status)
	assert.Equal(t, 3, polls)
	assert.Equal(t, 2, sleeps)
}

func TestFetchJobStatus_FatalStatusSurfacesVerbatim(t *testing.T) {
	for _, status := range []string{JobStatusMaxReached, JobStatusInternalError, JobStatusInvalidDateRange} {
		t.Run(status, func(t *testing.T) {
			caller := &fakeCaller{handler: func(method, url, endpoint string, body []byte) (*clients.ResponseContainer, error) {
				return jsonResponse(200, `{"jobId":"j","status":"`+status+`"}`, nil), nil
			}}
			c := newTestController(caller, config.ExtractionConfig{ViewTemplateName: "V"})

			_, err := c.FetchJobStatus(context.Background(), "j")
			require.Error(t, err)
			assert.True(t, errors.IsType(err, errors.ErrorTypeJob))
			assert.Contains(t, err.Error(), status)
		})
	}
}

func TestAwaitCompletion_InsufficientQuotaAborts(t *testing.T) {
	caller := &fakeCaller{handler: func(method, url, endpoint string, body []byte) (*clients.ResponseContainer, error) {
		switch endpoint {
		case "filter":
			return jsonResponse(200, noUpdateFilter(), nil), nil
		case "job_create":
			return jsonResponse(200, `{"jobId":"job-1"}`,
				map[string]string{clients.HeaderRemainingDay: "2"}), nil
		default:
			return jsonResponse(200, `{
				"jobId":"job-1","status":"completed","pageToken":"tok-2",
				"totalNumOfPages":10,"currentPageNum":1,
				"files":["a.zip"]}`, nil), nil
		}
	}}

	c := newTestController(caller, config.ExtractionConfig{ViewTemplateName: "V"})
	_, err := c.EnumerateSplits(context.Background())
	require.Error(t, err)
	assert.True(t, errors.IsType(err, errors.ErrorTypeQuota))
}

func TestCreateJob_FilterBody(t *testing.T) {
	t.Run("created date window by default", func(t *testing.T) {
		var jobBody []byte
		caller := &fakeCaller{handler: func(method, url, endpoint string, body []byte) (*clients.ResponseContainer, error) {
			if endpoint == "filter" {
				return jsonResponse(200, noUpdateFilter(), nil), nil
			}
			jobBody = body
			return jsonResponse(200, `{"jobId":"j"}`, nil), nil
		}}

		c := newTestController(caller, config.ExtractionConfig{
			ViewTemplateName: "V",
			FromDate:         "2023-01-01T00:00:00Z",
			ToDate:           "2023-06-01T00:00:00Z",
		})
		_, err := c.CreateJob(context.Background(), "")
		require.NoError(t, err)

		assert.Contains(t, string(jobBody), `"createdDateFrom":"2023-01-01T00:00:00Z"`)
		assert.Contains(t, string(jobBody), `"createdDateTo":"2023-06-01T00:00:00Z"`)
		assert.Contains(t, string(jobBody), `"viewTemplateName":"V"`)
	})

	t.Run("updated date window when template declares it", func(t *testing.T) {
		var jobBody []byte
		caller := &fakeCaller{handler: func(method, url, endpoint string, body []byte) (*clients.ResponseContainer, error) {
			if endpoint == "filter" {
				return jsonResponse(200, `{"filterExpressions":[{"name":"updatedDateFrom"}]}`, nil), nil
			}
			jobBody = body
			return jsonResponse(200, `{"jobId":"j"}`, nil), nil
		}}

		c := newTestController(caller, config.ExtractionConfig{
			ViewTemplateName: "V",
			FromDate:         "2023-01-01T00:00:00Z",
			ToDate:           "2023-06-01T00:00:00Z",
		})
		_, err := c.CreateJob(context.Background(), "")
		require.NoError(t, err)

		assert.Contains(t, string(jobBody), `"updatedDateFrom"`)
		assert.NotContains(t, string(jobBody), `"createdDateFrom"`)
	})

	t.Run("no filter for update template without from date", func(t *testing.T) {
		var jobBody []byte
		caller := &fakeCaller{handler: func(method, url, endpoint string, body []byte) (*clients.ResponseContainer, error) {
			if endpoint == "filter" {
				return jsonResponse(200, `{"filterExpressions":[{"name":"updatedDateFrom"}]}`, nil), nil
			}
			jobBody = body
			return jsonResponse(200, `{"jobId":"j"}`, nil), nil
		}}

		c := newTestController(caller, config.ExtractionConfig{ViewTemplateName: "V"})
		_, err := c.CreateJob(context.Background(), "")
		require.NoError(t, err)
		assert.NotContains(t, string(jobBody), `"filters"`)
	})
}

func TestCheckUpdateFilter(t *testing.T) {
	tests := []struct {
		name   string
		status int
		body   string
		want   bool
	}{
		{"first filter is updatedDate", 200, `{"filterExpressions":[{"name":"updatedDateFrom"}]}`, true},
		{"first filter is createdDate", 200, noUpdateFilter(), false},
		{"empty expressions", 200, `{"filterExpressions":[]}`, false},
		{"missing expressions", 200, `{}`, false},
		{"non-200 response", 404, `{"message":"not found"}`, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			caller := &fakeCaller{handler: func(method, url, endpoint string, body []byte) (*clients.ResponseContainer, error) {
				return jsonResponse(tt.status, tt.body, nil), nil
			}}
			c := newTestController(caller, config.ExtractionConfig{ViewTemplateName: "V"})

			got, err := c.checkUpdateFilter(context.Background())
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}
