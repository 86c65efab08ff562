package clients

import (
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/ajitpratap0/aribaflow/pkg/errors"
)

func sampleHeaders(day, hour, minute, second, reset string) http.Header {
	h := http.Header{}
	if day != "" {
		h.Set(HeaderRemainingDay, day)
	}
	if hour != "" {
		h.Set(HeaderRemainingHour, hour)
	}
	if minute != "" {
		h.Set(HeaderRemainingMinute, minute)
	}
	if second != "" {
		h.Set(HeaderRemainingSecond, second)
	}
	if reset != "" {
		h.Set(HeaderRateLimitReset, reset)
	}
	return h
}

func TestRateLimitSample_ExhaustedWindow(t *testing.T) {
	t.Run("no headers means nothing exhausted", func(t *testing.T) {
		s := NewRateLimitSample(http.Header{})
		_, exhausted := s.ExhaustedWindow()
		assert.False(t, exhausted)
	})

	t.Run("day checked before finer windows", func(t *testing.T) {
		s := NewRateLimitSample(sampleHeaders("0", "0", "0", "0", "7200"))
		window, exhausted := s.ExhaustedWindow()
		require.True(t, exhausted)
		assert.Equal(t, WindowDay, window)
	})

	t.Run("hour exhausted when day has quota", func(t *testing.T) {
		s := NewRateLimitSample(sampleHeaders("30", "0", "0", "0", "120"))
		window, exhausted := s.ExhaustedWindow()
		require.True(t, exhausted)
		assert.Equal(t, WindowHour, window)
	})

	t.Run("second is the finest window", func(t *testing.T) {
		s := NewRateLimitSample(sampleHeaders("30", "5", "1", "0", "1"))
		window, exhausted := s.ExhaustedWindow()
		require.True(t, exhausted)
		assert.Equal(t, WindowSecond, window)
	})

	t.Run("malformed header treated as absent", func(t *testing.T) {
		s := NewRateLimitSample(sampleHeaders("oops", "3", "3", "3", ""))
		_, exhausted := s.ExhaustedWindow()
		assert.False(t, exhausted)
	})
}

func TestGovernor_Check(t *testing.T) {
	newGovernor := func(wait bool) (*Governor, *[]time.Duration) {
		g := NewGovernor(wait, zap.NewNop())
		var slept []time.Duration
		g.SetSleeper(func(d time.Duration) { slept = append(slept, d) })
		return g, &slept
	}

	t.Run("200 passes", func(t *testing.T) {
		g, _ := newGovernor(true)
		err := g.Check(&ResponseContainer{StatusCode: http.StatusOK})
		assert.NoError(t, err)
	})

	t.Run("400 with message is fatal service error", func(t *testing.T) {
		g, slept := newGovernor(true)
		rc := &ResponseContainer{
			StatusCode: http.StatusBadRequest,
			Status:     "400 Bad Request",
			Headers:    sampleHeaders("0", "0", "0", "0", "3600"),
			Body:       []byte(`{"message":"invalid view template"}`),
		}
		err := g.Check(rc)
		require.Error(t, err)
		assert.True(t, errors.IsType(err, errors.ErrorTypeService))
		assert.False(t, errors.IsRetryable(err))
		assert.Contains(t, err.Error(), "invalid view template")
		assert.Empty(t, *slept, "fatal errors must not wait")
	})

	t.Run("day breach is fatal with hours until reset", func(t *testing.T) {
		g, slept := newGovernor(true)
		rc := &ResponseContainer{
			StatusCode: http.StatusTooManyRequests,
			Status:     "429 Too Many Requests",
			Headers:    sampleHeaders("0", "1", "1", "1", "7200"),
		}
		err := g.Check(rc)
		require.Error(t, err)
		assert.True(t, errors.IsType(err, errors.ErrorTypeQuota))
		assert.False(t, errors.IsRetryable(err))

		var structured *errors.Error
		require.ErrorAs(t, err, &structured)
		assert.Equal(t, 3, structured.Details["retry_after_hours"])
		assert.Empty(t, *slept)
	})

	t.Run("hour breach waits in minutes then returns retryable", func(t *testing.T) {
		g, slept := newGovernor(true)
		rc := &ResponseContainer{
			StatusCode: http.StatusTooManyRequests,
			Status:     "429 Too Many Requests",
			Headers:    sampleHeaders("10", "0", "1", "1", "120"),
		}
		err := g.Check(rc)
		require.Error(t, err)
		assert.True(t, errors.IsRetryable(err))
		require.Len(t, *slept, 1)
		assert.Equal(t, 3*time.Minute, (*slept)[0])
	})

	t.Run("second breach waits reset seconds", func(t *testing.T) {
		g, slept := newGovernor(true)
		rc := &ResponseContainer{
			StatusCode: http.StatusTooManyRequests,
			Status:     "429 Too Many Requests",
			Headers:    sampleHeaders("10", "5", "2", "0", "1"),
		}
		err := g.Check(rc)
		require.Error(t, err)
		assert.True(t, errors.IsRetryable(err))
		require.Len(t, *slept, 1)
		assert.Equal(t, time.Second, (*slept)[0])
	})

	t.Run("wait disabled still classifies retryable", func(t *testing.T) {
		g, slept := newGovernor(false)
		rc := &ResponseContainer{
			StatusCode: http.StatusTooManyRequests,
			Status:     "429 Too Many Requests",
			Headers:    sampleHeaders("10", "0", "1", "1", "120"),
		}
		err := g.Check(rc)
		require.Error(t, err)
		assert.True(t, errors.IsRetryable(err))
		assert.Empty(t, *slept)
	})

	t.Run("non-200 without breach is fatal service error", func(t *testing.T) {
		g, _ := newGovernor(true)
		rc := &ResponseContainer{
			StatusCode: http.StatusInternalServerError,
			Status:     "500 Internal Server Error",
			Headers:    sampleHeaders("10", "5", "2", "1", ""),
		}
		err := g.Check(rc)
		require.Error(t, err)
		assert.True(t, errors.IsType(err, errors.ErrorTypeService))
		assert.False(t, errors.IsRetryable(err))

		var structured *errors.Error
		require.ErrorAs(t, err, &structured)
		assert.Equal(t, http.StatusInternalServerError, structured.Code)
	})
}

func TestResponseContainer_Message(t *testing.T) {
	t.Run("prefers body message", func(t *testing.T) {
		rc := &ResponseContainer{
			Status: "400 Bad Request",
			Body:   []byte(`{"message":"template not found"}`),
		}
		assert.Equal(t, "template not found", rc.Message())
	})

	t.Run("falls back to reason phrase", func(t *testing.T) {
		rc := &ResponseContainer{Status: "503 Service Unavailable"}
		assert.Equal(t, "Service Unavailable", rc.Message())
	})

	t.Run("ignores a non-JSON body", func(t *testing.T) {
		rc := &ResponseContainer{
			Status: "400 Bad Request",
			Body:   []byte("not json"),
		}
		assert.Equal(t, "Bad Request", rc.Message())
	})
}
