package clients

import (
	"net/http"
	"strconv"
	"time"

	"go.uber.org/zap"

	"github.com/ajitpratap0/aribaflow/pkg/errors"
	"github.com/ajitpratap0/aribaflow/pkg/metrics"
)

// Rate-limit headers returned by the service. Remaining counts are
// reported per window; RateLimit-Reset carries seconds until the
// breached window resets.
const (
	HeaderRemainingDay    = "X-RateLimit-Remaining-Day"
	HeaderRemainingHour   = "X-RateLimit-Remaining-Hour"
	HeaderRemainingMinute = "X-RateLimit-Remaining-Minute"
	HeaderRemainingSecond = "X-RateLimit-Remaining-Second"
	HeaderRateLimitReset  = "RateLimit-Reset"
)

// Window identifies one of the four rate-limit windows.
type Window string

// Rate-limit windows, from coarsest to finest.
const (
	WindowDay    Window = "day"
	WindowHour   Window = "hour"
	WindowMinute Window = "minute"
	WindowSecond Window = "second"
)

// RateLimitSample is an immutable snapshot of the rate-limit headers on
// one response. A window whose header is absent or malformed is treated
// as not exhausted.
type RateLimitSample struct {
	day, hour, minute, second       int
	hasDay, hasHour, hasMin, hasSec bool

	// Reset is seconds until the breached window resets
	Reset int
}

// NewRateLimitSample parses the rate-limit headers from a response.
func NewRateLimitSample(h http.Header) RateLimitSample {
	var s RateLimitSample
	s.day, s.hasDay = intHeader(h, HeaderRemainingDay)
	s.hour, s.hasHour = intHeader(h, HeaderRemainingHour)
	s.minute, s.hasMin = intHeader(h, HeaderRemainingMinute)
	s.second, s.hasSec = intHeader(h, HeaderRemainingSecond)
	s.Reset, _ = intHeader(h, HeaderRateLimitReset)
	return s
}

func intHeader(h http.Header, name string) (int, bool) {
	v := h.Get(name)
	if v == "" {
		return 0, false
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, false
	}
	return n, true
}

// DayRemaining returns the remaining daily quota and whether the header
// was present.
func (s RateLimitSample) DayRemaining() (int, bool) {
	return s.day, s.hasDay
}

// ExhaustedWindow returns the coarsest exhausted window, checking day,
// hour, minute, second in that order. A window is exhausted when its
// remaining count is below one.
func (s RateLimitSample) ExhaustedWindow() (Window, bool) {
	switch {
	case s.hasDay && s.day < 1:
		return WindowDay, true
	case s.hasHour && s.hour < 1:
		return WindowHour, true
	case s.hasMin && s.minute < 1:
		return WindowMinute, true
	case s.hasSec && s.second < 1:
		return WindowSecond, true
	}
	return "", false
}

// Governor classifies non-success responses against the four rate-limit
// windows and decides whether a failure is retryable. A day breach is
// always fatal; hour, minute and second breaches are retryable, and the
// governor optionally blocks until the breached window resets before
// handing the error back to the retry policy.
type Governor struct {
	waitOnRateLimit bool
	sleep           func(time.Duration)
	logger          *zap.Logger
}

// NewGovernor creates a governor. When waitOnRateLimit is set, hour,
// minute and second breaches block the calling goroutine for the window
// reset duration before returning the retryable error.
func NewGovernor(waitOnRateLimit bool, logger *zap.Logger) *Governor {
	return &Governor{
		waitOnRateLimit: waitOnRateLimit,
		sleep:           time.Sleep,
		logger:          logger.With(zap.String("component", "rate_limit_governor")),
	}
}

// SetSleeper replaces the blocking sleep function. Tests use this to
// avoid real waits.
func (g *Governor) SetSleeper(sleep func(time.Duration)) {
	g.sleep = sleep
}

// Check classifies a drained response. It returns nil for HTTP 200.
// A 400 carrying a service message is fatal regardless of the rate-limit
// headers. Otherwise the headers decide: a day breach is a fatal quota
// error carrying hours until reset, finer breaches are retryable, and
// any other non-200 is a fatal service error.
func (g *Governor) Check(rc *ResponseContainer) error {
	if rc.StatusCode == http.StatusOK {
		return nil
	}

	if rc.StatusCode == http.StatusBadRequest {
		if msg := rc.Message(); msg != "" {
			return errors.New(errors.ErrorTypeService, msg).WithCode(rc.StatusCode)
		}
	}

	sample := NewRateLimitSample(rc.Headers)
	window, exhausted := sample.ExhaustedWindow()
	if exhausted {
		switch window {
		case WindowDay:
			retryAfter := sample.Reset/3600 + 1
			g.logger.Info("API rate limit exceeded for the day",
				zap.Int("retry_after_hours", retryAfter))
			return errors.Newf(errors.ErrorTypeQuota,
				"API rate limit exceeded for the day, retry after %d hours", retryAfter).
				WithCode(rc.StatusCode).
				WithDetail("retry_after_hours", retryAfter)

		case WindowHour:
			if g.waitOnRateLimit {
				retryAfter := sample.Reset/60 + 1
				g.logger.Info("API rate limit exceeded for the hour",
					zap.Int("wait_minutes", retryAfter))
				metrics.RateLimitWaits.WithLabelValues(string(WindowHour)).Inc()
				g.sleep(time.Duration(retryAfter) * time.Minute)
			}
			return g.retryableError(rc)

		case WindowMinute, WindowSecond:
			if g.waitOnRateLimit {
				g.logger.Debug("API rate limit exceeded",
					zap.String("window", string(window)),
					zap.Int("wait_seconds", sample.Reset))
				metrics.RateLimitWaits.WithLabelValues(string(window)).Inc()
				g.sleep(time.Duration(sample.Reset) * time.Second)
			}
			return g.retryableError(rc)
		}
	}

	return errors.New(errors.ErrorTypeService, rc.Message()).WithCode(rc.StatusCode)
}

func (g *Governor) retryableError(rc *ResponseContainer) error {
	return errors.Newf(errors.ErrorTypeRateLimit,
		"call failed with status %d: %s", rc.StatusCode, rc.Message()).
		WithCode(rc.StatusCode)
}
