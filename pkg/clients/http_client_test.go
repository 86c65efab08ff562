package clients

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func newTestClient() *HTTPClient {
	cfg := DefaultHTTPConfig()
	cfg.EnableHTTP2 = false
	cfg.CircuitBreakerEnabled = false
	return NewHTTPClient(cfg, zap.NewNop())
}

func TestHTTPClient_Execute(t *testing.T) {
	var gotHeaders http.Header
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotHeaders = r.Header.Clone()
		w.Header().Set("X-RateLimit-Remaining-Day", "42")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"jobId":"j"}`))
	}))
	defer srv.Close()

	c := newTestClient()
	defer func() { _ = c.Close() }()

	rc, err := c.Execute(context.Background(), http.MethodPost, srv.URL, "job_create",
		strings.NewReader(`{"viewTemplateName":"V"}`),
		map[string]string{"apiKey": "k", "Content-Type": "application/json"})
	require.NoError(t, err)

	assert.Equal(t, http.StatusOK, rc.StatusCode)
	assert.Equal(t, []byte(`{"jobId":"j"}`), rc.Body)
	assert.Equal(t, "k", gotHeaders.Get("apiKey"))
	assert.Equal(t, "application/json", gotHeaders.Get("Content-Type"))

	quota, ok := rc.IntHeader(HeaderRemainingDay)
	require.True(t, ok)
	assert.Equal(t, 42, quota)

	stats := c.GetStats()
	assert.Equal(t, int64(1), stats.TotalRequests)
	assert.Zero(t, stats.FailedRequests)
}

func TestHTTPClient_ExecuteDrainsErrorResponses(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		_, _ = w.Write([]byte(`{"message":"invalid date range"}`))
	}))
	defer srv.Close()

	c := newTestClient()
	defer func() { _ = c.Close() }()

	// Non-2xx is not a transport error; the caller classifies it
	rc, err := c.Get(context.Background(), srv.URL, "metadata", nil)
	require.NoError(t, err)
	assert.Equal(t, http.StatusBadRequest, rc.StatusCode)
	assert.Equal(t, "invalid date range", rc.Message())
}

func TestHTTPClient_TransportErrorCountsAsFailed(t *testing.T) {
	c := newTestClient()
	defer func() { _ = c.Close() }()

	_, err := c.Get(context.Background(), "http://127.0.0.1:1", "metadata", nil)
	require.Error(t, err)

	stats := c.GetStats()
	assert.Equal(t, int64(1), stats.FailedRequests)
}
