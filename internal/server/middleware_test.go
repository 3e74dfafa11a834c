package server

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMetricsMiddleware_RecordsRoutePattern(t *testing.T) {
	router := newTestServer(verifiedStub()).Router()

	router.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/health", nil))
	router.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodPost, "/v1/parse", http.NoBody))

	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	require.Equal(t, http.StatusOK, w.Code)

	body := w.Body.String()
	assert.Contains(t, body, `motorpass_http_requests_total{endpoint="/health",method="GET",status="200"}`)
	assert.Contains(t, body, `motorpass_http_requests_total{endpoint="/v1/parse",method="POST",status="400"}`)
	assert.Contains(t, body, `motorpass_http_request_duration_seconds_bucket{endpoint="/health",method="GET"`)
}

func TestCORSPreflightSkipsHandlers(t *testing.T) {
	v := verifiedStub()
	w := httptest.NewRecorder()
	newTestServer(v).Router().ServeHTTP(w, httptest.NewRequest(http.MethodOptions, "/v1/verify", nil))

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "GET, POST, OPTIONS", w.Header().Get("Access-Control-Allow-Methods"))
	assert.Empty(t, v.requests)
}
