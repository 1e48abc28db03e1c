package metrics

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStatusCodeToString(t *testing.T) {
	tests := []struct {
		code int
		want string
	}{
		{200, "2xx"},
		{204, "2xx"},
		{302, "3xx"},
		{409, "4xx"},
		{412, "4xx"},
		{503, "5xx"},
		{99, "unknown"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, statusCodeToString(tt.code))
	}
}

func TestSessionMetrics(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewMetrics(reg)

	m.RecordSessionOperation("connect", "success", 0.5)
	m.RecordSessionOperation("connect", "error", 0.1)
	m.RecordSessionOperation("connect", "success", 0.2)
	m.RecordNotification("error")
	m.SetSessionBusy("abc", true)
	m.RecordLamportsTransferred("devnet", 1_000_000_000)

	assert.Equal(t, 2.0, testutil.ToFloat64(m.sessionOperationsTotal.WithLabelValues("connect", "success")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.sessionOperationsTotal.WithLabelValues("connect", "error")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.notificationsTotal.WithLabelValues("error")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.sessionBusy.WithLabelValues("abc")))
	assert.Equal(t, 1e9, testutil.ToFloat64(m.lamportsTransferredTotal.WithLabelValues("devnet")))

	m.SetSessionBusy("abc", false)
	assert.Equal(t, 0.0, testutil.ToFloat64(m.sessionBusy.WithLabelValues("abc")))
}

func TestHTTPMetrics(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewMetrics(reg)

	mux := http.NewServeMux()
	mux.Handle("POST /api/v1/session/connect", HTTPMetrics(m)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusConflict)
		w.WriteHeader(http.StatusOK)
	})))

	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/v1/session/connect", nil))

	assert.Equal(t, http.StatusConflict, rec.Code)
	assert.Equal(t, 1.0, testutil.ToFloat64(m.httpRequestsTotal.WithLabelValues("/api/v1/session/connect", "POST", "4xx")))

	families, err := reg.Gather()
	require.NoError(t, err)
	var names []string
	for _, f := range families {
		names = append(names, f.GetName())
	}
	assert.Contains(t, strings.Join(names, ","), "http_request_duration_seconds")
}

func TestHTTPMetrics_UnmatchedRoute(t *testing.T) {
	m := NewMetrics(prometheus.NewRegistry())

	handler := HTTPMetrics(m)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("OK"))
	}))
	handler.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/health", nil))

	assert.Equal(t, 1.0, testutil.ToFloat64(m.httpRequestsTotal.WithLabelValues("unmatched", "GET", "2xx")))
}

func TestHTTPMetrics_NilMetrics(t *testing.T) {
	next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("OK"))
	})
	handler := HTTPMetrics(nil)(next)

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
}
