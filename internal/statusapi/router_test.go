// stereoingest - state and scheduling core for unattended media audio ingestion
// SPDX-License-Identifier: AGPL-3.0-or-later

package statusapi

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tomtom215/stereoingest/internal/ingest/handlers"
	"github.com/tomtom215/stereoingest/internal/ingest/models"
	"github.com/tomtom215/stereoingest/internal/ingest/store"
	"github.com/tomtom215/stereoingest/internal/metrics"
	"github.com/tomtom215/stereoingest/internal/timeutil"
)

func newTestDeps(t *testing.T) Deps {
	t.Helper()
	st, err := store.Open(store.Options{Path: ":memory:"})
	require.NoError(t, err)
	t.Cleanup(func() { _ = st.Close() })

	recorder := metrics.NewRecorder(24, 100)
	registry := prometheus.NewRegistry()
	return Deps{
		Store:      st,
		Recorder:   recorder,
		Registry:   registry,
		Conversion: handlers.NewConversionRecorder(st, recorder),
		Time:       timeutil.NewSystemTimeSource(),
	}
}

func TestHealthzReportsOK(t *testing.T) {
	r := NewRouter(newTestDeps(t))
	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
	var body map[string]string
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.Equal(t, "ok", body["status"])
}

func TestStatusReportsCounters(t *testing.T) {
	deps := newTestDeps(t)
	deps.Recorder.Increment("some_event", nil)
	r := NewRouter(deps)

	req := httptest.NewRequest(http.MethodGet, "/status", nil)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
	var body statusResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.Equal(t, float64(1), body.Counters["some_event"])
}

func TestMetricsServesPrometheusFormat(t *testing.T) {
	r := NewRouter(newTestDeps(t))
	req := httptest.NewRequest(http.MethodGet, "/metrics", nil)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestConversionCallbackSuccessUpdatesStore(t *testing.T) {
	deps := newTestDeps(t)
	now := time.Unix(1000, 0)
	entry := models.NewFileEntry("/w/movie.mkv", "grp", false, 50<<20, now.Unix(), nil, nil, nil, now)
	require.NoError(t, deps.Store.Upsert(entry))

	r := NewRouter(deps)
	body, _ := json.Marshal(conversionCallbackRequest{Path: "/w/movie.mkv"})
	req := httptest.NewRequest(http.MethodPost, "/conversion/success", bytes.NewReader(body))
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	require.Equal(t, http.StatusOK, w.Code)
	got, err := deps.Store.GetByPath("/w/movie.mkv")
	require.NoError(t, err)
	assert.Equal(t, models.ProcessedConverted, got.ProcessedStatus)
}

func TestConversionCallbackUnknownActionReturnsNotFound(t *testing.T) {
	deps := newTestDeps(t)
	r := NewRouter(deps)
	body, _ := json.Marshal(conversionCallbackRequest{Path: "/w/movie.mkv"})
	req := httptest.NewRequest(http.MethodPost, "/conversion/bogus", bytes.NewReader(body))
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestConversionCallbackRejectsMissingPath(t *testing.T) {
	deps := newTestDeps(t)
	r := NewRouter(deps)
	body, _ := json.Marshal(conversionCallbackRequest{})
	req := httptest.NewRequest(http.MethodPost, "/conversion/success", bytes.NewReader(body))
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}
