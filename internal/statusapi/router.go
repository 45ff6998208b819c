// stereoingest - state and scheduling core for unattended media audio ingestion
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package statusapi exposes the optional chi-based status/metrics HTTP
// surface named in SPEC_FULL.md §3 and §6.1: /healthz, /metrics, /status,
// and a conversion-outcome callback for the external downmix tool. It is
// kept intentionally thin: no auth, no CORS policy beyond a permissive
// default, and no surfaces beyond these four routes.
package statusapi

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/tomtom215/stereoingest/internal/ingest/handlers"
	"github.com/tomtom215/stereoingest/internal/ingest/store"
	"github.com/tomtom215/stereoingest/internal/metrics"
	"github.com/tomtom215/stereoingest/internal/timeutil"
)

// Deps bundles the collaborators the status surface reads from.
type Deps struct {
	Store      *store.Store
	Recorder   *metrics.Recorder
	Registry   *prometheus.Registry
	Conversion *handlers.ConversionRecorder
	Time       timeutil.TimeSource
}

// NewRouter builds the chi router for the status/metrics surface.
func NewRouter(d Deps) http.Handler {
	r := chi.NewRouter()
	r.Use(chimiddleware.RealIP)
	r.Use(chimiddleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: []string{"*"},
		AllowedMethods: []string{http.MethodGet, http.MethodPost},
	}))

	r.Get("/healthz", healthHandler(d))
	r.Get("/status", statusHandler(d))
	if d.Registry != nil {
		r.Handle("/metrics", promhttp.HandlerFor(d.Registry, promhttp.HandlerOpts{}))
	} else {
		r.Handle("/metrics", promhttp.Handler())
	}
	r.Post("/conversion/{action}", conversionCallbackHandler(d))

	return r
}

func healthHandler(d Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	}
}

type statusResponse struct {
	NowWall    time.Time          `json:"now_wall"`
	Counters   map[string]float64 `json:"counters"`
	GeneratedAt time.Time         `json:"generated_at"`
}

func statusHandler(d Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var counters map[string]float64
		if d.Recorder != nil {
			counters = d.Recorder.GetCounters()
		}
		resp := statusResponse{
			Counters:    counters,
			GeneratedAt: time.Now(),
		}
		if d.Time != nil {
			resp.NowWall = d.Time.NowWall()
		}
		writeJSON(w, http.StatusOK, resp)
	}
}

// conversionCallbackRequest is posted by the external downmix tool to
// report the outcome of a conversion attempt.
type conversionCallbackRequest struct {
	Path  string `json:"path"`
	Error string `json:"error,omitempty"`
}

func conversionCallbackHandler(d Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		action := chi.URLParam(r, "action")

		var req conversionCallbackRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, "invalid request body", http.StatusBadRequest)
			return
		}
		if req.Path == "" {
			http.Error(w, "path is required", http.StatusBadRequest)
			return
		}

		nowWall := time.Now()
		if d.Time != nil {
			nowWall = d.Time.NowWall()
		}

		var err error
		switch action {
		case "success":
			err = d.Conversion.RecordSuccess(req.Path, nowWall)
		case "failure":
			err = d.Conversion.RecordFailure(req.Path, req.Error, nowWall)
		case "retry":
			err = d.Conversion.RetryFailedConversion(req.Path, nowWall)
		default:
			http.Error(w, "unknown action", http.StatusNotFound)
			return
		}
		if err != nil {
			http.Error(w, err.Error(), http.StatusInternalServerError)
			return
		}
		writeJSON(w, http.StatusOK, map[string]string{"status": "recorded"})
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
