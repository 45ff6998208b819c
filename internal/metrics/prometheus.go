// stereoingest - state and scheduling core for unattended media audio ingestion
// SPDX-License-Identifier: AGPL-3.0-or-later

package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Collectors bundles the conventional Prometheus instrumentation for the
// ingest core, registered against a caller-supplied registry so tests can
// use an isolated one instead of the global default.
type Collectors struct {
	DueQueueDepth      prometheus.Gauge
	HandlerDuration    *prometheus.HistogramVec
	HandlerErrors      *prometheus.CounterVec
	BackoffStarted     prometheus.Counter
	BackoffResumed     prometheus.Counter
	Quarantined        prometheus.Counter
	GroupsFinalized    prometheus.Counter
	LeaseContention    prometheus.Counter
	GCEntriesDeleted   prometheus.Counter
}

// NewCollectors registers and returns the collector set on reg.
func NewCollectors(reg prometheus.Registerer) *Collectors {
	factory := promauto.With(reg)
	return &Collectors{
		DueQueueDepth: factory.NewGauge(prometheus.GaugeOpts{
			Name: "stereoingest_due_queue_depth",
			Help: "Number of file entries returned by the most recent due-queue query.",
		}),
		HandlerDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "stereoingest_handler_duration_seconds",
			Help:    "Duration of planner action handlers.",
			Buckets: prometheus.DefBuckets,
		}, []string{"action"}),
		HandlerErrors: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "stereoingest_handler_errors_total",
			Help: "Total handler failures by action.",
		}, []string{"action"}),
		BackoffStarted: factory.NewCounter(prometheus.CounterOpts{
			Name: "stereoingest_backoff_started_total",
			Help: "Total first-in-streak backoff applications.",
		}),
		BackoffResumed: factory.NewCounter(prometheus.CounterOpts{
			Name: "stereoingest_backoff_resumed_total",
			Help: "Total subsequent-in-streak backoff applications.",
		}),
		Quarantined: factory.NewCounter(prometheus.CounterOpts{
			Name: "stereoingest_quarantined_total",
			Help: "Total entries transitioned to Quarantined.",
		}),
		GroupsFinalized: factory.NewCounter(prometheus.CounterOpts{
			Name: "stereoingest_groups_finalized_total",
			Help: "Total groups transitioned to GroupProcessed.",
		}),
		LeaseContention: factory.NewCounter(prometheus.CounterOpts{
			Name: "stereoingest_lease_contention_total",
			Help: "Total failed lease-acquire attempts due to a live competing lease.",
		}),
		GCEntriesDeleted: factory.NewCounter(prometheus.CounterOpts{
			Name: "stereoingest_gc_entries_deleted_total",
			Help: "Total file entries deleted by maintenance GC.",
		}),
	}
}
