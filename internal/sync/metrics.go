package sync

import (
	"github.com/prometheus/client_golang/prometheus"
)

var (
	refreshesTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "fieldflow_refreshes_total",
		Help: "Completed order-list refreshes.",
	})
	refreshFailuresTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "fieldflow_refresh_failures_total",
		Help: "Failed order-list refreshes by error class.",
	}, []string{"class"})
	optimisticUpdatesTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "fieldflow_optimistic_updates_total",
		Help: "Status transitions applied to the local cache.",
	})
	flushesTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "fieldflow_outbox_flushes_total",
		Help: "Outbox writes confirmed by the remote.",
	})
	flushFailuresTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "fieldflow_outbox_flush_failures_total",
		Help: "Outbox flush attempts that failed, by error class.",
	}, []string{"class"})
	locationReportsTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "fieldflow_location_reports_total",
		Help: "Device positions reported to the back office.",
	})
	forcedLogoutsTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "fieldflow_forced_logouts_total",
		Help: "Sessions terminated because credentials expired.",
	})
)

// RegisterMetrics registers the package collectors with reg. The package
// never registers on its own: a long-running embedder that scrapes metrics
// calls this once per process, typically with prometheus.DefaultRegisterer.
// The bundled one-shot CLI does not.
func RegisterMetrics(reg prometheus.Registerer) {
	reg.MustRegister(
		refreshesTotal,
		refreshFailuresTotal,
		optimisticUpdatesTotal,
		flushesTotal,
		flushFailuresTotal,
		locationReportsTotal,
		forcedLogoutsTotal,
	)
}
