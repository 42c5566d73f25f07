package realtime

import "github.com/prometheus/client_golang/prometheus"

// Drop reasons reported on realtime_fanout_dropped_total.
const (
	dropUnreachable   = "unreachable"
	dropInvalidTarget = "invalid_target"
	dropSendFailed    = "send_failed"
	dropEncode        = "encode"
)

var (
	// connGauge tracks registered connections, authenticated or not.
	connGauge = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "realtime_connections",
			Help: "Current number of registered realtime connections.",
		},
	)

	// eventsTotal counts dispatched domain events by wire name.
	eventsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "realtime_events_total",
			Help: "Total number of domain events dispatched.",
		},
		[]string{"event"},
	)

	// deliveriesTotal counts frames enqueued to connections.
	deliveriesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "realtime_deliveries_total",
			Help: "Total number of event frames enqueued to live connections.",
		},
		[]string{"event"},
	)

	// droppedTotal counts targets that received nothing, by reason.
	droppedTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "realtime_fanout_dropped_total",
			Help: "Total number of fan-out targets dropped without delivery.",
		},
		[]string{"reason"},
	)

	// driftTotal counts membership changes that disagreed with the store.
	driftTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "realtime_membership_drift_total",
			Help: "Total number of room operations skipped because they contradicted persisted membership.",
		},
	)
)

func init() {
	prometheus.MustRegister(connGauge, eventsTotal, deliveriesTotal, droppedTotal, driftTotal)
}
