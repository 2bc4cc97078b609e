// Package metrics exposes Prometheus instruments for the hub.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	RoomsActive = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "codekonnect_rooms_active",
		Help: "Rooms currently holding at least one member.",
	})

	ConnectionsActive = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "codekonnect_connections_active",
		Help: "Open client connections.",
	})

	EventsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "codekonnect_events_total",
		Help: "Inbound client events by type.",
	}, []string{"type"})

	ExecutionsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "codekonnect_executions_total",
		Help: "Code executions by outcome.",
	}, []string{"status"})

	ExecutionDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "codekonnect_execution_duration_seconds",
		Help:    "Wall time of code executions, including failures.",
		Buckets: prometheus.DefBuckets,
	})

	DroppedFrames = promauto.NewCounter(prometheus.CounterOpts{
		Name: "codekonnect_dropped_frames_total",
		Help: "Frames skipped because a recipient's queue was full.",
	})
)

// Handler exposes Prometheus metrics at /metrics
func Handler() http.Handler {
	return promhttp.Handler()
}
