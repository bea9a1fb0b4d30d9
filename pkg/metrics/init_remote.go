package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

func (r *Registry) initRemoteMetrics() {
	r.RemoteRequestsTotal = promauto.With(r.registry).NewCounterVec(
		prometheus.CounterOpts{
			Name: "crclink_remote_requests_total",
			Help: "Total number of calls to the simulation collaborator",
		},
		[]string{"operation", "status"},
	)

	r.RemoteRequestDuration = promauto.With(r.registry).NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "crclink_remote_request_duration_seconds",
			Help:    "Collaborator call latency in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"operation"},
	)
}
