package metrics

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	ConnectionsActive = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "syncboard_connections_active",
			Help: "Number of open board socket connections",
		},
	)
	RoomsActive = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "syncboard_rooms_active",
			Help: "Number of rooms with at least one member",
		},
	)
	FramesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "syncboard_frames_total",
			Help: "Inbound socket frames by event",
		},
		[]string{"event"},
	)
	FramesDropped = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "syncboard_frames_dropped_total",
			Help: "Inbound socket frames dropped by reason",
		},
		[]string{"reason"},
	)
	SlowConsumers = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "syncboard_slow_consumers_total",
			Help: "Connections dropped because their send buffer was full",
		},
	)
	LifecycleJobs = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "syncboard_lifecycle_jobs_total",
			Help: "Background persistence jobs by name and status",
		},
		[]string{"job", "status"},
	)
	BrokerMessages = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "syncboard_broker_messages_total",
			Help: "Messages exchanged with other relay instances",
		},
		[]string{"direction"},
	)
	HttpRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "http_requests_total",
			Help: "Total number of HTTP requests",
		},
		[]string{"path", "method", "status"},
	)
	HttpRequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "http_request_duration_seconds",
			Help:    "Duration of HTTP requests",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"path", "method"},
	)
)

var registerOnce sync.Once

// InitPrometheus registers the collectors with the default registry.
func InitPrometheus() {
	registerOnce.Do(func() {
		prometheus.MustRegister(
			ConnectionsActive,
			RoomsActive,
			FramesTotal,
			FramesDropped,
			SlowConsumers,
			LifecycleJobs,
			BrokerMessages,
			HttpRequestsTotal,
			HttpRequestDuration,
		)
	})
}
