package observability

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	NotificationsReceived = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "facegroup",
		Name:      "notifications_received_total",
		Help:      "Inbound notifications by envelope type",
	}, []string{"type"})

	RecordsProcessed = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "facegroup",
		Name:      "records_processed_total",
		Help:      "Storage change records by outcome",
	}, []string{"outcome"})

	FacesIndexed = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "facegroup",
		Name:      "faces_indexed_total",
		Help:      "Face records created",
	})

	GroupsCreated = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "facegroup",
		Name:      "groups_created_total",
		Help:      "Faces that started a new group",
	})

	Renames = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "facegroup",
		Name:      "renames_total",
		Help:      "Group rename requests by result",
	}, []string{"result"})

	StageDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "facegroup",
		Name:      "stage_duration_seconds",
		Help:      "Duration of pipeline stages",
		Buckets:   prometheus.ExponentialBuckets(0.005, 2, 10),
	}, []string{"stage"})

	QueueDepth = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: "facegroup",
		Name:      "queue_depth",
		Help:      "Pending upload notifications in queue",
	})

	HTTPRequestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "facegroup",
		Name:      "http_request_duration_seconds",
		Help:      "HTTP request duration",
		Buckets:   prometheus.DefBuckets,
	}, []string{"method", "path", "status"})

	WSConnections = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: "facegroup",
		Name:      "ws_connections",
		Help:      "Number of active WebSocket connections",
	})
)
