package observability

import (
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "chat"

var (
	httpRequests = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "http",
		Name:      "requests_total",
		Help:      "HTTP requests by method, route and status.",
	}, []string{"method", "route", "status"})

	httpLatency = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: namespace,
		Subsystem: "http",
		Name:      "request_duration_seconds",
		Help:      "HTTP request latency by route.",
		Buckets:   prometheus.DefBuckets,
	}, []string{"route"})

	wsConnections = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: namespace,
		Subsystem: "ws",
		Name:      "active_connections",
		Help:      "Open live connections.",
	})

	wsEvents = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "ws",
		Name:      "events_total",
		Help:      "Live connection lifecycle events (connect, join, drop, error, disconnect).",
	}, []string{"event"})

	pipelineOutcomes = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "pipeline",
		Name:      "outcomes_total",
		Help:      "Messages handled by the ingress pipeline, by source and outcome.",
	}, []string{"source", "outcome"})

	broadcastRecipients = promauto.NewHistogram(prometheus.HistogramOpts{
		Namespace: namespace,
		Subsystem: "pipeline",
		Name:      "broadcast_recipients",
		Help:      "Connections a broadcast was delivered to.",
		Buckets:   []float64{0, 1, 2, 5, 10, 25, 50, 100, 250},
	})

	amqpPublishErrors = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "amqp",
		Name:      "publish_errors_total",
		Help:      "Failed event publishes.",
	})
)

// RegisterRoomGauge exposes the live room count. Call once per process.
func RegisterRoomGauge(rooms func() int) {
	promauto.NewGaugeFunc(prometheus.GaugeOpts{
		Namespace: namespace,
		Subsystem: "ws",
		Name:      "rooms",
		Help:      "Rooms with at least one member.",
	}, func() float64 { return float64(rooms()) })
}

// HTTPMetricsMiddleware counts requests by matched route so path parameters do not explode cardinality.
func HTTPMetricsMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		route := c.FullPath()
		if route == "" {
			route = "unmatched"
		}
		httpRequests.WithLabelValues(c.Request.Method, route, strconv.Itoa(c.Writer.Status())).Inc()
		httpLatency.WithLabelValues(route).Observe(time.Since(start).Seconds())
	}
}

func IncWSActive() { wsConnections.Inc() }

func DecWSActive() { wsConnections.Dec() }

func IncWSEvent(event string) { wsEvents.WithLabelValues(event).Inc() }

func IncPipelineOutcome(source, outcome string) {
	pipelineOutcomes.WithLabelValues(source, outcome).Inc()
}

func ObserveBroadcastRecipients(n int) {
	broadcastRecipients.Observe(float64(n))
}

func IncAMQPPublishError() { amqpPublishErrors.Inc() }
