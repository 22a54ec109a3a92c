package telemetry

import (
	"net/http"
	"strconv"
	"time"

	http_middleware "github.com/benmeehan/link-failover/internal/middlewares/http"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	Registry = prometheus.NewRegistry()

	RequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "failover",
			Name:      "requests_total",
			Help:      "Total number of broker HTTP requests.",
		},
		[]string{"op", "status"},
	)

	RequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "failover",
			Name:      "request_duration_seconds",
			Help:      "Latency of broker HTTP requests.",
			Buckets:   prometheus.ExponentialBuckets(0.001, 2, 13),
		},
		[]string{"op"},
	)

	InFlight = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Namespace: "failover",
			Name:      "in_flight_requests",
			Help:      "Current number of in-flight broker HTTP requests.",
		},
		[]string{"op"},
	)

	HeartbeatsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "failover",
			Name:      "heartbeats_total",
			Help:      "Accepted heartbeats by reported mode.",
		},
		[]string{"mode"},
	)

	CommandsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "failover",
			Name:      "commands_total",
			Help:      "Accepted commands by action.",
		},
		[]string{"action"},
	)

	RejectedTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "failover",
			Name:      "rejected_requests_total",
			Help:      "Requests rejected by the broker, by reason.",
		},
		[]string{"op", "reason"},
	)

	SweptRecords = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: "failover",
			Name:      "swept_records_total",
			Help:      "Records deleted by housekeeping after the retention window.",
		},
	)

	startTime = time.Now()
	uptime    = prometheus.NewGaugeFunc(
		prometheus.GaugeOpts{
			Namespace: "failover",
			Name:      "uptime_seconds",
			Help:      "Process uptime in seconds.",
		},
		func() float64 { return time.Since(startTime).Seconds() },
	)
)

func init() {
	Registry.MustRegister(RequestsTotal, RequestDuration, InFlight, HeartbeatsTotal,
		CommandsTotal, RejectedTotal, SweptRecords, uptime)
}

// MetricsHandler exposes /metrics.
func MetricsHandler() http.Handler {
	return promhttp.HandlerFor(Registry, promhttp.HandlerOpts{})
}

// Instrument wraps an http.Handler to record metrics under the provided "op" label.
func Instrument(op string, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		sw := http_middleware.NewStatusRecorder(w)
		start := time.Now()

		InFlight.WithLabelValues(op).Inc()
		defer InFlight.WithLabelValues(op).Dec()

		next.ServeHTTP(sw, r)

		class := strconv.Itoa(sw.Status()/100) + "xx"
		RequestsTotal.WithLabelValues(op, class).Inc()
		RequestDuration.WithLabelValues(op).Observe(time.Since(start).Seconds())
	})
}
