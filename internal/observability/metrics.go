package observability

import (
	"strconv"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	registerOnce sync.Once

	httpRequests = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "reconctl",
			Subsystem: "http",
			Name:      "requests_total",
			Help:      "Total HTTP requests.",
		},
		[]string{"method", "path", "status"},
	)
	httpDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "reconctl",
			Subsystem: "http",
			Name:      "request_duration_seconds",
			Help:      "HTTP request duration in seconds.",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"method", "path", "status"},
	)
	dispatches = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "reconctl",
			Subsystem: "dispatch",
			Name:      "total",
			Help:      "Catalog operation dispatches by outcome.",
		},
		[]string{"operation", "outcome"},
	)
	dispatchDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "reconctl",
			Subsystem: "dispatch",
			Name:      "duration_seconds",
			Help:      "Catalog operation dispatch duration in seconds.",
			Buckets:   []float64{0.1, 0.5, 1, 5, 15, 30, 60, 120},
		},
		[]string{"operation", "outcome"},
	)
	rawCommands = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "reconctl",
			Subsystem: "raw",
			Name:      "commands_total",
			Help:      "Shell-interpreted raw commands by outcome.",
		},
		[]string{"outcome"},
	)
)

func RegisterMetrics() {
	registerOnce.Do(func() {
		prometheus.MustRegister(httpRequests, httpDuration, dispatches, dispatchDuration, rawCommands)
	})
}

func RecordHTTPRequest(method, path string, status int, duration time.Duration) {
	RegisterMetrics()
	statusLabel := strconv.Itoa(status)
	httpRequests.WithLabelValues(method, path, statusLabel).Inc()
	httpDuration.WithLabelValues(method, path, statusLabel).Observe(duration.Seconds())
}

// RecordDispatch counts one catalog dispatch. outcome is "ok" or a failure kind.
func RecordDispatch(operation, outcome string, duration time.Duration) {
	RegisterMetrics()
	dispatches.WithLabelValues(operation, outcome).Inc()
	dispatchDuration.WithLabelValues(operation, outcome).Observe(duration.Seconds())
}

func RecordRawCommand(outcome string) {
	RegisterMetrics()
	rawCommands.WithLabelValues(outcome).Inc()
}
