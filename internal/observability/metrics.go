package observability

import (
	"strconv"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "weedcore"

var (
	registerOnce sync.Once

	httpRequests = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "http",
			Name:      "requests_total",
			Help:      "Total admin HTTP requests.",
		},
		[]string{"node", "method", "path", "status"},
	)
	httpDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "http",
			Name:      "request_duration_seconds",
			Help:      "Admin HTTP request duration in seconds.",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"node", "method", "path", "status"},
	)
	negotiations = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "bootstrap",
			Name:      "negotiations_total",
			Help:      "Bootstrap negotiations by result.",
		},
		[]string{"result"},
	)
	pluginLoads = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "host",
			Name:      "plugins_loaded_total",
			Help:      "Plugin load attempts by result.",
		},
		[]string{"plugin", "result"},
	)
	clonePlants = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "clone",
			Name:      "plants_total",
			Help:      "Plants deep-cloned, by result.",
		},
		[]string{"result"},
	)
	instancesActive = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "host",
			Name:      "instances_active",
			Help:      "Live filter instances.",
		},
		[]string{"filter"},
	)
	allocBytes = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "alloc",
			Name:      "bytes_in_use",
			Help:      "Bytes charged to each plugin's allocator.",
		},
		[]string{"plugin"},
	)
)

func RegisterMetrics() {
	registerOnce.Do(func() {
		prometheus.MustRegister(
			httpRequests, httpDuration,
			negotiations, pluginLoads, clonePlants, instancesActive, allocBytes,
		)
	})
}

func RecordHTTPRequest(node, method, path string, status int, duration time.Duration) {
	RegisterMetrics()
	statusLabel := strconv.Itoa(status)
	httpRequests.WithLabelValues(node, method, path, statusLabel).Inc()
	httpDuration.WithLabelValues(node, method, path, statusLabel).Observe(duration.Seconds())
}

// RecordNegotiation counts one bootstrap call; result is "ok",
// "no_match" or "failed".
func RecordNegotiation(result string) {
	RegisterMetrics()
	negotiations.WithLabelValues(result).Inc()
}

func RecordPluginLoad(plugin, result string) {
	RegisterMetrics()
	pluginLoads.WithLabelValues(plugin, result).Inc()
}

func RecordClone(plants int, success bool) {
	RegisterMetrics()
	result := "ok"
	if !success {
		result = "aborted"
	}
	clonePlants.WithLabelValues(result).Add(float64(plants))
}

func SetInstancesActive(filter string, n int) {
	RegisterMetrics()
	instancesActive.WithLabelValues(filter).Set(float64(n))
}

func SetAllocBytes(plugin string, n int) {
	RegisterMetrics()
	allocBytes.WithLabelValues(plugin).Set(float64(n))
}
