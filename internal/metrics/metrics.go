// Package metrics exposes Prometheus collectors for the HTTP API and the
// print queue.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	Registry = prometheus.NewRegistry()

	httpRequests = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "printer_bridge",
			Subsystem: "http",
			Name:      "requests_total",
			Help:      "Total number of HTTP requests handled.",
		},
		[]string{"method", "path", "status"},
	)

	httpDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "printer_bridge",
			Subsystem: "http",
			Name:      "request_duration_seconds",
			Help:      "Duration of HTTP requests.",
			Buckets:   prometheus.ExponentialBuckets(0.005, 2, 12),
		},
		[]string{"method", "path"},
	)

	printJobs = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "printer_bridge",
			Subsystem: "print",
			Name:      "jobs_total",
			Help:      "Print jobs sent to the device, by kind and outcome.",
		},
		[]string{"kind", "status"},
	)

	printDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "printer_bridge",
			Subsystem: "print",
			Name:      "job_duration_seconds",
			Help:      "Time spent delivering a job to the device.",
			Buckets:   prometheus.ExponentialBuckets(0.05, 2, 10),
		},
		[]string{"kind"},
	)

	printBytes = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: "printer_bridge",
			Subsystem: "print",
			Name:      "bytes_total",
			Help:      "ESC/POS bytes delivered to the device.",
		},
	)
)

func init() {
	Registry.MustRegister(httpRequests, httpDuration, printJobs, printDuration, printBytes)
}

func Handler() http.Handler {
	return promhttp.HandlerFor(Registry, promhttp.HandlerOpts{})
}

func RecordHTTPRequest(method, path string, status int, d time.Duration) {
	httpRequests.WithLabelValues(method, path, strconv.Itoa(status)).Inc()
	httpDuration.WithLabelValues(method, path).Observe(d.Seconds())
}

// RecordPrintJob counts one delivery attempt. size is only added on success.
func RecordPrintJob(kind string, size int, err error, d time.Duration) {
	status := "ok"
	if err != nil {
		status = "error"
	} else {
		printBytes.Add(float64(size))
	}
	printJobs.WithLabelValues(kind, status).Inc()
	printDuration.WithLabelValues(kind).Observe(d.Seconds())
}
