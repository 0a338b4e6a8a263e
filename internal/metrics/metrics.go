package metrics

import (
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "evalsum"

var (
	httpRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "http",
			Name:      "requests_total",
			Help:      "Total number of HTTP requests",
		},
		[]string{"route", "method", "status"},
	)

	httpRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "http",
			Name:      "request_duration_seconds",
			Help:      "Duration of HTTP requests in seconds",
			Buckets:   []float64{0.01, 0.05, 0.1, 0.5, 1, 5, 15, 30, 60, 90},
		},
		[]string{"route", "method"},
	)

	// provider latency dominates; buckets span a quick refusal to a slow 60s call
	summarizeDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "summarizer",
			Name:      "request_duration_seconds",
			Help:      "Duration of provider summarization calls in seconds",
			Buckets:   []float64{0.5, 1, 2, 5, 10, 20, 30, 45, 60},
		},
		[]string{"provider", "outcome"},
	)

	pipelineFailuresTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "pipeline",
			Name:      "failures_total",
			Help:      "Total number of failed upload requests by error kind",
		},
		[]string{"kind"},
	)

	uploadSizeBytes = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "upload",
			Name:      "size_bytes",
			Help:      "Size of accepted uploads in bytes",
			Buckets:   prometheus.ExponentialBuckets(16<<10, 2, 10),
		},
	)

	tempFilesSweptTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "upload",
			Name:      "orphans_swept_total",
			Help:      "Total number of orphaned upload files removed by the sweeper",
		},
	)
)

// RecordSummarize records one provider call.
func RecordSummarize(provider, outcome string, d time.Duration) {
	summarizeDuration.WithLabelValues(provider, outcome).Observe(d.Seconds())
}

// RecordFailure counts one failed upload request.
func RecordFailure(kind string) {
	pipelineFailuresTotal.WithLabelValues(kind).Inc()
}

// RecordUpload observes the size of an accepted upload.
func RecordUpload(size int64) {
	uploadSizeBytes.Observe(float64(size))
}

// RecordSwept counts files removed by the orphan sweeper.
func RecordSwept(n int) {
	if n > 0 {
		tempFilesSweptTotal.Add(float64(n))
	}
}

// GinMiddleware records request counts and latency per matched route.
func GinMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		route := c.FullPath()
		if route == "" {
			route = "unmatched"
		}
		httpRequestsTotal.WithLabelValues(route, c.Request.Method, strconv.Itoa(c.Writer.Status())).Inc()
		httpRequestDuration.WithLabelValues(route, c.Request.Method).Observe(time.Since(start).Seconds())
	}
}

// Handler exposes the default registry.
func Handler() gin.HandlerFunc {
	return gin.WrapH(promhttp.Handler())
}
