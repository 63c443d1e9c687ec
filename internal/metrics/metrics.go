// Package metrics defines the Prometheus collectors exported on /metrics.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// PostsCreated counts posts accepted through the admission path.
	PostsCreated = promauto.NewCounter(prometheus.CounterOpts{
		Name: "micropost_posts_created_total",
		Help: "Number of posts successfully created.",
	})

	// PostsRejected counts posts rejected by the admission path, by reason.
	PostsRejected = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "micropost_posts_rejected_total",
		Help: "Number of post attempts rejected, by reason.",
	}, []string{"reason"})

	// HTTPRequests counts handled HTTP requests.
	HTTPRequests = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "micropost_http_requests_total",
		Help: "Number of HTTP requests handled, by method and status.",
	}, []string{"method", "status"})

	// HTTPDuration tracks request latency.
	HTTPDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "micropost_http_request_duration_seconds",
		Help:    "HTTP request latency.",
		Buckets: prometheus.DefBuckets,
	}, []string{"method"})

	// FeedSubscribers tracks currently connected live feed clients.
	FeedSubscribers = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "micropost_live_feed_subscribers",
		Help: "Number of connected live feed WebSocket clients.",
	})
)
