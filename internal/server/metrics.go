package server

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// HTTP request metrics
	httpRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "cutout_http_requests_total",
			Help: "Total number of HTTP requests",
		},
		[]string{"method", "endpoint", "status"},
	)

	httpRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "cutout_http_request_duration_seconds",
			Help:    "HTTP request duration in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "endpoint"},
	)

	// Segmentation metrics
	segmentationsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "cutout_segmentations_total",
			Help: "Total number of segmentation requests",
		},
		[]string{"source", "status"}, // source: http, websocket
	)

	segmentationDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "cutout_segmentation_duration_seconds",
			Help:    "Segmentation duration in seconds",
			Buckets: []float64{.01, .05, .1, .25, .5, 1, 2.5, 5, 10, 30},
		},
		[]string{"source"},
	)

	segmentationIterations = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "cutout_segmentation_iterations",
			Help:    "Number of iterations run per segmentation",
			Buckets: []float64{0, 1, 2, 3, 5, 8, 12, 20},
		},
	)

	foregroundCoverage = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "cutout_foreground_coverage_ratio",
			Help:    "Fraction of pixels labelled foreground",
			Buckets: prometheus.LinearBuckets(0, 0.1, 11),
		},
	)

	// Rate limiting metrics
	rateLimitHits = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "cutout_rate_limit_hits_total",
			Help: "Total number of rejected rate-limited requests",
		},
	)

	// File upload metrics
	uploadSizeBytes = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "cutout_upload_size_bytes",
			Help:    "Size of uploaded images in bytes",
			Buckets: []float64{1024, 10 * 1024, 100 * 1024, 1024 * 1024, 10 * 1024 * 1024, 50 * 1024 * 1024},
		},
	)

	// WebSocket metrics
	websocketConnections = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "cutout_websocket_active_connections",
			Help: "Number of active WebSocket connections",
		},
	)

	websocketMessagesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "cutout_websocket_messages_total",
			Help: "Total number of WebSocket messages",
		},
		[]string{"direction"}, // direction: sent, received
	)
)
