package server

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/MeKo-Tech/cutout/internal/pipeline"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// segmenter is the part of the pipeline the server depends on.
type segmenter interface {
	Segment(ctx context.Context, job pipeline.Job) (*pipeline.Output, error)
	Config() pipeline.Config
}

// Server holds the HTTP server state and dependencies.
type Server struct {
	pipeline      segmenter
	corsOrigin    string
	maxUploadMB   int64
	timeoutSec    int
	maxIterations int
	rateLimiter   *RateLimiter
	logger        *slog.Logger
}

// Config holds server configuration.
type Config struct {
	Host          string
	Port          int
	CORSOrigin    string
	MaxUploadMB   int64
	TimeoutSec    int
	MaxIterations int
	// RateLimit is the sustained number of segmentation requests per second
	// and client; zero disables rate limiting.
	RateLimit float64
	RateBurst int

	Pipeline pipeline.Config
}

// HealthResponse is returned by /health.
type HealthResponse struct {
	Status  string `json:"status"`
	Version string `json:"version,omitempty"`
	Time    string `json:"time"`
}

// SegmentResponse is the JSON body of /segment for format=json and for
// errors.
type SegmentResponse struct {
	Success bool              `json:"success"`
	Result  *pipeline.Summary `json:"result,omitempty"`
	Error   string            `json:"error,omitempty"`
}

// NewServer creates a new segmentation server instance.
func NewServer(config Config) (*Server, error) {
	logger := slog.Default().With("component", "server")
	pl, err := pipeline.New(config.Pipeline, pipeline.WithLogger(logger))
	if err != nil {
		return nil, fmt.Errorf("failed to create pipeline: %w", err)
	}

	s := &Server{
		pipeline:      pl,
		corsOrigin:    config.CORSOrigin,
		maxUploadMB:   config.MaxUploadMB,
		timeoutSec:    config.TimeoutSec,
		maxIterations: config.MaxIterations,
		logger:        logger,
	}
	if config.RateLimit > 0 {
		s.rateLimiter = NewRateLimiter(config.RateLimit, config.RateBurst)
	}
	return s, nil
}

// RateLimiter returns the limiter in use, or nil when rate limiting is off.
func (s *Server) RateLimiter() *RateLimiter { return s.rateLimiter }

// SetupRoutes configures the HTTP routes.
func (s *Server) SetupRoutes(mux *http.ServeMux) {
	mux.HandleFunc("/health", s.corsMiddleware(s.healthHandler))
	mux.HandleFunc("/segment", s.corsMiddleware(s.rateLimitMiddleware(s.segmentHandler)))
	mux.HandleFunc("/ws/segment", s.corsMiddleware(s.rateLimitMiddleware(s.segmentWebSocketHandler)))
	mux.Handle("/metrics", promhttp.Handler())
}

// Handler returns a mux with all routes installed.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	s.SetupRoutes(mux)
	return mux
}
