package server

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/MeKo-Tech/cutout/internal/grabcut"
	"github.com/MeKo-Tech/cutout/internal/maxflow"
	"github.com/MeKo-Tech/cutout/internal/pipeline"
	"github.com/MeKo-Tech/cutout/internal/utils"
	"github.com/MeKo-Tech/cutout/internal/version"
)

// healthHandler returns server health status.
func (s *Server) healthHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	response := HealthResponse{
		Status:  "healthy",
		Version: version.Current().Short(),
		Time:    time.Now().UTC().Format(time.RFC3339),
	}

	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(response); err != nil {
		s.log().Error("Failed to encode health response", "error", err)
	}
}

// segmentOptions are the per-request settings shared by /segment and
// /ws/segment.
type segmentOptions struct {
	Rect       string
	Mask       []byte
	Iterations int
	Components int
	Format     string
	Solver     string
}

// requestError is a client error with the HTTP status to report.
type requestError struct {
	status int
	msg    string
}

func (e *requestError) Error() string { return e.msg }

func badRequest(format string, args ...any) error {
	return &requestError{status: http.StatusBadRequest, msg: fmt.Sprintf(format, args...)}
}

// buildJob decodes the image and hints of a request into a pipeline job.
func (s *Server) buildJob(name string, data []byte, opts segmentOptions) (pipeline.Job, string, error) {
	if len(data) == 0 {
		return pipeline.Job{}, "", badRequest("No image data provided")
	}
	img, _, err := utils.DecodeImage(bytes.NewReader(data))
	if err != nil {
		return pipeline.Job{}, "", badRequest("Invalid image format")
	}

	job := pipeline.Job{Name: name, Image: img}
	if len(opts.Mask) > 0 {
		maskImg, _, err := utils.DecodeImage(bytes.NewReader(opts.Mask))
		if err != nil {
			return pipeline.Job{}, "", badRequest("Invalid mask image")
		}
		if maskImg.Bounds().Size() != img.Bounds().Size() {
			return pipeline.Job{}, "", badRequest("Mask size %v does not match image size %v",
				maskImg.Bounds().Size(), img.Bounds().Size())
		}
		job.Hint.Mask = utils.MaskFromImage(maskImg)
	} else if opts.Rect != "" {
		rect, err := utils.ParseRect(opts.Rect)
		if err != nil {
			return pipeline.Job{}, "", badRequest("Invalid rect: %v", err)
		}
		job.Hint.Rect = rect.Add(img.Bounds().Min)
	}

	if opts.Iterations < 0 {
		return pipeline.Job{}, "", badRequest("iterations must be positive")
	}
	if s.maxIterations > 0 && opts.Iterations > s.maxIterations {
		return pipeline.Job{}, "", badRequest("iterations must be between 1 and %d", s.maxIterations)
	}
	job.Iterations = opts.Iterations
	if opts.Components < 0 {
		return pipeline.Job{}, "", badRequest("components must be positive")
	}
	job.Components = opts.Components
	if opts.Solver != "" {
		solver, err := maxflow.ByName(opts.Solver)
		if err != nil {
			return pipeline.Job{}, "", badRequest("%v", err)
		}
		job.Solver = solver
	}

	format := opts.Format
	if format == "" {
		format = s.pipeline.Config().Render.Format
	}
	if err := pipeline.ValidateFormat(format); err != nil {
		return pipeline.Job{}, "", badRequest("%v", err)
	}
	if format == "" {
		format = pipeline.FormatPNG
	}
	return job, format, nil
}

// segmentHandler processes multipart segmentation requests.
func (s *Server) segmentHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	limit := s.maxUploadMB * 1024 * 1024
	r.Body = http.MaxBytesReader(w, r.Body, limit)
	if err := r.ParseMultipartForm(limit); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) || strings.Contains(err.Error(), "request body too large") {
			s.writeErrorResponse(w, "File too large", http.StatusRequestEntityTooLarge)
		} else {
			s.writeErrorResponse(w, "Failed to parse form data", http.StatusBadRequest)
		}
		return
	}

	file, header, err := r.FormFile("image")
	if err != nil {
		s.writeErrorResponse(w, "No image file provided", http.StatusBadRequest)
		return
	}
	defer func() { _ = file.Close() }()
	uploadSizeBytes.Observe(float64(header.Size))

	data, err := io.ReadAll(file)
	if err != nil {
		s.writeErrorResponse(w, "Failed to read image data", http.StatusInternalServerError)
		return
	}

	opts, err := parseFormOptions(r)
	if err != nil {
		s.writeError(w, err)
		return
	}
	if s.pipeline == nil {
		s.writeErrorResponse(w, "Segmentation pipeline not initialized", http.StatusServiceUnavailable)
		return
	}

	job, format, err := s.buildJob(header.Filename, data, opts)
	if err != nil {
		s.writeError(w, err)
		return
	}

	out, err := s.runJob(r.Context(), "http", job)
	if err != nil {
		s.writeErrorResponse(w, fmt.Sprintf("Segmentation failed: %v", err), statusForError(err))
		return
	}

	s.writeOutput(w, out, format)
}

// parseFormOptions reads the optional form fields of a /segment request.
func parseFormOptions(r *http.Request) (segmentOptions, error) {
	opts := segmentOptions{
		Rect:   r.FormValue("rect"),
		Format: r.FormValue("format"),
		Solver: r.FormValue("solver"),
	}
	if opts.Format == "" {
		opts.Format = r.URL.Query().Get("format")
	}

	var err error
	if v := r.FormValue("iterations"); v != "" {
		if opts.Iterations, err = strconv.Atoi(v); err != nil || opts.Iterations <= 0 {
			return opts, badRequest("Invalid iterations: %q", v)
		}
	}
	if v := r.FormValue("components"); v != "" {
		if opts.Components, err = strconv.Atoi(v); err != nil || opts.Components <= 0 {
			return opts, badRequest("Invalid components: %q", v)
		}
	}

	if file, _, err := r.FormFile("mask"); err == nil {
		defer func() { _ = file.Close() }()
		if opts.Mask, err = io.ReadAll(file); err != nil {
			return opts, badRequest("Failed to read mask data")
		}
	}
	return opts, nil
}

// runJob runs job under the request timeout and records metrics.
func (s *Server) runJob(ctx context.Context, source string, job pipeline.Job) (*pipeline.Output, error) {
	if s.timeoutSec > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, time.Duration(s.timeoutSec)*time.Second)
		defer cancel()
	}

	start := time.Now()
	out, err := s.pipeline.Segment(ctx, job)
	duration := time.Since(start)

	if err != nil {
		segmentationsTotal.WithLabelValues(source, errorLabel(err)).Inc()
		s.log().Warn("Segmentation failed", "source", source, "name", job.Name, "error", err)
		return nil, err
	}
	segmentationsTotal.WithLabelValues(source, "success").Inc()
	segmentationDuration.WithLabelValues(source).Observe(duration.Seconds())
	segmentationIterations.Observe(float64(out.Result.Iterations))
	foregroundCoverage.Observe(coverage(out))
	return out, nil
}

// writeOutput renders out in format.
func (s *Server) writeOutput(w http.ResponseWriter, out *pipeline.Output, format string) {
	opts := s.pipeline.Config().Render

	if format == pipeline.FormatJSON {
		summary, err := pipeline.Summarize(out, opts.Simplify)
		if err != nil {
			s.writeErrorResponse(w, fmt.Sprintf("formatting failed: %v", err), http.StatusInternalServerError)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		if err := json.NewEncoder(w).Encode(SegmentResponse{Success: true, Result: summary}); err != nil {
			s.log().Error("Failed to encode segment response", "error", err)
		}
		return
	}

	var buf bytes.Buffer
	if err := pipeline.Render(&buf, out, format, opts); err != nil {
		s.writeErrorResponse(w, fmt.Sprintf("rendering failed: %v", err), http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", pipeline.ContentType(format))
	w.Header().Set("Content-Length", strconv.Itoa(buf.Len()))
	_, _ = w.Write(buf.Bytes())
}

// statusForError maps a segmentation error to an HTTP status.
func statusForError(err error) int {
	var reqErr *requestError
	var imgErr *utils.ImageProcessingError
	switch {
	case errors.As(err, &reqErr):
		return reqErr.status
	case errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout
	case errors.As(err, &imgErr), grabcut.IsKind(err, grabcut.InvalidInput):
		return http.StatusBadRequest
	case grabcut.IsKind(err, grabcut.DegenerateModel):
		return http.StatusUnprocessableEntity
	default:
		return http.StatusInternalServerError
	}
}

// errorLabel is the status label of a failed segmentation in metrics.
func errorLabel(err error) string {
	switch statusForError(err) {
	case http.StatusGatewayTimeout:
		return "timeout"
	case http.StatusBadRequest:
		return "invalid_input"
	case http.StatusUnprocessableEntity:
		return "degenerate"
	default:
		return "error"
	}
}

func coverage(out *pipeline.Output) float64 {
	b := out.Source.Bounds()
	if b.Empty() {
		return 0
	}
	return float64(out.Result.Trimap.ForegroundCount()) / float64(b.Dx()*b.Dy())
}

func (s *Server) writeError(w http.ResponseWriter, err error) {
	s.writeErrorResponse(w, err.Error(), statusForError(err))
}

// writeErrorResponse writes a JSON error response.
func (s *Server) writeErrorResponse(w http.ResponseWriter, message string, statusCode int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)

	if err := json.NewEncoder(w).Encode(SegmentResponse{Success: false, Error: message}); err != nil {
		s.log().Error("Failed to write error response", "error", err)
	}
}

func (s *Server) log() *slog.Logger {
	if s.logger == nil {
		return slog.Default()
	}
	return s.logger
}
