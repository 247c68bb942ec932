// Package pipeline turns image files and uploads into segmentation results:
// it loads inputs and hints, runs a fresh engine per job and renders the
// result in the requested output format.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"image"
	"log/slog"
	"time"

	"github.com/MeKo-Tech/cutout/internal/grabcut"
	"github.com/MeKo-Tech/cutout/internal/maxflow"
	"github.com/MeKo-Tech/cutout/internal/utils"
	"github.com/MeKo-Tech/cutout/internal/visualize"
)

// Config holds the settings shared by every job of a pipeline.
type Config struct {
	Engine     grabcut.Config
	Solver     string
	Iterations int
	// Margin is the border fraction used for the rectangle of jobs that
	// carry neither a rectangle nor a mask.
	Margin      float64
	Constraints utils.ImageConstraints
	Render      RenderOptions
}

// RenderOptions controls how outputs are written.
type RenderOptions struct {
	Format   string
	Overlay  visualize.OverlayOptions
	Feather  float64
	Crop     bool
	Simplify float64
}

// DefaultConfig returns the classic engine settings, five iterations and
// binary mask output.
func DefaultConfig() Config {
	return Config{
		Engine:      grabcut.DefaultConfig(),
		Solver:      "bk",
		Iterations:  5,
		Margin:      0.1,
		Constraints: utils.ImageConstraints{MinWidth: 2, MinHeight: 2},
		Render: RenderOptions{
			Format:   FormatPNG,
			Overlay:  visualize.DefaultOverlayOptions(),
			Simplify: 1.5,
		},
	}
}

// Pipeline runs segmentation jobs. It is safe for concurrent use: every job
// gets its own engine.
type Pipeline struct {
	cfg    Config
	solver maxflow.Solver
	logger *slog.Logger
}

// Option configures a Pipeline.
type Option func(*Pipeline)

// WithLogger sets the logger passed to every engine.
func WithLogger(l *slog.Logger) Option {
	return func(p *Pipeline) { p.logger = l }
}

// New validates cfg and creates a pipeline.
func New(cfg Config, opts ...Option) (*Pipeline, error) {
	if err := cfg.Engine.Validate(); err != nil {
		return nil, fmt.Errorf("invalid engine config: %w", err)
	}
	solver, err := maxflow.ByName(cfg.Solver)
	if err != nil {
		return nil, err
	}
	if cfg.Iterations < 0 {
		return nil, fmt.Errorf("iterations cannot be negative, got %d", cfg.Iterations)
	}
	if cfg.Margin < 0 || cfg.Margin >= 0.5 {
		return nil, fmt.Errorf("margin must be in [0, 0.5), got %v", cfg.Margin)
	}
	if err := ValidateFormat(cfg.Render.Format); err != nil {
		return nil, err
	}
	p := &Pipeline{cfg: cfg, solver: solver, logger: slog.Default()}
	for _, opt := range opts {
		opt(p)
	}
	return p, nil
}

// Config returns the pipeline configuration.
func (p *Pipeline) Config() Config { return p.cfg }

// Segment runs one job.
func (p *Pipeline) Segment(ctx context.Context, job Job) (*Output, error) {
	if job.Image == nil {
		return nil, errors.New("pipeline: job has no image")
	}
	if err := utils.ValidateImageConstraints(job.Image, p.cfg.Constraints); err != nil {
		return nil, fmt.Errorf("pipeline: %s: %w", job.Name, err)
	}

	cfg := p.cfg.Engine
	if job.Components > 0 {
		cfg.Components = job.Components
	}
	solver := p.solver
	if job.Solver != nil {
		solver = job.Solver
	}
	opts := []grabcut.Option{grabcut.WithSolver(solver), grabcut.WithLogger(p.logger.With("job", job.Name))}
	if job.Progress != nil {
		opts = append(opts, grabcut.WithProgress(job.Progress))
	}
	engine, err := grabcut.New(cfg, opts...)
	if err != nil {
		return nil, err
	}

	hint := job.Hint
	if hint.Mask == nil && hint.Rect.Empty() {
		b := job.Image.Bounds()
		hint.Rect = utils.MarginRect(b.Dx(), b.Dy(), p.cfg.Margin)
	}
	iterations := p.cfg.Iterations
	if job.Iterations > 0 {
		iterations = job.Iterations
	}

	start := time.Now()
	res, err := engine.Segment(ctx, job.Image, hint, iterations)
	if err != nil {
		return nil, err
	}
	p.logger.Debug("Segmented image",
		"job", job.Name,
		"iterations", res.Iterations,
		"foreground", res.Trimap.ForegroundCount(),
		"duration", time.Since(start))

	return &Output{Name: job.Name, Source: job.Image, Hint: hint, Solver: solver.Name(), Result: res}, nil
}

// Source names an input image on disk and its optional hints.
type Source struct {
	ImagePath string
	MaskPath  string          // optional; takes precedence over Rect
	Rect      image.Rectangle // optional
}

// Load reads the files of src into a job.
func (p *Pipeline) Load(src Source) (Job, error) {
	img, meta, err := utils.LoadImage(src.ImagePath)
	if err != nil {
		return Job{}, fmt.Errorf("failed to load %s: %w", src.ImagePath, err)
	}

	job := Job{Name: meta.Path, Image: img, Hint: grabcut.Hint{Rect: src.Rect}}
	if src.MaskPath != "" {
		mask, err := utils.LoadMask(src.MaskPath)
		if err != nil {
			return Job{}, fmt.Errorf("failed to load mask %s: %w", src.MaskPath, err)
		}
		job.Hint = grabcut.Hint{Mask: mask}
	}
	return job, nil
}

// SegmentFile is Load followed by Segment.
func (p *Pipeline) SegmentFile(ctx context.Context, src Source) (*Output, error) {
	job, err := p.Load(src)
	if err != nil {
		return nil, err
	}
	return p.Segment(ctx, job)
}
