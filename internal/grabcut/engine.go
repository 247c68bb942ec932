// Package grabcut implements iterative foreground extraction: two Gaussian
// mixture colour models, one for the foreground and one for the background,
// are refitted from the current labelling and a global min cut over the
// 8-connected pixel grid relabels every undecided pixel.
package grabcut

import (
	"context"
	"errors"
	"fmt"
	"image"
	"log/slog"
	"time"

	"github.com/MeKo-Tech/cutout/internal/gmm"
	"github.com/MeKo-Tech/cutout/internal/kmeans"
	"github.com/MeKo-Tech/cutout/internal/maxflow"
	"github.com/MeKo-Tech/cutout/internal/pairwise"
	"github.com/MeKo-Tech/cutout/internal/parallel"
	"github.com/MeKo-Tech/cutout/internal/rgb"
	"github.com/MeKo-Tech/cutout/internal/trimap"
)

// Mode selects how a run is initialised.
type Mode int

const (
	// ModeInitWithRect builds the trimap from Hint.Rect and fits new models.
	ModeInitWithRect Mode = iota
	// ModeInitWithMask starts from Hint.Mask and fits new models.
	ModeInitWithMask
	// ModeContinue keeps the models and trimap of the previous run. A
	// non-nil Hint.Mask replaces the trimap, e.g. after user touch-ups.
	ModeContinue
)

func (m Mode) String() string {
	switch m {
	case ModeInitWithRect:
		return "rect"
	case ModeInitWithMask:
		return "mask"
	case ModeContinue:
		return "continue"
	default:
		return fmt.Sprintf("Mode(%d)", int(m))
	}
}

// ParseMode converts a mode name as printed by Mode.String.
func ParseMode(s string) (Mode, error) {
	switch s {
	case "rect", "":
		return ModeInitWithRect, nil
	case "mask":
		return ModeInitWithMask, nil
	case "continue":
		return ModeContinue, nil
	default:
		return 0, fmt.Errorf("unknown mode %q (must be one of: rect, mask, continue)", s)
	}
}

// Hint is the user input of a run.
type Hint struct {
	Rect image.Rectangle
	Mask *trimap.Trimap
}

// Energy is the cut cost of the labelling before and after one iteration.
type Energy struct {
	Before float64 `json:"before"`
	After  float64 `json:"after"`
}

// ProgressFunc is called after every completed iteration (1-based).
type ProgressFunc func(iteration, total int, e Energy)

// Result is the outcome of a successful run.
type Result struct {
	Trimap     *trimap.Trimap
	Energies   []Energy
	Beta       float64
	Iterations int
	Duration   time.Duration
}

// Mask returns the binary segmentation: 255 for foreground, 0 otherwise.
func (r *Result) Mask() *image.Gray { return r.Trimap.Binary() }

// Config holds the engine parameters.
type Config struct {
	Components  int           // Gaussians per colour model
	Gamma       float64       // Smoothness scale of the n-links
	LambdaScale float64       // Definite t-link capacity as a multiple of Gamma
	MinSamples  float64       // Samples a component needs to be refitted
	Workers     int           // Row bands processed in parallel (0 = GOMAXPROCS)
	MaxSize     int           // Segment downscales larger images to this side length (0 = never)
	KMeans      kmeans.Config // Mixture initialisation; K is taken from Components
}

// DefaultConfig returns the classic GrabCut parameters.
func DefaultConfig() Config {
	return Config{
		Components:  gmm.DefaultComponents,
		Gamma:       pairwise.DefaultGamma,
		LambdaScale: 9,
		MinSamples:  gmm.DefaultMinSamples,
		KMeans:      kmeans.DefaultConfig(),
	}
}

// Validate checks the configuration.
func (c Config) Validate() error {
	if c.Components <= 0 {
		return fmt.Errorf("components must be positive, got %d", c.Components)
	}
	if c.Gamma <= 0 {
		return fmt.Errorf("gamma must be positive, got %v", c.Gamma)
	}
	if c.LambdaScale < 8 {
		return fmt.Errorf("lambda scale must be at least 8, got %v", c.LambdaScale)
	}
	if c.MinSamples < 0 {
		return fmt.Errorf("min samples cannot be negative, got %v", c.MinSamples)
	}
	if c.Workers < 0 {
		return fmt.Errorf("workers cannot be negative, got %d", c.Workers)
	}
	if c.MaxSize < 0 {
		return fmt.Errorf("max size cannot be negative, got %d", c.MaxSize)
	}
	return nil
}

// Lambda returns the definite t-link scale.
func (c Config) Lambda() float64 { return c.LambdaScale * c.Gamma }

// Option configures an Engine.
type Option func(*Engine)

// WithSolver replaces the default Boykov-Kolmogorov solver.
func WithSolver(s maxflow.Solver) Option {
	return func(e *Engine) { e.solver = s }
}

// WithLogger sets the logger used for per-iteration debug output.
func WithLogger(l *slog.Logger) Option {
	return func(e *Engine) { e.logger = l }
}

// WithProgress registers a callback invoked after each iteration.
func WithProgress(fn ProgressFunc) Option {
	return func(e *Engine) { e.progress = fn }
}

// Engine runs segmentations. It keeps the models and trimap of its last
// successful run for ModeContinue and must not be used by several
// goroutines at once.
type Engine struct {
	cfg      Config
	solver   maxflow.Solver
	logger   *slog.Logger
	progress ProgressFunc

	fg, bg *gmm.Model
	last   *trimap.Trimap
}

// New creates an engine.
func New(cfg Config, opts ...Option) (*Engine, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid engine config: %w", err)
	}
	e := &Engine{
		cfg:    cfg,
		solver: maxflow.NewBoykovKolmogorov(),
		logger: slog.Default(),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e, nil
}

// Config returns the engine configuration.
func (e *Engine) Config() Config { return e.cfg }

// Reset forgets the state kept for ModeContinue.
func (e *Engine) Reset() {
	e.fg, e.bg, e.last = nil, nil, nil
}

// Run segments img. On error the engine state from the previous run is left
// untouched and no mask is returned.
func (e *Engine) Run(ctx context.Context, img *rgb.Image, hint Hint, iterations int, mode Mode) (*Result, error) {
	start := time.Now()
	if img == nil || img.Len() == 0 {
		return nil, newError(InvalidInput, "run", rgb.ErrEmptyImage)
	}
	if iterations < 0 {
		return nil, newError(InvalidInput, "run", fmt.Errorf("negative iteration count %d", iterations))
	}

	t, err := e.initialTrimap(img, hint, mode)
	if err != nil {
		return nil, err
	}

	beta := pairwise.Beta(img)
	if beta == 0 {
		// No contrast anywhere: nothing can move the cut.
		e.logger.Debug("Uniform image, returning initial labelling", "width", img.Width, "height", img.Height)
		out := t.Collapse()
		e.fg, e.bg, e.last = nil, nil, out.Clone()
		return &Result{Trimap: out, Duration: time.Since(start)}, nil
	}

	fg, bg, err := e.models(img, t, mode)
	if err != nil {
		return nil, err
	}

	res := &Result{Beta: beta, Energies: make([]Energy, 0, iterations)}
	if iterations > 0 {
		weights, err := pairwise.Compute(ctx, img, beta, e.cfg.Gamma, e.cfg.Workers)
		if err != nil {
			return nil, fmt.Errorf("grabcut: computing pairwise weights: %w", err)
		}

		for it := 1; it <= iterations; it++ {
			if err := ctx.Err(); err != nil {
				return nil, fmt.Errorf("grabcut: iteration %d: %w", it, err)
			}
			energy, err := e.iterate(ctx, img, t, fg, bg, weights)
			if err != nil {
				return nil, err
			}
			res.Energies = append(res.Energies, energy)
			res.Iterations = it
			e.logger.Debug("GrabCut iteration completed",
				"iteration", it, "total", iterations,
				"energy_before", energy.Before, "energy_after", energy.After,
				"foreground", t.ForegroundCount())
			if e.progress != nil {
				e.progress(it, iterations, energy)
			}
		}
	}

	e.fg, e.bg, e.last = fg, bg, t.Clone()
	res.Trimap = t
	res.Duration = time.Since(start)
	return res, nil
}

func (e *Engine) initialTrimap(img *rgb.Image, hint Hint, mode Mode) (*trimap.Trimap, error) {
	switch mode {
	case ModeInitWithRect:
		t, err := trimap.FromRectangle(img.Width, img.Height, hint.Rect)
		if err != nil {
			return nil, newError(InvalidInput, "init rect", err)
		}
		if t.Count(trimap.DefiniteBackground)+t.Count(trimap.ProbableBackground) == 0 {
			e.seedBackground(img, t)
		}
		return t, nil

	case ModeInitWithMask:
		if hint.Mask == nil {
			return nil, newError(InvalidInput, "init mask", errors.New("no mask supplied"))
		}
		if err := trimap.Validate(hint.Mask, img.Width, img.Height); err != nil {
			return nil, newError(InvalidInput, "init mask", err)
		}
		return hint.Mask.Clone(), nil

	case ModeContinue:
		if e.last == nil {
			return nil, newError(InvalidInput, "continue", errors.New("no previous run"))
		}
		if err := trimap.Validate(e.last, img.Width, img.Height); err != nil {
			return nil, newError(InvalidInput, "continue", err)
		}
		if hint.Mask != nil {
			if err := trimap.Validate(hint.Mask, img.Width, img.Height); err != nil {
				return nil, newError(InvalidInput, "continue", err)
			}
			return hint.Mask.Clone(), nil
		}
		return e.last.Clone(), nil

	default:
		return nil, newError(InvalidInput, "run", fmt.Errorf("unknown mode %d", int(mode)))
	}
}

// seedBackground gives a trimap without background pixels, as produced by
// a rectangle covering the whole image, a background class. All pixels are
// split into two colour clusters and the cluster holding most of the image
// border becomes probable background. An image with a single colour falls
// back to the one-pixel border.
func (e *Engine) seedBackground(img *rgb.Image, t *trimap.Trimap) {
	cfg := e.cfg.KMeans
	cfg.K = 2
	res, err := kmeans.Cluster(img.Pix, cfg)
	if err != nil || res.NonEmpty() < 2 {
		markBorder(t)
		return
	}

	var onBorder [2]int
	for i, k := range res.Labels {
		x, y := i%img.Width, i/img.Width
		if x == 0 || y == 0 || x == img.Width-1 || y == img.Height-1 {
			onBorder[k]++
		}
	}
	bgCluster := 0
	if onBorder[1] > onBorder[0] {
		bgCluster = 1
	}
	for i, k := range res.Labels {
		if k == bgCluster && !t.Labels[i].Definite() {
			t.Labels[i] = trimap.ProbableBackground
		}
	}
	e.logger.Debug("Rectangle covers the image, seeded background from border colours",
		"background", t.Count(trimap.ProbableBackground))
}

// markBorder relabels the one-pixel image border as probable background.
func markBorder(t *trimap.Trimap) {
	for x := range t.Width {
		t.Set(x, 0, trimap.ProbableBackground)
		t.Set(x, t.Height-1, trimap.ProbableBackground)
	}
	for y := range t.Height {
		t.Set(0, y, trimap.ProbableBackground)
		t.Set(t.Width-1, y, trimap.ProbableBackground)
	}
}

// models returns the colour models a run starts from: fresh k-means fits
// for the init modes, copies of the previous models for ModeContinue.
func (e *Engine) models(img *rgb.Image, t *trimap.Trimap, mode Mode) (*gmm.Model, *gmm.Model, error) {
	if mode == ModeContinue {
		if e.fg == nil || e.bg == nil {
			return nil, nil, newError(InvalidInput, "continue", errors.New("previous run has no colour models"))
		}
		return e.fg.Clone(), e.bg.Clone(), nil
	}

	var fgSamples, bgSamples []rgb.Color
	for i, l := range t.Labels {
		if l.Foreground() {
			fgSamples = append(fgSamples, img.Pix[i])
		} else {
			bgSamples = append(bgSamples, img.Pix[i])
		}
	}

	fg := gmm.New(e.cfg.Components)
	fg.MinSamples = e.cfg.MinSamples
	if err := fg.InitFromSamples(fgSamples, e.cfg.KMeans); err != nil {
		return nil, nil, newError(DegenerateModel, "init foreground model", err)
	}
	bg := gmm.New(e.cfg.Components)
	bg.MinSamples = e.cfg.MinSamples
	if err := bg.InitFromSamples(bgSamples, e.cfg.KMeans); err != nil {
		return nil, nil, newError(DegenerateModel, "init background model", err)
	}
	return fg, bg, nil
}

// iterate runs one assign / refit / cut / relabel round and updates t in
// place.
func (e *Engine) iterate(
	ctx context.Context,
	img *rgb.Image,
	t *trimap.Trimap,
	fg, bg *gmm.Model,
	weights *pairwise.Weights,
) (Energy, error) {
	if err := e.refit(ctx, img, t, fg, bg); err != nil {
		return Energy{}, err
	}

	net, err := BuildNetwork(ctx, img, t, fg, bg, weights, e.cfg.Lambda(), e.cfg.Workers)
	if err != nil {
		return Energy{}, fmt.Errorf("grabcut: building network: %w", err)
	}
	defer net.Release()
	before := net.CutCost(sidesOf(t))

	cut, err := e.solver.Solve(ctx, net)
	if err != nil {
		if ctx.Err() != nil {
			return Energy{}, fmt.Errorf("grabcut: solving: %w", err)
		}
		return Energy{}, newError(SolverFailure, "solve", err)
	}
	if len(cut.Sides) != img.Len() {
		return Energy{}, newError(SolverFailure, "solve",
			fmt.Errorf("%s returned %d sides for %d nodes", e.solver.Name(), len(cut.Sides), img.Len()))
	}

	for i, l := range t.Labels {
		if l.Definite() {
			continue
		}
		if cut.InSource(i) {
			t.Labels[i] = trimap.ProbableForeground
		} else {
			t.Labels[i] = trimap.ProbableBackground
		}
	}
	return Energy{Before: before, After: net.CutCost(sidesOf(t))}, nil
}

// refit assigns every pixel to the most likely component of its class model
// and refits both models from those assignments. Bands accumulate into
// their own accumulators, merged before fitting.
func (e *Engine) refit(ctx context.Context, img *rgb.Image, t *trimap.Trimap, fg, bg *gmm.Model) error {
	bands := parallel.Bands(img.Height, e.cfg.Workers)
	fgAcc := make([]*gmm.Accumulator, len(bands))
	bgAcc := make([]*gmm.Accumulator, len(bands))
	w := img.Width

	err := parallel.ForBands(ctx, bands, func(idx int, b parallel.Band) error {
		fa := gmm.NewAccumulator(fg.K())
		ba := gmm.NewAccumulator(bg.K())
		for i := b.Y0 * w; i < b.Y1*w; i++ {
			c := img.Pix[i]
			model, acc := bg, ba
			if t.Labels[i].Foreground() {
				model, acc = fg, fa
			}
			acc.Add(c, model.BestComponent(c))
		}
		fgAcc[idx], bgAcc[idx] = fa, ba
		return nil
	})
	if err != nil {
		return fmt.Errorf("grabcut: assigning components: %w", err)
	}

	for i := 1; i < len(bands); i++ {
		fgAcc[0].Merge(fgAcc[i])
		bgAcc[0].Merge(bgAcc[i])
	}
	if err := e.fit("foreground", fg, fgAcc[0]); err != nil {
		return err
	}
	return e.fit("background", bg, bgAcc[0])
}

// fit refits m from acc. When the last cut left a class without pixels, or
// none of its components got enough samples, the model keeps its previous
// parameters: it was fitted before and still describes that class.
func (e *Engine) fit(class string, m *gmm.Model, acc *gmm.Accumulator) error {
	err := m.Fit(acc)
	if err == nil {
		return nil
	}
	if errors.Is(err, gmm.ErrDegenerate) && m.Fitted() {
		e.logger.Debug("Keeping previous colour model", "class", class, "samples", acc.Total(), "reason", err)
		return nil
	}
	return newError(DegenerateModel, "fit "+class+" model", err)
}
