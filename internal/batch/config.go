package batch

import (
	"errors"
	"fmt"
	"log/slog"

	"github.com/MeKo-Tech/cutout/internal/pipeline"
)

// Config holds all configuration for batch processing.
type Config struct {
	// Pipeline configures the engine and rendering of every image.
	Pipeline pipeline.Config

	// Output settings
	OutputDir string // next to each input when empty
	Format    string // overrides Pipeline.Render.Format when set

	// Parallel processing settings
	Workers int

	// File discovery settings
	Recursive       bool
	IncludePatterns []string
	ExcludePatterns []string
	// UseMasks picks up "<name>.mask.png" sidecars as hints.
	UseMasks bool

	// ContinueOnError records failed images instead of aborting the batch.
	ContinueOnError bool

	Progress pipeline.ProgressCallback
	Logger   *slog.Logger
}

// DefaultConfig returns the batch defaults: four workers, mask sidecars
// enabled, binary mask output next to the inputs.
func DefaultConfig() Config {
	return Config{
		Pipeline: pipeline.DefaultConfig(),
		Workers:  4,
		UseMasks: true,
	}
}

// Validate checks the batch settings.
func (c *Config) Validate() error {
	if c.Workers <= 0 {
		return fmt.Errorf("invalid workers: %d (must be positive)", c.Workers)
	}
	if err := pipeline.ValidateFormat(c.Format); err != nil {
		return err
	}
	for _, p := range append(append([]string{}, c.IncludePatterns...), c.ExcludePatterns...) {
		if err := validatePattern(p); err != nil {
			return err
		}
	}
	return nil
}

// format returns the output format in effect.
func (c *Config) format() string {
	switch {
	case c.Format != "":
		return c.Format
	case c.Pipeline.Render.Format != "":
		return c.Pipeline.Render.Format
	default:
		return pipeline.FormatPNG
	}
}

func (c *Config) logger() *slog.Logger {
	if c.Logger == nil {
		return slog.Default()
	}
	return c.Logger
}

// ErrNoImages is returned when discovery finds nothing to process.
var ErrNoImages = errors.New("no image files found")
