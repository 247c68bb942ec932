package config

import (
	"fmt"
	"slices"
	"strings"

	"github.com/MeKo-Tech/cutout/internal/gmm"
	"github.com/MeKo-Tech/cutout/internal/grabcut"
	"github.com/MeKo-Tech/cutout/internal/kmeans"
	"github.com/MeKo-Tech/cutout/internal/maxflow"
	"github.com/MeKo-Tech/cutout/internal/pairwise"
	"github.com/MeKo-Tech/cutout/internal/pipeline"
	"github.com/MeKo-Tech/cutout/internal/utils"
)

// DefaultConfig returns a configuration with sensible defaults.
func DefaultConfig() Config {
	km := kmeans.DefaultConfig()
	return Config{
		LogLevel: "info",
		Verbose:  false,
		Engine: EngineConfig{
			Components:   gmm.DefaultComponents,
			Gamma:        pairwise.DefaultGamma,
			LambdaScale:  9,
			MinSamples:   gmm.DefaultMinSamples,
			Iterations:   5,
			Workers:      0,
			MaxImageSize: 1024,
			Solver:       "bk",
			KMeans: KMeansConfig{
				Seed:          km.Seed,
				Attempts:      km.Attempts,
				MaxIterations: km.MaxIterations,
			},
		},
		Output: OutputConfig{
			Format:       pipeline.FormatPNG,
			OverlayColor: "#00FF00",
			OverlayAlpha: 0.45,
			HintColor:    "#FF0000",
			Feather:      0,
			Crop:         false,
			Simplify:     1.5,
		},
		Server: ServerConfig{
			Host:            "localhost",
			Port:            8080,
			CORSOrigin:      "*",
			MaxUploadMB:     50,
			TimeoutSec:      30,
			ShutdownTimeout: 10,
			MaxIterations:   20,
			RateLimit:       0,
			RateBurst:       10,
		},
		Batch: BatchConfig{
			Workers:         4,
			Margin:          0.1,
			UseMasks:        true,
			ContinueOnError: false,
		},
	}
}

// Validate validates the configuration and returns any errors.
func (c *Config) Validate() error {
	validLogLevels := []string{"debug", "info", "warn", "error"}
	if !slices.Contains(validLogLevels, c.LogLevel) {
		return fmt.Errorf("invalid log level: %s (must be one of: %s)", c.LogLevel, strings.Join(validLogLevels, ", "))
	}

	if err := pipeline.ValidateFormat(c.Output.Format); err != nil {
		return err
	}

	if err := c.ToEngineConfig().Validate(); err != nil {
		return fmt.Errorf("invalid engine settings: %w", err)
	}
	if c.Engine.Iterations < 0 {
		return fmt.Errorf("invalid engine iterations: %d (cannot be negative)", c.Engine.Iterations)
	}
	if _, err := maxflow.ByName(c.Engine.Solver); err != nil {
		return fmt.Errorf("invalid engine solver: %w", err)
	}

	if err := validateFraction(c.Output.OverlayAlpha, "output.overlay_alpha"); err != nil {
		return err
	}
	if err := validateColor(c.Output.OverlayColor, "output.overlay_color"); err != nil {
		return err
	}
	if err := validateColor(c.Output.HintColor, "output.hint_color"); err != nil {
		return err
	}
	if c.Output.Feather < 0 {
		return fmt.Errorf("invalid output.feather: %.2f (cannot be negative)", c.Output.Feather)
	}
	if c.Output.Simplify < 0 {
		return fmt.Errorf("invalid output.simplify: %.2f (cannot be negative)", c.Output.Simplify)
	}

	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return fmt.Errorf("invalid server port: %d (must be between 1 and 65535)", c.Server.Port)
	}
	if c.Server.MaxUploadMB <= 0 {
		return fmt.Errorf("invalid max upload size: %d (must be positive)", c.Server.MaxUploadMB)
	}
	if c.Server.TimeoutSec <= 0 {
		return fmt.Errorf("invalid timeout: %d (must be positive)", c.Server.TimeoutSec)
	}
	if c.Server.MaxIterations <= 0 {
		return fmt.Errorf("invalid server max iterations: %d (must be positive)", c.Server.MaxIterations)
	}
	if c.Server.RateLimit < 0 {
		return fmt.Errorf("invalid server rate limit: %.2f (cannot be negative)", c.Server.RateLimit)
	}

	if c.Batch.Workers <= 0 {
		return fmt.Errorf("invalid batch workers: %d (must be positive)", c.Batch.Workers)
	}
	if c.Batch.Margin < 0 || c.Batch.Margin >= 0.5 {
		return fmt.Errorf("invalid batch margin: %.2f (must be in [0, 0.5))", c.Batch.Margin)
	}

	return nil
}

// ToEngineConfig converts the config to the segmentation engine's format.
func (c *Config) ToEngineConfig() grabcut.Config {
	cfg := grabcut.DefaultConfig()
	cfg.Components = c.Engine.Components
	cfg.Gamma = c.Engine.Gamma
	cfg.LambdaScale = c.Engine.LambdaScale
	cfg.MinSamples = c.Engine.MinSamples
	cfg.Workers = c.Engine.Workers
	cfg.MaxSize = c.Engine.MaxImageSize
	cfg.KMeans.Seed = c.Engine.KMeans.Seed
	if c.Engine.KMeans.Attempts > 0 {
		cfg.KMeans.Attempts = c.Engine.KMeans.Attempts
	}
	if c.Engine.KMeans.MaxIterations > 0 {
		cfg.KMeans.MaxIterations = c.Engine.KMeans.MaxIterations
	}
	return cfg
}

// NewEngine builds a segmentation engine with the configured solver.
func (c *Config) NewEngine(opts ...grabcut.Option) (*grabcut.Engine, error) {
	solver, err := maxflow.ByName(c.Engine.Solver)
	if err != nil {
		return nil, err
	}
	return grabcut.New(c.ToEngineConfig(), append([]grabcut.Option{grabcut.WithSolver(solver)}, opts...)...)
}

// ToPipelineConfig converts the engine and output sections into a pipeline
// configuration. margin is the border fraction used when a job has no hint.
func (c *Config) ToPipelineConfig(margin float64) pipeline.Config {
	cfg := pipeline.DefaultConfig()
	cfg.Engine = c.ToEngineConfig()
	cfg.Solver = c.Engine.Solver
	cfg.Iterations = c.Engine.Iterations
	cfg.Margin = margin
	cfg.Render.Format = c.Output.Format
	cfg.Render.Feather = c.Output.Feather
	cfg.Render.Crop = c.Output.Crop
	cfg.Render.Simplify = c.Output.Simplify
	cfg.Render.Overlay.Alpha = c.Output.OverlayAlpha
	if col, ok := utils.ParseHexColor(c.Output.OverlayColor); ok {
		cfg.Render.Overlay.Tint = col
	}
	if col, ok := utils.ParseHexColor(c.Output.HintColor); ok {
		cfg.Render.Overlay.HintColor = col
	}
	return cfg
}

// validateFraction validates that a value is between 0.0 and 1.0.
func validateFraction(value float64, name string) error {
	if value < 0.0 || value > 1.0 {
		return fmt.Errorf("invalid %s: %.2f (must be between 0.0 and 1.0)", name, value)
	}
	return nil
}

// validateColor accepts an empty string or a "#rrggbb" colour.
func validateColor(value, name string) error {
	if value == "" {
		return nil
	}
	if _, ok := utils.ParseHexColor(value); !ok {
		return fmt.Errorf("invalid %s: %q (must be #rrggbb)", name, value)
	}
	return nil
}
