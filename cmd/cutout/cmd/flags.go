package cmd

import (
	"github.com/MeKo-Tech/cutout/internal/config"
	"github.com/spf13/cobra"
)

// addEngineFlags registers the engine settings shared by segment and batch.
func addEngineFlags(cmd *cobra.Command) {
	d := config.DefaultConfig()
	cmd.Flags().IntP("iterations", "n", d.Engine.Iterations, "number of GrabCut iterations")
	cmd.Flags().IntP("components", "k", d.Engine.Components, "Gaussian components per colour model")
	cmd.Flags().String("solver", d.Engine.Solver, "max-flow solver: bk or dinic")
	cmd.Flags().Float64("gamma", d.Engine.Gamma, "smoothness weight")
	cmd.Flags().Int("max-size", d.Engine.MaxImageSize, "downscale images whose longer side exceeds this (0 = never)")
	cmd.Flags().Int("workers", d.Engine.Workers, "goroutines per image (0 = GOMAXPROCS)")
	cmd.Flags().Uint64("seed", d.Engine.KMeans.Seed, "k-means seed")
	cmd.Flags().StringP("format", "f", d.Output.Format, "output format: png, trimap, json, overlay or cutout")
	cmd.Flags().Float64("feather", d.Output.Feather, "cutout edge feather radius in pixels")
	cmd.Flags().Bool("crop", d.Output.Crop, "crop cutouts to the foreground bounds")
	cmd.Flags().String("overlay-color", d.Output.OverlayColor, "overlay tint colour (hex)")
}

// applyEngineFlags copies the changed engine flags into cfg.
func applyEngineFlags(cmd *cobra.Command, cfg *config.Config) {
	f := cmd.Flags()
	if f.Changed("iterations") {
		cfg.Engine.Iterations, _ = f.GetInt("iterations")
	}
	if f.Changed("components") {
		cfg.Engine.Components, _ = f.GetInt("components")
	}
	if f.Changed("solver") {
		cfg.Engine.Solver, _ = f.GetString("solver")
	}
	if f.Changed("gamma") {
		cfg.Engine.Gamma, _ = f.GetFloat64("gamma")
	}
	if f.Changed("max-size") {
		cfg.Engine.MaxImageSize, _ = f.GetInt("max-size")
	}
	if f.Changed("workers") {
		cfg.Engine.Workers, _ = f.GetInt("workers")
	}
	if f.Changed("seed") {
		cfg.Engine.KMeans.Seed, _ = f.GetUint64("seed")
	}
	if f.Changed("format") {
		cfg.Output.Format, _ = f.GetString("format")
	}
	if f.Changed("feather") {
		cfg.Output.Feather, _ = f.GetFloat64("feather")
	}
	if f.Changed("crop") {
		cfg.Output.Crop, _ = f.GetBool("crop")
	}
	if f.Changed("overlay-color") {
		cfg.Output.OverlayColor, _ = f.GetString("overlay-color")
	}
}
