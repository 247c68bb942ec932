package cmd

import (
	"fmt"
	"log/slog"

	"github.com/MeKo-Tech/cutout/internal/grabcut"
	"github.com/MeKo-Tech/cutout/internal/pipeline"
	"github.com/MeKo-Tech/cutout/internal/utils"
	"github.com/spf13/cobra"
)

// segmentCmd segments a single image.
var segmentCmd = &cobra.Command{
	Use:   "segment <image>",
	Short: "Extract the foreground of one image",
	Long: `Segment one image into foreground and background.

The hint is a rectangle (--rect x,y,w,h) or a mask image (--mask). Mask pixels
with grey values 0..3 are read as labels (0 background, 1 foreground,
2 probable background, 3 probable foreground); other masks are treated as
black and white, bright meaning probable foreground. Without a hint the
rectangle inset by --margin from the image border is used.

Examples:
  cutout segment photo.jpg --rect 40,30,200,160
  cutout segment photo.jpg --mask hint.png --format cutout -o cat.png
  cutout segment photo.jpg --format json -o -`,
	Args: cobra.ExactArgs(1),
	RunE: runSegment,
}

func init() {
	rootCmd.AddCommand(segmentCmd)
	addEngineFlags(segmentCmd)
	segmentCmd.Flags().String("rect", "", "foreground rectangle x,y,w,h")
	segmentCmd.Flags().String("mask", "", "hint mask image")
	segmentCmd.Flags().Float64("margin", 0.1, "border fraction used when neither --rect nor --mask is given")
	segmentCmd.Flags().StringP("output", "o", "", "output file (default <image>_<format>.png next to the input, - for stdout)")
	segmentCmd.Flags().String("overlay-dir", "", "also write an overlay image into this directory")
	segmentCmd.Flags().Bool("progress", false, "print the energy of every iteration to stderr")
}

func runSegment(cmd *cobra.Command, args []string) error {
	cfg := GetConfig()
	applyEngineFlags(cmd, cfg)
	if cmd.Flags().Changed("overlay-dir") {
		cfg.Output.OverlayDir, _ = cmd.Flags().GetString("overlay-dir")
	}
	if err := cfg.Validate(); err != nil {
		return err
	}

	margin := cfg.Batch.Margin
	if cmd.Flags().Changed("margin") {
		margin, _ = cmd.Flags().GetFloat64("margin")
	}
	pl, err := pipeline.New(cfg.ToPipelineConfig(margin), pipeline.WithLogger(slog.Default()))
	if err != nil {
		return err
	}

	src := pipeline.Source{ImagePath: args[0]}
	src.MaskPath, _ = cmd.Flags().GetString("mask")
	if rect, _ := cmd.Flags().GetString("rect"); rect != "" {
		if src.MaskPath != "" {
			return fmt.Errorf("--rect and --mask are mutually exclusive")
		}
		if src.Rect, err = utils.ParseRect(rect); err != nil {
			return err
		}
	}

	job, err := pl.Load(src)
	if err != nil {
		return err
	}
	if p, _ := cmd.Flags().GetBool("progress"); p {
		job.Progress = func(it, total int, e grabcut.Energy) {
			_, _ = fmt.Fprintf(cmd.ErrOrStderr(), "iteration %d/%d: energy %.2f -> %.2f\n", it, total, e.Before, e.After)
		}
	}

	out, err := pl.Segment(cmd.Context(), job)
	if err != nil {
		return err
	}

	format := cfg.Output.Format
	if format == "" {
		format = pipeline.FormatPNG
	}
	render := pl.Config().Render

	output, _ := cmd.Flags().GetString("output")
	if output == "" {
		output = cfg.Output.File
	}
	switch output {
	case "-":
		if err := pipeline.Render(cmd.OutOrStdout(), out, format, render); err != nil {
			return err
		}
	default:
		if output == "" {
			output = pipeline.OutputPath(args[0], "", format)
		}
		if err := pipeline.Save(output, out, format, render); err != nil {
			return err
		}
		_, _ = fmt.Fprintf(cmd.OutOrStdout(), "Saved %s (%d foreground pixels)\n", output, out.Result.Trimap.ForegroundCount())
	}

	if cfg.Output.OverlayDir != "" {
		path := pipeline.OutputPath(args[0], cfg.Output.OverlayDir, pipeline.FormatOverlay)
		if err := pipeline.Save(path, out, pipeline.FormatOverlay, render); err != nil {
			return err
		}
		slog.Info("Wrote overlay", "path", path)
	}
	return nil
}
