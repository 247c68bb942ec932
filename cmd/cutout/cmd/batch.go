package cmd

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/MeKo-Tech/cutout/internal/batch"
	"github.com/MeKo-Tech/cutout/internal/pipeline"
	"github.com/spf13/cobra"
)

// batchCmd segments many images in parallel.
var batchCmd = &cobra.Command{
	Use:   "batch <paths...>",
	Short: "Segment a set of images or directories",
	Long: `Segment every supported image found in the given files and directories.

An image "<name>.png" with a sidecar "<name>.mask.png" uses the sidecar as its
hint; all other images use the border rectangle inset by --margin. Outputs are
written next to the inputs unless --output-dir is set, and are never picked up
again as inputs.

Examples:
  cutout batch ./photos
  cutout batch ./photos --recursive --workers 8 --format cutout
  cutout batch a.jpg b.jpg --report json --report-file report.json`,
	Args: cobra.MinimumNArgs(1),
	RunE: runBatch,
}

func init() {
	rootCmd.AddCommand(batchCmd)
	addEngineFlags(batchCmd)
	batchCmd.Flags().StringP("output-dir", "d", "", "directory for outputs (default next to each input)")
	batchCmd.Flags().Int("jobs", 4, "number of images processed in parallel")
	batchCmd.Flags().BoolP("recursive", "r", false, "descend into subdirectories")
	batchCmd.Flags().StringSlice("include", nil, "only process files matching these glob patterns")
	batchCmd.Flags().StringSlice("exclude", nil, "skip files matching these glob patterns")
	batchCmd.Flags().Float64("margin", 0.1, "border fraction of the default rectangle hint")
	batchCmd.Flags().Bool("no-masks", false, "ignore .mask.png sidecars")
	batchCmd.Flags().Bool("continue-on-error", false, "keep going when an image fails")
	batchCmd.Flags().String("report", batch.ReportText, "report format: text, json or csv")
	batchCmd.Flags().String("report-file", "", "write the report to this file instead of stdout")
	batchCmd.Flags().Bool("progress", false, "show a progress bar on stderr")
	batchCmd.Flags().Bool("stats", false, "print summary statistics")
	batchCmd.Flags().BoolP("quiet", "q", false, "do not print the report")
}

func runBatch(cmd *cobra.Command, args []string) error {
	cfg := GetConfig()
	applyEngineFlags(cmd, cfg)
	f := cmd.Flags()

	margin := cfg.Batch.Margin
	if f.Changed("margin") {
		margin, _ = f.GetFloat64("margin")
	}
	jobs := cfg.Batch.Workers
	if f.Changed("jobs") {
		jobs, _ = f.GetInt("jobs")
	}
	outputDir := cfg.Batch.OutputDir
	if f.Changed("output-dir") {
		outputDir, _ = f.GetString("output-dir")
	}
	recursive := cfg.Batch.Recursive
	if f.Changed("recursive") {
		recursive, _ = f.GetBool("recursive")
	}
	useMasks := cfg.Batch.UseMasks
	if f.Changed("no-masks") {
		noMasks, _ := f.GetBool("no-masks")
		useMasks = !noMasks
	}
	continueOnError := cfg.Batch.ContinueOnError
	if f.Changed("continue-on-error") {
		continueOnError, _ = f.GetBool("continue-on-error")
	}
	if err := cfg.Validate(); err != nil {
		return err
	}

	bc := batch.DefaultConfig()
	bc.Pipeline = cfg.ToPipelineConfig(margin)
	bc.OutputDir = outputDir
	bc.Workers = jobs
	bc.Recursive = recursive
	bc.UseMasks = useMasks
	bc.ContinueOnError = continueOnError
	bc.IncludePatterns, _ = f.GetStringSlice("include")
	bc.ExcludePatterns, _ = f.GetStringSlice("exclude")
	bc.Logger = slog.Default()
	if p, _ := f.GetBool("progress"); p {
		bc.Progress = pipeline.NewConsoleProgressCallback(cmd.ErrOrStderr(), "Segmenting")
	}

	if outputDir != "" {
		if err := os.MkdirAll(outputDir, 0o750); err != nil {
			return fmt.Errorf("failed to create output directory: %w", err)
		}
	}

	result, err := batch.ProcessBatch(cmd.Context(), args, bc)
	if err != nil {
		return err
	}

	quiet, _ := f.GetBool("quiet")
	if !quiet {
		report, _ := f.GetString("report")
		reportFile, _ := f.GetString("report-file")
		if err := result.SaveResults(cmd.OutOrStdout(), report, reportFile); err != nil {
			return err
		}
	}
	if stats, _ := f.GetBool("stats"); stats {
		result.PrintStats(cmd.OutOrStdout())
	}

	if failed := result.Failed(); failed > 0 {
		return fmt.Errorf("%d of %d images failed", failed, len(result.Items))
	}
	return nil
}
