package batch

import (
	"context"
	"fmt"
	"time"

	"github.com/MeKo-Tech/cutout/internal/pipeline"
)

// Item is the outcome for one input image.
type Item struct {
	Path     string
	MaskPath string // sidecar used as hint, if any
	Output   string // written file, empty on failure
	Summary  *pipeline.Summary
	Err      error
	Duration time.Duration
}

// processSingleImage segments one image and writes its output file.
func processSingleImage(ctx context.Context, pl *pipeline.Pipeline, path string, config Config) Item {
	start := time.Now()
	item := Item{Path: path}

	src := pipeline.Source{ImagePath: path}
	if config.UseMasks {
		src.MaskPath = maskFor(path)
		item.MaskPath = src.MaskPath
	}

	out, err := pl.SegmentFile(ctx, src)
	if err != nil {
		item.Err = fmt.Errorf("segmentation failed for %s: %w", path, err)
		item.Duration = time.Since(start)
		return item
	}

	render := pl.Config().Render
	summary, err := pipeline.Summarize(out, render.Simplify)
	if err != nil {
		item.Err = err
		item.Duration = time.Since(start)
		return item
	}
	item.Summary = summary

	format := config.format()
	outPath := pipeline.OutputPath(path, config.OutputDir, format)
	if err := pipeline.Save(outPath, out, format, render); err != nil {
		item.Err = err
		item.Duration = time.Since(start)
		return item
	}
	item.Output = outPath
	item.Duration = time.Since(start)
	return item
}
