// Package batch segments every image of a set of files and directories with
// a bounded worker pool.
package batch

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/MeKo-Tech/cutout/internal/pipeline"
	"golang.org/x/sync/errgroup"
)

// Result holds the result of batch processing, one item per input in
// discovery order.
type Result struct {
	Items       []Item
	Duration    time.Duration
	WorkerCount int
}

// Succeeded returns the number of images that were segmented and saved.
func (r *Result) Succeeded() int {
	n := 0
	for _, it := range r.Items {
		if it.Err == nil {
			n++
		}
	}
	return n
}

// Failed returns the number of images that failed.
func (r *Result) Failed() int { return len(r.Items) - r.Succeeded() }

// ProcessBatch discovers the images named by paths and segments them.
func ProcessBatch(ctx context.Context, paths []string, config Config) (*Result, error) {
	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid batch config: %w", err)
	}

	files, err := discoverImageFiles(paths, config.Recursive, config.IncludePatterns, config.ExcludePatterns)
	if err != nil {
		return nil, fmt.Errorf("failed to discover image files: %w", err)
	}
	if len(files) == 0 {
		return nil, ErrNoImages
	}

	pl, err := pipeline.New(config.Pipeline, pipeline.WithLogger(config.logger()))
	if err != nil {
		return nil, fmt.Errorf("failed to build pipeline: %w", err)
	}

	start := time.Now()
	items, err := processImagesParallel(ctx, pl, files, config)
	if err != nil {
		return nil, fmt.Errorf("batch processing failed: %w", err)
	}

	return &Result{
		Items:       items,
		Duration:    time.Since(start),
		WorkerCount: config.Workers,
	}, nil
}

// processImagesParallel runs processSingleImage over files on at most
// config.Workers goroutines. Unless ContinueOnError is set the first failure
// cancels the remaining images.
func processImagesParallel(ctx context.Context, pl *pipeline.Pipeline, files []string, config Config) ([]Item, error) {
	items := make([]Item, len(files))
	progress := config.Progress
	if progress == nil {
		progress = pipeline.NoOpProgressCallback{}
	}
	progress.OnStart(len(files))

	var mu sync.Mutex
	done := 0

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(config.Workers)
	for i, path := range files {
		g.Go(func() error {
			item := processSingleImage(gctx, pl, path, config)
			items[i] = item

			mu.Lock()
			done++
			if item.Err != nil {
				progress.OnError(i+1, item.Err)
			}
			progress.OnProgress(done, len(files))
			mu.Unlock()

			if item.Err != nil {
				config.logger().Warn("Image failed", "file", path, "error", item.Err)
				if !config.ContinueOnError {
					return item.Err
				}
			}
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}
	progress.OnComplete()
	return items, nil
}
