// Package parallel runs per-row image passes over a bounded set of
// goroutines.
package parallel

import (
	"context"
	"runtime"

	"golang.org/x/sync/errgroup"
)

// Band is a half-open range of rows [Y0, Y1).
type Band struct {
	Y0, Y1 int
}

// Bands splits [0, rows) into at most workers contiguous bands
// (workers <= 0 means GOMAXPROCS).
func Bands(rows, workers int) []Band {
	if rows <= 0 {
		return nil
	}
	if workers <= 0 {
		workers = runtime.GOMAXPROCS(0)
	}
	workers = min(workers, rows)
	size := (rows + workers - 1) / workers
	out := make([]Band, 0, workers)
	for y0 := 0; y0 < rows; y0 += size {
		out = append(out, Band{Y0: y0, Y1: min(y0+size, rows)})
	}
	return out
}

// ForBands runs fn once per band, concurrently. fn receives the band's index
// so callers can keep one partial result per band and reduce them after
// ForBands returns. The first error cancels the remaining bands.
func ForBands(ctx context.Context, bands []Band, fn func(idx int, b Band) error) error {
	if len(bands) == 1 {
		if err := ctx.Err(); err != nil {
			return err
		}
		return fn(0, bands[0])
	}

	g, ctx := errgroup.WithContext(ctx)
	for i, b := range bands {
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			return fn(i, b)
		})
	}
	return g.Wait()
}

// ForRows is ForBands over Bands(rows, workers) for callers that need no
// per-band state.
func ForRows(ctx context.Context, rows, workers int, fn func(y0, y1 int) error) error {
	return ForBands(ctx, Bands(rows, workers), func(_ int, b Band) error {
		return fn(b.Y0, b.Y1)
	})
}
