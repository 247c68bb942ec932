// Package pairwise computes the contrast-sensitive smoothness weights between
// 8-connected neighbouring pixels. They depend only on the image, so they are
// computed once per image and reused by every iteration.
package pairwise

import (
	"context"
	"math"

	"github.com/MeKo-Tech/cutout/internal/parallel"
	"github.com/MeKo-Tech/cutout/internal/rgb"
)

// DefaultGamma is the global smoothness scale.
const DefaultGamma = 50.0

// Weights holds one capacity per undirected neighbour pair, stored at the
// pixel whose neighbour lies to the left, up-left, up or up-right. Entries
// whose neighbour falls outside the image are zero.
type Weights struct {
	Width, Height int

	Left    []float64
	UpLeft  []float64
	Up      []float64
	UpRight []float64

	// Incident is the sum of all capacities touching each pixel.
	Incident []float64
}

// PairCount returns the number of undirected 8-neighbour pairs in a w x h grid.
func PairCount(w, h int) int {
	if w <= 0 || h <= 0 {
		return 0
	}
	return 4*w*h - 3*w - 3*h + 2
}

// Beta returns 1 / (2 * mean squared colour distance between neighbours).
// It returns 0 for images without any contrast.
func Beta(img *rgb.Image) float64 {
	n := PairCount(img.Width, img.Height)
	if n == 0 {
		return 0
	}

	w := img.Width
	sum := 0.0
	for y := range img.Height {
		for x := range w {
			c := img.Pix[y*w+x]
			if x > 0 {
				sum += c.DistSq(img.Pix[y*w+x-1])
			}
			if y > 0 {
				up := (y - 1) * w
				if x > 0 {
					sum += c.DistSq(img.Pix[up+x-1])
				}
				sum += c.DistSq(img.Pix[up+x])
				if x+1 < w {
					sum += c.DistSq(img.Pix[up+x+1])
				}
			}
		}
	}

	if sum <= math.SmallestNonzeroFloat64 {
		return 0
	}
	return 1 / (2 * sum / float64(n))
}

// Compute returns the weight tables for img. Each weight is
// gamma * f * exp(-beta * |d|^2) with f = 1 for horizontal and vertical
// pairs and 1/sqrt(2) for diagonal ones. Rows are split across workers
// (0 = GOMAXPROCS).
func Compute(ctx context.Context, img *rgb.Image, beta, gamma float64, workers int) (*Weights, error) {
	w, h := img.Width, img.Height
	n := w * h
	out := &Weights{
		Width:    w,
		Height:   h,
		Left:     make([]float64, n),
		UpLeft:   make([]float64, n),
		Up:       make([]float64, n),
		UpRight:  make([]float64, n),
		Incident: make([]float64, n),
	}
	if n == 0 {
		return out, nil
	}

	diag := gamma / math.Sqrt2
	err := parallel.ForRows(ctx, h, workers, func(y0, y1 int) error {
		for y := y0; y < y1; y++ {
			for x := range w {
				i := y*w + x
				c := img.Pix[i]
				if x > 0 {
					out.Left[i] = gamma * math.Exp(-beta*c.DistSq(img.Pix[i-1]))
				}
				if y > 0 {
					if x > 0 {
						out.UpLeft[i] = diag * math.Exp(-beta*c.DistSq(img.Pix[i-w-1]))
					}
					out.Up[i] = gamma * math.Exp(-beta*c.DistSq(img.Pix[i-w]))
					if x+1 < w {
						out.UpRight[i] = diag * math.Exp(-beta*c.DistSq(img.Pix[i-w+1]))
					}
				}
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	// Incident sums touch neighbouring rows, so they run after the barrier.
	for y := range h {
		for x := range w {
			i := y*w + x
			s := out.Left[i] + out.UpLeft[i] + out.Up[i] + out.UpRight[i]
			if x+1 < w {
				s += out.Left[i+1]
			}
			if y+1 < h {
				s += out.Up[i+w]
				if x+1 < w {
					s += out.UpLeft[i+w+1]
				}
				if x > 0 {
					s += out.UpRight[i+w-1]
				}
			}
			out.Incident[i] = s
		}
	}
	return out, nil
}

// Pair describes one undirected neighbour edge.
type Pair struct {
	A, B   int
	Weight float64
}

// Each calls fn for every pair with a non-zero weight. A is always the pixel
// owning the entry and B its left/up-left/up/up-right neighbour.
func (wt *Weights) Each(fn func(p Pair)) {
	w := wt.Width
	for i := range wt.Left {
		if v := wt.Left[i]; v > 0 {
			fn(Pair{A: i, B: i - 1, Weight: v})
		}
		if v := wt.UpLeft[i]; v > 0 {
			fn(Pair{A: i, B: i - w - 1, Weight: v})
		}
		if v := wt.Up[i]; v > 0 {
			fn(Pair{A: i, B: i - w, Weight: v})
		}
		if v := wt.UpRight[i]; v > 0 {
			fn(Pair{A: i, B: i - w + 1, Weight: v})
		}
	}
}

// Len returns the number of non-zero pairs.
func (wt *Weights) Len() int {
	n := 0
	wt.Each(func(Pair) { n++ })
	return n
}
