package pipeline

import (
	"image"

	"github.com/MeKo-Tech/cutout/internal/grabcut"
	"github.com/MeKo-Tech/cutout/internal/maxflow"
	"github.com/MeKo-Tech/cutout/internal/visualize"
)

// Job is one image to segment.
type Job struct {
	Name  string
	Image image.Image
	Hint  grabcut.Hint

	// Iterations overrides Config.Iterations when positive.
	Iterations int
	// Components overrides the engine's mixture size when positive.
	Components int
	// Solver replaces the pipeline's max-flow solver when set.
	Solver maxflow.Solver
	// Progress is called after every engine iteration.
	Progress grabcut.ProgressFunc
}

// Output is a finished job together with what is needed to render it.
type Output struct {
	Name   string
	Source image.Image
	Hint   grabcut.Hint
	Solver string
	Result *grabcut.Result
}

// Summary is the JSON description of a segmentation.
type Summary struct {
	Name             string           `json:"name,omitempty"`
	Width            int              `json:"width"`
	Height           int              `json:"height"`
	Rect             string           `json:"rect,omitempty"`
	Mode             string           `json:"mode"`
	Solver           string           `json:"solver,omitempty"`
	Iterations       int              `json:"iterations"`
	Beta             float64          `json:"beta"`
	Energies         []grabcut.Energy `json:"energies"`
	ForegroundPixels int              `json:"foreground_pixels"`
	Coverage         float64          `json:"coverage"`
	Labels           map[string]int   `json:"labels"`
	Shape            visualize.Shape  `json:"shape"`
	Processing       struct {
		TotalNs int64 `json:"total_ns"`
	} `json:"processing"`
}
