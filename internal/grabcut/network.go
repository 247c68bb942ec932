package grabcut

import (
	"context"
	"math"

	"github.com/MeKo-Tech/cutout/internal/gmm"
	"github.com/MeKo-Tech/cutout/internal/maxflow"
	"github.com/MeKo-Tech/cutout/internal/pairwise"
	"github.com/MeKo-Tech/cutout/internal/parallel"
	"github.com/MeKo-Tech/cutout/internal/rgb"
	"github.com/MeKo-Tech/cutout/internal/trimap"
)

// dataCost returns -log(d) with d floored so the cost stays finite.
func dataCost(d float64) float64 {
	return -math.Log(math.Max(d, math.SmallestNonzeroFloat64))
}

// BuildNetwork assembles the flow network for one iteration. Node i is pixel
// i. A node that ends on the source side is foreground and pays its sink
// capacity, so probable pixels get the background cost on the source link
// and the foreground cost on the sink link. Definite pixels are tied to
// their terminal with lambda*(incident+1), more than any cut through their
// n-links can save.
func BuildNetwork(
	ctx context.Context,
	img *rgb.Image,
	t *trimap.Trimap,
	fg, bg *gmm.Model,
	weights *pairwise.Weights,
	lambda float64,
	workers int,
) (*maxflow.Network, error) {
	n := maxflow.NewNetwork(img.Len(), 4*img.Len())
	w := img.Width

	err := parallel.ForRows(ctx, img.Height, workers, func(y0, y1 int) error {
		for i := y0 * w; i < y1*w; i++ {
			switch t.Labels[i] {
			case trimap.DefiniteBackground:
				n.SetTerminals(i, 0, lambda*(weights.Incident[i]+1))
			case trimap.DefiniteForeground:
				n.SetTerminals(i, lambda*(weights.Incident[i]+1), 0)
			default:
				c := img.Pix[i]
				n.SetTerminals(i, dataCost(bg.Density(c)), dataCost(fg.Density(c)))
			}
		}
		return nil
	})
	if err != nil {
		n.Release()
		return nil, err
	}

	weights.Each(func(p pairwise.Pair) {
		n.AddEdge(p.A, p.B, p.Weight)
	})
	return n, nil
}

// sidesOf maps the current labelling onto cut sides.
func sidesOf(t *trimap.Trimap) []maxflow.Side {
	sides := make([]maxflow.Side, len(t.Labels))
	for i, l := range t.Labels {
		if l.Foreground() {
			sides[i] = maxflow.SourceSide
		}
	}
	return sides
}
