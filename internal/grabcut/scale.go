package grabcut

import (
	"context"
	"image"
	"math"

	"github.com/MeKo-Tech/cutout/internal/rgb"
	"github.com/MeKo-Tech/cutout/internal/trimap"
	"github.com/disintegration/imaging"
)

// Scale is the per-axis ratio between a resized image and its source.
// imaging rounds each side on its own, so the two ratios can differ.
type Scale struct {
	X, Y float64
}

// Identity reports whether s leaves coordinates unchanged.
func (s Scale) Identity() bool { return s.X == 1 && s.Y == 1 }

// Downscale shrinks img so neither side exceeds maxSize, keeping the aspect
// ratio. It returns img unchanged with an identity scale when it already
// fits or maxSize is not positive.
func Downscale(img image.Image, maxSize int) (image.Image, Scale) {
	b := img.Bounds()
	if maxSize <= 0 || (b.Dx() <= maxSize && b.Dy() <= maxSize) {
		return img, Scale{X: 1, Y: 1}
	}
	out := imaging.Fit(img, maxSize, maxSize, imaging.Lanczos)
	ob := out.Bounds()
	return out, Scale{
		X: float64(ob.Dx()) / float64(b.Dx()),
		Y: float64(ob.Dy()) / float64(b.Dy()),
	}
}

// ResizeTrimap resizes t to w x h with nearest-neighbour sampling so no new
// label values are introduced.
func ResizeTrimap(t *trimap.Trimap, w, h int) *trimap.Trimap {
	if t.Width == w && t.Height == h {
		return t.Clone()
	}
	nrgba := imaging.Resize(t.ToGray(), w, h, imaging.NearestNeighbor)
	out := trimap.New(w, h, trimap.DefiniteBackground)
	for y := range h {
		row := nrgba.Pix[y*nrgba.Stride:]
		for x := range w {
			out.Labels[y*w+x] = trimap.Label(row[x*4])
		}
	}
	return out
}

// ScaleHint maps a hint given in source pixels onto an image of w x h that
// was produced by Downscale with the given scale. The rectangle is grown
// to whole pixels and clipped to the scaled image.
func ScaleHint(hint Hint, scale Scale, w, h int) Hint {
	out := Hint{}
	if !hint.Rect.Empty() {
		out.Rect = image.Rect(
			int(math.Floor(float64(hint.Rect.Min.X)*scale.X)),
			int(math.Floor(float64(hint.Rect.Min.Y)*scale.Y)),
			int(math.Ceil(float64(hint.Rect.Max.X)*scale.X)),
			int(math.Ceil(float64(hint.Rect.Max.Y)*scale.Y)),
		).Intersect(image.Rect(0, 0, w, h))
	}
	if hint.Mask != nil {
		out.Mask = ResizeTrimap(hint.Mask, w, h)
	}
	return out
}

// Segment runs a fresh segmentation of src. A hint with a mask starts in
// ModeInitWithMask, otherwise in ModeInitWithRect. Images larger than
// Config.MaxSize are segmented at reduced resolution and the resulting
// trimap is scaled back to the size of src.
func (e *Engine) Segment(ctx context.Context, src image.Image, hint Hint, iterations int) (*Result, error) {
	mode := ModeInitWithRect
	if hint.Mask != nil {
		mode = ModeInitWithMask
		if hint.Mask.Width != src.Bounds().Dx() || hint.Mask.Height != src.Bounds().Dy() {
			return nil, newError(InvalidInput, "segment", trimap.ErrSizeMismatch)
		}
	}

	work, scale := Downscale(src, e.cfg.MaxSize)
	img, err := rgb.FromImage(work)
	if err != nil {
		return nil, newError(InvalidInput, "segment", err)
	}
	if !scale.Identity() {
		e.logger.Debug("Downscaled input",
			"from_width", src.Bounds().Dx(), "from_height", src.Bounds().Dy(),
			"to_width", img.Width, "to_height", img.Height)
		hint = ScaleHint(hint, scale, img.Width, img.Height)
	}

	res, err := e.Run(ctx, img, hint, iterations, mode)
	if err != nil {
		return nil, err
	}
	if !scale.Identity() {
		res.Trimap = ResizeTrimap(res.Trimap, src.Bounds().Dx(), src.Bounds().Dy())
	}
	return res, nil
}
