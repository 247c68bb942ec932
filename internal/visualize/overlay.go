// Package visualize renders segmentation results: tinted overlays for
// inspection, transparent cutouts for export and shape summaries of masks.
package visualize

import (
	"image"
	"image/color"
	"math"

	"github.com/disintegration/imaging"
)

// OverlayOptions controls RenderOverlay.
type OverlayOptions struct {
	Tint      color.NRGBA     // colour blended over foreground pixels
	Alpha     float64         // tint opacity in [0, 1]
	Dim       float64         // background brightness factor in [0, 1]
	Hint      image.Rectangle // drawn as an outline when not empty
	HintColor color.NRGBA
	Hull      bool // draw the convex hull of the foreground
	HullColor color.NRGBA
}

// DefaultOverlayOptions returns a translucent green tint with a dimmed
// background.
func DefaultOverlayOptions() OverlayOptions {
	return OverlayOptions{
		Tint:      color.NRGBA{R: 0, G: 200, B: 80, A: 255},
		Alpha:     0.45,
		Dim:       0.5,
		HintColor: color.NRGBA{R: 255, G: 64, B: 64, A: 255},
		HullColor: color.NRGBA{R: 255, G: 220, B: 0, A: 255},
	}
}

// RenderOverlay returns a copy of img with the foreground of mask tinted
// and the background dimmed. mask must have the size of img.
func RenderOverlay(img image.Image, mask *image.Gray, opts OverlayOptions) *image.NRGBA {
	if img == nil {
		return nil
	}
	dst := imaging.Clone(img)
	if mask == nil || mask.Bounds().Size() != dst.Bounds().Size() {
		return dst
	}

	a := clamp01(opts.Alpha)
	dim := clamp01(opts.Dim)
	tint := [3]float64{float64(opts.Tint.R), float64(opts.Tint.G), float64(opts.Tint.B)}
	w, h := dst.Bounds().Dx(), dst.Bounds().Dy()
	mb := mask.Bounds()
	for y := range h {
		row := dst.Pix[y*dst.Stride : y*dst.Stride+w*4]
		for x := range w {
			p := row[x*4 : x*4+3]
			fg := mask.GrayAt(mb.Min.X+x, mb.Min.Y+y).Y >= 128
			for c := range 3 {
				v := float64(p[c])
				if fg {
					v = v*(1-a) + tint[c]*a
				} else {
					v *= dim
				}
				p[c] = uint8(math.Round(v))
			}
		}
	}

	if !opts.Hint.Empty() {
		drawRect(dst, opts.Hint, opts.HintColor, 2)
	}
	if opts.Hull {
		drawPolygon(dst, Describe(mask, 1).Hull, opts.HullColor, 1)
	}
	return dst
}

// Cutout returns img with the background made transparent. A positive
// feather radius blurs the mask edge into a soft alpha ramp. With crop set
// the result is cropped to the foreground bounds.
func Cutout(img image.Image, mask *image.Gray, feather float64, crop bool) *image.NRGBA {
	dst := imaging.Clone(img)
	if mask == nil || mask.Bounds().Size() != dst.Bounds().Size() {
		return dst
	}

	alpha := imaging.Clone(mask)
	if feather > 0 {
		alpha = imaging.Blur(alpha, feather)
	}
	w, h := dst.Bounds().Dx(), dst.Bounds().Dy()
	for y := range h {
		for x := range w {
			i := y*dst.Stride + x*4 + 3
			m := float64(alpha.Pix[y*alpha.Stride+x*4])
			dst.Pix[i] = uint8(math.Round(float64(dst.Pix[i]) * m / 255))
		}
	}

	if crop {
		b := Describe(mask, 0).Bounds.Sub(mask.Bounds().Min)
		if b.Empty() {
			return image.NewNRGBA(image.Rect(0, 0, 0, 0))
		}
		return imaging.Crop(dst, b)
	}
	return dst
}

func clamp01(v float64) float64 {
	return math.Max(0, math.Min(1, v))
}
