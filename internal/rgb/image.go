// Package rgb holds the read-only colour grid consumed by the segmentation
// engine: a row-major array of 3-channel float64 samples.
package rgb

import (
	"errors"
	"image"

	"github.com/disintegration/imaging"
)

// Color is a single RGB sample in the 0..255 range.
type Color [3]float64

// Sub returns c - o.
func (c Color) Sub(o Color) Color {
	return Color{c[0] - o[0], c[1] - o[1], c[2] - o[2]}
}

// Dot returns the inner product of c and o.
func (c Color) Dot(o Color) float64 {
	return c[0]*o[0] + c[1]*o[1] + c[2]*o[2]
}

// DistSq returns the squared Euclidean distance between c and o.
func (c Color) DistSq(o Color) float64 {
	d := c.Sub(o)
	return d.Dot(d)
}

// Image is a fixed-size grid of colours indexed by (x, y) or by the linear
// index y*Width+x.
type Image struct {
	Width  int
	Height int
	Pix    []Color
}

// ErrEmptyImage is returned when an image without pixels is supplied.
var ErrEmptyImage = errors.New("image has no pixels")

// New allocates a black image of the given size.
func New(width, height int) *Image {
	if width < 0 {
		width = 0
	}
	if height < 0 {
		height = 0
	}
	return &Image{Width: width, Height: height, Pix: make([]Color, width*height)}
}

// FromImage converts any image.Image into an Image. Alpha is ignored; the
// straight (non-premultiplied) colour values are used.
func FromImage(src image.Image) (*Image, error) {
	if src == nil {
		return nil, ErrEmptyImage
	}
	b := src.Bounds()
	if b.Empty() {
		return nil, ErrEmptyImage
	}

	nrgba := imaging.Clone(src)
	w, h := nrgba.Bounds().Dx(), nrgba.Bounds().Dy()
	out := New(w, h)
	for y := range h {
		row := nrgba.Pix[y*nrgba.Stride : y*nrgba.Stride+w*4]
		for x := range w {
			p := row[x*4 : x*4+3]
			out.Pix[y*w+x] = Color{float64(p[0]), float64(p[1]), float64(p[2])}
		}
	}
	return out, nil
}

// Len returns the number of pixels.
func (m *Image) Len() int { return m.Width * m.Height }

// Index returns the linear index of (x, y).
func (m *Image) Index(x, y int) int { return y*m.Width + x }

// At returns the colour at (x, y).
func (m *Image) At(x, y int) Color { return m.Pix[y*m.Width+x] }

// Set stores c at (x, y).
func (m *Image) Set(x, y int, c Color) { m.Pix[y*m.Width+x] = c }

// Bounds returns the image rectangle anchored at the origin.
func (m *Image) Bounds() image.Rectangle { return image.Rect(0, 0, m.Width, m.Height) }

// ToNRGBA renders the image back into an opaque *image.NRGBA.
func (m *Image) ToNRGBA() *image.NRGBA {
	dst := image.NewNRGBA(m.Bounds())
	for i, c := range m.Pix {
		o := i * 4
		dst.Pix[o] = clamp8(c[0])
		dst.Pix[o+1] = clamp8(c[1])
		dst.Pix[o+2] = clamp8(c[2])
		dst.Pix[o+3] = 255
	}
	return dst
}

func clamp8(v float64) uint8 {
	switch {
	case v <= 0:
		return 0
	case v >= 255:
		return 255
	default:
		return uint8(v + 0.5)
	}
}
