// Package trimap holds the per-pixel four-state label grid that seeds and
// records a segmentation.
package trimap

import (
	"errors"
	"fmt"
	"image"
	"image/color"
)

// Label is the state of a single pixel. The numbering matches the grey
// levels used in mask files.
type Label uint8

const (
	DefiniteBackground Label = iota
	DefiniteForeground
	ProbableBackground
	ProbableForeground
)

var (
	// ErrSizeMismatch is returned when a mask and an image differ in size.
	ErrSizeMismatch = errors.New("trimap: size mismatch")
	// ErrInvalidRect is returned when a rectangle does not overlap the image.
	ErrInvalidRect = errors.New("trimap: rectangle does not intersect the image")
	// ErrInvalidLabel is returned for values outside the four known labels.
	ErrInvalidLabel = errors.New("trimap: invalid label")
)

// Valid reports whether l is one of the four recognised labels.
func (l Label) Valid() bool { return l <= ProbableForeground }

// Definite reports whether the label is fixed during iteration.
func (l Label) Definite() bool { return l == DefiniteBackground || l == DefiniteForeground }

// Foreground reports whether the label belongs to the foreground side.
func (l Label) Foreground() bool { return l == DefiniteForeground || l == ProbableForeground }

func (l Label) String() string {
	switch l {
	case DefiniteBackground:
		return "background"
	case DefiniteForeground:
		return "foreground"
	case ProbableBackground:
		return "probable-background"
	case ProbableForeground:
		return "probable-foreground"
	default:
		return fmt.Sprintf("label(%d)", uint8(l))
	}
}

// Trimap is a row-major label grid.
type Trimap struct {
	Width  int
	Height int
	Labels []Label
}

// New returns a trimap filled with fill.
func New(width, height int, fill Label) *Trimap {
	t := &Trimap{Width: width, Height: height, Labels: make([]Label, width*height)}
	if fill != 0 {
		for i := range t.Labels {
			t.Labels[i] = fill
		}
	}
	return t
}

// FromRectangle labels every pixel inside rect (clipped to the image) as
// ProbableForeground and everything else as DefiniteBackground.
func FromRectangle(width, height int, rect image.Rectangle) (*Trimap, error) {
	if width <= 0 || height <= 0 {
		return nil, fmt.Errorf("%w: empty image %dx%d", ErrSizeMismatch, width, height)
	}
	r := rect.Canon().Intersect(image.Rect(0, 0, width, height))
	if r.Empty() {
		return nil, fmt.Errorf("%w: %v vs %dx%d", ErrInvalidRect, rect, width, height)
	}

	t := New(width, height, DefiniteBackground)
	for y := r.Min.Y; y < r.Max.Y; y++ {
		row := t.Labels[y*width : (y+1)*width]
		for x := r.Min.X; x < r.Max.X; x++ {
			row[x] = ProbableForeground
		}
	}
	return t, nil
}

// Validate checks that t matches the given size and only holds known labels.
func Validate(t *Trimap, width, height int) error {
	if t == nil {
		return fmt.Errorf("%w: nil mask", ErrSizeMismatch)
	}
	if t.Width != width || t.Height != height || len(t.Labels) != width*height {
		return fmt.Errorf("%w: mask %dx%d, image %dx%d", ErrSizeMismatch, t.Width, t.Height, width, height)
	}
	for i, l := range t.Labels {
		if !l.Valid() {
			return fmt.Errorf("%w: %d at (%d,%d)", ErrInvalidLabel, l, i%width, i/width)
		}
	}
	return nil
}

// Clone returns a deep copy.
func (t *Trimap) Clone() *Trimap {
	c := &Trimap{Width: t.Width, Height: t.Height, Labels: make([]Label, len(t.Labels))}
	copy(c.Labels, t.Labels)
	return c
}

// At returns the label at (x, y).
func (t *Trimap) At(x, y int) Label { return t.Labels[y*t.Width+x] }

// Set stores l at (x, y).
func (t *Trimap) Set(x, y int, l Label) { t.Labels[y*t.Width+x] = l }

// Count returns how many pixels carry l.
func (t *Trimap) Count(l Label) int {
	n := 0
	for _, v := range t.Labels {
		if v == l {
			n++
		}
	}
	return n
}

// ForegroundCount returns the number of definite or probable foreground pixels.
func (t *Trimap) ForegroundCount() int {
	return t.Count(DefiniteForeground) + t.Count(ProbableForeground)
}

// Collapse returns a copy where every Probable label is replaced by its
// Definite counterpart.
func (t *Trimap) Collapse() *Trimap {
	c := t.Clone()
	for i, l := range c.Labels {
		if l.Foreground() {
			c.Labels[i] = DefiniteForeground
		} else {
			c.Labels[i] = DefiniteBackground
		}
	}
	return c
}

// Equal reports whether both trimaps have the same size and labels.
func (t *Trimap) Equal(o *Trimap) bool {
	if t.Width != o.Width || t.Height != o.Height || len(t.Labels) != len(o.Labels) {
		return false
	}
	for i := range t.Labels {
		if t.Labels[i] != o.Labels[i] {
			return false
		}
	}
	return true
}

// Binary renders the trimap as a mask with 255 for foreground and 0 for
// background.
func (t *Trimap) Binary() *image.Gray {
	g := image.NewGray(image.Rect(0, 0, t.Width, t.Height))
	for i, l := range t.Labels {
		if l.Foreground() {
			g.Pix[i] = 255
		}
	}
	return g
}

// ToGray encodes the labels as grey levels 0..3.
func (t *Trimap) ToGray() *image.Gray {
	g := image.NewGray(image.Rect(0, 0, t.Width, t.Height))
	for i, l := range t.Labels {
		g.Pix[i] = uint8(l)
	}
	return g
}

// FromGray decodes a mask image. Grey levels 0..3 are taken as labels;
// any other value is rejected. Use FromBinary for 0/255 masks.
func FromGray(img image.Image) (*Trimap, error) {
	b := img.Bounds()
	t := New(b.Dx(), b.Dy(), DefiniteBackground)
	for y := range b.Dy() {
		for x := range b.Dx() {
			v := color.GrayModel.Convert(img.At(b.Min.X+x, b.Min.Y+y)).(color.Gray).Y
			l := Label(v)
			if !l.Valid() {
				return nil, fmt.Errorf("%w: grey level %d at (%d,%d)", ErrInvalidLabel, v, x, y)
			}
			t.Labels[y*t.Width+x] = l
		}
	}
	return t, nil
}

// FromBinary converts a black/white mask into a trimap: bright pixels
// (>= 128) become ProbableForeground, dark ones ProbableBackground.
func FromBinary(img image.Image) *Trimap {
	b := img.Bounds()
	t := New(b.Dx(), b.Dy(), ProbableBackground)
	for y := range b.Dy() {
		for x := range b.Dx() {
			v := color.GrayModel.Convert(img.At(b.Min.X+x, b.Min.Y+y)).(color.Gray).Y
			if v >= 128 {
				t.Labels[y*t.Width+x] = ProbableForeground
			}
		}
	}
	return t
}
