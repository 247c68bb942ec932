package rgb

import (
	"image"
	"image/color"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFromImage_RGBA(t *testing.T) {
	src := image.NewRGBA(image.Rect(0, 0, 3, 2))
	src.Set(0, 0, color.RGBA{R: 10, G: 20, B: 30, A: 255})
	src.Set(2, 1, color.RGBA{R: 200, G: 100, B: 50, A: 255})

	img, err := FromImage(src)
	require.NoError(t, err)
	assert.Equal(t, 3, img.Width)
	assert.Equal(t, 2, img.Height)
	assert.Equal(t, Color{10, 20, 30}, img.At(0, 0))
	assert.Equal(t, Color{200, 100, 50}, img.At(2, 1))
	assert.Equal(t, Color{0, 0, 0}, img.At(1, 0))
}

func TestFromImage_OffsetBounds(t *testing.T) {
	src := image.NewGray(image.Rect(5, 5, 7, 6))
	src.SetGray(6, 5, color.Gray{Y: 77})

	img, err := FromImage(src)
	require.NoError(t, err)
	assert.Equal(t, 2, img.Width)
	assert.Equal(t, 1, img.Height)
	assert.Equal(t, Color{77, 77, 77}, img.At(1, 0))
}

func TestFromImage_Empty(t *testing.T) {
	_, err := FromImage(nil)
	require.ErrorIs(t, err, ErrEmptyImage)

	_, err = FromImage(image.NewRGBA(image.Rect(0, 0, 0, 4)))
	require.ErrorIs(t, err, ErrEmptyImage)
}

func TestColorMath(t *testing.T) {
	a := Color{1, 2, 3}
	b := Color{4, 6, 3}
	assert.Equal(t, Color{-3, -4, 0}, a.Sub(b))
	assert.InDelta(t, 25.0, a.DistSq(b), 1e-12)
	assert.InDelta(t, 4+12+9.0, a.Dot(b), 1e-12)
}

func TestToNRGBA_RoundTrip(t *testing.T) {
	img := New(2, 2)
	img.Set(1, 1, Color{300, -5, 127.6})
	out := img.ToNRGBA()
	assert.Equal(t, color.NRGBA{R: 255, G: 0, B: 128, A: 255}, out.NRGBAAt(1, 1))
	assert.Equal(t, color.NRGBA{A: 255}, out.NRGBAAt(0, 0))
}
