package pairwise

import (
	"context"
	"math"
	"testing"

	"github.com/MeKo-Tech/cutout/internal/rgb"
	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func checker(w, h int, a, b rgb.Color) *rgb.Image {
	img := rgb.New(w, h)
	for y := range h {
		for x := range w {
			if (x+y)%2 == 0 {
				img.Set(x, y, a)
			} else {
				img.Set(x, y, b)
			}
		}
	}
	return img
}

func TestPairCount(t *testing.T) {
	assert.Equal(t, 0, PairCount(1, 1))
	assert.Equal(t, 1, PairCount(2, 1))
	assert.Equal(t, 6, PairCount(2, 2))
	assert.Equal(t, 42, PairCount(4, 4))
	assert.Equal(t, 0, PairCount(0, 3))
}

func TestBeta_Checkerboard(t *testing.T) {
	// 2x2 checkerboard: horizontal and vertical pairs differ (4 pairs with
	// |d|^2 = 3*100^2), diagonals match (2 pairs with 0).
	img := checker(2, 2, rgb.Color{0, 0, 0}, rgb.Color{100, 100, 100})
	mean := 4 * 30000.0 / 6
	assert.InDelta(t, 1/(2*mean), Beta(img), 1e-15)
}

func TestBeta_Uniform(t *testing.T) {
	img := checker(5, 4, rgb.Color{7, 7, 7}, rgb.Color{7, 7, 7})
	assert.Equal(t, 0.0, Beta(img))
	assert.Equal(t, 0.0, Beta(rgb.New(1, 1)))
}

func TestBeta_ContrastScaling(t *testing.T) {
	properties := gopter.NewProperties(nil)

	properties.Property("doubling colour distances quarters beta", prop.ForAll(
		func(values []uint8) bool {
			img := rgb.New(4, 3)
			scaled := rgb.New(4, 3)
			for i := range img.Pix {
				c := rgb.Color{float64(values[3*i] / 2), float64(values[3*i+1] / 2), float64(values[3*i+2] / 2)}
				img.Pix[i] = c
				scaled.Pix[i] = rgb.Color{2 * c[0], 2 * c[1], 2 * c[2]}
			}
			b := Beta(img)
			if b == 0 {
				return Beta(scaled) == 0
			}
			return b > 0 && math.Abs(Beta(scaled)*4-b) <= 1e-12*b
		},
		gen.SliceOfN(36, gen.UInt8()),
	))

	properties.TestingRun(t)
}

func TestCompute_Values(t *testing.T) {
	img := checker(3, 3, rgb.Color{0, 0, 0}, rgb.Color{10, 0, 0})
	beta := 0.01
	gamma := 50.0
	wt, err := Compute(context.Background(), img, beta, gamma, 2)
	require.NoError(t, err)

	diff := gamma * math.Exp(-beta*100)
	same := gamma / math.Sqrt2

	// Centre pixel (1,1).
	i := 1*3 + 1
	assert.InDelta(t, diff, wt.Left[i], 1e-12)
	assert.InDelta(t, diff, wt.Up[i], 1e-12)
	assert.InDelta(t, same, wt.UpLeft[i], 1e-12)
	assert.InDelta(t, same, wt.UpRight[i], 1e-12)
	assert.InDelta(t, 4*diff+4*same, wt.Incident[i], 1e-9)

	// Borders have no wraparound.
	assert.Equal(t, 0.0, wt.Left[3])
	assert.Equal(t, 0.0, wt.UpLeft[3])
	assert.Equal(t, 0.0, wt.Up[1])
	assert.Equal(t, 0.0, wt.UpRight[5])

	// Corner (0,0): right, down and down-right neighbours.
	assert.InDelta(t, 2*diff+same, wt.Incident[0], 1e-9)
	assert.Equal(t, PairCount(3, 3), wt.Len())
}

func TestCompute_IncidentMatchesPairs(t *testing.T) {
	img := rgb.New(5, 4)
	for i := range img.Pix {
		img.Pix[i] = rgb.Color{float64(i * 13 % 255), float64(i * 7 % 255), float64(i * 29 % 255)}
	}
	beta := Beta(img)
	require.Greater(t, beta, 0.0)

	wt, err := Compute(context.Background(), img, beta, DefaultGamma, 3)
	require.NoError(t, err)

	incident := make([]float64, img.Len())
	wt.Each(func(p Pair) {
		incident[p.A] += p.Weight
		incident[p.B] += p.Weight
	})
	for i := range incident {
		assert.InDelta(t, incident[i], wt.Incident[i], 1e-9)
	}
}

func TestCompute_WorkerCountDoesNotMatter(t *testing.T) {
	img := rgb.New(7, 9)
	for i := range img.Pix {
		img.Pix[i] = rgb.Color{float64(i % 17 * 15), float64(i % 5 * 40), 3}
	}
	beta := Beta(img)
	a, err := Compute(context.Background(), img, beta, DefaultGamma, 1)
	require.NoError(t, err)
	b, err := Compute(context.Background(), img, beta, DefaultGamma, 4)
	require.NoError(t, err)
	assert.Equal(t, a, b)
}

func TestCompute_UniformImageUsesFullGamma(t *testing.T) {
	img := checker(3, 2, rgb.Color{1, 2, 3}, rgb.Color{1, 2, 3})
	wt, err := Compute(context.Background(), img, Beta(img), DefaultGamma, 0)
	require.NoError(t, err)
	assert.InDelta(t, DefaultGamma, wt.Left[1], 1e-12)
	assert.InDelta(t, DefaultGamma/math.Sqrt2, wt.UpRight[3], 1e-12)
}
