package gmm

import (
	"math"
	"testing"

	"github.com/MeKo-Tech/cutout/internal/rgb"
	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
)

// TestFit_WeightsSumToOne verifies the mixing weights are normalised after any fit.
func TestFit_WeightsSumToOne(t *testing.T) {
	properties := gopter.NewProperties(nil)

	properties.Property("weights sum to 1 after EndAccumulation", prop.ForAll(
		func(k int, values []uint8, assign []uint8) bool {
			m := New(k)
			m.BeginAccumulation()
			n := min(len(values)/3, len(assign))
			if n == 0 {
				return true
			}
			for i := range n {
				c := rgb.Color{float64(values[3*i]), float64(values[3*i+1]), float64(values[3*i+2])}
				m.Accumulate(c, int(assign[i])%k)
			}
			if err := m.EndAccumulation(); err != nil {
				return false
			}
			sum := 0.0
			for _, w := range m.Weights() {
				if w < 0 {
					return false
				}
				sum += w
			}
			return math.Abs(sum-1) <= 1e-6
		},
		gen.IntRange(1, 6),
		gen.SliceOfN(90, gen.UInt8()),
		gen.SliceOfN(30, gen.UInt8()),
	))

	properties.TestingRun(t)
}

// TestBestComponent_NeverStarved verifies an index never fed a sample is never chosen.
func TestBestComponent_NeverStarved(t *testing.T) {
	properties := gopter.NewProperties(nil)

	properties.Property("best component has positive weight", prop.ForAll(
		func(values []uint8, probe []uint8) bool {
			m := New(4)
			m.BeginAccumulation()
			// Components 1 and 3 never receive samples.
			for i := 0; i+2 < len(values); i += 3 {
				c := rgb.Color{float64(values[i]), float64(values[i+1]), float64(values[i+2])}
				m.Accumulate(c, (i/3%2)*2)
			}
			if err := m.EndAccumulation(); err != nil {
				return false
			}
			c := rgb.Color{float64(probe[0]), float64(probe[1]), float64(probe[2])}
			k := m.BestComponent(c)
			return k >= 0 && m.Component(k).Weight > 0 && k != 1 && k != 3
		},
		gen.SliceOfN(30, gen.UInt8()),
		gen.SliceOfN(3, gen.UInt8()),
	))

	properties.TestingRun(t)
}
