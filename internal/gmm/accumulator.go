package gmm

import "github.com/MeKo-Tech/cutout/internal/rgb"

// Accumulator holds the sufficient statistics (count, colour sum and
// colour outer-product sum) of every component between two fits. Parallel
// workers each fill their own Accumulator and Merge them afterwards.
type Accumulator struct {
	counts []float64
	sums   [][3]float64
	prods  [][3][3]float64
	total  float64
}

// NewAccumulator returns an empty accumulator for k components.
func NewAccumulator(k int) *Accumulator {
	return &Accumulator{
		counts: make([]float64, k),
		sums:   make([][3]float64, k),
		prods:  make([][3][3]float64, k),
	}
}

// K returns the number of components tracked.
func (a *Accumulator) K() int { return len(a.counts) }

// Reset clears all statistics.
func (a *Accumulator) Reset() {
	clear(a.counts)
	clear(a.sums)
	clear(a.prods)
	a.total = 0
}

// Add records one sample for component k. Out-of-range indices are ignored.
func (a *Accumulator) Add(c rgb.Color, k int) {
	if k < 0 || k >= len(a.counts) {
		return
	}
	a.counts[k]++
	a.total++
	s := &a.sums[k]
	p := &a.prods[k]
	for i := range 3 {
		s[i] += c[i]
		for j := range 3 {
			p[i][j] += c[i] * c[j]
		}
	}
}

// Merge folds o into a. Both must track the same number of components.
func (a *Accumulator) Merge(o *Accumulator) {
	if o == nil {
		return
	}
	for k := range min(len(a.counts), len(o.counts)) {
		a.counts[k] += o.counts[k]
		for i := range 3 {
			a.sums[k][i] += o.sums[k][i]
			for j := range 3 {
				a.prods[k][i][j] += o.prods[k][i][j]
			}
		}
	}
	a.total += o.total
}

// Count returns the number of samples recorded for component k.
func (a *Accumulator) Count(k int) float64 { return a.counts[k] }

// Total returns the number of samples recorded across all components.
func (a *Accumulator) Total() float64 { return a.total }
