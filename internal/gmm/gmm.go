// Package gmm implements the Gaussian mixture colour model shared by the
// foreground and background classes.
package gmm

import (
	"errors"
	"fmt"
	"math"

	"github.com/MeKo-Tech/cutout/internal/kmeans"
	"github.com/MeKo-Tech/cutout/internal/rgb"
	"gonum.org/v1/gonum/mat"
)

const (
	// DefaultComponents is the number of Gaussians per model.
	DefaultComponents = 5

	// DefaultMinSamples is the count below which a component is not refitted.
	DefaultMinSamples = 1

	// regularization is added to the covariance diagonal when the
	// determinant is not positive.
	regularization = 0.01
)

// logNorm is log((2*pi)^(3/2)).
var logNorm = 1.5 * math.Log(2*math.Pi)

// ErrDegenerate is returned when a model has no usable component left.
var ErrDegenerate = errors.New("gmm: degenerate model")

// Component is one Gaussian of a mixture.
type Component struct {
	Weight float64
	Mean   rgb.Color
	Cov    [3][3]float64

	inv    [3][3]float64
	det    float64
	fitted bool
}

// Det returns the cached covariance determinant.
func (c *Component) Det() float64 { return c.det }

// Fitted reports whether the component has ever received parameters.
func (c *Component) Fitted() bool { return c.fitted }

// usable reports whether the component can produce a non-zero density.
func (c *Component) usable() bool { return c.fitted && c.Weight > 0 && c.det > 0 }

// Model is a mixture of K Gaussians over RGB colour.
type Model struct {
	// MinSamples is the accumulated count a component needs to be refitted.
	MinSamples float64

	comps []Component
	acc   *Accumulator
}

// New returns an unfitted model with k components.
func New(k int) *Model {
	if k <= 0 {
		k = DefaultComponents
	}
	return &Model{
		MinSamples: DefaultMinSamples,
		comps:      make([]Component, k),
	}
}

// K returns the number of components.
func (m *Model) K() int { return len(m.comps) }

// Component returns a copy of component k.
func (m *Model) Component(k int) Component { return m.comps[k] }

// Weights returns the mixing weights.
func (m *Model) Weights() []float64 {
	w := make([]float64, len(m.comps))
	for k := range m.comps {
		w[k] = m.comps[k].Weight
	}
	return w
}

// Fitted reports whether at least one component is usable.
func (m *Model) Fitted() bool {
	for k := range m.comps {
		if m.comps[k].usable() {
			return true
		}
	}
	return false
}

// Clone returns a deep copy of the model without any pending accumulation.
func (m *Model) Clone() *Model {
	c := &Model{MinSamples: m.MinSamples, comps: make([]Component, len(m.comps))}
	copy(c.comps, m.comps)
	return c
}

// ComponentDensity returns the density of c under component k, or 0 when the
// component is degenerate.
func (m *Model) ComponentDensity(c rgb.Color, k int) float64 {
	comp := &m.comps[k]
	if !comp.fitted || comp.det <= 0 {
		return 0
	}
	return math.Exp(logGaussian(comp, c))
}

// Density returns the mixture density of c.
func (m *Model) Density(c rgb.Color) float64 {
	sum := 0.0
	for k := range m.comps {
		if w := m.comps[k].Weight; w > 0 {
			sum += w * m.ComponentDensity(c, k)
		}
	}
	return sum
}

// BestComponent returns the index maximising weight*density for c, compared
// in log space so distant colours do not all underflow to zero. Components
// with zero weight are never returned. Ties resolve to the lowest index.
// It returns -1 when the model has no usable component.
func (m *Model) BestComponent(c rgb.Color) int {
	best := -1
	bestScore := math.Inf(-1)
	for k := range m.comps {
		comp := &m.comps[k]
		if !comp.usable() {
			continue
		}
		score := math.Log(comp.Weight) + logGaussian(comp, c)
		if best < 0 || score > bestScore {
			best = k
			bestScore = score
		}
	}
	return best
}

func logGaussian(comp *Component, c rgb.Color) float64 {
	d := c.Sub(comp.Mean)
	maha := 0.0
	for i := range 3 {
		row := 0.0
		for j := range 3 {
			row += comp.inv[i][j] * d[j]
		}
		maha += d[i] * row
	}
	return -0.5*maha - 0.5*math.Log(comp.det) - logNorm
}

// BeginAccumulation resets the model's internal accumulator.
func (m *Model) BeginAccumulation() {
	if m.acc == nil || m.acc.K() != len(m.comps) {
		m.acc = NewAccumulator(len(m.comps))
		return
	}
	m.acc.Reset()
}

// Accumulate adds one sample to component k's running sums.
func (m *Model) Accumulate(c rgb.Color, k int) {
	if m.acc == nil {
		m.BeginAccumulation()
	}
	m.acc.Add(c, k)
}

// EndAccumulation refits the model from the internal accumulator.
func (m *Model) EndAccumulation() error {
	if m.acc == nil {
		m.BeginAccumulation()
	}
	return m.Fit(m.acc)
}

// Fit recomputes mean, covariance and weight of every component from acc.
// A component with fewer than MinSamples samples keeps its previous mean and
// covariance. Weights are proportional to the sample counts of components
// that hold parameters and always sum to 1. If acc is empty, or no component
// holds parameters afterwards, the model is left unchanged and ErrDegenerate
// is returned.
func (m *Model) Fit(acc *Accumulator) error {
	if acc == nil || acc.K() != len(m.comps) {
		return fmt.Errorf("gmm: accumulator tracks %d components, model has %d", accK(acc), len(m.comps))
	}
	if acc.Total() <= 0 {
		return fmt.Errorf("%w: no samples accumulated", ErrDegenerate)
	}

	next := make([]Component, len(m.comps))
	copy(next, m.comps)

	raw := make([]float64, len(next))
	sum := 0.0
	for k := range next {
		n := acc.counts[k]
		if n >= m.MinSamples && n > 0 {
			fitComponent(&next[k], acc.sums[k], acc.prods[k], n)
		}
		if next[k].fitted && next[k].det > 0 {
			raw[k] = n
			sum += n
		}
	}
	if sum <= 0 {
		return fmt.Errorf("%w: no component received enough samples", ErrDegenerate)
	}

	for k := range next {
		next[k].Weight = raw[k] / sum
	}
	m.comps = next
	return nil
}

func accK(a *Accumulator) int {
	if a == nil {
		return 0
	}
	return a.K()
}

func fitComponent(c *Component, sum [3]float64, prod [3][3]float64, n float64) {
	var mean rgb.Color
	for i := range 3 {
		mean[i] = sum[i] / n
	}

	var cov [3][3]float64
	for i := range 3 {
		for j := range 3 {
			cov[i][j] = prod[i][j]/n - mean[i]*mean[j]
		}
	}

	sym := mat.NewSymDense(3, []float64{
		cov[0][0], cov[0][1], cov[0][2],
		cov[0][1], cov[1][1], cov[1][2],
		cov[0][2], cov[1][2], cov[2][2],
	})
	det := mat.Det(sym)
	if det <= 1e-12 {
		for i := range 3 {
			cov[i][i] += regularization
			sym.SetSym(i, i, cov[i][i])
		}
		det = mat.Det(sym)
	}
	if det <= 0 {
		return
	}

	var inv mat.Dense
	if err := inv.Inverse(sym); err != nil {
		var cond mat.Condition
		if !errors.As(err, &cond) {
			return
		}
	}

	c.Mean = mean
	c.Cov = cov
	c.det = det
	for i := range 3 {
		for j := range 3 {
			c.inv[i][j] = inv.At(i, j)
		}
	}
	c.fitted = true
}

// InitFromSamples seeds the model by k-means clustering of samples followed by
// one fit that uses cluster membership as the component assignment.
func (m *Model) InitFromSamples(samples []rgb.Color, cfg kmeans.Config) error {
	cfg.K = len(m.comps)
	res, err := kmeans.Cluster(samples, cfg)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrDegenerate, err)
	}
	if res.NonEmpty() == 0 {
		return fmt.Errorf("%w: k-means produced no usable cluster", ErrDegenerate)
	}

	m.comps = make([]Component, len(m.comps))
	m.BeginAccumulation()
	for i, s := range samples {
		m.Accumulate(s, res.Labels[i])
	}
	return m.EndAccumulation()
}
