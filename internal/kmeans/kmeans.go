// Package kmeans implements Lloyd's k-means clustering over RGB samples with
// k-means++ seeding. It is used to bootstrap the colour mixture models.
package kmeans

import (
	"errors"
	"fmt"
	"math"
	"math/rand/v2"

	"github.com/MeKo-Tech/cutout/internal/rgb"
	"gonum.org/v1/gonum/floats"
)

var (
	// ErrNoSamples is returned when clustering is asked to run on an empty set.
	ErrNoSamples = errors.New("kmeans: no samples")
	// ErrInvalidK is returned for a non-positive cluster count.
	ErrInvalidK = errors.New("kmeans: cluster count must be positive")
)

// Config controls a clustering run.
type Config struct {
	K             int     // Number of clusters
	MaxIterations int     // Lloyd iteration cap per attempt
	Attempts      int     // Independent seedings; the most compact result wins
	Epsilon       float64 // Stop when no centre moves further than this (0 = only on stable assignment)
	Seed          uint64  // Random seed for k-means++ seeding
}

// DefaultConfig mirrors the settings used for mixture initialisation.
func DefaultConfig() Config {
	return Config{
		K:             5,
		MaxIterations: 10,
		Attempts:      1,
		Epsilon:       0,
		Seed:          1,
	}
}

// Result is the outcome of a clustering run.
type Result struct {
	Centers     []rgb.Color
	Labels      []int // Cluster index per sample
	Counts      []int // Samples per cluster; a zero entry marks an empty cluster
	Compactness float64
	Iterations  int
	Converged   bool
}

// NonEmpty returns the number of clusters that received at least one sample.
func (r *Result) NonEmpty() int {
	n := 0
	for _, c := range r.Counts {
		if c > 0 {
			n++
		}
	}
	return n
}

// Cluster partitions samples into cfg.K clusters.
func Cluster(samples []rgb.Color, cfg Config) (*Result, error) {
	if cfg.K <= 0 {
		return nil, fmt.Errorf("%w: %d", ErrInvalidK, cfg.K)
	}
	if len(samples) == 0 {
		return nil, ErrNoSamples
	}
	if cfg.MaxIterations <= 0 {
		cfg.MaxIterations = DefaultConfig().MaxIterations
	}
	if cfg.Attempts <= 0 {
		cfg.Attempts = 1
	}

	rng := rand.New(rand.NewPCG(cfg.Seed, cfg.Seed^0x9e3779b97f4a7c15))

	var best *Result
	for range cfg.Attempts {
		res := lloyd(samples, cfg, rng)
		if best == nil || res.Compactness < best.Compactness {
			best = res
		}
	}
	return best, nil
}

func lloyd(samples []rgb.Color, cfg Config, rng *rand.Rand) *Result {
	centers := seedPlusPlus(samples, cfg.K, rng)
	labels := make([]int, len(samples))
	for i := range labels {
		labels[i] = -1
	}

	res := &Result{Centers: centers, Labels: labels, Counts: make([]int, cfg.K)}
	for iter := range cfg.MaxIterations {
		res.Iterations = iter + 1

		changed := 0
		for i, s := range samples {
			k := Nearest(s, centers)
			if labels[i] != k {
				labels[i] = k
				changed++
			}
		}

		shift := recenter(samples, labels, centers, res.Counts)
		if changed == 0 || (cfg.Epsilon > 0 && shift <= cfg.Epsilon) {
			res.Converged = true
			break
		}
	}

	// Final assignment so Labels and Centers agree.
	for i, s := range samples {
		labels[i] = Nearest(s, centers)
	}
	recenter(samples, labels, centers, res.Counts)

	for i, s := range samples {
		res.Compactness += s.DistSq(centers[labels[i]])
	}
	return res
}

// recenter moves every non-empty centre to the mean of its members and
// returns the largest centre displacement. Empty clusters keep their centre.
func recenter(samples []rgb.Color, labels []int, centers []rgb.Color, counts []int) float64 {
	sums := make([][]float64, len(centers))
	for k := range sums {
		sums[k] = make([]float64, 3)
		counts[k] = 0
	}
	for i, s := range samples {
		k := labels[i]
		floats.Add(sums[k], s[:])
		counts[k]++
	}

	maxShift := 0.0
	for k, sum := range sums {
		if counts[k] == 0 {
			continue
		}
		floats.Scale(1/float64(counts[k]), sum)
		next := rgb.Color{sum[0], sum[1], sum[2]}
		maxShift = math.Max(maxShift, math.Sqrt(next.DistSq(centers[k])))
		centers[k] = next
	}
	return maxShift
}

// seedPlusPlus picks k initial centres with probability proportional to the
// squared distance to the closest centre already chosen. When every sample
// coincides with a chosen centre the remaining centres duplicate the first
// one; those clusters stay empty because ties resolve to the lowest index.
func seedPlusPlus(samples []rgb.Color, k int, rng *rand.Rand) []rgb.Color {
	centers := make([]rgb.Color, 0, k)
	centers = append(centers, samples[rng.IntN(len(samples))])

	dist := make([]float64, len(samples))
	for i, s := range samples {
		dist[i] = s.DistSq(centers[0])
	}

	for len(centers) < k {
		total := floats.Sum(dist)
		if total == 0 {
			centers = append(centers, centers[0])
			continue
		}

		target := rng.Float64() * total
		pick := len(samples) - 1
		acc := 0.0
		for i, d := range dist {
			acc += d
			if acc >= target && d > 0 {
				pick = i
				break
			}
		}

		c := samples[pick]
		centers = append(centers, c)
		for i, s := range samples {
			if d := s.DistSq(c); d < dist[i] {
				dist[i] = d
			}
		}
	}
	return centers
}

// Nearest returns the index of the centre closest to c, lowest index on ties.
func Nearest(c rgb.Color, centers []rgb.Color) int {
	best := 0
	bestDist := math.Inf(1)
	for k, ctr := range centers {
		if d := c.DistSq(ctr); d < bestDist {
			bestDist = d
			best = k
		}
	}
	return best
}
