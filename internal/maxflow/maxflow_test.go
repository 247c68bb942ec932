package maxflow

import (
	"context"
	"math"
	"reflect"
	"testing"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func solvers() []Solver {
	return []Solver{NewBoykovKolmogorov(), NewDinic()}
}

// bruteForce enumerates every partition and returns the cheapest cost.
func bruteForce(n *Network) float64 {
	best := math.Inf(1)
	sides := make([]Side, n.Nodes())
	for mask := 0; mask < 1<<n.Nodes(); mask++ {
		for i := range sides {
			sides[i] = Side((mask >> i) & 1)
		}
		best = math.Min(best, n.CutCost(sides))
	}
	return best
}

func TestSolve_SingleNode(t *testing.T) {
	for _, s := range solvers() {
		t.Run(s.Name(), func(t *testing.T) {
			n := NewNetwork(1, 0)
			n.SetTerminals(0, 3, 1)
			cut, err := s.Solve(context.Background(), n)
			require.NoError(t, err)
			// Cheaper to keep the node with the source and cut its sink link.
			assert.Equal(t, SourceSide, cut.Sides[0])
			assert.InDelta(t, 1.0, cut.Value, 1e-12)
			assert.InDelta(t, 1.0, cut.Flow, 1e-12)
		})
	}
}

func TestSolve_Chain(t *testing.T) {
	// source -5-> 0 -2- 1 -4- 2 -5-> sink
	for _, s := range solvers() {
		t.Run(s.Name(), func(t *testing.T) {
			n := NewNetwork(3, 2)
			n.SetTerminals(0, 5, 0)
			n.SetTerminals(2, 0, 5)
			n.AddEdge(0, 1, 2)
			n.AddEdge(1, 2, 4)
			cut, err := s.Solve(context.Background(), n)
			require.NoError(t, err)
			assert.InDelta(t, 2.0, cut.Value, 1e-12)
			assert.Equal(t, []Side{SourceSide, SinkSide, SinkSide}, cut.Sides)
		})
	}
}

func TestSolve_NegativeTerminals(t *testing.T) {
	for _, s := range solvers() {
		t.Run(s.Name(), func(t *testing.T) {
			n := NewNetwork(2, 1)
			n.SetTerminals(0, -1, -4)
			n.SetTerminals(1, -3, 2)
			n.AddEdge(0, 1, 0.5)
			cut, err := s.Solve(context.Background(), n)
			require.NoError(t, err)
			assert.InDelta(t, bruteForce(n), cut.Value, 1e-9)
			assert.InDelta(t, cut.Value, cut.Flow, 1e-9)
		})
	}
}

func TestSolve_NoEdges(t *testing.T) {
	for _, s := range solvers() {
		t.Run(s.Name(), func(t *testing.T) {
			n := NewNetwork(4, 0)
			n.SetTerminals(0, 1, 2)
			n.SetTerminals(1, 2, 1)
			n.SetTerminals(2, 0, 0)
			n.SetTerminals(3, 7, 7)
			cut, err := s.Solve(context.Background(), n)
			require.NoError(t, err)
			assert.Equal(t, []Side{SinkSide, SourceSide, SinkSide, SinkSide}, cut.Sides)
			assert.InDelta(t, 1+1+0+7, cut.Value, 1e-12)
		})
	}
}

func TestSolve_EmptyNetwork(t *testing.T) {
	for _, s := range solvers() {
		t.Run(s.Name(), func(t *testing.T) {
			cut, err := s.Solve(context.Background(), NewNetwork(0, 0))
			require.NoError(t, err)
			assert.Empty(t, cut.Sides)
			assert.Zero(t, cut.Value)
		})
	}
}

func TestSolve_Invalid(t *testing.T) {
	tests := []struct {
		name  string
		build func() *Network
	}{
		{"NaN terminal", func() *Network {
			n := NewNetwork(1, 0)
			n.SetTerminals(0, math.NaN(), 0)
			return n
		}},
		{"infinite terminal", func() *Network {
			n := NewNetwork(1, 0)
			n.SetTerminals(0, 0, math.Inf(1))
			return n
		}},
		{"negative edge", func() *Network {
			n := NewNetwork(2, 1)
			n.AddEdge(0, 1, -1)
			return n
		}},
		{"self loop", func() *Network {
			n := NewNetwork(2, 1)
			n.AddEdge(1, 1, 1)
			return n
		}},
		{"edge out of range", func() *Network {
			n := NewNetwork(2, 1)
			n.AddEdge(0, 2, 1)
			return n
		}},
		{"mismatched terminals", func() *Network {
			return &Network{Source: make([]float64, 2), Sink: make([]float64, 1)}
		}},
	}
	for _, s := range solvers() {
		for _, tt := range tests {
			t.Run(s.Name()+"/"+tt.name, func(t *testing.T) {
				_, err := s.Solve(context.Background(), tt.build())
				require.ErrorIs(t, err, ErrInfeasible)
			})
		}
	}
}

func TestSolve_Cancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	n := NewNetwork(2, 1)
	n.SetTerminals(0, 1, 0)
	n.SetTerminals(1, 0, 1)
	n.AddEdge(0, 1, 1)
	for _, s := range solvers() {
		t.Run(s.Name(), func(t *testing.T) {
			_, err := s.Solve(ctx, n)
			require.ErrorIs(t, err, context.Canceled)
		})
	}
}

func TestSolve_Grid(t *testing.T) {
	// A 20x20 grid with a bright square: both solvers must agree.
	const w, h = 20, 20
	n := NewNetwork(w*h, 2*w*h)
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			i := y*w + x
			inside := x >= 5 && x < 15 && y >= 5 && y < 15
			if inside {
				n.SetTerminals(i, 4, 1)
			} else {
				n.SetTerminals(i, 1, 4)
			}
			if x > 0 {
				n.AddEdge(i, i-1, 0.5)
			}
			if y > 0 {
				n.AddEdge(i, i-w, 0.5)
			}
		}
	}
	bk, err := NewBoykovKolmogorov().Solve(context.Background(), n)
	require.NoError(t, err)
	di, err := NewDinic().Solve(context.Background(), n)
	require.NoError(t, err)

	assert.InDelta(t, di.Value, bk.Value, 1e-9)
	assert.Equal(t, di.Sides, bk.Sides)
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			inside := x >= 5 && x < 15 && y >= 5 && y < 15
			assert.Equal(t, inside, bk.InSource(y*w+x), "pixel (%d,%d)", x, y)
		}
	}
}

func TestByName(t *testing.T) {
	s, err := ByName("")
	require.NoError(t, err)
	assert.Equal(t, "bk", s.Name())

	s, err = ByName("dinic")
	require.NoError(t, err)
	assert.Equal(t, "dinic", s.Name())

	_, err = ByName("push-relabel")
	require.Error(t, err)
}

type randomNetwork struct {
	nodes     int
	terminals []int
	edges     []int
}

func (r randomNetwork) build() *Network {
	n := NewNetwork(r.nodes, len(r.edges))
	for i := 0; i < r.nodes; i++ {
		// Small integers keep the flow exact in floating point.
		n.SetTerminals(i, float64(r.terminals[2*i]-3), float64(r.terminals[2*i+1]-3))
	}
	k := 0
	for u := 0; u < r.nodes; u++ {
		for v := u + 1; v < r.nodes; v++ {
			if c := r.edges[k%len(r.edges)]; c > 0 {
				n.AddEdge(u, v, float64(c))
			}
			k++
		}
	}
	return n
}

func TestSolve_MatchesBruteForce_Property(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 200
	properties := gopter.NewProperties(parameters)

	genNetwork := gen.IntRange(1, 7).FlatMap(func(v interface{}) gopter.Gen {
		nodes := v.(int)
		return gopter.CombineGens(
			gen.SliceOfN(2*nodes, gen.IntRange(0, 9)),
			gen.SliceOfN(nodes*nodes+1, gen.IntRange(0, 4)),
		).Map(func(vals []interface{}) randomNetwork {
			return randomNetwork{
				nodes:     nodes,
				terminals: vals[0].([]int),
				edges:     vals[1].([]int),
			}
		})
	}, reflect.TypeOf(randomNetwork{}))

	for _, s := range solvers() {
		properties.Property(s.Name()+" finds the minimum cut", prop.ForAll(
			func(r randomNetwork) bool {
				n := r.build()
				cut, err := s.Solve(context.Background(), n)
				if err != nil {
					return false
				}
				want := bruteForce(n)
				return math.Abs(cut.Value-want) < 1e-9 && math.Abs(cut.Flow-want) < 1e-9
			},
			genNetwork,
		))
	}

	properties.TestingRun(t)
}

func TestNetwork_ReleaseReusesZeroedTerminals(t *testing.T) {
	n := NewNetwork(2000, 0)
	for i := range n.Nodes() {
		n.SetTerminals(i, 3, 4)
	}
	n.Release()
	assert.Nil(t, n.Source)
	assert.Zero(t, n.Nodes())

	m := NewNetwork(2000, 0)
	defer m.Release()
	for i := range m.Nodes() {
		require.Zero(t, m.Source[i])
		require.Zero(t, m.Sink[i])
	}
}
