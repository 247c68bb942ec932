// Package maxflow defines the flow network handed to a min-cut solver and
// ships two exact solvers: Boykov-Kolmogorov, tuned for grid graphs, and
// Dinic. Nodes are dense integer indices; the source and sink terminals are
// implicit.
package maxflow

import (
	"context"
	"errors"
	"fmt"
	"math"

	"github.com/MeKo-Tech/cutout/internal/mempool"
)

// ErrInfeasible is returned for networks a solver cannot cut, such as ones
// holding NaN, infinite or negative capacities.
var ErrInfeasible = errors.New("maxflow: infeasible network")

// Side tells which terminal a node is attached to after the cut.
type Side uint8

const (
	SinkSide Side = iota
	SourceSide
)

// Edge is an undirected link between two nodes.
type Edge struct {
	U, V int32
	Cap  float64
}

// Network is a flow network with one source and one sink capacity per node.
// Terminal capacities may be any finite values: only their per-node
// difference affects which cut is minimal, the shared part is a constant
// that solvers add to the reported cut value.
type Network struct {
	Source []float64
	Sink   []float64
	Edges  []Edge
}

// NewNetwork allocates a network for nodes nodes and reserves room for
// edgeHint edges. The terminal arrays come from a pool; Release hands them
// back once the network is no longer used.
func NewNetwork(nodes, edgeHint int) *Network {
	return &Network{
		Source: mempool.GetFloat64(nodes),
		Sink:   mempool.GetFloat64(nodes),
		Edges:  make([]Edge, 0, edgeHint),
	}
}

// Release returns the terminal arrays to the pool. The network must not be
// used afterwards.
func (n *Network) Release() {
	mempool.PutFloat64(n.Source)
	mempool.PutFloat64(n.Sink)
	n.Source, n.Sink, n.Edges = nil, nil, nil
}

// Nodes returns the number of non-terminal nodes.
func (n *Network) Nodes() int { return len(n.Source) }

// SetTerminals sets the capacities between node i and the two terminals.
func (n *Network) SetTerminals(i int, source, sink float64) {
	n.Source[i] = source
	n.Sink[i] = sink
}

// AddEdge adds an undirected edge of capacity c between u and v.
func (n *Network) AddEdge(u, v int, c float64) {
	n.Edges = append(n.Edges, Edge{U: int32(u), V: int32(v), Cap: c}) //nolint:gosec // G115: node indices fit the image size
}

// Validate checks the network is well formed.
func (n *Network) Validate() error {
	if len(n.Source) != len(n.Sink) {
		return fmt.Errorf("%w: %d source and %d sink capacities", ErrInfeasible, len(n.Source), len(n.Sink))
	}
	for i := range n.Source {
		if !finite(n.Source[i]) || !finite(n.Sink[i]) {
			return fmt.Errorf("%w: non-finite terminal capacity at node %d", ErrInfeasible, i)
		}
	}
	nodes := int32(len(n.Source)) //nolint:gosec // G115: bounded by image size
	for i, e := range n.Edges {
		if e.U < 0 || e.V < 0 || e.U >= nodes || e.V >= nodes || e.U == e.V {
			return fmt.Errorf("%w: edge %d joins %d and %d", ErrInfeasible, i, e.U, e.V)
		}
		if !finite(e.Cap) || e.Cap < 0 {
			return fmt.Errorf("%w: edge %d has capacity %v", ErrInfeasible, i, e.Cap)
		}
	}
	return nil
}

// CutCost returns the cost of the partition described by sides: a node on
// the source side pays its sink capacity, a node on the sink side pays its
// source capacity, and every edge joining the two sides pays its capacity.
func (n *Network) CutCost(sides []Side) float64 {
	cost := 0.0
	for i, s := range sides {
		if s == SourceSide {
			cost += n.Sink[i]
		} else {
			cost += n.Source[i]
		}
	}
	for _, e := range n.Edges {
		if sides[e.U] != sides[e.V] {
			cost += e.Cap
		}
	}
	return cost
}

// terminalConstant returns the part of the terminal capacities every cut
// pays regardless of the partition.
func (n *Network) terminalConstant() float64 {
	c := 0.0
	for i := range n.Source {
		c += math.Min(n.Source[i], n.Sink[i])
	}
	return c
}

func finite(v float64) bool { return !math.IsNaN(v) && !math.IsInf(v, 0) }

// Cut is the result of a min-cut solve.
type Cut struct {
	Sides []Side
	// Flow is the maximum flow plus the terminal constant.
	Flow float64
	// Value is the cost of Sides, equal to Flow for an exact solver.
	Value float64
}

// InSource reports whether node i ended on the source side.
func (c *Cut) InSource(i int) bool { return c.Sides[i] == SourceSide }

// Solver computes a global minimum s-t cut.
type Solver interface {
	Name() string
	Solve(ctx context.Context, n *Network) (*Cut, error)
}

// ByName returns the solver registered under name ("bk" or "dinic").
func ByName(name string) (Solver, error) {
	switch name {
	case "", "bk", "boykov-kolmogorov":
		return NewBoykovKolmogorov(), nil
	case "dinic":
		return NewDinic(), nil
	default:
		return nil, fmt.Errorf("unknown max-flow solver %q (must be one of: bk, dinic)", name)
	}
}
