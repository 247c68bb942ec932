package maxflow

import (
	"context"
	"math"
)

// dinicEpsilon is the residual capacity below which an arc counts as saturated.
const dinicEpsilon = 1e-12

// Dinic is the blocking-flow solver of Dinic. It is simpler than
// Boykov-Kolmogorov and serves as a cross-check and a fallback.
type Dinic struct{}

// NewDinic returns the Dinic solver.
func NewDinic() *Dinic { return &Dinic{} }

// Name implements Solver.
func (*Dinic) Name() string { return "dinic" }

type dinicGraph struct {
	head  []int32
	to    []int32
	next  []int32
	cap   []float64
	level []int32
	iter  []int32
	s, t  int32
}

// Solve implements Solver.
func (*Dinic) Solve(ctx context.Context, n *Network) (*Cut, error) {
	if err := n.Validate(); err != nil {
		return nil, err
	}
	g := newDinicGraph(n)
	flow := 0.0
	for g.bfs() {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		copy(g.iter, g.head)
		for {
			f := g.dfs(g.s, math.Inf(1))
			if f <= dinicEpsilon {
				break
			}
			flow += f
		}
	}

	// After the last failed BFS the level graph marks exactly the nodes
	// reachable from the source.
	sides := make([]Side, n.Nodes())
	for i := range sides {
		if g.level[i] >= 0 {
			sides[i] = SourceSide
		}
	}
	return &Cut{
		Sides: sides,
		Flow:  flow + n.terminalConstant(),
		Value: n.CutCost(sides),
	}, nil
}

func newDinicGraph(n *Network) *dinicGraph {
	nodes := n.Nodes() + 2
	arcs := 2 * (len(n.Edges) + n.Nodes())
	g := &dinicGraph{
		head:  make([]int32, nodes),
		to:    make([]int32, 0, arcs),
		next:  make([]int32, 0, arcs),
		cap:   make([]float64, 0, arcs),
		level: make([]int32, nodes),
		iter:  make([]int32, nodes),
		s:     int32(nodes - 2), //nolint:gosec // G115: bounded by node count
		t:     int32(nodes - 1), //nolint:gosec // G115: bounded by node count
	}
	for i := range g.head {
		g.head[i] = -1
	}
	for i := range n.Source {
		d := n.Source[i] - n.Sink[i]
		v := int32(i) //nolint:gosec // G115: bounded by node count
		switch {
		case d > 0:
			g.addArc(g.s, v, d, 0)
		case d < 0:
			g.addArc(v, g.t, -d, 0)
		}
	}
	for _, e := range n.Edges {
		if e.Cap > 0 {
			g.addArc(e.U, e.V, e.Cap, e.Cap)
		}
	}
	return g
}

func (g *dinicGraph) addArc(u, v int32, c, rc float64) {
	idx := int32(len(g.to)) //nolint:gosec // G115: bounded by arc count
	g.to = append(g.to, v, u)
	g.cap = append(g.cap, c, rc)
	g.next = append(g.next, g.head[u], g.head[v])
	g.head[u] = idx
	g.head[v] = idx + 1
}

func (g *dinicGraph) bfs() bool {
	for i := range g.level {
		g.level[i] = -1
	}
	g.level[g.s] = 0
	queue := []int32{g.s}
	for len(queue) > 0 {
		u := queue[0]
		queue = queue[1:]
		for a := g.head[u]; a >= 0; a = g.next[a] {
			v := g.to[a]
			if g.cap[a] > dinicEpsilon && g.level[v] < 0 {
				g.level[v] = g.level[u] + 1
				queue = append(queue, v)
			}
		}
	}
	return g.level[g.t] >= 0
}

func (g *dinicGraph) dfs(u int32, limit float64) float64 {
	if u == g.t {
		return limit
	}
	for ; g.iter[u] >= 0; g.iter[u] = g.next[g.iter[u]] {
		a := g.iter[u]
		v := g.to[a]
		if g.cap[a] <= dinicEpsilon || g.level[v] != g.level[u]+1 {
			continue
		}
		f := g.dfs(v, math.Min(limit, g.cap[a]))
		if f > dinicEpsilon {
			g.cap[a] -= f
			g.cap[a^1] += f
			return f
		}
	}
	return 0
}
