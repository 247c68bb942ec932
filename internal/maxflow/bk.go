package maxflow

import (
	"context"
	"math"

	"github.com/MeKo-Tech/cutout/internal/mempool"
)

const (
	parentNone     int32 = 0
	parentTerminal int32 = -1
	parentOrphan   int32 = -2

	// ctxCheckInterval is the number of augmentations between context checks.
	ctxCheckInterval = 1024
)

type bkVertex struct {
	first  int32 // head of the edge list, 0 when empty
	parent int32 // edge to the parent, or one of the parent* markers
	tree   int32 // 0 for the source tree, 1 for the sink tree
	dist   int
	ts     int
	weight float64 // residual terminal capacity: >0 from source, <0 to sink
}

type bkEdge struct {
	dst    int32
	next   int32
	weight float64
}

// BoykovKolmogorov is the augmenting-path solver of Boykov and Kolmogorov.
// It grows search trees from both terminals and reuses them between
// augmentations, which makes it fast on 8-connected image grids.
type BoykovKolmogorov struct{}

// NewBoykovKolmogorov returns the Boykov-Kolmogorov solver.
func NewBoykovKolmogorov() *BoykovKolmogorov { return &BoykovKolmogorov{} }

// Name implements Solver.
func (*BoykovKolmogorov) Name() string { return "bk" }

// Solve implements Solver.
func (*BoykovKolmogorov) Solve(ctx context.Context, n *Network) (*Cut, error) {
	if err := n.Validate(); err != nil {
		return nil, err
	}
	g := newBKGraph(n)
	defer mempool.PutBool(g.queued)
	flow, err := g.maxFlow(ctx)
	if err != nil {
		return nil, err
	}
	sides := g.sourceSides()
	return &Cut{
		Sides: sides,
		Flow:  flow + n.terminalConstant(),
		Value: n.CutCost(sides),
	}, nil
}

type bkGraph struct {
	vtx     []bkVertex
	edges   []bkEdge
	queue   []int32
	head    int
	queued  []bool
	orphans []int32
}

func newBKGraph(n *Network) *bkGraph {
	g := &bkGraph{
		vtx: make([]bkVertex, n.Nodes()),
		// Indices 0 and 1 are placeholders so 0 can mean "no edge".
		edges:  make([]bkEdge, 2, 2+2*len(n.Edges)),
		queued: mempool.GetBool(n.Nodes()),
	}
	for i := range g.vtx {
		g.vtx[i].weight = n.Source[i] - n.Sink[i]
	}
	for _, e := range n.Edges {
		if e.Cap == 0 {
			continue
		}
		g.addEdge(e.U, e.V, e.Cap, e.Cap)
	}
	return g
}

func (g *bkGraph) addEdge(u, v int32, w, revW float64) {
	idx := int32(len(g.edges)) //nolint:gosec // G115: bounded by edge count
	g.edges = append(g.edges,
		bkEdge{dst: v, next: g.vtx[u].first, weight: w},
		bkEdge{dst: u, next: g.vtx[v].first, weight: revW},
	)
	g.vtx[u].first = idx
	g.vtx[v].first = idx + 1
}

func (g *bkGraph) push(i int32) {
	g.queue = append(g.queue, i)
	g.queued[i] = true
}

func (g *bkGraph) pop() {
	g.queued[g.queue[g.head]] = false
	g.head++
	if g.head > 1024 && g.head*2 > len(g.queue) {
		g.queue = g.queue[:copy(g.queue, g.queue[g.head:])]
		g.head = 0
	}
}

func (g *bkGraph) maxFlow(ctx context.Context) (float64, error) {
	flow := 0.0
	for i := range g.vtx {
		v := &g.vtx[i]
		v.ts = 0
		if v.weight == 0 {
			v.parent = parentNone
			continue
		}
		g.push(int32(i)) //nolint:gosec // G115: bounded by node count
		v.dist = 1
		v.parent = parentTerminal
		if v.weight < 0 {
			v.tree = 1
		} else {
			v.tree = 0
		}
	}

	currTS := 0
	for iter := 0; ; iter++ {
		if iter%ctxCheckInterval == 0 {
			if err := ctx.Err(); err != nil {
				return 0, err
			}
		}

		e0 := g.grow()
		if e0 <= 0 {
			break
		}
		flow += g.augment(e0)

		currTS++
		g.adopt(currTS)
	}
	return flow, nil
}

// grow extends the search trees until they touch and returns the edge
// joining them, oriented from the source tree to the sink tree, or 0 when
// no augmenting path is left.
func (g *bkGraph) grow() int32 {
	for g.head < len(g.queue) {
		vi := g.queue[g.head]
		v := &g.vtx[vi]
		if v.parent != parentNone {
			vt := v.tree
			for ei := v.first; ei != 0; ei = g.edges[ei].next {
				if g.edges[ei^vt].weight == 0 {
					continue
				}
				ui := g.edges[ei].dst
				u := &g.vtx[ui]
				if u.parent == parentNone {
					u.tree = vt
					u.parent = ei ^ 1
					u.ts = v.ts
					u.dist = v.dist + 1
					if !g.queued[ui] {
						g.push(ui)
					}
					continue
				}
				if u.tree != vt {
					return ei ^ vt
				}
				if u.dist > v.dist+1 && u.ts <= v.ts {
					u.parent = ei ^ 1
					u.ts = v.ts
					u.dist = v.dist + 1
				}
			}
		}
		g.pop()
	}
	return 0
}

func (g *bkGraph) augment(e0 int32) float64 {
	minW := g.edges[e0].weight
	for k := int32(1); k >= 0; k-- {
		vi := g.edges[e0^k].dst
		for {
			ei := g.vtx[vi].parent
			if ei < 0 {
				break
			}
			minW = math.Min(minW, g.edges[ei^k].weight)
			vi = g.edges[ei].dst
		}
		minW = math.Min(minW, math.Abs(g.vtx[vi].weight))
	}

	g.edges[e0].weight -= minW
	g.edges[e0^1].weight += minW
	for k := int32(1); k >= 0; k-- {
		vi := g.edges[e0^k].dst
		for {
			ei := g.vtx[vi].parent
			if ei < 0 {
				break
			}
			g.edges[ei^(k^1)].weight += minW
			g.edges[ei^k].weight -= minW
			if g.edges[ei^k].weight == 0 {
				g.orphans = append(g.orphans, vi)
				g.vtx[vi].parent = parentOrphan
			}
			vi = g.edges[ei].dst
		}
		v := &g.vtx[vi]
		if k == 1 {
			v.weight -= minW
		} else {
			v.weight += minW
		}
		if v.weight == 0 {
			g.orphans = append(g.orphans, vi)
			v.parent = parentOrphan
		}
	}
	return minW
}

// adopt finds new parents for the orphans created by the last augmentation,
// freeing the ones that cannot be reattached to their tree.
func (g *bkGraph) adopt(currTS int) {
	for len(g.orphans) > 0 {
		v2i := g.orphans[len(g.orphans)-1]
		g.orphans = g.orphans[:len(g.orphans)-1]
		v2 := &g.vtx[v2i]
		vt := v2.tree

		minDist := math.MaxInt32
		e0 := int32(0)
		for ei := v2.first; ei != 0; ei = g.edges[ei].next {
			if g.edges[ei^(vt^1)].weight == 0 {
				continue
			}
			u := &g.vtx[g.edges[ei].dst]
			if u.tree != vt || u.parent == parentNone {
				continue
			}
			d := 0
			for {
				if u.ts == currTS {
					d += u.dist
					break
				}
				ej := u.parent
				d++
				if ej < 0 {
					if ej == parentOrphan {
						d = math.MaxInt32 - 1
					} else {
						u.ts = currTS
						u.dist = 1
					}
					break
				}
				u = &g.vtx[g.edges[ej].dst]
			}
			d++
			if d >= math.MaxInt32 {
				continue
			}
			if d < minDist {
				minDist = d
				e0 = ei
			}
			for u = &g.vtx[g.edges[ei].dst]; u.ts != currTS; u = &g.vtx[g.edges[u.parent].dst] {
				u.ts = currTS
				d--
				u.dist = d
			}
		}

		v2.parent = e0
		if e0 > 0 {
			v2.ts = currTS
			v2.dist = minDist
			continue
		}

		v2.ts = 0
		for ei := v2.first; ei != 0; ei = g.edges[ei].next {
			ui := g.edges[ei].dst
			u := &g.vtx[ui]
			ej := u.parent
			if u.tree != vt || ej == parentNone {
				continue
			}
			if g.edges[ei^(vt^1)].weight != 0 && !g.queued[ui] {
				g.push(ui)
			}
			if ej > 0 && g.edges[ej].dst == v2i {
				g.orphans = append(g.orphans, ui)
				u.parent = parentOrphan
			}
		}
	}
}

// sourceSides marks every node still reachable from the source in the
// residual graph. This is the minimal source set among all minimum cuts,
// so nodes the flow leaves undecided go to the sink.
func (g *bkGraph) sourceSides() []Side {
	sides := make([]Side, len(g.vtx))
	stack := make([]int32, 0, len(g.vtx))
	for i := range g.vtx {
		if g.vtx[i].weight > 0 {
			sides[i] = SourceSide
			stack = append(stack, int32(i)) //nolint:gosec // G115: bounded by node count
		}
	}
	for len(stack) > 0 {
		vi := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		for ei := g.vtx[vi].first; ei != 0; ei = g.edges[ei].next {
			ui := g.edges[ei].dst
			if sides[ui] == SourceSide || g.edges[ei].weight <= 0 {
				continue
			}
			sides[ui] = SourceSide
			stack = append(stack, ui)
		}
	}
	return sides
}
