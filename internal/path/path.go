// Package path implements point-to-point shortest-path search over a road
// network. Dijkstra and A* share one search core: A* with a zero heuristic
// is Dijkstra. Both are pure functions of (graph, start, end); no state
// survives a call.
//
// Complexity is O((V+E) log V) with a binary-heap frontier and lazy
// decrease-key: improved distances push duplicate heap entries, and stale
// entries are skipped on pop via the settled set.
package path

import (
	"errors"
	"fmt"

	"fleetnav/internal/graph"
)

// ErrNoPath is the expected outcome when end is unreachable from start.
// Callers branch on it; it is not an internal failure.
var ErrNoPath = errors.New("path: no path found")

// Heuristic estimates remaining cost from node to goal. It must never
// overestimate the true remaining cost for A* to return optimal paths; an
// inadmissible heuristic still terminates but may return a suboptimal path.
type Heuristic func(node, goal graph.NodeID) float64

// Func is the common shape of a point-to-point search, used by the route
// planner to stay agnostic of the chosen algorithm.
type Func func(g *graph.Graph, start, end graph.NodeID, kind graph.CostKind) (Result, error)

// Result is an inclusive start..end node sequence with its total weight.
type Result struct {
	Nodes       []graph.NodeID
	TotalWeight float64
}

// Dijkstra returns a minimum-weight path from start to end under the selected
// cost kind. All congestion-derived weights are non-negative by construction;
// negative weights are the caller's bug and are not validated here.
func Dijkstra(g *graph.Graph, start, end graph.NodeID, kind graph.CostKind) (Result, error) {
	return search(g, start, end, kind, nil)
}

// AStar is Dijkstra guided by h. A nil h degrades to Dijkstra.
func AStar(g *graph.Graph, start, end graph.NodeID, kind graph.CostKind, h Heuristic) (Result, error) {
	return search(g, start, end, kind, h)
}

func search(g *graph.Graph, start, end graph.NodeID, kind graph.CostKind, h Heuristic) (Result, error) {
	if !g.HasNode(start) {
		return Result{}, fmt.Errorf("%w: start %d", graph.ErrNodeNotFound, start)
	}
	if !g.HasNode(end) {
		return Result{}, fmt.Errorf("%w: end %d", graph.ErrNodeNotFound, end)
	}
	if start == end {
		return Result{Nodes: []graph.NodeID{start}}, nil
	}
	if h == nil {
		h = func(graph.NodeID, graph.NodeID) float64 { return 0 }
	}

	dist := map[graph.NodeID]float64{start: 0}
	prev := map[graph.NodeID]graph.NodeID{}
	settled := map[graph.NodeID]bool{}

	pq := newFrontier()
	pq.push(start, 0, h(start, end))

	for pq.len() > 0 {
		cur := pq.pop()
		if settled[cur.node] {
			continue // stale lazy-decrease-key entry
		}
		settled[cur.node] = true
		if cur.node == end {
			return Result{Nodes: reconstruct(prev, start, end), TotalWeight: dist[end]}, nil
		}
		edges, err := g.Neighbors(cur.node)
		if err != nil {
			return Result{}, err
		}
		for _, e := range edges {
			if settled[e.To] {
				continue
			}
			next := dist[cur.node] + e.Weight(kind)
			if best, seen := dist[e.To]; seen && next >= best {
				continue
			}
			dist[e.To] = next
			prev[e.To] = cur.node
			pq.push(e.To, next, h(e.To, end))
		}
	}
	return Result{}, fmt.Errorf("%w: %d -> %d", ErrNoPath, start, end)
}

func reconstruct(prev map[graph.NodeID]graph.NodeID, start, end graph.NodeID) []graph.NodeID {
	nodes := []graph.NodeID{end}
	for at := end; at != start; {
		at = prev[at]
		nodes = append(nodes, at)
	}
	// reverse into start..end order
	for i, j := 0, len(nodes)-1; i < j; i, j = i+1, j-1 {
		nodes[i], nodes[j] = nodes[j], nodes[i]
	}
	return nodes
}
