// Package graph holds the weighted directed road network the optimizer runs
// on. The structure is build-once: construct, optionally derive congested
// snapshots with ApplyCongestion, then treat every snapshot as read-only.
// Concurrent readers need no locking.
package graph

import (
	"fmt"
	"sort"

	"fleetnav/internal/model"
)

// NodeID identifies a node. The depot is always node 0.
type NodeID = int

type Node struct {
	ID   NodeID
	Name string
}

// Edge carries the base road-segment attributes and the derived costs.
// TimeCost and MoneyCost are recomputed whenever speed or congestion change.
type Edge struct {
	From       NodeID
	To         NodeID
	DistanceKm float64
	SpeedKph   float64
	Congestion float64
	OneWay     bool
	TimeCost   float64 // hours: distance / effective speed * (1 + congestion)
	MoneyCost  float64 // distance * (1 + 0.5*congestion) * unit rate
}

// CostKind selects which derived edge attribute a traversal optimizes.
type CostKind int

const (
	CostTime CostKind = iota
	CostDistance
	CostMonetary
)

func (k CostKind) String() string {
	switch k {
	case CostTime:
		return "time"
	case CostDistance:
		return "distance"
	case CostMonetary:
		return "monetary"
	}
	return "unknown"
}

// ParseCostKind maps the wire name to a CostKind. Empty defaults to time.
func ParseCostKind(s string) (CostKind, error) {
	switch s {
	case "", "time":
		return CostTime, nil
	case "distance":
		return CostDistance, nil
	case "monetary":
		return CostMonetary, nil
	}
	return CostTime, fmt.Errorf("unknown cost kind: %s", s)
}

// Graph is a directed weighted graph with deterministic neighbor order
// (insertion order per node). Not safe for concurrent mutation; safe for
// concurrent reads once built.
type Graph struct {
	unitRate float64
	nodes    map[NodeID]Node
	out      map[NodeID][]Edge
	index    map[NodeID]map[NodeID]int // from -> to -> position in out[from]
}

// New returns an empty graph. unitRate scales monetary edge cost per km;
// non-positive values fall back to 1.
func New(unitRate float64) *Graph {
	if unitRate <= 0 {
		unitRate = 1
	}
	return &Graph{
		unitRate: unitRate,
		nodes:    map[NodeID]Node{},
		out:      map[NodeID][]Edge{},
		index:    map[NodeID]map[NodeID]int{},
	}
}

// AddNode registers a node. Re-adding an id overwrites its name only.
func (g *Graph) AddNode(id NodeID, name string) {
	g.nodes[id] = Node{ID: id, Name: name}
}

// AddEdge adds a directed edge with derived costs. When oneway is false the
// reverse edge is materialized with the same base attributes and its own
// derived costs. Both endpoints must already exist.
func (g *Graph) AddEdge(from, to NodeID, distanceKm, speedKph, congestion float64, oneway bool) error {
	if _, ok := g.nodes[from]; !ok {
		return fmt.Errorf("%w: %d", ErrNodeNotFound, from)
	}
	if _, ok := g.nodes[to]; !ok {
		return fmt.Errorf("%w: %d", ErrNodeNotFound, to)
	}
	if distanceKm <= 0 || speedKph <= 0 {
		return fmt.Errorf("%w: %d->%d", ErrBadEdge, from, to)
	}
	if congestion < 0 {
		congestion = 0
	}
	g.putEdge(Edge{From: from, To: to, DistanceKm: distanceKm, SpeedKph: speedKph, Congestion: congestion, OneWay: oneway})
	if !oneway {
		g.putEdge(Edge{From: to, To: from, DistanceKm: distanceKm, SpeedKph: speedKph, Congestion: congestion, OneWay: oneway})
	}
	return nil
}

func (g *Graph) putEdge(e Edge) {
	e.TimeCost, e.MoneyCost = derive(e.DistanceKm, e.SpeedKph, e.Congestion, g.unitRate)
	if g.index[e.From] == nil {
		g.index[e.From] = map[NodeID]int{}
	}
	if pos, ok := g.index[e.From][e.To]; ok {
		g.out[e.From][pos] = e
		return
	}
	g.index[e.From][e.To] = len(g.out[e.From])
	g.out[e.From] = append(g.out[e.From], e)
}

func derive(distanceKm, speedKph, congestion, unitRate float64) (timeCost, moneyCost float64) {
	timeCost = distanceKm / speedKph * (1 + congestion)
	moneyCost = distanceKm * (1 + 0.5*congestion) * unitRate
	return
}

// HasNode reports whether id is in the graph.
func (g *Graph) HasNode(id NodeID) bool {
	_, ok := g.nodes[id]
	return ok
}

// NodeName returns the display name for id, or the empty string.
func (g *Graph) NodeName(id NodeID) string { return g.nodes[id].Name }

func (g *Graph) NodeCount() int { return len(g.nodes) }

// Nodes returns all node ids in ascending order.
func (g *Graph) Nodes() []NodeID {
	ids := make([]NodeID, 0, len(g.nodes))
	for id := range g.nodes {
		ids = append(ids, id)
	}
	sort.Ints(ids)
	return ids
}

// Neighbors returns the outgoing edges of id in insertion order. A node with
// out-degree 0 yields an empty slice; an unknown node is an error.
func (g *Graph) Neighbors(id NodeID) ([]Edge, error) {
	if _, ok := g.nodes[id]; !ok {
		return nil, fmt.Errorf("%w: %d", ErrNodeNotFound, id)
	}
	return g.out[id], nil
}

// Edge returns the edge from->to, or ErrEdgeNotFound.
func (g *Graph) Edge(from, to NodeID) (Edge, error) {
	if pos, ok := g.index[from][to]; ok {
		return g.out[from][pos], nil
	}
	return Edge{}, fmt.Errorf("%w: %d->%d", ErrEdgeNotFound, from, to)
}

// EdgeWeight returns the selected derived cost of the edge from->to.
func (g *Graph) EdgeWeight(from, to NodeID, kind CostKind) (float64, error) {
	e, err := g.Edge(from, to)
	if err != nil {
		return 0, err
	}
	return e.Weight(kind), nil
}

// Weight returns the edge attribute selected by kind.
func (e Edge) Weight(kind CostKind) float64 {
	switch kind {
	case CostDistance:
		return e.DistanceKm
	case CostMonetary:
		return e.MoneyCost
	default:
		return e.TimeCost
	}
}

// Clone returns a deep copy. Transforming the copy never aliases the
// receiver, so baseline and scenario snapshots can be read concurrently.
func (g *Graph) Clone() *Graph {
	c := New(g.unitRate)
	for id, n := range g.nodes {
		c.nodes[id] = n
	}
	for from, edges := range g.out {
		c.out[from] = append([]Edge(nil), edges...)
		idx := make(map[NodeID]int, len(g.index[from]))
		for to, pos := range g.index[from] {
			idx[to] = pos
		}
		c.index[from] = idx
	}
	return c
}

// Build constructs a graph from external node and edge records. Edge records
// referencing unknown node ids fail the build with ErrNodeNotFound.
func Build(in model.GraphIn) (*Graph, error) {
	g := New(in.UnitRate)
	for _, n := range in.Nodes {
		g.AddNode(n.ID, n.Name)
	}
	for _, e := range in.Edges {
		if err := g.AddEdge(e.From, e.To, e.DistanceKm, e.SpeedKph, e.Congestion, e.OneWay); err != nil {
			return nil, err
		}
	}
	return g, nil
}
