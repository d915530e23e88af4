package graph

import "errors"

// Sentinel errors for graph access. Callers branch with errors.Is.
var (
	// ErrNodeNotFound indicates the referenced node id is not in the graph.
	ErrNodeNotFound = errors.New("graph: node not found")

	// ErrEdgeNotFound indicates no edge exists for the requested (from, to) pair.
	ErrEdgeNotFound = errors.New("graph: edge not found")

	// ErrBadEdge indicates an edge record with non-positive distance or speed.
	ErrBadEdge = errors.New("graph: edge distance and speed must be positive")

	// ErrBadHour indicates an hour-of-day outside [0,23].
	ErrBadHour = errors.New("graph: hour must be in [0,23]")
)
