package plan

import (
	"context"
	"errors"
	"math"
	"testing"

	"fleetnav/internal/assign"
	"fleetnav/internal/graph"
	"fleetnav/internal/model"
	"fleetnav/internal/path"
)

// cityGraph: a two-way chain 0-1-3-5 (2 km legs at 10 kph), a short 0-2 spur
// (1 km), and an isolated node 4.
func cityGraph(t *testing.T) *graph.Graph {
	t.Helper()
	g := graph.New(1)
	for i := 0; i <= 5; i++ {
		g.AddNode(i, "")
	}
	mustEdge := func(from, to int, d float64) {
		t.Helper()
		if err := g.AddEdge(from, to, d, 10, 0, false); err != nil {
			t.Fatalf("AddEdge %d->%d: %v", from, to, err)
		}
	}
	mustEdge(0, 1, 2)
	mustEdge(1, 3, 2)
	mustEdge(3, 5, 2)
	mustEdge(0, 2, 1)
	return g
}

func load(dests ...graph.NodeID) assign.Load {
	ld := assign.Load{}
	for i, d := range dests {
		ld.Orders = append(ld.Orders, assign.Order{ID: string(rune('a' + i)), Destination: d, Weight: 1})
		ld.TotalWeight++
	}
	return ld
}

func TestRouteChainsLegsInDestinationOrder(t *testing.T) {
	g := cityGraph(t)
	// Orders arrive as [5 3]; ascending-id ordering visits 3 first.
	vr, err := Route(g, Depot, load(5, 3), graph.CostTime, path.Dijkstra, ByDestinationID)
	if err != nil {
		t.Fatalf("Route: %v", err)
	}
	want := []int{0, 1, 3, 5}
	if len(vr.Nodes) != len(want) {
		t.Fatalf("nodes = %v, want %v", vr.Nodes, want)
	}
	for i := range want {
		if vr.Nodes[i] != want[i] {
			t.Fatalf("nodes = %v, want %v", vr.Nodes, want)
		}
	}
	if math.Abs(vr.DistanceKm-6) > 1e-9 {
		t.Fatalf("distance = %v, want 6", vr.DistanceKm)
	}
	if math.Abs(vr.TimeHours-0.6) > 1e-9 {
		t.Fatalf("time = %v, want 0.6", vr.TimeHours)
	}
	if math.Abs(vr.Cost-vr.TimeHours) > 1e-9 {
		t.Fatalf("cost = %v, want the time total under CostTime", vr.Cost)
	}
}

func TestRouteSharedDestinationVisitedOnce(t *testing.T) {
	g := cityGraph(t)
	vr, err := Route(g, Depot, load(3, 3), graph.CostTime, path.Dijkstra, ByDestinationID)
	if err != nil {
		t.Fatalf("Route: %v", err)
	}
	if len(vr.OrderIDs) != 2 {
		t.Fatalf("order ids = %v, want both orders", vr.OrderIDs)
	}
	count := 0
	for _, n := range vr.Nodes {
		if n == 3 {
			count++
		}
	}
	if count != 1 {
		t.Fatalf("node 3 appears %d times in %v, want 1", count, vr.Nodes)
	}
}

func TestRouteUnreachableFailsWholeLoad(t *testing.T) {
	g := cityGraph(t)
	// 4 is isolated and sorts before 5, so the failure happens before 5 is
	// ever attempted.
	_, err := Route(g, Depot, load(4, 5), graph.CostTime, path.Dijkstra, ByDestinationID)
	var ue *UnreachableError
	if !errors.As(err, &ue) {
		t.Fatalf("err = %v, want UnreachableError", err)
	}
	if ue.Dest != 4 {
		t.Fatalf("dest = %d, want 4", ue.Dest)
	}
	if !errors.Is(err, path.ErrNoPath) {
		t.Fatalf("err does not wrap ErrNoPath: %v", err)
	}
}

func TestByPathLengthVisitsNearestFirst(t *testing.T) {
	g := cityGraph(t)
	// 0->2 is 0.1 h, 0->1 is 0.2 h; nearest-first flips the id order.
	stops, err := ByPathLength(g, Depot, []graph.NodeID{1, 2}, graph.CostTime, path.Dijkstra)
	if err != nil {
		t.Fatalf("ByPathLength: %v", err)
	}
	if len(stops) != 2 || stops[0] != 2 || stops[1] != 1 {
		t.Fatalf("stops = %v, want [2 1]", stops)
	}
}

func TestFleetRoutesAndTotals(t *testing.T) {
	g := cityGraph(t)
	loads := []assign.Load{load(5), load(2)}

	emitted := 0
	routes, failures, totals, err := Fleet(context.Background(), g, Depot, loads, graph.CostTime, path.Dijkstra, ByDestinationID, 2,
		func(model.VehicleRoute) { emitted++ })
	if err != nil {
		t.Fatalf("Fleet: %v", err)
	}
	if len(failures) != 0 {
		t.Fatalf("failures = %+v, want none", failures)
	}
	if len(routes) != 2 || routes[0].Vehicle != 0 || routes[1].Vehicle != 1 {
		t.Fatalf("routes = %+v, want vehicles 0 and 1 in order", routes)
	}
	if emitted != 2 {
		t.Fatalf("emitted = %d, want 2", emitted)
	}
	if totals.Vehicles != 2 {
		t.Fatalf("totals.Vehicles = %d, want 2", totals.Vehicles)
	}
	wantDist := routes[0].DistanceKm + routes[1].DistanceKm
	if math.Abs(totals.DistanceKm-wantDist) > 1e-9 {
		t.Fatalf("totals.DistanceKm = %v, want %v", totals.DistanceKm, wantDist)
	}
	wantTime := routes[0].TimeHours + routes[1].TimeHours
	if math.Abs(totals.TimeHours-wantTime) > 1e-9 {
		t.Fatalf("totals.TimeHours = %v, want %v", totals.TimeHours, wantTime)
	}
}

func TestFleetFailedLoadDoesNotSinkTheRest(t *testing.T) {
	g := cityGraph(t)
	loads := []assign.Load{load(4), load(5)} // 4 is isolated

	routes, failures, totals, err := Fleet(context.Background(), g, Depot, loads, graph.CostTime, path.Dijkstra, ByDestinationID, 2, nil)
	if err != nil {
		t.Fatalf("Fleet: %v", err)
	}
	if len(routes) != 1 || routes[0].Vehicle != 1 {
		t.Fatalf("routes = %+v, want only vehicle 1", routes)
	}
	if len(failures) != 1 || failures[0].Vehicle != 0 {
		t.Fatalf("failures = %+v, want vehicle 0", failures)
	}
	if failures[0].Error == "" || len(failures[0].OrderIDs) != 1 {
		t.Fatalf("failure detail missing: %+v", failures[0])
	}
	if totals.Vehicles != 1 {
		t.Fatalf("totals.Vehicles = %d, want 1", totals.Vehicles)
	}
}

func TestFleetEmptyLoads(t *testing.T) {
	g := cityGraph(t)
	routes, failures, totals, err := Fleet(context.Background(), g, Depot, nil, graph.CostTime, path.Dijkstra, ByDestinationID, 4, nil)
	if err != nil {
		t.Fatalf("Fleet: %v", err)
	}
	if len(routes) != 0 || len(failures) != 0 || totals.Vehicles != 0 {
		t.Fatalf("want empty result, got routes=%v failures=%v totals=%+v", routes, failures, totals)
	}
}

func TestFleetCancelledContext(t *testing.T) {
	g := cityGraph(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, _, _, err := Fleet(ctx, g, Depot, []assign.Load{load(5)}, graph.CostTime, path.Dijkstra, ByDestinationID, 1, nil)
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("err = %v, want context.Canceled", err)
	}
}
