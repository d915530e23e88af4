// Package plan turns vehicle loads into depot-rooted multi-stop routes by
// chaining point-to-point searches, and fans the per-load work across a
// bounded worker pool.
package plan

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"fleetnav/internal/assign"
	"fleetnav/internal/graph"
	"fleetnav/internal/model"
	"fleetnav/internal/path"
)

// Depot is the origin of every route.
const Depot graph.NodeID = 0

// UnreachableError marks a load whose route could not reach one of its
// destinations. The whole load fails; later stops are not attempted.
type UnreachableError struct {
	Dest graph.NodeID
	Err  error
}

func (e *UnreachableError) Error() string {
	return fmt.Sprintf("destination %d unreachable: %v", e.Dest, e.Err)
}

func (e *UnreachableError) Unwrap() error { return e.Err }

// StopOrdering decides the visit order of a load's destinations before the
// legs are chained.
type StopOrdering func(g *graph.Graph, depot graph.NodeID, dests []graph.NodeID, kind graph.CostKind, search path.Func) ([]graph.NodeID, error)

// ByDestinationID visits destinations in ascending node id. It is the
// default because it needs no extra searches and is trivially reproducible.
func ByDestinationID(_ *graph.Graph, _ graph.NodeID, dests []graph.NodeID, _ graph.CostKind, _ path.Func) ([]graph.NodeID, error) {
	out := append([]graph.NodeID(nil), dests...)
	sort.Ints(out)
	return out, nil
}

// ByPathLength visits destinations nearest-first by shortest-path weight from
// the depot. Unreachable destinations sort last so the chaining step reports
// them with the proper error. Ties break on node id.
func ByPathLength(g *graph.Graph, depot graph.NodeID, dests []graph.NodeID, kind graph.CostKind, search path.Func) ([]graph.NodeID, error) {
	type ranked struct {
		id     graph.NodeID
		weight float64
		ok     bool
	}
	rs := make([]ranked, 0, len(dests))
	for _, d := range dests {
		res, err := search(g, depot, d, kind)
		if err != nil {
			if errors.Is(err, path.ErrNoPath) {
				rs = append(rs, ranked{id: d})
				continue
			}
			return nil, err
		}
		rs = append(rs, ranked{id: d, weight: res.TotalWeight, ok: true})
	}
	sort.SliceStable(rs, func(i, j int) bool {
		if rs[i].ok != rs[j].ok {
			return rs[i].ok
		}
		if rs[i].weight != rs[j].weight {
			return rs[i].weight < rs[j].weight
		}
		return rs[i].id < rs[j].id
	})
	out := make([]graph.NodeID, len(rs))
	for i, r := range rs {
		out[i] = r.id
	}
	return out, nil
}

// Route plans one vehicle's route from depot through every destination in the
// load. Legs are chained: each leg's node sequence is appended without its
// first node so shared endpoints appear once. Orders sharing a destination
// produce a single stop. Totals sum distance, time and the selected cost over
// the final node walk.
func Route(g *graph.Graph, depot graph.NodeID, load assign.Load, kind graph.CostKind, search path.Func, ordering StopOrdering) (model.VehicleRoute, error) {
	start := time.Now()
	if ordering == nil {
		ordering = ByDestinationID
	}
	stops, err := ordering(g, depot, destinations(load), kind, search)
	if err != nil {
		return model.VehicleRoute{}, err
	}

	nodes := []graph.NodeID{depot}
	cur := depot
	for _, stop := range stops {
		if stop == cur {
			continue
		}
		res, err := search(g, cur, stop, kind)
		if err != nil {
			if errors.Is(err, path.ErrNoPath) {
				return model.VehicleRoute{}, &UnreachableError{Dest: stop, Err: err}
			}
			return model.VehicleRoute{}, err
		}
		nodes = append(nodes, res.Nodes[1:]...)
		cur = stop
	}

	vr := model.VehicleRoute{Nodes: nodes, OrderIDs: orderIDs(load)}
	for i := 0; i+1 < len(nodes); i++ {
		e, err := g.Edge(nodes[i], nodes[i+1])
		if err != nil {
			return model.VehicleRoute{}, err
		}
		vr.DistanceKm += e.DistanceKm
		vr.TimeHours += e.TimeCost
		vr.Cost += e.Weight(kind)
	}
	vr.ComputeMs = float64(time.Since(start).Microseconds()) / 1000
	return vr, nil
}

// destinations returns the load's stop set in order-of-first-mention, with
// duplicates and the depot itself removed.
func destinations(load assign.Load) []graph.NodeID {
	seen := map[graph.NodeID]bool{Depot: true}
	out := []graph.NodeID{}
	for _, o := range load.Orders {
		if seen[o.Destination] {
			continue
		}
		seen[o.Destination] = true
		out = append(out, o.Destination)
	}
	return out
}

func orderIDs(load assign.Load) []string {
	ids := make([]string, len(load.Orders))
	for i, o := range load.Orders {
		ids[i] = o.ID
	}
	return ids
}

// Fleet routes every load concurrently across at most workers goroutines.
// Vehicle numbers follow load order regardless of completion order, so output
// is deterministic. A load that fails becomes a RouteFailure; the rest of the
// fleet still routes. emit, when non-nil, is called once per completed route
// as it finishes (completion order, not vehicle order). Cancelling ctx stops
// the pool and returns ctx's error.
func Fleet(ctx context.Context, g *graph.Graph, depot graph.NodeID, loads []assign.Load, kind graph.CostKind, search path.Func, ordering StopOrdering, workers int, emit func(model.VehicleRoute)) ([]model.VehicleRoute, []model.RouteFailure, model.FleetTotals, error) {
	if workers <= 0 {
		workers = 1
	}
	if workers > len(loads) {
		workers = len(loads)
	}

	type outcome struct {
		route model.VehicleRoute
		err   error
	}
	results := make([]outcome, len(loads))

	jobs := make(chan int)
	var wg sync.WaitGroup
	var emitMu sync.Mutex
	for w := 0; w < workers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := range jobs {
				if ctx.Err() != nil {
					return
				}
				route, err := Route(g, depot, loads[i], kind, search, ordering)
				if err != nil {
					results[i] = outcome{err: err}
					continue
				}
				route.Vehicle = i
				results[i] = outcome{route: route}
				if emit != nil {
					emitMu.Lock()
					emit(route)
					emitMu.Unlock()
				}
			}
		}()
	}

feed:
	for i := range loads {
		select {
		case jobs <- i:
		case <-ctx.Done():
			break feed
		}
	}
	close(jobs)
	wg.Wait()
	if err := ctx.Err(); err != nil {
		return nil, nil, model.FleetTotals{}, err
	}

	routes := []model.VehicleRoute{}
	failures := []model.RouteFailure{}
	totals := model.FleetTotals{}
	for i, r := range results {
		if r.err != nil {
			failures = append(failures, model.RouteFailure{
				Vehicle:  i,
				OrderIDs: orderIDs(loads[i]),
				Error:    r.err.Error(),
			})
			continue
		}
		routes = append(routes, r.route)
		totals.Vehicles++
		totals.DistanceKm += r.route.DistanceKm
		totals.TimeHours += r.route.TimeHours
		totals.Cost += r.route.Cost
	}
	return routes, failures, totals, nil
}
