package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"fleetnav/internal/assign"
	"fleetnav/internal/fixture"
	"fleetnav/internal/graph"
	"fleetnav/internal/metrics"
	"fleetnav/internal/model"
	"fleetnav/internal/path"
	"fleetnav/internal/plan"
	"fleetnav/internal/store"
	"fleetnav/internal/webhooks"
)

// OptimizeHandler handles POST /v1/optimize
func (s *Server) OptimizeHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	p := s.getPrincipal(r)
	if !p.CanOptimize() {
		writeProblem(w, http.StatusForbidden, "Forbidden", "dispatcher or admin required", r.URL.Path)
		return
	}
	var req model.OptimizeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeProblem(w, http.StatusBadRequest, "Invalid JSON", err.Error(), r.URL.Path)
		return
	}
	if err := validateOptimizeRequest(&req); err != nil {
		writeProblem(w, http.StatusBadRequest, "Invalid optimize request", err.Error(), r.URL.Path)
		return
	}
	if req.TenantID == "" {
		req.TenantID = p.Tenant
	}
	result, err := s.runOptimize(r.Context(), req, nil)
	if err != nil {
		switch {
		case errors.Is(err, store.ErrNotFound):
			writeProblem(w, http.StatusNotFound, "Graph not found", err.Error(), r.URL.Path)
		case errors.Is(err, graph.ErrNodeNotFound), errors.Is(err, graph.ErrBadEdge), errors.Is(err, graph.ErrBadHour):
			writeProblem(w, http.StatusBadRequest, "Invalid graph input", err.Error(), r.URL.Path)
		default:
			writeProblem(w, http.StatusInternalServerError, "Optimize failed", err.Error(), r.URL.Path)
		}
		return
	}
	writeJSON(w, http.StatusOK, result)
}

// runOptimize executes the full pipeline: load graph, apply the congestion
// snapshot for the hour, pack orders into vehicles, route every load, persist
// and announce the plan. emit, when non-nil, receives each vehicle route as
// soon as it is computed.
func (s *Server) runOptimize(ctx context.Context, req model.OptimizeRequest, emit func(model.VehicleRoute)) (model.Plan, error) {
	if req.Algorithm == "" {
		req.Algorithm = "dijkstra"
	}
	if req.VehicleCapacity == 0 {
		req.VehicleCapacity = s.Cfg.Optimizer.VehicleCapacity
	}
	if req.MaxVehicles == 0 {
		req.MaxVehicles = s.Cfg.Optimizer.MaxVehicles
	}
	if req.Workers == 0 {
		req.Workers = s.Cfg.Optimizer.Workers
	}

	fail := func(err error) (model.Plan, error) {
		metrics.OptimizeRuns.WithLabelValues(req.Algorithm, "error").Inc()
		s.Pub.Emit(ctx, req.TenantID, webhooks.EventPlanFailed, map[string]any{
			"graphId": req.GraphID,
			"error":   err.Error(),
		})
		return model.Plan{}, err
	}

	var gin model.GraphIn
	if req.GraphID != "" {
		gout, err := s.Store.GetGraph(ctx, req.TenantID, req.GraphID)
		if err != nil {
			return fail(err)
		}
		gin = gout.GraphIn
	} else {
		gin = fixture.DemoGraph()
	}
	if gin.UnitRate == 0 {
		gin.UnitRate = s.Cfg.Optimizer.UnitRate
	}
	base, err := graph.Build(gin)
	if err != nil {
		return fail(err)
	}
	g, err := graph.ApplyCongestion(base, req.Hour)
	if err != nil {
		return fail(err)
	}
	kind, err := graph.ParseCostKind(req.CostKind)
	if err != nil {
		return fail(err)
	}

	orders, err := s.pendingOrders(ctx, req.TenantID, req.GraphID == "")
	if err != nil {
		return fail(err)
	}

	loads, unassigned := assign.Assign(orders, req.VehicleCapacity, req.MaxVehicles)
	for _, u := range unassigned {
		metrics.UnassignedOrders.WithLabelValues(string(u.Reason)).Inc()
	}

	search := path.Func(path.Dijkstra)
	if req.Algorithm == "astar" {
		search = func(g *graph.Graph, from, to graph.NodeID, kind graph.CostKind) (path.Result, error) {
			return path.AStar(g, from, to, kind, nil)
		}
	}
	ordering := plan.StopOrdering(plan.ByDestinationID)
	if req.Ordering == "nearest" {
		ordering = plan.ByPathLength
	}

	emitFn := func(vr model.VehicleRoute) {
		metrics.PathComputeDuration.WithLabelValues(req.Algorithm).Observe(vr.ComputeMs)
		if emit != nil {
			emit(vr)
		}
	}
	routes, failures, totals, err := plan.Fleet(ctx, g, plan.Depot, loads, kind, search, ordering, req.Workers, emitFn)
	if err != nil {
		return fail(err)
	}

	unassignedOut := make([]model.UnassignedOrder, len(unassigned))
	for i, u := range unassigned {
		unassignedOut[i] = model.UnassignedOrder{OrderID: u.Order.ID, Reason: string(u.Reason)}
	}

	result := model.Plan{
		TenantID:   req.TenantID,
		GraphID:    req.GraphID,
		Algorithm:  req.Algorithm,
		CostKind:   kind.String(),
		Hour:       req.Hour,
		Routes:     routes,
		Unassigned: unassignedOut,
		Failures:   failures,
		Totals:     totals,
	}
	result, err = s.Store.SavePlan(ctx, result)
	if err != nil {
		return fail(err)
	}

	// Orders on routed vehicles advance to assigned; the rest are flagged.
	var assignedIDs, unassignedIDs []string
	for _, rt := range routes {
		assignedIDs = append(assignedIDs, rt.OrderIDs...)
	}
	for _, u := range unassignedOut {
		unassignedIDs = append(unassignedIDs, u.OrderID)
	}
	_ = s.Store.UpdateOrderStatus(ctx, req.TenantID, assignedIDs, "assigned")
	_ = s.Store.UpdateOrderStatus(ctx, req.TenantID, unassignedIDs, "unassigned")

	legs := 0
	computeMs := 0.0
	for _, rt := range routes {
		if len(rt.Nodes) > 0 {
			legs += len(rt.Nodes) - 1
		}
		computeMs += rt.ComputeMs
	}
	_ = s.Store.SavePlanMetrics(ctx, req.TenantID, result.ID, model.PlanMetrics{
		Algorithm:  req.Algorithm,
		CostKind:   result.CostKind,
		Routes:     len(routes),
		Legs:       legs,
		ComputeMs:  computeMs,
		DistanceKm: totals.DistanceKm,
		TimeHours:  totals.TimeHours,
	})

	metrics.OptimizeRuns.WithLabelValues(req.Algorithm, "ok").Inc()
	summary := map[string]any{
		"planId":     result.ID,
		"vehicles":   totals.Vehicles,
		"unassigned": len(unassignedOut),
		"failures":   len(failures),
	}
	s.Broker.Publish(result.ID, PlanEvent{Type: webhooks.EventPlanCompleted, Data: summary})
	s.Pub.Emit(ctx, req.TenantID, webhooks.EventPlanCompleted, summary)
	return result, nil
}

// pendingOrders loads the tenant's pending order backlog. On an empty backlog
// with the demo graph selected, the demo orders stand in so the endpoint has
// something to plan.
func (s *Server) pendingOrders(ctx context.Context, tenantID string, allowDemo bool) ([]assign.Order, error) {
	items, _, err := s.Store.ListOrders(ctx, tenantID, "pending", "", 1000)
	if err != nil {
		return nil, err
	}
	orders := make([]assign.Order, 0, len(items))
	for _, o := range items {
		orders = append(orders, assign.Order{
			ID:          o.ID,
			Destination: o.Destination,
			Weight:      o.WeightTons,
			Priority:    o.Priority,
			Deadline:    o.Deadline,
		})
	}
	if len(orders) == 0 && allowDemo {
		for _, o := range fixture.DemoOrders() {
			orders = append(orders, assign.Order{
				ID:          o.ExternalRef,
				Destination: o.Destination,
				Weight:      o.WeightTons,
				Priority:    o.Priority,
				Deadline:    o.Deadline,
			})
		}
	}
	return orders, nil
}
