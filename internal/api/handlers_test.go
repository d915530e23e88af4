package api

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"golang.org/x/time/rate"

	"fleetnav/internal/auth"
	"fleetnav/internal/config"
	"fleetnav/internal/model"
	"fleetnav/internal/store"
	"fleetnav/internal/webhooks"
)

func newTestServer() *Server {
	m := store.NewMemory()
	return &Server{
		Store:   m,
		Pub:     webhooks.NewPublisher(m),
		Auth:    &auth.Verifier{Mode: "dev"},
		Broker:  NewBroker(),
		Limiter: rate.NewLimiter(rate.Limit(1000), 1000),
		Cfg:     config.Default(),
	}
}

func doJSON(t *testing.T, h http.HandlerFunc, method, target string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var rd *bytes.Reader
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			t.Fatalf("marshal: %v", err)
		}
		rd = bytes.NewReader(b)
	} else {
		rd = bytes.NewReader(nil)
	}
	req := httptest.NewRequest(method, target, rd)
	rec := httptest.NewRecorder()
	h(rec, req)
	return rec
}

func decodeBody(t *testing.T, rec *httptest.ResponseRecorder, v any) {
	t.Helper()
	if err := json.NewDecoder(rec.Body).Decode(v); err != nil {
		t.Fatalf("decode response: %v", err)
	}
}

func TestOrdersCreateAndList(t *testing.T) {
	s := newTestServer()
	rec := doJSON(t, s.OrdersHandler, http.MethodPost, "/v1/orders", map[string]any{
		"orders": []model.OrderIn{
			{ExternalRef: "o1", Destination: 3, WeightTons: 5, Priority: 2},
			{ExternalRef: "o2", Destination: 5, WeightTons: 7, Priority: 1},
		},
	})
	if rec.Code != http.StatusAccepted {
		t.Fatalf("status = %d body=%s", rec.Code, rec.Body.String())
	}
	var created struct {
		Created int `json:"created"`
		Skipped int `json:"skipped"`
	}
	decodeBody(t, rec, &created)
	if created.Created != 2 || created.Skipped != 0 {
		t.Fatalf("created = %+v", created)
	}

	rec = doJSON(t, s.OrdersHandler, http.MethodGet, "/v1/orders?status=pending", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("list status = %d", rec.Code)
	}
	var list struct {
		Items []model.OrderOut `json:"items"`
	}
	decodeBody(t, rec, &list)
	if len(list.Items) != 2 {
		t.Fatalf("items = %d, want 2", len(list.Items))
	}
}

func TestOrdersRejectNonPositiveWeight(t *testing.T) {
	s := newTestServer()
	rec := doJSON(t, s.OrdersHandler, http.MethodPost, "/v1/orders", map[string]any{
		"orders": []model.OrderIn{{Destination: 3, WeightTons: 0}},
	})
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", rec.Code)
	}
}

func TestGraphUploadValidateAndGet(t *testing.T) {
	s := newTestServer()
	in := model.GraphIn{
		Name:  "line",
		Nodes: []model.NodeIn{{ID: 0, Name: "Depot"}, {ID: 1}, {ID: 2}},
		Edges: []model.EdgeIn{
			{From: 0, To: 1, DistanceKm: 10, SpeedKph: 50},
			{From: 1, To: 2, DistanceKm: 10, SpeedKph: 50},
		},
	}
	rec := doJSON(t, s.GraphsHandler, http.MethodPost, "/v1/graphs", in)
	if rec.Code != http.StatusCreated {
		t.Fatalf("status = %d body=%s", rec.Code, rec.Body.String())
	}
	var g model.GraphOut
	decodeBody(t, rec, &g)
	if g.ID == "" || len(g.Nodes) != 3 {
		t.Fatalf("graph = %+v", g)
	}

	req := httptest.NewRequest(http.MethodGet, "/v1/graphs/"+g.ID, nil)
	rec2 := httptest.NewRecorder()
	s.GraphByIDHandler(rec2, req)
	if rec2.Code != http.StatusOK {
		t.Fatalf("get status = %d", rec2.Code)
	}

	// edge referencing an unknown node is rejected before persisting
	bad := model.GraphIn{
		Nodes: []model.NodeIn{{ID: 0}},
		Edges: []model.EdgeIn{{From: 0, To: 9, DistanceKm: 1, SpeedKph: 10}},
	}
	rec3 := doJSON(t, s.GraphsHandler, http.MethodPost, "/v1/graphs", bad)
	if rec3.Code != http.StatusBadRequest {
		t.Fatalf("bad graph status = %d, want 400", rec3.Code)
	}
}

func TestOptimizeDemoEndToEnd(t *testing.T) {
	s := newTestServer()
	rec := doJSON(t, s.OptimizeHandler, http.MethodPost, "/v1/optimize", model.OptimizeRequest{Hour: 12})
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d body=%s", rec.Code, rec.Body.String())
	}
	var p model.Plan
	decodeBody(t, rec, &p)
	if p.ID == "" || p.Algorithm != "dijkstra" || p.CostKind != "time" {
		t.Fatalf("plan header = %+v", p)
	}
	if len(p.Routes) == 0 {
		t.Fatal("no routes planned for demo city")
	}
	// the 25 t demo order exceeds the default 20 t vehicle
	foundHeavy := false
	for _, u := range p.Unassigned {
		if u.OrderID == "demo-5" && u.Reason == "capacity" {
			foundHeavy = true
		}
	}
	if !foundHeavy {
		t.Fatalf("unassigned = %+v, want demo-5 with capacity reason", p.Unassigned)
	}
	if p.Totals.Vehicles != len(p.Routes) {
		t.Fatalf("totals.Vehicles = %d, routes = %d", p.Totals.Vehicles, len(p.Routes))
	}
	for _, rt := range p.Routes {
		if len(rt.Nodes) == 0 || rt.Nodes[0] != 0 {
			t.Fatalf("route does not start at depot: %+v", rt)
		}
	}

	// the plan is persisted and listable
	rec = doJSON(t, s.PlansHandler, http.MethodGet, "/v1/plans", nil)
	var list struct {
		Items []model.Plan `json:"items"`
	}
	decodeBody(t, rec, &list)
	if len(list.Items) != 1 || list.Items[0].ID != p.ID {
		t.Fatalf("plans = %+v", list.Items)
	}

	// per-run metrics are recorded
	req := httptest.NewRequest(http.MethodGet, "/v1/plans/"+p.ID+"/metrics", nil)
	rec2 := httptest.NewRecorder()
	s.PlanByIDHandler(rec2, req)
	var mx struct {
		Items []model.PlanMetrics `json:"items"`
	}
	decodeBody(t, rec2, &mx)
	if len(mx.Items) != 1 || mx.Items[0].Routes != len(p.Routes) {
		t.Fatalf("plan metrics = %+v", mx.Items)
	}
}

func TestOptimizeWithUploadedGraphAssignsOrders(t *testing.T) {
	s := newTestServer()
	in := model.GraphIn{
		Nodes: []model.NodeIn{{ID: 0, Name: "Depot"}, {ID: 1}, {ID: 2}},
		Edges: []model.EdgeIn{
			{From: 0, To: 1, DistanceKm: 10, SpeedKph: 50},
			{From: 1, To: 2, DistanceKm: 10, SpeedKph: 50},
		},
	}
	var g model.GraphOut
	decodeBody(t, doJSON(t, s.GraphsHandler, http.MethodPost, "/v1/graphs", in), &g)

	rec := doJSON(t, s.OrdersHandler, http.MethodPost, "/v1/orders", map[string]any{
		"orders": []model.OrderIn{
			{ExternalRef: "a", Destination: 2, WeightTons: 10, Priority: 1},
			{ExternalRef: "b", Destination: 1, WeightTons: 5, Priority: 2},
		},
	})
	if rec.Code != http.StatusAccepted {
		t.Fatalf("orders status = %d", rec.Code)
	}

	rec = doJSON(t, s.OptimizeHandler, http.MethodPost, "/v1/optimize", model.OptimizeRequest{GraphID: g.ID, Hour: 12, Algorithm: "astar"})
	if rec.Code != http.StatusOK {
		t.Fatalf("optimize status = %d body=%s", rec.Code, rec.Body.String())
	}
	var p model.Plan
	decodeBody(t, rec, &p)
	if len(p.Routes) != 1 {
		t.Fatalf("routes = %+v, want one vehicle", p.Routes)
	}
	// both orders fit one vehicle and advance to assigned
	var assigned struct {
		Items []model.OrderOut `json:"items"`
	}
	decodeBody(t, doJSON(t, s.OrdersHandler, http.MethodGet, "/v1/orders?status=assigned", nil), &assigned)
	if len(assigned.Items) != 2 {
		t.Fatalf("assigned orders = %+v", assigned.Items)
	}
}

func TestOptimizeUnknownGraph(t *testing.T) {
	s := newTestServer()
	rec := doJSON(t, s.OptimizeHandler, http.MethodPost, "/v1/optimize", model.OptimizeRequest{GraphID: "missing"})
	if rec.Code != http.StatusNotFound {
		t.Fatalf("status = %d, want 404", rec.Code)
	}
}

func TestOptimizeValidation(t *testing.T) {
	s := newTestServer()
	cases := []model.OptimizeRequest{
		{Algorithm: "bfs"},
		{CostKind: "fuel"},
		{Hour: 24},
		{Hour: -1},
		{Ordering: "random"},
		{VehicleCapacity: -1},
	}
	for _, c := range cases {
		rec := doJSON(t, s.OptimizeHandler, http.MethodPost, "/v1/optimize", c)
		if rec.Code != http.StatusBadRequest {
			t.Fatalf("req %+v: status = %d, want 400", c, rec.Code)
		}
	}
}

func TestOptimizeForbiddenForViewer(t *testing.T) {
	s := newTestServer()
	body, _ := json.Marshal(model.OptimizeRequest{})
	req := httptest.NewRequest(http.MethodPost, "/v1/optimize", bytes.NewReader(body))
	req.Header.Set("X-Role", "viewer")
	rec := httptest.NewRecorder()
	s.OptimizeHandler(rec, req)
	if rec.Code != http.StatusForbidden {
		t.Fatalf("status = %d, want 403", rec.Code)
	}
}

func TestMutatingEndpointsForbiddenForViewer(t *testing.T) {
	s := newTestServer()
	cases := []struct {
		name   string
		h      http.HandlerFunc
		method string
		target string
	}{
		{"graph upload", s.GraphsHandler, http.MethodPost, "/v1/graphs"},
		{"order ingest", s.OrdersHandler, http.MethodPost, "/v1/orders"},
		{"subscription create", s.SubscriptionsHandler, http.MethodPost, "/v1/subscriptions"},
		{"subscription delete", s.SubscriptionByIDHandler, http.MethodDelete, "/v1/subscriptions/sub1"},
	}
	for _, c := range cases {
		req := httptest.NewRequest(c.method, c.target, bytes.NewReader([]byte(`{}`)))
		req.Header.Set("X-Role", "viewer")
		rec := httptest.NewRecorder()
		c.h(rec, req)
		if rec.Code != http.StatusForbidden {
			t.Fatalf("%s: status = %d, want 403", c.name, rec.Code)
		}
	}
}

func TestSubscriptionsLifecycle(t *testing.T) {
	s := newTestServer()
	rec := doJSON(t, s.SubscriptionsHandler, http.MethodPost, "/v1/subscriptions", model.SubscriptionRequest{
		URL: "https://example.com/hook", Events: []string{"plan.completed"}, Secret: "shh",
	})
	if rec.Code != http.StatusCreated {
		t.Fatalf("status = %d body=%s", rec.Code, rec.Body.String())
	}
	var sub model.Subscription
	decodeBody(t, rec, &sub)
	if sub.Secret != "" {
		t.Fatal("secret must not be echoed")
	}

	rec = doJSON(t, s.SubscriptionsHandler, http.MethodGet, "/v1/subscriptions", nil)
	var list struct {
		Items []model.Subscription `json:"items"`
	}
	decodeBody(t, rec, &list)
	if len(list.Items) != 1 {
		t.Fatalf("items = %+v", list.Items)
	}

	req := httptest.NewRequest(http.MethodDelete, "/v1/subscriptions/"+sub.ID, nil)
	rec2 := httptest.NewRecorder()
	s.SubscriptionByIDHandler(rec2, req)
	if rec2.Code != http.StatusNoContent {
		t.Fatalf("delete status = %d", rec2.Code)
	}

	rec = doJSON(t, s.SubscriptionsHandler, http.MethodPost, "/v1/subscriptions", model.SubscriptionRequest{URL: ""})
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("empty url status = %d, want 400", rec.Code)
	}
}

func TestOptimizeTriggersWebhookEnqueue(t *testing.T) {
	s := newTestServer()
	doJSON(t, s.SubscriptionsHandler, http.MethodPost, "/v1/subscriptions", model.SubscriptionRequest{
		URL: "https://example.com/hook", Events: []string{"plan.completed"}, Secret: "shh",
	})
	rec := doJSON(t, s.OptimizeHandler, http.MethodPost, "/v1/optimize", model.OptimizeRequest{Hour: 8})
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	due, err := s.Store.FetchDueWebhookDeliveries(context.Background(), 10)
	if err != nil || len(due) != 1 {
		t.Fatalf("due = %+v err = %v", due, err)
	}
	if due[0].EventType != "plan.completed" || !strings.Contains(string(due[0].Payload), "planId") {
		t.Fatalf("delivery = %+v", due[0])
	}
}

func TestOptimizeFailureEmitsPlanFailedWebhook(t *testing.T) {
	s := newTestServer()
	doJSON(t, s.SubscriptionsHandler, http.MethodPost, "/v1/subscriptions", model.SubscriptionRequest{
		URL: "https://example.com/hook", Events: []string{"plan.failed"}, Secret: "shh",
	})
	rec := doJSON(t, s.OptimizeHandler, http.MethodPost, "/v1/optimize", model.OptimizeRequest{GraphID: "missing"})
	if rec.Code != http.StatusNotFound {
		t.Fatalf("status = %d, want 404", rec.Code)
	}
	due, err := s.Store.FetchDueWebhookDeliveries(context.Background(), 10)
	if err != nil || len(due) != 1 {
		t.Fatalf("due = %+v err = %v", due, err)
	}
	if due[0].EventType != "plan.failed" {
		t.Fatalf("event type = %q, want plan.failed", due[0].EventType)
	}
}

func TestOptimizeMonetaryUsesConfigUnitRate(t *testing.T) {
	s := newTestServer()
	s.Cfg.Optimizer.UnitRate = 3
	in := model.GraphIn{
		Nodes: []model.NodeIn{{ID: 0, Name: "Depot"}, {ID: 1}, {ID: 2}},
		Edges: []model.EdgeIn{
			{From: 0, To: 1, DistanceKm: 10, SpeedKph: 50},
			{From: 1, To: 2, DistanceKm: 10, SpeedKph: 50},
		},
	}
	var g model.GraphOut
	decodeBody(t, doJSON(t, s.GraphsHandler, http.MethodPost, "/v1/graphs", in), &g)
	doJSON(t, s.OrdersHandler, http.MethodPost, "/v1/orders", map[string]any{
		"orders": []model.OrderIn{{ExternalRef: "a", Destination: 2, WeightTons: 5}},
	})

	rec := doJSON(t, s.OptimizeHandler, http.MethodPost, "/v1/optimize", model.OptimizeRequest{
		GraphID: g.ID, Hour: 12, CostKind: "monetary",
	})
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d body=%s", rec.Code, rec.Body.String())
	}
	var p model.Plan
	decodeBody(t, rec, &p)
	// 20 km at no congestion, money cost = distance * unit rate
	if len(p.Routes) != 1 || p.Routes[0].Cost != 60 {
		t.Fatalf("routes = %+v, want one route costing 60", p.Routes)
	}
}

func TestPlanEventsReplayCompleted(t *testing.T) {
	s := newTestServer()
	rec := doJSON(t, s.OptimizeHandler, http.MethodPost, "/v1/optimize", model.OptimizeRequest{Hour: 12})
	if rec.Code != http.StatusOK {
		t.Fatalf("optimize status = %d", rec.Code)
	}
	var p model.Plan
	decodeBody(t, rec, &p)

	// a pre-cancelled context makes the stream return right after the replay
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	req := httptest.NewRequest(http.MethodGet, "/v1/plans/"+p.ID+"/events", nil).WithContext(ctx)
	rec2 := httptest.NewRecorder()
	s.PlanByIDHandler(rec2, req)
	if ct := rec2.Header().Get("Content-Type"); ct != "text/event-stream" {
		t.Fatalf("content type = %q", ct)
	}
	body := rec2.Body.String()
	if !strings.Contains(body, "event: plan.completed") || !strings.Contains(body, p.ID) {
		t.Fatalf("stream body = %q", body)
	}
}

func TestPlanEventsLivePublish(t *testing.T) {
	s := newTestServer()
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		defer close(done)
		for i := 0; i < 200; i++ {
			s.Broker.Publish("p-live", PlanEvent{Type: "plan.completed", Data: map[string]any{"planId": "p-live"}})
			time.Sleep(time.Millisecond)
		}
		cancel()
	}()
	req := httptest.NewRequest(http.MethodGet, "/v1/plans/p-live/events", nil).WithContext(ctx)
	rec := httptest.NewRecorder()
	s.PlanByIDHandler(rec, req)
	<-done
	if !strings.Contains(rec.Body.String(), "p-live") {
		t.Fatalf("stream body = %q", rec.Body.String())
	}
}

func TestRateLimitMiddleware(t *testing.T) {
	s := newTestServer()
	s.Limiter = rate.NewLimiter(0, 0)
	h := s.RateLimit(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) { w.WriteHeader(200) }))
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/v1/plans", nil))
	if rec.Code != http.StatusTooManyRequests {
		t.Fatalf("status = %d, want 429", rec.Code)
	}
}

func TestHealthAndDebug(t *testing.T) {
	s := newTestServer()
	rec := doJSON(t, s.HealthHandler, http.MethodGet, "/healthz", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("health = %d", rec.Code)
	}
	rec = doJSON(t, s.ReadyHandler, http.MethodGet, "/readyz", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("ready = %d", rec.Code)
	}
	rec = doJSON(t, s.DebugJSON, http.MethodGet, "/debug", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("debug = %d", rec.Code)
	}
}
