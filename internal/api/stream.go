package api

import (
	"net/http"
	"time"

	"github.com/gorilla/websocket"

	"fleetnav/internal/model"
	"fleetnav/internal/webhooks"
)

var upgrader = websocket.Upgrader{CheckOrigin: func(_ *http.Request) bool { return true }}

type wsMessage struct {
	Type  string              `json:"type"`
	Error string              `json:"error,omitempty"`
	Route *model.VehicleRoute `json:"route,omitempty"`
	Plan  *model.Plan         `json:"plan,omitempty"`
}

// OptimizeStreamHandler handles /v1/optimize/stream. The client sends one
// OptimizeRequest as its first message; vehicle routes are streamed back as
// they are computed, followed by the completed plan.
func (s *Server) OptimizeStreamHandler(w http.ResponseWriter, r *http.Request) {
	p := s.getPrincipal(r)
	if !p.CanOptimize() {
		writeProblem(w, http.StatusForbidden, "Forbidden", "dispatcher or admin required", r.URL.Path)
		return
	}
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		return
	}
	defer func() { _ = conn.Close() }()

	conn.SetReadLimit(1 << 20)
	_ = conn.SetReadDeadline(time.Now().Add(30 * time.Second))

	var req model.OptimizeRequest
	if err := conn.ReadJSON(&req); err != nil {
		_ = conn.WriteJSON(wsMessage{Type: "error", Error: "invalid request: " + err.Error()})
		return
	}
	if err := validateOptimizeRequest(&req); err != nil {
		_ = conn.WriteJSON(wsMessage{Type: "error", Error: err.Error()})
		return
	}
	if req.TenantID == "" {
		req.TenantID = p.Tenant
	}

	emit := func(vr model.VehicleRoute) {
		route := vr
		_ = conn.WriteJSON(wsMessage{Type: "route", Route: &route})
	}
	result, err := s.runOptimize(r.Context(), req, emit)
	if err != nil {
		_ = conn.WriteJSON(wsMessage{Type: "error", Error: err.Error()})
		return
	}
	_ = conn.WriteJSON(wsMessage{Type: webhooks.EventPlanCompleted, Plan: &result})
}
