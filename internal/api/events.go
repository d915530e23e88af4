package api

import (
	"encoding/json"
	"fmt"
	"net/http"

	"fleetnav/internal/webhooks"
)

// planEvents streams broker events for one plan as Server-Sent Events.
// Connecting after the run already finished still yields a plan.completed
// event replayed from the store, so late subscribers are not left hanging.
func (s *Server) planEvents(w http.ResponseWriter, r *http.Request, tenant, planID string) {
	fl, ok := w.(http.Flusher)
	if !ok {
		writeProblem(w, http.StatusInternalServerError, "Streaming unsupported", "response writer cannot flush", r.URL.Path)
		return
	}
	ch := s.Broker.Subscribe(planID)
	defer s.Broker.Unsubscribe(planID, ch)

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.WriteHeader(http.StatusOK)

	if p, err := s.Store.GetPlan(r.Context(), tenant, planID); err == nil {
		writeSSE(w, PlanEvent{Type: webhooks.EventPlanCompleted, Data: map[string]any{
			"planId":     p.ID,
			"vehicles":   p.Totals.Vehicles,
			"unassigned": len(p.Unassigned),
			"failures":   len(p.Failures),
		}})
	}
	fl.Flush()

	for {
		select {
		case <-r.Context().Done():
			return
		case evt, ok := <-ch:
			if !ok {
				return
			}
			writeSSE(w, evt)
			fl.Flush()
		}
	}
}

func writeSSE(w http.ResponseWriter, evt PlanEvent) {
	data, _ := json.Marshal(evt.Data)
	fmt.Fprintf(w, "event: %s\ndata: %s\n\n", evt.Type, data)
}
