package api

import (
	"encoding/json"
	"net/http"
)

// Problem is the error body used on every non-2xx response (RFC 7807).
// Type stays "about:blank": the title and status carry the meaning.
type Problem struct {
	Type     string `json:"type"`
	Title    string `json:"title"`
	Status   int    `json:"status"`
	Detail   string `json:"detail,omitempty"`
	Instance string `json:"instance,omitempty"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	buf, err := json.Marshal(v)
	if err != nil {
		http.Error(w, `{"title":"encoding failed","status":500}`, http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_, _ = w.Write(buf)
}

func writeProblem(w http.ResponseWriter, status int, title, detail, instance string) {
	p := Problem{Type: "about:blank", Title: title, Status: status, Detail: detail, Instance: instance}
	writeJSON(w, status, p)
}
