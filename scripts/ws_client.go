// Demo WebSocket client: streams vehicle routes from /v1/optimize/stream.
package main

import (
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"net/url"
	"os"

	"github.com/gorilla/websocket"
)

type wsMessage struct {
	Type  string          `json:"type"`
	Error string          `json:"error,omitempty"`
	Route json.RawMessage `json:"route,omitempty"`
	Plan  json.RawMessage `json:"plan,omitempty"`
}

func main() {
	port := os.Getenv("PORT")
	if port == "" {
		port = "8080"
	}
	u := url.URL{Scheme: "ws", Host: "localhost:" + port, Path: "/v1/optimize/stream"}
	hdr := http.Header{}
	hdr.Set("X-Tenant-Id", "t_demo")
	hdr.Set("X-Role", "admin")
	c, _, err := websocket.DefaultDialer.Dial(u.String(), hdr)
	if err != nil {
		log.Fatal(err)
	}
	defer func() { _ = c.Close() }()

	req := map[string]any{"algorithm": "dijkstra", "costKind": "time", "hour": 8}
	if err := c.WriteJSON(req); err != nil {
		log.Fatal(err)
	}

	for {
		var msg wsMessage
		if err := c.ReadJSON(&msg); err != nil {
			log.Fatal(err)
		}
		switch msg.Type {
		case "route":
			fmt.Printf("route: %s\n", msg.Route)
		case "plan.completed":
			fmt.Printf("plan: %s\n", msg.Plan)
			return
		case "error":
			log.Fatalf("server error: %s", msg.Error)
		}
	}
}
