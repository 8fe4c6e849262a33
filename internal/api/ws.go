package api

import (
	"context"
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"routeopt/internal/model"
)

var upgrader = websocket.Upgrader{CheckOrigin: func(_ *http.Request) bool { return true }}

// wsMessage frames the solve protocol. Client sends {"type":"solve",
// "payload":<SolveRequest>}; server answers with "progress" messages, then
// one "result" (or "error" for a rejected request) and closes.
type wsMessage struct {
	Type    string          `json:"type"`
	ID      string          `json:"id,omitempty"`
	Payload json.RawMessage `json:"payload,omitempty"`
}

// SolveWSHandler handles /v1/solve/ws.
func (s *Server) SolveWSHandler(w http.ResponseWriter, r *http.Request) {
	ctx, tenant := s.withTenant(r)
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		return
	}
	defer func() { _ = conn.Close() }()
	if s.Config.MaxBodyBytes > 0 {
		conn.SetReadLimit(s.Config.MaxBodyBytes)
	}

	var mu sync.Mutex
	write := func(m wsMessage) error {
		mu.Lock()
		defer mu.Unlock()
		_ = conn.SetWriteDeadline(time.Now().Add(10 * time.Second))
		return conn.WriteJSON(m)
	}
	reject := func(id, title, detail string) {
		b, _ := json.Marshal(Problem{Type: "about:blank", Title: title, Status: http.StatusBadRequest, Detail: detail, Instance: r.URL.Path})
		_ = write(wsMessage{Type: "error", ID: id, Payload: b})
	}

	var msg wsMessage
	if err := conn.ReadJSON(&msg); err != nil {
		return
	}
	if msg.Type != "solve" {
		reject(msg.ID, "Unexpected message", "first message must have type solve")
		return
	}
	var req model.SolveRequest
	if err := json.Unmarshal(msg.Payload, &req); err != nil {
		reject(msg.ID, "Invalid JSON", err.Error())
		return
	}
	base := s.tenantOptions(ctx, tenant)
	if _, err := base.With(req.Options); err != nil {
		reject(msg.ID, "Invalid options", err.Error())
		return
	}
	id := msg.ID
	if id == "" {
		id = uuid.NewString()
	}

	// A read error means the client went away; stop solving.
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	go func() {
		defer cancel()
		for {
			if _, _, err := conn.NextReader(); err != nil {
				return
			}
		}
	}()

	resp, _ := s.runSolve(ctx, solveJob{
		tenant: tenant,
		id:     id,
		req:    req,
		base:   base,
		onProgress: func(evt model.ProgressEvent) {
			b, _ := json.Marshal(evt)
			_ = write(wsMessage{Type: "progress", ID: id, Payload: b})
		},
	})
	b, _ := json.Marshal(resp)
	if err := write(wsMessage{Type: "result", ID: id, Payload: b}); err != nil {
		return
	}
	mu.Lock()
	_ = conn.WriteControl(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""), time.Now().Add(time.Second))
	mu.Unlock()
}
