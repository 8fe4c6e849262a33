package api

import (
	"bufio"
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"routeopt/internal/model"
)

func TestSolveEvents_SSE(t *testing.T) {
	srv := httptest.NewServer(newTestServer(t).Routes())
	defer srv.Close()

	resp, err := http.Get(srv.URL + "/v1/solves/run-42/events")
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "text/event-stream", resp.Header.Get("Content-Type"))

	lines := bufio.NewScanner(resp.Body)
	next := func() string {
		require.True(t, lines.Scan(), "stream ended early")
		return lines.Text()
	}
	// the first heartbeat is written after the subscription exists
	require.Equal(t, "event: heartbeat", next())

	body, err := json.Marshal(twoStops())
	require.NoError(t, err)
	req, err := http.NewRequest(http.MethodPost, srv.URL+"/v1/solve", bytes.NewReader(body))
	require.NoError(t, err)
	req.Header.Set("X-Solve-Id", "run-42")
	solved, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	solved.Body.Close()

	var events []string
	var last string
	for lines.Scan() {
		line := lines.Text()
		if ev, ok := strings.CutPrefix(line, "event: "); ok {
			events = append(events, ev)
		}
		if data, ok := strings.CutPrefix(line, "data: "); ok {
			last = data
		}
	}
	require.NotEmpty(t, events)
	assert.Contains(t, events, EventProgress)
	assert.Equal(t, EventCompleted, events[len(events)-1])

	var out model.SolveResponse
	require.NoError(t, json.Unmarshal([]byte(last), &out))
	assert.Equal(t, model.StatusOK, out.Status)
}

func TestSolveEvents_BadPath(t *testing.T) {
	h := newTestServer(t).Routes()
	assert.Equal(t, http.StatusNotFound, do(t, h, http.MethodGet, "/v1/solves/abc", nil, nil).Code)
	assert.Equal(t, http.StatusNotFound, do(t, h, http.MethodGet, "/v1/solves/abc/stream", nil, nil).Code)
	assert.Equal(t, http.StatusMethodNotAllowed, do(t, h, http.MethodPost, "/v1/solves/abc/events", nil, nil).Code)
}

func dialSolve(t *testing.T, srv *httptest.Server) *websocket.Conn {
	t.Helper()
	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/v1/solve/ws"
	conn, resp, err := websocket.DefaultDialer.Dial(url, http.Header{"X-Tenant-Id": {"acme"}})
	require.NoError(t, err)
	resp.Body.Close()
	t.Cleanup(func() { _ = conn.Close() })
	_ = conn.SetReadDeadline(time.Now().Add(10 * time.Second))
	return conn
}

func TestSolveWS_RoundTrip(t *testing.T) {
	srv := httptest.NewServer(newTestServer(t).Routes())
	defer srv.Close()
	conn := dialSolve(t, srv)

	payload, err := json.Marshal(twoStops())
	require.NoError(t, err)
	require.NoError(t, conn.WriteJSON(wsMessage{Type: "solve", ID: "ws-1", Payload: payload}))

	var progress []model.ProgressEvent
	for {
		var msg wsMessage
		require.NoError(t, conn.ReadJSON(&msg))
		assert.Equal(t, "ws-1", msg.ID)
		if msg.Type == "progress" {
			var evt model.ProgressEvent
			require.NoError(t, json.Unmarshal(msg.Payload, &evt))
			progress = append(progress, evt)
			continue
		}
		require.Equal(t, "result", msg.Type)
		var resp model.SolveResponse
		require.NoError(t, json.Unmarshal(msg.Payload, &resp))
		assert.Equal(t, model.StatusOK, resp.Status)
		require.NotNil(t, resp.TotalDistance)
		break
	}
	require.NotEmpty(t, progress)
	assert.Equal(t, "construct", progress[0].Phase)
	assert.Equal(t, "ws-1", progress[0].SolveID)

	_, _, err = conn.ReadMessage()
	assert.True(t, websocket.IsCloseError(err, websocket.CloseNormalClosure), "got %v", err)
}

func TestSolveWS_Rejects(t *testing.T) {
	srv := httptest.NewServer(newTestServer(t).Routes())
	defer srv.Close()

	conn := dialSolve(t, srv)
	require.NoError(t, conn.WriteJSON(wsMessage{Type: "hello"}))
	var msg wsMessage
	require.NoError(t, conn.ReadJSON(&msg))
	assert.Equal(t, "error", msg.Type)

	conn = dialSolve(t, srv)
	require.NoError(t, conn.WriteJSON(wsMessage{Type: "solve", Payload: json.RawMessage(`{"locations":[],"options":{"horizon_minutes":-1}}`)}))
	require.NoError(t, conn.ReadJSON(&msg))
	assert.Equal(t, "error", msg.Type)
	var p Problem
	require.NoError(t, json.Unmarshal(msg.Payload, &p))
	assert.Equal(t, "Invalid options", p.Title)
}
