package api

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"github.com/vrewcraft/backend/internal/progress"
)

func dialTestServer(t *testing.T, cfg ServerConfig) (*websocket.Conn, func()) {
	t.Helper()

	srv := httptest.NewServer(NewRouter(cfg))
	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/ws"

	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		srv.Close()
		t.Fatalf("dialing %s: %v", url, err)
	}
	return conn, func() {
		conn.Close()
		srv.Close()
	}
}

func readMessage(t *testing.T, conn *websocket.Conn) wsEnvelope {
	t.Helper()

	conn.SetReadDeadline(time.Now().Add(5 * time.Second))
	var msg wsEnvelope
	if err := conn.ReadJSON(&msg); err != nil {
		t.Fatalf("reading websocket message: %v", err)
	}
	return msg
}

type wsEnvelope struct {
	Type string          `json:"type"`
	Data json.RawMessage `json:"data,omitempty"`
}

func TestWebSocket_ReceivesHubEvents(t *testing.T) {
	hub := newTestHub(t)
	cfg := newTestConfig(t, &fakeEngine{}, &fakeProber{})
	cfg.Hub = hub

	conn, cleanup := dialTestServer(t, cfg)
	defer cleanup()

	// Attach happens inside the handler; wait until the hub sees it.
	deadline := time.Now().Add(2 * time.Second)
	for hub.Len() == 0 {
		if time.Now().After(deadline) {
			t.Fatal("observer never attached")
		}
		time.Sleep(5 * time.Millisecond)
	}

	hub.Emit(progress.Event{
		Type: progress.EventProgress,
		Data: progress.ProgressPayload{OperationID: "op-1", Operation: "trim", Progress: 50},
	})

	msg := readMessage(t, conn)
	if msg.Type != "progress" {
		t.Fatalf("type = %q, want progress", msg.Type)
	}

	var payload progress.ProgressPayload
	if err := json.Unmarshal(msg.Data, &payload); err != nil {
		t.Fatalf("decoding payload: %v", err)
	}
	if payload.OperationID != "op-1" || payload.Progress != 50 {
		t.Errorf("payload = %+v", payload)
	}
}

func TestWebSocket_PingPong(t *testing.T) {
	hub := newTestHub(t)
	cfg := newTestConfig(t, &fakeEngine{}, &fakeProber{})
	cfg.Hub = hub

	conn, cleanup := dialTestServer(t, cfg)
	defer cleanup()

	if err := conn.WriteJSON(wsEnvelope{Type: "ping"}); err != nil {
		t.Fatalf("writing ping: %v", err)
	}

	msg := readMessage(t, conn)
	if msg.Type != "pong" {
		t.Errorf("type = %q, want pong", msg.Type)
	}
}

func TestWebSocket_DetachOnDisconnect(t *testing.T) {
	hub := newTestHub(t)
	cfg := newTestConfig(t, &fakeEngine{}, &fakeProber{})
	cfg.Hub = hub

	conn, cleanup := dialTestServer(t, cfg)
	defer cleanup()

	deadline := time.Now().Add(2 * time.Second)
	for hub.Len() == 0 {
		if time.Now().After(deadline) {
			t.Fatal("observer never attached")
		}
		time.Sleep(5 * time.Millisecond)
	}

	conn.Close()

	deadline = time.Now().Add(2 * time.Second)
	for hub.Len() != 0 {
		if time.Now().After(deadline) {
			t.Fatal("observer never detached after disconnect")
		}
		time.Sleep(5 * time.Millisecond)
	}
}

func TestWebSocket_RouteAbsentWithoutHub(t *testing.T) {
	cfg := newTestConfig(t, &fakeEngine{}, &fakeProber{})
	router := NewRouter(cfg)

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/ws", nil))
	if rec.Code != http.StatusNotFound {
		t.Errorf("status = %d, want 404", rec.Code)
	}
}
