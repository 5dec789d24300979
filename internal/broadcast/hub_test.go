package broadcast

import (
	"encoding/json"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"github.com/SeamusWaldron/qiyicube_ble_library/pkg/types"
)

func dial(t *testing.T, srv *httptest.Server) *websocket.Conn {
	t.Helper()
	url := "ws" + strings.TrimPrefix(srv.URL, "http")
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatalf("Dial() error = %v", err)
	}
	t.Cleanup(func() { conn.Close() })
	return conn
}

func readEvent(t *testing.T, conn *websocket.Conn) Event {
	t.Helper()
	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	_, data, err := conn.ReadMessage()
	if err != nil {
		t.Fatalf("ReadMessage() error = %v", err)
	}
	var e Event
	if err := json.Unmarshal(data, &e); err != nil {
		t.Fatalf("bad event %s: %v", data, err)
	}
	return e
}

func waitClients(t *testing.T, h *Hub, n int) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for h.ClientCount() != n {
		if time.Now().After(deadline) {
			t.Fatalf("ClientCount() = %d, want %d", h.ClientCount(), n)
		}
		time.Sleep(10 * time.Millisecond)
	}
}

func TestPublishReachesClients(t *testing.T) {
	hub := NewHub(nil)
	srv := httptest.NewServer(hub)
	defer srv.Close()
	defer hub.Close()

	a := dial(t, srv)
	b := dial(t, srv)
	waitClients(t, hub, 2)

	at := time.UnixMilli(1700000000000)
	hub.Publish(MoveEvent(types.Move{Face: types.FaceR, Code: 3, Time: at}))

	for _, conn := range []*websocket.Conn{a, b} {
		e := readEvent(t, conn)
		if e.Type != EventMove || e.Move != "R" || e.Time != at.UnixMilli() {
			t.Errorf("event = %+v", e)
		}
	}
}

func TestNewClientGetsLastState(t *testing.T) {
	hub := NewHub(nil)
	srv := httptest.NewServer(hub)
	defer srv.Close()
	defer hub.Close()

	hub.Publish(StateEvent(types.SolvedState, 77, time.Now()))

	conn := dial(t, srv)
	e := readEvent(t, conn)
	if e.Type != EventState || !e.Solved {
		t.Errorf("event = %+v", e)
	}
	if e.Battery == nil || *e.Battery != 77 {
		t.Errorf("battery = %v, want 77", e.Battery)
	}
	if e.Facelets != types.SolvedState.Notation() {
		t.Errorf("facelets = %q", e.Facelets)
	}
}

func TestStateEventUnknownBattery(t *testing.T) {
	e := StateEvent(types.SolvedState, -1, time.Now())
	if e.Battery != nil {
		t.Error("unknown battery should be omitted")
	}
}

func TestCloseDisconnectsClients(t *testing.T) {
	hub := NewHub(nil)
	srv := httptest.NewServer(hub)
	defer srv.Close()

	conn := dial(t, srv)
	waitClients(t, hub, 1)

	hub.Close()
	if hub.ClientCount() != 0 {
		t.Errorf("ClientCount() = %d after Close", hub.ClientCount())
	}

	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	if _, _, err := conn.ReadMessage(); err == nil {
		t.Error("expected connection to close")
	}
}
