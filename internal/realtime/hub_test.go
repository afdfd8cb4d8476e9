package realtime

import (
	"encoding/json"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"github.com/PetoAdam/homenavi/arm-bridge/internal/prm"
)

func dial(t *testing.T, hub *Hub, srv *httptest.Server, query string) *websocket.Conn {
	t.Helper()
	before := hub.ClientCount()
	url := "ws" + strings.TrimPrefix(srv.URL, "http") + query
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatalf("dial %s: %v", query, err)
	}
	t.Cleanup(func() { _ = conn.Close() })

	deadline := time.Now().Add(2 * time.Second)
	for hub.ClientCount() == before {
		if time.Now().After(deadline) {
			t.Fatalf("client %q never registered", query)
		}
		time.Sleep(time.Millisecond)
	}
	return conn
}

func readEvent(t *testing.T, conn *websocket.Conn) Event {
	t.Helper()
	_ = conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	_, msg, err := conn.ReadMessage()
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	var ev Event
	if err := json.Unmarshal(msg, &ev); err != nil {
		t.Fatalf("decode: %v", err)
	}
	return ev
}

func stateEvent(arm string, joints int) Event {
	s := prm.StateJoint{Position: make([]float64, joints), Valid: true}
	return Event{Type: EventStateJointDesired, Arm: arm, State: &s}
}

func TestBroadcastReachesClient(t *testing.T) {
	hub := NewHub()
	srv := httptest.NewServer(hub)
	defer srv.Close()
	conn := dial(t, hub, srv, "")

	hub.Broadcast(stateEvent("PSM1", 2))

	ev := readEvent(t, conn)
	if ev.Type != EventStateJointDesired || ev.Arm != "PSM1" || ev.State == nil || len(ev.State.Position) != 2 {
		t.Fatalf("unexpected event %+v", ev)
	}
	if ev.At.IsZero() {
		t.Fatalf("expected broadcast time to be set")
	}
}

func TestArmFilter(t *testing.T) {
	hub := NewHub()
	srv := httptest.NewServer(hub)
	defer srv.Close()
	psm1 := dial(t, hub, srv, "?arm=PSM1")
	pair := dial(t, hub, srv, "?arm=MTML,ECM")

	hub.Broadcast(stateEvent("ECM", 4))
	hub.Broadcast(stateEvent("PSM1", 7))

	// PSM1 viewer skips the ECM event, so its first message is PSM1.
	if ev := readEvent(t, psm1); ev.Arm != "PSM1" {
		t.Fatalf("PSM1 viewer received %q", ev.Arm)
	}
	if ev := readEvent(t, pair); ev.Arm != "ECM" {
		t.Fatalf("MTML/ECM viewer received %q first", ev.Arm)
	}

	// Nothing else is queued for the ECM viewer.
	_ = pair.SetReadDeadline(time.Now().Add(100 * time.Millisecond))
	if _, msg, err := pair.ReadMessage(); err == nil {
		t.Fatalf("MTML/ECM viewer received unexpected %s", msg)
	}
}

func TestArmFilterParsing(t *testing.T) {
	req := httptest.NewRequest("GET", "/api/arms/ws?arm=PSM1,%20PSM2&arm=ECM&arm=", nil)
	got := armFilter(req)
	if len(got) != 3 || !got["PSM1"] || !got["PSM2"] || !got["ECM"] {
		t.Fatalf("unexpected filter %v", got)
	}
	v := &viewer{arms: map[string]bool{}}
	if !v.follows("anything") {
		t.Fatalf("empty filter should follow every arm")
	}
}

func TestBroadcastWithoutClients(t *testing.T) {
	hub := NewHub()
	hub.Broadcast(stateEvent("PSM1", 1))
	if hub.ClientCount() != 0 {
		t.Fatalf("expected no clients")
	}
}
