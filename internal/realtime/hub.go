// Package realtime streams recorded arm states to websocket clients. A
// client picks its arms with ?arm=PSM1&arm=ECM (or ?arm=PSM1,ECM); without
// the parameter it receives every arm.
package realtime

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/PetoAdam/homenavi/arm-bridge/internal/prm"
)

const EventStateJointDesired = "state_joint_desired"

const (
	sendBuffer   = 64
	pingInterval = 25 * time.Second
	readTimeout  = 60 * time.Second
	writeTimeout = 5 * time.Second
)

type Event struct {
	Type  string          `json:"type"`
	Arm   string          `json:"arm"`
	State *prm.StateJoint `json:"state,omitempty"`
	At    time.Time       `json:"at"`
}

type Hub struct {
	upgrader websocket.Upgrader

	mu      sync.Mutex
	viewers map[*viewer]struct{}
}

// viewer is one websocket connection and the arms it asked for.
type viewer struct {
	conn *websocket.Conn
	out  chan []byte
	arms map[string]bool
}

func (v *viewer) follows(arm string) bool {
	return len(v.arms) == 0 || v.arms[arm]
}

func NewHub() *Hub {
	return &Hub{
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 4096,
			// Access is checked by the auth middleware or the gateway.
			CheckOrigin: func(*http.Request) bool { return true },
		},
		viewers: map[*viewer]struct{}{},
	}
}

// armFilter collects ?arm= values; repeated and comma separated forms mix.
func armFilter(r *http.Request) map[string]bool {
	arms := map[string]bool{}
	for _, raw := range r.URL.Query()["arm"] {
		for _, a := range strings.Split(raw, ",") {
			if a = strings.TrimSpace(a); a != "" {
				arms[a] = true
			}
		}
	}
	return arms
}

func (h *Hub) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	arms := armFilter(r)
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		slog.Debug("websocket upgrade failed", "error", err)
		return
	}

	v := &viewer{conn: conn, out: make(chan []byte, sendBuffer), arms: arms}
	h.mu.Lock()
	h.viewers[v] = struct{}{}
	h.mu.Unlock()
	slog.Debug("realtime viewer joined", "arms", len(arms))

	go h.writeLoop(v)
	h.readLoop(v)
}

// Broadcast sends ev to every viewer following ev.Arm. A viewer whose buffer
// is full is disconnected.
func (h *Hub) Broadcast(ev Event) {
	if ev.At.IsZero() {
		ev.At = time.Now().UTC()
	}
	var msg []byte

	h.mu.Lock()
	defer h.mu.Unlock()
	for v := range h.viewers {
		if !v.follows(ev.Arm) {
			continue
		}
		if msg == nil {
			b, err := json.Marshal(ev)
			if err != nil {
				slog.Warn("realtime event encode failed", "arm", ev.Arm, "error", err)
				return
			}
			msg = b
		}
		select {
		case v.out <- msg:
		default:
			slog.Debug("realtime viewer too slow, dropping", "arm", ev.Arm)
			h.dropLocked(v)
		}
	}
}

func (h *Hub) ClientCount() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.viewers)
}

func (h *Hub) drop(v *viewer) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.dropLocked(v)
}

func (h *Hub) dropLocked(v *viewer) {
	if _, ok := h.viewers[v]; !ok {
		return
	}
	delete(h.viewers, v)
	close(v.out)
	_ = v.conn.Close()
}

// readLoop only services pongs and notices the peer going away; viewers
// send nothing.
func (h *Hub) readLoop(v *viewer) {
	defer h.drop(v)
	v.conn.SetReadLimit(1024)
	_ = v.conn.SetReadDeadline(time.Now().Add(readTimeout))
	v.conn.SetPongHandler(func(string) error {
		return v.conn.SetReadDeadline(time.Now().Add(readTimeout))
	})
	for {
		if _, _, err := v.conn.ReadMessage(); err != nil {
			return
		}
	}
}

func (h *Hub) writeLoop(v *viewer) {
	ping := time.NewTicker(pingInterval)
	defer ping.Stop()

	for {
		var (
			kind int
			data []byte
		)
		select {
		case msg, open := <-v.out:
			if !open {
				_ = v.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			kind, data = websocket.TextMessage, msg
		case <-ping.C:
			kind = websocket.PingMessage
		}
		_ = v.conn.SetWriteDeadline(time.Now().Add(writeTimeout))
		if err := v.conn.WriteMessage(kind, data); err != nil {
			return
		}
	}
}
