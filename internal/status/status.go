package status

import (
	"context"
	"encoding/json"
	"log/slog"
	"sync"
	"time"

	"github.com/PetoAdam/homenavi/arm-bridge/internal/mqtt"
)

const (
	schema        = "armbridge.v1"
	HelloTopic    = "homenavi/armbridge/hello"
	StatusPrefix  = "homenavi/armbridge/status/"
	heartbeatRate = 20 * time.Second
)

type Arm struct {
	Name      string   `json:"name"`
	Interface string   `json:"interface"`
	Commands  []string `json:"commands"`
	Topics    []string `json:"topics"`
}

type Config struct {
	BridgeID string
	Version  string
	Arms     []Arm
	// Heartbeat overrides the 20s status heartbeat; zero keeps the default.
	Heartbeat time.Duration
}

// Announcer publishes retained hello/status messages so the rest of homenavi
// can see which arms this bridge serves.
type Announcer struct {
	client mqtt.ClientAPI
	cfg    Config

	mu     sync.Mutex
	cancel context.CancelFunc
	done   chan struct{}
}

func New(client mqtt.ClientAPI, cfg Config) *Announcer {
	if cfg.Heartbeat <= 0 {
		cfg.Heartbeat = heartbeatRate
	}
	return &Announcer{client: client, cfg: cfg}
}

func (a *Announcer) Start(ctx context.Context) {
	if a.cfg.BridgeID == "" {
		slog.Info("arm bridge announcements disabled", "reason", "empty bridge id")
		return
	}
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.cancel != nil {
		return
	}
	ctx, a.cancel = context.WithCancel(ctx)
	a.done = make(chan struct{})

	a.publishHello()
	a.publishStatus("online", "startup")

	go func(done chan struct{}) {
		defer close(done)
		ticker := time.NewTicker(a.cfg.Heartbeat)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				a.publishStatus("online", "heartbeat")
			}
		}
	}(a.done)
}

func (a *Announcer) Stop() {
	a.mu.Lock()
	cancel, done := a.cancel, a.done
	a.cancel, a.done = nil, nil
	a.mu.Unlock()
	if cancel == nil {
		return
	}
	cancel()
	<-done
	a.publishStatus("offline", "shutdown")
}

func (a *Announcer) publishHello() {
	a.publish(HelloTopic, map[string]any{
		"schema":    schema,
		"type":      "hello",
		"bridge_id": a.cfg.BridgeID,
		"version":   a.cfg.Version,
		"arms":      a.cfg.Arms,
		"ts":        time.Now().UnixMilli(),
	})
}

func (a *Announcer) publishStatus(status, reason string) {
	a.publish(StatusPrefix+a.cfg.BridgeID, map[string]any{
		"schema":    schema,
		"type":      "status",
		"bridge_id": a.cfg.BridgeID,
		"status":    status,
		"reason":    reason,
		"version":   a.cfg.Version,
		"arm_count": len(a.cfg.Arms),
		"ts":        time.Now().UnixMilli(),
	})
}

func (a *Announcer) publish(topic string, msg map[string]any) {
	b, err := json.Marshal(msg)
	if err != nil {
		return
	}
	if err := a.client.PublishWith(topic, b, true); err != nil {
		slog.Warn("arm bridge announce failed", "topic", topic, "error", err)
	}
}
