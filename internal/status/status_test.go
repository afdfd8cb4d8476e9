package status

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/PetoAdam/homenavi/arm-bridge/internal/mqtt/mqtttest"
)

func decode(t *testing.T, b []byte) map[string]any {
	t.Helper()
	var m map[string]any
	if err := json.Unmarshal(b, &m); err != nil {
		t.Fatalf("decode: %v", err)
	}
	return m
}

func TestAnnouncerLifecycle(t *testing.T) {
	client := mqtttest.New()
	a := New(client, Config{
		BridgeID: "armbridge-1",
		Version:  "dev",
		Arms:     []Arm{{Name: "PSM1", Interface: "PSM1", Commands: []string{"GetStateJointDesired"}, Topics: []string{"/remote/PSM1/state_joint_desired"}}},
	})
	a.Start(context.Background())
	a.Stop()
	a.Stop()

	pubs := client.Published()
	if len(pubs) != 3 {
		t.Fatalf("expected hello, online, offline; got %d messages", len(pubs))
	}
	if pubs[0].Topic != HelloTopic || !pubs[0].Retain {
		t.Fatalf("unexpected hello %+v", pubs[0])
	}
	hello := decode(t, pubs[0].Payload)
	arms, _ := hello["arms"].([]any)
	if hello["bridge_id"] != "armbridge-1" || len(arms) != 1 {
		t.Fatalf("unexpected hello payload %v", hello)
	}
	for i, want := range []string{"online", "offline"} {
		p := pubs[i+1]
		if p.Topic != StatusPrefix+"armbridge-1" || !p.Retain {
			t.Fatalf("unexpected status publish %+v", p)
		}
		if got := decode(t, p.Payload)["status"]; got != want {
			t.Fatalf("status %d: got %v want %s", i, got, want)
		}
	}
}

func TestAnnouncerHeartbeat(t *testing.T) {
	client := mqtttest.New()
	a := New(client, Config{BridgeID: "b", Heartbeat: 5 * time.Millisecond})
	a.Start(context.Background())

	deadline := time.Now().Add(2 * time.Second)
	for len(client.Published()) < 3 {
		if time.Now().After(deadline) {
			t.Fatalf("no heartbeat published")
		}
		time.Sleep(time.Millisecond)
	}
	a.Stop()

	pubs := client.Published()
	if got := decode(t, pubs[2].Payload)["reason"]; got != "heartbeat" {
		t.Fatalf("expected heartbeat, got %v", got)
	}
}

func TestAnnouncerDisabledWithoutID(t *testing.T) {
	client := mqtttest.New()
	a := New(client, Config{})
	a.Start(context.Background())
	a.Stop()
	if n := len(client.Published()); n != 0 {
		t.Fatalf("expected no publishes, got %d", n)
	}
}
