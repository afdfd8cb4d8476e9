package component

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"
)

type fakeComponent struct {
	name      string
	period    time.Duration
	ifaces    []*ProvidedInterface
	runs      atomic.Int32
	startErr  error
	mu        sync.Mutex
	events    *[]string
	configure []string
}

func (f *fakeComponent) Name() string                             { return f.name }
func (f *fakeComponent) ProvidedInterfaces() []*ProvidedInterface { return f.ifaces }
func (f *fakeComponent) Period() time.Duration                    { return f.period }
func (f *fakeComponent) Run(context.Context)                      { f.runs.Add(1) }

func (f *fakeComponent) Configure(filename string) error {
	f.configure = append(f.configure, filename)
	return nil
}

func (f *fakeComponent) Startup(context.Context) error {
	f.record("start:" + f.name)
	return f.startErr
}

func (f *fakeComponent) Cleanup() { f.record("cleanup:" + f.name) }

func (f *fakeComponent) record(ev string) {
	if f.events == nil {
		return
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	*f.events = append(*f.events, ev)
}

func TestManagerAddRejectsDuplicates(t *testing.T) {
	m := NewManager()
	if err := m.Add(&fakeComponent{name: "PSM1"}); err != nil {
		t.Fatalf("add: %v", err)
	}
	if err := m.Add(&fakeComponent{name: "PSM1"}); !errors.Is(err, ErrComponentExists) {
		t.Fatalf("expected ErrComponentExists, got %v", err)
	}
	if err := m.Add(&fakeComponent{}); !errors.Is(err, ErrEmptyName) {
		t.Fatalf("expected ErrEmptyName, got %v", err)
	}
}

func TestManagerProvidedInterfaceLookup(t *testing.T) {
	m := NewManager()
	iface := NewProvidedInterface("PSM1")
	_ = m.Add(&fakeComponent{name: "PSM1", ifaces: []*ProvidedInterface{iface}})

	got, err := m.ProvidedInterface("PSM1", "PSM1")
	if err != nil || got != iface {
		t.Fatalf("expected interface, got %v %v", got, err)
	}
	if _, err := m.ProvidedInterface("PSM2", "PSM2"); !errors.Is(err, ErrNoSuchComponent) {
		t.Fatalf("expected ErrNoSuchComponent, got %v", err)
	}
	if _, err := m.ProvidedInterface("PSM1", "Other"); !errors.Is(err, ErrNoSuchInterface) {
		t.Fatalf("expected ErrNoSuchInterface, got %v", err)
	}
}

func TestManagerConfigurePassesFiles(t *testing.T) {
	m := NewManager()
	a := &fakeComponent{name: "a"}
	b := &fakeComponent{name: "b"}
	_ = m.Add(a)
	_ = m.Add(b)
	if err := m.Configure(map[string]string{"a": "a.json"}); err != nil {
		t.Fatalf("configure: %v", err)
	}
	if len(a.configure) != 1 || a.configure[0] != "a.json" {
		t.Fatalf("unexpected configure calls for a: %v", a.configure)
	}
	if len(b.configure) != 1 || b.configure[0] != "" {
		t.Fatalf("unexpected configure calls for b: %v", b.configure)
	}
}

func TestManagerRunsPeriodicAndCleansUpInReverse(t *testing.T) {
	var events []string
	m := NewManager()
	a := &fakeComponent{name: "a", period: time.Millisecond, events: &events}
	b := &fakeComponent{name: "b", period: time.Millisecond, events: &events}
	_ = m.Add(a)
	_ = m.Add(b)

	if err := m.Start(context.Background()); err != nil {
		t.Fatalf("start: %v", err)
	}
	if err := m.Start(context.Background()); !errors.Is(err, ErrAlreadyStarted) {
		t.Fatalf("expected ErrAlreadyStarted, got %v", err)
	}
	deadline := time.Now().Add(2 * time.Second)
	for a.runs.Load() == 0 || b.runs.Load() == 0 {
		if time.Now().After(deadline) {
			t.Fatalf("periodic components never ran")
		}
		time.Sleep(time.Millisecond)
	}
	m.Stop()
	m.Stop()

	want := []string{"start:a", "start:b", "cleanup:b", "cleanup:a"}
	if len(events) != len(want) {
		t.Fatalf("unexpected events %v", events)
	}
	for i := range want {
		if events[i] != want[i] {
			t.Fatalf("event %d: expected %q, got %q", i, want[i], events[i])
		}
	}
	after := a.runs.Load()
	time.Sleep(5 * time.Millisecond)
	if a.runs.Load() != after {
		t.Fatalf("component ran after Stop")
	}
}

func TestManagerStartupError(t *testing.T) {
	m := NewManager()
	boom := errors.New("boom")
	_ = m.Add(&fakeComponent{name: "a", startErr: boom})
	if err := m.Start(context.Background()); !errors.Is(err, boom) {
		t.Fatalf("expected startup error, got %v", err)
	}
}
