// Package rosbridge connects provided-interface read commands to topics on
// the message bus. Transport callbacks only queue raw payloads; decoding and
// conversion happen on the periodic Run so readers never see half-applied
// values.
package rosbridge

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"github.com/PetoAdam/homenavi/arm-bridge/internal/component"
	"github.com/PetoAdam/homenavi/arm-bridge/internal/mqtt"
)

const DefaultQueueSize = 16

var (
	ErrCommandExists = component.ErrCommandExists
	ErrEmptyTopic    = errors.New("topic is empty")
	ErrStarted       = errors.New("bridge already started")
	ErrNoTransport   = errors.New("bridge has no transport")
)

// Subscriber is the transport side of the bridge.
type Subscriber interface {
	Subscribe(topic string, cb mqtt.Handler) error
	Unsubscribe(topic string) error
}

// Message is implemented by bus message types.
type Message interface {
	MessageType() string
}

// Binding describes one topic to read command mapping.
type Binding struct {
	Interface   string `json:"interface"`
	Command     string `json:"command"`
	Topic       string `json:"topic"`
	MessageType string `json:"message_type"`
	ParamType   string `json:"param_type"`
}

type Stats struct {
	Binding
	Received   uint64    `json:"received"`
	Converted  uint64    `json:"converted"`
	Dropped    uint64    `json:"dropped"`
	LastUpdate time.Time `json:"last_update,omitempty"`
}

type Bridge struct {
	name      string
	period    time.Duration
	queueSize atomic.Int64
	now       func() time.Time

	mu         sync.Mutex
	ifaces     map[string]*component.ProvidedInterface
	ifaceOrder []string
	subs       []subscriber
	transport  Subscriber
	subscribed []string
	started    bool
}

type subscriber interface {
	binding() Binding
	deliver(payload []byte, at time.Time)
	drain()
	stats() Stats
}

func New(name string, period time.Duration) *Bridge {
	b := &Bridge{
		name:   name,
		period: period,
		now:    time.Now,
		ifaces: map[string]*component.ProvidedInterface{},
	}
	b.queueSize.Store(DefaultQueueSize)
	return b
}

func (b *Bridge) Name() string          { return b.name }
func (b *Bridge) Period() time.Duration { return b.period }

// Configure is an extension point; the bridge itself reads no configuration.
func (b *Bridge) Configure(string) error { return nil }

func (b *Bridge) UseTransport(t Subscriber) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.transport = t
}

// SetQueueSize bounds the pending messages kept per binding between two
// runs. When full the oldest message is dropped.
func (b *Bridge) SetQueueSize(n int) {
	if n <= 0 {
		n = DefaultQueueSize
	}
	b.queueSize.Store(int64(n))
}

func (b *Bridge) ProvidedInterfaces() []*component.ProvidedInterface {
	b.mu.Lock()
	defer b.mu.Unlock()
	out := make([]*component.ProvidedInterface, 0, len(b.ifaceOrder))
	for _, n := range b.ifaceOrder {
		out = append(out, b.ifaces[n])
	}
	return out
}

func (b *Bridge) Bindings() []Binding {
	b.mu.Lock()
	subs := append([]subscriber(nil), b.subs...)
	b.mu.Unlock()
	out := make([]Binding, 0, len(subs))
	for _, s := range subs {
		out = append(out, s.binding())
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Interface != out[j].Interface {
			return out[i].Interface < out[j].Interface
		}
		return out[i].Command < out[j].Command
	})
	return out
}

func (b *Bridge) Stats() []Stats {
	b.mu.Lock()
	subs := append([]subscriber(nil), b.subs...)
	b.mu.Unlock()
	out := make([]Stats, 0, len(subs))
	for _, s := range subs {
		out = append(out, s.stats())
	}
	return out
}

func (b *Bridge) interfaceFor(name string) *component.ProvidedInterface {
	if p, ok := b.ifaces[name]; ok {
		return p
	}
	p := component.NewProvidedInterface(name)
	b.ifaces[name] = p
	b.ifaceOrder = append(b.ifaceOrder, name)
	return p
}

// AddSubscriberToCommandRead registers a subscription to topic whose
// messages are decoded into M, converted into P and served through the read
// command iface.command. Registration does no I/O; topics are subscribed in
// Startup.
func AddSubscriberToCommandRead[P any, M Message](b *Bridge, iface, command, topic string, decode func([]byte) (M, error), convert func(M) (P, error)) error {
	if topic == "" {
		return ErrEmptyTopic
	}
	var zeroM M
	var zeroP P
	s := &subscription[P, M]{
		bridge: b,
		info: Binding{
			Interface:   iface,
			Command:     command,
			Topic:       topic,
			MessageType: zeroM.MessageType(),
			ParamType:   fmt.Sprintf("%T", zeroP),
		},
		decode:  decode,
		convert: convert,
	}

	b.mu.Lock()
	defer b.mu.Unlock()
	if b.started {
		return ErrStarted
	}
	if p, ok := b.ifaces[iface]; ok {
		if _, exists := p.CommandRead(command); exists {
			return fmt.Errorf("%w: %s.%s", ErrCommandExists, iface, command)
		}
	}
	if err := b.interfaceFor(iface).AddCommandRead(command, s.read); err != nil {
		return err
	}
	b.subs = append(b.subs, s)
	slog.Debug("bridge subscriber registered", "bridge", b.name, "interface", iface, "command", command, "topic", topic)
	return nil
}

// Startup subscribes every registered topic through the transport. Topics
// shared by several bindings are subscribed once and fanned out.
func (b *Bridge) Startup(_ context.Context) error {
	b.mu.Lock()
	if b.started {
		b.mu.Unlock()
		return ErrStarted
	}
	if b.transport == nil {
		b.mu.Unlock()
		return ErrNoTransport
	}
	b.started = true
	transport := b.transport
	byTopic := map[string][]subscriber{}
	var topics []string
	for _, s := range b.subs {
		t := s.binding().Topic
		if _, ok := byTopic[t]; !ok {
			topics = append(topics, t)
		}
		byTopic[t] = append(byTopic[t], s)
	}
	b.mu.Unlock()

	for _, topic := range topics {
		targets := byTopic[topic]
		err := transport.Subscribe(topic, func(m mqtt.Message) {
			payload := append([]byte(nil), m.Payload()...)
			at := b.now()
			for _, s := range targets {
				s.deliver(payload, at)
			}
		})
		if err != nil {
			return fmt.Errorf("subscribe %s: %w", topic, err)
		}
		b.mu.Lock()
		b.subscribed = append(b.subscribed, topic)
		b.mu.Unlock()
	}
	slog.Info("bridge started", "bridge", b.name, "topics", len(topics))
	return nil
}

// Run drains pending messages into the read commands.
func (b *Bridge) Run(_ context.Context) {
	b.mu.Lock()
	subs := append([]subscriber(nil), b.subs...)
	b.mu.Unlock()
	for _, s := range subs {
		s.drain()
	}
}

func (b *Bridge) Cleanup() {
	b.mu.Lock()
	transport := b.transport
	topics := b.subscribed
	b.subscribed = nil
	b.mu.Unlock()
	if transport == nil {
		return
	}
	for _, t := range topics {
		if err := transport.Unsubscribe(t); err != nil {
			slog.Warn("bridge unsubscribe failed", "bridge", b.name, "topic", t, "error", err)
		}
	}
}
