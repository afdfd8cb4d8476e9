// Package recorder is a periodic sibling component that pulls each arm's
// desired joint state through its provided interface and fans new samples
// out to the cache, the history store and realtime clients.
package recorder

import (
	"context"
	"log/slog"
	"time"

	"github.com/PetoAdam/homenavi/arm-bridge/internal/armbridge"
	"github.com/PetoAdam/homenavi/arm-bridge/internal/component"
	"github.com/PetoAdam/homenavi/arm-bridge/internal/prm"
	"github.com/PetoAdam/homenavi/arm-bridge/internal/realtime"
	"github.com/PetoAdam/homenavi/arm-bridge/internal/store"
)

const Name = "recorder"

type Source interface {
	ProvidedInterface(comp, iface string) (*component.ProvidedInterface, error)
}

type Cache interface {
	Set(ctx context.Context, arm string, s prm.StateJoint) error
}

type History interface {
	InsertSnapshot(ctx context.Context, p *store.JointStateSnapshot) error
}

type Broadcaster interface {
	Broadcast(ev realtime.Event)
}

type Option func(*Recorder)

func WithCache(c Cache) Option             { return func(r *Recorder) { r.cache = c } }
func WithHistory(h History) Option         { return func(r *Recorder) { r.history = h } }
func WithBroadcaster(b Broadcaster) Option { return func(r *Recorder) { r.hub = b } }

type Recorder struct {
	period  time.Duration
	arms    []string
	source  Source
	cache   Cache
	history History
	hub     Broadcaster

	// last holds the timestamp of the last sample forwarded per arm. Only
	// touched from Run, which the manager never calls concurrently.
	last map[string]time.Time
}

func New(period time.Duration, arms []string, source Source, opts ...Option) *Recorder {
	r := &Recorder{
		period: period,
		arms:   append([]string(nil), arms...),
		source: source,
		last:   map[string]time.Time{},
	}
	for _, o := range opts {
		o(r)
	}
	return r
}

func (r *Recorder) Name() string                                       { return Name }
func (r *Recorder) Period() time.Duration                              { return r.period }
func (r *Recorder) ProvidedInterfaces() []*component.ProvidedInterface { return nil }
func (r *Recorder) Configure(string) error                             { return nil }

func (r *Recorder) Run(ctx context.Context) {
	for _, arm := range r.arms {
		r.record(ctx, arm)
	}
}

func (r *Recorder) record(ctx context.Context, arm string) {
	iface, err := r.source.ProvidedInterface(arm, arm)
	if err != nil {
		slog.Debug("recorder lookup failed", "arm", arm, "error", err)
		return
	}
	state, err := component.Read[prm.StateJoint](iface, armbridge.CommandGetStateJointDesired)
	if err != nil {
		slog.Warn("recorder read failed", "arm", arm, "error", err)
		return
	}
	if !state.Valid || state.Timestamp.Equal(r.last[arm]) {
		return
	}
	r.last[arm] = state.Timestamp

	if r.cache != nil {
		if err := r.cache.Set(ctx, arm, state); err != nil {
			slog.Warn("recorder cache write failed", "arm", arm, "error", err)
		}
	}
	if r.history != nil {
		snap, err := store.SnapshotFromState(arm, armbridge.CommandGetStateJointDesired, state)
		if err == nil {
			err = r.history.InsertSnapshot(ctx, snap)
		}
		if err != nil {
			slog.Warn("recorder history write failed", "arm", arm, "error", err)
		}
	}
	if r.hub != nil {
		r.hub.Broadcast(realtime.Event{Type: realtime.EventStateJointDesired, Arm: arm, State: &state})
	}
}
