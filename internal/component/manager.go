package component

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"
)

var (
	ErrComponentExists = errors.New("component already exists")
	ErrNoSuchComponent = errors.New("no such component")
	ErrNoSuchInterface = errors.New("no such provided interface")
	ErrAlreadyStarted  = errors.New("manager already started")
)

type Manager struct {
	mu         sync.RWMutex
	components map[string]Component
	order      []string

	cancel  context.CancelFunc
	wg      sync.WaitGroup
	started bool
	stopped bool
}

func NewManager() *Manager {
	return &Manager{components: map[string]Component{}}
}

func (m *Manager) Add(c Component) error {
	name := c.Name()
	if name == "" {
		return ErrEmptyName
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.components[name]; ok {
		return fmt.Errorf("%w: %s", ErrComponentExists, name)
	}
	m.components[name] = c
	m.order = append(m.order, name)
	return nil
}

func (m *Manager) Component(name string) (Component, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	c, ok := m.components[name]
	return c, ok
}

// Names returns component names in insertion order.
func (m *Manager) Names() []string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return append([]string(nil), m.order...)
}

func (m *Manager) ProvidedInterface(component, iface string) (*ProvidedInterface, error) {
	c, ok := m.Component(component)
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrNoSuchComponent, component)
	}
	for _, p := range c.ProvidedInterfaces() {
		if p.Name() == iface {
			return p, nil
		}
	}
	return nil, fmt.Errorf("%w: %s.%s", ErrNoSuchInterface, component, iface)
}

// Configure passes each component its configuration file, keyed by
// component name. Components missing from files get an empty path.
func (m *Manager) Configure(files map[string]string) error {
	for _, name := range m.Names() {
		c, _ := m.Component(name)
		if err := c.Configure(files[name]); err != nil {
			return fmt.Errorf("configure %s: %w", name, err)
		}
	}
	return nil
}

func (m *Manager) Start(ctx context.Context) error {
	m.mu.Lock()
	if m.started {
		m.mu.Unlock()
		return ErrAlreadyStarted
	}
	m.started = true
	m.mu.Unlock()

	comps := m.snapshot()
	for _, c := range comps {
		s, ok := c.(Starter)
		if !ok {
			continue
		}
		if err := s.Startup(ctx); err != nil {
			return fmt.Errorf("startup %s: %w", c.Name(), err)
		}
	}

	runCtx, cancel := context.WithCancel(ctx)
	m.mu.Lock()
	m.cancel = cancel
	m.mu.Unlock()
	for _, c := range comps {
		p, ok := c.(Periodic)
		if !ok {
			continue
		}
		m.wg.Add(1)
		go m.loop(runCtx, c.Name(), p)
	}
	slog.Info("component manager started", "components", len(comps))
	return nil
}

func (m *Manager) loop(ctx context.Context, name string, p Periodic) {
	defer m.wg.Done()
	period := p.Period()
	if period <= 0 {
		period = DefaultPeriod
	}
	ticker := time.NewTicker(period)
	defer ticker.Stop()
	slog.Debug("periodic component running", "component", name, "period", period)
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			p.Run(ctx)
		}
	}
}

// Stop cancels the periodic loops, waits for them to return and then calls
// Cleanup in reverse insertion order.
func (m *Manager) Stop() {
	m.mu.Lock()
	if !m.started || m.stopped {
		m.mu.Unlock()
		return
	}
	m.stopped = true
	cancel := m.cancel
	m.mu.Unlock()

	if cancel != nil {
		cancel()
	}
	m.wg.Wait()
	comps := m.snapshot()
	for i := len(comps) - 1; i >= 0; i-- {
		if c, ok := comps[i].(Cleaner); ok {
			c.Cleanup()
		}
	}
	slog.Info("component manager stopped")
}

func (m *Manager) snapshot() []Component {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]Component, 0, len(m.order))
	for _, n := range m.order {
		out = append(out, m.components[n])
	}
	return out
}
