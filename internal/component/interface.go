package component

import (
	"errors"
	"fmt"
	"sort"
	"sync"
)

var (
	ErrEmptyName     = errors.New("name is empty")
	ErrCommandExists = errors.New("command already exists")
	ErrNoSuchCommand = errors.New("no such command")
	ErrTypeMismatch  = errors.New("command returned unexpected type")
)

// CommandRead returns the current value behind a read command. It must be
// safe to call from any goroutine.
type CommandRead func() (any, error)

// ProvidedInterface is a named set of commands a component exposes to
// sibling components.
type ProvidedInterface struct {
	name string

	mu    sync.RWMutex
	reads map[string]CommandRead
}

func NewProvidedInterface(name string) *ProvidedInterface {
	return &ProvidedInterface{name: name, reads: map[string]CommandRead{}}
}

func (p *ProvidedInterface) Name() string { return p.name }

func (p *ProvidedInterface) AddCommandRead(name string, fn CommandRead) error {
	if name == "" {
		return ErrEmptyName
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	if _, ok := p.reads[name]; ok {
		return fmt.Errorf("%w: %s.%s", ErrCommandExists, p.name, name)
	}
	p.reads[name] = fn
	return nil
}

func (p *ProvidedInterface) CommandRead(name string) (CommandRead, bool) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	fn, ok := p.reads[name]
	return fn, ok
}

func (p *ProvidedInterface) CommandNames() []string {
	p.mu.RLock()
	defer p.mu.RUnlock()
	names := make([]string, 0, len(p.reads))
	for n := range p.reads {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}

// Read calls a read command and asserts its result type.
func Read[T any](p *ProvidedInterface, command string) (T, error) {
	var zero T
	fn, ok := p.CommandRead(command)
	if !ok {
		return zero, fmt.Errorf("%w: %s.%s", ErrNoSuchCommand, p.name, command)
	}
	v, err := fn()
	if err != nil {
		return zero, err
	}
	out, ok := v.(T)
	if !ok {
		return zero, fmt.Errorf("%w: %s.%s returned %T", ErrTypeMismatch, p.name, command, v)
	}
	return out, nil
}
