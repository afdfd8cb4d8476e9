package component

import (
	"errors"
	"testing"
)

func TestProvidedInterfaceCommands(t *testing.T) {
	p := NewProvidedInterface("PSM1")
	if err := p.AddCommandRead("GetStateJointDesired", func() (any, error) { return 3, nil }); err != nil {
		t.Fatalf("add: %v", err)
	}
	if err := p.AddCommandRead("GetStateJointDesired", func() (any, error) { return 4, nil }); !errors.Is(err, ErrCommandExists) {
		t.Fatalf("expected ErrCommandExists, got %v", err)
	}
	if err := p.AddCommandRead("", func() (any, error) { return nil, nil }); !errors.Is(err, ErrEmptyName) {
		t.Fatalf("expected ErrEmptyName, got %v", err)
	}
	_ = p.AddCommandRead("Alpha", func() (any, error) { return "a", nil })
	names := p.CommandNames()
	if len(names) != 2 || names[0] != "Alpha" || names[1] != "GetStateJointDesired" {
		t.Fatalf("unexpected names %v", names)
	}
}

func TestRead(t *testing.T) {
	p := NewProvidedInterface("PSM1")
	_ = p.AddCommandRead("Count", func() (any, error) { return 3, nil })
	failing := errors.New("unavailable")
	_ = p.AddCommandRead("Broken", func() (any, error) { return nil, failing })

	n, err := Read[int](p, "Count")
	if err != nil || n != 3 {
		t.Fatalf("expected 3, got %d %v", n, err)
	}
	if _, err := Read[string](p, "Count"); !errors.Is(err, ErrTypeMismatch) {
		t.Fatalf("expected ErrTypeMismatch, got %v", err)
	}
	if _, err := Read[int](p, "Missing"); !errors.Is(err, ErrNoSuchCommand) {
		t.Fatalf("expected ErrNoSuchCommand, got %v", err)
	}
	if _, err := Read[int](p, "Broken"); !errors.Is(err, failing) {
		t.Fatalf("expected command error, got %v", err)
	}
}
