package prm

import (
	"errors"
	"fmt"
	"time"

	"github.com/PetoAdam/homenavi/arm-bridge/internal/rosmsg"
)

var (
	ErrNoJoints       = errors.New("joint state has no positions")
	ErrLengthMismatch = errors.New("joint state array lengths differ")
)

// StateJoint is the in-process joint state value served by read commands.
// Velocity and Effort may be empty when the publisher does not fill them.
type StateJoint struct {
	Name      []string  `json:"name,omitempty"`
	Position  []float64 `json:"position"`
	Velocity  []float64 `json:"velocity,omitempty"`
	Effort    []float64 `json:"effort,omitempty"`
	Timestamp time.Time `json:"timestamp"`
	Valid     bool      `json:"valid"`
}

func (s StateJoint) JointCount() int { return len(s.Position) }

// FromJointState converts the bus message into a StateJoint. A zero header
// stamp is left zero; the bridge fills it with the receive time.
func FromJointState(js rosmsg.JointState) (StateJoint, error) {
	n := len(js.Position)
	if n == 0 {
		return StateJoint{}, ErrNoJoints
	}
	check := func(field string, l int) error {
		if l != 0 && l != n {
			return fmt.Errorf("%w: %s has %d entries, position has %d", ErrLengthMismatch, field, l, n)
		}
		return nil
	}
	if err := check("name", len(js.Name)); err != nil {
		return StateJoint{}, err
	}
	if err := check("velocity", len(js.Velocity)); err != nil {
		return StateJoint{}, err
	}
	if err := check("effort", len(js.Effort)); err != nil {
		return StateJoint{}, err
	}
	return StateJoint{
		Name:      append([]string(nil), js.Name...),
		Position:  append([]float64(nil), js.Position...),
		Velocity:  append([]float64(nil), js.Velocity...),
		Effort:    append([]float64(nil), js.Effort...),
		Timestamp: js.Header.Stamp.Time(),
		Valid:     true,
	}, nil
}

// WithReceivedAt returns s with Timestamp set to at when the message carried
// no stamp.
func (s StateJoint) WithReceivedAt(at time.Time) StateJoint {
	if s.Timestamp.IsZero() {
		s.Timestamp = at.UTC()
	}
	return s
}
