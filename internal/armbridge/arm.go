// Package armbridge exposes the desired joint state a remote arm publishes
// on the bus as a read command other components can call directly.
//
// For an arm named N the adapter subscribes to
//
//	/remote/N/state_joint_desired   (sensor_msgs/JointState)
//
// and provides interface N with the read command GetStateJointDesired
// returning a prm.StateJoint.
package armbridge

import (
	"context"
	"log/slog"
	"time"

	"github.com/PetoAdam/homenavi/arm-bridge/internal/component"
	"github.com/PetoAdam/homenavi/arm-bridge/internal/prm"
	"github.com/PetoAdam/homenavi/arm-bridge/internal/rosbridge"
	"github.com/PetoAdam/homenavi/arm-bridge/internal/rosmsg"
)

const (
	NamespacePrefix             = "/remote/"
	StateJointDesiredSuffix     = "/state_joint_desired"
	CommandGetStateJointDesired = "GetStateJointDesired"
)

// Arm adapts one remote arm. All scheduling and messaging is done by the
// bridge it holds.
type Arm struct {
	bridge *rosbridge.Bridge
}

var (
	_ component.Component = (*Arm)(nil)
	_ component.Periodic  = (*Arm)(nil)
	_ component.Starter   = (*Arm)(nil)
	_ component.Cleaner   = (*Arm)(nil)
)

func New(name string, period time.Duration) *Arm {
	a := &Arm{bridge: rosbridge.New(name, period)}
	a.init()
	return a
}

func NewFromArg(arg component.TaskArg) *Arm {
	return New(arg.Name, arg.Period)
}

// Topic returns the bus topic the arm named name publishes its desired
// joint state on.
func Topic(name string) string {
	return NamespacePrefix + name + StateJointDesiredSuffix
}

func (a *Arm) init() {
	name := a.bridge.Name()
	err := rosbridge.AddSubscriberToCommandRead(a.bridge, name, CommandGetStateJointDesired, Topic(name), rosmsg.Decode, prm.FromJointState)
	if err != nil {
		// A fresh bridge has no other bindings, so this only fails on an
		// empty topic, which Topic never returns.
		slog.Error("arm bridge registration failed", "arm", name, "error", err)
	}
}

// Configure ignores filename; the arm has nothing to configure.
func (a *Arm) Configure(string) error { return nil }

func (a *Arm) Name() string                                       { return a.bridge.Name() }
func (a *Arm) Period() time.Duration                              { return a.bridge.Period() }
func (a *Arm) ProvidedInterfaces() []*component.ProvidedInterface { return a.bridge.ProvidedInterfaces() }
func (a *Arm) Run(ctx context.Context)                            { a.bridge.Run(ctx) }
func (a *Arm) Startup(ctx context.Context) error                  { return a.bridge.Startup(ctx) }
func (a *Arm) Cleanup()                                           { a.bridge.Cleanup() }

// Bridge returns the bridge facility so callers can attach a transport and
// inspect bindings.
func (a *Arm) Bridge() *rosbridge.Bridge { return a.bridge }
