// Package component is the in-process task framework: components expose
// provided interfaces, and the Manager drives the periodic ones.
package component

import (
	"context"
	"time"
)

const DefaultPeriod = 10 * time.Millisecond

// TaskArg is the constructor argument form for periodic components.
type TaskArg struct {
	Name   string        `yaml:"name"`
	Period time.Duration `yaml:"period"`
}

type Component interface {
	Name() string
	ProvidedInterfaces() []*ProvidedInterface
	Configure(filename string) error
}

// Periodic components have Run invoked by the Manager once per Period.
type Periodic interface {
	Period() time.Duration
	Run(ctx context.Context)
}

type Starter interface {
	Startup(ctx context.Context) error
}

type Cleaner interface {
	Cleanup()
}
