package rpc

import (
	"github.com/kariy/starkmint/libs/metric"
	"github.com/kariy/starkmint/state"
)

var (
	env *Environment
)

// StateProvider reports the application state. state.BlockExecutor
// implements it.
type StateProvider interface {
	LastState() (state.State, error)
}

func SetEnvironment(e *Environment) {
	env = e
}

// Environment contains objects and interfaces used by the RPC routes.
type Environment struct {
	State     StateProvider
	MetricSet *metric.MetricSet
}
