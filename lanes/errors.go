package lanes

import "errors"

var (
	// ErrOverloaded is returned when a bounded lane's queue is full.
	ErrOverloaded = errors.New("lane overloaded")
	// ErrLaneStopped is returned for requests still queued when a lane stops.
	ErrLaneStopped = errors.New("lane stopped")
	// ErrNotRunning is returned for requests submitted to a stopped topology.
	ErrNotRunning = errors.New("lane topology is not running")
)
