package acquire

import "sync/atomic"

// State is the lifecycle state of a long running loop.
type State int32

const (
	NotStarted State = iota
	Running
	Stopped
)

// String returns the state name.
func (s State) String() string {
	switch s {
	case NotStarted:
		return "not started"
	case Running:
		return "running"
	case Stopped:
		return "stopped"
	default:
		return "unknown"
	}
}

// Lifecycle tracks a loop's state. The zero value is NotStarted.
type Lifecycle struct {
	state atomic.Int32
}

// Start moves NotStarted to Running. It returns false if the loop was
// already started.
func (l *Lifecycle) Start() bool {
	return l.state.CompareAndSwap(int32(NotStarted), int32(Running))
}

// Stop marks the loop Stopped.
func (l *Lifecycle) Stop() {
	l.state.Store(int32(Stopped))
}

// State returns the current state.
func (l *Lifecycle) State() State {
	return State(l.state.Load())
}
