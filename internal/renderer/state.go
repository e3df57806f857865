package renderer

import "fmt"

// State is the renderer lifecycle state. Transitions only move forward:
//
//	Uninitialized -> Starting -> Ready -> Running -> Terminated
//
// Terminated may be entered from any state.
type State int32

const (
	StateUninitialized State = iota
	StateStarting
	StateReady
	StateRunning
	StateTerminated
)

func (s State) String() string {
	switch s {
	case StateUninitialized:
		return "uninitialized"
	case StateStarting:
		return "starting"
	case StateReady:
		return "ready"
	case StateRunning:
		return "running"
	case StateTerminated:
		return "terminated"
	default:
		return fmt.Sprintf("state(%d)", int32(s))
	}
}
