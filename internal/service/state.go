package service

import "fmt"

// State of a DevServer session. The only transitions are
//
//	NotStarted -> Running -> Exited
//	NotStarted -> Running -> Cancelling -> Cancelled
//	NotStarted -> Cancelled (Stop before Start)
//	NotStarted -> Exited (launch failure)
type State int32

const (
	StateNotStarted State = iota
	StateRunning
	StateExited
	StateCancelling
	StateCancelled
)

func (s State) String() string {
	switch s {
	case StateNotStarted:
		return "not started"
	case StateRunning:
		return "running"
	case StateExited:
		return "exited"
	case StateCancelling:
		return "cancelling"
	case StateCancelled:
		return "cancelled"
	default:
		return fmt.Sprintf("unknown(%d)", int32(s))
	}
}
