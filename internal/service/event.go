package service

import "fmt"

type EventKind int

const (
	EventStarted EventKind = iota
	EventStdout
	EventStderr
	EventExited
)

func (k EventKind) String() string {
	switch k {
	case EventStarted:
		return "started"
	case EventStdout:
		return "stdout"
	case EventStderr:
		return "stderr"
	case EventExited:
		return "exited"
	default:
		return fmt.Sprintf("unknown(%d)", int(k))
	}
}

// Event is a single step in the life of a subprocess, emitted by Runner
// in arrival order. EventStarted is always first, EventExited always last.
type Event struct {
	Kind     EventKind
	PID      int    // EventStarted
	Text     string // EventStdout and EventStderr, without line terminator
	ExitCode int    // EventExited, -1 if unknown
	Err      error  // EventExited, wait or read failure other than a non-zero exit
}
