package capture

import (
	"fmt"
	"time"
)

type EventKind int

const (
	EventStarted EventKind = iota
	EventEnded
)

func (k EventKind) String() string {
	switch k {
	case EventStarted:
		return "started"
	case EventEnded:
		return "ended"
	default:
		return fmt.Sprintf("EventKind(%d)", int(k))
	}
}

// Event reports a session lifecycle change. Err is set on EventEnded when the
// loop stopped because the device was lost.
type Event struct {
	Kind  EventKind
	At    time.Time
	Err   error
	Stats RunStats
}

// RunStats summarises one capture run.
type RunStats struct {
	Started         time.Time     `json:"started"`
	Duration        time.Duration `json:"duration"`
	Cycles          uint64        `json:"cycles"`
	Updates         uint64        `json:"updates"`
	Missed          uint64        `json:"missed"`
	DecayTicks      uint64        `json:"decay_ticks"`
	TransientErrors uint64        `json:"transient_errors"`
}
