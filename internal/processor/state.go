package processor

import (
	"github.com/zjrosen/wavecut/internal/planner"
	"github.com/zjrosen/wavecut/internal/selector"
	"github.com/zjrosen/wavecut/internal/staging"
)

// State is a step of the per-event state machine.
type State int

const (
	StateStart State = iota
	StateFetching
	StateSelecting
	StateSaved
	StateFailed
	StateCleaned
)

func (s State) String() string {
	switch s {
	case StateStart:
		return "start"
	case StateFetching:
		return "fetching"
	case StateSelecting:
		return "selecting"
	case StateSaved:
		return "saved"
	case StateFailed:
		return "failed"
	case StateCleaned:
		return "cleaned"
	default:
		return "unknown"
	}
}

// Reason says why an event failed.
type Reason int

const (
	ReasonNone Reason = iota
	ReasonFetch
	ReasonNoData
	ReasonWrite
)

func (r Reason) String() string {
	switch r {
	case ReasonFetch:
		return "fetch failure"
	case ReasonNoData:
		return "no matching data"
	case ReasonWrite:
		return "write failure"
	default:
		return ""
	}
}

// Outcome is everything known about one processed event.
type Outcome struct {
	Plan        planner.Plan
	Path        []State // every state entered, in order
	Reason      Reason
	Err         error
	Artifact    string
	Traces      int
	Selection   selector.Result
	PurgeErrors []*staging.EntryError
}

func (o *Outcome) enter(s State) {
	o.Path = append(o.Path, s)
}

// Final is the terminal result state, SAVED or FAILED. Before either is
// reached it is the latest state entered.
func (o Outcome) Final() State {
	for i := len(o.Path) - 1; i >= 0; i-- {
		if s := o.Path[i]; s == StateSaved || s == StateFailed {
			return s
		}
	}
	if len(o.Path) == 0 {
		return StateStart
	}
	return o.Path[len(o.Path)-1]
}

// Saved reports whether the artifact was written.
func (o Outcome) Saved() bool { return o.Final() == StateSaved }
