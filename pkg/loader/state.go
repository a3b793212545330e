package loader

import (
	"github.com/Sternrassler/category-browser/pkg/catalog"
)

// Phase is the loader's position in its state machine.
type Phase int

const (
	// PhaseIdle: no fetch pending and more pages may exist.
	PhaseIdle Phase = iota
	// PhaseLoading: a fetch is in flight.
	PhaseLoading
	// PhaseFailed: the last fetch failed; LoadNextPage retries the same page.
	PhaseFailed
	// PhaseDone: the source reported the last page. Terminal.
	PhaseDone
)

// String implements fmt.Stringer.
func (p Phase) String() string {
	switch p {
	case PhaseIdle:
		return "idle"
	case PhaseLoading:
		return "loading"
	case PhaseFailed:
		return "failed"
	case PhaseDone:
		return "done"
	default:
		return "unknown"
	}
}

// State is a snapshot of a loader. Items must be treated as read-only; it
// shares storage with the loader.
type State struct {
	// Category is fixed for the lifetime of the loader
	Category string

	// Items in arrival order, across all pages loaded so far
	Items []catalog.Item

	// Page is the next page to request, starting at 1
	Page int

	IsLoading  bool
	EndReached bool

	// Err is the *FetchError of the last failed fetch, nil after a success
	Err error
}

// Phase derives the state machine position from the flags.
func (s State) Phase() Phase {
	switch {
	case s.IsLoading:
		return PhaseLoading
	case s.EndReached:
		return PhaseDone
	case s.Err != nil:
		return PhaseFailed
	default:
		return PhaseIdle
	}
}
