package puzzle

import (
	"time"

	"github.com/ashureev/fixedness-lab/internal/domain"
)

// Phase is the position of a puzzle in its progress lifecycle.
type Phase int

const (
	PhaseUnseen Phase = iota
	PhaseDiscovered
	PhaseAttempting
	PhaseSolved
)

func (p Phase) String() string {
	switch p {
	case PhaseUnseen:
		return "unseen"
	case PhaseDiscovered:
		return "discovered"
	case PhaseAttempting:
		return "attempting"
	case PhaseSolved:
		return "solved"
	}
	return "unknown"
}

// PhaseOf derives the phase of a stored state. nil means unseen.
func PhaseOf(st *domain.PuzzleState) Phase {
	switch {
	case st == nil || !st.Discovered:
		return PhaseUnseen
	case st.Solved:
		return PhaseSolved
	case st.Attempts > 0:
		return PhaseAttempting
	default:
		return PhaseDiscovered
	}
}

// Transition describes what Apply changed.
type Transition struct {
	PuzzleID       string
	From           Phase
	To             Phase
	FirstDiscovery bool
	AttemptCounted bool
	NewlySolved    bool
}

// Changed reports whether the state needs to be persisted.
func (t Transition) Changed() bool {
	return t.FirstDiscovery || t.AttemptCounted || t.NewlySolved
}

// Apply advances a puzzle's state for one request. prev may be nil. The
// result never has fewer attempts than prev, never reverts a solve, and
// keeps the first-discovery and solve timestamps once set. A context that
// names no puzzle leaves the state untouched.
//
// Apply must be called once per request: each call with an attempt counts
// one more attempt.
func Apply(prev *domain.PuzzleState, pctx domain.PuzzleContext, now time.Time) (domain.PuzzleState, Transition) {
	from := PhaseOf(prev)
	if !pctx.Relevant() {
		if prev == nil {
			return domain.PuzzleState{}, Transition{From: from, To: from}
		}
		return clone(*prev), Transition{PuzzleID: prev.PuzzleID, From: from, To: from}
	}

	next := domain.PuzzleState{PuzzleID: pctx.ActivePuzzleID}
	if prev != nil {
		next = clone(*prev)
		next.PuzzleID = pctx.ActivePuzzleID
	}
	tr := Transition{PuzzleID: pctx.ActivePuzzleID, From: from}

	next.Discovered = true
	if next.FirstDiscoveredAt == nil {
		next.FirstDiscoveredAt = timePtr(now)
		tr.FirstDiscovery = true
	}
	if next.Attempts < 0 {
		next.Attempts = 0
	}
	if pctx.CountsAsAttempt() {
		next.Attempts++
		tr.AttemptCounted = true
	}
	if pctx.IsSolutionSuccess && !next.Solved {
		next.Solved = true
		next.SolvedAt = timePtr(now)
		tr.NewlySolved = true
	}
	// A record that claims a solve without a timestamp is repaired rather
	// than rejected.
	if next.Solved && next.SolvedAt == nil {
		next.SolvedAt = timePtr(now)
	}
	if !next.Solved {
		next.SolvedAt = nil
	}

	tr.To = PhaseOf(&next)
	return next, tr
}

func clone(st domain.PuzzleState) domain.PuzzleState {
	out := st
	if st.FirstDiscoveredAt != nil {
		out.FirstDiscoveredAt = timePtr(*st.FirstDiscoveredAt)
	}
	if st.SolvedAt != nil {
		out.SolvedAt = timePtr(*st.SolvedAt)
	}
	return out
}

func timePtr(t time.Time) *time.Time {
	return &t
}
