// Package metrics aggregates a session's interaction log into the
// per-puzzle and session-wide measures reported to researchers.
package metrics

import (
	"sort"
	"time"

	"github.com/ashureev/fixedness-lab/internal/domain"
)

// Fixedness thresholds. A session is High when it solves less than half of
// the puzzles it met or needs more than five attempts on average; Moderate
// below 0.8 or above three; Low otherwise.
const (
	highSolveRate    = 0.5
	highMeanAttempts = 5
	modSolveRate     = 0.8
	modMeanAttempts  = 3
)

type puzzleAccumulator struct {
	summary         domain.PuzzleAttemptSummary
	hesitationTotal float64
}

// Summarize builds the summary of one session. interactions may arrive in
// any order; states supplies counters for puzzles whose interaction rows
// were lost. The caller fills in identifiers, end reason and creation time.
func Summarize(sessionID string, interactions []*domain.Interaction, states map[string]domain.PuzzleState) domain.SessionSummary {
	ordered := make([]*domain.Interaction, 0, len(interactions))
	for _, it := range interactions {
		if it != nil {
			ordered = append(ordered, it)
		}
	}
	sort.SliceStable(ordered, func(i, j int) bool {
		return ordered[i].Timestamp.Before(ordered[j].Timestamp)
	})

	puzzles := make(map[string]*puzzleAccumulator)
	get := func(id string) *puzzleAccumulator {
		acc, ok := puzzles[id]
		if !ok {
			acc = &puzzleAccumulator{summary: domain.PuzzleAttemptSummary{PuzzleID: id}}
			puzzles[id] = acc
		}
		return acc
	}

	var hesitation domain.HesitationStats
	var hesitationTotal float64
	commandTypes := make(map[string]int)

	for _, it := range ordered {
		commandTypes[CommandType(it.Command)]++
		for _, h := range it.Metrics.Hesitations {
			hesitation.Count++
			hesitationTotal += h.DurationMs
			if h.DurationMs > hesitation.MaxDurationMs {
				hesitation.MaxDurationMs = h.DurationMs
			}
		}

		pctx := it.PuzzleContext
		if !pctx.Relevant() {
			continue
		}
		acc := get(pctx.ActivePuzzleID)
		s := &acc.summary
		if s.PuzzleName == "" {
			s.PuzzleName = pctx.PuzzleName
		}
		if s.FirstEncounter == nil {
			s.FirstEncounter = timePtr(it.Timestamp)
		}
		if pctx.ConventionalUse {
			s.ConventionalAttempts++
		}
		if pctx.IsAttemptedSolution {
			s.UnconventionalAttempts++
		}
		if pctx.IsSolutionSuccess && s.SolvedAt == nil {
			s.SolvedAt = timePtr(it.Timestamp)
		}
		for _, h := range it.Metrics.Hesitations {
			s.HesitationCount++
			acc.hesitationTotal += h.DurationMs
		}
	}

	for id, st := range states {
		acc := get(id)
		s := &acc.summary
		if st.FirstDiscoveredAt != nil && (s.FirstEncounter == nil || st.FirstDiscoveredAt.Before(*s.FirstEncounter)) {
			s.FirstEncounter = timePtr(*st.FirstDiscoveredAt)
		}
		if s.SolvedAt == nil && st.Solved && st.SolvedAt != nil {
			s.SolvedAt = timePtr(*st.SolvedAt)
		}
		if st.Attempts > s.TotalAttempts {
			s.TotalAttempts = st.Attempts
		}
	}

	summary := domain.SessionSummary{
		SessionID:     sessionID,
		TotalCommands: len(ordered),
		CommandTypes:  commandTypes,
		Puzzles:       make([]domain.PuzzleAttemptSummary, 0, len(puzzles)),
	}
	if hesitation.Count > 0 {
		hesitation.MeanDurationMs = hesitationTotal / float64(hesitation.Count)
	}
	summary.Hesitation = hesitation

	var solved, attempts int
	for _, acc := range puzzles {
		s := acc.summary
		if n := s.ConventionalAttempts + s.UnconventionalAttempts; n > s.TotalAttempts {
			s.TotalAttempts = n
		}
		if s.HesitationCount > 0 {
			s.MeanHesitationMs = acc.hesitationTotal / float64(s.HesitationCount)
		}
		s.Outcome = domain.OutcomeUnsolved
		if s.SolvedAt != nil {
			s.Outcome = domain.OutcomeSolved
			solved++
			if s.FirstEncounter != nil {
				ms := s.SolvedAt.Sub(*s.FirstEncounter).Milliseconds()
				s.TimeToSolutionMs = &ms
			}
		}
		attempts += s.TotalAttempts
		summary.Puzzles = append(summary.Puzzles, s)
	}
	sort.Slice(summary.Puzzles, func(i, j int) bool {
		a, b := summary.Puzzles[i], summary.Puzzles[j]
		if a.FirstEncounter != nil && b.FirstEncounter != nil && !a.FirstEncounter.Equal(*b.FirstEncounter) {
			return a.FirstEncounter.Before(*b.FirstEncounter)
		}
		if (a.FirstEncounter == nil) != (b.FirstEncounter == nil) {
			return a.FirstEncounter != nil
		}
		return a.PuzzleID < b.PuzzleID
	})

	if n := len(summary.Puzzles); n > 0 {
		summary.SolveRate = float64(solved) / float64(n)
		summary.MeanAttempts = float64(attempts) / float64(n)
	}
	summary.FixednessLevel = Fixedness(summary.SolveRate, summary.MeanAttempts)
	return summary
}

// Fixedness rates a session from its solve rate and mean attempts.
func Fixedness(solveRate, meanAttempts float64) domain.FixednessLevel {
	switch {
	case solveRate < highSolveRate || meanAttempts > highMeanAttempts:
		return domain.FixednessHigh
	case solveRate < modSolveRate || meanAttempts > modMeanAttempts:
		return domain.FixednessModerate
	default:
		return domain.FixednessLow
	}
}

// MarkTimedOut rewrites unsolved outcomes as timeouts, for sessions that
// ended by inactivity.
func MarkTimedOut(summary *domain.SessionSummary) {
	for i := range summary.Puzzles {
		if summary.Puzzles[i].Outcome == domain.OutcomeUnsolved {
			summary.Puzzles[i].Outcome = domain.OutcomeTimeout
		}
	}
}

func timePtr(t time.Time) *time.Time {
	return &t
}
