package puzzle

import (
	"math/rand"
	"testing"
	"time"

	"github.com/ashureev/fixedness-lab/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var t0 = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

func TestApplyFromUnseen(t *testing.T) {
	st, tr := Apply(nil, domain.PuzzleContext{ActivePuzzleID: "p1"}, t0)

	assert.Equal(t, "p1", st.PuzzleID)
	assert.True(t, st.Discovered)
	require.NotNil(t, st.FirstDiscoveredAt)
	assert.Equal(t, t0, *st.FirstDiscoveredAt)
	assert.Zero(t, st.Attempts)
	assert.False(t, st.Solved)
	assert.Nil(t, st.SolvedAt)

	assert.Equal(t, PhaseUnseen, tr.From)
	assert.Equal(t, PhaseDiscovered, tr.To)
	assert.True(t, tr.FirstDiscovery)
	assert.False(t, tr.AttemptCounted)
}

func TestApplyIrrelevantIsNoop(t *testing.T) {
	st, tr := Apply(nil, domain.PuzzleContext{}, t0)
	assert.Equal(t, domain.PuzzleState{}, st)
	assert.False(t, tr.Changed())

	prev := domain.PuzzleState{PuzzleID: "p1", Discovered: true, Attempts: 3}
	st, tr = Apply(&prev, domain.PuzzleContext{}, t0)
	assert.Equal(t, prev, st)
	assert.False(t, tr.Changed())
}

func TestApplyCountsBothAttemptKinds(t *testing.T) {
	st, _ := Apply(nil, domain.PuzzleContext{ActivePuzzleID: "p1", ConventionalUse: true}, t0)
	assert.Equal(t, 1, st.Attempts)

	st, tr := Apply(&st, domain.PuzzleContext{ActivePuzzleID: "p1", IsAttemptedSolution: true}, t0.Add(time.Second))
	assert.Equal(t, 2, st.Attempts)
	assert.Equal(t, PhaseAttempting, tr.To)
	assert.False(t, tr.FirstDiscovery)
}

func TestApplySolveAndStaySolved(t *testing.T) {
	solve := domain.PuzzleContext{ActivePuzzleID: "p1", IsAttemptedSolution: true, IsSolutionSuccess: true}

	st, tr := Apply(nil, solve, t0)
	require.True(t, st.Solved)
	require.NotNil(t, st.SolvedAt)
	assert.True(t, tr.NewlySolved)
	assert.Equal(t, PhaseSolved, tr.To)

	later := t0.Add(time.Minute)
	again, tr := Apply(&st, domain.PuzzleContext{ActivePuzzleID: "p1", IsAttemptedSolution: true}, later)
	assert.True(t, again.Solved)
	assert.Equal(t, t0, *again.SolvedAt)
	assert.Equal(t, 2, again.Attempts)
	assert.False(t, tr.NewlySolved)

	resolved, tr := Apply(&again, solve, later.Add(time.Minute))
	assert.Equal(t, t0, *resolved.SolvedAt)
	assert.False(t, tr.NewlySolved)
}

func TestApplyDoesNotAliasPrevious(t *testing.T) {
	prev, _ := Apply(nil, domain.PuzzleContext{ActivePuzzleID: "p1"}, t0)
	next, _ := Apply(&prev, domain.PuzzleContext{ActivePuzzleID: "p1"}, t0.Add(time.Hour))

	*next.FirstDiscoveredAt = t0.Add(24 * time.Hour)
	assert.Equal(t, t0, *prev.FirstDiscoveredAt)
}

func TestApplyRepairsSolvedWithoutTimestamp(t *testing.T) {
	prev := domain.PuzzleState{PuzzleID: "p1", Discovered: true, Solved: true}
	st, _ := Apply(&prev, domain.PuzzleContext{ActivePuzzleID: "p1"}, t0)
	assert.NotNil(t, st.SolvedAt)
}

// Random command sequences must keep attempts non-decreasing, keep a solve
// sticky and keep both timestamps stable once set.
func TestApplyInvariantsOverRandomSequences(t *testing.T) {
	rng := rand.New(rand.NewSource(42))

	for run := 0; run < 200; run++ {
		var (
			st         *domain.PuzzleState
			firstSeen  *time.Time
			solvedAt   *time.Time
			lastCount  int
			everSolved bool
		)
		now := t0
		for step := 0; step < 30; step++ {
			now = now.Add(time.Duration(rng.Intn(5000)) * time.Millisecond)
			pctx := domain.PuzzleContext{}
			if rng.Intn(4) > 0 {
				pctx.ActivePuzzleID = "p1"
				switch rng.Intn(3) {
				case 0:
					pctx.ConventionalUse = true
				case 1:
					pctx.IsAttemptedSolution = true
					pctx.IsSolutionSuccess = rng.Intn(5) == 0
				}
			}

			next, _ := Apply(st, pctx, now)
			if !pctx.Relevant() && st == nil {
				continue
			}

			require.GreaterOrEqual(t, next.Attempts, lastCount)
			if everSolved {
				require.True(t, next.Solved)
				require.Equal(t, *solvedAt, *next.SolvedAt)
			}
			require.Equal(t, next.Solved, next.SolvedAt != nil)
			if firstSeen != nil {
				require.Equal(t, *firstSeen, *next.FirstDiscoveredAt)
			}

			if next.FirstDiscoveredAt != nil && firstSeen == nil {
				v := *next.FirstDiscoveredAt
				firstSeen = &v
			}
			if next.Solved && !everSolved {
				everSolved = true
				v := *next.SolvedAt
				solvedAt = &v
			}
			lastCount = next.Attempts
			st = &next
		}
	}
}

func TestPhaseString(t *testing.T) {
	assert.Equal(t, "unseen", PhaseUnseen.String())
	assert.Equal(t, "solved", PhaseSolved.String())
	assert.Equal(t, "unknown", Phase(99).String())
}
