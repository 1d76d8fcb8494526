package puzzle

import (
	"testing"

	"github.com/ashureev/fixedness-lab/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestClassifyInspection(t *testing.T) {
	a := MustDefaultAnalyzer()

	got := a.Classify("examine rusty pipe", fixturePuzzles(), nil)

	assert.Equal(t, "p1", got.ActivePuzzleID)
	assert.False(t, got.IsAttemptedSolution)
	assert.False(t, got.ConventionalUse)
	assert.Equal(t, "rusty pipe", got.FixedFunctionObject)
	assert.Equal(t, "The Sealed Bulkhead", got.PuzzleName)
}

func TestClassifyLookAtShortCircuitsVerbCheck(t *testing.T) {
	a := MustDefaultAnalyzer()

	got := a.Classify("Look at the cracked lens and focus it", fixturePuzzles(), nil)

	assert.Equal(t, "p2", got.ActivePuzzleID)
	assert.False(t, got.IsAttemptedSolution)
	assert.False(t, got.ConventionalUse)
}

func TestClassifyConventionalUse(t *testing.T) {
	a := MustDefaultAnalyzer()

	got := a.Classify("use rusty pipe to turn the valve", fixturePuzzles(), nil)

	assert.Equal(t, "p1", got.ActivePuzzleID)
	assert.False(t, got.IsAttemptedSolution)
	assert.True(t, got.ConventionalUse)
}

func TestClassifyUnconventionalAttempt(t *testing.T) {
	a := MustDefaultAnalyzer()

	got := a.Classify("wedge the rusty pipe under the door", fixturePuzzles(), nil)

	assert.Equal(t, "p1", got.ActivePuzzleID)
	assert.True(t, got.IsAttemptedSolution)
	assert.False(t, got.ConventionalUse)
}

func TestClassifyIrrelevantCommands(t *testing.T) {
	a := MustDefaultAnalyzer()
	catalogs := map[string][]domain.PuzzleDefinition{
		"fixture": fixturePuzzles(),
		"empty":   nil,
		"single": {{
			ID:                  "z",
			FixedFunctionObject: domain.FixedObject{Name: "around"},
			SolutionNarrative:   "wedge around",
		}},
	}

	for name, puzzles := range catalogs {
		for _, cmd := range []string{"look around", "north", "inventory", "the rusty pipe", "", "   "} {
			got := a.Classify(cmd, puzzles, nil)
			assert.Equal(t, domain.PuzzleContext{}, got, "catalog %s, command %q", name, cmd)
		}
	}
}

func TestClassifyVerbWithoutObject(t *testing.T) {
	a := MustDefaultAnalyzer()

	got := a.Classify("push the button", fixturePuzzles(), nil)

	assert.False(t, got.Relevant())
}

func TestClassifyFirstMatchWins(t *testing.T) {
	a := MustDefaultAnalyzer()

	got := a.Classify("use the cracked lens and the rusty pipe", fixturePuzzles(), nil)

	assert.Equal(t, "p1", got.ActivePuzzleID)
}

func TestClassifyAttachesHistory(t *testing.T) {
	a := MustDefaultAnalyzer()
	states := map[string]domain.PuzzleState{
		"p1": {PuzzleID: "p1", Discovered: true, Attempts: 2, Solved: true},
	}

	got := a.Classify("use the rusty pipe", fixturePuzzles(), states)

	assert.True(t, got.PreviouslyAttempted)
	assert.True(t, got.PreviouslySolved)

	fresh := a.Classify("use the cracked lens", fixturePuzzles(), states)
	assert.False(t, fresh.PreviouslyAttempted)
	assert.False(t, fresh.PreviouslySolved)
}

func TestObjectNameDoesNotCountAsKeyword(t *testing.T) {
	a := MustDefaultAnalyzer()
	puzzles := []domain.PuzzleDefinition{{
		ID:                  "c1",
		FixedFunctionObject: domain.FixedObject{Name: "pin box"},
		SolutionNarrative:   "Empty the pin box and mount it on the wall as a shelf.",
	}}

	got := a.Classify("use the pin box to hold pins", puzzles, nil)
	assert.True(t, got.ConventionalUse)

	got = a.Classify("use the pin box as a shelf", puzzles, nil)
	assert.True(t, got.IsAttemptedSolution)
}

func TestInjectedVocabulary(t *testing.T) {
	a, err := NewAnalyzer(Vocabulary{
		InspectionVerbs:  []string{"peer at"},
		ActionVerbs:      []string{"zap"},
		SolutionKeywords: []string{"melt"},
	})
	require.NoError(t, err)
	puzzles := []domain.PuzzleDefinition{{
		ID:                  "ice",
		FixedFunctionObject: domain.FixedObject{Name: "ray gun"},
		SolutionNarrative:   "Melt the ice wall with the ray gun.",
	}}

	assert.Equal(t, "ice", a.Classify("peer at ray gun", puzzles, nil).ActivePuzzleID)
	assert.False(t, a.Classify("use ray gun", puzzles, nil).Relevant())
	assert.True(t, a.Classify("zap the ray gun to melt ice", puzzles, nil).IsAttemptedSolution)
	assert.True(t, a.Classify("zap the ray gun", puzzles, nil).ConventionalUse)
}
