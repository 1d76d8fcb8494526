package domain

import "time"

// FixedObject is the item a puzzle introduces with a conventional use.
type FixedObject struct {
	Name        string `json:"name" yaml:"name"`
	Description string `json:"description" yaml:"description"`
}

// HintVariants holds the per-condition scene text. Experimental is the
// priming detail given to variant B; Control is neutral scenery kept for
// reference and never shown to variant A.
type HintVariants struct {
	Control      string `json:"control" yaml:"control"`
	Experimental string `json:"experimental" yaml:"experimental"`
}

// PuzzleDefinition is an immutable puzzle loaded from the catalog.
type PuzzleDefinition struct {
	ID                     string       `json:"id" yaml:"id"`
	Name                   string       `json:"name" yaml:"name"`
	Objective              string       `json:"objective" yaml:"objective"`
	SceneDescription       string       `json:"sceneDescription" yaml:"scene_description"`
	FixedFunctionObject    FixedObject  `json:"fixedFunctionObject" yaml:"fixed_function_object"`
	ConventionalUse        string       `json:"conventionalUse" yaml:"conventional_use"`
	SolutionNarrative      string       `json:"solutionNarrative" yaml:"solution_narrative"`
	NarrativeJustification string       `json:"narrativeJustification" yaml:"narrative_justification"`
	Hints                  HintVariants `json:"hints" yaml:"hints"`
}

// HintFor returns the hint text for the given experimental variant.
func (p PuzzleDefinition) HintFor(v Variant) string {
	if v == VariantB {
		return p.Hints.Experimental
	}
	return p.Hints.Control
}

// PuzzleState is the mutable per-session progress record for one puzzle.
// A missing record is equivalent to an unseen puzzle with zero counters.
type PuzzleState struct {
	PuzzleID          string     `json:"puzzleId"`
	Discovered        bool       `json:"discovered"`
	FirstDiscoveredAt *time.Time `json:"firstDiscoveredAt,omitempty"`
	Attempts          int        `json:"attempts"`
	Solved            bool       `json:"solved"`
	SolvedAt          *time.Time `json:"solvedAt,omitempty"`
}

// PuzzleContext is the classifier's judgment about one command, later
// completed with the verifier's outcome.
type PuzzleContext struct {
	ActivePuzzleID      string `json:"activePuzzleId,omitempty"`
	IsAttemptedSolution bool   `json:"isAttemptedSolution"`
	IsSolutionSuccess   bool   `json:"isSolutionSuccess"`
	PuzzleName          string `json:"puzzleName,omitempty"`
	FixedFunctionObject string `json:"fixedFunctionObject,omitempty"`
	ConventionalUse     bool   `json:"conventionalUse"`
	PreviouslyAttempted bool   `json:"previouslyAttempted"`
	PreviouslySolved    bool   `json:"previouslySolved"`
}

// Relevant reports whether the command engaged a puzzle at all.
func (c PuzzleContext) Relevant() bool {
	return c.ActivePuzzleID != ""
}

// CountsAsAttempt reports whether the command was a use attempt of either kind.
func (c PuzzleContext) CountsAsAttempt() bool {
	return c.IsAttemptedSolution || c.ConventionalUse
}
