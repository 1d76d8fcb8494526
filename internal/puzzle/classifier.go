// Package puzzle interprets player commands and narrative replies against
// a world's puzzle catalog and tracks per-puzzle progress.
package puzzle

import (
	"fmt"
	"sort"
	"strings"

	"github.com/ashureev/fixedness-lab/internal/domain"
)

// Analyzer holds a compiled vocabulary. It has no mutable state and is safe
// for concurrent use.
type Analyzer struct {
	inspection []string
	verbs      *PhraseSet
	keywords   *PhraseSet
	success    *PhraseSet
	failure    *PhraseSet
}

// NewAnalyzer compiles v into an Analyzer.
func NewAnalyzer(v Vocabulary) (*Analyzer, error) {
	verbs, err := NewPhraseSet(v.ActionVerbs, false)
	if err != nil {
		return nil, fmt.Errorf("action verbs: %w", err)
	}
	keywords, err := NewPhraseSet(v.SolutionKeywords, true)
	if err != nil {
		return nil, fmt.Errorf("solution keywords: %w", err)
	}
	success, err := NewPhraseSet(v.SuccessCues, false)
	if err != nil {
		return nil, fmt.Errorf("success cues: %w", err)
	}
	failure, err := NewPhraseSet(v.FailureCues, false)
	if err != nil {
		return nil, fmt.Errorf("failure cues: %w", err)
	}

	inspection := make([]string, 0, len(v.InspectionVerbs))
	for _, verb := range v.InspectionVerbs {
		if verb = Normalize(verb); verb != "" {
			inspection = append(inspection, verb)
		}
	}
	sort.SliceStable(inspection, func(i, j int) bool { return len(inspection[i]) > len(inspection[j]) })

	return &Analyzer{
		inspection: inspection,
		verbs:      verbs,
		keywords:   keywords,
		success:    success,
		failure:    failure,
	}, nil
}

// MustDefaultAnalyzer compiles the default vocabulary and panics on error.
func MustDefaultAnalyzer() *Analyzer {
	a, err := NewAnalyzer(DefaultVocabulary())
	if err != nil {
		panic(err)
	}
	return a
}

// Classify decides whether command engages one of puzzles and, if so,
// whether it is an inspection, a conventional use or an attempt at the
// unconventional solution. states supplies the previously-attempted and
// previously-solved flags; a nil map is treated as empty.
//
// Only the first puzzle whose object name appears in the command is
// considered.
func (a *Analyzer) Classify(command string, puzzles []domain.PuzzleDefinition, states map[string]domain.PuzzleState) domain.PuzzleContext {
	cmd := Normalize(command)
	if cmd == "" {
		return domain.PuzzleContext{}
	}

	if target, ok := a.inspectionTarget(cmd); ok {
		if p, found := matchObject(target, puzzles); found {
			return withHistory(contextFor(p), states)
		}
	}

	if !a.verbs.Contains(cmd) {
		return domain.PuzzleContext{}
	}

	p, found := matchObject(cmd, puzzles)
	if !found {
		return domain.PuzzleContext{}
	}

	pctx := contextFor(p)
	if a.sharesKeyword(cmd, p) {
		pctx.IsAttemptedSolution = true
	} else {
		pctx.ConventionalUse = true
	}
	return withHistory(pctx, states)
}

// MatchesIntent reports whether command names p's object and shares at
// least one solution keyword with p's solution narrative.
func (a *Analyzer) MatchesIntent(command string, p domain.PuzzleDefinition) bool {
	cmd := Normalize(command)
	name := objectName(p)
	if name == "" || !strings.Contains(cmd, name) {
		return false
	}
	return a.sharesKeyword(cmd, p)
}

// Keywords returns the solution keywords found in text once the object
// name is removed from it.
func (a *Analyzer) Keywords(text, objectName string) []string {
	text = Normalize(text)
	if name := Normalize(objectName); name != "" {
		text = strings.ReplaceAll(text, name, " ")
	}
	return a.keywords.Find(text)
}

// sharesKeyword strips the object name from both sides first, otherwise an
// object called "tack box" would match a "tack" keyword on every mention.
func (a *Analyzer) sharesKeyword(cmd string, p domain.PuzzleDefinition) bool {
	name := p.FixedFunctionObject.Name
	fromCommand := a.Keywords(cmd, name)
	if len(fromCommand) == 0 {
		return false
	}
	fromSolution := a.Keywords(p.SolutionNarrative, name)
	for _, k := range fromCommand {
		for _, s := range fromSolution {
			if k == s {
				return true
			}
		}
	}
	return false
}

func (a *Analyzer) inspectionTarget(cmd string) (string, bool) {
	for _, verb := range a.inspection {
		if rest, ok := strings.CutPrefix(cmd, verb+" "); ok {
			return rest, true
		}
	}
	return "", false
}

func matchObject(text string, puzzles []domain.PuzzleDefinition) (domain.PuzzleDefinition, bool) {
	for _, p := range puzzles {
		if name := objectName(p); name != "" && strings.Contains(text, name) {
			return p, true
		}
	}
	return domain.PuzzleDefinition{}, false
}

func objectName(p domain.PuzzleDefinition) string {
	return Normalize(p.FixedFunctionObject.Name)
}

func contextFor(p domain.PuzzleDefinition) domain.PuzzleContext {
	return domain.PuzzleContext{
		ActivePuzzleID:      p.ID,
		PuzzleName:          p.Name,
		FixedFunctionObject: p.FixedFunctionObject.Name,
	}
}

func withHistory(pctx domain.PuzzleContext, states map[string]domain.PuzzleState) domain.PuzzleContext {
	if st, ok := states[pctx.ActivePuzzleID]; ok {
		pctx.PreviouslyAttempted = st.Attempts > 0
		pctx.PreviouslySolved = st.Solved
	}
	return pctx
}
