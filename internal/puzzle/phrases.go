package puzzle

import (
	"fmt"
	"sort"
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/coregx/ahocorasick"
)

var normalizer = strings.NewReplacer(
	"’", "'",
	"‘", "'",
	"–", "-",
	"—", "-",
)

// Normalize lowercases s, folds typographic quotes and dashes, collapses
// runs of whitespace and trims the result.
func Normalize(s string) string {
	s = normalizer.Replace(strings.ToLower(s))
	return strings.Join(strings.Fields(s), " ")
}

// PhraseSet finds whole-word occurrences of a fixed list of phrases in a
// single pass over the text.
type PhraseSet struct {
	ac      *ahocorasick.Automaton
	phrases []string
	// prefix allows trailing word characters after a match, so "wedge"
	// also matches "wedged" and "wedges".
	prefix bool
}

// NewPhraseSet compiles phrases. Matching is whole-word on both sides
// unless prefix is set, in which case only the leading edge must fall on a
// word boundary.
func NewPhraseSet(phrases []string, prefix bool) (*PhraseSet, error) {
	seen := make(map[string]bool, len(phrases))
	clean := make([]string, 0, len(phrases))
	for _, p := range phrases {
		p = Normalize(p)
		if p == "" || seen[p] {
			continue
		}
		seen[p] = true
		clean = append(clean, p)
	}
	// Longest first keeps leftmost-longest matching deterministic when
	// one phrase is a prefix of another.
	sort.SliceStable(clean, func(i, j int) bool { return len(clean[i]) > len(clean[j]) })

	ps := &PhraseSet{phrases: clean, prefix: prefix}
	if len(clean) == 0 {
		return ps, nil
	}
	automaton, err := ahocorasick.NewBuilder().
		AddStrings(clean).
		SetMatchKind(ahocorasick.LeftmostLongest).
		SetPrefilter(true).
		Build()
	if err != nil {
		return nil, fmt.Errorf("compile phrase set: %w", err)
	}
	ps.ac = automaton
	return ps, nil
}

// Find returns the distinct phrases present in text, in order of first
// appearance. text is expected to be normalized already.
func (p *PhraseSet) Find(text string) []string {
	if p == nil || p.ac == nil || text == "" {
		return nil
	}
	var found []string
	seen := make(map[int]bool)
	for _, m := range p.ac.FindAllOverlapping([]byte(text)) {
		if seen[m.PatternID] || !p.bounded(text, m.Start, m.End) {
			continue
		}
		seen[m.PatternID] = true
		found = append(found, p.phrases[m.PatternID])
	}
	return found
}

// Contains reports whether any phrase occurs in text.
func (p *PhraseSet) Contains(text string) bool {
	return len(p.Find(text)) > 0
}

// Len returns the number of distinct phrases in the set.
func (p *PhraseSet) Len() int {
	if p == nil {
		return 0
	}
	return len(p.phrases)
}

func (p *PhraseSet) bounded(text string, start, end int) bool {
	if start > 0 {
		r, _ := utf8.DecodeLastRuneInString(text[:start])
		if isWordRune(r) {
			return false
		}
	}
	if p.prefix || end >= len(text) {
		return true
	}
	r, _ := utf8.DecodeRuneInString(text[end:])
	return !isWordRune(r)
}

func isWordRune(r rune) bool {
	return unicode.IsLetter(r) || unicode.IsDigit(r) || r == '_'
}
