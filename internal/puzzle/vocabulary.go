package puzzle

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Vocabulary is the lexical knowledge the analyzer works from. Every list
// is matched case-insensitively on word boundaries.
type Vocabulary struct {
	// InspectionVerbs open an "examine X" style command.
	InspectionVerbs []string `yaml:"inspection_verbs"`
	// ActionVerbs mark a command as a possible use attempt.
	ActionVerbs []string `yaml:"action_verbs"`
	// SolutionKeywords are action and physical-property stems shared by a
	// command and a solution narrative when the player found the
	// unconventional use. They match as word prefixes.
	SolutionKeywords []string `yaml:"solution_keywords"`
	// SuccessCues and FailureCues are phrases in a narrative reply.
	SuccessCues []string `yaml:"success_cues"`
	FailureCues []string `yaml:"failure_cues"`
}

// DefaultVocabulary returns the built-in English vocabulary.
func DefaultVocabulary() Vocabulary {
	return Vocabulary{
		InspectionVerbs: []string{"examine", "look at", "inspect", "x"},
		ActionVerbs: []string{
			"use", "try", "apply", "insert", "wedge", "push", "pull", "combine",
			"put", "place", "attach", "tie", "hook", "bend", "straighten",
			"break", "pry", "lever", "stack", "stand", "climb", "throw",
			"swing", "turn", "open", "light", "burn", "focus", "hold", "fill",
			"pour", "jam", "prop", "hang", "connect", "cut", "fold", "lay",
			"lift", "flip", "invert", "pin", "empty", "fish", "bridge", "slide",
			"shove", "stick", "press", "aim", "point", "magnify", "read",
		},
		SolutionKeywords: []string{
			"wedge", "jam", "prop", "brace", "lever", "pry", "bridge", "span",
			"hook", "fish", "snag", "bend", "straighten", "focus", "concentrat",
			"beam", "burn", "ignite", "reflect", "shelf", "platform", "mount",
			"stand", "base", "flip", "invert", "upside", "support", "anchor",
			"weigh", "plug", "seal",
		},
		SuccessCues: []string{
			"it works", "it worked", "successfully", "success", "access granted",
			"unlocked", "clicks open", "swings open", "slides open",
			"you manage to", "you managed to", "holds firm", "holds steady",
			"stays open", "power returns", "lights flicker on", "you retrieve",
			"you pull out", "solved",
		},
		FailureCues: []string{
			"doesn't work", "does not work", "didn't work", "did not work",
			"nothing happens", "remains locked", "still locked", "won't budge",
			"will not budge", "doesn't budge", "you can't", "you cannot",
			"fails", "failed", "slips", "falls short", "too short", "no effect",
			"snaps shut", "slams shut", "not enough",
		},
	}
}

// LoadVocabulary reads a YAML vocabulary. Lists missing from the file keep
// their default values.
func LoadVocabulary(path string) (Vocabulary, error) {
	v := DefaultVocabulary()
	if path == "" {
		return v, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return v, fmt.Errorf("read vocabulary: %w", err)
	}
	var override Vocabulary
	if err := yaml.Unmarshal(data, &override); err != nil {
		return v, fmt.Errorf("decode vocabulary: %w", err)
	}
	if len(override.InspectionVerbs) > 0 {
		v.InspectionVerbs = override.InspectionVerbs
	}
	if len(override.ActionVerbs) > 0 {
		v.ActionVerbs = override.ActionVerbs
	}
	if len(override.SolutionKeywords) > 0 {
		v.SolutionKeywords = override.SolutionKeywords
	}
	if len(override.SuccessCues) > 0 {
		v.SuccessCues = override.SuccessCues
	}
	if len(override.FailureCues) > 0 {
		v.FailureCues = override.FailureCues
	}
	return v, nil
}
