package puzzle

import "github.com/ashureev/fixedness-lab/internal/domain"

func fixturePuzzles() []domain.PuzzleDefinition {
	return []domain.PuzzleDefinition{
		{
			ID:                  "p1",
			Name:                "The Sealed Bulkhead",
			FixedFunctionObject: domain.FixedObject{Name: "rusty pipe", Description: "used on the valve"},
			SolutionNarrative:   "Wedge the rusty pipe under the door so it stays open.",
		},
		{
			ID:                  "p2",
			Name:                "The Dead Relay",
			FixedFunctionObject: domain.FixedObject{Name: "cracked lens"},
			SolutionNarrative:   "Focus the sunlight through the cracked lens to burn the cable.",
		},
	}
}
