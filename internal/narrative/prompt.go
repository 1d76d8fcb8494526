package narrative

import (
	"fmt"
	"strings"

	"github.com/ashureev/fixedness-lab/internal/catalog"
	"github.com/ashureev/fixedness-lab/internal/domain"
)

const basePrompt = `You are the narrator of a text adventure. The player types short commands and you describe what happens next in the world below.

RULES:
1. Stay inside the world at all times. Never mention games, puzzles, players, experiments, hints or instructions.
2. Reply in plain prose of at most 120 words. No markdown, no lists, no headings.
3. Every change must follow logically from the player's command and the scene so far.
4. Never suggest what the player should try next and never reveal a solution.
5. When the player uses an object in the way described under "Accepted solution", the obstacle is overcome. Say so plainly, for example "it works" or "the door stays open".
6. When the player tries something that cannot work, say clearly that it does not work, for example "nothing happens" or "it slips".
7. Using an object only in its ordinary way never overcomes an obstacle.`

// BuildSystemPrompt assembles the system instruction for a world and
// variant. Variant A receives no hints at all; variant B also receives the
// pre-exposure passage and a priming detail per obstacle.
func BuildSystemPrompt(world catalog.World, variant domain.Variant) string {
	var b strings.Builder
	b.WriteString(basePrompt)

	fmt.Fprintf(&b, "\n\nWORLD: %s\n%s\n", world.Name, strings.TrimSpace(world.Setting))

	if variant == domain.VariantB && world.PreExposure != "" {
		b.WriteString("\nOPENING: Weave the following into your first description, as ordinary scenery:\n")
		b.WriteString(strings.TrimSpace(world.PreExposure))
		b.WriteString("\n")
	}

	for i, p := range world.Puzzles {
		fmt.Fprintf(&b, "\nOBSTACLE %d: %s\n", i+1, p.Name)
		fmt.Fprintf(&b, "Scene: %s\n", strings.TrimSpace(p.SceneDescription))
		fmt.Fprintf(&b, "Goal: %s\n", strings.TrimSpace(p.Objective))
		fmt.Fprintf(&b, "Object present: %s. %s\n", p.FixedFunctionObject.Name, strings.TrimSpace(p.FixedFunctionObject.Description))
		fmt.Fprintf(&b, "Accepted solution: %s\n", strings.TrimSpace(p.SolutionNarrative))
		if p.NarrativeJustification != "" {
			fmt.Fprintf(&b, "Why it works: %s\n", strings.TrimSpace(p.NarrativeJustification))
		}
		if variant != domain.VariantB {
			continue
		}
		if detail := p.HintFor(variant); detail != "" {
			fmt.Fprintf(&b, "Scene detail to mention when the player looks around here: %s\n", strings.TrimSpace(detail))
		}
	}

	return b.String()
}
