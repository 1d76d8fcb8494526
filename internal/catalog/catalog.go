// Package catalog loads the immutable world and puzzle definitions.
package catalog

import (
	_ "embed"
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/ashureev/fixedness-lab/internal/domain"
	"gopkg.in/yaml.v3"
)

//go:embed worlds.yaml
var defaultWorlds []byte

// World is a playable setting with its ordered puzzle list.
type World struct {
	ID          string                    `json:"id" yaml:"id"`
	Name        string                    `json:"name" yaml:"name"`
	Setting     string                    `json:"setting" yaml:"setting"`
	PreExposure string                    `json:"-" yaml:"pre_exposure"`
	Puzzles     []domain.PuzzleDefinition `json:"-" yaml:"puzzles"`
}

// Puzzle returns the puzzle with the given id.
func (w World) Puzzle(id string) (domain.PuzzleDefinition, bool) {
	for _, p := range w.Puzzles {
		if p.ID == id {
			return p, true
		}
	}
	return domain.PuzzleDefinition{}, false
}

type file struct {
	Worlds []World `yaml:"worlds"`
}

// Catalog is loaded once at startup and passed explicitly to consumers.
// It is never mutated after Parse returns.
type Catalog struct {
	worlds map[string]World
	order  []string
}

// Default returns the catalog embedded in the binary.
func Default() (*Catalog, error) {
	return Parse(defaultWorlds)
}

// Load reads a catalog from path, falling back to the embedded catalog
// when path is empty.
func Load(path string) (*Catalog, error) {
	if path == "" {
		return Default()
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read catalog: %w", err)
	}
	return Parse(data)
}

// Parse decodes and validates a YAML catalog.
func Parse(data []byte) (*Catalog, error) {
	var f file
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("decode catalog: %w", err)
	}
	return New(f.Worlds)
}

// New builds a validated catalog from already-decoded worlds.
func New(worlds []World) (*Catalog, error) {
	c := &Catalog{worlds: make(map[string]World, len(worlds))}
	for _, w := range worlds {
		if w.ID == "" {
			return nil, errors.New("world without id")
		}
		if _, dup := c.worlds[w.ID]; dup {
			return nil, fmt.Errorf("duplicate world %q", w.ID)
		}
		if err := validateWorld(w); err != nil {
			return nil, fmt.Errorf("world %q: %w", w.ID, err)
		}
		puzzles := make([]domain.PuzzleDefinition, len(w.Puzzles))
		copy(puzzles, w.Puzzles)
		w.Puzzles = puzzles
		c.worlds[w.ID] = w
		c.order = append(c.order, w.ID)
	}
	if len(c.order) == 0 {
		return nil, errors.New("catalog has no worlds")
	}
	return c, nil
}

// validateWorld enforces unique puzzle ids and object names that are not
// substrings of one another. The classifier picks the first puzzle whose
// object name appears in a command, so overlapping names would make the
// result depend on catalog order.
func validateWorld(w World) error {
	if len(w.Puzzles) == 0 {
		return errors.New("no puzzles")
	}
	ids := make(map[string]bool, len(w.Puzzles))
	for i, p := range w.Puzzles {
		if p.ID == "" {
			return fmt.Errorf("puzzle %d has no id", i)
		}
		if ids[p.ID] {
			return fmt.Errorf("duplicate puzzle id %q", p.ID)
		}
		ids[p.ID] = true

		name := strings.ToLower(strings.TrimSpace(p.FixedFunctionObject.Name))
		if name == "" {
			return fmt.Errorf("puzzle %q has no fixed-function object", p.ID)
		}
		if strings.TrimSpace(p.SolutionNarrative) == "" {
			return fmt.Errorf("puzzle %q has no solution narrative", p.ID)
		}
		for _, other := range w.Puzzles[:i] {
			otherName := strings.ToLower(strings.TrimSpace(other.FixedFunctionObject.Name))
			if strings.Contains(name, otherName) || strings.Contains(otherName, name) {
				return fmt.Errorf("object names %q (%s) and %q (%s) overlap", otherName, other.ID, name, p.ID)
			}
		}
	}
	return nil
}

// World returns the world with the given id.
func (c *Catalog) World(id string) (World, bool) {
	w, ok := c.worlds[id]
	return w, ok
}

// Worlds returns all worlds in catalog order.
func (c *Catalog) Worlds() []World {
	out := make([]World, 0, len(c.order))
	for _, id := range c.order {
		out = append(out, c.worlds[id])
	}
	return out
}

// Puzzles returns the puzzle list of a world, or nil if the world is unknown.
func (c *Catalog) Puzzles(worldID string) []domain.PuzzleDefinition {
	w, ok := c.worlds[worldID]
	if !ok {
		return nil
	}
	return w.Puzzles
}
