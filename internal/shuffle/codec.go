// Package shuffle maps between canonical (authoring-time) and presented
// (on-screen) index spaces using the reversible permutations shipped by the
// question bank.
package shuffle

import (
	"errors"
	"fmt"
)

var (
	ErrMissingMap = errors.New("shuffle map required but not registered")
	ErrInvalidMap = errors.New("shuffle map is not a permutation")
)

// Map is a presentation permutation: Map[presentedIndex] = canonicalIndex.
type Map []int

// Validate checks that the map is a permutation of [0..n-1].
func (m Map) Validate() error {
	seen := make([]bool, len(m))
	for _, canonical := range m {
		if canonical < 0 || canonical >= len(m) || seen[canonical] {
			return fmt.Errorf("%w: %v", ErrInvalidMap, []int(m))
		}
		seen[canonical] = true
	}
	return nil
}

// Inverse builds the reverse map: Inverse()[canonicalIndex] = presentedIndex.
func (m Map) Inverse() Map {
	inv := make(Map, len(m))
	for presented, canonical := range m {
		inv[canonical] = presented
	}
	return inv
}

// Codec holds the forward and cached inverse maps for every question that has
// one. Maps are read-only after registration; the codec applies each map at
// most once per direction per value, never double-transforming.
type Codec struct {
	maps     map[string]Map
	inverses map[string]Map
}

func NewCodec() *Codec {
	return &Codec{
		maps:     make(map[string]Map),
		inverses: make(map[string]Map),
	}
}

// Register stores a question's shuffle map after validating it. The inverse
// is built once here rather than recomputed per lookup.
func (c *Codec) Register(questionID string, m Map) error {
	if err := m.Validate(); err != nil {
		return fmt.Errorf("question %s: %w", questionID, err)
	}
	c.maps[questionID] = m
	c.inverses[questionID] = m.Inverse()
	return nil
}

// Has reports whether a map is registered for the question.
func (c *Codec) Has(questionID string) bool {
	_, ok := c.maps[questionID]
	return ok
}

// ShuffleMaps returns the registered forward maps, keyed by question ID, for
// submission to the authoritative scorer.
func (c *Codec) ShuffleMaps() map[string][]int {
	out := make(map[string][]int, len(c.maps))
	for id, m := range c.maps {
		out[id] = m
	}
	return out
}

// ToCanonical translates a presented-space index to canonical space.
func (c *Codec) ToCanonical(questionID string, presented int) (int, error) {
	m, ok := c.maps[questionID]
	if !ok {
		return 0, fmt.Errorf("question %s: %w", questionID, ErrMissingMap)
	}
	if presented < 0 || presented >= len(m) {
		return 0, fmt.Errorf("question %s: presented index %d out of range [0,%d)", questionID, presented, len(m))
	}
	return m[presented], nil
}

// ToPresented translates a canonical-space index to presented space.
func (c *Codec) ToPresented(questionID string, canonical int) (int, error) {
	inv, ok := c.inverses[questionID]
	if !ok {
		return 0, fmt.Errorf("question %s: %w", questionID, ErrMissingMap)
	}
	if canonical < 0 || canonical >= len(inv) {
		return 0, fmt.Errorf("question %s: canonical index %d out of range [0,%d)", questionID, canonical, len(inv))
	}
	return inv[canonical], nil
}

// CanonicalOrder composes a learner's arrangement of presented slots with the
// question's map, yielding the canonical index sequence. The arrangement must
// itself be a permutation of the presented slots; storing the composed result
// keeps answers independent of how any particular session was shuffled.
func (c *Codec) CanonicalOrder(questionID string, arrangement []int) ([]int, error) {
	m, ok := c.maps[questionID]
	if !ok {
		return nil, fmt.Errorf("question %s: %w", questionID, ErrMissingMap)
	}
	if len(arrangement) != len(m) {
		return nil, fmt.Errorf("question %s: arrangement has %d entries, want %d", questionID, len(arrangement), len(m))
	}
	if err := Map(arrangement).Validate(); err != nil {
		return nil, fmt.Errorf("question %s: arrangement %w", questionID, ErrInvalidMap)
	}
	order := make([]int, len(arrangement))
	for i, presented := range arrangement {
		order[i] = m[presented]
	}
	return order, nil
}

// PresentedOrder reverses CanonicalOrder for redisplay, e.g. restoring a
// stored answer when a session resumes.
func (c *Codec) PresentedOrder(questionID string, canonical []int) ([]int, error) {
	inv, ok := c.inverses[questionID]
	if !ok {
		return nil, fmt.Errorf("question %s: %w", questionID, ErrMissingMap)
	}
	if len(canonical) != len(inv) {
		return nil, fmt.Errorf("question %s: order has %d entries, want %d", questionID, len(canonical), len(inv))
	}
	arrangement := make([]int, len(canonical))
	for i, c := range canonical {
		if c < 0 || c >= len(inv) {
			return nil, fmt.Errorf("question %s: canonical index %d out of range [0,%d)", questionID, c, len(inv))
		}
		arrangement[i] = inv[c]
	}
	return arrangement, nil
}
