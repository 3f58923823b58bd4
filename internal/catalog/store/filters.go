// Package store holds a visitor's mutable browsing choices: the active
// filters and the selected sort order. Each effective change swaps in a new
// immutable snapshot so downstream caches can detect it by pointer.
package store

import (
	"fmt"
	"slices"

	"github.com/Adithya-Monish-Kumar-K/Classifieds-Catalog-Platform/internal/catalog/facet"
)

// ActiveFilters stores the filters currently applied. Mutations that change
// nothing keep the current snapshot.
type ActiveFilters struct {
	current *facet.Set
}

func NewActiveFilters() *ActiveFilters {
	return &ActiveFilters{current: facet.NewSet()}
}

// Snapshot returns the current immutable filter set.
func (s *ActiveFilters) Snapshot() *facet.Set { return s.current }

func (s *ActiveFilters) Get(attribute string) (facet.Active, bool) {
	return s.current.Get(attribute)
}

func (s *ActiveFilters) HasActive() bool { return s.current.Len() > 0 }

// Add applies f, replacing any filter on the same attribute.
func (s *ActiveFilters) Add(f facet.Active) error {
	if err := f.Validate(); err != nil {
		return fmt.Errorf("adding filter %q: %w", f.Attribute, err)
	}
	s.current = s.current.With(f)
	return nil
}

// Remove drops the filter on attribute. It reports whether one was present.
func (s *ActiveFilters) Remove(attribute string) bool {
	if !s.current.Has(attribute) {
		return false
	}
	s.current = s.current.Without(attribute)
	return true
}

// RemoveOption deselects one option of an option filter. When no option is
// left the filter is removed entirely.
func (s *ActiveFilters) RemoveOption(attribute, option string) bool {
	f, ok := s.current.Get(attribute)
	if !ok || !f.Kind.IsOption() {
		return false
	}
	i := slices.Index(f.Options, option)
	if i < 0 {
		return false
	}
	remaining := slices.Delete(slices.Clone(f.Options), i, i+1)
	if len(remaining) == 0 {
		s.current = s.current.Without(attribute)
		return true
	}
	f.Options = remaining
	s.current = s.current.With(f)
	return true
}

// Update replaces the value of an existing option filter with a single
// option. An empty option removes the filter.
func (s *ActiveFilters) Update(attribute, option string) bool {
	f, ok := s.current.Get(attribute)
	if !ok || !f.Kind.IsOption() {
		return false
	}
	if option == "" {
		s.current = s.current.Without(attribute)
		return true
	}
	if len(f.Options) == 1 && f.Options[0] == option {
		return false
	}
	f.Options = []string{option}
	s.current = s.current.With(f)
	return true
}

// SetRange applies or adjusts a range filter. Clearing both bounds removes
// it.
func (s *ActiveFilters) SetRange(attribute string, min, max *float64) error {
	if min == nil && max == nil {
		s.Remove(attribute)
		return nil
	}
	f, err := facet.NewRange(attribute, min, max)
	if err != nil {
		return fmt.Errorf("setting range %q: %w", attribute, err)
	}
	s.current = s.current.With(f)
	return nil
}

// SetBoolean turns a boolean filter on or off. Off is stored as absence.
func (s *ActiveFilters) SetBoolean(attribute string, on bool) {
	if !on {
		s.Remove(attribute)
		return
	}
	if f, ok := s.current.Get(attribute); ok && f.Kind == facet.KindBoolean {
		return
	}
	s.current = s.current.With(facet.NewBoolean(attribute))
}

// Clear removes every filter.
func (s *ActiveFilters) Clear() {
	if s.current.Len() == 0 {
		return
	}
	s.current = facet.NewSet()
}
