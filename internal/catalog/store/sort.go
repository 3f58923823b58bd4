package store

import (
	"errors"

	"github.com/Adithya-Monish-Kumar-K/Classifieds-Catalog-Platform/internal/catalog/sorting"
)

// ErrUnknownSort is returned when selecting a sort id that is not offered.
var ErrUnknownSort = errors.New("unknown sort option")

// DefaultSortTitle is shown while no sort has been chosen.
const DefaultSortTitle = "Sort"

// SortPreference stores the selected sort. The current option points into
// the available list, so choosing the same option twice keeps its identity.
type SortPreference struct {
	available []sorting.Option
	current   *sorting.Option
}

func NewSortPreference(available []sorting.Option) *SortPreference {
	if len(available) == 0 {
		available = sorting.Defaults()
	}
	return &SortPreference{available: available}
}

// Set selects the option with the given id.
func (s *SortPreference) Set(id string) error {
	for i := range s.available {
		if s.available[i].ID == id {
			s.current = &s.available[i]
			return nil
		}
	}
	return ErrUnknownSort
}

// Reset returns to the default order.
func (s *SortPreference) Reset() { s.current = nil }

// Current returns the selected option, or nil for the default order.
func (s *SortPreference) Current() *sorting.Option { return s.current }

func (s *SortPreference) IsDefault() bool { return s.current == nil }

func (s *SortPreference) Title() string {
	if s.current == nil || s.current.Title == "" {
		return DefaultSortTitle
	}
	return s.current.Title
}

// Available returns a copy of the offered options.
func (s *SortPreference) Available() []sorting.Option {
	out := make([]sorting.Option, len(s.available))
	copy(out, s.available)
	return out
}
