package facet

import "github.com/Adithya-Monish-Kumar-K/Classifieds-Catalog-Platform/internal/catalog/listing"

// Set is an immutable collection of active filters with at most one filter
// per attribute. Every change produces a new *Set, and consumers detect
// changes by comparing pointers.
type Set struct {
	filters []Active
}

// NewSet builds a set from filters. A later filter replaces an earlier one
// on the same attribute, keeping the earlier position.
func NewSet(filters ...Active) *Set {
	s := &Set{filters: make([]Active, 0, len(filters))}
	for _, f := range filters {
		if i := s.index(f.Attribute); i >= 0 {
			s.filters[i] = f
			continue
		}
		s.filters = append(s.filters, f)
	}
	return s
}

func (s *Set) Len() int {
	if s == nil {
		return 0
	}
	return len(s.filters)
}

// All returns a copy of the filters in insertion order.
func (s *Set) All() []Active {
	if s == nil {
		return []Active{}
	}
	out := make([]Active, len(s.filters))
	copy(out, s.filters)
	return out
}

func (s *Set) Get(attribute string) (Active, bool) {
	if i := s.index(attribute); i >= 0 {
		return s.filters[i], true
	}
	return Active{}, false
}

func (s *Set) Has(attribute string) bool { return s.index(attribute) >= 0 }

// With returns a new set with f added, or replacing the filter on the same
// attribute in place.
func (s *Set) With(f Active) *Set {
	next := &Set{filters: make([]Active, 0, s.Len()+1)}
	next.filters = append(next.filters, s.All()...)
	if i := next.index(f.Attribute); i >= 0 {
		next.filters[i] = f
	} else {
		next.filters = append(next.filters, f)
	}
	return next
}

// Without returns a new set lacking the filter on attribute.
func (s *Set) Without(attribute string) *Set {
	next := &Set{filters: make([]Active, 0, s.Len())}
	for _, f := range s.All() {
		if f.Attribute != attribute {
			next.filters = append(next.filters, f)
		}
	}
	return next
}

// Admits reports whether r satisfies every filter in the set. An empty set
// admits everything.
func (s *Set) Admits(r *listing.Record) bool {
	if s == nil {
		return true
	}
	for _, f := range s.filters {
		if !Admits(r, f) {
			return false
		}
	}
	return true
}

func (s *Set) index(attribute string) int {
	if s == nil {
		return -1
	}
	for i, f := range s.filters {
		if f.Attribute == attribute {
			return i
		}
	}
	return -1
}
