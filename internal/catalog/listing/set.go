package listing

// Set is an immutable sequence of listings for one category. A *Set is
// compared by pointer: two sets built from the same records are still
// different sets.
type Set struct {
	category string
	records  []*Record
}

// NewSet wraps records into a new set. The caller must not modify records
// afterwards.
func NewSet(category string, records []*Record) *Set {
	return &Set{category: category, records: records}
}

func (s *Set) Category() string {
	if s == nil {
		return ""
	}
	return s.category
}

func (s *Set) Len() int {
	if s == nil {
		return 0
	}
	return len(s.records)
}

func (s *Set) At(i int) *Record { return s.records[i] }

// Records returns the backing slice. It must be treated as read-only.
func (s *Set) Records() []*Record {
	if s == nil {
		return nil
	}
	return s.records
}

// Slice returns records[from:to] clamped to the set bounds.
func (s *Set) Slice(from, to int) []*Record {
	n := s.Len()
	if from < 0 {
		from = 0
	}
	if to > n {
		to = n
	}
	if from >= to {
		return nil
	}
	return s.records[from:to:to]
}

// IDs lists record ids in set order.
func (s *Set) IDs() []string {
	ids := make([]string, 0, s.Len())
	for _, r := range s.Records() {
		ids = append(ids, r.ID())
	}
	return ids
}
