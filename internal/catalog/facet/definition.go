// Package facet describes the filters a category offers, the filters a
// visitor has applied, and the predicates that decide whether a listing
// satisfies them.
package facet

import (
	"sort"
	"strings"
)

// Kind is the facet variant.
type Kind string

const (
	KindRange              Kind = "range"
	KindOptionSelect       Kind = "optionSelect"
	KindOptionSelectSearch Kind = "optionSelectSearch"
	KindBoolean            Kind = "boolean"
)

// Valid reports whether k is a known facet variant.
func (k Kind) Valid() bool {
	switch k {
	case KindRange, KindOptionSelect, KindOptionSelectSearch, KindBoolean:
		return true
	}
	return false
}

// IsOption reports whether k is one of the option-select variants.
func (k Kind) IsOption() bool {
	return k == KindOptionSelect || k == KindOptionSelectSearch
}

// Definition is one facet available for a category.
type Definition struct {
	Attribute   string            `json:"attributeName"`
	Title       string            `json:"title"`
	Kind        Kind              `json:"type"`
	MeasureUnit string            `json:"measureUnit,omitempty"`
	Options     map[string]string `json:"options,omitempty"`
}

// Option is a selectable key with its display label.
type Option struct {
	Key   string `json:"key"`
	Label string `json:"label"`
}

// SearchOptions returns the options whose label contains query, ignoring
// case, ordered by label. An empty query returns every option.
func (d Definition) SearchOptions(query string) []Option {
	q := strings.ToLower(strings.TrimSpace(query))
	out := make([]Option, 0, len(d.Options))
	for key, label := range d.Options {
		if q == "" || strings.Contains(strings.ToLower(label), q) {
			out = append(out, Option{Key: key, Label: label})
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Label != out[j].Label {
			return out[i].Label < out[j].Label
		}
		return out[i].Key < out[j].Key
	})
	return out
}

// HasOption reports whether key is one of the definition's option keys.
func (d Definition) HasOption(key string) bool {
	_, ok := d.Options[key]
	return ok
}

// Lookup finds the definition for attribute.
func Lookup(defs []Definition, attribute string) (Definition, bool) {
	for _, d := range defs {
		if d.Attribute == attribute {
			return d, true
		}
	}
	return Definition{}, false
}

// Order returns a copy of defs with active facets first. Relative order
// within each group is kept.
func Order(defs []Definition, isActive func(Definition) bool) []Definition {
	out := make([]Definition, len(defs))
	copy(out, defs)
	sort.SliceStable(out, func(i, j int) bool {
		return isActive(out[i]) && !isActive(out[j])
	})
	return out
}
