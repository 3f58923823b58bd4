package facet

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
)

var (
	ErrEmptyRange    = errors.New("range filter needs a min or a max")
	ErrNoOptions     = errors.New("option filter needs at least one option")
	ErrUnknownKind   = errors.New("unknown filter type")
	ErrNoAttribute   = errors.New("filter attribute is required")
	ErrInvertedRange = errors.New("range min exceeds max")

	// ErrBooleanOff is returned when decoding a boolean filter whose value is
	// false. Off is not a stored state; callers remove the filter instead.
	ErrBooleanOff = errors.New("boolean filter is off")
)

// Range bounds a numeric facet. Nil means unbounded on that side.
type Range struct {
	Min *float64 `json:"min,omitempty"`
	Max *float64 `json:"max,omitempty"`
}

func (r Range) Empty() bool { return r.Min == nil && r.Max == nil }

// Active is a facet currently applied with a concrete value. Which value
// field is meaningful depends on Kind; a boolean filter being present means
// it is on.
type Active struct {
	Attribute string
	Kind      Kind
	Range     Range
	Options   []string
}

// NewRange builds a range filter. At least one bound is required.
func NewRange(attribute string, min, max *float64) (Active, error) {
	f := Active{Attribute: attribute, Kind: KindRange, Range: Range{Min: min, Max: max}}
	return f, f.Validate()
}

// NewOptions builds an option-select filter over one or more keys.
func NewOptions(attribute string, kind Kind, keys ...string) (Active, error) {
	f := Active{Attribute: attribute, Kind: kind, Options: append([]string(nil), keys...)}
	if !kind.IsOption() {
		return f, fmt.Errorf("%w: %q is not an option kind", ErrUnknownKind, kind)
	}
	return f, f.Validate()
}

// NewBoolean builds an "on" boolean filter.
func NewBoolean(attribute string) Active {
	return Active{Attribute: attribute, Kind: KindBoolean}
}

// Validate checks the shape of the value against the kind.
func (f Active) Validate() error {
	if f.Attribute == "" {
		return ErrNoAttribute
	}
	switch {
	case f.Kind == KindRange:
		if f.Range.Empty() {
			return ErrEmptyRange
		}
		if f.Range.Min != nil && f.Range.Max != nil && *f.Range.Min > *f.Range.Max {
			return ErrInvertedRange
		}
	case f.Kind.IsOption():
		if len(f.Options) == 0 {
			return ErrNoOptions
		}
	case f.Kind == KindBoolean:
	default:
		return fmt.Errorf("%w: %q", ErrUnknownKind, f.Kind)
	}
	return nil
}

type activeJSON struct {
	Attribute string          `json:"attributeName"`
	Kind      Kind            `json:"type"`
	Value     json.RawMessage `json:"value"`
}

// MarshalJSON writes {attributeName, type, value}. A single option is
// written as a string, several as an array.
func (f Active) MarshalJSON() ([]byte, error) {
	var value any
	switch {
	case f.Kind == KindRange:
		value = f.Range
	case f.Kind.IsOption() && len(f.Options) == 1:
		value = f.Options[0]
	case f.Kind.IsOption():
		value = f.Options
	default:
		value = true
	}
	raw, err := json.Marshal(value)
	if err != nil {
		return nil, fmt.Errorf("encoding filter value: %w", err)
	}
	return json.Marshal(activeJSON{Attribute: f.Attribute, Kind: f.Kind, Value: raw})
}

func (f *Active) UnmarshalJSON(data []byte) error {
	var aj activeJSON
	if err := json.Unmarshal(data, &aj); err != nil {
		return fmt.Errorf("decoding filter: %w", err)
	}
	out := Active{Attribute: aj.Attribute, Kind: aj.Kind}
	switch {
	case aj.Kind == KindRange:
		if err := json.Unmarshal(aj.Value, &out.Range); err != nil {
			return fmt.Errorf("decoding range value: %w", err)
		}
	case aj.Kind.IsOption():
		v := bytes.TrimSpace(aj.Value)
		if len(v) > 0 && v[0] == '[' {
			if err := json.Unmarshal(v, &out.Options); err != nil {
				return fmt.Errorf("decoding option values: %w", err)
			}
		} else {
			var single string
			if err := json.Unmarshal(v, &single); err != nil {
				return fmt.Errorf("decoding option value: %w", err)
			}
			if single != "" {
				out.Options = []string{single}
			}
		}
	case aj.Kind == KindBoolean:
		if string(bytes.TrimSpace(aj.Value)) == "false" {
			*f = out
			return ErrBooleanOff
		}
	default:
		return fmt.Errorf("%w: %q", ErrUnknownKind, aj.Kind)
	}
	*f = out
	return nil
}
