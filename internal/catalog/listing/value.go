package listing

import (
	"bytes"
	"encoding/json"
	"fmt"
	"math"
	"regexp"
	"strconv"
	"strings"
)

// Kind identifies which variant a Value holds.
type Kind uint8

const (
	KindNull Kind = iota
	KindString
	KindNumber
	KindBool
)

func (k Kind) String() string {
	switch k {
	case KindString:
		return "string"
	case KindNumber:
		return "number"
	case KindBool:
		return "bool"
	default:
		return "null"
	}
}

// Value is a single attribute value of a listing record: null, string,
// number or bool. The zero Value is null.
type Value struct {
	kind Kind
	str  string
	num  float64
	b    bool
}

func Null() Value            { return Value{} }
func String(s string) Value  { return Value{kind: KindString, str: s} }
func Number(n float64) Value { return Value{kind: KindNumber, num: n} }
func Bool(b bool) Value      { return Value{kind: KindBool, b: b} }

func (v Value) Kind() Kind   { return v.kind }
func (v Value) IsNull() bool { return v.kind == KindNull }

// numericPrefix matches the leading decimal number of a string, so
// "150 hp" reads as 150.
var numericPrefix = regexp.MustCompile(`^[+-]?(?:\d+\.?\d*|\.\d+)(?:[eE][+-]?\d+)?`)

// Float coerces the value to a number. Strings are read by their leading
// numeric prefix, bools read as 1 or 0. The second result is false when the
// value is null or not coercible.
func (v Value) Float() (float64, bool) {
	switch v.kind {
	case KindNumber:
		if math.IsNaN(v.num) {
			return 0, false
		}
		return v.num, true
	case KindBool:
		if v.b {
			return 1, true
		}
		return 0, true
	case KindString:
		s := strings.TrimSpace(v.str)
		if strings.HasPrefix(s, "Infinity") || strings.HasPrefix(s, "+Infinity") {
			return math.Inf(1), true
		}
		if strings.HasPrefix(s, "-Infinity") {
			return math.Inf(-1), true
		}
		m := numericPrefix.FindString(s)
		if m == "" {
			return 0, false
		}
		n, err := strconv.ParseFloat(m, 64)
		if err != nil {
			return 0, false
		}
		return n, true
	default:
		return 0, false
	}
}

// Text renders the value the way it is compared against option keys.
func (v Value) Text() string {
	switch v.kind {
	case KindString:
		return v.str
	case KindNumber:
		return formatNumber(v.num)
	case KindBool:
		return strconv.FormatBool(v.b)
	default:
		return "null"
	}
}

// Truthy reports whether the value counts as "set": a non-empty string, a
// non-zero number or true.
func (v Value) Truthy() bool {
	switch v.kind {
	case KindString:
		return v.str != ""
	case KindNumber:
		return v.num != 0 && !math.IsNaN(v.num)
	case KindBool:
		return v.b
	default:
		return false
	}
}

// Equal reports whether two values hold the same variant and content.
func (v Value) Equal(o Value) bool {
	if v.kind != o.kind {
		return false
	}
	switch v.kind {
	case KindString:
		return v.str == o.str
	case KindNumber:
		return v.num == o.num
	case KindBool:
		return v.b == o.b
	default:
		return true
	}
}

func (v Value) String() string {
	if v.kind == KindString {
		return strconv.Quote(v.str)
	}
	return v.Text()
}

func (v Value) MarshalJSON() ([]byte, error) {
	switch v.kind {
	case KindString:
		return json.Marshal(v.str)
	case KindNumber:
		if math.IsNaN(v.num) || math.IsInf(v.num, 0) {
			return []byte("null"), nil
		}
		return json.Marshal(v.num)
	case KindBool:
		return json.Marshal(v.b)
	default:
		return []byte("null"), nil
	}
}

func (v *Value) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) == 0 {
		return fmt.Errorf("decoding value: empty input")
	}
	switch data[0] {
	case 'n':
		*v = Null()
	case 't', 'f':
		var b bool
		if err := json.Unmarshal(data, &b); err != nil {
			return fmt.Errorf("decoding bool value: %w", err)
		}
		*v = Bool(b)
	case '"':
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return fmt.Errorf("decoding string value: %w", err)
		}
		*v = String(s)
	case '{', '[':
		return fmt.Errorf("decoding value: %w", ErrNotScalar)
	default:
		var n float64
		if err := json.Unmarshal(data, &n); err != nil {
			return fmt.Errorf("decoding number value: %w", err)
		}
		*v = Number(n)
	}
	return nil
}

func formatNumber(n float64) string {
	switch {
	case math.IsNaN(n):
		return "NaN"
	case math.IsInf(n, 1):
		return "Infinity"
	case math.IsInf(n, -1):
		return "-Infinity"
	}
	return strconv.FormatFloat(n, 'f', -1, 64)
}
