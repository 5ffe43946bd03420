// Package model contains domain models passed between layers.
package model

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
)

// Kind tags the variant held by a Value.
type Kind uint8

const (
	KindNull Kind = iota
	KindNumber
	KindString
)

func (k Kind) String() string {
	switch k {
	case KindNumber:
		return "number"
	case KindString:
		return "string"
	default:
		return "null"
	}
}

// Value is a raw or coerced observation value: null, a number, or a string.
// The zero Value is null.
type Value struct {
	kind Kind
	num  float64
	str  string
}

// Null returns the null Value.
func Null() Value { return Value{} }

// Number wraps f.
func Number(f float64) Value { return Value{kind: KindNumber, num: f} }

// Text wraps s.
func Text(s string) Value { return Value{kind: KindString, str: s} }

// Kind reports the variant.
func (v Value) Kind() Kind { return v.kind }

// IsNull reports whether v holds no value.
func (v Value) IsNull() bool { return v.kind == KindNull }

// Float returns the number held by v.
func (v Value) Float() (float64, bool) {
	if v.kind != KindNumber {
		return 0, false
	}
	return v.num, true
}

// Str returns the string held by v.
func (v Value) Str() (string, bool) {
	if v.kind != KindString {
		return "", false
	}
	return v.str, true
}

// String renders v for display; numbers use the shortest exact form.
func (v Value) String() string {
	switch v.kind {
	case KindNumber:
		return strconv.FormatFloat(v.num, 'f', -1, 64)
	case KindString:
		return v.str
	default:
		return ""
	}
}

// Equal reports whether both values hold the same variant and content.
func (v Value) Equal(o Value) bool {
	return v.kind == o.kind && v.num == o.num && v.str == o.str
}

// MarshalJSON encodes v as a JSON number, string, or null.
func (v Value) MarshalJSON() ([]byte, error) {
	switch v.kind {
	case KindNumber:
		return json.Marshal(v.num)
	case KindString:
		return json.Marshal(v.str)
	default:
		return []byte("null"), nil
	}
}

// UnmarshalJSON accepts a JSON number, string, or null. Booleans are stored as
// their text so the coercer can decide what to do with them.
func (v *Value) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) == 0 || bytes.Equal(data, []byte("null")) {
		*v = Null()
		return nil
	}
	switch data[0] {
	case '"':
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*v = Text(s)
	case 't', 'f':
		*v = Text(string(data))
	default:
		var f float64
		if err := json.Unmarshal(data, &f); err != nil {
			return fmt.Errorf("value must be a number, string or null: %w", err)
		}
		*v = Number(f)
	}
	return nil
}

// Encode renders v for storage as a kind-prefixed string ("n:", "s:", "").
func (v Value) Encode() string {
	switch v.kind {
	case KindNumber:
		return "n:" + strconv.FormatFloat(v.num, 'g', -1, 64)
	case KindString:
		return "s:" + v.str
	default:
		return ""
	}
}

// DecodeValue parses the output of Encode.
func DecodeValue(s string) (Value, error) {
	switch {
	case s == "":
		return Null(), nil
	case strings.HasPrefix(s, "n:"):
		f, err := strconv.ParseFloat(s[2:], 64)
		if err != nil {
			return Null(), fmt.Errorf("decode value %q: %w", s, err)
		}
		return Number(f), nil
	case strings.HasPrefix(s, "s:"):
		return Text(s[2:]), nil
	default:
		return Null(), fmt.Errorf("decode value %q: unknown kind", s)
	}
}
