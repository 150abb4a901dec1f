package domain

import (
	"bytes"
	"encoding/json"
	"math"
	"strconv"
	"strings"
)

// The backend payload is loosely typed. The value types below decode any
// JSON value without failing; a value of the wrong shape is kept as absent
// so a single bad field never rejects the whole response.

var jsonNull = []byte("null")

func isNull(b []byte) bool {
	b = bytes.TrimSpace(b)
	return len(b) == 0 || bytes.Equal(b, jsonNull)
}

// Text is a string field. Non-string JSON values decode as absent.
type Text struct {
	s  string
	ok bool
}

// Str returns a present Text.
func Str(s string) Text { return Text{s: s, ok: true} }

// Valid reports whether the field held a JSON string.
func (t Text) Valid() bool { return t.ok }

// String returns the raw value, or "" when absent.
func (t Text) String() string { return t.s }

// Or returns the value when it has non-blank content, otherwise fallback.
func (t Text) Or(fallback string) string {
	if t.ok && strings.TrimSpace(t.s) != "" {
		return t.s
	}
	return fallback
}

// Is reports whether the field holds exactly s.
func (t Text) Is(s string) bool { return t.ok && t.s == s }

func (t *Text) UnmarshalJSON(b []byte) error {
	*t = Text{}
	if isNull(b) {
		return nil
	}
	var s string
	if err := json.Unmarshal(b, &s); err == nil {
		*t = Str(s)
	}
	return nil
}

func (t Text) MarshalJSON() ([]byte, error) {
	if !t.ok {
		return jsonNull, nil
	}
	return json.Marshal(t.s)
}

// Number is a numeric field. JSON numbers and numeric strings are accepted
// (a blank string counts as 0); anything else, including values that do not
// fit a finite float64, decodes as absent.
type Number struct {
	v  float64
	ok bool
}

// Num returns a present Number, or an absent one if f is not finite.
func Num(f float64) Number {
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return Number{}
	}
	return Number{v: f, ok: true}
}

// Valid reports whether the field held a finite number.
func (n Number) Valid() bool { return n.ok }

// Or returns the value, or fallback when absent.
func (n Number) Or(fallback float64) float64 {
	if !n.ok {
		return fallback
	}
	return n.v
}

func (n *Number) UnmarshalJSON(b []byte) error {
	*n = Number{}
	b = bytes.TrimSpace(b)
	if isNull(b) {
		return nil
	}
	switch c := b[0]; {
	case c == '"':
		var s string
		if err := json.Unmarshal(b, &s); err == nil {
			*n = ParseNumber(s)
		}
	case c == '-' || (c >= '0' && c <= '9'):
		if f, err := strconv.ParseFloat(string(b), 64); err == nil {
			*n = Num(f)
		}
	}
	return nil
}

func (n Number) MarshalJSON() ([]byte, error) {
	if !n.ok {
		return jsonNull, nil
	}
	return json.Marshal(n.v)
}

// ParseNumber converts a numeric string. Surrounding whitespace is ignored
// and a blank string is 0.
func ParseNumber(s string) Number {
	s = strings.TrimSpace(s)
	if s == "" {
		return Num(0)
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return Number{}
	}
	return Num(f)
}

// ID references a graph node. The backend sends either strings ("c:12") or
// numbers; a string and a number never compare equal, and numbers compare by
// value (1 == 1.0). An absent ID matches nothing.
type ID struct {
	key     string
	numeric bool
	ok      bool
}

// StrID returns a string node id.
func StrID(s string) ID { return ID{key: s, ok: true} }

// NumID returns a numeric node id, or an absent one if f is not finite.
func NumID(f float64) ID {
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return ID{}
	}
	return ID{key: strconv.FormatFloat(f, 'g', -1, 64), numeric: true, ok: true}
}

// Valid reports whether the id is present.
func (id ID) Valid() bool { return id.ok }

// Numeric reports whether the id was sent as a JSON number.
func (id ID) Numeric() bool { return id.numeric }

// String returns the id text ("" when absent).
func (id ID) String() string { return id.key }

// Matches reports whether both ids are present and identical.
func (id ID) Matches(other ID) bool { return id.ok && id == other }

func (id *ID) UnmarshalJSON(b []byte) error {
	*id = ID{}
	b = bytes.TrimSpace(b)
	if isNull(b) {
		return nil
	}
	switch c := b[0]; {
	case c == '"':
		var s string
		if err := json.Unmarshal(b, &s); err == nil {
			*id = StrID(s)
		}
	case c == '-' || (c >= '0' && c <= '9'):
		if f, err := strconv.ParseFloat(string(b), 64); err == nil {
			*id = NumID(f)
		}
	}
	return nil
}

func (id ID) MarshalJSON() ([]byte, error) {
	switch {
	case !id.ok:
		return jsonNull, nil
	case id.numeric:
		return []byte(id.key), nil
	default:
		return json.Marshal(id.key)
	}
}

// Flag is a boolean field using JSON truthiness: false, 0 and "" are false,
// any other non-null value is true, and null or absent falls back to the
// caller's default.
type Flag struct {
	v   bool
	set bool
}

// Bool returns a present Flag.
func Bool(v bool) Flag { return Flag{v: v, set: true} }

// Or returns the flag value, or def when absent.
func (f Flag) Or(def bool) bool {
	if !f.set {
		return def
	}
	return f.v
}

func (f *Flag) UnmarshalJSON(b []byte) error {
	*f = Flag{}
	b = bytes.TrimSpace(b)
	if isNull(b) {
		return nil
	}
	switch b[0] {
	case 't':
		*f = Bool(true)
	case 'f':
		*f = Bool(false)
	case '"':
		var s string
		if err := json.Unmarshal(b, &s); err == nil {
			*f = Bool(s != "")
		}
	case '{', '[':
		*f = Bool(true)
	default:
		if v, err := strconv.ParseFloat(string(b), 64); err == nil {
			*f = Bool(v != 0)
		} else {
			// Out-of-range literals are still non-zero numbers.
			*f = Bool(true)
		}
	}
	return nil
}

func (f Flag) MarshalJSON() ([]byte, error) {
	if !f.set {
		return jsonNull, nil
	}
	return json.Marshal(f.v)
}

// List is an array field. Non-arrays decode as empty; null elements and
// elements that do not decode into T are dropped.
type List[T any] []T

func (l *List[T]) UnmarshalJSON(b []byte) error {
	*l = nil
	var raw []json.RawMessage
	if err := json.Unmarshal(b, &raw); err != nil {
		return nil
	}
	out := make(List[T], 0, len(raw))
	for _, r := range raw {
		if isNull(r) {
			continue
		}
		var v T
		if err := json.Unmarshal(r, &v); err != nil {
			continue
		}
		out = append(out, v)
	}
	*l = out
	return nil
}

// Object is a nested object field. Non-objects decode as absent.
type Object[T any] struct {
	value T
	ok    bool
}

// Some returns a present Object.
func Some[T any](v T) Object[T] { return Object[T]{value: v, ok: true} }

// Get returns the value and whether it was present.
func (o Object[T]) Get() (T, bool) { return o.value, o.ok }

// Value returns the value, or the zero T when absent.
func (o Object[T]) Value() T { return o.value }

// Present reports whether the field held a JSON object.
func (o Object[T]) Present() bool { return o.ok }

func (o *Object[T]) UnmarshalJSON(b []byte) error {
	*o = Object[T]{}
	b = bytes.TrimSpace(b)
	if len(b) == 0 || b[0] != '{' {
		return nil
	}
	var v T
	if err := json.Unmarshal(b, &v); err != nil {
		return nil
	}
	*o = Some(v)
	return nil
}

func (o Object[T]) MarshalJSON() ([]byte, error) {
	if !o.ok {
		return jsonNull, nil
	}
	return json.Marshal(o.value)
}
