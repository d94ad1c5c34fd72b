package domain

import (
	"bytes"
	"encoding/json"
	"fmt"
	"math"
	"strconv"

	"gopkg.in/yaml.v3"
)

// ValueKind tags the scalar held by a Value.
type ValueKind uint8

const (
	KindNone ValueKind = iota
	KindInt
	KindBool
	KindString
)

func (k ValueKind) String() string {
	switch k {
	case KindInt:
		return "int"
	case KindBool:
		return "bool"
	case KindString:
		return "string"
	default:
		return "none"
	}
}

// Value is an answer or option value: an integer, boolean or string scalar.
// Two values are equal only when both kind and payload match, so the boolean
// true never equals the string "true" or the integer 1.
type Value struct {
	kind ValueKind
	i    int64
	b    bool
	s    string
}

func Int(v int64) Value     { return Value{kind: KindInt, i: v} }
func Bool(v bool) Value     { return Value{kind: KindBool, b: v} }
func String(v string) Value { return Value{kind: KindString, s: v} }

func (v Value) Kind() ValueKind { return v.kind }

// IsZero reports whether no value was supplied.
func (v Value) IsZero() bool { return v.kind == KindNone }

// Equal is strict kind+value equality.
func (v Value) Equal(o Value) bool { return v == o }

// AsInt returns the integer payload when the value is an Int.
func (v Value) AsInt() (int64, bool) {
	if v.kind != KindInt {
		return 0, false
	}
	return v.i, true
}

// Text renders the value the way it is stored in response records.
func (v Value) Text() string {
	switch v.kind {
	case KindInt:
		return strconv.FormatInt(v.i, 10)
	case KindBool:
		return strconv.FormatBool(v.b)
	case KindString:
		return v.s
	default:
		return ""
	}
}

func (v Value) String() string {
	if v.kind == KindString {
		return strconv.Quote(v.s)
	}
	if v.kind == KindNone {
		return "null"
	}
	return v.Text()
}

func (v Value) MarshalJSON() ([]byte, error) {
	switch v.kind {
	case KindInt:
		return []byte(strconv.FormatInt(v.i, 10)), nil
	case KindBool:
		return []byte(strconv.FormatBool(v.b)), nil
	case KindString:
		return json.Marshal(v.s)
	default:
		return []byte("null"), nil
	}
}

func (v *Value) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	switch {
	case len(data) == 0:
		return ErrInvalidValue
	case bytes.Equal(data, []byte("null")):
		*v = Value{}
	case bytes.Equal(data, []byte("true")):
		*v = Bool(true)
	case bytes.Equal(data, []byte("false")):
		*v = Bool(false)
	case data[0] == '"':
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*v = String(s)
	case data[0] == '{' || data[0] == '[':
		return fmt.Errorf("%w: expected scalar, got %s", ErrInvalidValue, compositeName(data[0]))
	default:
		n, err := parseInteger(string(data))
		if err != nil {
			return err
		}
		*v = Int(n)
	}
	return nil
}

func (v *Value) UnmarshalYAML(node *yaml.Node) error {
	if node.Kind != yaml.ScalarNode {
		return fmt.Errorf("%w: line %d: expected scalar", ErrInvalidValue, node.Line)
	}
	switch node.Tag {
	case "!!null":
		*v = Value{}
	case "!!bool":
		var b bool
		if err := node.Decode(&b); err != nil {
			return err
		}
		*v = Bool(b)
	case "!!int", "!!float":
		n, err := parseInteger(node.Value)
		if err != nil {
			return fmt.Errorf("line %d: %w", node.Line, err)
		}
		*v = Int(n)
	default:
		*v = String(node.Value)
	}
	return nil
}

// parseInteger accepts integral numbers, including integral floats such as 2.0
// which JSON clients commonly emit. Values outside the int64 range are rejected
// rather than wrapped.
func parseInteger(raw string) (int64, error) {
	if n, err := strconv.ParseInt(raw, 10, 64); err == nil {
		return n, nil
	}
	f, err := strconv.ParseFloat(raw, 64)
	if err != nil || f != math.Trunc(f) || math.IsInf(f, 0) {
		return 0, fmt.Errorf("%w: %q is not an integer", ErrInvalidValue, raw)
	}
	// float64(math.MaxInt64) rounds up to 2^63, which itself overflows.
	if f < math.MinInt64 || f >= math.MaxInt64 {
		return 0, fmt.Errorf("%w: %q is out of range", ErrInvalidValue, raw)
	}
	return int64(f), nil
}

func compositeName(c byte) string {
	if c == '{' {
		return "object"
	}
	return "array"
}

// Answers maps a node key or question id to the answer supplied for it.
type Answers map[string]Value
