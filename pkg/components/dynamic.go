package components

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math"
	"strconv"
	"strings"
	"unicode/utf8"

	"gopkg.in/yaml.v3"
)

// ErrMalformedValue is returned when bytes handed to ParseDynamicValue are not valid JSON.
var ErrMalformedValue = errors.New("malformed dynamic value")

// ValueKind identifies the variant held by a DynamicValue.
type ValueKind uint8

const (
	KindNull ValueKind = iota
	KindBool
	KindNumber
	KindString
	KindArray
	KindObject
)

// String returns the lowercase name of the kind.
func (k ValueKind) String() string {
	switch k {
	case KindNull:
		return "null"
	case KindBool:
		return "bool"
	case KindNumber:
		return "number"
	case KindString:
		return "string"
	case KindArray:
		return "array"
	case KindObject:
		return "object"
	default:
		return "unknown"
	}
}

// DynamicValue is the value of a component metadata entry. It holds exactly one
// JSON-shaped variant. The zero value is Null.
type DynamicValue struct {
	kind ValueKind
	b    bool
	num  json.Number
	str  string
	arr  []DynamicValue
	obj  map[string]DynamicValue
}

// NullValue returns the JSON null value.
func NullValue() DynamicValue { return DynamicValue{} }

// BoolValue wraps a boolean.
func BoolValue(b bool) DynamicValue { return DynamicValue{kind: KindBool, b: b} }

// NumberValue wraps a JSON number literal such as "42" or "1.5".
func NumberValue(n json.Number) DynamicValue { return DynamicValue{kind: KindNumber, num: n} }

// StringValue wraps a string.
func StringValue(s string) DynamicValue { return DynamicValue{kind: KindString, str: s} }

// ArrayValue wraps a list of values.
func ArrayValue(items ...DynamicValue) DynamicValue {
	return DynamicValue{kind: KindArray, arr: items}
}

// ObjectValue wraps a map of values.
func ObjectValue(fields map[string]DynamicValue) DynamicValue {
	return DynamicValue{kind: KindObject, obj: fields}
}

// Kind reports which variant v holds.
func (v DynamicValue) Kind() ValueKind { return v.kind }

// IsNull reports whether v is the JSON null.
func (v DynamicValue) IsNull() bool { return v.kind == KindNull }

// ParseDynamicValue parses b as a single JSON document.
func ParseDynamicValue(b []byte) (DynamicValue, error) {
	dec := json.NewDecoder(bytes.NewReader(b))
	dec.UseNumber()

	var raw interface{}
	if err := dec.Decode(&raw); err != nil {
		return DynamicValue{}, fmt.Errorf("%w: %v", ErrMalformedValue, err)
	}
	if _, err := dec.Token(); err != io.EOF {
		return DynamicValue{}, fmt.Errorf("%w: trailing data after JSON value", ErrMalformedValue)
	}

	return fromInterface(raw), nil
}

// DynamicValueFromBytes converts raw bytes to a value: the bytes are read as UTF-8
// text and parsed as JSON, falling back to a JSON string holding the text.
func DynamicValueFromBytes(b []byte) DynamicValue {
	if v, err := ParseDynamicValue(b); err == nil {
		return v
	}
	s := string(b)
	if !utf8.ValidString(s) {
		s = strings.ToValidUTF8(s, "�")
	}
	return StringValue(s)
}

// Bytes returns the canonical JSON encoding of v. Object keys are sorted.
func (v DynamicValue) Bytes() ([]byte, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(v.toInterface()); err != nil {
		return nil, err
	}
	return bytes.TrimSuffix(buf.Bytes(), []byte("\n")), nil
}

// String returns the text form of v handed to component drivers. A string whose
// content is itself a JSON-encoded string is unquoted; other strings are returned
// verbatim. Every other variant renders as canonical JSON.
func (v DynamicValue) String() string {
	if v.kind == KindString {
		var unquoted string
		if err := json.Unmarshal([]byte(v.str), &unquoted); err == nil {
			return unquoted
		}
		return v.str
	}

	b, err := v.Bytes()
	if err != nil {
		// toInterface only yields encodable values
		return fmt.Sprint(v.toInterface())
	}
	return string(b)
}

// Equal reports whether v and other are structurally equal.
func (v DynamicValue) Equal(other DynamicValue) bool {
	if v.kind != other.kind {
		return false
	}
	switch v.kind {
	case KindNull:
		return true
	case KindBool:
		return v.b == other.b
	case KindNumber:
		return v.num == other.num
	case KindString:
		return v.str == other.str
	case KindArray:
		if len(v.arr) != len(other.arr) {
			return false
		}
		for i := range v.arr {
			if !v.arr[i].Equal(other.arr[i]) {
				return false
			}
		}
		return true
	case KindObject:
		if len(v.obj) != len(other.obj) {
			return false
		}
		for k, item := range v.obj {
			o, ok := other.obj[k]
			if !ok || !item.Equal(o) {
				return false
			}
		}
		return true
	}
	return false
}

// DeepCopy returns a copy of v that shares no slices or maps with it.
func (v DynamicValue) DeepCopy() DynamicValue {
	out := v
	if v.arr != nil {
		out.arr = make([]DynamicValue, len(v.arr))
		for i := range v.arr {
			out.arr[i] = v.arr[i].DeepCopy()
		}
	}
	if v.obj != nil {
		out.obj = make(map[string]DynamicValue, len(v.obj))
		for k, item := range v.obj {
			out.obj[k] = item.DeepCopy()
		}
	}
	return out
}

// MarshalJSON implements json.Marshaler.
func (v DynamicValue) MarshalJSON() ([]byte, error) {
	return v.Bytes()
}

// UnmarshalJSON implements json.Unmarshaler.
func (v *DynamicValue) UnmarshalJSON(b []byte) error {
	parsed, err := ParseDynamicValue(b)
	if err != nil {
		return err
	}
	*v = parsed
	return nil
}

// MarshalYAML implements yaml.Marshaler.
func (v DynamicValue) MarshalYAML() (interface{}, error) {
	switch v.kind {
	case KindNumber:
		if i, err := v.num.Int64(); err == nil {
			return i, nil
		}
		if f, err := v.num.Float64(); err == nil {
			return f, nil
		}
		return string(v.num), nil
	case KindArray:
		items := make([]interface{}, len(v.arr))
		for i := range v.arr {
			item, _ := v.arr[i].MarshalYAML()
			items[i] = item
		}
		return items, nil
	case KindObject:
		fields := make(map[string]interface{}, len(v.obj))
		for k, item := range v.obj {
			fields[k], _ = item.MarshalYAML()
		}
		return fields, nil
	default:
		return v.toInterface(), nil
	}
}

// UnmarshalYAML implements yaml.Unmarshaler.
func (v *DynamicValue) UnmarshalYAML(node *yaml.Node) error {
	var raw interface{}
	if err := timestampsAsText(node).Decode(&raw); err != nil {
		return fmt.Errorf("%w: %v", ErrMalformedValue, err)
	}
	*v = fromInterface(raw)
	return nil
}

// timestampsAsText returns a copy of node in which plain scalars that YAML
// resolves to timestamps are tagged as strings, so they keep their literal text.
func timestampsAsText(node *yaml.Node) *yaml.Node {
	out := *node
	if node.Kind == yaml.ScalarNode && node.ShortTag() == "!!timestamp" {
		out.Tag = "!!str"
		return &out
	}
	if len(node.Content) > 0 {
		out.Content = make([]*yaml.Node, len(node.Content))
		for i, child := range node.Content {
			out.Content[i] = timestampsAsText(child)
		}
	}
	return &out
}

// fromInterface converts decoded JSON or YAML data into a DynamicValue.
func fromInterface(raw interface{}) DynamicValue {
	switch t := raw.(type) {
	case nil:
		return NullValue()
	case bool:
		return BoolValue(t)
	case json.Number:
		return NumberValue(t)
	case string:
		return StringValue(t)
	case int:
		return NumberValue(json.Number(strconv.Itoa(t)))
	case int64:
		return NumberValue(json.Number(strconv.FormatInt(t, 10)))
	case uint64:
		return NumberValue(json.Number(strconv.FormatUint(t, 10)))
	case float64:
		if math.IsInf(t, 0) || math.IsNaN(t) {
			return StringValue(strconv.FormatFloat(t, 'g', -1, 64))
		}
		return NumberValue(json.Number(strconv.FormatFloat(t, 'g', -1, 64)))
	case []interface{}:
		items := make([]DynamicValue, len(t))
		for i := range t {
			items[i] = fromInterface(t[i])
		}
		return ArrayValue(items...)
	case map[string]interface{}:
		fields := make(map[string]DynamicValue, len(t))
		for k, item := range t {
			fields[k] = fromInterface(item)
		}
		return ObjectValue(fields)
	case map[interface{}]interface{}:
		fields := make(map[string]DynamicValue, len(t))
		for k, item := range t {
			fields[fmt.Sprint(k)] = fromInterface(item)
		}
		return ObjectValue(fields)
	default:
		return StringValue(fmt.Sprint(t))
	}
}

// toInterface converts v into values encoding/json and yaml.v3 can encode.
func (v DynamicValue) toInterface() interface{} {
	switch v.kind {
	case KindBool:
		return v.b
	case KindNumber:
		if _, err := strconv.ParseFloat(string(v.num), 64); err != nil {
			return string(v.num)
		}
		return v.num
	case KindString:
		return v.str
	case KindArray:
		items := make([]interface{}, len(v.arr))
		for i := range v.arr {
			items[i] = v.arr[i].toInterface()
		}
		return items
	case KindObject:
		// encoding/json sorts map keys, which keeps Bytes canonical
		fields := make(map[string]interface{}, len(v.obj))
		for k, item := range v.obj {
			fields[k] = item.toInterface()
		}
		return fields
	default:
		return nil
	}
}
