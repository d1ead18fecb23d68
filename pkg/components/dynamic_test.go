package components

import (
	"encoding/json"
	"errors"
	"testing"

	"gopkg.in/yaml.v3"
)

func TestDynamicValueString(t *testing.T) {
	tests := []struct {
		name  string
		value DynamicValue
		want  string
	}{
		{name: "plain string", value: StringValue("hello world"), want: "hello world"},
		{name: "json encoded string", value: StringValue(`"quoted"`), want: "quoted"},
		{name: "numeric string", value: StringValue("42"), want: "42"},
		{name: "number", value: NumberValue("42"), want: "42"},
		{name: "float", value: NumberValue("1.5"), want: "1.5"},
		{name: "bool", value: BoolValue(true), want: "true"},
		{name: "null", value: NullValue(), want: "null"},
		{name: "zero value", value: DynamicValue{}, want: "null"},
		{
			name:  "object",
			value: ObjectValue(map[string]DynamicValue{"key": StringValue("value")}),
			want:  `{"key":"value"}`,
		},
		{
			name: "object keys sorted",
			value: ObjectValue(map[string]DynamicValue{
				"b": NumberValue("2"),
				"a": NumberValue("1"),
			}),
			want: `{"a":1,"b":2}`,
		},
		{
			name:  "array",
			value: ArrayValue(StringValue("a"), BoolValue(false), NullValue()),
			want:  `["a",false,null]`,
		},
		{name: "html is not escaped", value: ArrayValue(StringValue("<a&b>")), want: `["<a&b>"]`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.value.String(); got != tt.want {
				t.Errorf("String() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestParseDynamicValue(t *testing.T) {
	t.Run("object", func(t *testing.T) {
		v, err := ParseDynamicValue([]byte(`{"test": "value"}`))
		if err != nil {
			t.Fatalf("ParseDynamicValue() error = %v", err)
		}
		if v.Kind() != KindObject {
			t.Fatalf("Kind() = %s, want object", v.Kind())
		}
		want := ObjectValue(map[string]DynamicValue{"test": StringValue("value")})
		if !v.Equal(want) {
			t.Errorf("parsed %s, want %s", v, want)
		}
	})

	t.Run("invalid json", func(t *testing.T) {
		_, err := ParseDynamicValue([]byte("invalid json"))
		if !errors.Is(err, ErrMalformedValue) {
			t.Fatalf("expected ErrMalformedValue, got %v", err)
		}
	})

	t.Run("trailing data", func(t *testing.T) {
		_, err := ParseDynamicValue([]byte(`{"a":1} {"b":2}`))
		if !errors.Is(err, ErrMalformedValue) {
			t.Fatalf("expected ErrMalformedValue, got %v", err)
		}
	})

	t.Run("empty input", func(t *testing.T) {
		if _, err := ParseDynamicValue(nil); !errors.Is(err, ErrMalformedValue) {
			t.Fatalf("expected ErrMalformedValue, got %v", err)
		}
	})
}

func TestDynamicValueRoundTrip(t *testing.T) {
	inputs := []string{
		`null`,
		`true`,
		`42`,
		`-0.25`,
		`12345678901234567890`,
		`"text"`,
		`"\"nested\""`,
		`[1, "two", [3], {"four": 4}]`,
		`{"nested": {"key": "value", "list": [true, null]}}`,
	}

	for _, input := range inputs {
		t.Run(input, func(t *testing.T) {
			original, err := ParseDynamicValue([]byte(input))
			if err != nil {
				t.Fatalf("ParseDynamicValue() error = %v", err)
			}

			encoded, err := original.Bytes()
			if err != nil {
				t.Fatalf("Bytes() error = %v", err)
			}

			reparsed, err := ParseDynamicValue(encoded)
			if err != nil {
				t.Fatalf("reparse of %s failed: %v", encoded, err)
			}
			if !original.Equal(reparsed) {
				t.Errorf("round trip changed value: %s -> %s", input, encoded)
			}
		})
	}
}

func TestDynamicValueFromBytes(t *testing.T) {
	tests := []struct {
		name string
		in   []byte
		kind ValueKind
		text string
	}{
		{name: "boolean", in: []byte("true"), kind: KindBool, text: "true"},
		{name: "number", in: []byte("7"), kind: KindNumber, text: "7"},
		{name: "plain text falls back to string", in: []byte("test data"), kind: KindString, text: "test data"},
		{name: "json string", in: []byte(`"x"`), kind: KindString, text: "x"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			v := DynamicValueFromBytes(tt.in)
			if v.Kind() != tt.kind {
				t.Errorf("Kind() = %s, want %s", v.Kind(), tt.kind)
			}
			if v.String() != tt.text {
				t.Errorf("String() = %q, want %q", v.String(), tt.text)
			}
		})
	}
}

func TestDynamicValueJSONAndYAML(t *testing.T) {
	var fromJSON struct {
		Value DynamicValue `json:"value"`
	}
	if err := json.Unmarshal([]byte(`{"value": {"nested": [1, 2]}}`), &fromJSON); err != nil {
		t.Fatalf("json.Unmarshal() error = %v", err)
	}
	if got := fromJSON.Value.String(); got != `{"nested":[1,2]}` {
		t.Errorf("JSON decoded value = %s", got)
	}

	out, err := json.Marshal(fromJSON)
	if err != nil {
		t.Fatalf("json.Marshal() error = %v", err)
	}
	if string(out) != `{"value":{"nested":[1,2]}}` {
		t.Errorf("json.Marshal() = %s", out)
	}

	var fromYAML struct {
		Number DynamicValue `yaml:"number"`
		Quoted DynamicValue `yaml:"quoted"`
		Flag   DynamicValue `yaml:"flag"`
		Map    DynamicValue `yaml:"map"`
		Dates  DynamicValue `yaml:"dates"`
	}
	doc := "number: 42\nquoted: \"42\"\nflag: true\nmap:\n  a: 1\ndates:\n  from: 2024-01-01\n  days: [2024-02-29]\n"
	if err := yaml.Unmarshal([]byte(doc), &fromYAML); err != nil {
		t.Fatalf("yaml.Unmarshal() error = %v", err)
	}
	if fromYAML.Number.Kind() != KindNumber || fromYAML.Number.String() != "42" {
		t.Errorf("number = %s (%s)", fromYAML.Number, fromYAML.Number.Kind())
	}
	if fromYAML.Quoted.Kind() != KindString || fromYAML.Quoted.String() != "42" {
		t.Errorf("quoted = %s (%s)", fromYAML.Quoted, fromYAML.Quoted.Kind())
	}
	if fromYAML.Flag.Kind() != KindBool {
		t.Errorf("flag kind = %s", fromYAML.Flag.Kind())
	}
	if fromYAML.Map.String() != `{"a":1}` {
		t.Errorf("map = %s", fromYAML.Map)
	}
	if got := fromYAML.Dates.String(); got != `{"days":["2024-02-29"],"from":"2024-01-01"}` {
		t.Errorf("dates = %s", got)
	}
}

func TestDynamicValueDeepCopy(t *testing.T) {
	original := ObjectValue(map[string]DynamicValue{
		"list": ArrayValue(StringValue("a")),
	})
	copied := original.DeepCopy()
	copied.obj["list"].arr[0] = StringValue("b")

	if original.String() != `{"list":["a"]}` {
		t.Errorf("original mutated through copy: %s", original)
	}
}
