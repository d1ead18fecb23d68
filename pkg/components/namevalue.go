package components

import (
	"fmt"
)

// ValueSource identifies where the value of a NameValuePair comes from.
type ValueSource string

const (
	// SourceNone means the entry carries no value at all.
	SourceNone ValueSource = "none"

	// SourceValue means the entry carries an inline value.
	SourceValue ValueSource = "value"

	// SourceSecretRef means the value is read from a secret store.
	SourceSecretRef ValueSource = "secretKeyRef"

	// SourceEnvRef means the value is read from an environment variable.
	SourceEnvRef ValueSource = "envRef"
)

// NameValuePair is a single component metadata entry.
type NameValuePair struct {
	// Name is the property name handed to the driver.
	Name string `json:"name" yaml:"name" validate:"required"`

	// Value is the inline value, in plaintext.
	Value *DynamicValue `json:"value,omitempty" yaml:"value,omitempty"`

	// SecretKeyRef references a value held in a secret store component.
	SecretKeyRef *SecretKeyRef `json:"secretKeyRef,omitempty" yaml:"secretKeyRef,omitempty"`

	// EnvRef is the name of an environment variable to read the value from.
	EnvRef string `json:"envRef,omitempty" yaml:"envRef,omitempty"`
}

// SecretKeyRef is a reference to a secret holding the value of an entry.
type SecretKeyRef struct {
	// Name is the secret name.
	Name string `json:"name" yaml:"name" validate:"required"`

	// Key is the field inside the secret. Empty means the secret name is used.
	Key string `json:"key,omitempty" yaml:"key,omitempty"`
}

// HasValue reports whether the entry has an inline value that is not null.
func (p NameValuePair) HasValue() bool {
	return p.Value != nil && !p.Value.IsNull()
}

// SetValue replaces the inline value with the value decoded from b.
// See DynamicValueFromBytes for the encoding.
func (p *NameValuePair) SetValue(b []byte) {
	v := DynamicValueFromBytes(b)
	p.Value = &v
}

// Source returns the variant the entry uses. An inline value wins over references
// when several are set; Validate rejects such entries.
func (p NameValuePair) Source() ValueSource {
	switch {
	case p.HasValue():
		return SourceValue
	case p.SecretKeyRef != nil:
		return SourceSecretRef
	case p.EnvRef != "":
		return SourceEnvRef
	default:
		return SourceNone
	}
}

// Text returns the literal text of the inline value, or "" for reference-backed
// and empty entries.
func (p NameValuePair) Text() string {
	if p.Value == nil {
		return ""
	}
	return p.Value.String()
}

// Validate checks that at most one value source is set.
func (p NameValuePair) Validate() error {
	sources := 0
	if p.HasValue() {
		sources++
	}
	if p.SecretKeyRef != nil {
		sources++
	}
	if p.EnvRef != "" {
		sources++
	}
	if sources > 1 {
		return fmt.Errorf("metadata %q: value, secretKeyRef and envRef are mutually exclusive", p.Name)
	}
	return nil
}

// DeepCopy returns a copy of p that shares no pointers with it.
func (p NameValuePair) DeepCopy() NameValuePair {
	out := NameValuePair{Name: p.Name, EnvRef: p.EnvRef}
	if p.Value != nil {
		v := p.Value.DeepCopy()
		out.Value = &v
	}
	if p.SecretKeyRef != nil {
		ref := *p.SecretKeyRef
		out.SecretKeyRef = &ref
	}
	return out
}
