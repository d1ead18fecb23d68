package meta

import (
	"strings"

	"github.com/gantry-run/gantry/pkg/components"
)

// StrictSandboxKey is the metadata entry that switches a WASM component into
// strict sandbox mode.
const StrictSandboxKey = "strictSandbox"

// IsWASMComponentType reports whether componentType names a WASM component, such
// as "middleware.http.wasm" or "my.WASM". The match is case-insensitive.
func IsWASMComponentType(componentType string) bool {
	return strings.Contains(strings.ToLower(componentType), "wasm")
}

// ApplySandboxPolicy returns a copy of comp with strict sandbox mode forced on
// when the runtime enforces it and comp is a WASM component. Every entry named
// strictSandbox (in any case) is set to true, so no duplicate can win later;
// without one, a new entry is appended. comp itself is never modified.
func (m *Meta) ApplySandboxPolicy(comp *components.Component) *components.Component {
	out := comp.DeepCopy()
	if !m.strictSandbox || !IsWASMComponentType(comp.ComponentType()) {
		return out
	}

	if out.Spec == nil {
		out.Spec = &components.ComponentSpec{}
	}

	found := false
	for i := range out.Spec.Metadata {
		if strings.EqualFold(out.Spec.Metadata[i].Name, StrictSandboxKey) {
			out.Spec.Metadata[i].SetValue([]byte("true"))
			out.Spec.Metadata[i].SecretKeyRef = nil
			out.Spec.Metadata[i].EnvRef = ""
			found = true
		}
	}
	if found {
		return out
	}

	item := components.NameValuePair{Name: StrictSandboxKey}
	item.SetValue([]byte("true"))
	out.Spec.Metadata = append(out.Spec.Metadata, item)
	return out
}
