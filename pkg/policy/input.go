package policy

import (
	"time"

	"github.com/gantry-run/gantry/pkg/components"
	"github.com/gantry-run/gantry/pkg/meta"
)

// NewActivationInput builds the policy input for comp resolved into base.
func NewActivationInput(comp *components.Component, base meta.MetaBase, m *meta.Meta) *ActivationInput {
	scopes := comp.Scopes
	if scopes == nil {
		scopes = []string{}
	}

	info := &ComponentInfo{
		Name:       comp.Name(),
		Type:       comp.ComponentType(),
		Version:    comp.ComponentVersion(),
		Scopes:     scopes,
		Properties: base.Names(),
		WASM:       meta.IsWASMComponentType(comp.ComponentType()),
	}
	if v, ok := base.GetProperty(meta.StrictSandboxKey); ok {
		info.StrictSandbox = v
	}

	return &ActivationInput{
		Component: info,
		Context: &ActivationContext{
			AppID:         m.AppID(),
			Namespace:     m.Namespace(),
			StrictSandbox: m.StrictSandbox(),
			Timestamp:     time.Now(),
		},
	}
}
