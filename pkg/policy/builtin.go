package policy

import (
	"time"
)

// Built-in policy names.
const (
	PolicyWASMStrictSandbox = "wasm-strict-sandbox"
	PolicyComponentNaming   = "component-naming"
	PolicyScopesSelf        = "scopes-self"
)

// GetBuiltinPolicies returns all built-in policies.
func GetBuiltinPolicies() []Policy {
	return []Policy{
		wasmStrictSandboxPolicy(),
		componentNamingPolicy(),
		scopesSelfPolicy(),
	}
}

// wasmStrictSandboxPolicy checks that the resolved metadata of a WASM component
// carries strictSandbox=true whenever the runtime enforces strict sandboxing.
func wasmStrictSandboxPolicy() Policy {
	return Policy{
		Name:        PolicyWASMStrictSandbox,
		Description: "WASM components must run in strict sandbox mode when the runtime enforces it",
		Severity:    SeverityCritical,
		Enabled:     true,
		Builtin:     true,
		Tags:        []string{"wasm", "sandbox", "security"},
		CreatedAt:   time.Now(),
		Rego: `package gantry.policies.sandbox

import rego.v1

deny contains violation if {
	input.context.strict_sandbox
	input.component.wasm
	object.get(input.component, "strict_sandbox", "") != "true"
	violation := {
		"message": sprintf("WASM component %s must set strictSandbox=true", [input.component.name]),
		"severity": "critical",
	}
}`,
	}
}

// componentNamingPolicy enforces DNS-1123 label names.
func componentNamingPolicy() Policy {
	return Policy{
		Name:        PolicyComponentNaming,
		Description: "Component names must be lowercase DNS-1123 labels",
		Severity:    SeverityError,
		Enabled:     true,
		Builtin:     true,
		Tags:        []string{"naming", "conventions"},
		CreatedAt:   time.Now(),
		Rego: `package gantry.policies.naming

import rego.v1

deny contains violation if {
	name := input.component.name
	name == ""
	violation := {
		"message": "Component must have a name",
		"severity": "error",
	}
}

deny contains violation if {
	name := input.component.name
	name != ""
	not regex.match("^[a-z0-9]([-a-z0-9]*[a-z0-9])?$", name)
	violation := {
		"message": sprintf("Component name '%s' must contain only lowercase letters, numbers, and hyphens, and start and end with an alphanumeric character", [name]),
		"severity": "error",
	}
}

deny contains violation if {
	name := input.component.name
	count(name) > 63
	violation := {
		"message": sprintf("Component name '%s' must not exceed 63 characters", [name]),
		"severity": "error",
	}
}`,
	}
}

// scopesSelfPolicy warns when a scoped component does not include the running app.
func scopesSelfPolicy() Policy {
	return Policy{
		Name:        PolicyScopesSelf,
		Description: "Warns when a scoped component is loaded by an application outside its scopes",
		Severity:    SeverityWarning,
		Enabled:     true,
		Builtin:     true,
		Tags:        []string{"scopes"},
		CreatedAt:   time.Now(),
		Rego: `package gantry.policies.scopes

import rego.v1

deny contains violation if {
	count(input.component.scopes) > 0
	not input.context.app_id in input.component.scopes
	violation := {
		"message": sprintf("Component %s is not scoped to application %s", [input.component.name, input.context.app_id]),
		"severity": "warning",
	}
}`,
	}
}
