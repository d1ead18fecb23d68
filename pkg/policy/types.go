package policy

import (
	"time"
)

// Severity represents the severity level of a policy violation.
type Severity string

const (
	// SeverityInfo is for informational messages.
	SeverityInfo Severity = "info"

	// SeverityWarning is for warnings that should be reviewed.
	SeverityWarning Severity = "warning"

	// SeverityError is for errors that block activation.
	SeverityError Severity = "error"

	// SeverityCritical is for critical violations that must be addressed immediately.
	SeverityCritical Severity = "critical"
)

// Blocking reports whether violations of this severity deny activation.
func (s Severity) Blocking() bool {
	return s == SeverityError || s == SeverityCritical
}

// Policy represents a policy rule with its Rego code.
type Policy struct {
	// Name is the unique name of the policy.
	Name string `json:"name"`

	// Description provides a human-readable description.
	Description string `json:"description"`

	// Rego contains the Rego policy code. Violations are read from its deny set.
	Rego string `json:"rego"`

	// Severity is the default severity for violations.
	Severity Severity `json:"severity"`

	// Enabled indicates if the policy is active.
	Enabled bool `json:"enabled"`

	// Builtin marks policies shipped with the runtime.
	Builtin bool `json:"builtin,omitempty"`

	// Tags are labels for organizing policies.
	Tags []string `json:"tags,omitempty"`

	// Metadata contains additional policy metadata.
	Metadata map[string]interface{} `json:"metadata,omitempty"`

	// CreatedAt is when the policy was created.
	CreatedAt time.Time `json:"created_at"`
}

// Violation represents a single policy violation.
type Violation struct {
	// Policy is the name of the policy that was violated.
	Policy string `json:"policy"`

	// Component is the component that violated the policy.
	Component string `json:"component,omitempty"`

	// Message is a human-readable violation message.
	Message string `json:"message"`

	// Severity is the violation severity level.
	Severity Severity `json:"severity"`
}

// Result represents the result of evaluating every enabled policy against one
// component activation.
type Result struct {
	// Allowed is false when any violation is blocking.
	Allowed bool `json:"allowed"`

	// Violations lists blocking violations.
	Violations []Violation `json:"violations,omitempty"`

	// Warnings lists violations that do not block activation.
	Warnings []Violation `json:"warnings,omitempty"`

	// EvaluatedPolicies lists the names of policies that were evaluated.
	EvaluatedPolicies []string `json:"evaluated_policies"`

	// EvaluatedAt is when the policies were evaluated.
	EvaluatedAt time.Time `json:"evaluated_at"`

	// Duration is how long the evaluation took.
	Duration time.Duration `json:"duration"`
}

// ActivationInput is the Rego input document for an activation.
type ActivationInput struct {
	// Component describes the resolved component.
	Component *ComponentInfo `json:"component"`

	// Context describes the runtime the component activates in.
	Context *ActivationContext `json:"context"`
}

// ComponentInfo describes a resolved component. Property values are never
// exposed to policies; only names are.
type ComponentInfo struct {
	Name    string   `json:"name"`
	Type    string   `json:"type"`
	Version string   `json:"version"`
	Scopes  []string `json:"scopes"`

	// Properties lists the resolved property names.
	Properties []string `json:"properties"`

	// WASM is true for WASM components.
	WASM bool `json:"wasm"`

	// StrictSandbox is the resolved strictSandbox property, if any.
	StrictSandbox string `json:"strict_sandbox,omitempty"`
}

// ActivationContext describes the runtime identity.
type ActivationContext struct {
	AppID         string    `json:"app_id"`
	Namespace     string    `json:"namespace"`
	StrictSandbox bool      `json:"strict_sandbox"`
	Timestamp     time.Time `json:"timestamp"`
}
