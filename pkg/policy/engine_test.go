package policy

import (
	"context"
	"strings"
	"testing"

	"github.com/rs/zerolog"
)

func newTestEngine(t *testing.T) *Engine {
	t.Helper()

	eng, err := NewEngine(zerolog.New(nil).Level(zerolog.Disabled))
	if err != nil {
		t.Fatalf("Failed to create engine: %v", err)
	}
	return eng
}

func activationInput(name, componentType string) *ActivationInput {
	return &ActivationInput{
		Component: &ComponentInfo{
			Name:       name,
			Type:       componentType,
			Version:    "v1",
			Scopes:     []string{},
			Properties: []string{},
		},
		Context: &ActivationContext{
			AppID:     "app1",
			Namespace: "default",
		},
	}
}

func TestNewEngine(t *testing.T) {
	eng := newTestEngine(t)

	policies := eng.ListPolicies()
	expected := []string{PolicyComponentNaming, PolicyScopesSelf, PolicyWASMStrictSandbox}
	if len(policies) != len(expected) {
		t.Fatalf("Expected %d built-in policies, got %d", len(expected), len(policies))
	}
	for i, name := range expected {
		if policies[i].Name != name {
			t.Errorf("policies[%d] = %s, want %s", i, policies[i].Name, name)
		}
		if !policies[i].Builtin {
			t.Errorf("%s should be marked built-in", name)
		}
	}
}

func TestEvaluateActivation_Naming(t *testing.T) {
	eng := newTestEngine(t)

	tests := []struct {
		name          string
		component     string
		expectAllowed bool
	}{
		{name: "valid name", component: "statestore", expectAllowed: true},
		{name: "hyphens and digits", component: "redis-cache-2", expectAllowed: true},
		{name: "uppercase", component: "StateStore", expectAllowed: false},
		{name: "underscore", component: "state_store", expectAllowed: false},
		{name: "leading hyphen", component: "-store", expectAllowed: false},
		{name: "trailing hyphen", component: "store-", expectAllowed: false},
		{name: "empty", component: "", expectAllowed: false},
		{name: "too long", component: strings.Repeat("a", 64), expectAllowed: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result, err := eng.EvaluateActivation(context.Background(), activationInput(tt.component, "state.redis"))
			if err != nil {
				t.Fatalf("EvaluateActivation() error = %v", err)
			}
			if result.Allowed != tt.expectAllowed {
				t.Errorf("Allowed = %v, want %v (violations: %+v)", result.Allowed, tt.expectAllowed, result.Violations)
			}
			for _, v := range result.Violations {
				if v.Policy != PolicyComponentNaming {
					t.Errorf("Unexpected violation from %s: %s", v.Policy, v.Message)
				}
			}
		})
	}
}

func TestEvaluateActivation_WASMStrictSandbox(t *testing.T) {
	eng := newTestEngine(t)

	tests := []struct {
		name          string
		strict        bool
		wasm          bool
		sandbox       string
		expectAllowed bool
	}{
		{name: "strict wasm with sandbox", strict: true, wasm: true, sandbox: "true", expectAllowed: true},
		{name: "strict wasm without sandbox", strict: true, wasm: true, sandbox: "", expectAllowed: false},
		{name: "strict wasm with sandbox off", strict: true, wasm: true, sandbox: "false", expectAllowed: false},
		{name: "relaxed wasm", strict: false, wasm: true, sandbox: "", expectAllowed: true},
		{name: "strict non-wasm", strict: true, wasm: false, sandbox: "", expectAllowed: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			input := activationInput("filter", "middleware.http.wasm")
			input.Component.WASM = tt.wasm
			input.Component.StrictSandbox = tt.sandbox
			input.Context.StrictSandbox = tt.strict

			result, err := eng.EvaluateActivation(context.Background(), input)
			if err != nil {
				t.Fatalf("EvaluateActivation() error = %v", err)
			}
			if result.Allowed != tt.expectAllowed {
				t.Errorf("Allowed = %v, want %v", result.Allowed, tt.expectAllowed)
			}
			if !tt.expectAllowed {
				if len(result.Violations) != 1 || result.Violations[0].Severity != SeverityCritical {
					t.Errorf("Expected one critical violation, got %+v", result.Violations)
				}
			}
		})
	}
}

func TestEvaluateActivation_ScopesWarning(t *testing.T) {
	eng := newTestEngine(t)

	input := activationInput("statestore", "state.redis")
	input.Component.Scopes = []string{"app2"}

	result, err := eng.EvaluateActivation(context.Background(), input)
	if err != nil {
		t.Fatalf("EvaluateActivation() error = %v", err)
	}
	if !result.Allowed {
		t.Error("Scope warnings must not block activation")
	}
	if len(result.Warnings) != 1 || result.Warnings[0].Policy != PolicyScopesSelf {
		t.Errorf("Expected one scopes warning, got %+v", result.Warnings)
	}

	input.Component.Scopes = []string{"app1", "app2"}
	result, err = eng.EvaluateActivation(context.Background(), input)
	if err != nil {
		t.Fatalf("EvaluateActivation() error = %v", err)
	}
	if len(result.Warnings) != 0 {
		t.Errorf("Expected no warnings for an in-scope app, got %+v", result.Warnings)
	}
}

func TestEvaluateActivation_InvalidInput(t *testing.T) {
	eng := newTestEngine(t)

	if _, err := eng.EvaluateActivation(context.Background(), &ActivationInput{}); err == nil {
		t.Error("Expected error for empty input")
	}
}

func TestEnableDisablePolicy(t *testing.T) {
	eng := newTestEngine(t)
	input := activationInput("Bad_Name", "state.redis")

	if err := eng.DisablePolicy(PolicyComponentNaming); err != nil {
		t.Fatalf("DisablePolicy() error = %v", err)
	}

	result, err := eng.EvaluateActivation(context.Background(), input)
	if err != nil {
		t.Fatalf("EvaluateActivation() error = %v", err)
	}
	if !result.Allowed {
		t.Error("Disabled policy should not block activation")
	}
	for _, name := range result.EvaluatedPolicies {
		if name == PolicyComponentNaming {
			t.Error("Disabled policy was evaluated")
		}
	}

	if err := eng.EnablePolicy(PolicyComponentNaming); err != nil {
		t.Fatalf("EnablePolicy() error = %v", err)
	}
	result, err = eng.EvaluateActivation(context.Background(), input)
	if err != nil {
		t.Fatalf("EvaluateActivation() error = %v", err)
	}
	if result.Allowed {
		t.Error("Re-enabled policy should block activation")
	}

	if err := eng.DisablePolicy("missing"); err == nil {
		t.Error("Expected error disabling an unknown policy")
	}
	if _, err := eng.GetPolicy("missing"); err == nil {
		t.Error("Expected error getting an unknown policy")
	}
}

func TestLoadPolicies(t *testing.T) {
	eng := newTestEngine(t)
	dir := t.TempDir()
	writePolicyFile(t, dir, "redis-version.rego", customRego)

	if err := eng.LoadPolicies(context.Background(), []string{dir}); err != nil {
		t.Fatalf("LoadPolicies() error = %v", err)
	}
	if _, err := eng.GetPolicy("redis-version"); err != nil {
		t.Fatalf("GetPolicy() error = %v", err)
	}

	input := activationInput("statestore", "state.redis")
	input.Component.Version = ""

	result, err := eng.EvaluateActivation(context.Background(), input)
	if err != nil {
		t.Fatalf("EvaluateActivation() error = %v", err)
	}
	if result.Allowed {
		t.Fatal("Custom policy should block activation")
	}
	if result.Violations[0].Message != "state.redis components must declare a version" {
		t.Errorf("Unexpected message: %s", result.Violations[0].Message)
	}
}

func TestLoadPolicies_CompileError(t *testing.T) {
	eng := newTestEngine(t)
	path := writePolicyFile(t, t.TempDir(), "broken.rego", "package broken\n\ndeny contains x if {")

	if err := eng.LoadPolicies(context.Background(), []string{path}); err == nil {
		t.Error("Expected compile error")
	}
}

func TestReplacePolicies(t *testing.T) {
	eng := newTestEngine(t)
	path := writePolicyFile(t, t.TempDir(), "redis-version.rego", customRego)

	if err := eng.LoadPolicies(context.Background(), []string{path}); err != nil {
		t.Fatalf("LoadPolicies() error = %v", err)
	}
	if err := eng.ReplacePolicies(context.Background(), nil); err != nil {
		t.Fatalf("ReplacePolicies() error = %v", err)
	}

	if len(eng.ListPolicies()) != len(GetBuiltinPolicies()) {
		t.Errorf("Expected only built-in policies after replace, got %d", len(eng.ListPolicies()))
	}

	broken := []Policy{{Name: "broken", Rego: "package broken\n\ndeny contains x if {", Enabled: true}}
	if err := eng.ReplacePolicies(context.Background(), broken); err == nil {
		t.Fatal("Expected error for broken policy")
	}
	if len(eng.ListPolicies()) != len(GetBuiltinPolicies()) {
		t.Error("Failed replace should keep the previous policies")
	}

}
