// Package policy provides Open Policy Agent (OPA) admission checks for
// component activations.
//
// After a component's metadata is resolved, the runtime builds an
// ActivationInput describing the component (name, type, scopes, resolved
// property names, WASM classification) and the runtime identity, and evaluates
// every enabled policy against it. Violations with error or critical severity
// deny the activation; lower severities are reported as warnings.
//
// # Usage
//
//	engine, err := policy.NewEngine(logger)
//	if err != nil {
//	    log.Fatal(err)
//	}
//
//	input := policy.NewActivationInput(comp, base, m)
//	result, err := engine.EvaluateActivation(ctx, input)
//	if err != nil {
//	    log.Fatal(err)
//	}
//
//	if !result.Allowed {
//	    for _, violation := range result.Violations {
//	        fmt.Printf("Policy %s violated: %s\n", violation.Policy, violation.Message)
//	    }
//	}
//
// # Built-in Policies
//
//  1. wasm-strict-sandbox - WASM components carry strictSandbox=true when the runtime enforces it
//  2. component-naming - Component names are DNS-1123 labels
//  3. scopes-self - Warns when the running application is outside a component's scopes
//
// # Custom Policies
//
// Custom policies are Rego files (or JSON documents embedding Rego) whose
// package sits under gantry and defines a deny set. Files that fail either
// check are rejected at load time. Leading comments set the description,
// and "# severity:", "# tags:" and "# enabled:" lines configure the policy:
//
//	# Redis components must set a password
//	# severity: error
//	# tags: redis
//
//	package gantry.policies.redis
//
//	import rego.v1
//
//	deny contains violation if {
//	    input.component.type == "state.redis"
//	    not "redisPassword" in input.component.properties
//
//	    violation := {
//	        "message": "Redis components must set a password",
//	        "severity": "error",
//	    }
//	}
//
// # Hot Reload
//
//	loader := policy.NewLoader(logger)
//	err = loader.Watch(ctx, paths, func(policies []policy.Policy) error {
//	    return engine.ReplacePolicies(ctx, policies)
//	})
package policy
