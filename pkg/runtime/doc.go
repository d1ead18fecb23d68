// Package runtime activates declared components for one application.
//
// An activation takes a component through reference resolution (secret
// stores and environment), metadata resolution (placeholders, strict sandbox
// enforcement for WASM components), admission policy evaluation and, for
// WASM components, sandbox configuration. Every outcome is recorded in the
// activation store with its status and duration but never its property
// values.
//
// Activator is safe for concurrent use. ActivateAll activates a set of
// components with bounded concurrency and returns results in input order.
package runtime
