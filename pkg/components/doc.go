// Package components defines the component resource the runtime activates and
// the pieces it is built from.
//
// A component declares a driver type and an ordered list of metadata entries.
// Each entry carries one of an inline DynamicValue, a secret store reference or
// an environment variable reference. Components can be scoped to a set of
// application ids.
//
// # Loading
//
// Loader reads YAML or JSON manifests (several documents per file are allowed)
// from files and directories. Each document is checked against a CUE envelope
// schema and decoded; documents of other kinds are skipped. Watcher reloads a
// directory on change using fsnotify.
//
//	loader, err := components.NewLoader(logger)
//	if err != nil {
//	    return err
//	}
//	comps, err := loader.LoadDir("./components")
//
// # Values
//
// DynamicValue is a closed union of the JSON variants. Its String method is the
// text handed to drivers: strings are unquoted when they hold a JSON-encoded
// string, every other variant renders as canonical JSON.
package components
