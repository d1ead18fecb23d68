// Package secretstores resolves the secretKeyRef and envRef entries of a
// component into literal values before its metadata is resolved.
//
// A SecretStore returns one value for a secret name and key. Three stores are
// provided: EnvStore reads process environment variables, FileStore reads a
// local YAML or JSON file and VaultStore reads a HashiCorp Vault KV v2 mount.
// Stores are registered by name in a Registry; a component picks its store with
// auth.secretStore.
package secretstores
