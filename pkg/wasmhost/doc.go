// Package wasmhost runs WASM components in a wazero runtime sandboxed according
// to their resolved metadata.
//
// ConfigFromMetadata reads strictSandbox, maxMemoryPages, allowEnv, allowFS and
// timeout from a MetaBase. When strictSandbox is true the guest gets no
// environment variables, no filesystem and deterministic clocks, whatever the
// other properties request.
package wasmhost
