package wasmhost

import (
	"context"
	"crypto/rand"
	"fmt"
	"os"
	"sync"

	"github.com/rs/zerolog"
	"github.com/tetratelabs/wazero"
	"github.com/tetratelabs/wazero/api"
	"github.com/tetratelabs/wazero/imports/wasi_snapshot_preview1"
)

// Host runs the modules of one WASM component inside a wazero runtime
// configured from its sandbox settings.
type Host struct {
	cfg     Config
	runtime wazero.Runtime
	logger  zerolog.Logger

	mu      sync.Mutex
	modules map[string]api.Module
	closed  bool
}

// NewHost creates a runtime with the memory limit of cfg and WASI imports.
func NewHost(ctx context.Context, cfg Config, logger zerolog.Logger) (*Host, error) {
	cfg = cfg.Effective()

	runtimeConfig := wazero.NewRuntimeConfig().
		WithMemoryLimitPages(cfg.MemoryLimitPages).
		WithCloseOnContextDone(true)

	runtime := wazero.NewRuntimeWithConfig(ctx, runtimeConfig)

	if _, err := wasi_snapshot_preview1.Instantiate(ctx, runtime); err != nil {
		_ = runtime.Close(ctx)
		return nil, fmt.Errorf("failed to instantiate WASI: %w", err)
	}

	h := &Host{
		cfg:     cfg,
		runtime: runtime,
		logger:  logger.With().Str("component", "wasm-host").Logger(),
		modules: make(map[string]api.Module),
	}

	h.logger.Debug().
		Bool("strict_sandbox", cfg.StrictSandbox).
		Uint32("memory_limit_pages", cfg.MemoryLimitPages).
		Int("allowed_env", len(cfg.AllowEnv)).
		Bool("fs_mounted", cfg.AllowFS != "").
		Msg("WASM host created")

	return h, nil
}

// Config returns the enforced sandbox configuration.
func (h *Host) Config() Config {
	return h.cfg
}

// ModuleConfig builds the wazero module configuration for name. In strict
// sandbox mode the guest sees no environment, no filesystem and wazero's
// deterministic fake clocks.
func (h *Host) ModuleConfig(name string) wazero.ModuleConfig {
	mc := wazero.NewModuleConfig().WithName(name)
	if h.cfg.StrictSandbox {
		return mc
	}

	mc = mc.WithSysWalltime().WithSysNanotime().WithRandSource(rand.Reader)
	for _, key := range h.cfg.AllowEnv {
		if value, ok := os.LookupEnv(key); ok {
			mc = mc.WithEnv(key, value)
		}
	}
	if h.cfg.AllowFS != "" {
		mc = mc.WithFSConfig(wazero.NewFSConfig().WithReadOnlyDirMount(h.cfg.AllowFS, "/"))
	}
	return mc
}

// Instantiate compiles and instantiates wasm under name.
func (h *Host) Instantiate(ctx context.Context, name string, wasm []byte) (api.Module, error) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.closed {
		return nil, fmt.Errorf("wasm host is closed")
	}
	if _, exists := h.modules[name]; exists {
		return nil, fmt.Errorf("module %s already instantiated", name)
	}

	ctx, cancel := context.WithTimeout(ctx, h.cfg.Timeout)
	defer cancel()

	compiled, err := h.runtime.CompileModule(ctx, wasm)
	if err != nil {
		return nil, fmt.Errorf("failed to compile WASM module %s: %w", name, err)
	}

	module, err := h.runtime.InstantiateModule(ctx, compiled, h.ModuleConfig(name))
	if err != nil {
		_ = compiled.Close(ctx)
		return nil, fmt.Errorf("failed to instantiate WASM module %s: %w", name, err)
	}

	h.modules[name] = module
	h.logger.Info().Str("module", name).Msg("WASM module instantiated")

	return module, nil
}

// Module returns an instantiated module by name.
func (h *Host) Module(name string) (api.Module, bool) {
	h.mu.Lock()
	defer h.mu.Unlock()

	m, ok := h.modules[name]
	return m, ok
}

// Close closes every module and the runtime.
func (h *Host) Close(ctx context.Context) error {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.closed {
		return nil
	}
	h.closed = true
	h.modules = nil

	return h.runtime.Close(ctx)
}
