package wasmhost

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/gantry-run/gantry/pkg/meta"
)

// Metadata properties read by ConfigFromMetadata.
const (
	PropertyMaxMemoryPages = "maxMemoryPages"
	PropertyAllowEnv       = "allowEnv"
	PropertyAllowFS        = "allowFS"
	PropertyTimeout        = "timeout"
)

// DefaultMemoryLimitPages is 16MB of linear memory (64KB pages).
const DefaultMemoryLimitPages uint32 = 256

// Config configures the sandbox a WASM component runs in.
type Config struct {
	// StrictSandbox denies every host passthrough: environment, filesystem and
	// real clocks.
	StrictSandbox bool

	// MemoryLimitPages caps linear memory in 64KB pages.
	MemoryLimitPages uint32

	// AllowEnv lists environment variables passed to the guest.
	AllowEnv []string

	// AllowFS is a host directory mounted read-only at "/" in the guest.
	AllowFS string

	// Timeout bounds instantiation. Zero means 30 seconds.
	Timeout time.Duration
}

// ConfigFromMetadata reads the sandbox configuration of a resolved WASM
// component. Property names are matched case-insensitively.
func ConfigFromMetadata(base meta.MetaBase) (Config, error) {
	cfg := Config{
		MemoryLimitPages: DefaultMemoryLimitPages,
		Timeout:          30 * time.Second,
	}

	if v, ok := base.GetProperty(meta.StrictSandboxKey); ok && v != "" {
		strict, err := strconv.ParseBool(v)
		if err != nil {
			return Config{}, fmt.Errorf("invalid %s value %q: %w", meta.StrictSandboxKey, v, err)
		}
		cfg.StrictSandbox = strict
	}

	if v, ok := base.GetProperty(PropertyMaxMemoryPages); ok && v != "" {
		pages, err := strconv.ParseUint(v, 10, 32)
		if err != nil {
			return Config{}, fmt.Errorf("invalid %s value %q: %w", PropertyMaxMemoryPages, v, err)
		}
		if pages == 0 || pages > 65536 {
			return Config{}, fmt.Errorf("%s must be between 1 and 65536, got %d", PropertyMaxMemoryPages, pages)
		}
		cfg.MemoryLimitPages = uint32(pages)
	}

	if v, ok := base.GetProperty(PropertyAllowEnv); ok {
		for _, name := range strings.Split(v, ",") {
			if name = strings.TrimSpace(name); name != "" {
				cfg.AllowEnv = append(cfg.AllowEnv, name)
			}
		}
	}

	if v, ok := base.GetProperty(PropertyAllowFS); ok {
		cfg.AllowFS = strings.TrimSpace(v)
	}

	if v, ok := base.GetProperty(PropertyTimeout); ok && v != "" {
		d, err := time.ParseDuration(v)
		if err != nil {
			return Config{}, fmt.Errorf("invalid %s value %q: %w", PropertyTimeout, v, err)
		}
		cfg.Timeout = d
	}

	return cfg.Effective(), nil
}

// Effective returns the configuration actually enforced. Strict sandbox mode
// drops every passthrough regardless of the other fields.
func (c Config) Effective() Config {
	if c.MemoryLimitPages == 0 {
		c.MemoryLimitPages = DefaultMemoryLimitPages
	}
	if c.Timeout == 0 {
		c.Timeout = 30 * time.Second
	}
	if c.StrictSandbox {
		c.AllowEnv = nil
		c.AllowFS = ""
	}
	return c
}
