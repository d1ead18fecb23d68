package config

import (
	"fmt"
	"os"
	"runtime"
	"strconv"
	"strings"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"

	"github.com/gantry-run/gantry/pkg/meta"
	"github.com/gantry-run/gantry/pkg/secretstores"
	"github.com/gantry-run/gantry/pkg/telemetry"
)

// DefaultNamespace is used when no namespace is configured.
const DefaultNamespace = "default"

// Environment variables that override the configuration file.
const (
	EnvAppID         = "APP_ID"
	EnvNamespace     = "NAMESPACE"
	EnvPodName       = "POD_NAME"
	EnvStrictSandbox = "GANTRY_STRICT_SANDBOX"
	EnvMode          = "GANTRY_MODE"
)

var validate = validator.New()

// RuntimeConfig is the configuration of a gantry process.
type RuntimeConfig struct {
	AppID          string                     `yaml:"appID" validate:"required"`
	Namespace      string                     `yaml:"namespace"`
	PodName        string                     `yaml:"podName"`
	Mode           meta.Mode                  `yaml:"mode" validate:"omitempty,oneof=kubernetes standalone"`
	StrictSandbox  bool                       `yaml:"strictSandbox"`
	ComponentsPath string                     `yaml:"componentsPath"`
	SecretStores   []secretstores.StoreConfig `yaml:"secretStores" validate:"dive"`
	Policy         PolicyConfig               `yaml:"policy"`
	Store          StoreConfig                `yaml:"store"`
	Telemetry      *telemetry.Config          `yaml:"telemetry"`
	MaxConcurrency int                        `yaml:"maxConcurrency" validate:"gte=0"`
}

// PolicyConfig configures admission policies.
type PolicyConfig struct {
	Enabled bool     `yaml:"enabled"`
	Paths   []string `yaml:"paths"`
}

// StoreConfig configures the activation history store. An empty path disables it.
type StoreConfig struct {
	Path string `yaml:"path"`
}

// Default returns the configuration used when no file is given.
func Default() *RuntimeConfig {
	return &RuntimeConfig{
		Mode:           meta.ModeStandalone,
		ComponentsPath: "./components",
		SecretStores: []secretstores.StoreConfig{
			{Name: meta.DefaultKubernetesSecretStore, Type: secretstores.TypeEnv},
		},
		Policy:         PolicyConfig{Enabled: true},
		Telemetry:      telemetry.DefaultConfig(),
		MaxConcurrency: runtime.NumCPU(),
	}
}

// Load reads path when it is non-empty, applies environment overrides from
// os.LookupEnv and validates the result.
func Load(path string) (*RuntimeConfig, error) {
	return LoadWithEnv(path, os.LookupEnv)
}

// LoadWithEnv is Load with the environment overrides read from lookup.
func LoadWithEnv(path string, lookup func(string) (string, bool)) (*RuntimeConfig, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("failed to parse config file %s: %w", path, err)
		}
	}

	if err := cfg.ApplyEnv(lookup); err != nil {
		return nil, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// ApplyEnv overlays environment variables on cfg.
func (c *RuntimeConfig) ApplyEnv(lookup func(string) (string, bool)) error {
	if v, ok := lookup(EnvAppID); ok && v != "" {
		c.AppID = v
	}
	if v, ok := lookup(EnvNamespace); ok && v != "" {
		c.Namespace = v
	}
	if v, ok := lookup(EnvPodName); ok && v != "" {
		c.PodName = v
	}
	if v, ok := lookup(EnvMode); ok && v != "" {
		c.Mode = meta.Mode(strings.ToLower(v))
	}
	if v, ok := lookup(EnvStrictSandbox); ok && v != "" {
		strict, err := strconv.ParseBool(v)
		if err != nil {
			return fmt.Errorf("invalid %s value %q: %w", EnvStrictSandbox, v, err)
		}
		c.StrictSandbox = strict
	}
	return nil
}

// Validate checks struct tags and the telemetry section.
func (c *RuntimeConfig) Validate() error {
	if err := validate.Struct(c); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}

	seen := make(map[string]bool, len(c.SecretStores))
	for _, s := range c.SecretStores {
		if seen[s.Name] {
			return fmt.Errorf("invalid configuration: duplicate secret store %q", s.Name)
		}
		seen[s.Name] = true
	}

	if c.Telemetry != nil {
		if err := c.Telemetry.Validate(); err != nil {
			return fmt.Errorf("invalid telemetry configuration: %w", err)
		}
	}

	return nil
}

// GetNamespaceOrDefault returns the configured namespace or DefaultNamespace.
func (c *RuntimeConfig) GetNamespaceOrDefault() string {
	if c.Namespace == "" {
		return DefaultNamespace
	}
	return c.Namespace
}

// ToOptions returns the identity context metadata resolution runs under.
func (c *RuntimeConfig) ToOptions() meta.Options {
	mode := c.Mode
	if mode == "" {
		mode = meta.ModeStandalone
	}
	return meta.Options{
		ID:            c.AppID,
		PodName:       c.PodName,
		Namespace:     c.GetNamespaceOrDefault(),
		StrictSandbox: c.StrictSandbox,
		Mode:          mode,
	}
}

// TelemetryConfig returns the telemetry section, falling back to defaults.
func (c *RuntimeConfig) TelemetryConfig() *telemetry.Config {
	if c.Telemetry == nil {
		return telemetry.DefaultConfig()
	}
	return c.Telemetry
}

// Concurrency returns the bound on concurrent activations, at least 1.
func (c *RuntimeConfig) Concurrency() int {
	if c.MaxConcurrency <= 0 {
		return 1
	}
	return c.MaxConcurrency
}
