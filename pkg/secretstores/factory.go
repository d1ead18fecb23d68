package secretstores

import (
	"fmt"

	"github.com/rs/zerolog"
)

// StoreConfig declares one secret store.
type StoreConfig struct {
	// Name is the name components reference in auth.secretStore.
	Name string `yaml:"name" json:"name" validate:"required"`

	// Type is the store type (env, file, vault).
	Type string `yaml:"type" json:"type" validate:"required,oneof=env file vault"`

	// Path is the secrets file of a file store.
	Path string `yaml:"path,omitempty" json:"path,omitempty" validate:"required_if=Type file"`

	// Address is the server address of a vault store.
	Address string `yaml:"address,omitempty" json:"address,omitempty" validate:"required_if=Type vault"`

	// MountPath is the KV v2 mount of a vault store.
	MountPath string `yaml:"mountPath,omitempty" json:"mountPath,omitempty"`

	// Prefix is prepended to secret names in a vault store.
	Prefix string `yaml:"prefix,omitempty" json:"prefix,omitempty"`

	// Token authenticates against a vault store. VAULT_TOKEN is used when empty.
	Token string `yaml:"token,omitempty" json:"token,omitempty"`
}

// New creates the store described by cfg. env backs env stores; nil reads the
// process environment.
func New(cfg StoreConfig, env EnvLookup, logger zerolog.Logger) (SecretStore, error) {
	switch cfg.Type {
	case TypeEnv:
		return NewEnvStore(cfg.Name, env), nil
	case TypeFile:
		return NewFileStore(cfg.Name, cfg.Path)
	case TypeVault:
		return NewVaultStore(cfg.Name, VaultConfig{
			Address:   cfg.Address,
			Token:     cfg.Token,
			MountPath: cfg.MountPath,
			Prefix:    cfg.Prefix,
		}, logger)
	default:
		return nil, fmt.Errorf("unsupported secret store type %q", cfg.Type)
	}
}

// NewRegistryFromConfig creates and registers every configured store.
func NewRegistryFromConfig(configs []StoreConfig, env EnvLookup, logger zerolog.Logger) (*Registry, error) {
	registry := NewRegistry()
	for _, cfg := range configs {
		store, err := New(cfg, env, logger)
		if err != nil {
			return nil, fmt.Errorf("secret store %s: %w", cfg.Name, err)
		}
		if err := registry.Register(store); err != nil {
			return nil, err
		}
	}
	return registry, nil
}
