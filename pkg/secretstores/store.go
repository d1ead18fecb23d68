package secretstores

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
)

var (
	// ErrSecretNotFound is returned when a store has no value for a secret key.
	ErrSecretNotFound = errors.New("secret not found")

	// ErrStoreNotFound is returned when no store is registered under a name.
	ErrStoreNotFound = errors.New("secret store not found")
)

// Store types.
const (
	TypeEnv   = "env"
	TypeFile  = "file"
	TypeVault = "vault"
)

// SecretStore returns secret values by name and key.
type SecretStore interface {
	// Name returns the name components use to reference the store.
	Name() string

	// GetSecret returns the value of key inside the secret name. An empty key
	// selects the field named like the secret.
	GetSecret(ctx context.Context, name, key string) (string, error)
}

// EnvLookup looks up an environment variable. os.LookupEnv satisfies it.
type EnvLookup func(key string) (string, bool)

// Registry holds the secret stores available to components.
type Registry struct {
	mu     sync.RWMutex
	stores map[string]SecretStore
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{
		stores: make(map[string]SecretStore),
	}
}

// Register adds store under its name.
func (r *Registry) Register(store SecretStore) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.stores[store.Name()]; exists {
		return fmt.Errorf("secret store %s already registered", store.Name())
	}
	r.stores[store.Name()] = store
	return nil
}

// Get returns the store registered under name.
func (r *Registry) Get(name string) (SecretStore, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	store, ok := r.stores[name]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrStoreNotFound, name)
	}
	return store, nil
}

// Names returns the registered store names in sorted order.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	names := make([]string, 0, len(r.stores))
	for name := range r.stores {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// secretField returns the field to read for a reference.
func secretField(name, key string) string {
	if key == "" {
		return name
	}
	return key
}
