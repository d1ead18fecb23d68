package secretstores

import (
	"context"
	"fmt"
	"os"

	"github.com/joho/godotenv"
)

// EnvStore serves secrets from environment variables. The variable read is the
// reference key, or the secret name when the key is empty.
type EnvStore struct {
	name   string
	lookup EnvLookup
}

// NewEnvStore creates an environment store. A nil lookup reads the process
// environment.
func NewEnvStore(name string, lookup EnvLookup) *EnvStore {
	if lookup == nil {
		lookup = os.LookupEnv
	}
	return &EnvStore{name: name, lookup: lookup}
}

// Name returns the store name.
func (s *EnvStore) Name() string { return s.name }

// GetSecret returns the value of the selected environment variable.
func (s *EnvStore) GetSecret(_ context.Context, name, key string) (string, error) {
	variable := secretField(name, key)
	value, ok := s.lookup(variable)
	if !ok {
		return "", fmt.Errorf("%w: environment variable %s", ErrSecretNotFound, variable)
	}
	return value, nil
}

// EnvFileLookup returns a lookup that reads the given dotenv files first and
// falls back to the process environment. Later files override earlier ones.
func EnvFileLookup(paths ...string) (EnvLookup, error) {
	if len(paths) == 0 {
		return os.LookupEnv, nil
	}
	values, err := godotenv.Read(paths...)
	if err != nil {
		return nil, fmt.Errorf("failed to read env file: %w", err)
	}
	return ChainEnv(MapEnv(values), os.LookupEnv), nil
}

// MapEnv returns a lookup over a fixed set of variables.
func MapEnv(values map[string]string) EnvLookup {
	return func(key string) (string, bool) {
		v, ok := values[key]
		return v, ok
	}
}

// ChainEnv returns a lookup that asks each lookup in turn.
func ChainEnv(lookups ...EnvLookup) EnvLookup {
	return func(key string) (string, bool) {
		for _, lookup := range lookups {
			if v, ok := lookup(key); ok {
				return v, true
			}
		}
		return "", false
	}
}
