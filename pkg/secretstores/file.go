package secretstores

import (
	"context"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// FileStore serves secrets from a local YAML or JSON file shaped as
// secret name -> key -> value.
//
//	redis:
//	  password: s3cr3t
//	api-token: abc123
//
// A secret may also be a plain string, which is returned for any key.
type FileStore struct {
	name    string
	path    string
	secrets map[string]map[string]string
}

// NewFileStore loads the secrets file at path.
func NewFileStore(name, path string) (*FileStore, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read secrets file: %w", err)
	}

	var raw map[string]interface{}
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("failed to parse secrets file %s: %w", path, err)
	}

	secrets := make(map[string]map[string]string, len(raw))
	for secret, value := range raw {
		switch v := value.(type) {
		case map[string]interface{}:
			fields := make(map[string]string, len(v))
			for k, field := range v {
				fields[k] = fmt.Sprint(field)
			}
			secrets[secret] = fields
		case nil:
			secrets[secret] = map[string]string{}
		default:
			secrets[secret] = map[string]string{"": fmt.Sprint(v)}
		}
	}

	return &FileStore{name: name, path: path, secrets: secrets}, nil
}

// Name returns the store name.
func (s *FileStore) Name() string { return s.name }

// GetSecret returns key from the named secret.
func (s *FileStore) GetSecret(_ context.Context, name, key string) (string, error) {
	fields, ok := s.secrets[name]
	if !ok {
		return "", fmt.Errorf("%w: %s in %s", ErrSecretNotFound, name, s.path)
	}
	if value, ok := fields[""]; ok && len(fields) == 1 {
		return value, nil
	}

	field := secretField(name, key)
	value, ok := fields[field]
	if !ok {
		return "", fmt.Errorf("%w: %s/%s in %s", ErrSecretNotFound, name, field, s.path)
	}
	return value, nil
}
