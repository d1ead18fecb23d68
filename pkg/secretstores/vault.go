package secretstores

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v5"
	"github.com/hashicorp/vault/api"
	"github.com/rs/zerolog"
)

// VaultConfig configures a VaultStore.
type VaultConfig struct {
	// Address is the Vault server address, e.g. https://vault.example.com:8200.
	Address string

	// Token authenticates requests.
	Token string

	// MountPath is the KV v2 mount, e.g. "secret".
	MountPath string

	// Prefix is prepended to secret names inside the mount.
	Prefix string

	// Timeout bounds each request. Zero means 30 seconds.
	Timeout time.Duration

	// MaxAttempts bounds reads retried after server or network errors. Zero means 3.
	MaxAttempts uint

	// RetryInterval is the first backoff interval. Zero means 200ms.
	RetryInterval time.Duration
}

// VaultStore serves secrets from a HashiCorp Vault KV v2 mount. Secret name
// maps to the path <mount>/data/<prefix>/<name>; the key selects a field of the
// stored data.
type VaultStore struct {
	name      string
	client    *api.Client
	mountPath string
	prefix    string
	attempts  uint
	interval  time.Duration
	logger    zerolog.Logger
}

// NewVaultStore creates a Vault-backed store.
func NewVaultStore(name string, cfg VaultConfig, logger zerolog.Logger) (*VaultStore, error) {
	timeout := cfg.Timeout
	if timeout == 0 {
		timeout = 30 * time.Second
	}

	config := api.DefaultConfig()
	config.Address = cfg.Address
	config.Timeout = timeout
	// Retries are driven by GetSecret
	config.MaxRetries = 0

	client, err := api.NewClient(config)
	if err != nil {
		return nil, fmt.Errorf("failed to create Vault client: %w", err)
	}
	if cfg.Token != "" {
		client.SetToken(cfg.Token)
	}

	mountPath := strings.Trim(cfg.MountPath, "/")
	if mountPath == "" {
		mountPath = "secret"
	}

	attempts := cfg.MaxAttempts
	if attempts == 0 {
		attempts = 3
	}
	interval := cfg.RetryInterval
	if interval == 0 {
		interval = 200 * time.Millisecond
	}

	return &VaultStore{
		name:      name,
		client:    client,
		mountPath: mountPath,
		prefix:    strings.Trim(cfg.Prefix, "/"),
		attempts:  attempts,
		interval:  interval,
		logger:    logger.With().Str("component", "vault-secret-store").Str("store", name).Logger(),
	}, nil
}

// Name returns the store name.
func (s *VaultStore) Name() string { return s.name }

// GetSecret reads the secret and returns the selected field.
func (s *VaultStore) GetSecret(ctx context.Context, name, key string) (string, error) {
	start := time.Now()
	path := s.dataPath(name)

	b := backoff.NewExponentialBackOff()
	b.InitialInterval = s.interval

	secret, err := backoff.Retry(ctx, func() (*api.Secret, error) {
		secret, err := s.client.Logical().ReadWithContext(ctx, path)
		if err != nil && !retryable(err) {
			return nil, backoff.Permanent(err)
		}
		if err != nil {
			s.logger.Debug().Err(err).Str("path", path).Msg("Retrying Vault read")
		}
		return secret, err
	}, backoff.WithBackOff(b), backoff.WithMaxTries(s.attempts))
	if err != nil {
		s.logger.Error().Err(err).Str("path", path).Msg("Failed to read from Vault")
		return "", fmt.Errorf("failed to read secret %s from Vault: %w", name, err)
	}
	if secret == nil || secret.Data == nil {
		return "", fmt.Errorf("%w: %s", ErrSecretNotFound, path)
	}

	data, ok := secret.Data["data"].(map[string]interface{})
	if !ok {
		return "", fmt.Errorf("invalid data format in Vault response for %s", path)
	}

	field := secretField(name, key)
	value, ok := data[field]
	if !ok {
		return "", fmt.Errorf("%w: %s/%s", ErrSecretNotFound, path, field)
	}

	s.logger.Debug().
		Str("path", path).
		Dur("duration", time.Since(start)).
		Msg("Fetched secret from Vault")

	if str, ok := value.(string); ok {
		return str, nil
	}
	return fmt.Sprint(value), nil
}

func (s *VaultStore) dataPath(name string) string {
	if s.prefix == "" {
		return fmt.Sprintf("%s/data/%s", s.mountPath, name)
	}
	return fmt.Sprintf("%s/data/%s/%s", s.mountPath, s.prefix, name)
}

// retryable reports whether a failed read may succeed when repeated.
func retryable(err error) bool {
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return false
	}
	var re *api.ResponseError
	if errors.As(err, &re) {
		return re.StatusCode >= http.StatusInternalServerError || re.StatusCode == http.StatusTooManyRequests
	}
	return true
}
