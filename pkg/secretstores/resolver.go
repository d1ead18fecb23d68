package secretstores

import (
	"context"
	"encoding/json"
	"fmt"
	"os"

	"github.com/rs/zerolog"

	"github.com/gantry-run/gantry/pkg/components"
)

// ReferenceResolver replaces secretKeyRef and envRef entries with literal values.
type ReferenceResolver struct {
	registry *Registry
	env      EnvLookup
	logger   zerolog.Logger
}

// NewReferenceResolver creates a resolver over registry. A nil env reads the
// process environment.
func NewReferenceResolver(registry *Registry, env EnvLookup, logger zerolog.Logger) *ReferenceResolver {
	if env == nil {
		env = os.LookupEnv
	}
	return &ReferenceResolver{
		registry: registry,
		env:      env,
		logger:   logger.With().Str("component", "reference-resolver").Logger(),
	}
}

// Resolve returns a copy of comp whose references are replaced by the values
// they point to. Secrets are read from the store named secretStore. An unset
// environment variable resolves to the empty string.
func (r *ReferenceResolver) Resolve(ctx context.Context, comp *components.Component, secretStore string) (*components.Component, error) {
	out := comp.DeepCopy()
	if out.Spec == nil {
		return out, nil
	}

	for i := range out.Spec.Metadata {
		item := &out.Spec.Metadata[i]

		switch item.Source() {
		case components.SourceSecretRef:
			value, err := r.readSecret(ctx, comp, secretStore, item.SecretKeyRef)
			if err != nil {
				return nil, fmt.Errorf("component %s: metadata %s: %w", comp.Name(), item.Name, err)
			}
			setLiteral(item, value)

		case components.SourceEnvRef:
			value, ok := r.env(item.EnvRef)
			if !ok {
				r.logger.Debug().
					Str("component", comp.Name()).
					Str("property", item.Name).
					Str("env", item.EnvRef).
					Msg("Environment variable not set, using empty value")
			}
			setLiteral(item, value)
		}
	}

	return out, nil
}

// SecretBacked returns the names of entries whose values come from a secret store.
func SecretBacked(comp *components.Component) map[string]bool {
	names := make(map[string]bool)
	for _, item := range comp.NameValuePairs() {
		if item.Source() == components.SourceSecretRef {
			names[item.Name] = true
		}
	}
	return names
}

func (r *ReferenceResolver) readSecret(ctx context.Context, comp *components.Component, storeName string, ref *components.SecretKeyRef) (string, error) {
	if storeName == "" {
		return "", fmt.Errorf("%w: component declares no secret store", ErrStoreNotFound)
	}
	if r.registry == nil {
		return "", fmt.Errorf("%w: %s", ErrStoreNotFound, storeName)
	}

	store, err := r.registry.Get(storeName)
	if err != nil {
		return "", err
	}

	value, err := store.GetSecret(ctx, ref.Name, ref.Key)
	if err != nil {
		return "", err
	}

	r.logger.Debug().
		Str("component", comp.Name()).
		Str("store", storeName).
		Str("secret", ref.Name).
		Msg("Resolved secret reference")
	return value, nil
}

// setLiteral stores value as JSON text so its text form is value byte for byte,
// even when value itself looks like a JSON string.
func setLiteral(item *components.NameValuePair, value string) {
	encoded, _ := json.Marshal(value)
	v := components.StringValue(string(encoded))
	item.Value = &v
	item.SecretKeyRef = nil
	item.EnvRef = ""
}
