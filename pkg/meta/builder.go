package meta

import (
	"errors"
	"strings"

	"github.com/gantry-run/gantry/pkg/components"
)

// DefaultKubernetesSecretStore is the secret store used in Kubernetes mode when
// a component names none.
const DefaultKubernetesSecretStore = "kubernetes"

// ToBaseMetadata resolves the metadata of comp into a MetaBase. WASM components
// get the sandbox policy applied first. Entries that carry only a secret or
// environment reference resolve to "". When two entries share a name the later
// one wins. The first pod-name error aborts resolution.
func (m *Meta) ToBaseMetadata(comp *components.Component) (MetaBase, error) {
	if IsWASMComponentType(comp.ComponentType()) {
		comp = m.ApplySandboxPolicy(comp)
	}

	items := comp.NameValuePairs()
	properties := make(map[string]string, len(items))
	for _, item := range items {
		value, err := m.ResolvePlaceholders(item.Name, item.Text())
		if err != nil {
			var me *MetaError
			if errors.As(err, &me) {
				me.WithComponent(comp.Name())
			}
			return MetaBase{}, err
		}
		properties[item.Name] = value
	}

	return NewMetaBase(comp.Name(), properties), nil
}

// ContainsNamespace reports whether any entry value references {namespace}.
func ContainsNamespace(items []components.NameValuePair) bool {
	for _, item := range items {
		if strings.Contains(item.Text(), PlaceholderNamespace) {
			return true
		}
	}
	return false
}

// AuthSecretStoreOrDefault returns the secret store r declares. Without one, it
// returns the Kubernetes secret store in Kubernetes mode and "" otherwise.
func (m *Meta) AuthSecretStoreOrDefault(r components.Resource) string {
	if store := r.SecretStore(); store != "" {
		return store
	}
	if m.mode == ModeKubernetes {
		return DefaultKubernetesSecretStore
	}
	return ""
}
