package components

import (
	"errors"
	"fmt"

	"github.com/go-playground/validator/v10"
)

const (
	// Kind is the resource kind of components.
	Kind = "Component"

	// GroupName is the API group of components.
	GroupName = "gantry.io"

	// Version is the API version of components.
	Version = "v1alpha1"
)

var validate = validator.New()

// TypeMeta carries the kind and API version of a resource document.
type TypeMeta struct {
	Kind       string `json:"kind,omitempty" yaml:"kind,omitempty"`
	APIVersion string `json:"apiVersion,omitempty" yaml:"apiVersion,omitempty"`
}

// ObjectMeta carries the identity of a resource document.
type ObjectMeta struct {
	Name        string            `json:"name,omitempty" yaml:"name,omitempty"`
	Namespace   string            `json:"namespace,omitempty" yaml:"namespace,omitempty"`
	Labels      map[string]string `json:"labels,omitempty" yaml:"labels,omitempty"`
	Annotations map[string]string `json:"annotations,omitempty" yaml:"annotations,omitempty"`
}

// ComponentSpec is the spec of a component.
type ComponentSpec struct {
	// Type is the driver type, e.g. "state.redis" or "middleware.http.wasm".
	Type string `json:"type" yaml:"type" validate:"required"`

	// Version is the driver version, e.g. "v1".
	Version string `json:"version" yaml:"version"`

	// IgnoreErrors lets the runtime continue when the component fails to activate.
	IgnoreErrors bool `json:"ignoreErrors,omitempty" yaml:"ignoreErrors,omitempty"`

	// Metadata is the ordered list of configuration entries.
	Metadata []NameValuePair `json:"metadata,omitempty" yaml:"metadata,omitempty" validate:"dive"`

	// InitTimeout bounds driver initialization, e.g. "5s".
	InitTimeout string `json:"initTimeout,omitempty" yaml:"initTimeout,omitempty"`
}

// Auth names the secret store used to resolve secretKeyRef entries.
type Auth struct {
	SecretStore string `json:"secretStore" yaml:"secretStore"`
}

// Component describes a pluggable component declared for the runtime.
type Component struct {
	TypeMeta   `json:",inline" yaml:",inline"`
	ObjectMeta *ObjectMeta    `json:"metadata,omitempty" yaml:"metadata,omitempty"`
	Spec       *ComponentSpec `json:"spec,omitempty" yaml:"spec,omitempty"`
	Auth       *Auth          `json:"auth,omitempty" yaml:"auth,omitempty"`
	Scoped     `json:",inline" yaml:",inline"`
}

// Resource is a declarative resource the runtime activates. The set of
// implementations is closed; callers switch on the concrete type.
type Resource interface {
	ResourceKind() string
	Name() string
	SecretStore() string
	sealed()
}

var _ Resource = (*Component)(nil)

func (c *Component) sealed() {}

// ResourceKind returns "Component".
func (c *Component) ResourceKind() string { return Kind }

// APIVersion returns the group/version of components.
func (c *Component) APIVersion() string { return GroupName + "/" + Version }

// Name returns the component name, or "" when metadata is missing.
func (c *Component) Name() string {
	if c.ObjectMeta == nil {
		return ""
	}
	return c.ObjectMeta.Name
}

// Namespace returns the component namespace, or "" when metadata is missing.
func (c *Component) Namespace() string {
	if c.ObjectMeta == nil {
		return ""
	}
	return c.ObjectMeta.Namespace
}

// ComponentType returns the declared driver type, or "" when spec is missing.
func (c *Component) ComponentType() string {
	if c.Spec == nil {
		return ""
	}
	return c.Spec.Type
}

// ComponentVersion returns the declared driver version, or "" when spec is missing.
func (c *Component) ComponentVersion() string {
	if c.Spec == nil {
		return ""
	}
	return c.Spec.Version
}

// NameValuePairs returns the metadata entries, or nil when spec is missing.
func (c *Component) NameValuePairs() []NameValuePair {
	if c.Spec == nil {
		return nil
	}
	return c.Spec.Metadata
}

// SecretStore returns the secret store named in auth, or "".
func (c *Component) SecretStore() string {
	if c.Auth == nil {
		return ""
	}
	return c.Auth.SecretStore
}

// IgnoreErrors reports whether activation failures should be tolerated.
func (c *Component) IgnoreErrors() bool {
	return c.Spec != nil && c.Spec.IgnoreErrors
}

// LogName returns the name used for the component in logs.
func (c *Component) LogName() string {
	return LogName(c.Name(), c.ComponentType(), c.ComponentVersion())
}

// LogName formats "name (type/version)", or "name (type)" without a version.
func LogName(name, componentType, version string) string {
	if version == "" {
		return fmt.Sprintf("%s (%s)", name, componentType)
	}
	return fmt.Sprintf("%s (%s/%s)", name, componentType, version)
}

// DeepCopy returns a copy of c that shares no pointers, slices or maps with it.
func (c *Component) DeepCopy() *Component {
	out := &Component{TypeMeta: c.TypeMeta}
	if c.ObjectMeta != nil {
		om := *c.ObjectMeta
		om.Labels = copyStringMap(c.ObjectMeta.Labels)
		om.Annotations = copyStringMap(c.ObjectMeta.Annotations)
		out.ObjectMeta = &om
	}
	if c.Spec != nil {
		spec := *c.Spec
		if c.Spec.Metadata != nil {
			spec.Metadata = make([]NameValuePair, len(c.Spec.Metadata))
			for i := range c.Spec.Metadata {
				spec.Metadata[i] = c.Spec.Metadata[i].DeepCopy()
			}
		}
		out.Spec = &spec
	}
	if c.Auth != nil {
		auth := *c.Auth
		out.Auth = &auth
	}
	if c.Scopes != nil {
		out.Scopes = append([]string(nil), c.Scopes...)
	}
	return out
}

// EmptyMetaDeepCopy returns a deep copy with TypeMeta set and object metadata
// reduced to the name.
func (c *Component) EmptyMetaDeepCopy() *Component {
	out := c.DeepCopy()
	out.TypeMeta = TypeMeta{Kind: Kind, APIVersion: c.APIVersion()}
	out.ObjectMeta = &ObjectMeta{Name: c.Name()}
	return out
}

// Validate checks the structure of the component: required fields and at most
// one value source per metadata entry. Driver-specific semantics are not checked.
func (c *Component) Validate() error {
	if err := validate.Struct(c); err != nil {
		return fmt.Errorf("component %s: %w", c.Name(), err)
	}
	var errs []error
	for _, item := range c.NameValuePairs() {
		if err := item.Validate(); err != nil {
			errs = append(errs, err)
		}
	}
	if len(errs) > 0 {
		return fmt.Errorf("component %s: %w", c.Name(), errors.Join(errs...))
	}
	return nil
}

func copyStringMap(m map[string]string) map[string]string {
	if m == nil {
		return nil
	}
	out := make(map[string]string, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}
