package meta

import (
	"github.com/google/uuid"
)

// Mode is the hosting mode of the runtime.
type Mode string

const (
	// ModeKubernetes means the runtime runs next to a pod.
	ModeKubernetes Mode = "kubernetes"

	// ModeStandalone means the runtime runs as a local process.
	ModeStandalone Mode = "standalone"
)

// Options is the identity context resolution runs under.
type Options struct {
	// ID is the application id.
	ID string

	// PodName is the pod the runtime serves. It may be empty outside Kubernetes.
	PodName string

	// Namespace is the namespace the application runs in.
	Namespace string

	// StrictSandbox forces every WASM component into strict sandbox mode.
	StrictSandbox bool

	// Mode is the hosting mode.
	Mode Mode
}

// Meta resolves component metadata for one application. It is read-only after
// construction and safe for concurrent use.
type Meta struct {
	id            string
	podName       string
	namespace     string
	strictSandbox bool
	mode          Mode

	newID func() string
}

// NewMeta creates a resolver for the given identity.
func NewMeta(opts Options) *Meta {
	return &Meta{
		id:            opts.ID,
		podName:       opts.PodName,
		namespace:     opts.Namespace,
		strictSandbox: opts.StrictSandbox,
		mode:          opts.Mode,
		newID:         uuid.NewString,
	}
}

// AppID returns the application id.
func (m *Meta) AppID() string { return m.id }

// Namespace returns the namespace.
func (m *Meta) Namespace() string { return m.namespace }

// PodName returns the pod name.
func (m *Meta) PodName() string { return m.podName }

// StrictSandbox reports whether strict sandbox mode is enforced for WASM components.
func (m *Meta) StrictSandbox() bool { return m.strictSandbox }

// Mode returns the hosting mode.
func (m *Meta) Mode() Mode { return m.mode }
