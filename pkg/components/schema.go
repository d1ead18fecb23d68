package components

import (
	"errors"
	"fmt"
	"sync"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/cuecontext"
	cueerrors "cuelang.org/go/cue/errors"
)

// ErrInvalidManifest is returned when a manifest document does not match the
// component envelope schema.
var ErrInvalidManifest = errors.New("invalid component manifest")

// componentSchema describes the envelope of a component document. Only the shape
// the runtime relies on is constrained; driver metadata stays open.
const componentSchema = `
#SecretKeyRef: {
	name: string & !=""
	key?: string
}

#NameValuePair: {
	name:          string & !=""
	secretKeyRef?: #SecretKeyRef
	envRef?:       string
	...
}

#Component: {
	apiVersion?: string
	kind:        "Component"
	metadata: {
		name:       string & !=""
		namespace?: string
		...
	}
	spec?: {
		type:          string & !=""
		version?:      string
		ignoreErrors?: bool
		initTimeout?:  string
		metadata?: [...#NameValuePair]
		...
	}
	auth?: {
		secretStore: string
	}
	scopes?: [...string]
	...
}
`

// SchemaValidator checks decoded manifest documents against the component schema.
type SchemaValidator struct {
	mu     sync.Mutex
	ctx    *cue.Context
	schema cue.Value
}

// NewSchemaValidator compiles the component envelope schema.
func NewSchemaValidator() (*SchemaValidator, error) {
	ctx := cuecontext.New()

	val := ctx.CompileString(componentSchema)
	if err := val.Err(); err != nil {
		return nil, fmt.Errorf("failed to compile component schema: %w", err)
	}

	def := val.LookupPath(cue.ParsePath("#Component"))
	if err := def.Err(); err != nil {
		return nil, fmt.Errorf("failed to look up component definition: %w", err)
	}

	return &SchemaValidator{
		ctx:    ctx,
		schema: def,
	}, nil
}

// Validate unifies doc with the schema and reports the first violations found.
func (sv *SchemaValidator) Validate(doc map[string]interface{}) error {
	sv.mu.Lock()
	defer sv.mu.Unlock()

	data := sv.ctx.Encode(doc)
	if err := data.Err(); err != nil {
		return fmt.Errorf("failed to encode manifest: %w", err)
	}

	unified := sv.schema.Unify(data)
	if err := unified.Validate(cue.Concrete(true)); err != nil {
		return fmt.Errorf("%w: %s", ErrInvalidManifest, cueerrors.Details(err, nil))
	}

	return nil
}
