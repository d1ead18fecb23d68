package components

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/rs/zerolog"
	"gopkg.in/yaml.v3"
)

// manifestExtensions are the file extensions read from component directories.
var manifestExtensions = map[string]bool{
	".yaml": true,
	".yml":  true,
	".json": true,
}

// Loader reads component manifests from files and directories.
type Loader struct {
	schema *SchemaValidator
	logger zerolog.Logger
}

// NewLoader creates a new component loader.
func NewLoader(logger zerolog.Logger) (*Loader, error) {
	schema, err := NewSchemaValidator()
	if err != nil {
		return nil, err
	}

	return &Loader{
		schema: schema,
		logger: logger.With().Str("component", "component-loader").Logger(),
	}, nil
}

// LoadDir loads every manifest file directly inside dir, in lexical file order.
func (l *Loader) LoadDir(dir string) ([]*Component, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("failed to read components directory: %w", err)
	}

	names := make([]string, 0, len(entries))
	for _, entry := range entries {
		if entry.IsDir() || !IsManifestFile(entry.Name()) {
			continue
		}
		names = append(names, entry.Name())
	}
	sort.Strings(names)

	var all []*Component
	for _, name := range names {
		comps, err := l.LoadFile(filepath.Join(dir, name))
		if err != nil {
			return nil, err
		}
		all = append(all, comps...)
	}

	l.logger.Debug().
		Str("dir", dir).
		Int("files", len(names)).
		Int("components", len(all)).
		Msg("Components loaded from directory")

	return all, nil
}

// LoadFile loads the components declared in a single manifest file.
func (l *Loader) LoadFile(path string) ([]*Component, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read manifest file: %w", err)
	}
	return l.LoadBytes(data, path)
}

// LoadBytes decodes YAML or JSON manifest data, which may hold several documents.
// Documents of other kinds are skipped. source names the data in errors.
func (l *Loader) LoadBytes(data []byte, source string) ([]*Component, error) {
	dec := yaml.NewDecoder(bytes.NewReader(data))

	var comps []*Component
	for idx := 0; ; idx++ {
		var node yaml.Node
		if err := dec.Decode(&node); err != nil {
			if errors.Is(err, io.EOF) {
				break
			}
			return nil, fmt.Errorf("%s: document %d: failed to parse manifest: %w", source, idx, err)
		}

		var doc map[string]interface{}
		if err := node.Decode(&doc); err != nil {
			return nil, fmt.Errorf("%s: document %d: manifest is not a mapping: %w", source, idx, err)
		}
		if doc == nil {
			continue
		}

		if kind, _ := doc["kind"].(string); kind != Kind {
			l.logger.Debug().
				Str("source", source).
				Int("document", idx).
				Interface("kind", doc["kind"]).
				Msg("Skipping non-component document")
			continue
		}

		if err := l.schema.Validate(doc); err != nil {
			return nil, fmt.Errorf("%s: document %d: %w", source, idx, err)
		}

		comp := &Component{}
		if err := node.Decode(comp); err != nil {
			return nil, fmt.Errorf("%s: document %d: failed to decode component: %w", source, idx, err)
		}
		if err := comp.Validate(); err != nil {
			return nil, fmt.Errorf("%s: document %d: %w", source, idx, err)
		}

		comps = append(comps, comp)
	}

	return comps, nil
}

// IsManifestFile reports whether name has a manifest file extension.
func IsManifestFile(name string) bool {
	return manifestExtensions[strings.ToLower(filepath.Ext(name))]
}
