package meta

import (
	"sort"
	"strings"
)

// MetaBase is the resolved property map of one component. Keys keep their
// declared casing. It is immutable once built: NewMetaBase copies its input
// and Properties hands out copies.
type MetaBase struct {
	Name string

	properties map[string]string
	// index maps lower-cased keys to the original key.
	index map[string]string
}

// NewMetaBase builds a MetaBase over a copy of properties. When two keys
// differ only in case, lookups resolve to the lexicographically smallest of them.
func NewMetaBase(name string, properties map[string]string) MetaBase {
	owned := make(map[string]string, len(properties))
	index := make(map[string]string, len(properties))
	for key, value := range properties {
		owned[key] = value

		folded := strings.ToLower(key)
		if existing, ok := index[folded]; ok && existing < key {
			continue
		}
		index[folded] = key
	}

	return MetaBase{
		Name:       name,
		properties: owned,
		index:      index,
	}
}

// GetProperty returns the value of the first candidate name present in the
// properties, comparing names case-insensitively. Candidates are tried in order.
func (b MetaBase) GetProperty(names ...string) (string, bool) {
	for _, name := range names {
		if key, ok := b.index[strings.ToLower(name)]; ok {
			return b.properties[key], true
		}
	}
	return "", false
}

// GetSingleProperty is GetProperty with one candidate.
func (b MetaBase) GetSingleProperty(name string) (string, bool) {
	return b.GetProperty(name)
}

// Properties returns a copy of the property map. It is nil for the zero MetaBase.
func (b MetaBase) Properties() map[string]string {
	if b.properties == nil {
		return nil
	}
	out := make(map[string]string, len(b.properties))
	for k, v := range b.properties {
		out[k] = v
	}
	return out
}

// Names returns the property names in sorted order.
func (b MetaBase) Names() []string {
	names := make([]string, 0, len(b.properties))
	for name := range b.properties {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Len returns the number of properties.
func (b MetaBase) Len() int {
	return len(b.properties)
}
