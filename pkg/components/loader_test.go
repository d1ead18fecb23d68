package components

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/rs/zerolog"
)

const redisManifest = `apiVersion: gantry.io/v1alpha1
kind: Component
metadata:
  name: statestore
spec:
  type: state.redis
  version: v1
  metadata:
    - name: redisHost
      value: localhost:6379
    - name: maxRetries
      value: 3
    - name: redisPassword
      secretKeyRef:
        name: redis
        key: password
    - name: apiKey
      envRef: API_KEY
auth:
  secretStore: vault
scopes:
  - app1
  - app2
`

func newTestLoader(t *testing.T) *Loader {
	t.Helper()

	loader, err := NewLoader(zerolog.New(nil).Level(zerolog.Disabled))
	if err != nil {
		t.Fatalf("NewLoader() error = %v", err)
	}
	return loader
}

func writeManifest(t *testing.T, dir, name, content string) string {
	t.Helper()

	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatalf("failed to write manifest: %v", err)
	}
	return path
}

func TestLoaderLoadBytes(t *testing.T) {
	loader := newTestLoader(t)

	comps, err := loader.LoadBytes([]byte(redisManifest), "inline")
	if err != nil {
		t.Fatalf("LoadBytes() error = %v", err)
	}
	if len(comps) != 1 {
		t.Fatalf("expected 1 component, got %d", len(comps))
	}

	comp := comps[0]
	if comp.Name() != "statestore" || comp.ComponentType() != "state.redis" {
		t.Errorf("unexpected component %s", comp.LogName())
	}
	if comp.SecretStore() != "vault" {
		t.Errorf("SecretStore() = %q", comp.SecretStore())
	}
	if len(comp.Scopes) != 2 || comp.Scopes[1] != "app2" {
		t.Errorf("Scopes = %v", comp.Scopes)
	}

	items := comp.NameValuePairs()
	if len(items) != 4 {
		t.Fatalf("expected 4 metadata entries, got %d", len(items))
	}
	if items[0].Text() != "localhost:6379" {
		t.Errorf("redisHost = %q", items[0].Text())
	}
	if items[1].Value.Kind() != KindNumber || items[1].Text() != "3" {
		t.Errorf("maxRetries = %s (%s)", items[1].Value, items[1].Value.Kind())
	}
	if items[2].Source() != SourceSecretRef || items[2].SecretKeyRef.Key != "password" {
		t.Errorf("redisPassword source = %s", items[2].Source())
	}
	if items[3].Source() != SourceEnvRef || items[3].EnvRef != "API_KEY" {
		t.Errorf("apiKey source = %s", items[3].Source())
	}
}

func TestLoaderKeepsTimestampText(t *testing.T) {
	loader := newTestLoader(t)
	manifest := `apiVersion: gantry.io/v1alpha1
kind: Component
metadata:
  name: binding
spec:
  type: bindings.cron
  metadata:
    - name: startDate
      value: 2024-01-01
    - name: startTime
      value: 2024-01-01T10:30:00Z
`

	comps, err := loader.LoadBytes([]byte(manifest), "cron")
	if err != nil {
		t.Fatalf("LoadBytes() error = %v", err)
	}

	items := comps[0].NameValuePairs()
	if items[0].Value.Kind() != KindString || items[0].Text() != "2024-01-01" {
		t.Errorf("startDate = %q (%s), want 2024-01-01", items[0].Text(), items[0].Value.Kind())
	}
	if items[1].Text() != "2024-01-01T10:30:00Z" {
		t.Errorf("startTime = %q, want 2024-01-01T10:30:00Z", items[1].Text())
	}
}

func TestLoaderMultiDocument(t *testing.T) {
	loader := newTestLoader(t)

	data := redisManifest + `---
apiVersion: gantry.io/v1alpha1
kind: Configuration
metadata:
  name: appconfig
---
{"kind": "Component", "metadata": {"name": "wasm"}, "spec": {"type": "middleware.http.wasm", "version": "v1"}}
`

	comps, err := loader.LoadBytes([]byte(data), "multi")
	if err != nil {
		t.Fatalf("LoadBytes() error = %v", err)
	}
	if len(comps) != 2 {
		t.Fatalf("expected 2 components, got %d", len(comps))
	}
	if comps[1].ComponentType() != "middleware.http.wasm" {
		t.Errorf("second component type = %q", comps[1].ComponentType())
	}
}

func TestLoaderSchemaErrors(t *testing.T) {
	loader := newTestLoader(t)

	tests := []struct {
		name     string
		manifest string
	}{
		{
			name:     "missing name",
			manifest: "kind: Component\nmetadata: {}\nspec:\n  type: state.redis\n",
		},
		{
			name:     "empty type",
			manifest: "kind: Component\nmetadata:\n  name: a\nspec:\n  type: \"\"\n",
		},
		{
			name:     "scopes not a list",
			manifest: "kind: Component\nmetadata:\n  name: a\nscopes: app1\n",
		},
		{
			name:     "secret reference without name",
			manifest: "kind: Component\nmetadata:\n  name: a\nspec:\n  type: t\n  metadata:\n    - name: x\n      secretKeyRef:\n        key: k\n",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := loader.LoadBytes([]byte(tt.manifest), tt.name)
			if !errors.Is(err, ErrInvalidManifest) {
				t.Fatalf("expected ErrInvalidManifest, got %v", err)
			}
		})
	}
}

func TestLoaderRejectsConflictingSources(t *testing.T) {
	loader := newTestLoader(t)

	manifest := `kind: Component
metadata:
  name: a
spec:
  type: state.redis
  metadata:
    - name: password
      value: plain
      envRef: PASSWORD
`
	if _, err := loader.LoadBytes([]byte(manifest), "conflict"); err == nil {
		t.Fatal("expected error for entry with value and envRef")
	}
}

func TestLoaderLoadDir(t *testing.T) {
	loader := newTestLoader(t)
	dir := t.TempDir()

	writeManifest(t, dir, "b-redis.yaml", redisManifest)
	writeManifest(t, dir, "a-kafka.yml", "kind: Component\nmetadata:\n  name: pubsub\nspec:\n  type: pubsub.kafka\n")
	writeManifest(t, dir, "notes.txt", "not a manifest")
	if err := os.Mkdir(filepath.Join(dir, "nested"), 0755); err != nil {
		t.Fatalf("failed to create nested dir: %v", err)
	}
	writeManifest(t, filepath.Join(dir, "nested"), "c.yaml", redisManifest)

	comps, err := loader.LoadDir(dir)
	if err != nil {
		t.Fatalf("LoadDir() error = %v", err)
	}
	if len(comps) != 2 {
		t.Fatalf("expected 2 components, got %d", len(comps))
	}
	if comps[0].Name() != "pubsub" || comps[1].Name() != "statestore" {
		t.Errorf("components out of file order: %s, %s", comps[0].Name(), comps[1].Name())
	}
}

func TestLoaderLoadDirMissing(t *testing.T) {
	loader := newTestLoader(t)

	if _, err := loader.LoadDir(filepath.Join(t.TempDir(), "missing")); err == nil {
		t.Fatal("expected error for missing directory")
	}
}

func TestIsManifestFile(t *testing.T) {
	tests := map[string]bool{
		"redis.yaml":   true,
		"redis.YML":    true,
		"redis.json":   true,
		"redis.yaml~":  false,
		"README.md":    false,
		"no-extension": false,
	}

	for name, want := range tests {
		if got := IsManifestFile(name); got != want {
			t.Errorf("IsManifestFile(%q) = %v, want %v", name, got, want)
		}
	}
}
