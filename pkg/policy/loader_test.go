package policy

import (
	"context"
	"os"
	"path/filepath"
	"reflect"
	"strings"
	"testing"
	"time"

	"github.com/rs/zerolog"
)

const customRego = `# Redis components must pin a driver version
package gantry.custom.redis

import rego.v1

deny contains msg if {
	input.component.type == "state.redis"
	input.component.version == ""
	msg := "state.redis components must declare a version"
}`

func writePolicyFile(t *testing.T, dir, name, content string) string {
	t.Helper()

	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatalf("Failed to write test file: %v", err)
	}
	return path
}

func newTestLoader() *Loader {
	return NewLoader(zerolog.New(nil).Level(zerolog.Disabled))
}

func TestLoadFile_Rego(t *testing.T) {
	path := writePolicyFile(t, t.TempDir(), "redis-version.rego", customRego)

	policy, err := newTestLoader().LoadFile(path)
	if err != nil {
		t.Fatalf("Failed to load policy: %v", err)
	}

	if policy.Name != "redis-version" {
		t.Errorf("Expected name 'redis-version', got '%s'", policy.Name)
	}
	if policy.Description != "Redis components must pin a driver version" {
		t.Errorf("Unexpected description: %q", policy.Description)
	}
	if policy.Severity != SeverityError {
		t.Errorf("Expected default severity error, got %s", policy.Severity)
	}
	if !policy.Enabled {
		t.Error("Loaded policies should be enabled")
	}
	if policy.Metadata["source"] != path {
		t.Errorf("Expected source metadata %s, got %v", path, policy.Metadata["source"])
	}
}

func TestLoadFile_HeaderDirectives(t *testing.T) {
	content := "# Pubsub components need a consumer group\n" +
		"# severity: Warning\n" +
		"# tags: pubsub, kafka\n" +
		"# enabled: false\n" +
		strings.TrimPrefix(customRego, "# Redis components must pin a driver version\n")
	path := writePolicyFile(t, t.TempDir(), "consumer-group.rego", content)

	policy, err := newTestLoader().LoadFile(path)
	if err != nil {
		t.Fatalf("Failed to load policy: %v", err)
	}

	if policy.Description != "Pubsub components need a consumer group" {
		t.Errorf("Unexpected description: %q", policy.Description)
	}
	if policy.Severity != SeverityWarning {
		t.Errorf("Expected severity warning, got %s", policy.Severity)
	}
	if !reflect.DeepEqual(policy.Tags, []string{"pubsub", "kafka"}) {
		t.Errorf("Unexpected tags: %v", policy.Tags)
	}
	if policy.Enabled {
		t.Error("enabled: false should disable the policy")
	}
}

func TestLoadFile_JSON(t *testing.T) {
	content := `{
  "name": "json-policy",
  "description": "Loaded from JSON",
  "severity": "warning",
  "enabled": true,
  "rego": "package gantry.custom.json\n\nimport rego.v1\n\ndeny contains \"always\" if { false }"
}`
	path := writePolicyFile(t, t.TempDir(), "policy.json", content)

	policy, err := newTestLoader().LoadFile(path)
	if err != nil {
		t.Fatalf("Failed to load policy: %v", err)
	}
	if policy.Name != "json-policy" || policy.Severity != SeverityWarning {
		t.Errorf("Unexpected policy: %+v", policy)
	}
	if policy.CreatedAt.IsZero() {
		t.Error("CreatedAt should default to now")
	}
}

func TestLoadFile_Rejected(t *testing.T) {
	tests := []struct {
		name    string
		file    string
		content string
		wantErr string
	}{
		{
			name:    "invalid json",
			file:    "bad.json",
			content: "{not json",
			wantErr: "failed to parse JSON policy",
		},
		{
			name:    "json without rego",
			file:    "empty.json",
			content: `{"name": "x"}`,
			wantErr: "requires name and rego",
		},
		{
			name:    "unsupported type",
			file:    "policy.txt",
			content: "text",
			wantErr: "unsupported file type",
		},
		{
			name:    "syntax error",
			file:    "broken.rego",
			content: "package gantry.broken\n\ndeny contains x if {",
			wantErr: "failed to parse policy",
		},
		{
			name:    "package outside gantry",
			file:    "outside.rego",
			content: strings.Replace(customRego, "package gantry.custom.redis", "package custom.redis", 1),
			wantErr: "must be under gantry",
		},
		{
			name:    "package with gantry prefix only in name",
			file:    "lookalike.rego",
			content: strings.Replace(customRego, "package gantry.custom.redis", "package gantryx.redis", 1),
			wantErr: "must be under gantry",
		},
		{
			name:    "no deny rule",
			file:    "allow.rego",
			content: "package gantry.custom.allow\n\nimport rego.v1\n\nallow if { true }",
			wantErr: "declares no deny rule",
		},
		{
			name:    "unknown severity",
			file:    "severity.rego",
			content: "# severity: fatal\n" + customRego,
			wantErr: "unknown severity",
		},
		{
			name:    "invalid enabled",
			file:    "enabled.rego",
			content: "# enabled: sometimes\n" + customRego,
			wantErr: "invalid enabled value",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := writePolicyFile(t, t.TempDir(), tt.file, tt.content)

			_, err := newTestLoader().LoadFile(path)
			if err == nil {
				t.Fatalf("LoadFile() expected error containing %q", tt.wantErr)
			}
			if !strings.Contains(err.Error(), tt.wantErr) {
				t.Errorf("LoadFile() error = %v, want %q", err, tt.wantErr)
			}
		})
	}
}

func TestLoadFromPaths_Recursive(t *testing.T) {
	dir := t.TempDir()
	nested := filepath.Join(dir, "nested")
	if err := os.Mkdir(nested, 0755); err != nil {
		t.Fatalf("Failed to create dir: %v", err)
	}

	writePolicyFile(t, dir, "a.rego", customRego)
	writePolicyFile(t, nested, "b.rego", customRego)
	writePolicyFile(t, dir, "README.md", "ignored")
	writePolicyFile(t, dir, "no-deny.rego", "package gantry.custom.other\n\nimport rego.v1\n\nallow := true")

	policies, err := newTestLoader().LoadFromPaths(context.Background(), []string{dir})
	if err != nil {
		t.Fatalf("LoadFromPaths() error = %v", err)
	}
	if len(policies) != 2 {
		t.Errorf("Expected 2 policies, got %d", len(policies))
	}
}

func TestLoadFromPaths_InvalidFileNamedDirectly(t *testing.T) {
	path := writePolicyFile(t, t.TempDir(), "no-deny.rego", "package gantry.custom.other\n\nimport rego.v1\n\nallow := true")

	if _, err := newTestLoader().LoadFromPaths(context.Background(), []string{path}); err == nil {
		t.Error("Expected error for a policy file without deny")
	}
}

func TestLoadFromPaths_DuplicateNames(t *testing.T) {
	first := writePolicyFile(t, t.TempDir(), "same.rego", customRego)
	second := writePolicyFile(t, t.TempDir(), "same.rego", customRego)

	_, err := newTestLoader().LoadFromPaths(context.Background(), []string{first, second})
	if err == nil || !strings.Contains(err.Error(), "duplicate policy name same") {
		t.Errorf("Expected duplicate name error, got %v", err)
	}
}

func TestLoadFromPaths_NonExistent(t *testing.T) {
	if _, err := newTestLoader().LoadFromPaths(context.Background(), []string{"/nonexistent/policies"}); err == nil {
		t.Error("Expected error for nonexistent path")
	}
}

func TestParseHeader(t *testing.T) {
	tests := []struct {
		name     string
		content  string
		want     string
		severity Severity
	}{
		{
			name:     "single comment",
			content:  "# Checks names\npackage x",
			want:     "Checks names",
			severity: SeverityError,
		},
		{
			name:     "multi line comment",
			content:  "# First line\n# second line\npackage x\n# trailing",
			want:     "First line second line",
			severity: SeverityError,
		},
		{
			name:     "directive between lines",
			content:  "# First line\n# severity: critical\n# second line\npackage x",
			want:     "First line second line",
			severity: SeverityCritical,
		},
		{
			name:     "no comment",
			content:  "package x",
			want:     "",
			severity: SeverityError,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			header, err := parseHeader(tt.content)
			if err != nil {
				t.Fatalf("parseHeader() error = %v", err)
			}
			if header.description != tt.want {
				t.Errorf("description = %q, want %q", header.description, tt.want)
			}
			if header.severity != tt.severity {
				t.Errorf("severity = %s, want %s", header.severity, tt.severity)
			}
		})
	}
}

func TestRelevant(t *testing.T) {
	root := filepath.Join(string(filepath.Separator), "policies")
	file := filepath.Join(string(filepath.Separator), "single", "only.rego")
	files := map[string]bool{file: true}

	tests := []struct {
		name string
		path string
		want bool
	}{
		{name: "file under root", path: filepath.Join(root, "nested", "a.rego"), want: true},
		{name: "watched file", path: file, want: true},
		{name: "sibling of watched file", path: filepath.Join(filepath.Dir(file), "other.rego"), want: false},
		{name: "non policy file", path: filepath.Join(root, "notes.md"), want: false},
		{name: "root lookalike", path: root + "-old" + string(filepath.Separator) + "a.rego", want: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := relevant(tt.path, []string{root}, files); got != tt.want {
				t.Errorf("relevant(%s) = %v, want %v", tt.path, got, tt.want)
			}
		})
	}
}

func TestWatch_ReloadsOnRename(t *testing.T) {
	dir := t.TempDir()
	writePolicyFile(t, dir, "redis-version.rego", customRego)

	loader := newTestLoader()
	loader.SetReloadDelay(20 * time.Millisecond)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	reloaded := make(chan []Policy, 4)
	err := loader.Watch(ctx, []string{dir}, func(policies []Policy) error {
		reloaded <- policies
		return nil
	})
	if err != nil {
		t.Fatalf("Watch() error = %v", err)
	}
	defer func() { _ = loader.StopWatching() }()

	// Editors commonly save by writing a temp file and renaming it over the target
	tmp := writePolicyFile(t, t.TempDir(), "pending.rego", strings.Replace(customRego, "state.redis components", "redis stores", 1))
	if err := os.Rename(tmp, filepath.Join(dir, "renamed.rego")); err != nil {
		t.Fatalf("Failed to rename policy: %v", err)
	}
	if err := os.Rename(filepath.Join(dir, "redis-version.rego"), filepath.Join(dir, "redis-version.rego.bak")); err != nil {
		t.Fatalf("Failed to rename policy: %v", err)
	}

	deadline := time.After(5 * time.Second)
	for {
		select {
		case policies := <-reloaded:
			if len(policies) == 1 && policies[0].Name == "renamed" {
				return
			}
		case <-deadline:
			t.Fatal("Timed out waiting for a reload with only the renamed policy")
		}
	}
}

func TestWatch_KeepsPreviousOnInvalidPolicy(t *testing.T) {
	dir := t.TempDir()
	path := writePolicyFile(t, dir, "redis-version.rego", customRego)

	loader := newTestLoader()
	loader.SetReloadDelay(20 * time.Millisecond)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	reloaded := make(chan []Policy, 4)
	if err := loader.Watch(ctx, []string{path}, func(policies []Policy) error {
		reloaded <- policies
		return nil
	}); err != nil {
		t.Fatalf("Watch() error = %v", err)
	}
	defer func() { _ = loader.StopWatching() }()

	writePolicyFile(t, dir, "redis-version.rego", "package custom.redis\n\nimport rego.v1\n\ndeny contains 1 if { true }")

	select {
	case policies := <-reloaded:
		t.Fatalf("Invalid policy should not be handed to reloadFn, got %d policies", len(policies))
	case <-time.After(300 * time.Millisecond):
	}

	writePolicyFile(t, dir, "redis-version.rego", customRego)

	select {
	case policies := <-reloaded:
		if len(policies) != 1 || policies[0].Name != "redis-version" {
			t.Errorf("Unexpected reloaded policies: %+v", policies)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("Timed out waiting for reload after the policy was fixed")
	}
}
