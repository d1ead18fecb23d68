package policy

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/open-policy-agent/opa/ast"
	"github.com/rs/zerolog"
)

// PackagePrefix is the rego package every admission policy must live under.
const PackagePrefix = "gantry"

// DefaultReloadDelay debounces bursts of policy file events into one reload.
const DefaultReloadDelay = 500 * time.Millisecond

// Loader reads admission policies from .rego files and JSON policy documents.
//
// A .rego file is named after its file and configured through its leading
// comment block: plain lines form the description, and "severity:", "tags:"
// and "enabled:" lines set the matching fields.
//
//	# Redis components must pin a driver version
//	# severity: warning
//	# tags: redis, versions
//	package gantry.custom.redis
type Loader struct {
	logger zerolog.Logger
	delay  time.Duration

	mu      sync.Mutex
	watcher *fsnotify.Watcher
}

// NewLoader creates a policy loader.
func NewLoader(logger zerolog.Logger) *Loader {
	return &Loader{
		logger: logger.With().Str("component", "policy-loader").Logger(),
		delay:  DefaultReloadDelay,
	}
}

// SetReloadDelay overrides the debounce delay used by Watch.
func (l *Loader) SetReloadDelay(d time.Duration) {
	l.delay = d
}

// LoadFromPaths loads every policy in paths. A path is a policy file or a
// directory searched recursively. Invalid files inside a directory are skipped;
// an invalid file named directly is an error. Policy names must be unique.
func (l *Loader) LoadFromPaths(ctx context.Context, paths []string) ([]Policy, error) {
	var policies []Policy
	sources := make(map[string]string)

	for _, path := range paths {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		loaded, err := l.loadFromPath(path)
		if err != nil {
			return nil, fmt.Errorf("failed to load from path %s: %w", path, err)
		}

		for _, p := range loaded {
			source, _ := p.Metadata["source"].(string)
			if previous, exists := sources[p.Name]; exists {
				return nil, fmt.Errorf("duplicate policy name %s in %s and %s", p.Name, previous, source)
			}
			sources[p.Name] = source
			policies = append(policies, p)
		}
	}

	l.logger.Info().
		Int("total", len(policies)).
		Int("sources", len(paths)).
		Msg("Policies loaded from paths")

	return policies, nil
}

func (l *Loader) loadFromPath(path string) ([]Policy, error) {
	info, err := os.Stat(path)
	if err != nil {
		return nil, fmt.Errorf("failed to stat path: %w", err)
	}

	if !info.IsDir() {
		policy, err := l.LoadFile(path)
		if err != nil {
			return nil, err
		}
		return []Policy{*policy}, nil
	}

	var policies []Policy
	err = filepath.WalkDir(path, func(file string, d os.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() || !isPolicyFile(file) {
			return nil
		}

		policy, err := l.LoadFile(file)
		if err != nil {
			l.logger.Warn().Err(err).Str("path", file).Msg("Skipping invalid policy file")
			return nil
		}
		policies = append(policies, *policy)
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to walk directory: %w", err)
	}

	return policies, nil
}

// LoadFile loads one .rego or .json policy file and checks that its rego
// declares a deny set in a package under PackagePrefix.
func (l *Loader) LoadFile(path string) (*Policy, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read file: %w", err)
	}

	var policy *Policy
	switch filepath.Ext(path) {
	case ".rego":
		policy, err = parseRegoFile(path, data)
	case ".json":
		policy, err = parseJSONFile(data)
	default:
		return nil, fmt.Errorf("unsupported file type: %s", path)
	}
	if err != nil {
		return nil, err
	}

	if err := validateRego(path, policy.Rego); err != nil {
		return nil, err
	}

	if policy.Metadata == nil {
		policy.Metadata = make(map[string]interface{})
	}
	policy.Metadata["source"] = path

	l.logger.Debug().
		Str("path", path).
		Str("policy", policy.Name).
		Str("severity", string(policy.Severity)).
		Msg("Policy loaded from file")

	return policy, nil
}

func parseRegoFile(path string, data []byte) (*Policy, error) {
	header, err := parseHeader(string(data))
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}

	return &Policy{
		Name:        strings.TrimSuffix(filepath.Base(path), ".rego"),
		Description: header.description,
		Rego:        string(data),
		Severity:    header.severity,
		Enabled:     header.enabled,
		Tags:        header.tags,
		CreatedAt:   time.Now(),
	}, nil
}

func parseJSONFile(data []byte) (*Policy, error) {
	var policy Policy
	if err := json.Unmarshal(data, &policy); err != nil {
		return nil, fmt.Errorf("failed to parse JSON policy: %w", err)
	}

	if policy.Name == "" || policy.Rego == "" {
		return nil, fmt.Errorf("JSON policy requires name and rego")
	}
	if policy.Severity == "" {
		policy.Severity = SeverityError
	}
	if !validSeverity(policy.Severity) {
		return nil, fmt.Errorf("policy %s: unknown severity %q", policy.Name, policy.Severity)
	}
	if policy.CreatedAt.IsZero() {
		policy.CreatedAt = time.Now()
	}

	return &policy, nil
}

// policyHeader holds the settings read from the leading comment block of a .rego file.
type policyHeader struct {
	description string
	severity    Severity
	tags        []string
	enabled     bool
}

func parseHeader(content string) (policyHeader, error) {
	header := policyHeader{severity: SeverityError, enabled: true, tags: []string{}}
	var description []string

	for _, line := range strings.Split(content, "\n") {
		trimmed := strings.TrimSpace(line)
		if trimmed == "" {
			continue
		}
		if !strings.HasPrefix(trimmed, "#") {
			break
		}

		comment := strings.TrimSpace(strings.TrimPrefix(trimmed, "#"))
		key, value, found := strings.Cut(comment, ":")
		switch key = strings.ToLower(strings.TrimSpace(key)); {
		case found && key == "severity":
			header.severity = Severity(strings.ToLower(strings.TrimSpace(value)))
			if !validSeverity(header.severity) {
				return policyHeader{}, fmt.Errorf("unknown severity %q", strings.TrimSpace(value))
			}
		case found && key == "tags":
			for _, tag := range strings.Split(value, ",") {
				if tag = strings.TrimSpace(tag); tag != "" {
					header.tags = append(header.tags, tag)
				}
			}
		case found && key == "enabled":
			enabled, err := strconv.ParseBool(strings.TrimSpace(value))
			if err != nil {
				return policyHeader{}, fmt.Errorf("invalid enabled value %q", strings.TrimSpace(value))
			}
			header.enabled = enabled
		case comment != "":
			description = append(description, comment)
		}
	}

	header.description = strings.Join(description, " ")
	return header, nil
}

// validateRego parses src and checks that it can serve as an admission policy.
func validateRego(path, src string) error {
	module, err := ast.ParseModule(path, src)
	if err != nil {
		return fmt.Errorf("failed to parse policy: %w", err)
	}
	if module == nil {
		return fmt.Errorf("%s: empty policy", path)
	}

	pkg := strings.TrimPrefix(module.Package.Path.String(), "data.")
	if pkg != PackagePrefix && !strings.HasPrefix(pkg, PackagePrefix+".") {
		return fmt.Errorf("%s: package %s must be under %s", path, pkg, PackagePrefix)
	}

	for _, rule := range module.Rules {
		if rule.Head.Ref().String() == "deny" {
			return nil
		}
	}
	return fmt.Errorf("%s: package %s declares no deny rule", path, pkg)
}

func validSeverity(s Severity) bool {
	switch s {
	case SeverityInfo, SeverityWarning, SeverityError, SeverityCritical:
		return true
	}
	return false
}

func isPolicyFile(name string) bool {
	ext := filepath.Ext(name)
	return ext == ".rego" || ext == ".json"
}

// Watch reloads the policies in paths after every change and hands them to
// reloadFn. Directories are watched recursively, including ones created later;
// a watched file is tracked through its parent directory so editors that save
// by rename are picked up. A failed reload is logged and the previous policies
// stay in effect. Watching stops when ctx is done or StopWatching is called.
func (l *Loader) Watch(ctx context.Context, paths []string, reloadFn func([]Policy) error) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("failed to create watcher: %w", err)
	}

	files := make(map[string]bool)
	var roots []string
	for _, path := range paths {
		info, err := os.Stat(path)
		if err != nil {
			_ = watcher.Close()
			return fmt.Errorf("failed to stat %s: %w", path, err)
		}

		if info.IsDir() {
			roots = append(roots, filepath.Clean(path))
			err = addRecursive(watcher, path)
		} else {
			files[filepath.Clean(path)] = true
			err = watcher.Add(filepath.Dir(path))
		}
		if err != nil {
			_ = watcher.Close()
			return fmt.Errorf("failed to watch %s: %w", path, err)
		}
	}

	l.mu.Lock()
	l.watcher = watcher
	l.mu.Unlock()

	go l.processEvents(ctx, watcher, paths, roots, files, reloadFn)

	l.logger.Info().
		Int("paths", len(paths)).
		Msg("Started watching policy paths")

	return nil
}

func addRecursive(watcher *fsnotify.Watcher, dir string) error {
	return filepath.WalkDir(dir, func(path string, d os.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			return watcher.Add(path)
		}
		return nil
	})
}

func (l *Loader) processEvents(ctx context.Context, watcher *fsnotify.Watcher, paths, roots []string, files map[string]bool, reloadFn func([]Policy) error) {
	var reloadTimer *time.Timer
	defer func() {
		if reloadTimer != nil {
			reloadTimer.Stop()
		}
	}()

	for {
		select {
		case <-ctx.Done():
			_ = l.StopWatching()
			return

		case event, ok := <-watcher.Events:
			if !ok {
				return
			}
			if !event.Has(fsnotify.Write) && !event.Has(fsnotify.Create) &&
				!event.Has(fsnotify.Remove) && !event.Has(fsnotify.Rename) {
				continue
			}

			if event.Has(fsnotify.Create) {
				if info, err := os.Stat(event.Name); err == nil && info.IsDir() {
					if err := addRecursive(watcher, event.Name); err != nil {
						l.logger.Warn().Err(err).Str("dir", event.Name).Msg("Failed to watch new directory")
					}
				}
			}

			if !relevant(event.Name, roots, files) {
				continue
			}

			l.logger.Debug().
				Str("file", event.Name).
				Str("op", event.Op.String()).
				Msg("Policy file changed")

			if reloadTimer != nil {
				reloadTimer.Stop()
			}
			reloadTimer = time.AfterFunc(l.delay, func() {
				if err := l.reload(ctx, paths, reloadFn); err != nil {
					l.logger.Error().Err(err).Msg("Failed to reload policies, keeping the previous set")
				}
			})

		case err, ok := <-watcher.Errors:
			if !ok {
				return
			}
			l.logger.Error().Err(err).Msg("Watcher error")
		}
	}
}

// relevant reports whether a change to name can alter the loaded policies.
func relevant(name string, roots []string, files map[string]bool) bool {
	if !isPolicyFile(name) {
		return false
	}
	name = filepath.Clean(name)
	if files[name] {
		return true
	}
	for _, root := range roots {
		if strings.HasPrefix(name, root+string(filepath.Separator)) {
			return true
		}
	}
	return false
}

func (l *Loader) reload(ctx context.Context, paths []string, reloadFn func([]Policy) error) error {
	if ctx.Err() != nil {
		return nil
	}

	policies, err := l.LoadFromPaths(ctx, paths)
	if err != nil {
		return err
	}
	if err := reloadFn(policies); err != nil {
		return fmt.Errorf("failed to apply reloaded policies: %w", err)
	}

	l.logger.Info().
		Int("count", len(policies)).
		Msg("Policies reloaded")
	return nil
}

// StopWatching stops watching for file changes.
func (l *Loader) StopWatching() error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.watcher == nil {
		return nil
	}
	err := l.watcher.Close()
	l.watcher = nil
	return err
}
