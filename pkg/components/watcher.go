package components

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/rs/zerolog"
)

// DefaultReloadDelay debounces bursts of file events into a single reload.
const DefaultReloadDelay = 500 * time.Millisecond

// Watcher reloads a components directory whenever a manifest in it changes.
type Watcher struct {
	loader *Loader
	logger zerolog.Logger
	delay  time.Duration

	mu      sync.Mutex
	watcher *fsnotify.Watcher
}

// NewWatcher creates a watcher that reloads through loader.
func NewWatcher(loader *Loader, logger zerolog.Logger) *Watcher {
	return &Watcher{
		loader: loader,
		logger: logger.With().Str("component", "component-watcher").Logger(),
		delay:  DefaultReloadDelay,
	}
}

// SetReloadDelay overrides the debounce delay.
func (w *Watcher) SetReloadDelay(d time.Duration) {
	w.delay = d
}

// Watch starts watching dir in the background. onChange receives the full set of
// components after every change. Watching stops when ctx is done.
func (w *Watcher) Watch(ctx context.Context, dir string, onChange func([]*Component) error) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("failed to create watcher: %w", err)
	}
	if err := watcher.Add(dir); err != nil {
		_ = watcher.Close()
		return fmt.Errorf("failed to watch %s: %w", dir, err)
	}

	w.mu.Lock()
	w.watcher = watcher
	w.mu.Unlock()

	go w.processEvents(ctx, watcher, dir, onChange)

	w.logger.Info().Str("dir", dir).Msg("Started watching components directory")
	return nil
}

// Stop stops watching.
func (w *Watcher) Stop() error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.watcher == nil {
		return nil
	}
	err := w.watcher.Close()
	w.watcher = nil
	return err
}

func (w *Watcher) processEvents(ctx context.Context, watcher *fsnotify.Watcher, dir string, onChange func([]*Component) error) {
	var reloadTimer *time.Timer
	defer func() {
		if reloadTimer != nil {
			reloadTimer.Stop()
		}
	}()

	for {
		select {
		case <-ctx.Done():
			_ = w.Stop()
			return

		case event, ok := <-watcher.Events:
			if !ok {
				return
			}
			if !IsManifestFile(event.Name) {
				continue
			}
			if event.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Remove|fsnotify.Rename) == 0 {
				continue
			}

			w.logger.Debug().
				Str("file", event.Name).
				Str("op", event.Op.String()).
				Msg("Component manifest changed")

			if reloadTimer != nil {
				reloadTimer.Stop()
			}
			reloadTimer = time.AfterFunc(w.delay, func() {
				if err := w.reload(dir, onChange); err != nil {
					w.logger.Error().Err(err).Msg("Failed to reload components")
				}
			})

		case err, ok := <-watcher.Errors:
			if !ok {
				return
			}
			w.logger.Error().Err(err).Msg("Watcher error")
		}
	}
}

func (w *Watcher) reload(dir string, onChange func([]*Component) error) error {
	comps, err := w.loader.LoadDir(dir)
	if err != nil {
		return err
	}
	if err := onChange(comps); err != nil {
		return fmt.Errorf("failed to apply reloaded components: %w", err)
	}

	w.logger.Info().Int("count", len(comps)).Msg("Components reloaded")
	return nil
}
