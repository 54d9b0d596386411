package config

import (
	"context"
	"fmt"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/rs/zerolog"

	"github.com/ccollier86/catalyst-auth-sub001/pkg/engine"
)

// DefaultReloadDelay is how long the watcher waits after the last change
// before reloading.
const DefaultReloadDelay = 500 * time.Millisecond

// ReloadFunc receives each reloaded runbook, or the error that prevented
// loading it.
type ReloadFunc func(ctx context.Context, rb *engine.Runbook, err error)

// Watcher reloads a runbook file when it changes.
type Watcher struct {
	logger zerolog.Logger
	delay  time.Duration

	// mu serializes reload callbacks.
	mu sync.Mutex
}

// NewWatcher creates a watcher. A non-positive delay selects
// DefaultReloadDelay.
func NewWatcher(logger zerolog.Logger, delay time.Duration) *Watcher {
	if delay <= 0 {
		delay = DefaultReloadDelay
	}
	return &Watcher{logger: logger, delay: delay}
}

// Watch blocks until ctx is done, calling fn after every burst of writes to
// path. The parent directory is watched so editors that replace the file on
// save are still seen.
func (w *Watcher) Watch(ctx context.Context, path string, fn ReloadFunc) error {
	abs, err := filepath.Abs(path)
	if err != nil {
		return fmt.Errorf("failed to resolve %s: %w", path, err)
	}
	target := filepath.Clean(abs)

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("failed to create watcher: %w", err)
	}
	defer watcher.Close()

	if err := watcher.Add(filepath.Dir(target)); err != nil {
		return fmt.Errorf("failed to watch %s: %w", path, err)
	}

	w.logger.Info().Str("path", target).Msg("Watching runbook for changes")

	var reloadTimer *time.Timer
	defer func() {
		if reloadTimer != nil {
			reloadTimer.Stop()
		}
	}()

	for {
		select {
		case <-ctx.Done():
			return nil

		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if filepath.Clean(event.Name) != target {
				continue
			}
			if event.Op&(fsnotify.Write|fsnotify.Create) == 0 {
				continue
			}

			w.logger.Debug().
				Str("file", event.Name).
				Str("op", event.Op.String()).
				Msg("Runbook file changed")

			// Debounce reload
			if reloadTimer != nil {
				reloadTimer.Stop()
			}
			reloadTimer = time.AfterFunc(w.delay, func() {
				w.reload(ctx, target, fn)
			})

		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			w.logger.Error().Err(err).Msg("Watcher error")
		}
	}
}

func (w *Watcher) reload(ctx context.Context, path string, fn ReloadFunc) {
	w.mu.Lock()
	defer w.mu.Unlock()

	if ctx.Err() != nil {
		return
	}

	rb, err := LoadRunbook(path)
	if err != nil {
		w.logger.Error().Err(err).Str("path", path).Msg("Failed to reload runbook")
	} else {
		w.logger.Info().
			Str("runbook", rb.Name).
			Int("actions", len(rb.Actions)).
			Msg("Runbook reloaded")
	}
	fn(ctx, rb, err)
}
