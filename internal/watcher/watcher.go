// Package watcher hot-reloads ambient client settings from an optional config
// file, publishing each new immutable snapshot through an atomic pointer.
// It never watches or reloads credentials — session cookies and signing keys
// are held entirely in memory by the session manager.
package watcher

import (
	"context"
	"strings"
	"sync/atomic"
	"time"

	"github.com/fsnotify/fsnotify"
	log "github.com/sirupsen/logrus"

	"github.com/otterbroker/zetaclient/internal/config"
)

// debounceWindow coalesces bursts of filesystem events (editors often emit
// several writes for a single save) into one reload.
const debounceWindow = 200 * time.Millisecond

// Watcher observes a config file path and republishes config.Config snapshots
// whenever the file changes. The zero value is not usable; construct with New.
type Watcher struct {
	path    string
	current atomic.Pointer[config.Config]
	reload  func(path string, base *config.Config) (*config.Config, error)
	fsw     *fsnotify.Watcher

	lastEvent time.Time
}

// New constructs a Watcher seeded with an initial snapshot. reload is called
// with the watched path and the previous snapshot whenever the file changes;
// it returns the new snapshot to publish. Passing a nil reload is valid for
// callers who only want Current() without filesystem watching.
func New(path string, initial *config.Config, reload func(path string, base *config.Config) (*config.Config, error)) *Watcher {
	w := &Watcher{path: strings.TrimSpace(path), reload: reload}
	w.current.Store(initial)
	return w
}

// Current returns the most recently published snapshot.
func (w *Watcher) Current() *config.Config {
	if w == nil {
		return nil
	}
	return w.current.Load()
}

// Start begins watching the config file in the background. It returns
// immediately; reloads happen asynchronously until ctx is canceled or Stop is
// called. Starting a Watcher with an empty path is a no-op (no file to watch).
func (w *Watcher) Start(ctx context.Context) error {
	if w == nil || w.path == "" || w.reload == nil {
		return nil
	}
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	if err := fsw.Add(w.path); err != nil {
		_ = fsw.Close()
		log.Errorf("zetaclient: failed to watch config file %s: %v", w.path, err)
		return err
	}
	w.fsw = fsw
	log.Debugf("zetaclient: watching config file %s", w.path)

	go w.loop(ctx)
	return nil
}

// Stop releases the underlying filesystem watch.
func (w *Watcher) Stop() error {
	if w == nil || w.fsw == nil {
		return nil
	}
	return w.fsw.Close()
}

func (w *Watcher) loop(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case event, ok := <-w.fsw.Events:
			if !ok {
				return
			}
			w.handleEvent(event)
		case err, ok := <-w.fsw.Errors:
			if !ok {
				return
			}
			log.Errorf("zetaclient: config watcher error: %v", err)
		}
	}
}

func (w *Watcher) handleEvent(event fsnotify.Event) {
	const relevant = fsnotify.Write | fsnotify.Create | fsnotify.Rename
	if event.Op&relevant == 0 {
		return
	}
	now := time.Now()
	if now.Sub(w.lastEvent) < debounceWindow {
		return
	}
	w.lastEvent = now

	log.Debugf("zetaclient: config file changed (%s): %s", event.Op.String(), event.Name)
	next, err := w.reload(w.path, w.current.Load())
	if err != nil {
		log.Warnf("zetaclient: config reload failed: %v", err)
		return
	}
	if next != nil {
		w.current.Store(next)
	}
}
