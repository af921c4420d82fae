// Package watch reloads a model file when it changes on disk.
package watch

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"
)

// ReloadFunc receives the new contents of the watched file. A returned
// error is logged and the watcher keeps running.
type ReloadFunc func(model string) error

// Watcher watches one model file.
type Watcher struct {
	path   string
	reload ReloadFunc
	log    *slog.Logger
	delay  time.Duration
	ready  chan struct{}
}

// Option configures a Watcher.
type Option func(*Watcher)

// WithLogger sets the logger. Nil is ignored.
func WithLogger(l *slog.Logger) Option {
	return func(w *Watcher) {
		if l != nil {
			w.log = l
		}
	}
}

// WithDelay sets how long the file must be quiet before it is reloaded.
// The default is 100ms.
func WithDelay(d time.Duration) Option {
	return func(w *Watcher) {
		w.delay = d
	}
}

// New returns a watcher of path calling reload after each change.
func New(path string, reload ReloadFunc, opts ...Option) *Watcher {
	w := &Watcher{
		path:   filepath.Clean(path),
		reload: reload,
		log:    slog.Default(),
		delay:  100 * time.Millisecond,
		ready:  make(chan struct{}),
	}
	for _, opt := range opts {
		opt(w)
	}
	return w
}

// Ready is closed once Run watches the file.
func (w *Watcher) Ready() <-chan struct{} {
	return w.ready
}

// Run watches the file until ctx is done. The directory is watched
// rather than the file so that editors replacing the file by rename
// are followed.
func (w *Watcher) Run(ctx context.Context) error {
	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("relgraph/watch: %w", err)
	}
	defer fw.Close()
	if err := fw.Add(filepath.Dir(w.path)); err != nil {
		return fmt.Errorf("relgraph/watch: watch %s: %w", w.path, err)
	}
	w.log.InfoContext(ctx, "watching model", "path", w.path)
	close(w.ready)

	timer := time.NewTimer(w.delay)
	timer.Stop()
	defer timer.Stop()
	for {
		select {
		case <-ctx.Done():
			return nil
		case ev, ok := <-fw.Events:
			if !ok {
				return nil
			}
			if filepath.Clean(ev.Name) != w.path || ev.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Rename) == 0 {
				continue
			}
			timer.Reset(w.delay)
		case err, ok := <-fw.Errors:
			if !ok {
				return nil
			}
			w.log.WarnContext(ctx, "watch error", "path", w.path, "error", err)
		case <-timer.C:
			w.load(ctx)
		}
	}
}

func (w *Watcher) load(ctx context.Context) {
	b, err := os.ReadFile(w.path)
	if err != nil {
		// A rename may leave the path briefly missing; its Create event
		// triggers another load.
		w.log.WarnContext(ctx, "read model", "path", w.path, "error", err)
		return
	}
	if err := w.reload(string(b)); err != nil {
		w.log.ErrorContext(ctx, "reload failed, keeping previous model", "path", w.path, "error", err)
		return
	}
	w.log.InfoContext(ctx, "model reloaded", "path", w.path)
}
