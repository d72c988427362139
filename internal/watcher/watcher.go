// Package watcher monitors a directory tree and reports file changes.
//
// Directories are watched recursively; a directory rejected by the
// eligibility function is never descended into. Events are delivered one at
// a time, in arrival order, with no coalescing.
package watcher

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/fsnotify/fsnotify"
)

// Handler receives file events. Errors are logged and do not stop the watcher.
type Handler interface {
	// Changed is called when an eligible file is created or written
	Changed(ctx context.Context, path string) error
	// Removed is called when an eligible file is removed or renamed away
	Removed(ctx context.Context, path string) error
	// RemovedDir is called when a watched directory is removed or renamed away
	RemovedDir(ctx context.Context, path string) error
}

// EligibleFunc reports whether a path should be watched (directories) or
// reported (files)
type EligibleFunc func(path string, isDir bool) bool

// Config configures a Watcher
type Config struct {
	Root     string
	Eligible EligibleFunc
	Handler  Handler
	Logger   *slog.Logger
}

// Watcher delivers filesystem events for one directory tree
type Watcher struct {
	root     string
	eligible EligibleFunc
	handler  Handler
	logger   *slog.Logger

	fs     *fsnotify.Watcher
	cancel context.CancelFunc
	done   chan struct{}

	mu      sync.Mutex
	watched map[string]bool
	stopped bool
}

// New creates a watcher; call Start to begin receiving events
func New(cfg Config) (*Watcher, error) {
	if cfg.Root == "" {
		return nil, errors.New("watcher: root is required")
	}
	if cfg.Handler == nil {
		return nil, errors.New("watcher: handler is required")
	}
	if cfg.Eligible == nil {
		cfg.Eligible = func(string, bool) bool { return true }
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	return &Watcher{
		root:     cfg.Root,
		eligible: cfg.Eligible,
		handler:  cfg.Handler,
		logger:   cfg.Logger.With("root", cfg.Root),
		watched:  make(map[string]bool),
	}, nil
}

// Start adds the tree to the watch list and starts the event loop.
// The loop runs until Stop is called or ctx is cancelled.
func (w *Watcher) Start(ctx context.Context) error {
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("failed to create file watcher: %w", err)
	}
	w.fs = fsw

	if _, err := w.addTree(w.root); err != nil {
		_ = fsw.Close()
		return fmt.Errorf("failed to watch %s: %w", w.root, err)
	}

	ctx, cancel := context.WithCancel(ctx)
	w.cancel = cancel
	w.done = make(chan struct{})
	go w.loop(ctx)

	w.logger.Debug("file watcher started", "dirs", w.WatchedDirs())
	return nil
}

// Stop ends the event loop and waits for an in-flight handler call to return.
// It is safe to call more than once.
func (w *Watcher) Stop() error {
	w.mu.Lock()
	if w.stopped || w.cancel == nil {
		w.stopped = true
		w.mu.Unlock()
		return nil
	}
	w.stopped = true
	w.mu.Unlock()

	w.cancel()
	<-w.done
	return w.fs.Close()
}

// WatchedDirs returns the number of directories being watched
func (w *Watcher) WatchedDirs() int {
	w.mu.Lock()
	defer w.mu.Unlock()
	return len(w.watched)
}

// addTree watches dir and every eligible directory below it. It returns the
// eligible regular files found, so a directory that appeared after the
// watch started can have its contents reported.
func (w *Watcher) addTree(dir string) ([]string, error) {
	var files []string
	err := filepath.WalkDir(dir, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			if p == dir {
				return err
			}
			w.logger.Debug("skipping unreadable path", "path", p, "error", err)
			return nil
		}
		if d.IsDir() {
			if p != w.root && !w.eligible(p, true) {
				return filepath.SkipDir
			}
			return w.watch(p)
		}
		if d.Type().IsRegular() && w.eligible(p, false) {
			files = append(files, p)
		}
		return nil
	})
	return files, err
}

func (w *Watcher) watch(dir string) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.watched[dir] {
		return nil
	}
	if err := w.fs.Add(dir); err != nil {
		return err
	}
	w.watched[dir] = true
	return nil
}

// forget drops path and every directory below it from the watch list.
// It reports whether path was a watched directory.
func (w *Watcher) forget(path string) bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	if !w.watched[path] {
		return false
	}
	prefix := path + string(filepath.Separator)
	for dir := range w.watched {
		if dir == path || strings.HasPrefix(dir, prefix) {
			delete(w.watched, dir)
		}
	}
	return true
}

func (w *Watcher) loop(ctx context.Context) {
	defer close(w.done)

	for {
		select {
		case <-ctx.Done():
			w.logger.Debug("file watcher stopped")
			return

		case event, ok := <-w.fs.Events:
			if !ok {
				return
			}
			w.dispatch(ctx, event)

		case err, ok := <-w.fs.Errors:
			if !ok {
				return
			}
			w.logger.Error("file watcher error", "error", err)
		}
	}
}

func (w *Watcher) dispatch(ctx context.Context, event fsnotify.Event) {
	path := event.Name

	switch {
	case event.Has(fsnotify.Create) || event.Has(fsnotify.Write):
		info, err := os.Stat(path)
		if err != nil {
			// Gone before we looked; a Remove event follows.
			return
		}
		if info.IsDir() {
			if event.Has(fsnotify.Create) && w.eligible(path, true) {
				w.addDir(ctx, path)
			}
			return
		}
		if !info.Mode().IsRegular() || !w.eligible(path, false) {
			return
		}
		w.call(ctx, "changed", path, w.handler.Changed)

	case event.Has(fsnotify.Remove) || event.Has(fsnotify.Rename):
		if w.forget(path) {
			w.call(ctx, "removed dir", path, w.handler.RemovedDir)
			return
		}
		if !w.eligible(path, false) {
			return
		}
		w.call(ctx, "removed", path, w.handler.Removed)
	}
}

// addDir watches a newly created directory and reports files that were
// written into it before the watch was in place
func (w *Watcher) addDir(ctx context.Context, dir string) {
	files, err := w.addTree(dir)
	if err != nil {
		w.logger.Warn("failed to watch new directory", "path", dir, "error", err)
		return
	}
	for _, f := range files {
		w.call(ctx, "changed", f, w.handler.Changed)
	}
}

func (w *Watcher) call(ctx context.Context, kind, path string, fn func(context.Context, string) error) {
	if err := fn(ctx, path); err != nil {
		w.logger.Warn("file event handler failed", "event", kind, "path", path, "error", err)
		return
	}
	w.logger.Debug("file event handled", "event", kind, "path", path)
}
