// Copyright (C) 2025 Mend Systems (oss@mendhq.dev)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package healing

import (
	"context"
	"errors"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
)

// WatcherOptions configures the source watcher.
type WatcherOptions struct {
	// DebounceWindow is how long to wait for more changes to a file
	// before analyzing it. Default: 250ms.
	DebounceWindow time.Duration

	// AutoHeal triggers a batch heal after any change that broke tests.
	AutoHeal bool

	// IgnorePatterns are name patterns for files and directories to skip.
	IgnorePatterns []string
}

// DefaultWatcherOptions returns sensible defaults.
func DefaultWatcherOptions() WatcherOptions {
	return WatcherOptions{
		DebounceWindow: 250 * time.Millisecond,
		IgnorePatterns: []string{".git", "target", "build", "node_modules", "*.swp", "*.tmp"},
	}
}

// SourceWatcher turns filesystem writes to Java sources into impact
// analyses.
//
// # Description
//
// The watcher recursively watches a source root. The first sighting of
// a .java file only seeds the snapshot index; every subsequent write is
// debounced, then diffed against the last-seen content and fed through
// the service's impact analysis. With AutoHeal set, a change that broke
// tests is followed by a batch heal.
//
// # Thread Safety
//
// Safe for concurrent use; the analysis handler runs on one goroutine.
type SourceWatcher struct {
	svc     *Service
	root    string
	opts    WatcherOptions
	watcher *fsnotify.Watcher
	logger  *slog.Logger

	mu       sync.Mutex
	lastSeen map[string][]byte
	pending  map[string]time.Time

	done     chan struct{}
	stopOnce sync.Once
}

// NewSourceWatcher creates a watcher over the given source root.
func NewSourceWatcher(svc *Service, root string, opts WatcherOptions) (*SourceWatcher, error) {
	if svc == nil {
		return nil, errors.New("service is required")
	}
	if root == "" {
		return nil, errors.New("source root is required")
	}
	if opts.DebounceWindow <= 0 {
		opts.DebounceWindow = DefaultWatcherOptions().DebounceWindow
	}
	if opts.IgnorePatterns == nil {
		opts.IgnorePatterns = DefaultWatcherOptions().IgnorePatterns
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	return &SourceWatcher{
		svc:      svc,
		root:     root,
		opts:     opts,
		watcher:  watcher,
		logger:   slog.Default().With(slog.String("component", "watcher")),
		lastSeen: make(map[string][]byte),
		pending:  make(map[string]time.Time),
		done:     make(chan struct{}),
	}, nil
}

// Start seeds the index from the existing sources and begins watching.
// Both goroutines exit when Stop is called or the context is canceled.
func (w *SourceWatcher) Start(ctx context.Context) error {
	if err := w.seed(ctx); err != nil {
		return err
	}
	if err := w.addRecursive(w.root); err != nil {
		return err
	}

	go w.processEvents(ctx)
	go w.debounceLoop(ctx)

	w.logger.Info("watching source root", slog.String("root", w.root))
	return nil
}

// Stop stops the watcher.
func (w *SourceWatcher) Stop() {
	w.stopOnce.Do(func() {
		close(w.done)
		w.watcher.Close()
	})
}

// seed indexes every existing .java file under the root.
func (w *SourceWatcher) seed(ctx context.Context) error {
	return filepath.WalkDir(w.root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return nil
		}
		if d.IsDir() {
			if w.shouldIgnore(path) {
				return filepath.SkipDir
			}
			return nil
		}
		if !isJavaSource(path) || w.shouldIgnore(path) {
			return nil
		}

		content, err := os.ReadFile(path)
		if err != nil {
			w.logger.Warn("failed to read source during seeding",
				slog.String("path", path), slog.String("error", err.Error()))
			return nil
		}
		if err := w.svc.IndexSource(ctx, classNameFromPath(path), content); err != nil {
			w.logger.Warn("failed to index source during seeding",
				slog.String("path", path), slog.String("error", err.Error()))
			return nil
		}
		w.mu.Lock()
		w.lastSeen[path] = content
		w.mu.Unlock()
		return nil
	})
}

// addRecursive watches the root directory and all subdirectories.
func (w *SourceWatcher) addRecursive(root string) error {
	return filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return nil
		}
		if !d.IsDir() {
			return nil
		}
		if w.shouldIgnore(path) {
			return filepath.SkipDir
		}
		return w.watcher.Add(path)
	})
}

// processEvents marks changed Java sources as pending for the debouncer.
func (w *SourceWatcher) processEvents(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case <-w.done:
			return
		case event, ok := <-w.watcher.Events:
			if !ok {
				return
			}
			if event.Op&(fsnotify.Create|fsnotify.Write) == 0 {
				continue
			}
			// New directories must be added to the watch list.
			if info, err := os.Stat(event.Name); err == nil && info.IsDir() {
				if !w.shouldIgnore(event.Name) {
					w.addRecursive(event.Name)
				}
				continue
			}
			if !isJavaSource(event.Name) || w.shouldIgnore(event.Name) {
				continue
			}
			w.mu.Lock()
			w.pending[event.Name] = time.Now()
			w.mu.Unlock()
		case err, ok := <-w.watcher.Errors:
			if !ok {
				return
			}
			w.logger.Warn("watch error", slog.String("error", err.Error()))
		}
	}
}

// debounceLoop analyzes pending files whose debounce window elapsed.
func (w *SourceWatcher) debounceLoop(ctx context.Context) {
	ticker := time.NewTicker(w.opts.DebounceWindow / 2)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-w.done:
			return
		case <-ticker.C:
			for _, path := range w.takeExpired() {
				w.analyzeFile(ctx, path)
			}
		}
	}
}

// takeExpired removes and returns the pending paths whose debounce
// window has elapsed.
func (w *SourceWatcher) takeExpired() []string {
	w.mu.Lock()
	defer w.mu.Unlock()

	var expired []string
	now := time.Now()
	for path, at := range w.pending {
		if now.Sub(at) >= w.opts.DebounceWindow {
			expired = append(expired, path)
			delete(w.pending, path)
		}
	}
	return expired
}

// analyzeFile diffs a changed source against its last-seen content and
// runs impact analysis.
func (w *SourceWatcher) analyzeFile(ctx context.Context, path string) {
	content, err := os.ReadFile(path)
	if err != nil {
		w.logger.Warn("failed to read changed source",
			slog.String("path", path), slog.String("error", err.Error()))
		return
	}

	w.mu.Lock()
	previous, known := w.lastSeen[path]
	w.lastSeen[path] = content
	w.mu.Unlock()

	className := classNameFromPath(path)
	if !known {
		if err := w.svc.IndexSource(ctx, className, content); err != nil {
			w.logger.Warn("failed to index new source",
				slog.String("path", path), slog.String("error", err.Error()))
		}
		return
	}

	impacted, changed, err := w.svc.AnalyzeImpactSources(ctx, className, previous, content)
	if err != nil {
		w.logger.Warn("impact analysis failed",
			slog.String("path", path), slog.String("error", err.Error()))
		return
	}
	w.logger.Info("source change analyzed",
		slog.String("class_name", className),
		slog.Int("changed_methods", changed),
		slog.Int("tests_marked_broken", len(impacted)))

	if w.opts.AutoHeal && len(impacted) > 0 {
		if _, err := w.svc.HealAllBrokenTests(ctx); err != nil {
			w.logger.Warn("auto heal failed", slog.String("error", err.Error()))
		}
	}
}

// shouldIgnore checks a path against the ignore patterns.
func (w *SourceWatcher) shouldIgnore(path string) bool {
	base := filepath.Base(path)
	for _, pattern := range w.opts.IgnorePatterns {
		if base == pattern {
			return true
		}
		if matched, _ := filepath.Match(pattern, base); matched {
			return true
		}
		if strings.Contains(path, string(filepath.Separator)+pattern+string(filepath.Separator)) {
			return true
		}
	}
	return false
}

func isJavaSource(path string) bool {
	return strings.HasSuffix(path, ".java")
}

// classNameFromPath derives the class name from the file name, by Java
// convention one public class per file.
func classNameFromPath(path string) string {
	return strings.TrimSuffix(filepath.Base(path), ".java")
}
