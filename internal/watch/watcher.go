// Package watch reports content changes of rule documents made on disk.
package watch

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/starford/rulekeeper/internal/checksum"
	"github.com/starford/rulekeeper/internal/storage"
)

// Debounce is how long the watcher waits for a burst of events to settle
// before reading the documents again.
const Debounce = 100 * time.Millisecond

// Callback is called with a document path and its new checksum. The checksum
// is empty when the document was removed.
type Callback func(path, sum string)

// Watch watches the given documents until ctx is cancelled. Their parent
// directories are watched, so documents may be created, replaced or removed
// while the watcher runs. Directories that do not exist are skipped.
//
// cb is called at most once per debounce window per document, and only when
// the checksum differs from the last one seen.
func Watch(ctx context.Context, store storage.Provider, paths []string, logger *slog.Logger, cb Callback) error {
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	defer w.Close()

	last := make(map[string]string, len(paths))
	dirs := make(map[string]bool)
	for _, p := range paths {
		p = filepath.Clean(p)
		if _, ok := last[p]; ok {
			continue
		}
		last[p] = sumOf(store, p)
		dir := filepath.Dir(p)
		if dirs[dir] {
			continue
		}
		if err := w.Add(dir); err != nil {
			logger.Warn("watcher: skip directory",
				slog.String("dir", dir),
				slog.String("error", err.Error()))
			continue
		}
		dirs[dir] = true
	}

	logger.Info("watcher: started", slog.Int("documents", len(last)), slog.Int("dirs", len(dirs)))

	pending := make(map[string]bool)
	var timer *time.Timer
	var timerCh <-chan time.Time

	schedule := func() {
		if timer == nil {
			timer = time.NewTimer(Debounce)
			timerCh = timer.C
		} else {
			timer.Reset(Debounce)
		}
	}

	for {
		select {
		case <-ctx.Done():
			if timer != nil {
				timer.Stop()
			}
			logger.Info("watcher: stopped")
			return nil

		case <-timerCh:
			for p := range pending {
				sum := sumOf(store, p)
				if sum == last[p] {
					continue
				}
				last[p] = sum
				logger.Debug("watcher: document changed", slog.String("path", p))
				if cb != nil {
					cb(p, sum)
				}
			}
			clear(pending)

		case ev, ok := <-w.Events:
			if !ok {
				return nil
			}
			p := filepath.Clean(ev.Name)
			if _, watched := last[p]; !watched {
				continue
			}
			if ev.Op&(fsnotify.Create|fsnotify.Write|fsnotify.Remove|fsnotify.Rename) == 0 {
				continue
			}
			pending[p] = true
			schedule()

		case watchErr, ok := <-w.Errors:
			if !ok {
				return nil
			}
			logger.Error("watcher: error", slog.String("error", watchErr.Error()))
		}
	}
}

// sumOf returns the checksum of the document at path, or "" when it is
// missing or unreadable.
func sumOf(store storage.Provider, path string) string {
	data, err := store.Read(path)
	if err != nil {
		if !errors.Is(err, os.ErrNotExist) {
			slog.Debug("watcher: read failed", slog.String("path", path), slog.String("error", err.Error()))
		}
		return ""
	}
	return checksum.Sum(data)
}
