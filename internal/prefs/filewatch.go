package prefs

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"
	"strings"
	"time"

	"github.com/fsnotify/fsnotify"
)

// FileWatcher reloads a Store when its database file is written by another
// process, e.g. a second options surface sharing the profile.
type FileWatcher struct {
	watcher *fsnotify.Watcher
	store   *Store
	path    string
	quiet   time.Duration
	logger  *slog.Logger
	done    chan struct{}
}

// WatchFile starts watching path. The store is reloaded once writes have been
// quiet for the given window.
func WatchFile(ctx context.Context, store *Store, path string, quiet time.Duration, logger *slog.Logger) (*FileWatcher, error) {
	if logger == nil {
		logger = slog.Default()
	}
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("creating file watcher: %w", err)
	}
	// Watch the directory: SQLite replaces and journals files next to the database.
	if err := w.Add(filepath.Dir(path)); err != nil {
		w.Close()
		return nil, fmt.Errorf("watching %s: %w", filepath.Dir(path), err)
	}

	fw := &FileWatcher{
		watcher: w,
		store:   store,
		path:    filepath.Clean(path),
		quiet:   quiet,
		logger:  logger,
		done:    make(chan struct{}),
	}
	go fw.run(ctx)
	return fw, nil
}

func (fw *FileWatcher) relevant(ev fsnotify.Event) bool {
	if !ev.Has(fsnotify.Write) && !ev.Has(fsnotify.Create) {
		return false
	}
	// matches the database and its -wal / -journal siblings
	return strings.HasPrefix(filepath.Clean(ev.Name), fw.path)
}

func (fw *FileWatcher) run(ctx context.Context) {
	defer close(fw.done)

	var (
		timer  *time.Timer
		fire   <-chan time.Time
		closed bool
	)
	stopTimer := func() {
		if timer != nil {
			timer.Stop()
		}
	}
	defer stopTimer()

	for !closed {
		select {
		case <-ctx.Done():
			return
		case ev, ok := <-fw.watcher.Events:
			if !ok {
				closed = true
				continue
			}
			if !fw.relevant(ev) {
				continue
			}
			stopTimer()
			timer = time.NewTimer(fw.quiet)
			fire = timer.C
		case err, ok := <-fw.watcher.Errors:
			if !ok {
				closed = true
				continue
			}
			fw.logger.Warn("preference file watcher error", "path", fw.path, "error", err)
		case <-fire:
			fire = nil
			fw.logger.Debug("preference file changed, reloading", "path", fw.path)
			fw.store.Reload(ctx)
		}
	}
}

// Close stops watching.
func (fw *FileWatcher) Close() error {
	err := fw.watcher.Close()
	<-fw.done
	return err
}
