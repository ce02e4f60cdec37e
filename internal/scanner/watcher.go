package scanner

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"

	"songbook/internal/song"
)

const DefaultDebounce = 2 * time.Second

// Watch re-runs Reconcile whenever the tree below root changes and then
// stays quiet for debounce. It returns when ctx is cancelled. Errors from
// individual runs are logged and do not stop the watcher.
func (s *Service) Watch(ctx context.Context, root string, debounce time.Duration, onResult func(Result)) error {
	if debounce <= 0 {
		debounce = DefaultDebounce
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("create file watcher: %w", err)
	}
	defer watcher.Close()

	if err := addTree(watcher, root, make(map[string]struct{})); err != nil {
		return err
	}
	s.logger.Info("watching for changes", "root", root, "directories", len(watcher.WatchList()))

	timer := time.NewTimer(debounce)
	timer.Stop()
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			s.logger.Debug("watcher event", "op", event.Op.String(), "path", event.Name)

			if event.Has(fsnotify.Create) {
				if info, err := os.Stat(event.Name); err == nil && info.IsDir() {
					if err := addTree(watcher, event.Name, make(map[string]struct{})); err != nil {
						s.logger.Warn("cannot watch new directory", "path", event.Name, "error", err)
					}
				}
			}
			timer.Reset(debounce)
		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			s.logger.Error("watcher error", "error", err)
		case <-timer.C:
			result, err := s.Reconcile(ctx, root)
			if err != nil {
				if errors.Is(err, context.Canceled) || ctx.Err() != nil {
					return nil
				}
				s.logger.Error("reconcile failed", "root", root, "error", err)
				continue
			}
			if onResult != nil {
				onResult(result)
			}
		}
	}
}

// addTree watches dir and every directory below it, following symlinks to
// directories the same way the walker does.
func addTree(watcher *fsnotify.Watcher, dir string, visited map[string]struct{}) error {
	canonical, err := song.Canonicalize(dir)
	if err != nil {
		return fmt.Errorf("resolve directory %s: %w", dir, err)
	}
	if _, ok := visited[canonical]; ok {
		return nil
	}
	visited[canonical] = struct{}{}

	if err := watcher.Add(dir); err != nil {
		return fmt.Errorf("watch %s: %w", dir, err)
	}

	entries, err := os.ReadDir(dir)
	if err != nil {
		return fmt.Errorf("read directory %s: %w", dir, err)
	}

	for _, entry := range entries {
		path := filepath.Join(dir, entry.Name())
		info, err := os.Stat(path)
		if err != nil || !info.IsDir() {
			continue
		}
		if err := addTree(watcher, path, visited); err != nil {
			return err
		}
	}

	return nil
}
