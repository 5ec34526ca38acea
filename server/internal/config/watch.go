package config

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/fsnotify/fsnotify"
)

// Watch calls reload whenever the file at path is written or replaced, until
// ctx is cancelled. The parent directory is watched rather than the file, so
// the watch survives saves that rename a temp file over path.
//
// A failed reload is logged and the previous state stays active.
func Watch(ctx context.Context, path string, reload func(path string) error) error {
	path = filepath.Clean(path)
	if _, err := os.Stat(path); err != nil {
		return fmt.Errorf("config: watch %q: %w", path, err)
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("config: watcher: %w", err)
	}
	defer watcher.Close()

	dir := filepath.Dir(path)
	if err := watcher.Add(dir); err != nil {
		return fmt.Errorf("config: watch %q: %w", dir, err)
	}
	slog.Info("config: watching for changes", "path", path)

	for {
		select {
		case <-ctx.Done():
			return nil

		case ev, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if filepath.Clean(ev.Name) != path {
				continue
			}
			// A rename over path arrives as Create; Remove and Rename leave
			// nothing to read until the next Create.
			if !ev.Has(fsnotify.Write) && !ev.Has(fsnotify.Create) {
				continue
			}
			if err := reload(path); err != nil {
				slog.Error("config: reload failed, keeping previous state", "path", path, "err", err)
				continue
			}
			slog.Info("config: reloaded", "path", path, "op", ev.Op.String())

		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			slog.Error("config: watcher error", "err", err)
		}
	}
}
