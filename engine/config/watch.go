package config

import (
	"context"
	"fmt"
	"path/filepath"

	"github.com/Carmen-Shannon/oxy-t5/common"
	"github.com/fsnotify/fsnotify"
)

// Watch reloads the file at path whenever it changes and passes every valid configuration to
// onChange. Invalid edits are logged and skipped; the previous configuration stays in effect.
// The parent directory is watched so editors that replace the file by rename are followed.
// Watch blocks until ctx is done.
//
// Parameters:
//   - ctx: cancels the watch
//   - path: the configuration file
//   - onChange: called on the watching goroutine with each reloaded configuration
//
// Returns:
//   - error: an error if the watch could not be started, nil once ctx is done
func Watch(ctx context.Context, path string, onChange func(*Config)) error {
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("creating config watcher: %w", err)
	}
	defer w.Close()

	abs, err := filepath.Abs(path)
	if err != nil {
		return fmt.Errorf("resolving config path: %w", err)
	}
	if err := w.Add(filepath.Dir(abs)); err != nil {
		return fmt.Errorf("watching %s: %w", filepath.Dir(abs), err)
	}

	for {
		select {
		case <-ctx.Done():
			return nil
		case ev, ok := <-w.Events:
			if !ok {
				return nil
			}
			if !isReload(ev, abs) {
				continue
			}
			cfg, err := LoadFile(abs)
			if err != nil {
				common.Logger().Warn("config reload rejected", "path", abs, "err", err)
				continue
			}
			common.Logger().Info("config reloaded", "path", abs)
			onChange(cfg)
		case err, ok := <-w.Errors:
			if !ok {
				return nil
			}
			common.Logger().Warn("config watcher error", "path", abs, "err", err)
		}
	}
}

// isReload reports whether ev changed the contents of the file at abs.
func isReload(ev fsnotify.Event, abs string) bool {
	if filepath.Clean(ev.Name) != abs {
		return false
	}
	return ev.Has(fsnotify.Write) || ev.Has(fsnotify.Create)
}
