package config

import (
	"context"
	"log/slog"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/b/tabsync/pkg/logging"
)

var configLog = logging.ForComponent(logging.CompConfig)

// watchDebounce coalesces the burst of events editors produce on save.
const watchDebounce = 100 * time.Millisecond

// Watch reloads path whenever it changes and hands every valid result to
// onChange, from the watcher goroutine, until ctx is done. Invalid files are
// logged and skipped so a half-written edit never replaces a good config.
//
// The parent directory is watched rather than the file itself so that
// editors that save by rename keep being followed.
func Watch(ctx context.Context, path string, onChange func(*Config)) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	if err := watcher.Add(filepath.Dir(path)); err != nil {
		watcher.Close()
		return err
	}
	target := filepath.Clean(path)

	go func() {
		defer watcher.Close()
		defer logging.RecoverAndLog(configLog, "config.watch")

		var debounce *time.Timer
		var fire <-chan time.Time
		for {
			select {
			case <-ctx.Done():
				if debounce != nil {
					debounce.Stop()
				}
				return

			case event, ok := <-watcher.Events:
				if !ok {
					return
				}
				if filepath.Clean(event.Name) != target {
					continue
				}
				if event.Op&(fsnotify.Create|fsnotify.Write|fsnotify.Rename) == 0 {
					continue
				}
				if debounce != nil {
					debounce.Stop()
				}
				debounce = time.NewTimer(watchDebounce)
				fire = debounce.C

			case <-fire:
				fire = nil
				cfg, err := LoadConfig(path)
				if err != nil {
					configLog.Warn("config_reload_failed", slog.String("path", path), slog.String("error", err.Error()))
					continue
				}
				configLog.Info("config_reloaded", slog.String("path", path))
				onChange(cfg)

			case err, ok := <-watcher.Errors:
				if !ok {
					return
				}
				configLog.Warn("config_watcher_error", slog.String("error", err.Error()))
			}
		}
	}()
	return nil
}
