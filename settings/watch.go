package settings

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"

	"markestedt/keyblocker/keyboard"
)

// debounce collapses the burst of events an editor or rename produces
const debounce = 150 * time.Millisecond

// Watch calls apply whenever settings.conf is changed by something other
// than this File. It returns once the watcher is installed and stops when
// ctx is cancelled.
func Watch(ctx context.Context, f *File, apply func(keyboard.Settings)) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("failed to create settings watcher: %w", err)
	}

	// Watch the directory: atomic saves replace the file, which drops a
	// watch placed on the file itself.
	if err := watcher.Add(filepath.Dir(f.path)); err != nil {
		watcher.Close()
		return fmt.Errorf("failed to watch settings directory: %w", err)
	}

	go f.watchLoop(ctx, watcher, apply)
	return nil
}

func (f *File) watchLoop(ctx context.Context, watcher *fsnotify.Watcher, apply func(keyboard.Settings)) {
	defer watcher.Close()

	timer := time.NewTimer(debounce)
	timer.Stop()

	for {
		select {
		case <-ctx.Done():
			timer.Stop()
			return

		case evt, ok := <-watcher.Events:
			if !ok {
				return
			}
			if filepath.Clean(evt.Name) != filepath.Clean(f.path) {
				continue
			}
			if evt.Has(fsnotify.Write) || evt.Has(fsnotify.Create) || evt.Has(fsnotify.Rename) {
				timer.Reset(debounce)
			}

		case err, ok := <-watcher.Errors:
			if !ok {
				return
			}
			slog.Warn("Settings watcher error", "error", err)

		case <-timer.C:
			s, changed, err := f.loadExternal()
			if err != nil {
				slog.Warn("Failed to reload settings", "path", f.path, "error", err)
				continue
			}
			if changed {
				apply(s)
			}
		}
	}
}
