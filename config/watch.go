package config

import (
	"context"
	"fmt"
	"log"
	"os"
	"path/filepath"

	"github.com/fsnotify/fsnotify"
)

// WatchSettings reloads the settings file whenever it is written, created or
// replaced, and calls onChange with the freshly loaded value. The parent
// directory is watched because atomic saves replace the file. It blocks
// until ctx is cancelled.
func WatchSettings(ctx context.Context, store *SettingsStore, onChange func(Settings)) error {
	dir := filepath.Dir(store.Path())
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return fmt.Errorf("create settings dir: %w", err)
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("create settings watcher: %w", err)
	}
	defer watcher.Close()

	if err := watcher.Add(dir); err != nil {
		return fmt.Errorf("watch %s: %w", dir, err)
	}
	log.Printf("Watching settings file %s", store.Path())

	target := filepath.Clean(store.Path())
	for {
		select {
		case <-ctx.Done():
			return nil

		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if filepath.Clean(event.Name) != target {
				continue
			}
			if !event.Has(fsnotify.Write) && !event.Has(fsnotify.Create) && !event.Has(fsnotify.Rename) {
				continue
			}
			settings, err := store.Load()
			if err != nil {
				log.Printf("Settings reload failed: %v", err)
				continue
			}
			onChange(settings)

		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			log.Printf("Settings watcher error: %v", err)
		}
	}
}
