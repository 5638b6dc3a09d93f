package config

import (
	"context"
	"log"
	"path/filepath"

	"github.com/fsnotify/fsnotify"
)

// WatchWeights hot-reloads the weights file whenever it changes on disk,
// until ctx is cancelled. Reload failures keep the previous weights and
// log a warning; the scanner never runs with a half-applied tuning file.
func WatchWeights(ctx context.Context, w *Weights) error {
	if w.path == "" {
		return nil
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}

	// Watch the directory, not the file: editors and config mounts
	// replace the file by rename, which drops a direct file watch.
	if err := watcher.Add(filepath.Dir(w.path)); err != nil {
		watcher.Close()
		return err
	}

	go func() {
		defer watcher.Close()
		for {
			select {
			case <-ctx.Done():
				return
			case ev, ok := <-watcher.Events:
				if !ok {
					return
				}
				if filepath.Clean(ev.Name) != filepath.Clean(w.path) {
					continue
				}
				if !ev.Has(fsnotify.Write) && !ev.Has(fsnotify.Create) && !ev.Has(fsnotify.Rename) {
					continue
				}
				if err := w.Reload(); err != nil {
					log.Printf("[CONFIG] Weights reload failed, keeping previous: %v", err)
				}
			case err, ok := <-watcher.Errors:
				if !ok {
					return
				}
				log.Printf("[CONFIG] Weights watcher error: %v", err)
			}
		}
	}()
	return nil
}
