package service

import (
	"context"
	"log"
	"path/filepath"
	"strings"
	"time"

	"github.com/fsnotify/fsnotify"
)

// Watch follows the corpus directory and keeps the index in sync with
// it: deletes and renames trigger a prune, creates and writes trigger a
// debounced rebuild. Blocks until ctx is cancelled or the watcher dies.
func (s *Service) Watch(ctx context.Context) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	defer watcher.Close()

	if err := watcher.Add(s.config.Dir); err != nil {
		return err
	}

	var rebuild <-chan time.Time
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()

		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if !strings.EqualFold(filepath.Ext(event.Name), ".pdf") {
				continue
			}
			switch {
			case event.Op&(fsnotify.Remove|fsnotify.Rename) != 0:
				if removed, err := s.manager.Prune(ctx); err != nil {
					log.Printf("watch: prune after %s: %v", filepath.Base(event.Name), err)
				} else if removed > 0 {
					log.Printf("watch: pruned %d chunks after %s left the corpus", removed, filepath.Base(event.Name))
				}
			case event.Op&(fsnotify.Create|fsnotify.Write) != 0:
				rebuild = time.After(s.config.Debounce)
			}

		case <-rebuild:
			rebuild = nil
			report, err := s.manager.Rebuild(ctx)
			if err != nil {
				log.Printf("watch: rebuild: %v", err)
			}
			if report != nil {
				for _, f := range report.Failures {
					log.Printf("watch: skipped unreadable %s: %v", filepath.Base(f.Path), f.Err)
				}
			}

		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			log.Printf("watch: %v", err)
		}
	}
}
