package profiles

import (
	"context"
	"path/filepath"

	"github.com/fsnotify/fsnotify"

	"newsreel/internal/logging"
)

// Watch reloads the store whenever the backing file changes on disk, so
// edits made outside the daemon (or by another process) take effect without
// a restart. It blocks until ctx is cancelled.
//
// The parent directory is watched rather than the file itself because the
// store rewrites via rename, which replaces the watched inode.
func (s *Store) Watch(ctx context.Context) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	defer watcher.Close()

	if err := watcher.Add(filepath.Dir(s.path)); err != nil {
		return err
	}

	target := filepath.Base(s.path)
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if filepath.Base(event.Name) != target {
				continue
			}
			if !event.Has(fsnotify.Write) && !event.Has(fsnotify.Create) && !event.Has(fsnotify.Rename) {
				continue
			}
			if err := s.reload(); err != nil {
				s.logger.Warn("profile store reload failed",
					logging.Error(err),
					logging.String(logging.FieldEventType, "profile_reload_failed"),
					logging.String(logging.FieldErrorHint, "fix the JSON document or delete it to reseed defaults"),
				)
				continue
			}
			s.logger.Info("profile store reloaded",
				logging.String("path", s.path),
				logging.String(logging.FieldEventType, "profile_reloaded"),
			)
		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			s.logger.Warn("profile store watch error", logging.Error(err))
		}
	}
}
