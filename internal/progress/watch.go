package progress

import (
	"context"
	"os"
	"path/filepath"
	"strings"

	"github.com/fsnotify/fsnotify"

	"github.com/mirra-world/claude-bridge/pkg/logger"
)

// Watch observes the progress directory and invokes onUpdate with the
// session id whenever a hook process rewrites a state file. It blocks until
// ctx is done.
func Watch(ctx context.Context, dir string, onUpdate func(sessionID string)) error {
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return err
	}
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	defer watcher.Close()

	if err := watcher.Add(dir); err != nil {
		return err
	}

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			// Hooks write tmp files and rename them into place; the rename
			// shows up as a Create on the final name.
			if !event.Has(fsnotify.Create) && !event.Has(fsnotify.Write) {
				continue
			}
			name := filepath.Base(event.Name)
			if !strings.HasSuffix(name, ".json") {
				continue
			}
			onUpdate(strings.TrimSuffix(name, ".json"))
		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			logger.Warnf("progress watcher error: %v", err)
		}
	}
}
