package snapshot

import (
	"context"
	"errors"
	"os"
	"path/filepath"

	"github.com/fsnotify/fsnotify"
)

type Logger interface {
	Printf(format string, args ...any)
}

// Watch logs when another process rewrites or removes the snapshot file. The
// mirror never re-reads the snapshot mid-session, so this is only a warning.
// It returns when ctx is done.
func Watch(ctx context.Context, b *FileBackend, logger Logger) error {
	if b == nil || b.Path == "" {
		return ErrInvalidInput
	}
	dir := filepath.Dir(b.Path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return err
	}
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	defer watcher.Close()
	// atomic saves replace the file, so the directory is what stays watchable
	if err := watcher.Add(dir); err != nil {
		return err
	}
	target := filepath.Clean(b.Path)
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
			if !event.Has(fsnotify.Write) && !event.Has(fsnotify.Create) && !event.Has(fsnotify.Remove) && !event.Has(fsnotify.Rename) {
				continue
			}
			data, readErr := os.ReadFile(target)
			if readErr != nil {
				if !errors.Is(readErr, os.ErrNotExist) {
					logf(logger, "snapshot watch: read %s failed: %v", target, readErr)
					continue
				}
				data = nil
			}
			if b.ownsContent(data) {
				continue
			}
			if data == nil {
				logf(logger, "snapshot %s was removed by another process; the next mutation will rewrite it", target)
				continue
			}
			logf(logger, "snapshot %s was changed by another process; in-memory records win on the next mutation", target)
		case watchErr, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			logf(logger, "snapshot watch error: %v", watchErr)
		}
	}
}

func logf(logger Logger, format string, args ...any) {
	if logger == nil {
		return
	}
	logger.Printf(format, args...)
}
