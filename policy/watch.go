package policy

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"

	"github.com/fsnotify/fsnotify"
)

// Watch reloads the policy file at path whenever it changes and passes each
// successfully parsed Resolver to onChange. A file that fails to parse is
// logged and the previous policy stays in effect. Watch blocks until ctx is
// done.
//
// The parent directory is watched rather than the file itself so that editors
// and config managers that replace the file atomically are picked up.
func Watch(ctx context.Context, path string, logger *slog.Logger, onChange func(*Resolver)) error {
	if logger == nil {
		logger = slog.Default()
	}

	w, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("policy: watch: %w", err)
	}
	defer w.Close()

	abs, err := filepath.Abs(path)
	if err != nil {
		return fmt.Errorf("policy: watch: %w", err)
	}
	if err := w.Add(filepath.Dir(abs)); err != nil {
		return fmt.Errorf("policy: watch %s: %w", filepath.Dir(abs), err)
	}

	for {
		select {
		case <-ctx.Done():
			return nil
		case ev, ok := <-w.Events:
			if !ok {
				return nil
			}
			if filepath.Clean(ev.Name) != abs || !ev.Has(fsnotify.Write|fsnotify.Create) {
				continue
			}
			res, err := LoadFile(abs)
			if err != nil {
				logger.WarnContext(ctx, "policy reload failed, keeping previous policy", "path", abs, "error", err)
				continue
			}
			logger.InfoContext(ctx, "policy reloaded", "path", abs, "groups", res.Len())
			onChange(res)
		case err, ok := <-w.Errors:
			if !ok {
				return nil
			}
			logger.WarnContext(ctx, "policy watcher error", "error", err)
		}
	}
}
