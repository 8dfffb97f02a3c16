package app

import (
	"context"
	"io/fs"
	"path/filepath"
	"strings"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/vk/gridseed/internal/ctxlog"
)

const watchDebounce = 300 * time.Millisecond

// watch generates once, then again after every burst of definition changes,
// until ctx is cancelled. Generation errors are logged and do not stop it.
func (a *App) watch(ctx context.Context) error {
	logger := ctxlog.FromContext(ctx)

	w, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	defer w.Close()
	if err := a.watchTree(w, a.config.Source); err != nil {
		return err
	}

	if err := a.healthCheckServer(ctx); err != nil {
		return err
	}
	defer a.closeHealthCheckServer(ctx)

	a.regenerate(ctx)
	logger.Info("👀 Watching for changes.", "source", a.config.Source)

	var pending <-chan time.Time
	for {
		select {
		case <-ctx.Done():
			logger.Info("🏁 Watch stopped.")
			return nil
		case ev, ok := <-w.Events:
			if !ok {
				return nil
			}
			if ev.Has(fsnotify.Create) {
				// New directories must be watched too; files are ignored here.
				_ = a.watchTree(w, ev.Name)
			}
			if a.relevant(ev.Name) {
				logger.Debug("Definition changed.", "path", ev.Name, "op", ev.Op.String())
				pending = time.After(watchDebounce)
			}
		case err, ok := <-w.Errors:
			if !ok {
				return nil
			}
			logger.Warn("Watcher error.", "error", err)
		case <-pending:
			pending = nil
			a.regenerate(ctx)
		}
	}
}

func (a *App) regenerate(ctx context.Context) {
	_, err := a.Generate(ctx)
	a.setLastErr(err)
	if err != nil {
		ctxlog.FromContext(ctx).Error("Generation failed.", "error", err)
	}
}

// watchTree adds root and every directory below it, skipping hidden
// directories and the store and output folders.
func (a *App) watchTree(w *fsnotify.Watcher, root string) error {
	skip := map[string]bool{}
	for _, p := range []string{a.config.TempDir, a.config.Out} {
		if abs, err := filepath.Abs(p); err == nil {
			skip[abs] = true
		}
	}
	return filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !d.IsDir() {
			return nil
		}
		abs, _ := filepath.Abs(path)
		if skip[abs] || (path != root && strings.HasPrefix(d.Name(), ".")) {
			return filepath.SkipDir
		}
		return w.Add(path)
	})
}

func (a *App) relevant(path string) bool {
	name := filepath.Base(path)
	return strings.HasSuffix(name, a.config.NodeExt) ||
		strings.HasSuffix(name, a.config.GroupExt) ||
		name == ProjectFile
}
