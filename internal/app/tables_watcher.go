package app

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"

	"github.com/fsnotify/fsnotify"

	"github.com/opsdesk/opsdesk/internal/config"
	"github.com/opsdesk/opsdesk/internal/gateway"
)

// TablesWatcher reloads the routing tables when the YAML file changes, so
// keyword tuning does not need a restart. Editors replace files rather than
// writing in place, so the parent directory is watched and events are
// filtered by name.
type TablesWatcher struct {
	path    string
	service *gateway.Service
	logger  *slog.Logger
	watcher *fsnotify.Watcher
}

func NewTablesWatcher(path string, service *gateway.Service, logger *slog.Logger) (*TablesWatcher, error) {
	fileWatcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("create fsnotify watcher: %w", err)
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &TablesWatcher{
		path:    path,
		service: service,
		logger:  logger,
		watcher: fileWatcher,
	}, nil
}

func (w *TablesWatcher) Start(ctx context.Context) error {
	defer w.watcher.Close()

	dir := filepath.Dir(w.path)
	if err := w.watcher.Add(dir); err != nil {
		return fmt.Errorf("watch %s: %w", dir, err)
	}
	w.logger.Info("routing tables watcher started", "path", w.path)

	for {
		select {
		case <-ctx.Done():
			w.logger.Info("routing tables watcher stopped")
			return nil
		case event := <-w.watcher.Events:
			w.handleEvent(event)
		case err := <-w.watcher.Errors:
			if err != nil {
				w.logger.Error("routing tables watcher error", "error", err)
			}
		}
	}
}

func (w *TablesWatcher) handleEvent(event fsnotify.Event) {
	if filepath.Clean(event.Name) != filepath.Clean(w.path) {
		return
	}
	if event.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Rename) == 0 {
		return
	}
	w.reload()
}

func (w *TablesWatcher) reload() {
	tables, err := config.LoadRoutingTables(w.path)
	if err != nil {
		w.logger.Error("routing tables reload failed, keeping previous tables", "path", w.path, "error", err)
		return
	}
	w.service.SetPatterns(gateway.NewPatterns(tables))
	w.logger.Info("routing tables reloaded", "path", w.path)
}
