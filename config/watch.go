package config

import (
	"context"
	"path/filepath"

	"github.com/fsnotify/fsnotify"
	"go.uber.org/zap"

	"perp-trader-go/infrastructure/logger"
)

// Watcher reports config file edits while the process runs. Configuration is
// deliberately NOT hot-reloaded: live exposure must never change parameters
// mid-run. The watcher only logs that a restart is required, so an edited
// file is not silently ignored either.
type Watcher struct {
	Path string
	Log  *logger.Logger
}

// Start blocks until ctx is done, logging a warning whenever the config file
// is written to.
func (w Watcher) Start(ctx context.Context) error {
	log := w.Log
	if log == nil {
		log = logger.Nop()
	}

	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	defer fw.Close()

	// watch the directory: editors replace files on save
	if err := fw.Add(filepath.Dir(w.Path)); err != nil {
		return err
	}
	target := filepath.Clean(w.Path)

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case ev, ok := <-fw.Events:
			if !ok {
				return nil
			}
			if filepath.Clean(ev.Name) != target {
				continue
			}
			if ev.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Rename) != 0 {
				log.Warn("config file changed on disk; running parameters are unchanged, restart to apply",
					zap.String("path", w.Path),
					zap.String("op", ev.Op.String()))
			}
		case err, ok := <-fw.Errors:
			if !ok {
				return nil
			}
			log.Warn("config watcher error", zap.Error(err))
		}
	}
}
