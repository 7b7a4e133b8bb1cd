package daemon

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"

	"psnrelay/internal/config"
	"psnrelay/internal/logging"
	"psnrelay/internal/scene"
)

// Editors often write a file in several steps; changes are coalesced for
// this long before reloading.
const reloadDebounce = 250 * time.Millisecond

type presetReloader interface {
	ReloadPresets(presets []scene.Preset, fallback string) (scene.Preset, error)
}

// presetWatcher reloads scene presets when the config file changes. The
// parent directory is watched so atomic rename-on-save is seen too.
type presetWatcher struct {
	path     string
	watcher  *fsnotify.Watcher
	reloader presetReloader
	logger   *slog.Logger
	debounce time.Duration
}

func newPresetWatcher(path string, reloader presetReloader, logger *slog.Logger) (*presetWatcher, error) {
	if path == "" {
		return nil, errors.New("no config file to watch")
	}
	abs, err := filepath.Abs(path)
	if err != nil {
		return nil, fmt.Errorf("resolve config path: %w", err)
	}
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("create watcher: %w", err)
	}
	if err := w.Add(filepath.Dir(abs)); err != nil {
		_ = w.Close()
		return nil, fmt.Errorf("watch %s: %w", filepath.Dir(abs), err)
	}
	return &presetWatcher{
		path:     abs,
		watcher:  w,
		reloader: reloader,
		logger:   logging.NewComponentLogger(logger, "watcher"),
		debounce: reloadDebounce,
	}, nil
}

func (w *presetWatcher) run(ctx context.Context) error {
	defer w.watcher.Close()
	w.logger.Info("watching config for preset changes", logging.String("path", w.path))

	timer := time.NewTimer(time.Hour)
	timer.Stop()
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case event, ok := <-w.watcher.Events:
			if !ok {
				return nil
			}
			if filepath.Clean(event.Name) != w.path {
				continue
			}
			if event.Has(fsnotify.Write) || event.Has(fsnotify.Create) || event.Has(fsnotify.Rename) {
				timer.Reset(w.debounce)
			}
		case err, ok := <-w.watcher.Errors:
			if !ok {
				return nil
			}
			w.logger.Warn("config watcher error", logging.Error(err))
		case <-timer.C:
			w.reload()
		}
	}
}

func (w *presetWatcher) reload() {
	cfg, err := config.Reload(w.path)
	if err == nil {
		var preset scene.Preset
		preset, err = w.reloader.ReloadPresets(cfg.ScenePresets(), cfg.Scene.DefaultMode)
		if err == nil {
			w.logger.Info("scene presets reloaded from config",
				logging.String("path", w.path),
				logging.String(logging.FieldMode, preset.Name),
			)
			return
		}
	}
	logging.WarnWithContext(w.logger, "config reload rejected", "config_reload_rejected",
		logging.String("path", w.path),
		logging.Error(err),
		logging.String(logging.FieldErrorHint, "fix the config file; run psnrelay config validate"),
		logging.String(logging.FieldImpact, "the previous presets stay active"),
	)
}
