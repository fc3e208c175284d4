package blockstorm

import (
	"time"

	"go.uber.org/zap"

	"github.com/dshills/blockstorm/internal/config"
)

// Re-export configuration types.
type (
	// Settings holds the editor core configuration.
	Settings = config.Settings

	// HistorySettings configures the undo/redo manager.
	HistorySettings = config.HistorySettings

	// LogSettings configures logging.
	LogSettings = config.LogSettings

	// SettingsWatcher reloads a config file when it changes on disk.
	SettingsWatcher = config.Watcher

	// WatchOption configures a settings watcher.
	WatchOption = config.WatchOption
)

// DefaultSettings returns the settings used when no file is present.
func DefaultSettings() Settings {
	return config.Default()
}

// LoadSettings reads settings from a .toml, .yaml, or .yml file. A missing
// file is not an error; defaults are returned.
func LoadSettings(path string) (Settings, error) {
	return config.Load(path)
}

// WithWatchDebounce sets how long a settings file must be quiet before a
// reload.
func WithWatchDebounce(d time.Duration) WatchOption {
	return config.WithDebounce(d)
}

// ApplySettings adjusts the editor's runtime limits from validated
// settings: undo depth and boundary timeout. Invalid settings are rejected
// without changing anything.
func (e *Editor) ApplySettings(s Settings) error {
	if err := s.Validate(); err != nil {
		return err
	}
	d, err := s.History.BoundaryDuration()
	if err != nil {
		return err
	}

	e.history.SetMaxEntries(s.History.MaxEntries)
	e.history.SetBoundaryTimeout(d)

	e.log.Info("settings applied",
		zap.Int("max_undo_entries", s.History.MaxEntries),
		zap.Duration("boundary_timeout", d))
	return nil
}

// WatchSettings live-reloads settings from path into the editor: each time
// the file changes and parses cleanly, ApplySettings runs with the result.
// Close the returned watcher to stop.
func (e *Editor) WatchSettings(path string, opts ...WatchOption) (*SettingsWatcher, error) {
	handler := func(s config.Settings) {
		if err := e.ApplySettings(s); err != nil {
			e.log.Warn("settings reload rejected", zap.Error(err))
		}
	}

	opts = append(opts, config.WithErrorHandler(func(err error) {
		e.log.Warn("settings reload failed", zap.Error(err))
	}))

	w, err := config.Watch(path, handler, opts...)
	if err != nil {
		return nil, err
	}

	e.log.Info("watching settings", zap.String("path", w.Path()))
	return w, nil
}
