package config

import (
	"fmt"
	"time"

	"go.uber.org/zap/zapcore"
)

// Default configuration values.
const (
	DefaultMaxEntries      = 1000
	DefaultBoundaryTimeout = "500ms"
	DefaultLogLevel        = "info"
)

// Settings holds the editor core configuration.
type Settings struct {
	History HistorySettings `toml:"history" yaml:"history"`
	Log     LogSettings     `toml:"log" yaml:"log"`
}

// HistorySettings configures the undo/redo manager.
type HistorySettings struct {
	// MaxEntries is the undo depth. Oldest entries fall off first.
	MaxEntries int `toml:"max_entries" yaml:"max_entries"`

	// BoundaryTimeout is how long a marked word boundary stays pending
	// before it checkpoints on its own, as a Go duration string such as
	// "500ms". "0" disables the timer.
	BoundaryTimeout string `toml:"boundary_timeout" yaml:"boundary_timeout"`
}

// LogSettings configures logging.
type LogSettings struct {
	// Level is the minimum level emitted: debug, info, warn, or error.
	Level string `toml:"level" yaml:"level"`
}

// Default returns the settings used when no file is present.
func Default() Settings {
	return Settings{
		History: HistorySettings{
			MaxEntries:      DefaultMaxEntries,
			BoundaryTimeout: DefaultBoundaryTimeout,
		},
		Log: LogSettings{
			Level: DefaultLogLevel,
		},
	}
}

// Validate checks the settings for consistency.
func (s Settings) Validate() error {
	if s.History.MaxEntries <= 0 {
		return fmt.Errorf("%w: history.max_entries must be positive, got %d",
			ErrInvalidSettings, s.History.MaxEntries)
	}
	if _, err := s.History.BoundaryDuration(); err != nil {
		return err
	}
	switch s.Log.Level {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("%w: log.level must be debug, info, warn, or error, got %q",
			ErrInvalidSettings, s.Log.Level)
	}
	return nil
}

// BoundaryDuration parses the boundary timeout string. An empty string
// means the default.
func (h HistorySettings) BoundaryDuration() (time.Duration, error) {
	text := h.BoundaryTimeout
	if text == "" {
		text = DefaultBoundaryTimeout
	}
	d, err := time.ParseDuration(text)
	if err != nil {
		return 0, fmt.Errorf("%w: history.boundary_timeout %q: %v",
			ErrInvalidSettings, h.BoundaryTimeout, err)
	}
	if d < 0 {
		return 0, fmt.Errorf("%w: history.boundary_timeout %q is negative",
			ErrInvalidSettings, h.BoundaryTimeout)
	}
	return d, nil
}

// ZapLevel maps the configured log level onto a zap level. Unrecognized
// values fall back to info; Validate catches them first on normal paths.
func (l LogSettings) ZapLevel() zapcore.Level {
	lvl, err := zapcore.ParseLevel(l.Level)
	if err != nil {
		return zapcore.InfoLevel
	}
	return lvl
}
