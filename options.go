package blockstorm

import (
	"time"

	"go.uber.org/zap"

	"github.com/dshills/blockstorm/internal/history"
)

// Default configuration values.
const (
	DefaultMaxUndoEntries  = history.DefaultMaxEntries
	DefaultBoundaryTimeout = history.DefaultBoundaryTimeout
)

// Option configures an Editor during creation.
type Option func(*Editor)

// WithLogger sets the logger for facade-level events. The default logger
// discards everything.
func WithLogger(log *zap.Logger) Option {
	return func(e *Editor) {
		if log != nil {
			e.log = log
		}
	}
}

// WithMaxUndoEntries sets the maximum number of undo history entries.
func WithMaxUndoEntries(n int) Option {
	return func(e *Editor) {
		if n > 0 {
			e.maxUndoEntries = n
		}
	}
}

// WithBoundaryTimeout sets how long a marked word boundary stays pending
// before it checkpoints on its own. Zero disables the timer.
func WithBoundaryTimeout(d time.Duration) Option {
	return func(e *Editor) {
		if d >= 0 {
			e.boundaryTimeout = d
		}
	}
}

// WithClock replaces the boundary timer clock. Tests use a virtual clock.
func WithClock(c Clock) Option {
	return func(e *Editor) {
		e.clock = c
	}
}

// WithCaretProvider sets the view callback that supplies the current caret
// position before each change.
func WithCaretProvider(p CaretProvider) Option {
	return func(e *Editor) {
		e.caretProvider = p
	}
}

// WithCaretRestorer sets the view callback that moves the caret after undo
// or redo.
func WithCaretRestorer(r CaretRestorer) Option {
	return func(e *Editor) {
		e.caretRestorer = r
	}
}

// WithIDGenerator replaces the block id generator. The default generates
// random UUID strings.
func WithIDGenerator(gen func() string) Option {
	return func(e *Editor) {
		e.idGen = gen
	}
}

// WithChangeLogCapacity sets how many committed transactions the catch-up
// feed retains for ChangesSince.
func WithChangeLogCapacity(n int) Option {
	return func(e *Editor) {
		if n > 0 {
			e.logCapacity = n
		}
	}
}

// WithSettings applies loaded configuration at construction. It covers the
// same knobs as ApplySettings; invalid settings are ignored in favor of the
// defaults.
func WithSettings(s Settings) Option {
	return func(e *Editor) {
		if err := s.Validate(); err != nil {
			return
		}
		e.maxUndoEntries = s.History.MaxEntries
		if d, err := s.History.BoundaryDuration(); err == nil {
			e.boundaryTimeout = d
		}
	}
}
