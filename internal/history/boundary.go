package history

import (
	"time"
	"unicode"
	"unicode/utf8"

	"github.com/rivo/uniseg"
)

// Clock schedules deferred callbacks. The default implementation wraps
// time.AfterFunc; tests substitute a virtual clock.
type Clock interface {
	AfterFunc(d time.Duration, fn func()) Timer
}

// Timer is a stoppable scheduled callback.
type Timer interface {
	// Stop cancels the callback. It reports whether the cancellation
	// happened before the callback ran.
	Stop() bool
}

type wallClock struct{}

func (wallClock) AfterFunc(d time.Duration, fn func()) Timer {
	return wallTimer{time.AfterFunc(d, fn)}
}

type wallTimer struct {
	t *time.Timer
}

func (w wallTimer) Stop() bool {
	return w.t.Stop()
}

// MarkBoundary records that the last typed text ended at a word boundary
// and arms the boundary timer. If the boundary is still pending when the
// timer fires, it converts into a checkpoint as if CheckAndHandleBoundary
// had been called.
func (h *History) MarkBoundary() {
	h.mu.Lock()
	defer h.mu.Unlock()

	h.boundaryPending = true
	if h.boundaryTimer != nil {
		h.boundaryTimer.Stop()
		h.boundaryTimer = nil
	}
	if h.boundaryTimeout > 0 {
		h.boundaryTimer = h.clock.AfterFunc(h.boundaryTimeout, h.CheckAndHandleBoundary)
	}
}

// ClearBoundary disarms a pending boundary, for example when the user
// deletes back across it.
func (h *History) ClearBoundary() {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.clearBoundaryLocked()
}

// CheckAndHandleBoundary converts a pending boundary into a capture
// checkpoint. The view calls this before applying the next keystroke;
// the boundary timer calls it when typing pauses.
func (h *History) CheckAndHandleBoundary() {
	h.mu.Lock()
	defer h.mu.Unlock()

	if !h.boundaryPending {
		return
	}
	h.clearBoundaryLocked()
	h.open = nil
}

// BoundaryPending reports whether a boundary is armed.
func (h *History) BoundaryPending() bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.boundaryPending
}

func (h *History) clearBoundaryLocked() {
	h.boundaryPending = false
	if h.boundaryTimer != nil {
		h.boundaryTimer.Stop()
		h.boundaryTimer = nil
	}
}

// EndsAtBoundary reports whether text ends in a grapheme cluster that
// starts a word boundary: whitespace or punctuation. Classification looks
// at the first rune of the final cluster, so multi-rune clusters such as
// emoji or combining sequences never trigger a boundary.
func EndsAtBoundary(text string) bool {
	if text == "" {
		return false
	}

	var last string
	g := uniseg.NewGraphemes(text)
	for g.Next() {
		last = g.Str()
	}
	if last == "" {
		return false
	}

	r, _ := utf8.DecodeRuneInString(last)
	return unicode.IsSpace(r) || unicode.IsPunct(r)
}
