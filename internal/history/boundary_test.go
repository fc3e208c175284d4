package history

import (
	"sync"
	"testing"
	"time"

	"github.com/dshills/blockstorm/internal/document"
)

// fakeClock is a manual clock: timers fire only when Advance crosses their
// deadline.
type fakeClock struct {
	mu     sync.Mutex
	now    time.Duration
	timers []*fakeTimer
}

type fakeTimer struct {
	clock    *fakeClock
	deadline time.Duration
	fn       func()
	stopped  bool
	fired    bool
}

func newFakeClock() *fakeClock {
	return &fakeClock{}
}

func (c *fakeClock) AfterFunc(d time.Duration, fn func()) Timer {
	c.mu.Lock()
	defer c.mu.Unlock()

	t := &fakeTimer{clock: c, deadline: c.now + d, fn: fn}
	c.timers = append(c.timers, t)
	return t
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now += d
	var due []*fakeTimer
	for _, t := range c.timers {
		if !t.stopped && !t.fired && t.deadline <= c.now {
			t.fired = true
			due = append(due, t)
		}
	}
	c.mu.Unlock()

	for _, t := range due {
		t.fn()
	}
}

func (t *fakeTimer) Stop() bool {
	t.clock.mu.Lock()
	defer t.clock.mu.Unlock()

	if t.fired || t.stopped {
		return false
	}
	t.stopped = true
	return true
}

// typingEnv simulates the view writing characters into a block's text
// field, calling the boundary hooks the way an input pipeline would.
type typingEnv struct {
	st   *document.Store
	h    *History
	text string
}

func (env *typingEnv) typeRune(t *testing.T, r rune) {
	t.Helper()

	env.text += string(r)
	env.h.CheckAndHandleBoundary()
	localSetField(t, env.st, "a", "text", `"`+env.text+`"`)
	if EndsAtBoundary(env.text) {
		env.h.MarkBoundary()
	}
}

func TestTypingSplitsAtWordBoundary(t *testing.T) {
	clock := newFakeClock()
	st, h := newTestPair(t, WithClock(clock))
	localAdd(t, st, "a")
	h.StopCapturing()

	env := &typingEnv{st: st, h: h}
	for _, r := range "ab cd" {
		env.typeRune(t, r)
	}

	// "ab " merges into one entry; the boundary after the space starts a
	// fresh entry for "cd". The initial add is its own entry.
	if got := h.UndoCount(); got != 3 {
		t.Fatalf("UndoCount() = %d, want 3 (add, %q, %q)", got, "ab ", "cd")
	}

	if err := h.Undo(); err != nil {
		t.Fatal(err)
	}
	if got := fieldText(t, st, "a", "text"); got != `"ab "` {
		t.Errorf("text = %s after one undo, want \"ab \"", got)
	}

	if err := h.Undo(); err != nil {
		t.Fatal(err)
	}
	if got := fieldText(t, st, "a", "text"); got != "" {
		t.Errorf("text = %s after two undos, want absent", got)
	}
}

func TestBoundaryTimerFiresOnPause(t *testing.T) {
	clock := newFakeClock()
	st, h := newTestPair(t, WithClock(clock), WithBoundaryTimeout(100*time.Millisecond))
	localAdd(t, st, "a")
	h.StopCapturing()

	localSetField(t, st, "a", "text", `"ab "`)
	h.MarkBoundary()

	// Typing pauses; the timer converts the boundary into a checkpoint.
	clock.Advance(150 * time.Millisecond)
	if h.BoundaryPending() {
		t.Fatal("boundary still pending after timer fired")
	}

	localSetField(t, st, "a", "text", `"ab c"`)

	if got := h.UndoCount(); got != 3 {
		t.Errorf("UndoCount() = %d, want 3 (add, \"ab \", \"c\")", got)
	}
}

func TestClearBoundaryCancelsCheckpoint(t *testing.T) {
	clock := newFakeClock()
	st, h := newTestPair(t, WithClock(clock))
	localAdd(t, st, "a")
	h.StopCapturing()

	localSetField(t, st, "a", "text", `"ab "`)
	h.MarkBoundary()
	// The user deletes back across the space before the timer fires.
	h.ClearBoundary()
	h.CheckAndHandleBoundary()
	localSetField(t, st, "a", "text", `"ab"`)

	// No checkpoint: both writes merge into one entry.
	if got := h.UndoCount(); got != 2 {
		t.Errorf("UndoCount() = %d, want 2 (add plus merged edits)", got)
	}
}

func TestBoundaryTimerStoppedOnClear(t *testing.T) {
	clock := newFakeClock()
	st, h := newTestPair(t, WithClock(clock), WithBoundaryTimeout(100*time.Millisecond))
	localAdd(t, st, "a")
	h.StopCapturing()

	localSetField(t, st, "a", "text", `"ab "`)
	h.MarkBoundary()
	h.ClearBoundary()

	clock.Advance(200 * time.Millisecond)

	localSetField(t, st, "a", "text", `"ab c"`)
	if got := h.UndoCount(); got != 2 {
		t.Errorf("UndoCount() = %d, want 2 (cleared boundary must not checkpoint)", got)
	}
}

func TestRemarkingBoundaryRestartsTimer(t *testing.T) {
	clock := newFakeClock()
	st, h := newTestPair(t, WithClock(clock), WithBoundaryTimeout(100*time.Millisecond))
	localAdd(t, st, "a")
	h.StopCapturing()

	localSetField(t, st, "a", "text", `"ab "`)
	h.MarkBoundary()
	clock.Advance(60 * time.Millisecond)
	h.MarkBoundary()
	clock.Advance(60 * time.Millisecond)

	// The second mark reset the countdown, so only 60ms have elapsed on it.
	if !h.BoundaryPending() {
		t.Fatal("boundary fired although the re-marked timer had not elapsed")
	}

	clock.Advance(60 * time.Millisecond)
	if h.BoundaryPending() {
		t.Error("boundary still pending after the re-marked timer elapsed")
	}
}

func TestZeroTimeoutDisablesTimer(t *testing.T) {
	clock := newFakeClock()
	st, h := newTestPair(t, WithClock(clock), WithBoundaryTimeout(0))
	localAdd(t, st, "a")
	h.StopCapturing()

	localSetField(t, st, "a", "text", `"ab "`)
	h.MarkBoundary()
	clock.Advance(time.Hour)

	if !h.BoundaryPending() {
		t.Error("boundary converted with a disabled timer")
	}

	// The explicit check still works.
	h.CheckAndHandleBoundary()
	if h.BoundaryPending() {
		t.Error("boundary still pending after explicit check")
	}
}

func TestEndsAtBoundary(t *testing.T) {
	tests := []struct {
		text string
		want bool
	}{
		{"", false},
		{"word", false},
		{"word ", true},
		{"word\t", true},
		{"word.", true},
		{"word,", true},
		{"héllo", false},
		{"done!", true},
		{"emoji👍", false},
		// A combining sequence whose base rune is a letter is not a
		// boundary even though it spans multiple runes.
		{"café", false},
	}

	for _, tt := range tests {
		if got := EndsAtBoundary(tt.text); got != tt.want {
			t.Errorf("EndsAtBoundary(%q) = %v, want %v", tt.text, got, tt.want)
		}
	}
}

func TestSetBoundaryTimeoutRuntime(t *testing.T) {
	clock := newFakeClock()
	st, h := newTestPair(t, WithClock(clock), WithBoundaryTimeout(100*time.Millisecond))
	localAdd(t, st, "a")
	h.StopCapturing()

	h.SetBoundaryTimeout(10 * time.Millisecond)

	localSetField(t, st, "a", "text", `"x "`)
	h.MarkBoundary()
	clock.Advance(20 * time.Millisecond)

	if h.BoundaryPending() {
		t.Error("boundary still pending after shortened timeout elapsed")
	}
}
