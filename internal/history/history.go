package history

import (
	"errors"
	"sync"
	"time"

	"github.com/dshills/blockstorm/internal/caret"
	"github.com/dshills/blockstorm/internal/document"
)

// Common errors for history operations.
var (
	ErrNothingToUndo = errors.New("nothing to undo")
	ErrNothingToRedo = errors.New("nothing to redo")
)

// DefaultMaxEntries is the default undo depth.
const DefaultMaxEntries = 1000

// DefaultBoundaryTimeout is how long a marked boundary stays pending
// before it converts into a checkpoint on its own.
const DefaultBoundaryTimeout = 500 * time.Millisecond

// entry wraps a command with caret snapshots and metadata.
type entry struct {
	command     Command
	caretBefore *caret.Snapshot
	caretAfter  *caret.Snapshot
	timestamp   time.Time
}

// Option configures a History.
type Option func(*History)

// WithMaxEntries sets the undo depth. Oldest entries fall off first.
func WithMaxEntries(n int) Option {
	return func(h *History) {
		if n > 0 {
			h.maxEntries = n
		}
	}
}

// WithBoundaryTimeout sets how long a marked boundary stays pending.
// Zero disables the timer; boundaries then convert only via
// CheckAndHandleBoundary.
func WithBoundaryTimeout(d time.Duration) Option {
	return func(h *History) {
		if d >= 0 {
			h.boundaryTimeout = d
		}
	}
}

// WithClock replaces the boundary timer clock.
func WithClock(c Clock) Option {
	return func(h *History) {
		if c != nil {
			h.clock = c
		}
	}
}

// WithCaretProvider sets the view callback that supplies the current
// caret position.
func WithCaretProvider(p caret.Provider) Option {
	return func(h *History) {
		h.caretProvider = p
	}
}

// WithCaretRestorer sets the view callback that moves the caret after
// undo or redo.
func WithCaretRestorer(r caret.Restorer) Option {
	return func(h *History) {
		h.caretRestorer = r
	}
}

// History manages undo/redo state for a document store. It attaches to
// the store's commit feed at construction and decides per origin what to
// capture. All methods are safe for concurrent use; the boundary timer
// fires on its own goroutine.
type History struct {
	mu sync.Mutex
	st *document.Store

	undoStack []*entry
	redoStack []*entry

	// Capture state
	open        *entry // mergeable ops entry, nil after a checkpoint
	moveOpen    *entry // open move entry inside a TransactMoves window
	movesActive bool

	// Caret state
	pendingCaret  *caret.Snapshot
	caretProvider caret.Provider
	caretRestorer caret.Restorer

	// Boundary state
	boundaryPending bool
	boundaryTimer   Timer
	boundaryTimeout time.Duration
	clock           Clock

	maxEntries int
}

// New creates a history attached to st's commit feed.
func New(st *document.Store, opts ...Option) *History {
	h := &History{
		st:              st,
		maxEntries:      DefaultMaxEntries,
		boundaryTimeout: DefaultBoundaryTimeout,
		clock:           wallClock{},
	}

	for _, opt := range opts {
		opt(h)
	}

	st.OnCommit(h.HandleCommit)
	return h
}

// Capture

// HandleCommit routes one committed transaction into the capture state.
// Only local and move origins are captured; undo, redo, remote, and load
// commits pass through untouched.
func (h *History) HandleCommit(txn document.Txn) {
	h.mu.Lock()
	defer h.mu.Unlock()

	switch txn.Origin {
	case document.OriginLocal:
		h.captureOpsLocked(txn)
	case document.OriginMove:
		h.captureMoveLocked(txn)
	case document.OriginUndo, document.OriginRedo,
		document.OriginMoveUndo, document.OriginMoveRedo,
		document.OriginRemote, document.OriginLoad:
		// Never captured.
	default:
		// Unrecognized origins behave like remote.
	}
}

func (h *History) captureOpsLocked(txn document.Txn) {
	h.redoStack = nil
	h.moveOpen = nil

	if h.open == nil {
		e := h.newEntryLocked(&OpsCommand{})
		h.open = e
		h.pushUndoLocked(e)
	}

	cmd := h.open.command.(*OpsCommand)
	cmd.ops = append(cmd.ops, txn.Ops...)
}

func (h *History) captureMoveLocked(txn document.Txn) {
	moves := deriveMoves(txn)
	if len(moves) == 0 {
		return
	}

	h.redoStack = nil
	h.open = nil

	if h.movesActive && h.moveOpen != nil {
		cmd := h.moveOpen.command.(*MoveCommand)
		cmd.moves = append(cmd.moves, moves...)
		return
	}

	e := h.newEntryLocked(&MoveCommand{moves: moves})
	h.pushUndoLocked(e)
	if h.movesActive {
		h.moveOpen = e
	}
}

// StopCapturing forces the next local commit to open a fresh entry.
func (h *History) StopCapturing() {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.open = nil
}

// TransactMoves opens a window in which every captured move appends to
// one entry, so a multi-block drag undoes atomically. Nested windows
// collapse into the outermost one.
func (h *History) TransactMoves(fn func() error) error {
	h.mu.Lock()
	if h.movesActive {
		h.mu.Unlock()
		return fn()
	}
	h.movesActive = true
	h.moveOpen = nil
	h.mu.Unlock()

	defer func() {
		h.mu.Lock()
		h.movesActive = false
		h.moveOpen = nil
		h.mu.Unlock()
	}()

	return fn()
}

// newEntryLocked builds an entry, consuming the most recent caret mark.
func (h *History) newEntryLocked(cmd Command) *entry {
	e := &entry{
		command:   cmd,
		timestamp: time.Now(),
	}
	if h.pendingCaret != nil {
		e.caretBefore = h.pendingCaret
		h.pendingCaret = nil
	}
	return e
}

func (h *History) pushUndoLocked(e *entry) {
	h.undoStack = append(h.undoStack, e)
	h.redoStack = nil

	if len(h.undoStack) > h.maxEntries {
		excess := len(h.undoStack) - h.maxEntries
		h.undoStack = h.undoStack[excess:]
	}
}

// Undo / Redo

// Undo reverts the newest entry and restores its before-change caret.
// The lock is released while the revert transaction runs.
func (h *History) Undo() error {
	h.mu.Lock()
	if len(h.undoStack) == 0 {
		h.mu.Unlock()
		return ErrNothingToUndo
	}

	e := h.undoStack[len(h.undoStack)-1]
	h.undoStack = h.undoStack[:len(h.undoStack)-1]
	h.open = nil
	h.moveOpen = nil
	h.clearBoundaryLocked()
	restorer := h.caretRestorer
	h.mu.Unlock()

	if err := e.command.Revert(h.st); err != nil {
		h.mu.Lock()
		h.undoStack = append(h.undoStack, e)
		h.mu.Unlock()
		return err
	}

	if restorer != nil && e.caretBefore != nil {
		restorer(*e.caretBefore)
	}

	h.mu.Lock()
	h.redoStack = append(h.redoStack, e)
	h.mu.Unlock()
	return nil
}

// Redo re-applies the newest undone entry and restores its after-change
// caret. The lock is released while the apply transaction runs.
func (h *History) Redo() error {
	h.mu.Lock()
	if len(h.redoStack) == 0 {
		h.mu.Unlock()
		return ErrNothingToRedo
	}

	e := h.redoStack[len(h.redoStack)-1]
	h.redoStack = h.redoStack[:len(h.redoStack)-1]
	h.open = nil
	h.moveOpen = nil
	h.clearBoundaryLocked()
	restorer := h.caretRestorer
	h.mu.Unlock()

	if err := e.command.Apply(h.st); err != nil {
		h.mu.Lock()
		h.redoStack = append(h.redoStack, e)
		h.mu.Unlock()
		return err
	}

	if restorer != nil && e.caretAfter != nil {
		restorer(*e.caretAfter)
	}

	h.mu.Lock()
	h.undoStack = append(h.undoStack, e)
	h.mu.Unlock()
	return nil
}

// Caret

// MarkCaretBeforeChange snapshots the current caret so the next entry can
// restore it on undo. The facade calls this before every mutation; the
// newest mark wins until an entry consumes it.
func (h *History) MarkCaretBeforeChange() {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.caretProvider == nil {
		return
	}
	snap, ok := h.caretProvider()
	if !ok {
		return
	}
	h.pendingCaret = &snap
}

// CaptureCaretSnapshot stamps the newest entry's after-change caret from
// the provider.
func (h *History) CaptureCaretSnapshot() {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.caretProvider == nil || len(h.undoStack) == 0 {
		return
	}
	snap, ok := h.caretProvider()
	if !ok {
		return
	}
	h.undoStack[len(h.undoStack)-1].caretAfter = &snap
}

// UpdateLastCaretAfterPosition stamps the newest entry's after-change
// caret with an explicit position.
func (h *History) UpdateLastCaretAfterPosition(snap caret.Snapshot) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if len(h.undoStack) == 0 {
		return
	}
	h.undoStack[len(h.undoStack)-1].caretAfter = &snap
}

// Introspection

// CanUndo returns true if undo is available.
func (h *History) CanUndo() bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.undoStack) > 0
}

// CanRedo returns true if redo is available.
func (h *History) CanRedo() bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.redoStack) > 0
}

// UndoCount returns the number of undo entries.
func (h *History) UndoCount() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.undoStack)
}

// RedoCount returns the number of redo entries.
func (h *History) RedoCount() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.redoStack)
}

// EntryInfo describes one history entry.
type EntryInfo struct {
	// Description is a short human-readable label.
	Description string

	// Timestamp is when the entry was opened.
	Timestamp time.Time
}

// UndoInfo returns descriptions of the undo stack, oldest first.
func (h *History) UndoInfo() []EntryInfo {
	h.mu.Lock()
	defer h.mu.Unlock()

	result := make([]EntryInfo, len(h.undoStack))
	for i, e := range h.undoStack {
		result[i] = EntryInfo{Description: e.command.Description(), Timestamp: e.timestamp}
	}
	return result
}

// RedoInfo returns descriptions of the redo stack, oldest first.
func (h *History) RedoInfo() []EntryInfo {
	h.mu.Lock()
	defer h.mu.Unlock()

	result := make([]EntryInfo, len(h.redoStack))
	for i, e := range h.redoStack {
		result[i] = EntryInfo{Description: e.command.Description(), Timestamp: e.timestamp}
	}
	return result
}

// PeekUndo returns info about the next undo entry without removing it.
func (h *History) PeekUndo() (EntryInfo, bool) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if len(h.undoStack) == 0 {
		return EntryInfo{}, false
	}
	e := h.undoStack[len(h.undoStack)-1]
	return EntryInfo{Description: e.command.Description(), Timestamp: e.timestamp}, true
}

// Maintenance

// Clear wipes both stacks and all capture state. Used when the document
// is replaced wholesale.
func (h *History) Clear() {
	h.mu.Lock()
	defer h.mu.Unlock()

	h.undoStack = nil
	h.redoStack = nil
	h.open = nil
	h.moveOpen = nil
	h.pendingCaret = nil
	h.clearBoundaryLocked()
}

// SetMaxEntries changes the undo depth, trimming oldest entries if the
// stack is larger.
func (h *History) SetMaxEntries(n int) {
	if n <= 0 {
		n = DefaultMaxEntries
	}

	h.mu.Lock()
	defer h.mu.Unlock()

	h.maxEntries = n
	if len(h.undoStack) > n {
		excess := len(h.undoStack) - n
		h.undoStack = h.undoStack[excess:]
	}
}

// MaxEntries returns the undo depth.
func (h *History) MaxEntries() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.maxEntries
}

// SetBoundaryTimeout changes how long a marked boundary stays pending.
// Zero disables the timer.
func (h *History) SetBoundaryTimeout(d time.Duration) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if d < 0 {
		return
	}
	h.boundaryTimeout = d
}
