package blockstorm

import (
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/dshills/blockstorm/internal/caret"
	"github.com/dshills/blockstorm/internal/codec"
	"github.com/dshills/blockstorm/internal/document"
	"github.com/dshills/blockstorm/internal/history"
	"github.com/dshills/blockstorm/internal/observe"
)

// Re-export commonly used types for convenience.
type (
	// Block is one addressable unit of document content.
	Block = document.Record

	// Origin identifies who initiated a change.
	Origin = document.Origin

	// Txn is one committed transaction, as exposed by ChangesSince.
	Txn = document.Txn

	// Op is one primitive operation inside a transaction.
	Op = document.Op

	// Event is one semantic change delivered to subscribers.
	Event = observe.Event

	// EventKind is the semantic class of a change event.
	EventKind = observe.Kind

	// Handler consumes one change event.
	Handler = observe.Handler

	// FilterFunc decides whether an event is delivered to a subscription.
	FilterFunc = observe.FilterFunc

	// Subscription controls one registered handler.
	Subscription = observe.Subscription

	// SubscriptionOption configures a subscription at registration time.
	SubscriptionOption = observe.SubscriptionOption

	// ChangeStats contains observer delivery counters.
	ChangeStats = observe.Stats

	// CaretSnapshot is a caret position captured for undo restoration.
	CaretSnapshot = caret.Snapshot

	// CaretProvider supplies the current caret position on demand.
	CaretProvider = caret.Provider

	// CaretRestorer moves the caret to a previously captured position.
	CaretRestorer = caret.Restorer

	// Clock schedules the boundary timer.
	Clock = history.Clock

	// EntryInfo describes one undo or redo entry.
	EntryInfo = history.EntryInfo
)

// Re-export constants.
const (
	OriginLocal  = document.OriginLocal
	OriginRemote = document.OriginRemote
	OriginLoad   = document.OriginLoad
	OriginUndo   = document.OriginUndo
	OriginRedo   = document.OriginRedo

	KindMove   = observe.KindMove
	KindAdd    = observe.KindAdd
	KindRemove = observe.KindRemove
	KindUpdate = observe.KindUpdate
)

// WithFilter restricts a subscription to events the predicate accepts.
func WithFilter(f FilterFunc) SubscriptionOption {
	return observe.WithFilter(f)
}

// WithKind restricts a subscription to one event kind.
func WithKind(kind EventKind) SubscriptionOption {
	return observe.WithKind(kind)
}

// WithOnce auto-cancels a subscription after its first delivered event.
func WithOnce() SubscriptionOption {
	return observe.WithOnce()
}

// NewBlock builds a block of the given type with marshaled data fields.
func NewBlock(typ string, fields map[string]any) (*Block, error) {
	blk := &Block{Type: typ}
	if len(fields) > 0 {
		blk.Fields = make(map[string]json.RawMessage, len(fields))
		for k, v := range fields {
			raw, err := document.MarshalValue(v)
			if err != nil {
				return nil, fmt.Errorf("field %q: %w", k, err)
			}
			blk.Fields[k] = raw
		}
	}
	return blk, nil
}

// EndsAtBoundary reports whether typed text ends at a word boundary:
// whitespace or punctuation, judged on the final grapheme cluster. Views
// call this after each keystroke to decide whether to MarkBoundary.
func EndsAtBoundary(text string) bool {
	return history.EndsAtBoundary(text)
}

// Editor is the facade over the block document core. It combines the
// ordered document store, change observation, undo/redo history, and
// serialization behind one API.
//
// All operations are safe for concurrent use, but the document model
// assumes one logical mutator: concurrent writers are serialized, not
// merged. Change handlers and caret callbacks run synchronously on the
// mutating goroutine while the editor lock is held; they must not call
// editor methods other than InAtomicOperation, and should hand longer work
// to their own goroutines.
type Editor struct {
	mu sync.RWMutex

	// Core components
	store    *document.Store
	observer *observe.Observer
	history  *history.History
	guard    opGuard

	log *zap.Logger

	// Configuration
	maxUndoEntries  int
	boundaryTimeout time.Duration
	clock           Clock
	caretProvider   CaretProvider
	caretRestorer   CaretRestorer
	idGen           func() string
	logCapacity     int
}

// New creates an empty editor with the given options.
func New(opts ...Option) *Editor {
	e := &Editor{
		log:             zap.NewNop(),
		maxUndoEntries:  DefaultMaxUndoEntries,
		boundaryTimeout: DefaultBoundaryTimeout,
	}

	for _, opt := range opts {
		opt(e)
	}

	var storeOpts []document.Option
	if e.idGen != nil {
		storeOpts = append(storeOpts, document.WithIDGenerator(e.idGen))
	}
	if e.logCapacity > 0 {
		storeOpts = append(storeOpts, document.WithLogCapacity(e.logCapacity))
	}
	e.store = document.NewStore(storeOpts...)

	// History registers its commit hook before the observer so that by the
	// time subscribers see an event, the undo state already reflects it.
	histOpts := []history.Option{
		history.WithMaxEntries(e.maxUndoEntries),
		history.WithBoundaryTimeout(e.boundaryTimeout),
	}
	if e.clock != nil {
		histOpts = append(histOpts, history.WithClock(e.clock))
	}
	if e.caretProvider != nil {
		histOpts = append(histOpts, history.WithCaretProvider(e.caretProvider))
	}
	if e.caretRestorer != nil {
		histOpts = append(histOpts, history.WithCaretRestorer(e.caretRestorer))
	}
	e.history = history.New(e.store, histOpts...)

	e.observer = observe.New(e.store)

	return e
}

// ============================================================================
// Serialization
// ============================================================================

// FromJSON replaces the whole document from a serialized block list. The
// input is decoded and validated in full before anything changes: on error
// the document is untouched. A successful load clears the undo history and
// commits under the load origin, so it is observable but never undoable.
func (e *Editor) FromJSON(data []byte) error {
	recs, err := codec.Decode(data)
	if err != nil {
		return err
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	err = e.store.Transact(document.OriginLoad, func() error {
		return e.store.ReplaceAll(recs)
	})
	if err != nil {
		return err
	}

	e.history.Clear()
	e.log.Info("document loaded",
		zap.Int("blocks", len(recs)),
		zap.Uint64("revision", e.store.Revision()))
	return nil
}

// ToJSON returns the deterministic serialized form of the document. Equal
// documents produce byte-identical output.
func (e *Editor) ToJSON() ([]byte, error) {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return codec.Encode(e.store.Records())
}

// ============================================================================
// Write Operations
// ============================================================================

// AddBlock appends a block to the document and returns the stored id. When
// the block carries no id one is assigned.
func (e *Editor) AddBlock(blk *Block) (string, error) {
	return e.AddBlockAt(blk, -1)
}

// AddBlockAt inserts a block at index. A negative index appends; an index
// past the end is clamped.
func (e *Editor) AddBlockAt(blk *Block, index int) (string, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	e.history.MarkCaretBeforeChange()

	var id string
	err := e.store.Transact(document.OriginLocal, func() error {
		var err error
		id, err = e.store.AddBlock(blk, index)
		return err
	})
	if err != nil {
		return "", err
	}

	e.log.Debug("block added", zap.String("id", id), zap.Int("index", index))
	return id, nil
}

// RemoveBlock deletes a block by id. Unknown ids are a silent no-op.
func (e *Editor) RemoveBlock(id string) {
	e.mu.Lock()
	defer e.mu.Unlock()

	e.history.MarkCaretBeforeChange()

	_ = e.store.Transact(document.OriginLocal, func() error {
		e.store.RemoveBlock(id)
		return nil
	})

	e.log.Debug("block removed", zap.String("id", id))
}

// MoveBlock relocates a block so it ends up at index to, clamped to the
// valid range. Unknown ids and moves to the current position are silent
// no-ops. The move undoes as a single unit.
func (e *Editor) MoveBlock(id string, to int) {
	e.mu.Lock()
	defer e.mu.Unlock()

	e.history.MarkCaretBeforeChange()

	_ = e.store.Transact(document.OriginMove, func() error {
		e.store.MoveBlock(id, to)
		return nil
	})

	e.log.Debug("block moved", zap.String("id", id), zap.Int("to", to))
}

// UpdateField sets one data key on a block. The value is marshaled to
// canonical JSON; a nil value removes the key. Unknown ids, removing an
// absent key, and writing a value structurally equal to the current one
// are silent no-ops that emit no events.
func (e *Editor) UpdateField(id, key string, value any) error {
	return e.updateValue(id, key, value, false)
}

// UpdateTune sets one tune on a block. Semantics match UpdateField.
func (e *Editor) UpdateTune(id, name string, value any) error {
	return e.updateValue(id, name, value, true)
}

func (e *Editor) updateValue(id, key string, value any, tune bool) error {
	var raw json.RawMessage
	if value != nil {
		var err error
		raw, err = document.MarshalValue(value)
		if err != nil {
			return err
		}
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	e.history.MarkCaretBeforeChange()

	return e.store.Transact(document.OriginLocal, func() error {
		if tune {
			return e.store.SetTune(id, key, raw)
		}
		return e.store.SetField(id, key, raw)
	})
}

// ============================================================================
// Transactions
// ============================================================================

// Tx exposes the mutating operations available inside a Transact or
// ApplyRemote body. It is only valid for the duration of the callback.
type Tx struct {
	st *document.Store
}

// AddBlock appends a block and returns the stored id.
func (t *Tx) AddBlock(blk *Block) (string, error) {
	return t.st.AddBlock(blk, -1)
}

// AddBlockAt inserts a block at index, clamped to the valid range.
func (t *Tx) AddBlockAt(blk *Block, index int) (string, error) {
	return t.st.AddBlock(blk, index)
}

// RemoveBlock deletes a block by id. Unknown ids are a silent no-op.
func (t *Tx) RemoveBlock(id string) {
	t.st.RemoveBlock(id)
}

// MoveBlock relocates a block, clamped to the valid range.
func (t *Tx) MoveBlock(id string, to int) {
	t.st.MoveBlock(id, to)
}

// UpdateField sets one data key on a block. Nil removes the key.
func (t *Tx) UpdateField(id, key string, value any) error {
	raw, err := marshalOptional(value)
	if err != nil {
		return err
	}
	return t.st.SetField(id, key, raw)
}

// UpdateTune sets one tune on a block. Nil removes the tune.
func (t *Tx) UpdateTune(id, name string, value any) error {
	raw, err := marshalOptional(value)
	if err != nil {
		return err
	}
	return t.st.SetTune(id, name, raw)
}

// ReplaceAll swaps the whole document for blks, validating first.
func (t *Tx) ReplaceAll(blks []*Block) error {
	return t.st.ReplaceAll(blks)
}

// Apply replays one primitive operation, as received from another
// replica's ChangesSince feed. Inserts of an id already present and
// deletes of an unknown id are silent no-ops.
func (t *Tx) Apply(op Op) error {
	return t.st.Apply(op)
}

func marshalOptional(value any) (json.RawMessage, error) {
	if value == nil {
		return nil, nil
	}
	return document.MarshalValue(value)
}

// Transact runs fn as one local transaction: however many operations it
// performs, observers see one commit and undo reverts it as one entry. An
// error from fn propagates to the caller after the already-applied
// operations commit; there is no rollback.
func (e *Editor) Transact(fn func(*Tx) error) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	e.history.MarkCaretBeforeChange()

	return e.store.Transact(document.OriginLocal, func() error {
		return fn(&Tx{st: e.store})
	})
}

// TransactMoves opens a window in which every MoveBlock call coalesces
// into one undo entry, so a multi-block drag undoes atomically. Unlike
// Transact, fn calls editor methods directly; each move still commits and
// notifies on its own.
func (e *Editor) TransactMoves(fn func() error) error {
	return e.history.TransactMoves(fn)
}

// ApplyRemote runs fn as one transaction under the remote origin: the
// replication entry point. Remote commits are observable but never enter
// the undo history.
func (e *Editor) ApplyRemote(fn func(*Tx) error) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	return e.store.Transact(document.OriginRemote, func() error {
		return fn(&Tx{st: e.store})
	})
}

// ============================================================================
// Undo/Redo
// ============================================================================

// Undo reverts the newest history entry and restores the caret to where it
// was before the change. Returns ErrNothingToUndo on an empty stack.
func (e *Editor) Undo() error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if err := e.history.Undo(); err != nil {
		return err
	}
	e.log.Debug("undo", zap.Uint64("revision", e.store.Revision()))
	return nil
}

// Redo re-applies the newest undone entry and restores the caret to where
// it was after the change. Returns ErrNothingToRedo on an empty stack.
func (e *Editor) Redo() error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if err := e.history.Redo(); err != nil {
		return err
	}
	e.log.Debug("redo", zap.Uint64("revision", e.store.Revision()))
	return nil
}

// CanUndo returns true if undo is available.
func (e *Editor) CanUndo() bool {
	return e.history.CanUndo()
}

// CanRedo returns true if redo is available.
func (e *Editor) CanRedo() bool {
	return e.history.CanRedo()
}

// UndoCount returns the number of available undo entries.
func (e *Editor) UndoCount() int {
	return e.history.UndoCount()
}

// RedoCount returns the number of available redo entries.
func (e *Editor) RedoCount() int {
	return e.history.RedoCount()
}

// UndoInfo returns descriptions of the undo stack, oldest first.
func (e *Editor) UndoInfo() []EntryInfo {
	return e.history.UndoInfo()
}

// RedoInfo returns descriptions of the redo stack, oldest first.
func (e *Editor) RedoInfo() []EntryInfo {
	return e.history.RedoInfo()
}

// PeekUndo returns info about the next undo entry without removing it.
func (e *Editor) PeekUndo() (EntryInfo, bool) {
	return e.history.PeekUndo()
}

// ClearHistory removes all undo/redo history.
func (e *Editor) ClearHistory() {
	e.history.Clear()
}

// ============================================================================
// Capture Control
// ============================================================================

// StopCapturing closes the open undo entry, so the next local change
// starts a fresh one. While an atomic-operation window is open the call is
// ignored: a multi-step operation stays one entry no matter how the view
// reacts in between.
func (e *Editor) StopCapturing() {
	if e.guard.active() {
		return
	}
	e.history.StopCapturing()
}

// MarkBoundary records that the last typed text ended at a word boundary
// and arms the boundary timer.
func (e *Editor) MarkBoundary() {
	e.history.MarkBoundary()
}

// ClearBoundary disarms a pending boundary, for example when the user
// deletes back across it.
func (e *Editor) ClearBoundary() {
	e.history.ClearBoundary()
}

// CheckAndHandleBoundary converts a pending boundary into an undo
// checkpoint. Views call this before applying each keystroke.
func (e *Editor) CheckAndHandleBoundary() {
	e.history.CheckAndHandleBoundary()
}

// BoundaryPending reports whether a boundary is armed.
func (e *Editor) BoundaryPending() bool {
	return e.history.BoundaryPending()
}

// ============================================================================
// Caret
// ============================================================================

// MarkCaretBeforeChange snapshots the current caret so the next history
// entry can restore it on undo. Mutating methods call this implicitly;
// views call it directly when they batch changes themselves.
func (e *Editor) MarkCaretBeforeChange() {
	e.history.MarkCaretBeforeChange()
}

// CaptureCaretSnapshot stamps the newest history entry's after-change
// caret from the provider.
func (e *Editor) CaptureCaretSnapshot() {
	e.history.CaptureCaretSnapshot()
}

// UpdateLastCaretAfterPosition stamps the newest history entry's
// after-change caret with an explicit position.
func (e *Editor) UpdateLastCaretAfterPosition(snap CaretSnapshot) {
	e.history.UpdateLastCaretAfterPosition(snap)
}

// ============================================================================
// Change Observation
// ============================================================================

// OnChange subscribes handler to all future change events and returns the
// function that removes the subscription. Handlers run synchronously on
// the mutating goroutine in subscription order; a panicking handler is
// isolated and counted, never propagated.
func (e *Editor) OnChange(h Handler, opts ...SubscriptionOption) (func(), error) {
	sub, err := e.observer.Subscribe(h, opts...)
	if err != nil {
		return nil, err
	}
	return func() { e.observer.Unsubscribe(sub.ID()) }, nil
}

// Subscribe registers a handler and returns its subscription handle, for
// callers that want pause/resume control rather than plain removal.
func (e *Editor) Subscribe(h Handler, opts ...SubscriptionOption) (Subscription, error) {
	return e.observer.Subscribe(h, opts...)
}

// ChangeObserverStats returns delivery counters for the change pipeline.
func (e *Editor) ChangeObserverStats() ChangeStats {
	return e.observer.Stats()
}

// ============================================================================
// Read Operations
// ============================================================================

// Len returns the number of blocks in the document.
func (e *Editor) Len() int {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.store.Len()
}

// Block returns a copy of the block with the given id.
func (e *Editor) Block(id string) (*Block, bool) {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.store.Get(id)
}

// BlockAt returns a copy of the block at a position.
func (e *Editor) BlockAt(index int) (*Block, bool) {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.store.At(index)
}

// IndexOf returns the current position of a block.
func (e *Editor) IndexOf(id string) (int, bool) {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.store.IndexOf(id)
}

// Blocks returns a copy of the full ordered block sequence.
func (e *Editor) Blocks() []*Block {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.store.Records()
}

// BlockIDs returns the block ids in document order.
func (e *Editor) BlockIDs() []string {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.store.IDs()
}

// ============================================================================
// Replication Feed
// ============================================================================

// Revision returns the revision of the newest commit, 0 for a document
// that has never committed.
func (e *Editor) Revision() uint64 {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.store.Revision()
}

// ChangesSince returns all logged transactions with a revision greater
// than rev, in commit order. A consumer whose revision predates
// OldestLoggedRevision must resynchronize from ToJSON instead.
func (e *Editor) ChangesSince(rev uint64) []Txn {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.store.ChangesSince(rev)
}

// OldestLoggedRevision returns the oldest revision still in the catch-up
// feed, 0 when the feed is empty.
func (e *Editor) OldestLoggedRevision() uint64 {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.store.OldestLogged()
}
