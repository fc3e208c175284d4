// Package blockstorm provides the core document engine for a block-based
// content editor.
//
// The package serves as the main facade, combining an ordered block store,
// change observation, undo/redo history, and deterministic serialization
// into a unified, thread-safe API suitable for building rich-content
// editors with replicated documents.
//
// # Architecture
//
// The facade is built on several internal packages:
//
//   - document: ordered block store with transactions, origins, and an
//     invertible operation journal
//   - observe: classification of committed transactions into add, remove,
//     move, and update events, with subscription fan-out
//   - history: origin-aware undo/redo with typing boundaries, move
//     grouping, and caret restoration
//   - codec: deterministic JSON wire format for block lists
//   - config: TOML/YAML settings with live reload
//
// # Document Model
//
// A document is an ordered sequence of blocks. Identity is the block id,
// never the position: a block keeps its id across moves, and ids are never
// reused within a document. Every mutation runs inside a transaction
// tagged with an origin (local, remote, load, undo, redo) that decides how
// history and observers treat it: only local changes are undoable; remote
// and load changes are observable but never enter the undo stack.
//
// # Thread Safety
//
// All Editor operations are safe for concurrent use, but the document
// model assumes one logical mutator: concurrent writers are serialized,
// not merged. Change handlers run synchronously on the mutating goroutine;
// they must not call editor methods other than InAtomicOperation, and
// should hand longer work to their own goroutines.
//
// # Basic Usage
//
// Create an editor and perform edits:
//
//	e := blockstorm.New()
//
//	blk, _ := blockstorm.NewBlock("paragraph", map[string]any{"text": "Hi"})
//	id, _ := e.AddBlock(blk)
//
//	e.UpdateField(id, "text", "Hello")
//	e.Undo() // text back to "Hi"
//	e.Redo() // text "Hello" again
//
// # Loading and Saving
//
// Documents round-trip through a deterministic JSON block list:
//
//	data, _ := e.ToJSON()
//	// ... persist, transmit ...
//	err := e.FromJSON(data)
//
// FromJSON is all-or-nothing: malformed input leaves the document
// untouched. A successful load clears the undo history.
//
// # Change Observation
//
//	unsubscribe, _ := e.OnChange(func(ev blockstorm.Event) {
//	    fmt.Println(ev.Kind, ev.BlockID, ev.Origin)
//	})
//	defer unsubscribe()
//
// A block move arrives as a single move event with from/to positions, not
// as a remove/add pair. Writing a value structurally equal to the current
// one emits nothing.
//
// # Undo Grouping
//
// Consecutive local changes merge into one undo entry until a checkpoint.
// Views drive word-level grouping during typing:
//
//	e.CheckAndHandleBoundary() // before each keystroke
//	// ... apply the keystroke ...
//	if blockstorm.EndsAtBoundary(typed) {
//	    e.MarkBoundary()
//	}
//
// Multi-block drags coalesce through TransactMoves, and arbitrary batches
// through Transact:
//
//	e.Transact(func(tx *blockstorm.Tx) error {
//	    tx.RemoveBlock(a)
//	    tx.RemoveBlock(b)
//	    return nil
//	})
//
// # Atomic Operations
//
// Multi-step programmatic operations open an atomic window so views can
// suppress write-back of intermediate state:
//
//	err := e.WithAtomicOperation(func() error {
//	    // several edits observed as one logical operation
//	    return nil
//	})
//
// Inside change handlers, e.InAtomicOperation() reports whether such a
// window is open. BeginAtomic stretches a window across a deferred render
// tick; its release function is idempotent.
//
// # Replication
//
// Remote changes enter through ApplyRemote and never touch local undo
// state. The commit feed supports catch-up:
//
//	rev := e.Revision()
//	// ... later ...
//	for _, txn := range e.ChangesSince(rev) {
//	    // forward to peers
//	}
//
// # Configuration
//
// Settings load from TOML or YAML and can live-reload:
//
//	s, _ := blockstorm.LoadSettings("blockstorm.toml")
//	e := blockstorm.New(blockstorm.WithSettings(s))
//
//	w, _ := e.WatchSettings("blockstorm.toml")
//	defer w.Close()
//
// # Error Handling
//
// Tolerated races are silent no-ops: removing an unknown id, moving to an
// out-of-range index, writing an unchanged value. Programmer errors panic:
// releasing an atomic window more often than it was begun. Data errors
// return wrapped sentinel errors: ErrInvalidBlocks, ErrDuplicateID,
// ErrInvalidValue, ErrNothingToUndo, ErrNothingToRedo, ErrInvalidSettings.
package blockstorm
