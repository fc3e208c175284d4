// Package history manages undo and redo for the block document.
//
// The history attaches to the store's commit feed at construction and
// decides, per commit origin, what to capture:
//
//   - local commits merge into the open operation entry until a checkpoint
//   - move commits become move entries that replay as moves, never as raw
//     delete/insert pairs
//   - undo, redo, remote, and load commits are never captured
//
// # Entries and merging
//
// Consecutive local commits coalesce into one reversible entry so that a
// burst of typing undoes as a unit. StopCapturing forces the next local
// commit to open a fresh entry. Word boundaries integrate with this via
// MarkBoundary, ClearBoundary, and CheckAndHandleBoundary: a marked
// boundary converts into a checkpoint when the next keystroke confirms it
// or when the boundary timer fires, whichever comes first. The timer runs
// on an injectable clock so tests use virtual time.
//
// # Moves
//
// A move entry holds the block id with its source and destination
// positions. TransactMoves opens a window in which every captured move
// appends to one entry, so a multi-block drag undoes atomically. Undoing a
// move replays it as a move in the opposite direction, which keeps
// observers emitting move events rather than remove/add pairs.
//
// # Caret
//
// When the view supplies a caret provider, each entry records the caret
// before its first change and optionally after its last one. Undo restores
// the before position, redo the after position.
package history
