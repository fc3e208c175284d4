package document

// Origin identifies who initiated a transaction. It controls how the
// history manager and change observers treat the resulting commit.
type Origin uint8

const (
	// OriginLocal marks changes made by the local user. Local commits are
	// the only ones captured for undo.
	OriginLocal Origin = iota

	// OriginRemote marks changes applied on behalf of another replica.
	OriginRemote

	// OriginLoad marks wholesale document replacement. Load commits are
	// observable but never undoable.
	OriginLoad

	// OriginUndo marks commits produced by undoing an operation entry.
	OriginUndo

	// OriginRedo marks commits produced by redoing an operation entry.
	OriginRedo

	// OriginMove marks a structural move executed as a delete/insert pair.
	// Move commits are captured as move entries, not operation entries.
	OriginMove

	// OriginMoveUndo marks commits produced by undoing a move entry.
	OriginMoveUndo

	// OriginMoveRedo marks commits produced by redoing a move entry.
	OriginMoveRedo
)

// String returns a human-readable origin name.
func (o Origin) String() string {
	switch o {
	case OriginLocal:
		return "local"
	case OriginRemote:
		return "remote"
	case OriginLoad:
		return "load"
	case OriginUndo:
		return "undo"
	case OriginRedo:
		return "redo"
	case OriginMove:
		return "move"
	case OriginMoveUndo:
		return "move-undo"
	case OriginMoveRedo:
		return "move-redo"
	default:
		return "unknown"
	}
}

// Semantic collapses internal origins to the five origins visible on
// emitted events: moves count as local edits, move undo/redo count as
// undo/redo, and anything unrecognized is treated as remote.
func (o Origin) Semantic() Origin {
	switch o {
	case OriginLocal, OriginMove:
		return OriginLocal
	case OriginRemote:
		return OriginRemote
	case OriginLoad:
		return OriginLoad
	case OriginUndo, OriginMoveUndo:
		return OriginUndo
	case OriginRedo, OriginMoveRedo:
		return OriginRedo
	default:
		return OriginRemote
	}
}

// Undoable reports whether commits with this origin belong in the undo
// history. Only local edits (including moves) qualify; undo/redo replays,
// remote changes, and loads never re-enter the history.
func (o Origin) Undoable() bool {
	semantic := o.Semantic()
	return semantic == OriginLocal
}
