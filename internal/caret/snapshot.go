package caret

// Snapshot is a caret position: the block the caret sits in and a
// view-defined offset within it. The core treats the offset as opaque.
type Snapshot struct {
	// BlockID is the block holding the caret.
	BlockID string

	// Offset is the position within the block, in whatever unit the view
	// uses.
	Offset int
}

// Zero reports whether the snapshot carries no position.
func (s Snapshot) Zero() bool {
	return s.BlockID == "" && s.Offset == 0
}

// Provider supplies the current caret position on demand. The second
// return is false when no caret is available, for example when the
// document has no focus.
type Provider func() (Snapshot, bool)

// Restorer moves the caret to a previously captured position. Restoring
// into a block that no longer exists is the view's problem to resolve;
// typical views fall back to a neighbor.
type Restorer func(Snapshot)
