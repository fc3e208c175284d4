package observe

import (
	"time"

	"github.com/dshills/blockstorm/internal/document"
)

// Kind identifies the semantic class of a change event.
type Kind uint8

const (
	// KindMove reports a block relocation. From and To are positions.
	KindMove Kind = iota

	// KindAdd reports a new block. Index is its position at commit time.
	KindAdd

	// KindRemove reports a deleted block. Index is the position it held.
	KindRemove

	// KindUpdate reports a field or tune change on a surviving block.
	KindUpdate
)

// String returns a human-readable kind name.
func (k Kind) String() string {
	switch k {
	case KindMove:
		return "move"
	case KindAdd:
		return "add"
	case KindRemove:
		return "remove"
	case KindUpdate:
		return "update"
	default:
		return "unknown"
	}
}

// Event is one semantic change, derived from a committed transaction and
// never stored. Which positional fields are meaningful depends on Kind.
type Event struct {
	// Kind is the semantic class of the change.
	Kind Kind

	// BlockID is the affected block.
	BlockID string

	// Origin is the semantic origin of the commit (local, remote, load,
	// undo, or redo).
	Origin document.Origin

	// Index is the block position for add, remove, and update events.
	Index int

	// From is the pre-move position for move events.
	From int

	// To is the post-move position for move events.
	To int

	// Key is the changed data key or tune name for update events.
	Key string

	// Tune reports whether an update touched a tune rather than a data
	// field.
	Tune bool

	// Revision is the document revision the commit produced.
	Revision uint64

	// Time is the commit timestamp.
	Time time.Time
}
