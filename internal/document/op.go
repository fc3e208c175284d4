package document

import (
	"bytes"
	"encoding/json"
	"time"
)

// OpKind identifies a primitive document operation.
type OpKind uint8

const (
	// OpInsert places a full record at an index.
	OpInsert OpKind = iota

	// OpDelete removes the record at an index, capturing it for inversion.
	OpDelete

	// OpSetField changes one data key on a block.
	OpSetField

	// OpSetTune changes one tune on a block.
	OpSetTune
)

// String returns a human-readable kind name.
func (k OpKind) String() string {
	switch k {
	case OpInsert:
		return "insert"
	case OpDelete:
		return "delete"
	case OpSetField:
		return "set-field"
	case OpSetTune:
		return "set-tune"
	default:
		return "unknown"
	}
}

// Op is one primitive operation inside a transaction. Every op carries
// enough captured state to be inverted without consulting the document.
type Op struct {
	// Kind selects which fields below are meaningful.
	Kind OpKind

	// BlockID is the id of the affected block.
	BlockID string

	// Index is the sequence position for insert and delete ops.
	Index int

	// Record is the full record snapshot for insert and delete ops.
	Record *Record

	// Key is the data key or tune name for set ops.
	Key string

	// Old is the canonical value before a set op. Nil means the key was
	// absent.
	Old json.RawMessage

	// New is the canonical value after a set op. Nil means the key was
	// removed.
	New json.RawMessage
}

// Invert returns the op that exactly reverses this one.
func (op Op) Invert() Op {
	switch op.Kind {
	case OpInsert:
		return Op{Kind: OpDelete, BlockID: op.BlockID, Index: op.Index, Record: op.Record}
	case OpDelete:
		return Op{Kind: OpInsert, BlockID: op.BlockID, Index: op.Index, Record: op.Record}
	case OpSetField, OpSetTune:
		return Op{Kind: op.Kind, BlockID: op.BlockID, Key: op.Key, Old: op.New, New: op.Old}
	default:
		return op
	}
}

// Clone returns a deep copy of the op.
func (op Op) Clone() Op {
	c := op
	c.Record = op.Record.Clone()
	c.Old = bytes.Clone(op.Old)
	c.New = bytes.Clone(op.New)
	return c
}

// InvertOps returns the inverse of an op sequence: each op inverted, in
// reverse order. Applying a transaction's ops and then InvertOps of the
// same slice restores the document exactly.
func InvertOps(ops []Op) []Op {
	inv := make([]Op, len(ops))
	for i, op := range ops {
		inv[len(ops)-1-i] = op.Invert()
	}
	return inv
}

// Txn is one committed transaction: the origin it ran under, the revision
// it produced, and the ops applied in order. Transactions that apply no
// effective ops never commit and never appear in the log.
type Txn struct {
	// Origin tags who initiated the transaction.
	Origin Origin

	// Revision is the monotonic document revision after this commit.
	Revision uint64

	// Ops lists the applied operations in execution order.
	Ops []Op

	// Time is the commit timestamp.
	Time time.Time
}

// Clone returns a deep copy of the transaction.
func (t Txn) Clone() Txn {
	c := t
	c.Ops = make([]Op, len(t.Ops))
	for i, op := range t.Ops {
		c.Ops[i] = op.Clone()
	}
	return c
}
