package document

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Errors returned by store operations.
var (
	ErrDuplicateID   = errors.New("duplicate block id")
	ErrInvalidRecord = errors.New("invalid record")
)

// CommitHook observes committed transactions. Hooks run synchronously on
// the mutating goroutine, in registration order, after the outermost
// transaction body returns. Hooks must treat the transaction and its
// records as read-only.
type CommitHook func(Txn)

// Option configures a Store.
type Option func(*Store)

// WithIDGenerator replaces the block id generator. The default generates
// random UUID strings.
func WithIDGenerator(gen func() string) Option {
	return func(s *Store) {
		s.newID = gen
	}
}

// WithLogCapacity sets how many committed transactions the catch-up log
// retains.
func WithLogCapacity(n int) Option {
	return func(s *Store) {
		s.log = newCommitLog(n)
	}
}

// Store owns the ordered block sequence and its id index. All mutation
// happens inside Transact; mutating outside a transaction, or using a
// zero-value Store, is a programming error and panics.
//
// Store is not synchronized. The owning coordinator serializes access.
type Store struct {
	recs  []*Record
	index map[string]int

	depth     int
	txnOrigin Origin
	journal   []Op

	revision uint64
	log      *commitLog
	hooks    []CommitHook

	newID func() string
}

// NewStore creates an empty document store.
func NewStore(opts ...Option) *Store {
	s := &Store{
		index: make(map[string]int),
		log:   newCommitLog(DefaultLogCapacity),
		newID: uuid.NewString,
	}

	for _, opt := range opts {
		opt(s)
	}

	return s
}

func (s *Store) mustStore() {
	if s.index == nil {
		panic("document: Store must be created with NewStore")
	}
}

func (s *Store) mustTxn() {
	s.mustStore()
	if s.depth == 0 {
		panic("document: mutation outside Transact")
	}
}

// Transactions

// Transact runs fn inside a transaction tagged with origin. Nested calls
// compose into the outermost transaction: inner origins are ignored and
// exactly one commit fires when the outermost call returns. A transaction
// that applied no effective ops does not commit.
//
// An error from fn propagates to the caller after the already-applied ops
// commit; there is no rollback. A panic discards the open transaction
// without committing and re-panics.
func (s *Store) Transact(origin Origin, fn func() error) error {
	s.mustStore()

	if s.depth == 0 {
		s.txnOrigin = origin
		s.journal = nil
	}
	s.depth++

	defer func() {
		if r := recover(); r != nil {
			s.depth = 0
			s.journal = nil
			panic(r)
		}
	}()

	err := fn()

	s.depth--
	if s.depth == 0 {
		s.commit()
	}
	return err
}

// InTransaction reports whether a transaction is open.
func (s *Store) InTransaction() bool {
	s.mustStore()
	return s.depth > 0
}

// OnCommit registers a commit hook. Hooks fire in registration order.
func (s *Store) OnCommit(hook CommitHook) {
	s.mustStore()
	s.hooks = append(s.hooks, hook)
}

func (s *Store) commit() {
	if len(s.journal) == 0 {
		return
	}

	// Detach the journal before notifying so hooks may open fresh
	// transactions without clobbering it.
	ops := s.journal
	s.journal = nil

	s.revision++
	txn := Txn{
		Origin:   s.txnOrigin,
		Revision: s.revision,
		Ops:      ops,
		Time:     time.Now(),
	}

	s.log.record(txn.Clone())

	for _, hook := range s.hooks {
		hook(txn)
	}
}

// Write Operations

// AddBlock inserts a record at index. A negative index appends; an index
// past the end is clamped. When the record carries no id one is assigned.
// The record is copied and its values canonicalized; the stored block's id
// is returned.
func (s *Store) AddBlock(rec *Record, index int) (string, error) {
	s.mustTxn()

	if rec == nil {
		return "", fmt.Errorf("add block: %w: nil record", ErrInvalidRecord)
	}
	if rec.Type == "" {
		return "", fmt.Errorf("add block: %w: empty type", ErrInvalidRecord)
	}

	stored := rec.Clone()
	if stored.ID == "" {
		stored.ID = s.newID()
	}
	if _, exists := s.index[stored.ID]; exists {
		return "", fmt.Errorf("add block %s: %w", stored.ID, ErrDuplicateID)
	}
	if err := canonicalizeRecord(stored); err != nil {
		return "", fmt.Errorf("add block %s: %w", stored.ID, err)
	}

	pos := clampInsert(index, len(s.recs))
	s.insertAt(pos, stored)
	s.journal = append(s.journal, Op{Kind: OpInsert, BlockID: stored.ID, Index: pos, Record: stored.Clone()})
	return stored.ID, nil
}

// RemoveBlock deletes a block by id. Unknown ids are a silent no-op.
func (s *Store) RemoveBlock(id string) {
	s.mustTxn()

	pos, ok := s.index[id]
	if !ok {
		return
	}

	rec := s.removeAt(pos)
	s.journal = append(s.journal, Op{Kind: OpDelete, BlockID: id, Index: pos, Record: rec.Clone()})
}

// MoveBlock relocates a block so that it ends up at index to, clamped to
// the valid range. Unknown ids and moves to the current position are
// silent no-ops. The move is journaled as a delete/insert pair of the same
// record, which observers recognize as a single move.
func (s *Store) MoveBlock(id string, to int) {
	s.mustTxn()

	from, ok := s.index[id]
	if !ok {
		return
	}

	dest := clampPosition(to, len(s.recs))
	if dest == from {
		return
	}

	rec := s.removeAt(from)
	s.journal = append(s.journal, Op{Kind: OpDelete, BlockID: id, Index: from, Record: rec.Clone()})
	s.insertAt(dest, rec)
	s.journal = append(s.journal, Op{Kind: OpInsert, BlockID: id, Index: dest, Record: rec.Clone()})
}

// SetField sets one data key on a block. A nil value removes the key.
// Unknown ids, removing an absent key, and writing a value equal to the
// current one are silent no-ops.
func (s *Store) SetField(id, key string, value json.RawMessage) error {
	return s.setValue(OpSetField, id, key, value)
}

// SetTune sets one tune on a block. Semantics match SetField.
func (s *Store) SetTune(id, name string, value json.RawMessage) error {
	return s.setValue(OpSetTune, id, name, value)
}

func (s *Store) setValue(kind OpKind, id, key string, value json.RawMessage) error {
	s.mustTxn()

	pos, ok := s.index[id]
	if !ok {
		return nil
	}
	rec := s.recs[pos]

	var canon json.RawMessage
	if value != nil {
		var err error
		canon, err = Canonicalize(value)
		if err != nil {
			return fmt.Errorf("%s %q on block %s: %w", kind, key, id, err)
		}
	}

	var old json.RawMessage
	var had bool
	switch kind {
	case OpSetField:
		old, had = rec.Fields[key]
	case OpSetTune:
		old, had = rec.Tunes[key]
	}

	if !had && canon == nil {
		return nil
	}
	if had && canon != nil && bytes.Equal(old, canon) {
		return nil
	}

	switch kind {
	case OpSetField:
		if canon == nil {
			delete(rec.Fields, key)
		} else {
			if rec.Fields == nil {
				rec.Fields = make(map[string]json.RawMessage)
			}
			rec.Fields[key] = canon
		}
	case OpSetTune:
		if canon == nil {
			delete(rec.Tunes, key)
		} else {
			if rec.Tunes == nil {
				rec.Tunes = make(map[string]json.RawMessage)
			}
			rec.Tunes[key] = canon
		}
	}

	s.journal = append(s.journal, Op{
		Kind:    kind,
		BlockID: id,
		Key:     key,
		Old:     bytes.Clone(old),
		New:     bytes.Clone(canon),
	})
	return nil
}

// ReplaceAll swaps the whole document for recs. Validation runs before
// anything changes: on error the document is untouched. Replacement is
// journaled as deletions of every current block followed by insertions of
// every new one.
func (s *Store) ReplaceAll(recs []*Record) error {
	s.mustTxn()

	seen := make(map[string]struct{}, len(recs))
	cloned := make([]*Record, len(recs))
	for i, rec := range recs {
		if rec == nil {
			return fmt.Errorf("replace block %d: %w: nil record", i, ErrInvalidRecord)
		}
		if rec.Type == "" {
			return fmt.Errorf("replace block %d: %w: empty type", i, ErrInvalidRecord)
		}

		c := rec.Clone()
		if c.ID == "" {
			c.ID = s.newID()
		}
		if _, dup := seen[c.ID]; dup {
			return fmt.Errorf("replace block %s: %w", c.ID, ErrDuplicateID)
		}
		seen[c.ID] = struct{}{}

		if err := canonicalizeRecord(c); err != nil {
			return fmt.Errorf("replace block %s: %w", c.ID, err)
		}
		cloned[i] = c
	}

	// Journal removals last-to-first so inversion restores original order.
	for i := len(s.recs) - 1; i >= 0; i-- {
		rec := s.recs[i]
		s.journal = append(s.journal, Op{Kind: OpDelete, BlockID: rec.ID, Index: i, Record: rec.Clone()})
	}

	s.recs = make([]*Record, 0, len(cloned))
	s.index = make(map[string]int, len(cloned))
	for i, c := range cloned {
		s.recs = append(s.recs, c)
		s.index[c.ID] = i
		s.journal = append(s.journal, Op{Kind: OpInsert, BlockID: c.ID, Index: i, Record: c.Clone()})
	}
	return nil
}

// Apply replays a primitive op, journaling it like any other mutation.
// Used by undo and redo to re-run captured operations. Inserts of an id
// already present and deletes of an unknown id are silent no-ops.
func (s *Store) Apply(op Op) error {
	s.mustTxn()

	switch op.Kind {
	case OpInsert:
		if _, exists := s.index[op.BlockID]; exists {
			return nil
		}
		if op.Record == nil {
			return fmt.Errorf("apply insert %s: %w: nil record", op.BlockID, ErrInvalidRecord)
		}
		rec := op.Record.Clone()
		pos := clampInsert(op.Index, len(s.recs))
		s.insertAt(pos, rec)
		s.journal = append(s.journal, Op{Kind: OpInsert, BlockID: rec.ID, Index: pos, Record: rec.Clone()})
		return nil

	case OpDelete:
		s.RemoveBlock(op.BlockID)
		return nil

	case OpSetField:
		return s.SetField(op.BlockID, op.Key, op.New)

	case OpSetTune:
		return s.SetTune(op.BlockID, op.Key, op.New)

	default:
		return fmt.Errorf("apply: unknown op kind %d", op.Kind)
	}
}

// Read Operations

// Len returns the number of blocks.
func (s *Store) Len() int {
	s.mustStore()
	return len(s.recs)
}

// Get returns a copy of the block with the given id.
func (s *Store) Get(id string) (*Record, bool) {
	s.mustStore()
	pos, ok := s.index[id]
	if !ok {
		return nil, false
	}
	return s.recs[pos].Clone(), true
}

// At returns a copy of the block at a position.
func (s *Store) At(index int) (*Record, bool) {
	s.mustStore()
	if index < 0 || index >= len(s.recs) {
		return nil, false
	}
	return s.recs[index].Clone(), true
}

// IndexOf returns the current position of a block.
func (s *Store) IndexOf(id string) (int, bool) {
	s.mustStore()
	pos, ok := s.index[id]
	return pos, ok
}

// Records returns a copy of the full ordered sequence.
func (s *Store) Records() []*Record {
	s.mustStore()
	out := make([]*Record, len(s.recs))
	for i, rec := range s.recs {
		out[i] = rec.Clone()
	}
	return out
}

// IDs returns the block ids in document order.
func (s *Store) IDs() []string {
	s.mustStore()
	out := make([]string, len(s.recs))
	for i, rec := range s.recs {
		out[i] = rec.ID
	}
	return out
}

// Revision returns the revision of the newest commit, 0 for a document
// that has never committed.
func (s *Store) Revision() uint64 {
	s.mustStore()
	return s.revision
}

// ChangesSince returns clones of all logged transactions with a revision
// greater than rev, in commit order. A consumer whose revision predates
// the log window must resynchronize from a full snapshot instead.
func (s *Store) ChangesSince(rev uint64) []Txn {
	s.mustStore()
	return s.log.since(rev)
}

// OldestLogged returns the oldest revision still in the catch-up log,
// 0 when the log is empty.
func (s *Store) OldestLogged() uint64 {
	s.mustStore()
	return s.log.oldest()
}

// LogLen returns the number of logged transactions.
func (s *Store) LogLen() int {
	s.mustStore()
	return s.log.len()
}

// Internal helpers

func (s *Store) insertAt(pos int, rec *Record) {
	s.recs = append(s.recs, nil)
	copy(s.recs[pos+1:], s.recs[pos:])
	s.recs[pos] = rec
	for i := pos; i < len(s.recs); i++ {
		s.index[s.recs[i].ID] = i
	}
}

func (s *Store) removeAt(pos int) *Record {
	rec := s.recs[pos]
	s.recs = append(s.recs[:pos], s.recs[pos+1:]...)
	delete(s.index, rec.ID)
	for i := pos; i < len(s.recs); i++ {
		s.index[s.recs[i].ID] = i
	}
	return rec
}

// clampInsert maps an insertion index into [0, length]. Negative means
// append.
func clampInsert(index, length int) int {
	if index < 0 || index > length {
		return length
	}
	return index
}

// clampPosition maps a target position into [0, length-1].
func clampPosition(index, length int) int {
	if index < 0 {
		return 0
	}
	if index >= length {
		return length - 1
	}
	return index
}

func canonicalizeRecord(rec *Record) error {
	for k, v := range rec.Fields {
		cv, err := Canonicalize(v)
		if err != nil {
			return fmt.Errorf("field %q: %w", k, err)
		}
		rec.Fields[k] = cv
	}
	for k, v := range rec.Tunes {
		cv, err := Canonicalize(v)
		if err != nil {
			return fmt.Errorf("tune %q: %w", k, err)
		}
		rec.Tunes[k] = cv
	}
	return nil
}
