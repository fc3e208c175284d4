package blockstorm

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"testing"
)

func textBlock(t *testing.T, id, text string) *Block {
	t.Helper()
	blk, err := NewBlock("paragraph", map[string]any{"text": text})
	if err != nil {
		t.Fatalf("NewBlock failed: %v", err)
	}
	blk.ID = id
	return blk
}

func fieldText(t *testing.T, e *Editor, id string) string {
	t.Helper()
	blk, ok := e.Block(id)
	if !ok {
		t.Fatalf("block %s not found", id)
	}
	raw, ok := blk.Field("text")
	if !ok {
		t.Fatalf("block %s has no text field", id)
	}
	var s string
	if err := json.Unmarshal(raw, &s); err != nil {
		t.Fatalf("text of block %s: %v", id, err)
	}
	return s
}

// ============================================================================
// Basic Operations
// ============================================================================

func TestNew(t *testing.T) {
	e := New()
	if e.Len() != 0 {
		t.Errorf("expected empty editor, got len %d", e.Len())
	}
	if e.Revision() != 0 {
		t.Errorf("expected revision 0, got %d", e.Revision())
	}
	if e.CanUndo() || e.CanRedo() {
		t.Error("fresh editor should have no history")
	}
}

func TestAddBlock(t *testing.T) {
	e := New()

	id, err := e.AddBlock(textBlock(t, "", "hello"))
	if err != nil {
		t.Fatalf("AddBlock failed: %v", err)
	}
	if id == "" {
		t.Fatal("expected an assigned id")
	}

	if e.Len() != 1 {
		t.Errorf("len = %d, want 1", e.Len())
	}
	blk, ok := e.Block(id)
	if !ok {
		t.Fatal("block not found after add")
	}
	if blk.Type != "paragraph" {
		t.Errorf("type = %q, want paragraph", blk.Type)
	}
	if got := fieldText(t, e, id); got != "hello" {
		t.Errorf("text = %q, want hello", got)
	}
}

func TestAddBlockAt_Clamped(t *testing.T) {
	e := New()
	if _, err := e.AddBlock(textBlock(t, "a", "")); err != nil {
		t.Fatal(err)
	}

	// Far past the end clamps to append.
	if _, err := e.AddBlockAt(textBlock(t, "b", ""), 100); err != nil {
		t.Fatal(err)
	}
	// Negative appends.
	if _, err := e.AddBlockAt(textBlock(t, "c", ""), -1); err != nil {
		t.Fatal(err)
	}
	// Zero prepends.
	if _, err := e.AddBlockAt(textBlock(t, "d", ""), 0); err != nil {
		t.Fatal(err)
	}

	want := []string{"d", "a", "b", "c"}
	got := e.BlockIDs()
	if len(got) != len(want) {
		t.Fatalf("ids = %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("ids = %v, want %v", got, want)
		}
	}
}

func TestAddBlock_DuplicateID(t *testing.T) {
	e := New()
	if _, err := e.AddBlock(textBlock(t, "a", "")); err != nil {
		t.Fatal(err)
	}

	_, err := e.AddBlock(textBlock(t, "a", ""))
	if !errors.Is(err, ErrDuplicateID) {
		t.Errorf("expected ErrDuplicateID, got %v", err)
	}
}

func TestRemoveBlock_UnknownIsNoop(t *testing.T) {
	e := New()
	if _, err := e.AddBlock(textBlock(t, "a", "")); err != nil {
		t.Fatal(err)
	}
	rev := e.Revision()

	e.RemoveBlock("ghost")

	if e.Len() != 1 {
		t.Errorf("len = %d, want 1", e.Len())
	}
	if e.Revision() != rev {
		t.Error("no-op remove should not commit")
	}
}

func TestUpdateField_RemoveByNil(t *testing.T) {
	e := New()
	id, err := e.AddBlock(textBlock(t, "a", "hello"))
	if err != nil {
		t.Fatal(err)
	}

	if err := e.UpdateField(id, "text", nil); err != nil {
		t.Fatalf("UpdateField failed: %v", err)
	}

	blk, _ := e.Block(id)
	if _, ok := blk.Field("text"); ok {
		t.Error("nil value should remove the key")
	}
}

func TestUpdateTune(t *testing.T) {
	e := New()
	id, err := e.AddBlock(textBlock(t, "a", ""))
	if err != nil {
		t.Fatal(err)
	}

	if err := e.UpdateTune(id, "alignment", "center"); err != nil {
		t.Fatalf("UpdateTune failed: %v", err)
	}

	blk, _ := e.Block(id)
	raw, ok := blk.Tune("alignment")
	if !ok {
		t.Fatal("tune not set")
	}
	if string(raw) != `"center"` {
		t.Errorf("tune = %s, want %q", raw, `"center"`)
	}
}

func TestNewBlock_InvalidValue(t *testing.T) {
	_, err := NewBlock("paragraph", map[string]any{"bad": make(chan int)})
	if err == nil {
		t.Error("expected error for unmarshalable value")
	}
}

// ============================================================================
// Serialization
// ============================================================================

func TestAddAtIndexThenUndo(t *testing.T) {
	e := New()
	if err := e.FromJSON([]byte(`[{"id":"a","type":"paragraph","data":{"text":"Hi"}}]`)); err != nil {
		t.Fatalf("FromJSON failed: %v", err)
	}
	before, err := e.ToJSON()
	if err != nil {
		t.Fatal(err)
	}

	id, err := e.AddBlockAt(textBlock(t, "", ""), 1)
	if err != nil {
		t.Fatalf("AddBlockAt failed: %v", err)
	}

	if e.Len() != 2 {
		t.Fatalf("len = %d, want 2", e.Len())
	}
	if idx, _ := e.IndexOf("a"); idx != 0 {
		t.Errorf("block a at %d, want 0", idx)
	}
	if idx, _ := e.IndexOf(id); idx != 1 {
		t.Errorf("new block at %d, want 1", idx)
	}
	if got := fieldText(t, e, "a"); got != "Hi" {
		t.Errorf("block a text = %q, want Hi", got)
	}

	if err := e.Undo(); err != nil {
		t.Fatalf("Undo failed: %v", err)
	}
	after, err := e.ToJSON()
	if err != nil {
		t.Fatal(err)
	}
	if !bytes.Equal(before, after) {
		t.Errorf("undo did not restore the document:\n before %s\n after  %s", before, after)
	}
}

func TestRoundTrip(t *testing.T) {
	e := New()
	err := e.Transact(func(tx *Tx) error {
		parent := &Block{ID: "p1", Type: "columns", Content: []string{"c1", "c2"}}
		if _, err := tx.AddBlock(parent); err != nil {
			return err
		}
		for _, id := range []string{"c1", "c2"} {
			child := textBlock(t, id, "cell "+id)
			child.Parent = "p1"
			if _, err := tx.AddBlock(child); err != nil {
				return err
			}
		}
		if err := tx.UpdateTune("c1", "width", 0.5); err != nil {
			return err
		}
		return tx.UpdateField("c2", "meta", map[string]any{"z": 1, "a": true})
	})
	if err != nil {
		t.Fatalf("Transact failed: %v", err)
	}

	first, err := e.ToJSON()
	if err != nil {
		t.Fatal(err)
	}

	e2 := New()
	if err := e2.FromJSON(first); err != nil {
		t.Fatalf("FromJSON failed: %v", err)
	}
	second, err := e2.ToJSON()
	if err != nil {
		t.Fatal(err)
	}

	if !bytes.Equal(first, second) {
		t.Errorf("round trip not byte-identical:\n first  %s\n second %s", first, second)
	}

	blk, ok := e2.Block("c1")
	if !ok {
		t.Fatal("block c1 lost in round trip")
	}
	if blk.Parent != "p1" {
		t.Errorf("parent = %q, want p1", blk.Parent)
	}
	p, _ := e2.Block("p1")
	if len(p.Content) != 2 || p.Content[0] != "c1" || p.Content[1] != "c2" {
		t.Errorf("content = %v, want [c1 c2]", p.Content)
	}
}

func TestFromJSON_MalformedLeavesDocumentUntouched(t *testing.T) {
	e := New()
	if _, err := e.AddBlock(textBlock(t, "a", "keep")); err != nil {
		t.Fatal(err)
	}
	before, _ := e.ToJSON()

	for _, input := range []string{
		``,
		`{`,
		`{"not":"an array"}`,
		`[{"data":{}}]`,
		`[{"type":"p"},{"type":"p","id":"x"},{"type":"p","id":"x"}]`,
	} {
		err := e.FromJSON([]byte(input))
		if !errors.Is(err, ErrInvalidBlocks) {
			t.Errorf("FromJSON(%q): expected ErrInvalidBlocks, got %v", input, err)
		}
	}

	after, _ := e.ToJSON()
	if !bytes.Equal(before, after) {
		t.Error("failed load must leave the document untouched")
	}
	if !e.CanUndo() {
		t.Error("failed load must leave the history intact")
	}
}

func TestFromJSON_ClearsHistoryAndIsNotUndoable(t *testing.T) {
	e := New()
	if _, err := e.AddBlock(textBlock(t, "a", "")); err != nil {
		t.Fatal(err)
	}
	if !e.CanUndo() {
		t.Fatal("expected undo available before load")
	}

	var events []Event
	if _, err := e.OnChange(func(ev Event) { events = append(events, ev) }); err != nil {
		t.Fatal(err)
	}

	if err := e.FromJSON([]byte(`[{"id":"b","type":"paragraph","data":{}}]`)); err != nil {
		t.Fatalf("FromJSON failed: %v", err)
	}

	if e.CanUndo() {
		t.Error("load must clear the undo history")
	}
	if err := e.Undo(); !errors.Is(err, ErrNothingToUndo) {
		t.Errorf("expected ErrNothingToUndo, got %v", err)
	}

	// The load is observable with the load origin.
	if len(events) == 0 {
		t.Fatal("load emitted no events")
	}
	for _, ev := range events {
		if ev.Origin != OriginLoad {
			t.Errorf("event origin = %v, want load", ev.Origin)
		}
	}
}

// ============================================================================
// Change Observation
// ============================================================================

func TestMoveBlock_SingleMoveEvent(t *testing.T) {
	e := New()
	for _, id := range []string{"a", "b", "c"} {
		if _, err := e.AddBlock(textBlock(t, id, "")); err != nil {
			t.Fatal(err)
		}
	}

	var events []Event
	if _, err := e.OnChange(func(ev Event) { events = append(events, ev) }); err != nil {
		t.Fatal(err)
	}

	e.MoveBlock("c", 0)

	if len(events) != 1 {
		t.Fatalf("got %d events, want 1: %+v", len(events), events)
	}
	ev := events[0]
	if ev.Kind != KindMove {
		t.Errorf("kind = %v, want move", ev.Kind)
	}
	if ev.BlockID != "c" || ev.From != 2 || ev.To != 0 {
		t.Errorf("move = %s %d->%d, want c 2->0", ev.BlockID, ev.From, ev.To)
	}
	if ev.Origin != OriginLocal {
		t.Errorf("origin = %v, want local", ev.Origin)
	}
}

func TestMoveBlock_UndoAsSingleUnit(t *testing.T) {
	e := New()
	for _, id := range []string{"a", "b", "c"} {
		if _, err := e.AddBlock(textBlock(t, id, "")); err != nil {
			t.Fatal(err)
		}
	}

	e.MoveBlock("a", 2)

	var events []Event
	if _, err := e.OnChange(func(ev Event) { events = append(events, ev) }); err != nil {
		t.Fatal(err)
	}

	if err := e.Undo(); err != nil {
		t.Fatalf("Undo failed: %v", err)
	}

	ids := e.BlockIDs()
	if ids[0] != "a" || ids[1] != "b" || ids[2] != "c" {
		t.Errorf("order after undo = %v, want [a b c]", ids)
	}
	if len(events) != 1 || events[0].Kind != KindMove {
		t.Fatalf("undo of a move should emit one move event, got %+v", events)
	}
	if events[0].Origin != OriginUndo {
		t.Errorf("origin = %v, want undo", events[0].Origin)
	}
}

func TestUpdateField_EqualValueEmitsNothing(t *testing.T) {
	e := New()
	id, err := e.AddBlock(textBlock(t, "a", "Hi"))
	if err != nil {
		t.Fatal(err)
	}
	e.StopCapturing()

	var events []Event
	if _, err := e.OnChange(func(ev Event) { events = append(events, ev) }); err != nil {
		t.Fatal(err)
	}
	entries := e.UndoCount()
	rev := e.Revision()

	// Structurally equal, differently spelled.
	if err := e.UpdateField(id, "text", "Hi"); err != nil {
		t.Fatal(err)
	}

	if len(events) != 0 {
		t.Errorf("equal-value update emitted %d events, want 0", len(events))
	}
	if e.UndoCount() != entries {
		t.Errorf("equal-value update changed undo count %d -> %d", entries, e.UndoCount())
	}
	if e.Revision() != rev {
		t.Error("equal-value update committed")
	}
}

func TestOnChange_Unsubscribe(t *testing.T) {
	e := New()

	var count int
	unsub, err := e.OnChange(func(Event) { count++ })
	if err != nil {
		t.Fatal(err)
	}

	if _, err := e.AddBlock(textBlock(t, "a", "")); err != nil {
		t.Fatal(err)
	}
	unsub()
	if _, err := e.AddBlock(textBlock(t, "b", "")); err != nil {
		t.Fatal(err)
	}

	if count != 1 {
		t.Errorf("handler ran %d times, want 1", count)
	}
}

func TestOnChange_NilHandler(t *testing.T) {
	e := New()
	if _, err := e.OnChange(nil); !errors.Is(err, ErrNilHandler) {
		t.Errorf("expected ErrNilHandler, got %v", err)
	}
}

func TestSubscribe_KindFilter(t *testing.T) {
	e := New()

	var adds []Event
	if _, err := e.Subscribe(func(ev Event) { adds = append(adds, ev) }, WithKind(KindAdd)); err != nil {
		t.Fatal(err)
	}

	id, err := e.AddBlock(textBlock(t, "a", ""))
	if err != nil {
		t.Fatal(err)
	}
	if err := e.UpdateField(id, "text", "x"); err != nil {
		t.Fatal(err)
	}
	e.RemoveBlock(id)

	if len(adds) != 1 || adds[0].Kind != KindAdd {
		t.Errorf("filtered subscription saw %+v, want one add", adds)
	}

	stats := e.ChangeObserverStats()
	if stats.Filtered == 0 {
		t.Error("expected filtered deliveries in stats")
	}
}

func TestOnChange_HandlerPanicIsolated(t *testing.T) {
	e := New()

	if _, err := e.OnChange(func(Event) { panic("bad handler") }); err != nil {
		t.Fatal(err)
	}
	var after int
	if _, err := e.OnChange(func(Event) { after++ }); err != nil {
		t.Fatal(err)
	}

	if _, err := e.AddBlock(textBlock(t, "a", "")); err != nil {
		t.Fatal(err)
	}

	if after != 1 {
		t.Errorf("later handler ran %d times, want 1", after)
	}
	if e.ChangeObserverStats().HandlerPanics != 1 {
		t.Errorf("panics = %d, want 1", e.ChangeObserverStats().HandlerPanics)
	}
}

// ============================================================================
// Transactions
// ============================================================================

func TestTransact_SingleCommitAndUndo(t *testing.T) {
	e := New()

	var events []Event
	if _, err := e.OnChange(func(ev Event) { events = append(events, ev) }); err != nil {
		t.Fatal(err)
	}

	err := e.Transact(func(tx *Tx) error {
		for _, id := range []string{"a", "b", "c"} {
			if _, err := tx.AddBlock(textBlock(t, id, "")); err != nil {
				return err
			}
		}
		return tx.UpdateField("a", "text", "first")
	})
	if err != nil {
		t.Fatalf("Transact failed: %v", err)
	}

	if e.Revision() != 1 {
		t.Errorf("revision = %d, want 1 (single commit)", e.Revision())
	}
	if len(events) != 3 {
		t.Fatalf("got %d events, want 3 adds: %+v", len(events), events)
	}
	for _, ev := range events {
		if ev.Kind != KindAdd {
			t.Errorf("kind = %v, want add (update folded into the insert)", ev.Kind)
		}
		if ev.Revision != 1 {
			t.Errorf("event revision = %d, want 1", ev.Revision)
		}
	}

	if err := e.Undo(); err != nil {
		t.Fatalf("Undo failed: %v", err)
	}
	if e.Len() != 0 {
		t.Errorf("len after undo = %d, want 0", e.Len())
	}
}

func TestTransact_ErrorCommitsAppliedOps(t *testing.T) {
	e := New()
	wantErr := errors.New("stop here")

	err := e.Transact(func(tx *Tx) error {
		if _, err := tx.AddBlock(textBlock(t, "a", "")); err != nil {
			return err
		}
		return wantErr
	})
	if !errors.Is(err, wantErr) {
		t.Fatalf("expected callback error, got %v", err)
	}

	// No rollback: the applied op committed and is undoable.
	if e.Len() != 1 {
		t.Errorf("len = %d, want 1", e.Len())
	}
	if !e.CanUndo() {
		t.Error("partial transaction should be undoable")
	}
}

func TestTransactMoves_SingleEntry(t *testing.T) {
	e := New()
	for _, id := range []string{"a", "b", "c", "d"} {
		if _, err := e.AddBlock(textBlock(t, id, "")); err != nil {
			t.Fatal(err)
		}
	}
	e.StopCapturing()
	entries := e.UndoCount()

	err := e.TransactMoves(func() error {
		e.MoveBlock("a", 3)
		e.MoveBlock("b", 2)
		return nil
	})
	if err != nil {
		t.Fatalf("TransactMoves failed: %v", err)
	}

	if e.UndoCount() != entries+1 {
		t.Fatalf("undo count = %d, want %d (moves coalesced)", e.UndoCount(), entries+1)
	}

	if err := e.Undo(); err != nil {
		t.Fatalf("Undo failed: %v", err)
	}
	ids := e.BlockIDs()
	want := []string{"a", "b", "c", "d"}
	for i := range want {
		if ids[i] != want[i] {
			t.Fatalf("order after undo = %v, want %v", ids, want)
		}
	}
}

func TestApplyRemote_ObservableNotUndoable(t *testing.T) {
	e := New()
	if _, err := e.AddBlock(textBlock(t, "a", "")); err != nil {
		t.Fatal(err)
	}
	if err := e.Undo(); err != nil {
		t.Fatal(err)
	}
	if !e.CanRedo() {
		t.Fatal("expected redo available")
	}

	var events []Event
	if _, err := e.OnChange(func(ev Event) { events = append(events, ev) }); err != nil {
		t.Fatal(err)
	}

	err := e.ApplyRemote(func(tx *Tx) error {
		_, err := tx.AddBlock(textBlock(t, "r", "from peer"))
		return err
	})
	if err != nil {
		t.Fatalf("ApplyRemote failed: %v", err)
	}

	if len(events) != 1 || events[0].Origin != OriginRemote {
		t.Fatalf("expected one remote event, got %+v", events)
	}
	if e.CanUndo() {
		t.Error("remote change must not enter the undo history")
	}
	if !e.CanRedo() {
		t.Error("remote change must not clear the redo stack")
	}
}

// ============================================================================
// Replication Feed
// ============================================================================

func TestChangesSince_ReplaysOntoPeer(t *testing.T) {
	e := New()
	if _, err := e.AddBlock(textBlock(t, "a", "one")); err != nil {
		t.Fatal(err)
	}
	if _, err := e.AddBlock(textBlock(t, "b", "two")); err != nil {
		t.Fatal(err)
	}
	if err := e.UpdateField("a", "text", "one!"); err != nil {
		t.Fatal(err)
	}
	e.MoveBlock("b", 0)

	txns := e.ChangesSince(0)
	if len(txns) != 4 {
		t.Fatalf("got %d transactions, want 4", len(txns))
	}

	peer := New()
	for _, txn := range txns {
		err := peer.ApplyRemote(func(tx *Tx) error {
			for _, op := range txn.Ops {
				if err := tx.Apply(op); err != nil {
					return err
				}
			}
			return nil
		})
		if err != nil {
			t.Fatalf("replay failed: %v", err)
		}
	}

	want, err := e.ToJSON()
	if err != nil {
		t.Fatal(err)
	}
	got, err := peer.ToJSON()
	if err != nil {
		t.Fatal(err)
	}
	if !bytes.Equal(want, got) {
		t.Errorf("replayed peer diverged:\n want %s\n got  %s", want, got)
	}
}

func TestChangesSince_PartialFeed(t *testing.T) {
	e := New()
	if _, err := e.AddBlock(textBlock(t, "a", "")); err != nil {
		t.Fatal(err)
	}
	rev := e.Revision()
	if _, err := e.AddBlock(textBlock(t, "b", "")); err != nil {
		t.Fatal(err)
	}

	txns := e.ChangesSince(rev)
	if len(txns) != 1 {
		t.Fatalf("got %d transactions since %d, want 1", len(txns), rev)
	}
	if txns[0].Revision != rev+1 {
		t.Errorf("revision = %d, want %d", txns[0].Revision, rev+1)
	}
}

func TestChangeLogCapacity(t *testing.T) {
	e := New(WithChangeLogCapacity(2))
	for i := 0; i < 5; i++ {
		if _, err := e.AddBlock(textBlock(t, fmt.Sprintf("blk-%d", i), "")); err != nil {
			t.Fatal(err)
		}
	}

	if e.OldestLoggedRevision() != 4 {
		t.Errorf("oldest logged = %d, want 4", e.OldestLoggedRevision())
	}
	if got := len(e.ChangesSince(0)); got != 2 {
		t.Errorf("feed holds %d transactions, want 2", got)
	}
}

// ============================================================================
// Undo Grouping
// ============================================================================

func TestTypingBoundaryGrouping(t *testing.T) {
	e := New()
	if err := e.FromJSON([]byte(`[{"id":"a","type":"paragraph","data":{"text":""}}]`)); err != nil {
		t.Fatal(err)
	}

	// Type "ab cd" one keystroke at a time, the way a view drives the
	// editor: boundary check before the keystroke, boundary mark after a
	// boundary character.
	for _, text := range []string{"a", "ab", "ab ", "ab c", "ab cd"} {
		e.CheckAndHandleBoundary()
		if err := e.UpdateField("a", "text", text); err != nil {
			t.Fatal(err)
		}
		typed := text[len(text)-1:]
		if EndsAtBoundary(typed) {
			e.MarkBoundary()
		}
	}

	if e.UndoCount() != 2 {
		t.Fatalf("undo count = %d, want 2 (split at the word boundary)", e.UndoCount())
	}

	if err := e.Undo(); err != nil {
		t.Fatal(err)
	}
	if got := fieldText(t, e, "a"); got != "ab " {
		t.Errorf("after first undo text = %q, want %q", got, "ab ")
	}
	if err := e.Undo(); err != nil {
		t.Fatal(err)
	}
	if got := fieldText(t, e, "a"); got != "" {
		t.Errorf("after second undo text = %q, want empty", got)
	}
}

func TestStopCapturing_SplitsEntries(t *testing.T) {
	e := New()
	id, err := e.AddBlock(textBlock(t, "a", ""))
	if err != nil {
		t.Fatal(err)
	}
	e.StopCapturing()

	if err := e.UpdateField(id, "text", "one"); err != nil {
		t.Fatal(err)
	}
	e.StopCapturing()
	if err := e.UpdateField(id, "text", "two"); err != nil {
		t.Fatal(err)
	}

	if e.UndoCount() != 3 {
		t.Errorf("undo count = %d, want 3", e.UndoCount())
	}
}

func TestStopCapturing_SuppressedInAtomicWindow(t *testing.T) {
	e := New()
	id, err := e.AddBlock(textBlock(t, "a", ""))
	if err != nil {
		t.Fatal(err)
	}
	e.StopCapturing()
	entries := e.UndoCount()

	err = e.WithAtomicOperation(func() error {
		if err := e.UpdateField(id, "text", "step 1"); err != nil {
			return err
		}
		// A view reacting mid-operation cannot split the entry.
		e.StopCapturing()
		return e.UpdateField(id, "text", "step 2")
	})
	if err != nil {
		t.Fatalf("WithAtomicOperation failed: %v", err)
	}

	if e.UndoCount() != entries+1 {
		t.Errorf("undo count = %d, want %d (one merged entry)", e.UndoCount(), entries+1)
	}

	if err := e.Undo(); err != nil {
		t.Fatal(err)
	}
	if got := fieldText(t, e, "a"); got != "" {
		t.Errorf("text after undo = %q, want empty", got)
	}
}

func TestRedoClearedByNewLocalEdit(t *testing.T) {
	e := New()
	id, err := e.AddBlock(textBlock(t, "a", ""))
	if err != nil {
		t.Fatal(err)
	}
	e.StopCapturing()

	if err := e.UpdateField(id, "text", "x"); err != nil {
		t.Fatal(err)
	}
	if err := e.Undo(); err != nil {
		t.Fatal(err)
	}
	if !e.CanRedo() {
		t.Fatal("expected redo available")
	}

	if err := e.UpdateField(id, "text", "y"); err != nil {
		t.Fatal(err)
	}
	if e.CanRedo() {
		t.Error("new local edit must clear the redo stack")
	}
	if err := e.Redo(); !errors.Is(err, ErrNothingToRedo) {
		t.Errorf("expected ErrNothingToRedo, got %v", err)
	}
}

// ============================================================================
// Caret
// ============================================================================

func TestCaretRestoredAcrossUndoRedo(t *testing.T) {
	current := CaretSnapshot{BlockID: "a", Offset: 0}
	var restored []CaretSnapshot

	e := New(
		WithCaretProvider(func() (CaretSnapshot, bool) { return current, true }),
		WithCaretRestorer(func(s CaretSnapshot) { restored = append(restored, s) }),
	)
	id, err := e.AddBlock(textBlock(t, "a", ""))
	if err != nil {
		t.Fatal(err)
	}
	e.StopCapturing()

	current = CaretSnapshot{BlockID: "a", Offset: 2}
	if err := e.UpdateField(id, "text", "hi"); err != nil {
		t.Fatal(err)
	}
	e.UpdateLastCaretAfterPosition(CaretSnapshot{BlockID: "a", Offset: 4})

	if err := e.Undo(); err != nil {
		t.Fatal(err)
	}
	if len(restored) != 1 || restored[0] != (CaretSnapshot{BlockID: "a", Offset: 2}) {
		t.Fatalf("undo restored %+v, want the before-change position", restored)
	}

	if err := e.Redo(); err != nil {
		t.Fatal(err)
	}
	if len(restored) != 2 || restored[1] != (CaretSnapshot{BlockID: "a", Offset: 4}) {
		t.Fatalf("redo restored %+v, want the after-change position", restored)
	}
}

// ============================================================================
// Settings
// ============================================================================

func TestApplySettings(t *testing.T) {
	e := New()
	for i := 0; i < 5; i++ {
		if _, err := e.AddBlock(textBlock(t, fmt.Sprintf("blk-%d", i), "")); err != nil {
			t.Fatal(err)
		}
		e.StopCapturing()
	}
	if e.UndoCount() != 5 {
		t.Fatalf("undo count = %d, want 5", e.UndoCount())
	}

	s := DefaultSettings()
	s.History.MaxEntries = 2
	s.History.BoundaryTimeout = "250ms"
	if err := e.ApplySettings(s); err != nil {
		t.Fatalf("ApplySettings failed: %v", err)
	}

	if e.UndoCount() != 2 {
		t.Errorf("undo count after trim = %d, want 2", e.UndoCount())
	}
}

func TestApplySettings_Invalid(t *testing.T) {
	e := New()

	s := DefaultSettings()
	s.History.MaxEntries = -1
	if err := e.ApplySettings(s); !errors.Is(err, ErrInvalidSettings) {
		t.Errorf("expected ErrInvalidSettings, got %v", err)
	}
}

func TestWithSettings(t *testing.T) {
	s := DefaultSettings()
	s.History.MaxEntries = 3

	e := New(WithSettings(s))
	for i := 0; i < 6; i++ {
		if _, err := e.AddBlock(textBlock(t, fmt.Sprintf("blk-%d", i), "")); err != nil {
			t.Fatal(err)
		}
		e.StopCapturing()
	}

	if e.UndoCount() != 3 {
		t.Errorf("undo count = %d, want 3", e.UndoCount())
	}
}

// ============================================================================
// Concurrency
// ============================================================================

func TestConcurrentAccess(t *testing.T) {
	e := New()

	var wg sync.WaitGroup
	for g := 0; g < 4; g++ {
		wg.Add(1)
		go func(g int) {
			defer wg.Done()
			for i := 0; i < 25; i++ {
				id, err := e.AddBlock(textBlock(t, fmt.Sprintf("g%d-%d", g, i), ""))
				if err != nil {
					t.Errorf("AddBlock failed: %v", err)
					return
				}
				if _, ok := e.Block(id); !ok {
					t.Errorf("block %s not readable after add", id)
					return
				}
				_ = e.Len()
				_ = e.Revision()
			}
		}(g)
	}
	wg.Wait()

	if e.Len() != 100 {
		t.Errorf("len = %d, want 100", e.Len())
	}
}

func BenchmarkAddBlock(b *testing.B) {
	e := New()
	blk, err := NewBlock("paragraph", map[string]any{"text": "benchmark text"})
	if err != nil {
		b.Fatal(err)
	}

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		clone := blk.Clone()
		clone.ID = fmt.Sprintf("blk-%d", i)
		if _, err := e.AddBlock(clone); err != nil {
			b.Fatal(err)
		}
	}
}

func BenchmarkUpdateField(b *testing.B) {
	e := New()
	blk, err := NewBlock("paragraph", map[string]any{"text": ""})
	if err != nil {
		b.Fatal(err)
	}
	id, err := e.AddBlock(blk)
	if err != nil {
		b.Fatal(err)
	}

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		if err := e.UpdateField(id, "text", fmt.Sprintf("revision %d", i)); err != nil {
			b.Fatal(err)
		}
	}
}

func BenchmarkUndoRedo(b *testing.B) {
	e := New()
	blk, err := NewBlock("paragraph", map[string]any{"text": "content"})
	if err != nil {
		b.Fatal(err)
	}
	if _, err := e.AddBlock(blk); err != nil {
		b.Fatal(err)
	}

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		if err := e.Undo(); err != nil {
			b.Fatal(err)
		}
		if err := e.Redo(); err != nil {
			b.Fatal(err)
		}
	}
}

func BenchmarkToJSON(b *testing.B) {
	e := New()
	for i := 0; i < 100; i++ {
		blk, err := NewBlock("paragraph", map[string]any{"text": fmt.Sprintf("block %d", i)})
		if err != nil {
			b.Fatal(err)
		}
		if _, err := e.AddBlock(blk); err != nil {
			b.Fatal(err)
		}
	}

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		if _, err := e.ToJSON(); err != nil {
			b.Fatal(err)
		}
	}
}
