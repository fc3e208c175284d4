package observe

import "github.com/dshills/blockstorm/internal/document"

// IndexResolver answers position queries against the post-commit document.
type IndexResolver interface {
	IndexOf(id string) (int, bool)
}

// Classify derives the semantic events of one committed transaction.
// Raw operations whose block cannot be resolved against the post-commit
// document are dropped silently.
func Classify(txn document.Txn, idx IndexResolver) []Event {
	events, _ := classify(txn, idx)
	return events
}

type fieldChange struct {
	blockID string
	key     string
	tune    bool
}

// classify additionally reports how many candidate events were dropped
// because their block could no longer be resolved.
func classify(txn document.Txn, idx IndexResolver) ([]Event, int) {
	inserted := make(map[string]struct{})
	deletedAt := make(map[string]int)

	var insertOrder []string
	var deleteOrder []string
	var changes []fieldChange
	seenChange := make(map[fieldChange]struct{})

	for _, op := range txn.Ops {
		switch op.Kind {
		case document.OpInsert:
			if _, seen := inserted[op.BlockID]; !seen {
				insertOrder = append(insertOrder, op.BlockID)
			}
			inserted[op.BlockID] = struct{}{}

		case document.OpDelete:
			if _, seen := deletedAt[op.BlockID]; !seen {
				deletedAt[op.BlockID] = op.Index
				deleteOrder = append(deleteOrder, op.BlockID)
			}

		case document.OpSetField, document.OpSetTune:
			fc := fieldChange{
				blockID: op.BlockID,
				key:     op.Key,
				tune:    op.Kind == document.OpSetTune,
			}
			if _, seen := seenChange[fc]; !seen {
				seenChange[fc] = struct{}{}
				changes = append(changes, fc)
			}
		}
	}

	base := Event{
		Origin:   txn.Origin.Semantic(),
		Revision: txn.Revision,
		Time:     txn.Time,
	}

	var events []Event
	dropped := 0

	// Moves: deleted and re-inserted ids, in deletion order.
	for _, id := range deleteOrder {
		if _, wasInserted := inserted[id]; !wasInserted {
			continue
		}
		to, ok := idx.IndexOf(id)
		if !ok {
			// Inserted and then deleted again: the block made no net
			// appearance.
			dropped++
			continue
		}
		ev := base
		ev.Kind = KindMove
		ev.BlockID = id
		ev.From = deletedAt[id]
		ev.To = to
		events = append(events, ev)
	}

	// Adds: inserted ids that were never deleted, in insertion order.
	for _, id := range insertOrder {
		if _, wasDeleted := deletedAt[id]; wasDeleted {
			continue
		}
		index, ok := idx.IndexOf(id)
		if !ok {
			dropped++
			continue
		}
		ev := base
		ev.Kind = KindAdd
		ev.BlockID = id
		ev.Index = index
		events = append(events, ev)
	}

	// Removes: deleted ids that were never inserted, in deletion order.
	for _, id := range deleteOrder {
		if _, wasInserted := inserted[id]; wasInserted {
			continue
		}
		ev := base
		ev.Kind = KindRemove
		ev.BlockID = id
		ev.Index = deletedAt[id]
		events = append(events, ev)
	}

	// Updates: field changes on blocks that were not inserted in this
	// transaction (an add already carries the final state) and still exist.
	for _, fc := range changes {
		if _, wasInserted := inserted[fc.blockID]; wasInserted {
			continue
		}
		index, ok := idx.IndexOf(fc.blockID)
		if !ok {
			dropped++
			continue
		}
		ev := base
		ev.Kind = KindUpdate
		ev.BlockID = fc.blockID
		ev.Index = index
		ev.Key = fc.key
		ev.Tune = fc.tune
		events = append(events, ev)
	}

	return events, dropped
}
