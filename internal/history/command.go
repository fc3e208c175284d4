package history

import (
	"fmt"

	"github.com/dshills/blockstorm/internal/document"
)

// Command is one reversible unit of document change. Apply re-runs the
// change (redo), Revert rolls it back (undo). Both run inside store
// transactions tagged with the matching origin so observers see correctly
// attributed events.
type Command interface {
	Apply(st *document.Store) error
	Revert(st *document.Store) error
	Description() string
}

// OpsCommand replays the journaled operations of one or more merged local
// transactions.
type OpsCommand struct {
	ops []document.Op
}

// Apply re-applies the captured operations in order under the redo origin.
func (c *OpsCommand) Apply(st *document.Store) error {
	return st.Transact(document.OriginRedo, func() error {
		for _, op := range c.ops {
			if err := st.Apply(op); err != nil {
				return fmt.Errorf("redo %s %s: %w", op.Kind, op.BlockID, err)
			}
		}
		return nil
	})
}

// Revert applies the inverse operations in reverse order under the undo
// origin.
func (c *OpsCommand) Revert(st *document.Store) error {
	return st.Transact(document.OriginUndo, func() error {
		for _, op := range document.InvertOps(c.ops) {
			if err := st.Apply(op); err != nil {
				return fmt.Errorf("undo %s %s: %w", op.Kind, op.BlockID, err)
			}
		}
		return nil
	})
}

// Description returns a short label for debugging surfaces.
func (c *OpsCommand) Description() string {
	if len(c.ops) == 1 {
		return fmt.Sprintf("edit (%s %s)", c.ops[0].Kind, c.ops[0].BlockID)
	}
	return fmt.Sprintf("edit (%d ops)", len(c.ops))
}

// Len returns the number of captured operations.
func (c *OpsCommand) Len() int {
	return len(c.ops)
}

// MoveLog records one captured block relocation.
type MoveLog struct {
	// ID is the moved block.
	ID string

	// From is the position before the move.
	From int

	// To is the position after the move.
	To int
}

// MoveCommand replays one or more captured moves as moves, so undoing a
// drag emits move events instead of remove/add pairs.
type MoveCommand struct {
	moves []MoveLog
}

// Apply re-runs the moves in capture order under the move-redo origin.
func (c *MoveCommand) Apply(st *document.Store) error {
	return st.Transact(document.OriginMoveRedo, func() error {
		for _, m := range c.moves {
			st.MoveBlock(m.ID, m.To)
		}
		return nil
	})
}

// Revert runs the opposite moves in reverse order under the move-undo
// origin.
func (c *MoveCommand) Revert(st *document.Store) error {
	return st.Transact(document.OriginMoveUndo, func() error {
		for i := len(c.moves) - 1; i >= 0; i-- {
			st.MoveBlock(c.moves[i].ID, c.moves[i].From)
		}
		return nil
	})
}

// Description returns a short label for debugging surfaces.
func (c *MoveCommand) Description() string {
	if len(c.moves) == 1 {
		return fmt.Sprintf("move %s", c.moves[0].ID)
	}
	return fmt.Sprintf("move (%d blocks)", len(c.moves))
}

// Moves returns the captured move list.
func (c *MoveCommand) Moves() []MoveLog {
	out := make([]MoveLog, len(c.moves))
	copy(out, c.moves)
	return out
}

// deriveMoves pairs each delete with the re-insert of the same block to
// reconstruct the moves a move-origin transaction performed.
func deriveMoves(txn document.Txn) []MoveLog {
	pending := make(map[string]int)
	var moves []MoveLog

	for _, op := range txn.Ops {
		switch op.Kind {
		case document.OpDelete:
			pending[op.BlockID] = op.Index
		case document.OpInsert:
			if from, ok := pending[op.BlockID]; ok {
				moves = append(moves, MoveLog{ID: op.BlockID, From: from, To: op.Index})
				delete(pending, op.BlockID)
			}
		}
	}

	return moves
}
