// Package document provides the replicated ordered-document store at the
// heart of the editor core. A document is an ordered sequence of typed
// content blocks addressed by stable ids, mutated only inside transactions.
//
// The document package provides:
//
//   - Record, the unit of content: id, type, field payload, tunes, and
//     optional hierarchy links
//   - An origin-tagged transaction model with nested composition (the
//     outermost transaction wins, one commit per boundary)
//   - Invertible primitive operations (insert, delete, set-field, set-tune)
//     journaled per transaction
//   - Monotonic revisions and a bounded commit log for catch-up feeds
//   - Canonical JSON value encoding so equality checks are byte comparisons
//
// Basic usage:
//
//	st := document.NewStore()
//	err := st.Transact(document.OriginLocal, func() error {
//	    id, err := st.AddBlock(&document.Record{Type: "paragraph"}, -1)
//	    if err != nil {
//	        return err
//	    }
//	    return st.SetField(id, "text", []byte(`"hello"`))
//	})
//
// Synchronization:
//
// Store is not synchronized. It assumes one logical mutator; the owning
// coordinator serializes access the same way a buffer wraps an unlocked
// rope. Commit hooks run synchronously on the mutating goroutine, in
// registration order, after the outermost transaction body completes.
package document
