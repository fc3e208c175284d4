// Package observe turns raw committed transactions into semantic change
// events and delivers them to subscribers.
//
// The document store journals primitive operations (insert, delete,
// set-field, set-tune). Observers do not want that granularity: a drag of
// a block is a delete/insert pair of the same record, and a burst of field
// writes inside one transaction is a single logical change. This package
// classifies each commit into four event kinds:
//
//	Move    - a block id deleted and re-inserted in the same transaction
//	Add     - a block id inserted and not deleted
//	Remove  - a block id deleted and not re-inserted
//	Update  - a field or tune change on a block that survived the commit
//
// # Ordering
//
// Events of one commit are delivered in a fixed kind order (moves, adds,
// removes, updates) and, within a kind, in operation order. Commits are
// classified and delivered synchronously from the commit hook, so the
// cross-transaction event order matches the commit order exactly.
// Subscribers needing asynchrony must buffer on their own side.
//
// # Origins
//
// Events carry the semantic origin of their commit: the internal move
// origins collapse to local, undo, or redo, and unrecognized origins are
// treated as remote. Load events are delivered like any other; whether a
// consumer records them is its own policy.
//
// # Subscriptions
//
// Subscriptions are id-keyed with an atomic lifecycle state. Delivery runs
// in subscription order with per-handler panic isolation: a panicking
// subscriber is counted in Stats and never breaks its siblings or the
// store. Filters and one-shot subscriptions are available as options.
package observe
