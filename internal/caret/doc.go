// Package caret carries caret position snapshots between the view and the
// undo history. The core never computes caret geometry; it only records
// opportunistic snapshots supplied by the embedding view and hands them
// back when undo or redo wants the caret restored.
package caret
