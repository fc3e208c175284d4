package document

import (
	"bytes"
	"encoding/json"
)

// Record is one content block. Identity is the ID, never the position:
// a record keeps its ID across moves, and ids are never reused within a
// document. Field and tune values are canonical raw JSON (see Canonicalize)
// so that structural equality is a byte comparison.
type Record struct {
	// ID is the globally unique, stable block identifier.
	ID string

	// Type discriminates which tool owns the block's data.
	Type string

	// Fields holds the tool-owned data payload, one canonical JSON value
	// per key.
	Fields map[string]json.RawMessage

	// Tunes holds optional per-block modifiers, keyed by tune name.
	Tunes map[string]json.RawMessage

	// Parent optionally points at a containing block. An empty or dangling
	// parent means the record lives at root level.
	Parent string

	// Content optionally lists child block ids in order.
	Content []string
}

// Clone returns a deep copy. Value bytes are copied as well, so callers
// may hold the result across later mutations.
func (r *Record) Clone() *Record {
	if r == nil {
		return nil
	}

	c := &Record{
		ID:     r.ID,
		Type:   r.Type,
		Parent: r.Parent,
	}

	if r.Fields != nil {
		c.Fields = make(map[string]json.RawMessage, len(r.Fields))
		for k, v := range r.Fields {
			c.Fields[k] = bytes.Clone(v)
		}
	}

	if r.Tunes != nil {
		c.Tunes = make(map[string]json.RawMessage, len(r.Tunes))
		for k, v := range r.Tunes {
			c.Tunes[k] = bytes.Clone(v)
		}
	}

	if r.Content != nil {
		c.Content = make([]string, len(r.Content))
		copy(c.Content, r.Content)
	}

	return c
}

// Field returns the canonical value for a data key.
func (r *Record) Field(key string) (json.RawMessage, bool) {
	v, ok := r.Fields[key]
	return v, ok
}

// Tune returns the canonical value for a tune name.
func (r *Record) Tune(name string) (json.RawMessage, bool) {
	v, ok := r.Tunes[name]
	return v, ok
}

// FieldKeys returns the data keys in unspecified order.
func (r *Record) FieldKeys() []string {
	if len(r.Fields) == 0 {
		return nil
	}
	keys := make([]string, 0, len(r.Fields))
	for k := range r.Fields {
		keys = append(keys, k)
	}
	return keys
}

// Equal reports whether two records carry the same identity and content.
// Values compare by canonical bytes.
func (r *Record) Equal(other *Record) bool {
	if r == nil || other == nil {
		return r == other
	}
	if r.ID != other.ID || r.Type != other.Type || r.Parent != other.Parent {
		return false
	}
	if len(r.Content) != len(other.Content) {
		return false
	}
	for i, id := range r.Content {
		if other.Content[i] != id {
			return false
		}
	}
	if !rawMapEqual(r.Fields, other.Fields) {
		return false
	}
	return rawMapEqual(r.Tunes, other.Tunes)
}

func rawMapEqual(a, b map[string]json.RawMessage) bool {
	if len(a) != len(b) {
		return false
	}
	for k, av := range a {
		bv, ok := b[k]
		if !ok || !bytes.Equal(av, bv) {
			return false
		}
	}
	return true
}
