// Package codec converts between the external flat JSON block list and
// the internal record format.
//
// The wire format is an array of block objects:
//
//	[{ "id": "...", "type": "paragraph", "data": {...},
//	   "tunes": {...}, "parent": "...", "content": ["..."] }]
//
// id, tunes, parent, and content are optional on ingest; type and, when
// present, the object shape of data and tunes are validated. Field values
// are lifted verbatim as raw JSON, one value per key; the document store
// canonicalizes them on insert.
//
// Encoding is deterministic: object keys are emitted sorted and values are
// the store's canonical encodings, so encoding the same document twice
// yields identical bytes and a decode of an encode round-trips exactly.
package codec
