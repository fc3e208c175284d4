package codec

import (
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/tidwall/gjson"
	"github.com/tidwall/sjson"

	"github.com/dshills/blockstorm/internal/document"
)

// ErrInvalidBlocks is returned when serialized input does not describe a
// valid block list.
var ErrInvalidBlocks = errors.New("invalid block list")

// Decode parses a serialized block list into records. The input must be a
// JSON array of block objects; within it, explicit ids must be unique.
// Records come back in array order with their values untouched.
func Decode(data []byte) ([]*document.Record, error) {
	if len(data) == 0 {
		return nil, fmt.Errorf("decode: %w: empty input", ErrInvalidBlocks)
	}
	if !gjson.ValidBytes(data) {
		return nil, fmt.Errorf("decode: %w: malformed JSON", ErrInvalidBlocks)
	}

	root := gjson.ParseBytes(data)
	if !root.IsArray() {
		return nil, fmt.Errorf("decode: %w: root is not an array", ErrInvalidBlocks)
	}

	var recs []*document.Record
	seen := make(map[string]struct{})
	var walkErr error

	i := -1
	root.ForEach(func(_, blk gjson.Result) bool {
		i++
		rec, err := decodeBlock(i, blk)
		if err != nil {
			walkErr = err
			return false
		}
		if rec.ID != "" {
			if _, dup := seen[rec.ID]; dup {
				walkErr = fmt.Errorf("decode block %d: %w: duplicate id %q", i, ErrInvalidBlocks, rec.ID)
				return false
			}
			seen[rec.ID] = struct{}{}
		}
		recs = append(recs, rec)
		return true
	})
	if walkErr != nil {
		return nil, walkErr
	}
	return recs, nil
}

func decodeBlock(i int, blk gjson.Result) (*document.Record, error) {
	if !blk.IsObject() {
		return nil, fmt.Errorf("decode block %d: %w: not an object", i, ErrInvalidBlocks)
	}

	typ := blk.Get("type")
	if !typ.Exists() || typ.Type != gjson.String || typ.Str == "" {
		return nil, fmt.Errorf("decode block %d: %w: missing type", i, ErrInvalidBlocks)
	}
	rec := &document.Record{Type: typ.Str}

	if id := blk.Get("id"); id.Exists() {
		if id.Type != gjson.String {
			return nil, fmt.Errorf("decode block %d: %w: id is not a string", i, ErrInvalidBlocks)
		}
		rec.ID = id.Str
	}

	if data := blk.Get("data"); data.Exists() {
		fields, err := decodeValueMap(data)
		if err != nil {
			return nil, fmt.Errorf("decode block %d: %w: data is not an object", i, ErrInvalidBlocks)
		}
		rec.Fields = fields
	}

	if tunes := blk.Get("tunes"); tunes.Exists() {
		vals, err := decodeValueMap(tunes)
		if err != nil {
			return nil, fmt.Errorf("decode block %d: %w: tunes is not an object", i, ErrInvalidBlocks)
		}
		rec.Tunes = vals
	}

	if parent := blk.Get("parent"); parent.Exists() {
		if parent.Type != gjson.String {
			return nil, fmt.Errorf("decode block %d: %w: parent is not a string", i, ErrInvalidBlocks)
		}
		rec.Parent = parent.Str
	}

	if content := blk.Get("content"); content.Exists() {
		if !content.IsArray() {
			return nil, fmt.Errorf("decode block %d: %w: content is not an array", i, ErrInvalidBlocks)
		}
		var ids []string
		ok := true
		content.ForEach(func(_, v gjson.Result) bool {
			if v.Type != gjson.String {
				ok = false
				return false
			}
			ids = append(ids, v.Str)
			return true
		})
		if !ok {
			return nil, fmt.Errorf("decode block %d: %w: content holds a non-string id", i, ErrInvalidBlocks)
		}
		rec.Content = ids
	}

	return rec, nil
}

// decodeValueMap lifts each key of a JSON object verbatim into a raw value
// map.
func decodeValueMap(obj gjson.Result) (map[string]json.RawMessage, error) {
	if !obj.IsObject() {
		return nil, ErrInvalidBlocks
	}

	vals := make(map[string]json.RawMessage)
	obj.ForEach(func(k, v gjson.Result) bool {
		vals[k.String()] = json.RawMessage(v.Raw)
		return true
	})
	return vals, nil
}

// Encode serializes records into the block-list wire format. Output is
// deterministic: blocks keep document order, object keys are sorted, and
// optional sections are omitted when empty.
func Encode(recs []*document.Record) ([]byte, error) {
	out := []byte("[]")
	for i, rec := range recs {
		if rec == nil {
			return nil, fmt.Errorf("encode block %d: %w: nil record", i, ErrInvalidBlocks)
		}
		blk, err := encodeBlock(rec)
		if err != nil {
			return nil, fmt.Errorf("encode block %d (%s): %w", i, rec.ID, err)
		}
		out, err = sjson.SetRawBytes(out, "-1", blk)
		if err != nil {
			return nil, fmt.Errorf("encode block %d (%s): %w", i, rec.ID, err)
		}
	}
	return out, nil
}

func encodeBlock(rec *document.Record) ([]byte, error) {
	blk := []byte("{}")
	var err error

	if blk, err = sjson.SetBytes(blk, "id", rec.ID); err != nil {
		return nil, err
	}
	if blk, err = sjson.SetBytes(blk, "type", rec.Type); err != nil {
		return nil, err
	}
	if blk, err = sjson.SetRawBytes(blk, "data", rawObject(rec.Fields)); err != nil {
		return nil, err
	}
	if len(rec.Tunes) > 0 {
		if blk, err = sjson.SetRawBytes(blk, "tunes", rawObject(rec.Tunes)); err != nil {
			return nil, err
		}
	}
	if rec.Parent != "" {
		if blk, err = sjson.SetBytes(blk, "parent", rec.Parent); err != nil {
			return nil, err
		}
	}
	if len(rec.Content) > 0 {
		ids, merr := json.Marshal(rec.Content)
		if merr != nil {
			return nil, merr
		}
		if blk, err = sjson.SetRawBytes(blk, "content", ids); err != nil {
			return nil, err
		}
	}
	return blk, nil
}

// rawObject assembles a JSON object from a raw value map with sorted keys.
func rawObject(m map[string]json.RawMessage) json.RawMessage {
	if len(m) == 0 {
		return json.RawMessage("{}")
	}

	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var sb strings.Builder
	sb.WriteByte('{')
	for i, k := range keys {
		if i > 0 {
			sb.WriteByte(',')
		}
		kb, err := json.Marshal(k)
		if err != nil {
			// Marshaling a string cannot fail.
			panic(err)
		}
		sb.Write(kb)
		sb.WriteByte(':')
		sb.Write(m[k])
	}
	sb.WriteByte('}')
	return json.RawMessage(sb.String())
}

// EncodeValue converts an arbitrary Go value into the canonical raw form
// stored in record fields.
func EncodeValue(v any) (json.RawMessage, error) {
	return document.MarshalValue(v)
}

// DecodeValue unmarshals a raw field value into v.
func DecodeValue(raw json.RawMessage, v any) error {
	if len(raw) == 0 {
		return fmt.Errorf("decode value: %w", document.ErrInvalidValue)
	}
	if err := json.Unmarshal(raw, v); err != nil {
		return fmt.Errorf("decode value: %w", err)
	}
	return nil
}
