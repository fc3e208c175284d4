package document

import (
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/tidwall/gjson"
)

// ErrInvalidValue is returned when a payload is not valid JSON.
var ErrInvalidValue = errors.New("invalid JSON value")

// Canonicalize returns the canonical encoding of a JSON value: object keys
// sorted and deduplicated (last value wins), insignificant whitespace
// removed, strings re-escaped uniformly, and number text preserved verbatim
// so precision survives. Two values are structurally equal exactly when
// their canonical encodings are byte-equal.
func Canonicalize(raw json.RawMessage) (json.RawMessage, error) {
	if len(raw) == 0 {
		return nil, fmt.Errorf("canonicalize: %w: empty input", ErrInvalidValue)
	}
	if !gjson.ValidBytes(raw) {
		return nil, fmt.Errorf("canonicalize: %w", ErrInvalidValue)
	}

	var sb strings.Builder
	sb.Grow(len(raw))
	writeCanonical(&sb, gjson.ParseBytes(raw))
	return json.RawMessage(sb.String()), nil
}

// MarshalValue encodes an arbitrary Go value as a canonical JSON value.
func MarshalValue(v any) (json.RawMessage, error) {
	b, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("encode value: %w", err)
	}
	return Canonicalize(b)
}

func writeCanonical(sb *strings.Builder, res gjson.Result) {
	switch {
	case res.IsObject():
		vals := make(map[string]gjson.Result)
		keys := make([]string, 0, 8)
		res.ForEach(func(k, v gjson.Result) bool {
			key := k.String()
			if _, seen := vals[key]; !seen {
				keys = append(keys, key)
			}
			vals[key] = v
			return true
		})
		sort.Strings(keys)

		sb.WriteByte('{')
		for i, key := range keys {
			if i > 0 {
				sb.WriteByte(',')
			}
			writeJSONString(sb, key)
			sb.WriteByte(':')
			writeCanonical(sb, vals[key])
		}
		sb.WriteByte('}')

	case res.IsArray():
		sb.WriteByte('[')
		first := true
		res.ForEach(func(_, v gjson.Result) bool {
			if !first {
				sb.WriteByte(',')
			}
			first = false
			writeCanonical(sb, v)
			return true
		})
		sb.WriteByte(']')

	case res.Type == gjson.String:
		writeJSONString(sb, res.Str)

	default:
		// Numbers, booleans, and null keep their source text.
		sb.WriteString(res.Raw)
	}
}

// writeJSONString writes s as a JSON string with encoding/json escaping,
// which both ingest paths share.
func writeJSONString(sb *strings.Builder, s string) {
	b, err := json.Marshal(s)
	if err != nil {
		// Marshaling a string cannot fail.
		panic(err)
	}
	sb.Write(b)
}
