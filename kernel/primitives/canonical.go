package primitives

import (
	"bytes"
	"encoding/json"
	"fmt"
	"sort"
)

// Canonical produces a deterministic byte representation of v: a JSON-like
// document with recursively key-sorted objects and order-preserved arrays,
// with no insignificant whitespace. Any two values that are semantically
// equal JSON documents (map key order aside) produce byte-identical output,
// which is what lets Hash and the signing routines below treat it as the
// single source of determinism for the whole kernel.
//
// v is first passed through encoding/json.Marshal (so struct tags, field
// omission, etc. behave exactly as elsewhere in the codebase) and then
// re-walked as a generic tree so that maps nested at any depth — protocol
// precondition parameters, Evidence metadata, delegation limits — are
// sorted even though a bare struct-field-order encoding would not sort
// them.
func Canonical(v any) ([]byte, error) {
	raw, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("primitives: marshal: %w", err)
	}
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()
	var generic any
	if err := dec.Decode(&generic); err != nil {
		return nil, fmt.Errorf("primitives: decode generic: %w", err)
	}
	var buf bytes.Buffer
	if err := writeCanonical(&buf, generic); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func writeCanonical(buf *bytes.Buffer, v any) error {
	switch val := v.(type) {
	case map[string]any:
		keys := make([]string, 0, len(val))
		for k := range val {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		buf.WriteByte('{')
		for i, k := range keys {
			if i > 0 {
				buf.WriteByte(',')
			}
			keyBytes, err := json.Marshal(k)
			if err != nil {
				return err
			}
			buf.Write(keyBytes)
			buf.WriteByte(':')
			if err := writeCanonical(buf, val[k]); err != nil {
				return err
			}
		}
		buf.WriteByte('}')
		return nil
	case []any:
		buf.WriteByte('[')
		for i, elem := range val {
			if i > 0 {
				buf.WriteByte(',')
			}
			if err := writeCanonical(buf, elem); err != nil {
				return err
			}
		}
		buf.WriteByte(']')
		return nil
	default:
		// string, bool, nil, json.Number all re-encode stably on their own.
		b, err := json.Marshal(val)
		if err != nil {
			return err
		}
		buf.Write(b)
		return nil
	}
}

// HashCanonical is shorthand for Hash(Canonical(v)).
func HashCanonical(v any) (Digest, error) {
	b, err := Canonical(v)
	if err != nil {
		return Digest{}, err
	}
	return Hash(b), nil
}
