// Package canonical serializes values to JSON with a stable byte layout.
//
// Object keys are sorted recursively and HTML escaping is disabled, so two
// semantically identical values always produce identical bytes regardless of
// how they were constructed. The output is used for cache fingerprints and
// webhook signatures.
package canonical

import (
	"bytes"
	"encoding/json"
	"fmt"
	"sort"
)

// Marshal returns the canonical JSON encoding of v.
func Marshal(v any) ([]byte, error) {
	raw, err := encode(v)
	if err != nil {
		return nil, err
	}

	decoder := json.NewDecoder(bytes.NewReader(raw))
	decoder.UseNumber()

	var generic any

	err = decoder.Decode(&generic)
	if err != nil {
		return nil, fmt.Errorf("canonical: failed to decode intermediate form: %w", err)
	}

	var buf bytes.Buffer

	err = write(&buf, generic)
	if err != nil {
		return nil, err
	}

	return buf.Bytes(), nil
}

// Equal reports whether a and b have the same canonical encoding.
func Equal(a, b any) bool {
	left, err := Marshal(a)
	if err != nil {
		return false
	}

	right, err := Marshal(b)
	if err != nil {
		return false
	}

	return bytes.Equal(left, right)
}

func encode(v any) ([]byte, error) {
	var buf bytes.Buffer

	encoder := json.NewEncoder(&buf)
	encoder.SetEscapeHTML(false)

	err := encoder.Encode(v)
	if err != nil {
		return nil, fmt.Errorf("canonical: failed to encode value: %w", err)
	}

	return bytes.TrimRight(buf.Bytes(), "\n"), nil
}

func write(buf *bytes.Buffer, v any) error {
	switch value := v.(type) {
	case map[string]any:
		keys := make([]string, 0, len(value))
		for k := range value {
			keys = append(keys, k)
		}

		sort.Strings(keys)

		buf.WriteByte('{')

		for i, k := range keys {
			if i > 0 {
				buf.WriteByte(',')
			}

			key, err := encode(k)
			if err != nil {
				return err
			}

			buf.Write(key)
			buf.WriteByte(':')

			err = write(buf, value[k])
			if err != nil {
				return err
			}
		}

		buf.WriteByte('}')
	case []any:
		buf.WriteByte('[')

		for i, item := range value {
			if i > 0 {
				buf.WriteByte(',')
			}

			err := write(buf, item)
			if err != nil {
				return err
			}
		}

		buf.WriteByte(']')
	case json.Number:
		buf.WriteString(value.String())
	default:
		raw, err := encode(value)
		if err != nil {
			return err
		}

		buf.Write(raw)
	}

	return nil
}
