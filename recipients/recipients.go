// Package recipients converts between the persisted text form of a
// recipient list and a list of addresses.
//
// Stored recipient columns have held several shapes over time: a JSON array
// of strings, a bare address, or an empty value. Decode accepts all of them
// and never fails to produce a usable list.
package recipients

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
)

// ErrMalformed reports a bracketed value that is not valid JSON. Decode still
// returns a fallback list alongside it.
var ErrMalformed = errors.New("recipients: malformed stored value")

// Decode parses a stored recipient value.
//
//   - "" yields an empty list.
//   - A value that starts with '[' and ends with ']' is decoded as a JSON
//     array. String elements are kept as-is, other scalars and nested values
//     are re-encoded as JSON text, nulls are dropped. If decoding fails the
//     raw value becomes the only element and ErrMalformed is returned.
//   - Anything else becomes a one-element list.
func Decode(raw string) ([]string, error) {
	if raw == "" {
		return []string{}, nil
	}
	if !strings.HasPrefix(raw, "[") || !strings.HasSuffix(raw, "]") {
		return []string{raw}, nil
	}

	dec := json.NewDecoder(strings.NewReader(raw))
	dec.UseNumber()
	var elems []any
	if err := dec.Decode(&elems); err != nil {
		return []string{raw}, fmt.Errorf("%w: %v", ErrMalformed, err)
	}
	if dec.InputOffset() != int64(len(raw)) {
		return []string{raw}, fmt.Errorf("%w: trailing data", ErrMalformed)
	}

	out := make([]string, 0, len(elems))
	for _, e := range elems {
		switch v := e.(type) {
		case nil:
		case string:
			out = append(out, v)
		default:
			out = append(out, stringify(v))
		}
	}
	return out, nil
}

// Normalize is Decode without the diagnostic error.
func Normalize(raw string) []string {
	out, _ := Decode(raw)
	return out
}

// Encode serializes a list to its stored form, a JSON array of strings.
func Encode(list []string) string {
	if len(list) == 0 {
		return "[]"
	}
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(list); err != nil {
		return "[]"
	}
	return strings.TrimSuffix(buf.String(), "\n")
}

// Split breaks comma separated address lists into individual addresses,
// trimming whitespace and dropping empty entries.
func Split(values ...string) []string {
	out := []string{}
	for _, v := range values {
		for _, part := range strings.Split(v, ",") {
			if p := strings.TrimSpace(part); p != "" {
				out = append(out, p)
			}
		}
	}
	return out
}

func stringify(v any) string {
	b, err := json.Marshal(v)
	if err != nil {
		return fmt.Sprint(v)
	}
	return string(b)
}
