// Package jsonunion encodes closed sets of Go types as JSON objects carrying a
// discriminator key, e.g. {"stepType":"CreateTable", ...}.
package jsonunion

import (
	"bytes"
	"encoding/json"
	"fmt"
)

// Tag marshals v and prepends key with the value kind.
func Tag(key, kind string, v any) ([]byte, error) {
	body, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	if len(body) < 2 || body[0] != '{' {
		return nil, fmt.Errorf("%s %s does not encode as an object", key, kind)
	}
	head := fmt.Sprintf("{%q:%q", key, kind)
	if bytes.Equal(body, []byte("{}")) {
		return []byte(head + "}"), nil
	}
	return append([]byte(head+","), body[1:]...), nil
}

// Untag splits a tagged object into its discriminator and remaining body.
func Untag(key string, data []byte) (string, []byte, error) {
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(data, &fields); err != nil {
		return "", nil, err
	}
	rawKind, ok := fields[key]
	if !ok {
		return "", nil, fmt.Errorf("missing %q", key)
	}
	var kind string
	if err := json.Unmarshal(rawKind, &kind); err != nil {
		return "", nil, fmt.Errorf("invalid %q: %w", key, err)
	}
	delete(fields, key)
	body, err := json.Marshal(fields)
	return kind, body, err
}

// DecodeStrict decodes data into v rejecting unknown fields.
func DecodeStrict(data []byte, v any) error {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.DisallowUnknownFields()
	return dec.Decode(v)
}

// DecodeAs strictly decodes body into a T.
func DecodeAs[T any](body []byte) (T, error) {
	var v T
	err := DecodeStrict(body, &v)
	return v, err
}
