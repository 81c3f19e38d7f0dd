package store

import (
	"bytes"
	"fmt"

	jsoniter "github.com/json-iterator/go"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// Document is a stored document.
type Document struct {
	ID   string
	Body jsoniter.RawMessage
}

// Decode unmarshals the body into v.
func (d Document) Decode(v any) error {
	if err := json.Unmarshal(d.Body, v); err != nil {
		return fmt.Errorf("decode document %q: %w", d.ID, err)
	}
	return nil
}

// Map decodes the body into a generic object. Numbers decode as json.Number
// so integers survive unchanged.
func (d Document) Map() (map[string]any, error) {
	dec := json.NewDecoder(bytes.NewReader(d.Body))
	dec.UseNumber()
	var m map[string]any
	if err := dec.Decode(&m); err != nil {
		return nil, fmt.Errorf("decode document %q: %w", d.ID, err)
	}
	return m, nil
}

// marshalBody encodes a document body. Raw JSON ([]byte, RawMessage,
// string) is stored as given once checked; anything else is marshaled.
// Bodies must be JSON objects.
func marshalBody(body any) (string, error) {
	var data []byte
	switch b := body.(type) {
	case []byte:
		data = b
	case jsoniter.RawMessage:
		data = b
	case string:
		data = []byte(b)
	default:
		var err error
		if data, err = json.Marshal(body); err != nil {
			return "", fmt.Errorf("marshal body: %w", err)
		}
	}

	data = bytes.TrimSpace(data)
	if !json.Valid(data) {
		return "", fmt.Errorf("marshal body: invalid JSON")
	}
	if len(data) == 0 || data[0] != '{' {
		return "", fmt.Errorf("marshal body: body must be a JSON object")
	}
	return string(data), nil
}
