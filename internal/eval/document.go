package eval

import (
	"bytes"
	stdjson "encoding/json"
	"fmt"
	"regexp"
	"slices"
	"strconv"

	jsoniter "github.com/json-iterator/go"

	"github.com/roach88/docql/internal/value"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// Document is a stored document: its id and its decoded JSON body.
//
// Body nodes are nil, bool, string, value.Integer, value.Real, []any or
// map[string]any. Numbers follow SQLite's JSON reader: a literal with a
// fraction or exponent is real, any other literal is an integer.
type Document struct {
	ID   string
	Body map[string]any
}

// ParseDocument decodes a JSON object body.
func ParseDocument(id string, data []byte) (Document, error) {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	var raw any
	if err := dec.Decode(&raw); err != nil {
		return Document{}, fmt.Errorf("document %q: %w", id, err)
	}
	obj, ok := raw.(map[string]any)
	if !ok {
		return Document{}, fmt.Errorf("document %q: body must be a JSON object", id)
	}
	body, err := normalize(obj)
	if err != nil {
		return Document{}, fmt.Errorf("document %q: %w", id, err)
	}
	return Document{ID: id, Body: body.(map[string]any)}, nil
}

// NewDocument encodes body as JSON and decodes it again, so the document
// sees exactly what a JSON column would store.
func NewDocument(id string, body any) (Document, error) {
	data, err := json.Marshal(body)
	if err != nil {
		return Document{}, fmt.Errorf("document %q: %w", id, err)
	}
	return ParseDocument(id, data)
}

// MustDocument is NewDocument for test fixtures; it panics on error.
func MustDocument(id string, body any) Document {
	d, err := NewDocument(id, body)
	if err != nil {
		panic(err)
	}
	return d
}

func normalize(node any) (any, error) {
	switch n := node.(type) {
	case nil, bool, string:
		return n, nil
	case stdjson.Number:
		return value.FromAny(n)
	case []any:
		out := make([]any, len(n))
		for i, elem := range n {
			v, err := normalize(elem)
			if err != nil {
				return nil, err
			}
			out[i] = v
		}
		return out, nil
	case map[string]any:
		out := make(map[string]any, len(n))
		for k, elem := range n {
			v, err := normalize(elem)
			if err != nil {
				return nil, err
			}
			out[k] = v
		}
		return out, nil
	default:
		return nil, fmt.Errorf("unexpected JSON node %T", node)
	}
}

// sqlOf is the SQL value json_extract (or json_each's value column) yields
// for a node.
func sqlOf(node any) value.Value {
	switch n := node.(type) {
	case nil:
		return value.Null{}
	case bool:
		if n {
			return value.Integer(1)
		}
		return value.Integer(0)
	case string:
		return value.Text(n)
	case value.Integer:
		return n
	case value.Real:
		return n
	default:
		data, err := json.Marshal(plain(node))
		if err != nil {
			return value.Null{}
		}
		return value.Text(data)
	}
}

// plain converts a node back to encodable Go values.
func plain(node any) any {
	switch n := node.(type) {
	case value.Integer:
		return int64(n)
	case value.Real:
		return float64(n)
	case []any:
		out := make([]any, len(n))
		for i, elem := range n {
			out[i] = plain(elem)
		}
		return out
	case map[string]any:
		out := make(map[string]any, len(n))
		for k, elem := range n {
			out[k] = plain(elem)
		}
		return out
	}
	return node
}

// segment is one step of a JSON path: a member name or an array index.
type segment struct {
	name  string
	index int
	isIdx bool
}

var segmentPattern = regexp.MustCompile(`\.([A-Za-z_][A-Za-z0-9_-]*)|\[([0-9]+)\]`)

// parsePath splits a validated "$.a[0].b" path into segments.
func parsePath(path string) []segment {
	var segs []segment
	for _, m := range segmentPattern.FindAllStringSubmatch(path, -1) {
		if m[1] != "" {
			segs = append(segs, segment{name: m[1]})
			continue
		}
		i, _ := strconv.Atoi(m[2])
		segs = append(segs, segment{index: i, isIdx: true})
	}
	return segs
}

// walk follows segs from node. present is false when any step is missing,
// which is when json_type returns NULL.
func walk(node any, segs []segment) (any, bool) {
	for _, s := range segs {
		if s.isIdx {
			arr, ok := node.([]any)
			if !ok || s.index >= len(arr) {
				return nil, false
			}
			node = arr[s.index]
			continue
		}
		obj, ok := node.(map[string]any)
		if !ok {
			return nil, false
		}
		node, ok = obj[s.name]
		if !ok {
			return nil, false
		}
	}
	return node, true
}

// row is one row of json_each.
type row struct {
	key  value.Value
	node any
}

// eachRows lists what json_each yields for a node: array elements keyed by
// position, object members keyed by name, and a single keyless row for a
// scalar. A missing node yields nothing.
func eachRows(node any, present bool) []row {
	if !present {
		return nil
	}
	switch n := node.(type) {
	case []any:
		rows := make([]row, len(n))
		for i, elem := range n {
			rows[i] = row{key: value.Integer(i), node: elem}
		}
		return rows
	case map[string]any:
		keys := make([]string, 0, len(n))
		for k := range n {
			keys = append(keys, k)
		}
		slices.Sort(keys)
		rows := make([]row, len(keys))
		for i, k := range keys {
			rows[i] = row{key: value.Text(k), node: n[k]}
		}
		return rows
	default:
		return []row{{key: value.Null{}, node: node}}
	}
}

// arrayLength is json_array_length: NULL when missing, 0 for non-arrays.
func arrayLength(node any, present bool) value.Value {
	if !present {
		return value.Null{}
	}
	if arr, ok := node.([]any); ok {
		return value.Integer(len(arr))
	}
	return value.Integer(0)
}
