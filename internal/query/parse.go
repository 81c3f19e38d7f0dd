package query

import (
	"bytes"
	"fmt"
	"slices"
	"strings"

	jsoniter "github.com/json-iterator/go"

	"github.com/roach88/docql/internal/value"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// indexSuffix marks a positional array predicate key: "items.$index".
const indexSuffix = ".$index"

// ParseJSON decodes a query document from JSON. Numbers keep their
// integer/real distinction.
func ParseJSON(data []byte) (Query, error) {
	doc, err := decodeObject(data)
	if err != nil {
		return nil, err
	}
	return Parse(doc)
}

// Parse converts a Mongo-style query document into a Query.
//
//	{"status": "active", "age": {"$gte": 18}}
//	{"$or": [{"a": 1}, {"a": 2}], "b": {"$exists": true}}
//	{"items": {"$elemMatch": {"sku": "A-1"}}}
//	{"items.$index": {"at": 0, "match": {"sku": "A-1"}}}
//
// Keys are processed in sorted order and multiple keys form an implicit And,
// so equal documents always parse to equal trees. An empty document is Empty.
func Parse(doc map[string]any) (Query, error) {
	return parseDocument(doc, false)
}

func parseDocument(doc map[string]any, elementScope bool) (Query, error) {
	keys := make([]string, 0, len(doc))
	for k := range doc {
		keys = append(keys, k)
	}
	slices.Sort(keys)

	nodes := make([]Query, 0, len(keys))
	for _, key := range keys {
		node, err := parseKey(key, doc[key], elementScope)
		if err != nil {
			return nil, err
		}
		nodes = append(nodes, node)
	}
	return combine(nodes), nil
}

func combine(nodes []Query) Query {
	switch len(nodes) {
	case 0:
		return Empty{}
	case 1:
		return nodes[0]
	default:
		return And{Children: nodes}
	}
}

func parseKey(key string, raw any, elementScope bool) (Query, error) {
	switch key {
	case "$and", "$or", "$nor":
		children, err := parseList(key, raw, elementScope)
		if err != nil {
			return nil, err
		}
		switch key {
		case "$and":
			return And{Children: children}, nil
		case "$or":
			return Or{Children: children}, nil
		default:
			return Nor{Children: children}, nil
		}
	case "$not":
		sub, ok := raw.(map[string]any)
		if !ok {
			return nil, fmt.Errorf("$not: expected an object, got %T", raw)
		}
		child, err := parseDocument(sub, elementScope)
		if err != nil {
			return nil, fmt.Errorf("$not: %w", err)
		}
		return Not{Child: child}, nil
	}

	if strings.HasSuffix(key, indexSuffix) {
		return parseIndex(strings.TrimSuffix(key, indexSuffix), raw)
	}
	if strings.HasPrefix(key, "$") {
		return nil, fmt.Errorf("unknown top-level operator %s", key)
	}
	return parseField(key, raw)
}

func parseList(key string, raw any, elementScope bool) ([]Query, error) {
	list, ok := raw.([]any)
	if !ok {
		return nil, fmt.Errorf("value for %s must be a list", key)
	}
	children := make([]Query, 0, len(list))
	for i, item := range list {
		sub, ok := item.(map[string]any)
		if !ok {
			return nil, fmt.Errorf("%s[%d]: element must be an object", key, i)
		}
		child, err := parseDocument(sub, elementScope)
		if err != nil {
			return nil, fmt.Errorf("%s[%d]: %w", key, i, err)
		}
		children = append(children, child)
	}
	return children, nil
}

// parseField handles "field": <operand> and "field": {"$op": <operand>, ...}.
func parseField(field string, raw any) (Query, error) {
	ops, isOpMap, err := operatorMap(raw)
	if err != nil {
		return nil, fmt.Errorf("field %q: %w", field, err)
	}
	if !isOpMap {
		v, err := value.FromAny(raw)
		if err != nil {
			return nil, fmt.Errorf("field %q: %w", field, err)
		}
		return Eq(field, v), nil
	}
	return parseOperators(field, ops)
}

// operatorMap reports whether raw is an object whose keys are all operators.
// Objects mixing operators and plain keys are rejected; plain objects are
// not valid operands either.
func operatorMap(raw any) (map[string]any, bool, error) {
	m, ok := raw.(map[string]any)
	if !ok {
		return nil, false, nil
	}
	if len(m) == 0 {
		return nil, false, fmt.Errorf("empty operator object")
	}
	dollar := 0
	for k := range m {
		if strings.HasPrefix(k, "$") {
			dollar++
		}
	}
	switch dollar {
	case len(m):
		return m, true, nil
	case 0:
		return nil, false, fmt.Errorf("objects are not valid operands")
	default:
		return nil, false, fmt.Errorf("operator object mixes operators and fields")
	}
}

func parseOperators(field string, ops map[string]any) (Query, error) {
	names := make([]string, 0, len(ops))
	for k := range ops {
		names = append(names, k)
	}
	slices.Sort(names)

	nodes := make([]Query, 0, len(names))
	for _, name := range names {
		node, err := parseOperator(field, name, ops[name])
		if err != nil {
			return nil, fmt.Errorf("field %q: %s: %w", field, name, err)
		}
		nodes = append(nodes, node)
	}
	return combine(nodes), nil
}

func parseOperator(field, name string, raw any) (Query, error) {
	if c := Comparator(name); c.IsValid() {
		v, err := value.FromAny(raw)
		if err != nil {
			return nil, err
		}
		if _, isList := v.(value.List); isList {
			return nil, fmt.Errorf("expected a scalar operand")
		}
		return compare(field, c, v), nil
	}
	if p := Pattern(name); p.IsValid() {
		s, ok := raw.(string)
		if !ok {
			return nil, fmt.Errorf("expected a string operand, got %T", raw)
		}
		return match(field, p, s), nil
	}

	switch name {
	case "$in", "$nin", "$all":
		vals, err := scalarList(raw)
		if err != nil {
			return nil, err
		}
		switch name {
		case "$in":
			return Where(field, InOp{Values: vals}), nil
		case "$nin":
			return Where(field, NotInOp{Values: vals}), nil
		default:
			return Where(field, AllOp{Values: vals}), nil
		}
	case "$size":
		n, err := integer(raw)
		if err != nil {
			return nil, err
		}
		return Size(field, n), nil
	case "$exists":
		b, ok := raw.(bool)
		if !ok {
			return nil, fmt.Errorf("expected a boolean operand, got %T", raw)
		}
		return Exists(field, b), nil
	case "$elemMatch":
		nested, err := parseElement(raw)
		if err != nil {
			return nil, err
		}
		return ElemMatch(field, nested), nil
	case "$not":
		ops, isOpMap, err := operatorMap(raw)
		if err != nil {
			return nil, err
		}
		if !isOpMap {
			return nil, fmt.Errorf("expected an operator object")
		}
		child, err := parseOperators(field, ops)
		if err != nil {
			return nil, err
		}
		return Negate(child), nil
	}
	return nil, fmt.Errorf("unknown operator")
}

// parseElement parses an element-scope query. An operator object applies to
// the element itself: {"$gt": 90} is shorthand for {"": {"$gt": 90}}.
func parseElement(raw any) (Query, error) {
	doc, ok := raw.(map[string]any)
	if !ok {
		return nil, fmt.Errorf("expected an object, got %T", raw)
	}
	if ops, isOpMap, _ := operatorMap(doc); isOpMap && !hasLogicalKey(ops) {
		return parseOperators("", ops)
	}
	return parseDocument(doc, true)
}

func hasLogicalKey(m map[string]any) bool {
	for k := range m {
		switch k {
		case "$and", "$or", "$nor", "$not":
			return true
		}
	}
	return false
}

func parseIndex(field string, raw any) (Query, error) {
	spec, ok := raw.(map[string]any)
	if !ok {
		return nil, fmt.Errorf("field %q: $index: expected {\"at\": n, \"match\": {...}}", field)
	}
	at, ok := spec["at"]
	if !ok {
		return nil, fmt.Errorf("field %q: $index: missing \"at\"", field)
	}
	pos, err := integer(at)
	if err != nil {
		return nil, fmt.Errorf("field %q: $index: at: %w", field, err)
	}
	var nested Query = Empty{}
	if m, ok := spec["match"]; ok {
		nested, err = parseElement(m)
		if err != nil {
			return nil, fmt.Errorf("field %q: $index: match: %w", field, err)
		}
	}
	return Index(field, pos, nested), nil
}

func scalarList(raw any) (value.List, error) {
	items, ok := raw.([]any)
	if !ok {
		return nil, fmt.Errorf("expected a list operand, got %T", raw)
	}
	out := make(value.List, len(items))
	for i, item := range items {
		v, err := value.FromAny(item)
		if err != nil {
			return nil, fmt.Errorf("[%d]: %w", i, err)
		}
		if _, isList := v.(value.List); isList {
			return nil, fmt.Errorf("[%d]: nested lists are not valid operands", i)
		}
		out[i] = v
	}
	return out, nil
}

func integer(raw any) (int64, error) {
	v, err := value.FromAny(raw)
	if err != nil {
		return 0, err
	}
	n, ok := v.(value.Integer)
	if !ok {
		return 0, fmt.Errorf("expected an integer, got %s", value.KindOf(v))
	}
	return int64(n), nil
}

func decodeObject(data []byte) (map[string]any, error) {
	var doc map[string]any
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	if err := dec.Decode(&doc); err != nil {
		return nil, fmt.Errorf("decode query document: %w", err)
	}
	if doc == nil {
		return map[string]any{}, nil
	}
	return doc, nil
}

// ParseOptionsJSON decodes an options document from JSON.
func ParseOptionsJSON(data []byte) (Options, error) {
	doc, err := decodeObject(data)
	if err != nil {
		return Options{}, err
	}
	return ParseOptions(doc)
}

// ParseOptions decodes an options document:
//
//	{"sort": [{"field": "createdAt", "dir": "desc"}], "limit": 20, "skip": 0,
//	 "after": {"values": ["2024-01-01"], "id": "doc-1"}}
func ParseOptions(doc map[string]any) (Options, error) {
	var opts Options
	for key, raw := range doc {
		var err error
		switch key {
		case "sort":
			opts.Sort, err = parseSort(raw)
		case "limit":
			opts.Limit, err = nonNegative(raw)
		case "skip":
			opts.Skip, err = nonNegative(raw)
		case "after":
			opts.After, err = parseCursor(raw)
		case "before":
			opts.Before, err = parseCursor(raw)
		default:
			err = fmt.Errorf("unknown option")
		}
		if err != nil {
			return Options{}, fmt.Errorf("options: %s: %w", key, err)
		}
	}
	return opts, nil
}

func parseSort(raw any) ([]SortField, error) {
	items, ok := raw.([]any)
	if !ok {
		return nil, fmt.Errorf("expected a list")
	}
	out := make([]SortField, 0, len(items))
	for i, item := range items {
		switch s := item.(type) {
		case string:
			// "-createdAt" is shorthand for descending.
			if rest, found := strings.CutPrefix(s, "-"); found {
				out = append(out, Descending(rest))
			} else {
				out = append(out, Ascending(s))
			}
		case map[string]any:
			field, _ := s["field"].(string)
			if field == "" {
				return nil, fmt.Errorf("[%d]: missing field", i)
			}
			dirRaw, _ := s["dir"].(string)
			dir, err := ParseDirection(dirRaw)
			if err != nil {
				return nil, fmt.Errorf("[%d]: %w", i, err)
			}
			out = append(out, SortField{Field: field, Direction: dir})
		default:
			return nil, fmt.Errorf("[%d]: expected a string or object", i)
		}
	}
	return out, nil
}

func nonNegative(raw any) (int64, error) {
	n, err := integer(raw)
	if err != nil {
		return 0, err
	}
	if n < 0 {
		return 0, fmt.Errorf("must not be negative")
	}
	return n, nil
}

func parseCursor(raw any) (*Cursor, error) {
	m, ok := raw.(map[string]any)
	if !ok {
		return nil, fmt.Errorf("expected {\"values\": [...], \"id\": ...}")
	}
	id, ok := m["id"].(string)
	if !ok {
		return nil, fmt.Errorf("missing string id")
	}
	var vals []value.Value
	if rawVals, present := m["values"]; present {
		list, err := scalarList(rawVals)
		if err != nil {
			return nil, fmt.Errorf("values: %w", err)
		}
		vals = list
	}
	return &Cursor{Values: vals, ID: id}, nil
}
