package eval

import (
	"errors"
	"fmt"

	"github.com/roach88/docql/internal/query"
	"github.com/roach88/docql/internal/schema"
	"github.com/roach88/docql/internal/value"
)

// ErrInvalidQuery is wrapped by every error about the query itself.
var ErrInvalidQuery = errors.New("eval: invalid query")

func invalid(field, format string, args ...any) error {
	msg := fmt.Sprintf(format, args...)
	if field != "" {
		return fmt.Errorf("%w: field %q: %s", ErrInvalidQuery, field, msg)
	}
	return fmt.Errorf("%w: %s", ErrInvalidQuery, msg)
}

// Evaluator matches documents against queries for one schema.
type Evaluator struct {
	schema *schema.Schema
	paths  map[string][]segment
}

// New returns an Evaluator for s. A nil schema treats every field as
// undeclared.
func New(s *schema.Schema) *Evaluator {
	if s == nil {
		s = schema.MustNew(nil, nil)
	}
	e := &Evaluator{schema: s, paths: make(map[string][]segment)}
	for _, f := range s.Fields() {
		e.paths[f.Name] = parsePath(f.Path)
	}
	return e
}

// Match evaluates q against doc.
func (e *Evaluator) Match(doc Document, q query.Query) (Truth, error) {
	if err := e.check(q, false, 1); err != nil {
		return Unknown, err
	}
	return e.eval(doc, q, nil), nil
}

// Match is shorthand for New(s).Match(doc, q).
func Match(s *schema.Schema, doc Document, q query.Query) (Truth, error) {
	return New(s).Match(doc, q)
}

// check rejects the trees the translator rejects, before any document is
// looked at, so errors do not depend on the data.
func (e *Evaluator) check(q query.Query, elem bool, depth int) error {
	if depth > query.MaxDepth {
		return invalid("", "query nesting exceeds %d levels", query.MaxDepth)
	}
	switch n := q.(type) {
	case nil:
		return invalid("", "nil query node")
	case query.Empty:
		return nil
	case query.And:
		return e.checkAll(n.Children, elem, depth)
	case query.Or:
		return e.checkAll(n.Children, elem, depth)
	case query.Nor:
		return e.checkAll(n.Children, elem, depth)
	case query.Not:
		return e.check(n.Child, elem, depth+1)
	case query.FieldOp:
		return e.checkFieldOp(n, elem, depth)
	default:
		return invalid("", "unsupported query type %T", q)
	}
}

func (e *Evaluator) checkAll(children []query.Query, elem bool, depth int) error {
	for _, c := range children {
		if err := e.check(c, elem, depth+1); err != nil {
			return err
		}
	}
	return nil
}

func (e *Evaluator) checkFieldOp(f query.FieldOp, elem bool, depth int) error {
	if f.Op == nil {
		return invalid(f.Field, "nil operator")
	}
	switch {
	case elem && f.Field == "":
	case f.Field == "":
		return invalid(f.Field, "empty field name outside element scope")
	case !elem && f.Field == schema.IDColumn:
	default:
		if err := schema.ValidateFieldName(f.Field); err != nil {
			return invalid(f.Field, "%v", err)
		}
	}

	isArrayOp := false
	switch op := f.Op.(type) {
	case query.CompareOp:
		if _, isList := op.Value.(value.List); isList {
			return invalid(f.Field, "%s takes a scalar operand", op.Name())
		}
	case query.InOp:
		return checkScalars(f.Field, op.Values)
	case query.NotInOp:
		return checkScalars(f.Field, op.Values)
	case query.MatchOp:
		if !op.Op.IsValid() {
			return invalid(f.Field, "unknown string operator %q", op.Op)
		}
	case query.AllOp:
		isArrayOp = true
		if err := checkScalars(f.Field, op.Values); err != nil {
			return err
		}
	case query.SizeOp:
		isArrayOp = true
		if op.Len < 0 {
			return invalid(f.Field, "negative $size %d", op.Len)
		}
	case query.ElemMatchOp, query.IndexOp:
		isArrayOp = true
	case query.ExistsOp:
	default:
		return invalid(f.Field, "unsupported operator %T", f.Op)
	}

	if isArrayOp && !elem {
		if f.Field == schema.IDColumn {
			return invalid(f.Field, "%s cannot target the primary key", f.Op.Name())
		}
		if decl, ok := e.schema.Field(f.Field); ok && !decl.Type.SupportsArrayOps() {
			return invalid(f.Field, "%s requires an array-compatible field", f.Op.Name())
		}
	}

	switch op := f.Op.(type) {
	case query.ElemMatchOp:
		if op.Query == nil {
			return invalid(f.Field, "array operator without a nested query")
		}
		return e.check(op.Query, true, depth+1)
	case query.IndexOp:
		if op.Position < 0 {
			return invalid(f.Field, "negative $index %d", op.Position)
		}
		if op.Query == nil {
			return invalid(f.Field, "array operator without a nested query")
		}
		return e.check(op.Query, true, depth+1)
	}
	return nil
}

func checkScalars(field string, vals value.List) error {
	for _, v := range vals {
		if _, isList := v.(value.List); isList {
			return invalid(field, "list operands must hold scalars")
		}
	}
	return nil
}

// operand is a resolved field: the value the SQL expression reads and the
// JSON node behind it.
type operand struct {
	val value.Value
	// aff is the affinity of the expression. Only generated columns and the
	// primary key have one; AffinityBlob means none.
	aff     schema.Affinity
	node    any
	present bool
	id      bool
}

// resolve reads field from doc, or from the json_each row elem when inside
// ElemMatch/Index.
func (e *Evaluator) resolve(doc Document, field string, elem *row) operand {
	if elem != nil {
		node, present := elem.node, true
		if field != "" {
			node, present = walk(elem.node, parsePath("$"+schema.RelativePath(field)))
		}
		return operand{val: extracted(node, present), node: node, present: present}
	}

	if field == schema.IDColumn {
		return operand{val: value.Text(doc.ID), aff: schema.AffinityText, id: true}
	}

	segs, declared := e.paths[field]
	if !declared {
		segs = parsePath(schema.DefaultPath(field))
	}
	node, present := walk(doc.Body, segs)
	op := operand{val: extracted(node, present), node: node, present: present}
	if decl, ok := e.schema.Field(field); ok && decl.Indexed {
		op.aff = decl.Type.Affinity()
		op.val = stored(op.aff, op.val)
	}
	return op
}

func extracted(node any, present bool) value.Value {
	if !present {
		return value.Null{}
	}
	return sqlOf(node)
}

func (e *Evaluator) eval(doc Document, q query.Query, elem *row) Truth {
	switch n := q.(type) {
	case query.Empty:
		return True
	case query.FieldOp:
		return e.fieldOp(doc, n, elem)
	case query.And:
		out := True
		for _, c := range n.Children {
			out = out.And(e.eval(doc, c, elem))
		}
		return out
	case query.Or:
		return e.any(doc, n.Children, elem)
	case query.Nor:
		return e.any(doc, n.Children, elem).Not()
	case query.Not:
		return e.eval(doc, n.Child, elem).Not()
	}
	return Unknown
}

func (e *Evaluator) any(doc Document, children []query.Query, elem *row) Truth {
	out := False
	for _, c := range children {
		out = out.Or(e.eval(doc, c, elem))
	}
	return out
}

func (e *Evaluator) fieldOp(doc Document, f query.FieldOp, elem *row) Truth {
	x := e.resolve(doc, f.Field, elem)

	switch op := f.Op.(type) {
	case query.CompareOp:
		return compareOp(x, op.Op, param(op.Value))
	case query.InOp:
		return in(x, op.Values)
	case query.NotInOp:
		return in(x, op.Values).Not()
	case query.MatchOp:
		s, ok := textOf(x.val)
		if !ok {
			return Unknown
		}
		return truthOf(like(op.LikePattern(), s))
	case query.AllOp:
		rows := eachRows(x.node, x.present)
		for _, v := range op.Values {
			if !containsValue(rows, param(v)) {
				return False
			}
		}
		return True
	case query.SizeOp:
		return compareOp(operand{val: arrayLength(x.node, x.present)}, query.CmpEq, value.Integer(op.Len))
	case query.ElemMatchOp:
		for _, r := range eachRows(x.node, x.present) {
			if e.eval(doc, op.Query, &r) == True {
				return True
			}
		}
		return False
	case query.IndexOp:
		for _, r := range eachRows(x.node, x.present) {
			at := compareOp(operand{val: r.key}, query.CmpEq, value.Integer(op.Position))
			if at.And(e.eval(doc, op.Query, &r)) == True {
				return True
			}
		}
		return False
	case query.ExistsOp:
		if x.id {
			return truthOf(op.Present)
		}
		return truthOf(x.present == op.Present)
	}
	return Unknown
}

// compareOp evaluates "x <op> ?". Equality against NULL is IS / IS NOT.
func compareOp(x operand, c query.Comparator, v value.Value) Truth {
	if value.IsNull(v) {
		switch c {
		case query.CmpEq:
			return truthOf(value.IsNull(x.val))
		case query.CmpNe:
			return truthOf(!value.IsNull(x.val))
		}
		return Unknown
	}
	if value.IsNull(x.val) {
		return Unknown
	}

	d := compareValues(x.val, coerce(x.aff, v))
	switch c {
	case query.CmpEq:
		return truthOf(d == 0)
	case query.CmpNe:
		return truthOf(d != 0)
	case query.CmpGt:
		return truthOf(d > 0)
	case query.CmpGte:
		return truthOf(d >= 0)
	case query.CmpLt:
		return truthOf(d < 0)
	case query.CmpLte:
		return truthOf(d <= 0)
	}
	return Unknown
}

// in evaluates "x IN (...)": True on a match, otherwise Unknown when x or
// any candidate is NULL. The empty list is False.
func in(x operand, vals value.List) Truth {
	if len(vals) == 0 {
		return False
	}
	if value.IsNull(x.val) {
		return Unknown
	}
	out := False
	for _, v := range vals {
		v = param(v)
		if value.IsNull(v) {
			out = out.Or(Unknown)
			continue
		}
		if compareValues(x.val, coerce(x.aff, v)) == 0 {
			return True
		}
	}
	return out
}

// containsValue is EXISTS (SELECT 1 FROM json_each(...) WHERE value = ?).
func containsValue(rows []row, v value.Value) bool {
	if value.IsNull(v) {
		return false
	}
	for _, r := range rows {
		rv := sqlOf(r.node)
		if !value.IsNull(rv) && compareValues(rv, v) == 0 {
			return true
		}
	}
	return false
}
