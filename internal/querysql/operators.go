package querysql

import (
	"strings"

	"github.com/roach88/docql/internal/query"
	"github.com/roach88/docql/internal/value"
)

var comparators = map[query.Comparator]string{
	query.CmpEq:  "=",
	query.CmpNe:  "!=",
	query.CmpGt:  ">",
	query.CmpGte: ">=",
	query.CmpLt:  "<",
	query.CmpLte: "<=",
}

// fieldOp compiles one operator against one resolved field.
func (t *translation) fieldOp(f query.FieldOp, sc scope, depth int) (fragment, error) {
	if f.Op == nil {
		return fragment{}, newError(InvalidOperand, f.Field, "nil operator")
	}
	addr, err := t.resolve(f.Field, sc)
	if err != nil {
		return fragment{}, err
	}

	switch op := f.Op.(type) {
	case query.CompareOp:
		return compare(addr, op)
	case query.InOp:
		return membership(addr, op.Values, false)
	case query.NotInOp:
		return membership(addr, op.Values, true)
	case query.MatchOp:
		return match(addr, op)
	case query.AllOp:
		if err := checkArrayTarget(addr, op); err != nil {
			return fragment{}, err
		}
		return all(addr, op.Values)
	case query.SizeOp:
		if err := checkArrayTarget(addr, op); err != nil {
			return fragment{}, err
		}
		if op.Len < 0 {
			return fragment{}, newError(InvalidOperand, addr.field, "negative $size %d", op.Len)
		}
		return fragment{
			sql:    jsonFn("json_array_length", addr.path) + " = ?",
			params: []value.Value{value.Integer(op.Len)},
		}, nil
	case query.ElemMatchOp:
		if err := checkArrayTarget(addr, op); err != nil {
			return fragment{}, err
		}
		return t.elemMatch(addr, op.Query, nil, depth)
	case query.IndexOp:
		if err := checkArrayTarget(addr, op); err != nil {
			return fragment{}, err
		}
		if op.Position < 0 {
			return fragment{}, newError(InvalidOperand, addr.field, "negative $index %d", op.Position)
		}
		pos := value.Integer(op.Position)
		return t.elemMatch(addr, op.Query, &pos, depth)
	case query.ExistsOp:
		return exists(addr, op.Present), nil
	default:
		return fragment{}, newError(UnknownOperatorCombination, f.Field, "unsupported operator %T", f.Op)
	}
}

// scalar checks that v can be bound to a single placeholder.
func scalar(field, opName string, v value.Value) (value.Value, error) {
	switch v.(type) {
	case nil:
		return value.Null{}, nil
	case value.List:
		return nil, newError(InvalidOperand, field, "%s takes a scalar operand, got a list", opName)
	}
	return v, nil
}

// compare emits "<addr> <op> ?". Comparisons with NULL use IS / IS NOT so
// that Eq(null) and Ne(null) behave; ordering comparisons with NULL stay
// unknown, as in SQL.
func compare(addr address, op query.CompareOp) (fragment, error) {
	sqlOp, ok := comparators[op.Op]
	if !ok {
		return fragment{}, newError(UnknownOperatorCombination, addr.field, "unknown comparator %q", op.Op)
	}
	v, err := scalar(addr.field, op.Name(), op.Value)
	if err != nil {
		return fragment{}, err
	}
	if value.IsNull(v) {
		switch op.Op {
		case query.CmpEq:
			sqlOp = "IS"
		case query.CmpNe:
			sqlOp = "IS NOT"
		}
	}
	return fragment{sql: addr.expr + " " + sqlOp + " ?", params: []value.Value{v}}, nil
}

// membership emits IN / NOT IN. Empty lists become constant fragments:
// nothing is in the empty set, everything is outside it.
func membership(addr address, vals value.List, negate bool) (fragment, error) {
	if len(vals) == 0 {
		if negate {
			return literal(sqlTrue), nil
		}
		return literal(sqlFalse), nil
	}

	params := make([]value.Value, len(vals))
	for i, v := range vals {
		s, err := scalar(addr.field, "$in", v)
		if err != nil {
			return fragment{}, err
		}
		params[i] = s
	}

	kw := " IN ("
	if negate {
		kw = " NOT IN ("
	}
	return fragment{
		sql:    addr.expr + kw + placeholders(len(vals)) + ")",
		params: params,
	}, nil
}

// match emits LIKE. ILike adds COLLATE NOCASE so case folding does not
// depend on the column's collation. Operands are not escaped: % and _ in a
// Contains/StartsWith/EndsWith operand act as wildcards.
func match(addr address, op query.MatchOp) (fragment, error) {
	if !op.Op.IsValid() {
		return fragment{}, newError(UnknownOperatorCombination, addr.field, "unknown string operator %q", op.Op)
	}
	sql := addr.expr + " LIKE ?"
	if op.CaseInsensitive() {
		sql += " COLLATE NOCASE"
	}
	return fragment{sql: sql, params: []value.Value{value.Text(op.LikePattern())}}, nil
}

// checkArrayTarget rejects array operators on fields that cannot hold a JSON
// array: the primary key and declared fields of non text-like types.
func checkArrayTarget(addr address, op query.Operator) error {
	if addr.path == "" {
		return newError(UnknownOperatorCombination, addr.field, "%s cannot target the primary key", op.Name())
	}
	if addr.decl != nil && !addr.decl.Type.SupportsArrayOps() {
		return newError(UnknownOperatorCombination, addr.field,
			"%s requires an array-compatible field, declared %s", op.Name(), addr.decl.Type)
	}
	return nil
}

// all emits one EXISTS check per required value, ANDed together.
func all(addr address, vals value.List) (fragment, error) {
	if len(vals) == 0 {
		return literal(sqlTrue), nil
	}

	parts := make([]string, len(vals))
	params := make([]value.Value, len(vals))
	check := "EXISTS (SELECT 1 FROM " + jsonFn("json_each", addr.path) + " WHERE value = ?)"
	for i, v := range vals {
		s, err := scalar(addr.field, "$all", v)
		if err != nil {
			return fragment{}, err
		}
		parts[i] = check
		params[i] = s
	}

	frag := fragment{sql: strings.Join(parts, " AND "), params: params}
	if len(parts) > 1 {
		frag.class = compound
	}
	return frag, nil
}

// elemMatch emits a correlated EXISTS over json_each with the nested query
// translated in element scope. With pos set, the row's key must equal pos;
// the position parameter precedes the nested parameters.
func (t *translation) elemMatch(addr address, nested query.Query, pos *value.Integer, depth int) (fragment, error) {
	if nested == nil {
		return fragment{}, newError(InvalidQuery, addr.field, "array operator without a nested query")
	}
	alias := t.nextAlias()
	inner, err := t.query(nested, scope{alias: alias}, depth+1)
	if err != nil {
		return fragment{}, err
	}

	var where string
	var params []value.Value
	if pos != nil {
		where = alias + ".key = ? AND " + inner.wrapped()
		params = append([]value.Value{*pos}, inner.params...)
	} else {
		where = inner.sql
		params = inner.params
	}

	return fragment{
		sql:    "EXISTS (SELECT 1 FROM " + jsonFn("json_each", addr.path) + " AS " + alias + " WHERE " + where + ")",
		params: params,
	}, nil
}

// exists tests the JSON member with json_type, which is NULL only for
// absent members; a member holding JSON null reports 'null'.
func exists(addr address, present bool) fragment {
	if addr.path == "" {
		// Every row has a primary key.
		if present {
			return literal(sqlTrue)
		}
		return literal(sqlFalse)
	}
	sql := jsonFn("json_type", addr.path) + " IS NULL"
	if present {
		sql = jsonFn("json_type", addr.path) + " IS NOT NULL"
	}
	return fragment{sql: sql}
}

func placeholders(n int) string {
	return strings.TrimSuffix(strings.Repeat("?,", n), ",")
}
