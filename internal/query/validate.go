package query

import (
	"fmt"
	"strings"

	"github.com/roach88/docql/internal/value"
)

// MaxDepth bounds query nesting. Translators reject deeper trees.
const MaxDepth = 64

// ValidationResult contains the structural problems found in a query.
type ValidationResult struct {
	// Valid is true when Problems is empty.
	Valid bool

	// Problems lists every structural defect, in traversal order.
	Problems []string
}

// String formats the result for CLI output.
func (r ValidationResult) String() string {
	if r.Valid {
		return "valid"
	}
	return fmt.Sprintf("invalid: %s", strings.Join(r.Problems, "; "))
}

// Validate checks a query tree for structural defects:
//  1. nil children and nil operators
//  2. empty field names outside element scope
//  3. nesting deeper than MaxDepth
//  4. operators whose operands cannot be bound (lists on scalar
//     comparisons, negative Size or Index positions)
//
// Field-name syntax and schema compatibility are checked by the
// translator, which knows the schema. Validate is a pure function.
func Validate(q Query) ValidationResult {
	v := &validator{
		problems: []string{},
	}
	v.validateQuery(q, 1, false)

	return ValidationResult{
		Valid:    len(v.problems) == 0,
		Problems: v.problems,
	}
}

// validator accumulates problems during traversal.
type validator struct {
	problems []string
	tooDeep  bool
}

func (v *validator) addProblem(format string, args ...any) {
	v.problems = append(v.problems, fmt.Sprintf(format, args...))
}

func (v *validator) validateQuery(q Query, depth int, elementScope bool) {
	if depth > MaxDepth {
		// Report once; the subtree below is not walked.
		if !v.tooDeep {
			v.tooDeep = true
			v.addProblem("query nesting exceeds %d levels", MaxDepth)
		}
		return
	}
	if q == nil {
		v.addProblem("nil query node")
		return
	}

	switch n := q.(type) {
	case Empty:
	case FieldOp:
		v.validateFieldOp(n, depth, elementScope)
	case And:
		v.validateChildren("and", n.Children, depth, elementScope)
	case Or:
		v.validateChildren("or", n.Children, depth, elementScope)
	case Nor:
		v.validateChildren("nor", n.Children, depth, elementScope)
	case Not:
		if n.Child == nil {
			v.addProblem("not: nil child")
			return
		}
		v.validateQuery(n.Child, depth+1, elementScope)
	default:
		v.addProblem("unknown query type %T", q)
	}
}

func (v *validator) validateChildren(kind string, children []Query, depth int, elementScope bool) {
	for i, c := range children {
		if c == nil {
			v.addProblem("%s: nil child at %d", kind, i)
			continue
		}
		v.validateQuery(c, depth+1, elementScope)
	}
}

func (v *validator) validateFieldOp(f FieldOp, depth int, elementScope bool) {
	if f.Field == "" && !elementScope {
		v.addProblem("empty field name outside $elemMatch/$index")
	}
	if f.Op == nil {
		v.addProblem("field %q: nil operator", f.Field)
		return
	}

	switch op := f.Op.(type) {
	case CompareOp:
		if !op.Op.IsValid() {
			v.addProblem("field %q: unknown comparator %q", f.Field, op.Op)
		}
		if _, isList := op.Value.(value.List); isList {
			v.addProblem("field %q: %s takes a scalar, got a list", f.Field, op.Op)
		}
	case MatchOp:
		if !op.Op.IsValid() {
			v.addProblem("field %q: unknown string operator %q", f.Field, op.Op)
		}
	case InOp:
		v.validateScalars(f.Field, op.Name(), op.Values)
	case NotInOp:
		v.validateScalars(f.Field, op.Name(), op.Values)
	case AllOp:
		v.validateScalars(f.Field, op.Name(), op.Values)
	case SizeOp:
		if op.Len < 0 {
			v.addProblem("field %q: negative $size %d", f.Field, op.Len)
		}
	case IndexOp:
		if op.Position < 0 {
			v.addProblem("field %q: negative $index %d", f.Field, op.Position)
		}
		v.validateNested(f.Field, op.Name(), op.Query, depth)
	case ElemMatchOp:
		v.validateNested(f.Field, op.Name(), op.Query, depth)
	case ExistsOp:
	}
}

func (v *validator) validateScalars(field, name string, vals value.List) {
	for i, x := range vals {
		switch x.(type) {
		case nil:
			v.addProblem("field %q: %s value %d is nil", field, name, i)
		case value.List:
			v.addProblem("field %q: %s value %d is a list", field, name, i)
		}
	}
}

func (v *validator) validateNested(field, name string, nested Query, depth int) {
	if nested == nil {
		v.addProblem("field %q: %s without a nested query", field, name)
		return
	}
	v.validateQuery(nested, depth+1, true)
}
