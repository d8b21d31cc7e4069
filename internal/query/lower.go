package query

import (
	"fmt"
	"strings"
)

// Compiled is a boolean SQL fragment, safe to splice into a WHERE clause
// already scoped to a `file` row alias, plus its positional arguments.
type Compiled struct {
	SQL  string
	Args []any
}

// Lower compiles expr into a Compiled boolean fragment evaluated against
// a row aliased `file`, per spec §4.7's normative lowering rules:
// tag()/bare-name/pattern searches expand through the impl table's
// transitive closure via a recursive CTE, unary not negates the
// fragment (or the comparison operator when the operand is itself a
// single comparison), and/or become SQL AND/OR, and value() comparisons
// read the value name through a subquery on the value table, cast to
// REAL when the other side is a numeric literal.
func Lower(expr Expr) (Compiled, error) {
	return lowerBool(expr)
}

func lowerBool(expr Expr) (Compiled, error) {
	switch e := expr.(type) {
	case ParenExpr:
		inner, err := lowerBool(e.Inner)
		if err != nil {
			return Compiled{}, err
		}
		return Compiled{SQL: "(" + inner.SQL + ")", Args: inner.Args}, nil

	case UnaryExpr:
		// Negating a single comparison flips its operator instead of
		// wrapping in NOT, matching ComparisonOp.Negate's purpose.
		if cmp, ok := e.Operand.(ComparisonExpr); ok {
			negated := cmp
			negated.Op = cmp.Op.Negate()
			return lowerBool(negated)
		}
		inner, err := lowerBool(e.Operand)
		if err != nil {
			return Compiled{}, err
		}
		return Compiled{SQL: "NOT (" + inner.SQL + ")", Args: inner.Args}, nil

	case LogicalExpr:
		lhs, err := lowerBool(e.LHS)
		if err != nil {
			return Compiled{}, err
		}
		rhs, err := lowerBool(e.RHS)
		if err != nil {
			return Compiled{}, err
		}
		joiner := " AND "
		if e.Op == OpOr {
			joiner = " OR "
		}
		args := append(append([]any{}, lhs.Args...), rhs.Args...)
		return Compiled{SQL: "(" + lhs.SQL + joiner + rhs.SQL + ")", Args: args}, nil

	case ConditionalExpr:
		return lowerConditional(e)

	case ComparisonExpr:
		return lowerComparison(e)

	case ValueExpr:
		return tagClosureExists(nameExact(e.Text))

	case PatternExpr:
		return tagClosureExists(namePattern(e.Search))

	case FunctionCallExpr:
		return lowerFunctionBool(e)

	case LiteralExpr:
		if e.Lit.Kind == LitBool {
			if e.Lit.Bool {
				return Compiled{SQL: "1=1"}, nil
			}
			return Compiled{SQL: "1=0"}, nil
		}
	}
	return Compiled{}, fmt.Errorf("query: expression does not lower to a boolean predicate: %T", expr)
}

func lowerConditional(e ConditionalExpr) (Compiled, error) {
	cond, err := lowerBool(e.Cond)
	if err != nil {
		return Compiled{}, err
	}
	ifTrue, err := lowerBool(e.IfT)
	if err != nil {
		return Compiled{}, err
	}
	ifFalse, err := lowerBool(e.IfF)
	if err != nil {
		return Compiled{}, err
	}
	// unless inverts the condition; ternary and if share the same shape.
	condSQL := cond.SQL
	if e.Kind == CondUnless {
		condSQL = "NOT (" + condSQL + ")"
	}
	args := append(append(append([]any{}, cond.Args...), ifTrue.Args...), ifFalse.Args...)
	sql := fmt.Sprintf("((%s) AND (%s)) OR ((NOT (%s)) AND (%s))", condSQL, ifTrue.SQL, condSQL, ifFalse.SQL)
	return Compiled{SQL: sql, Args: args}, nil
}

func lowerFunctionBool(e FunctionCallExpr) (Compiled, error) {
	switch e.Fn {
	case FnTag, FnImplied, FnImplies:
		// implies/implied are treated as closure membership, same as
		// tag(): the transitive closure already folds in both
		// directions reachable from a file's explicit tags.
		pred, err := namePredicateFor(e.Term)
		if err != nil {
			return Compiled{}, err
		}
		return tagClosureExists(pred)

	case FnHash:
		val, args, err := lowerScalar(e.Term)
		if err != nil {
			return Compiled{}, err
		}
		return Compiled{SQL: "file.hash = " + val, Args: args}, nil

	case FnBefore:
		val, args, err := lowerScalar(e.Term)
		if err != nil {
			return Compiled{}, err
		}
		return Compiled{SQL: "file.mtime < " + val, Args: args}, nil

	case FnAfter:
		val, args, err := lowerScalar(e.Term)
		if err != nil {
			return Compiled{}, err
		}
		return Compiled{SQL: "file.mtime > " + val, Args: args}, nil

	case FnDir:
		return Compiled{SQL: "file.is_dir = 1"}, nil

	case FnPrint:
		// print() is a display directive, not a filter; its argument is
		// not lowered and every row passes.
		return Compiled{SQL: "1=1"}, nil

	case FnSize, FnUID, FnGID, FnMtime, FnCtime, FnValue:
		return Compiled{}, fmt.Errorf("query: %s() must appear inside a comparison", functionLabel(e.Fn))
	}
	return Compiled{}, fmt.Errorf("query: unsupported function in boolean position")
}

func functionLabel(fn FunctionKind) string {
	for name, k := range functionNames {
		if k == fn {
			return name
		}
	}
	return "function"
}

// lowerComparison handles `a OP b`, resolving each side to a scalar SQL
// expression (a file column, a literal, or a value-name join) and
// combining them with the comparison operator.
func lowerComparison(e ComparisonExpr) (Compiled, error) {
	lhs, largs, err := lowerScalar(e.LHS)
	if err != nil {
		return Compiled{}, err
	}
	rhs, rargs, err := lowerScalar(e.RHS)
	if err != nil {
		return Compiled{}, err
	}
	// A value() compared against a numeric literal is compared as a number.
	numeric := func(x Expr) bool {
		l, ok := x.(LiteralExpr)
		return ok && (l.Lit.Kind == LitInt || l.Lit.Kind == LitFloat)
	}
	valueCall := func(x Expr) bool {
		fc, ok := x.(FunctionCallExpr)
		return ok && fc.Fn == FnValue
	}
	if valueCall(e.LHS) && numeric(e.RHS) {
		lhs = "CAST(" + lhs + " AS REAL)"
	}
	if valueCall(e.RHS) && numeric(e.LHS) {
		rhs = "CAST(" + rhs + " AS REAL)"
	}
	args := append(append([]any{}, largs...), rargs...)
	return Compiled{SQL: fmt.Sprintf("%s %s %s", lhs, e.Op.sql(), rhs), Args: args}, nil
}

// lowerScalar lowers expr into a scalar SQL expression usable on either
// side of a comparison: a file column for the file-scalar functions, a
// value-name subquery for value(), or a bound parameter for a literal or
// a bare name.
func lowerScalar(expr Expr) (string, []any, error) {
	switch e := expr.(type) {
	case LiteralExpr:
		switch e.Lit.Kind {
		case LitInt:
			return "?", []any{e.Lit.Int}, nil
		case LitFloat:
			return "?", []any{e.Lit.Flt}, nil
		case LitString:
			return "?", []any{e.Lit.Str}, nil
		case LitBool:
			if e.Lit.Bool {
				return "1", nil, nil
			}
			return "0", nil, nil
		case LitNull:
			return "NULL", nil, nil
		}

	case ValueExpr:
		return "?", []any{e.Text}, nil

	case FunctionCallExpr:
		switch e.Fn {
		case FnSize:
			return "file.size", nil, nil
		case FnUID:
			return "file.uid", nil, nil
		case FnGID:
			return "file.gid", nil, nil
		case FnMtime:
			return "file.mtime", nil, nil
		case FnCtime:
			return "file.ctime", nil, nil
		case FnHash:
			return "file.hash", nil, nil
		case FnValue:
			pred, err := namePredicateFor(e.Term)
			if err != nil {
				return "", nil, err
			}
			sql, args := valueScalarSubquery(pred)
			return sql, args, nil
		}
	}
	return "", nil, fmt.Errorf("query: expression cannot be used as a scalar value: %T", expr)
}

// namePredicate is a small SQL fragment over a `tag.name` column (used
// inside the recursive-closure EXISTS) or a `target.name` alias (used
// inside the value() subquery's innermost selection).
type namePredicate struct {
	sql  string
	args []any
}

func nameExact(name string) namePredicate {
	return namePredicate{sql: "tag.name = ?", args: []any{name}}
}

func namePattern(s Search) namePredicate {
	switch s.Kind {
	case SearchGlob:
		fn := "glob"
		if s.Flags.CaseInsensitive {
			fn = "iglob"
		}
		return namePredicate{sql: fn + "(?, tag.name) = 1", args: []any{s.Pattern}}
	case SearchRegex:
		fn := "regex"
		if s.Flags.CaseInsensitive {
			fn = "iregex"
		}
		return namePredicate{sql: fn + "(?, tag.name) = 1", args: []any{s.Pattern}}
	default:
		return namePredicate{sql: "tag.name = ?", args: []any{s.Pattern}}
	}
}

func namePredicateFor(term Expr) (namePredicate, error) {
	switch t := term.(type) {
	case ValueExpr:
		return nameExact(t.Text), nil
	case LiteralExpr:
		if t.Lit.Kind == LitString {
			return nameExact(t.Lit.Str), nil
		}
	case PatternExpr:
		return namePattern(t.Search), nil
	case ParenExpr:
		return namePredicateFor(t.Inner)
	}
	return namePredicate{}, fmt.Errorf("query: expected a tag name or pattern argument, got %T", term)
}

// tagClosureExists builds the EXISTS(...) fragment spec §4.7 describes:
// a recursive CTE seeded from the file's explicit FileTag rows,
// unioning in implied (tag_id, value_id) pairs from impl while the
// value either matches or is the "any" sentinel, filtered down to rows
// whose tag name matches pred.
func tagClosureExists(pred namePredicate) (Compiled, error) {
	sql := strings.TrimSpace(`
		EXISTS (
			WITH RECURSIVE closure(tag_id, value_id) AS (
				SELECT file_tag.tag_id, file_tag.value_id
				FROM file_tag
				WHERE file_tag.file_id = file.id
				UNION
				SELECT impl.implied_tag_id, impl.implied_value_id
				FROM impl
				JOIN closure ON closure.tag_id = impl.tag_id
					AND (impl.value_id = 0 OR impl.value_id = closure.value_id)
			)
			SELECT 1 FROM closure JOIN tag ON tag.id = closure.tag_id WHERE ` + pred.sql + `
		)`)
	return Compiled{SQL: sql, Args: pred.args}, nil
}

// valueScalarSubquery resolves value(TAGNAME) to the attached value's
// name (lowerComparison casts it to REAL when the other side is a
// numeric literal); NULL if the tag (or its value) is absent from the
// file.
func valueScalarSubquery(pred namePredicate) (string, []any) {
	sql := strings.TrimSpace(`
		(SELECT value.name FROM file_tag
			JOIN tag ON tag.id = file_tag.tag_id
			JOIN value ON value.id = file_tag.value_id
			WHERE file_tag.file_id = file.id AND ` + pred.sql + ` LIMIT 1)`)
	return sql, pred.args
}
