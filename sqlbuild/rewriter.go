// Package sqlbuild translates an analyzed expression-language AST (see
// package lang) into portable SQL fragments plus a positional parameter
// list, following spec.md §4.4: namespace join planning, NULL-safe
// equality, and a backend-specific function rewrite dispatch table.
package sqlbuild

import "fmt"

// RewriteContext is handed to a RewriteFunc: the already-rendered SQL
// fragments for each call argument, plus the qualified "current row"
// UUID column reference needed by functions like is_source_of that
// implicitly refer to the row being filtered rather than to one of their
// explicit arguments.
type RewriteContext struct {
	Args     []string
	SelfUUID string
}

// RewriteFunc renders one function/operator prototype's SQL fragment
// given its call-site context.
type RewriteFunc func(ctx RewriteContext) string

// RewriterTable maps function/operator prototypes (keyed by the same ID
// scheme as lang.Prototype) to the SQL fragment they rewrite into.
type RewriterTable struct {
	byKey map[string]RewriteFunc
}

// NewRewriterTable returns an empty table.
func NewRewriterTable() *RewriterTable {
	return &RewriterTable{byKey: map[string]RewriteFunc{}}
}

// Add registers fn for the given prototype id (see lang.Prototype.ID).
func (t *RewriterTable) Add(id string, fn RewriteFunc) {
	t.byKey[id] = fn
}

// Lookup returns the rewrite registered for id, if any.
func (t *RewriterTable) Lookup(id string) (RewriteFunc, bool) {
	fn, ok := t.byKey[id]
	return fn, ok
}

func binaryOperator(op string) RewriteFunc {
	return func(ctx RewriteContext) string {
		return fmt.Sprintf("(%s %s %s)", ctx.Args[0], op, ctx.Args[1])
	}
}

func unaryOperator(op string) RewriteFunc {
	return func(ctx RewriteContext) string {
		return fmt.Sprintf("(%s%s)", op, ctx.Args[0])
	}
}

// DefaultRewriterTable returns the backend-agnostic rewrite rules:
// arithmetic and ordering operators, is_defined, has_tag, now(), and the
// NULL-safe equality/inequality rewrite from spec.md §4.4 (a deliberate
// property of the operators themselves, not of any one backend).
func DefaultRewriterTable() *RewriterTable {
	t := NewRewriterTable()

	t.Add("__eq__", func(ctx RewriteContext) string {
		return fmt.Sprintf("(%s = %s AND %s IS NOT NULL)", ctx.Args[0], ctx.Args[1], ctx.Args[0])
	})
	t.Add("__ne__", func(ctx RewriteContext) string {
		return fmt.Sprintf("(%s != %s OR %s IS NULL)", ctx.Args[0], ctx.Args[1], ctx.Args[0])
	})
	t.Add("__lt__", binaryOperator("<"))
	t.Add("__gt__", binaryOperator(">"))
	t.Add("__le__", binaryOperator("<="))
	t.Add("__ge__", binaryOperator(">="))
	t.Add("__like__", func(ctx RewriteContext) string {
		return fmt.Sprintf("(%s LIKE %s)", ctx.Args[0], ctx.Args[1])
	})
	t.Add("__in__", func(ctx RewriteContext) string {
		return fmt.Sprintf("(%s IN %s)", ctx.Args[0], ctx.Args[1])
	})
	t.Add("__add__", binaryOperator("+"))
	t.Add("__sub__", binaryOperator("-"))
	t.Add("__mul__", binaryOperator("*"))
	t.Add("__div__", binaryOperator("/"))
	t.Add("__neg__", unaryOperator("-"))
	t.Add("__pos__", func(ctx RewriteContext) string { return ctx.Args[0] })
	t.Add("__and__", binaryOperator("AND"))
	t.Add("__or__", binaryOperator("OR"))
	t.Add("__not__", func(ctx RewriteContext) string {
		return fmt.Sprintf("(NOT %s)", ctx.Args[0])
	})
	t.Add("is_defined", func(ctx RewriteContext) string {
		return fmt.Sprintf("(%s IS NOT NULL)", ctx.Args[0])
	})
	t.Add("now", func(ctx RewriteContext) string { return "CURRENT_TIMESTAMP" })
	t.Add("has_tag", func(ctx RewriteContext) string {
		return fmt.Sprintf(`EXISTS (SELECT 1 FROM "tag" WHERE "tag"."uuid" = %s AND "tag"."tag" = %s)`, ctx.SelfUUID, ctx.Args[0])
	})

	return t
}

// namespacedColumn quotes a namespace.field reference as a SQL identifier
// pair, e.g. "gridfile"."resolution".
func namespacedColumn(namespace, field string) string {
	return fmt.Sprintf(`"%s"."%s"`, namespace, field)
}
