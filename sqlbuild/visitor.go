package sqlbuild

import (
	"fmt"
	"strings"

	"eve.evalgo.org/muninn/geometry"
	"eve.evalgo.org/muninn/lang"
	"eve.evalgo.org/muninn/schema"
)

// exprVisitor walks an analyzed lang.Node, emitting a SQL fragment with
// '?' placeholders, accumulating the positional argument values those
// placeholders bind to, and recording every namespace a Name node
// references so the join planner can promote it to an INNER JOIN.
type exprVisitor struct {
	rewriters  *RewriterTable
	parameters map[string]any
	args       []any
	referenced map[string]bool
}

func newExprVisitor(rewriters *RewriterTable, parameters map[string]any) *exprVisitor {
	return &exprVisitor{rewriters: rewriters, parameters: parameters, referenced: map[string]bool{}}
}

func (v *exprVisitor) placeholder(value any) string {
	v.args = append(v.args, value)
	return "?"
}

func (v *exprVisitor) visit(n lang.Node) (string, error) {
	switch node := n.(type) {
	case *lang.Literal:
		return v.visitLiteral(node)
	case *lang.Name:
		return v.visitName(node)
	case *lang.ParameterReference:
		value, ok := v.parameters[node.Name]
		if !ok {
			return "", fmt.Errorf("sqlbuild: missing value for parameter @%s", node.Name)
		}
		return v.placeholder(value), nil
	case *lang.List:
		return v.visitList(node)
	case *lang.FunctionCall:
		return v.visitCall(node)
	default:
		return "", fmt.Errorf("sqlbuild: unsupported AST node %T", n)
	}
}

func (v *exprVisitor) visitLiteral(n *lang.Literal) (string, error) {
	if n.Kind == schema.KindGeometry {
		g, ok := n.Value.(geometry.Geometry)
		if !ok {
			return "", fmt.Errorf("sqlbuild: geometry literal has non-geometry value %T", n.Value)
		}
		ewkb, err := geometry.EncodeEWKB(g)
		if err != nil {
			return "", fmt.Errorf("sqlbuild: encoding geometry literal: %w", err)
		}
		return fmt.Sprintf("ST_GeomFromEWKB(%s)", v.placeholder(ewkb)), nil
	}
	return v.placeholder(n.Value), nil
}

func (v *exprVisitor) visitName(n *lang.Name) (string, error) {
	namespace := n.Namespace
	if namespace == "" {
		namespace = "core"
	}
	v.referenced[namespace] = true
	column := namespacedColumn(namespace, n.Field)

	switch n.Subscript {
	case "":
		return column, nil
	case "length":
		return textLengthExpr(column), nil
	default:
		return timestampSubscriptExpr(column, n.Subscript), nil
	}
}

func (v *exprVisitor) visitList(n *lang.List) (string, error) {
	frags := make([]string, len(n.Elements))
	for i, e := range n.Elements {
		frag, err := v.visit(e)
		if err != nil {
			return "", err
		}
		frags[i] = frag
	}
	return "(" + strings.Join(frags, ", ") + ")", nil
}

func (v *exprVisitor) visitCall(n *lang.FunctionCall) (string, error) {
	if n.Resolved == nil {
		return "", fmt.Errorf("sqlbuild: unanalyzed call to %s", n.Name)
	}

	argFrags := make([]string, len(n.Arguments))
	for i, arg := range n.Arguments {
		frag, err := v.visit(arg)
		if err != nil {
			return "", err
		}
		argFrags[i] = frag
	}

	fn, ok := v.rewriters.Lookup(n.Resolved.ID())
	if !ok {
		fn, ok = v.rewriters.Lookup(n.Resolved.Name)
	}
	if !ok {
		return "", fmt.Errorf("sqlbuild: no SQL rewrite registered for %s", n.Resolved.ID())
	}

	ctx := RewriteContext{Args: argFrags, SelfUUID: namespacedColumn("core", "uuid")}
	return fn(ctx), nil
}
