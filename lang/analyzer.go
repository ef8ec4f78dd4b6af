package lang

import (
	"fmt"

	"eve.evalgo.org/muninn/schema"
)

// NamespaceResolver reports whether name is a registered extension
// namespace and, if so, which field kinds it declares — used by the
// analyzer to decide whether a dotted name's first segment is a
// namespace qualifier or a field name, and to type-check qualified
// fields.
type NamespaceResolver interface {
	ResolveField(namespace, field string) (schema.Kind, bool)
	HasNamespace(name string) bool
}

// Analyzer binds every AST node to its resolved type, rewrites bare names
// to core.<field> unless the leading segment names a registered
// namespace, and resolves @param references against Parameters.
type Analyzer struct {
	Functions  *FunctionTable
	Namespaces NamespaceResolver
	Parameters map[string]any
}

// Analyze walks node, annotating every node with its resolved type.
// Errors are spec.md UserError-class conditions: unresolved names,
// missing parameters, and ambiguous/unmatched function overloads.
func (a *Analyzer) Analyze(node Node) error {
	switch n := node.(type) {
	case *Literal:
		n.setType(n.Kind)
		return nil

	case *Name:
		return a.analyzeName(n)

	case *ParameterReference:
		value, ok := a.Parameters[n.Name]
		if !ok {
			return fmt.Errorf("lang: missing value for parameter @%s", n.Name)
		}
		n.setType(kindOfValue(value))
		return nil

	case *List:
		var elemKind schema.Kind
		for i, e := range n.Elements {
			if err := a.Analyze(e); err != nil {
				return err
			}
			if i == 0 {
				elemKind = e.Type()
			}
		}
		n.setType(elemKind)
		return nil

	case *FunctionCall:
		return a.analyzeCall(n)

	default:
		return fmt.Errorf("lang: unresolved AST node %T", node)
	}
}

func (a *Analyzer) analyzeName(n *Name) error {
	if n.Namespace == "" {
		n.Namespace = "core"
	} else if a.Namespaces != nil && !a.Namespaces.HasNamespace(n.Namespace) {
		// first segment doesn't name a real namespace: treat the whole
		// dotted path as core.<first> with the remainder as subscript.
		if n.Subscript == "" {
			n.Subscript = n.Field
		} else {
			n.Subscript = n.Field + "." + n.Subscript
		}
		n.Field = n.Namespace
		n.Namespace = "core"
	}

	if a.Namespaces == nil {
		n.setType(schema.KindText)
		return nil
	}
	kind, ok := a.Namespaces.ResolveField(n.Namespace, n.Field)
	if !ok {
		return fmt.Errorf("lang: unknown property %s.%s", n.Namespace, n.Field)
	}
	if n.Subscript != "" {
		n.setType(subscriptKind(kind, n.Subscript))
	} else {
		n.setType(kind)
	}
	return nil
}

// subscriptKind returns the resolved type of a subscripted reference such
// as validity_start.yearmonth (always Text/Integer depending on the
// subscript) or text.length (Integer).
func subscriptKind(base schema.Kind, subscript string) schema.Kind {
	switch subscript {
	case "year", "month", "day", "hour", "minute", "second":
		return schema.KindInteger
	case "yearmonth", "date", "time":
		return schema.KindText
	case "length":
		return schema.KindInteger
	default:
		return base
	}
}

func kindOfValue(v any) schema.Kind {
	switch v.(type) {
	case bool:
		return schema.KindBoolean
	case int, int32, int64:
		return schema.KindLong
	case float32, float64:
		return schema.KindReal
	case string:
		return schema.KindText
	default:
		return schema.KindText
	}
}

func (a *Analyzer) analyzeCall(n *FunctionCall) error {
	argKinds := make([]schema.Kind, len(n.Arguments))
	for i, arg := range n.Arguments {
		if err := a.Analyze(arg); err != nil {
			return err
		}
		argKinds[i] = arg.Type()
	}

	candidates := a.Functions.Resolve(n.Name, argKinds)
	switch len(candidates) {
	case 0:
		return fmt.Errorf("lang: no matching overload for %s/%d", n.Name, len(argKinds))
	case 1:
		n.Resolved = &candidates[0]
		n.setType(candidates[0].ReturnKind)
		return nil
	default:
		return fmt.Errorf("lang: ambiguous call to %s/%d", n.Name, len(argKinds))
	}
}

// ParseAndAnalyze parses src and analyzes the result in one step,
// mirroring the original implementation's parse_and_analyze convenience
// function.
func ParseAndAnalyze(src string, a *Analyzer) (Node, error) {
	node, err := Parse(src)
	if err != nil {
		return nil, err
	}
	if err := a.Analyze(node); err != nil {
		return nil, err
	}
	return node, nil
}
