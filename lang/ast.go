package lang

import "eve.evalgo.org/muninn/schema"

// Node is implemented by every AST node. Analyze annotates nodes with
// their resolved type in place, so the interface itself carries no
// fields; the concrete node types below do.
type Node interface {
	isNode()
	// Type returns the node's resolved type, valid only after Analyze.
	Type() schema.Kind
	setType(schema.Kind)
}

type base struct {
	kind schema.Kind
}

func (b *base) Type() schema.Kind     { return b.kind }
func (b *base) setType(k schema.Kind) { b.kind = k }

// Literal is a constant value of a scalar kind (integer, real, text,
// boolean, timestamp, uuid, or geometry).
type Literal struct {
	base
	Kind  schema.Kind
	Value any
}

func (*Literal) isNode() {}

// Name is an unqualified or namespace-qualified property reference, with
// an optional subscript (e.g. validity_start.yearmonth).
type Name struct {
	base
	Namespace string // "" until the analyzer resolves it
	Field     string
	Subscript string // e.g. "yearmonth"; "" if none
	Raw       []string
}

func (*Name) isNode() {}

// ParameterReference is an @name reference resolved against the caller's
// parameter map at analysis time.
type ParameterReference struct {
	base
	Name string
}

func (*ParameterReference) isNode() {}

// List is a bracketed list literal, e.g. for `in` comparisons.
type List struct {
	base
	Elements []Node
}

func (*List) isNode() {}

// FunctionCall is a call to a named function (including operators, which
// are represented as calls to dunder-style names such as "__eq__").
type FunctionCall struct {
	base
	Name      string
	Arguments []Node
	Resolved  *Prototype // set by Analyze
}

func (*FunctionCall) isNode() {}

// newLiteral builds a Literal pre-typed to kind.
func newLiteral(kind schema.Kind, value any) *Literal {
	return &Literal{base: base{kind: kind}, Kind: kind, Value: value}
}
