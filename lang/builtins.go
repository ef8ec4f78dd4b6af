package lang

import "eve.evalgo.org/muninn/schema"

// operator function names, used internally to represent infix/prefix
// operators as ordinary function calls so the same overload-resolution
// machinery handles both.
const (
	OpEq       = "__eq__"
	OpNe       = "__ne__"
	OpLt       = "__lt__"
	OpGt       = "__gt__"
	OpLe       = "__le__"
	OpGe       = "__ge__"
	OpLike     = "__like__"
	OpIn       = "__in__"
	OpAdd      = "__add__"
	OpSub      = "__sub__"
	OpMul      = "__mul__"
	OpDiv      = "__div__"
	OpNeg      = "__neg__"
	OpPos      = "__pos__"
	OpAnd      = "__and__"
	OpOr       = "__or__"
	OpNot      = "__not__"
	FnCovers   = "covers"
	FnIntersec = "intersects"
	FnIsDef    = "is_defined"
	FnIsSrcOf  = "is_source_of"
	FnIsDerOf  = "is_derived_from"
	FnHasTag   = "has_tag"
	FnNow      = "now"
)

var orderedScalars = []schema.Kind{
	schema.KindLong, schema.KindInteger, schema.KindReal, schema.KindBoolean,
	schema.KindText, schema.KindTimestamp, schema.KindUUID,
}

// DefaultFunctionTable returns a FunctionTable pre-seeded with every
// function and operator overload spec.md §4.3 names, ported from the
// original implementation's function_table registrations.
func DefaultFunctionTable() *FunctionTable {
	t := NewFunctionTable()

	comparisonOps := []string{OpEq, OpNe, OpLt, OpGt, OpLe, OpGe}
	for _, op := range comparisonOps {
		for _, k := range orderedScalars {
			t.Add(Prototype{Name: op, ArgumentKind: []schema.Kind{k, k}, ReturnKind: schema.KindBoolean})
		}
	}
	t.Add(Prototype{Name: OpLike, ArgumentKind: []schema.Kind{schema.KindText, schema.KindText}, ReturnKind: schema.KindBoolean})

	arithmeticOps := []string{OpAdd, OpSub, OpMul, OpDiv}
	for _, op := range arithmeticOps {
		for _, k := range []schema.Kind{schema.KindLong, schema.KindInteger, schema.KindReal} {
			t.Add(Prototype{Name: op, ArgumentKind: []schema.Kind{k, k}, ReturnKind: k})
		}
	}
	t.Add(Prototype{Name: OpAdd, ArgumentKind: []schema.Kind{schema.KindTimestamp, schema.KindReal}, ReturnKind: schema.KindTimestamp})
	t.Add(Prototype{Name: OpSub, ArgumentKind: []schema.Kind{schema.KindTimestamp, schema.KindTimestamp}, ReturnKind: schema.KindReal})

	for _, k := range []schema.Kind{schema.KindLong, schema.KindInteger, schema.KindReal} {
		t.Add(Prototype{Name: OpNeg, ArgumentKind: []schema.Kind{k}, ReturnKind: k})
		t.Add(Prototype{Name: OpPos, ArgumentKind: []schema.Kind{k}, ReturnKind: k})
	}

	t.Add(Prototype{Name: OpAnd, ArgumentKind: []schema.Kind{schema.KindBoolean, schema.KindBoolean}, ReturnKind: schema.KindBoolean})
	t.Add(Prototype{Name: OpOr, ArgumentKind: []schema.Kind{schema.KindBoolean, schema.KindBoolean}, ReturnKind: schema.KindBoolean})
	t.Add(Prototype{Name: OpNot, ArgumentKind: []schema.Kind{schema.KindBoolean}, ReturnKind: schema.KindBoolean})

	t.Add(Prototype{Name: FnCovers, ArgumentKind: []schema.Kind{schema.KindGeometry, schema.KindGeometry}, ReturnKind: schema.KindBoolean})
	t.Add(Prototype{Name: FnIntersec, ArgumentKind: []schema.Kind{schema.KindGeometry, schema.KindGeometry}, ReturnKind: schema.KindBoolean})
	fourTimestamps := []schema.Kind{schema.KindTimestamp, schema.KindTimestamp, schema.KindTimestamp, schema.KindTimestamp}
	t.Add(Prototype{Name: FnCovers, ArgumentKind: fourTimestamps, ReturnKind: schema.KindBoolean})
	t.Add(Prototype{Name: FnIntersec, ArgumentKind: fourTimestamps, ReturnKind: schema.KindBoolean})

	for _, k := range orderedScalars {
		t.Add(Prototype{Name: FnIsDef, ArgumentKind: []schema.Kind{k}, ReturnKind: schema.KindBoolean})
	}

	t.Add(Prototype{Name: FnIsSrcOf, ArgumentKind: []schema.Kind{schema.KindUUID}, ReturnKind: schema.KindBoolean})
	t.Add(Prototype{Name: FnIsSrcOf, ArgumentKind: []schema.Kind{schema.KindBoolean}, ReturnKind: schema.KindBoolean})
	t.Add(Prototype{Name: FnIsDerOf, ArgumentKind: []schema.Kind{schema.KindUUID}, ReturnKind: schema.KindBoolean})
	t.Add(Prototype{Name: FnIsDerOf, ArgumentKind: []schema.Kind{schema.KindBoolean}, ReturnKind: schema.KindBoolean})

	t.Add(Prototype{Name: FnHasTag, ArgumentKind: []schema.Kind{schema.KindText}, ReturnKind: schema.KindBoolean})
	t.Add(Prototype{Name: FnNow, ArgumentKind: nil, ReturnKind: schema.KindTimestamp})

	return t
}
