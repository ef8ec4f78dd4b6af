package lang

import (
	"fmt"
	"strings"

	"eve.evalgo.org/muninn/schema"
)

// Prototype identifies one overload of a named function: its argument
// kinds and return kind. Ported from the original implementation's
// Prototype class, including its id-based equality.
type Prototype struct {
	Name         string
	ArgumentKind []schema.Kind
	ReturnKind   schema.Kind
}

// ID returns a canonical string identifying this overload, used for
// equality/hashing exactly as the original implementation's Prototype.id.
func (p Prototype) ID() string {
	parts := make([]string, len(p.ArgumentKind))
	for i, k := range p.ArgumentKind {
		parts[i] = k.String()
	}
	return fmt.Sprintf("%s(%s) %s", p.Name, strings.Join(parts, ","), p.ReturnKind)
}

// Arity returns the number of arguments this overload accepts.
func (p Prototype) Arity() int { return len(p.ArgumentKind) }

// typeMap records subtype-compatible fallback pairs for overload
// resolution, e.g. an Integer literal is compatible with a Long
// parameter. Mirrors the original implementation's type_map mechanism.
type typeMap map[schema.Kind]schema.Kind

var defaultTypeMap = typeMap{
	schema.KindInteger: schema.KindLong,
}

// FunctionTable holds every registered function overload, grouped by
// name, and resolves a call site's argument kinds to the unique best
// matching overload.
type FunctionTable struct {
	byName  map[string][]Prototype
	typeMap typeMap
}

// NewFunctionTable returns an empty table using the default type-map.
func NewFunctionTable() *FunctionTable {
	return &FunctionTable{byName: map[string][]Prototype{}, typeMap: defaultTypeMap}
}

// Add registers a function overload.
func (t *FunctionTable) Add(p Prototype) {
	t.byName[p.Name] = append(t.byName[p.Name], p)
}

// Lookup returns every registered overload for name.
func (t *FunctionTable) Lookup(name string) []Prototype {
	return t.byName[name]
}

// Resolve implements the original FunctionTable.resolve algorithm:
// among same-name, same-arity candidates, count exact kind matches
// ("equal") and subtype/type-map-compatible matches ("compatible") per
// argument; discard candidates where equal+compatible != arity; keep
// only the candidates with the highest equal count. The result is the
// candidate list after this filter — callers must treat length != 1 as
// no-match (0) or ambiguous (>1).
func (t *FunctionTable) Resolve(name string, argKinds []schema.Kind) []Prototype {
	var top []Prototype
	topEqual := -1

	for _, candidate := range t.byName[name] {
		if candidate.Arity() != len(argKinds) {
			continue
		}

		equal, compatible := 0, 0
		ok := true
		for i, argKind := range argKinds {
			candKind := candidate.ArgumentKind[i]
			switch {
			case argKind == candKind:
				equal++
			case t.isCompatible(argKind, candKind):
				compatible++
			default:
				ok = false
			}
			if !ok {
				break
			}
		}
		if !ok || equal+compatible != len(argKinds) {
			continue
		}

		if equal > topEqual {
			top = []Prototype{candidate}
			topEqual = equal
		} else if equal == topEqual {
			top = append(top, candidate)
		}
	}
	return top
}

func (t *FunctionTable) isCompatible(argKind, candKind schema.Kind) bool {
	if mapped, ok := t.typeMap[argKind]; ok && mapped == candKind {
		return true
	}
	return false
}
