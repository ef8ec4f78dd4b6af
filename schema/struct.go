package schema

import "fmt"

// Struct is a dynamic, nested record of named fields, the in-memory
// representation of one namespace's properties (or, nested one level
// deeper, of a Mapping-typed field within a namespace).
//
// It behaves like the original implementation's Struct: nested maps are
// wrapped into nested Struct values on construction, and Update
// performs a deep merge rather than a shallow overwrite.
type Struct map[string]any

// NewStruct builds a Struct from a plain map, wrapping any nested
// map[string]any values into nested Struct values, recursively at every
// depth.
func NewStruct(fields map[string]any) Struct {
	s := make(Struct, len(fields))
	for k, v := range fields {
		if nested, ok := v.(map[string]any); ok {
			s[k] = NewStruct(nested)
		} else {
			s[k] = v
		}
	}
	return s
}

// Get returns the value stored under name and whether it is present.
func (s Struct) Get(name string) (any, bool) {
	v, ok := s[name]
	return v, ok
}

// Update deep-merges other into s: nested Structs present in both operands
// are merged recursively, scalars (and anything that isn't a Struct on
// both sides) are replaced by other's value, and a field that is a Struct
// on one side but not the other is a merge conflict.
func (s Struct) Update(other Struct) error {
	for k, ov := range other {
		ev, exists := s[k]
		if !exists {
			s[k] = ov
			continue
		}
		eStruct, eIsStruct := ev.(Struct)
		oStruct, oIsStruct := ov.(Struct)
		switch {
		case eIsStruct && oIsStruct:
			if err := eStruct.Update(oStruct); err != nil {
				return err
			}
		case eIsStruct != oIsStruct:
			return fmt.Errorf("incompatible structs: %v vs %v", ev, ov)
		default:
			s[k] = ov
		}
	}
	return nil
}

// Clone returns a deep copy of s, recursing into nested Structs.
func (s Struct) Clone() Struct {
	out := make(Struct, len(s))
	for k, v := range s {
		if nested, ok := v.(Struct); ok {
			out[k] = nested.Clone()
		} else {
			out[k] = v
		}
	}
	return out
}
