// Package schema defines the typed field metadata used to describe product
// namespaces: the closed set of scalar types, the Sequence and Mapping
// containers, and the validation rules every namespace schema is checked
// against before a product record is accepted into the catalogue.
package schema

import (
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Kind identifies one of the closed set of scalar and container types a
// namespace field can carry.
type Kind int

const (
	KindLong Kind = iota
	KindInteger
	KindReal
	KindBoolean
	KindText
	KindTimestamp
	KindUUID
	KindJSON
	KindGeometry
	KindSequence
	KindMapping
)

func (k Kind) String() string {
	switch k {
	case KindLong:
		return "long"
	case KindInteger:
		return "integer"
	case KindReal:
		return "real"
	case KindBoolean:
		return "boolean"
	case KindText:
		return "text"
	case KindTimestamp:
		return "timestamp"
	case KindUUID:
		return "uuid"
	case KindJSON:
		return "json"
	case KindGeometry:
		return "geometry"
	case KindSequence:
		return "sequence"
	case KindMapping:
		return "mapping"
	default:
		return "unknown"
	}
}

// Numeric bounds for Long and Integer, preserved from the original
// implementation's validation rules.
const (
	MinLong    int64 = -9223372036854775808
	MaxLong    int64 = 9223372036854775807
	MinInteger int32 = -2147483648
	MaxInteger int32 = 2147483647
)

// Type describes one field of a namespace: its Kind, whether it may be
// absent from a record (Optional), whether the catalogue backend should
// create an index on it (Indexed), and, for Sequence fields, the element
// Type (Sub).
type Type struct {
	Name     string
	Kind     Kind
	Optional bool
	Indexed  bool
	Sub      *Type // element type, only set when Kind == KindSequence
	Fields   Fields // nested field set, only set when Kind == KindMapping
}

// Fields is an ordered namespace field set: a name mapped to its Type,
// plus the registration order so generated SQL/CLI output is stable.
type Fields struct {
	order []string
	byKey map[string]Type
}

// NewFields builds a Fields set from an ordered list of (name, Type) pairs.
func NewFields(pairs ...FieldPair) Fields {
	f := Fields{byKey: make(map[string]Type, len(pairs))}
	for _, p := range pairs {
		f.order = append(f.order, p.Name)
		f.byKey[p.Name] = p.Type
	}
	return f
}

// FieldPair is one (name, Type) entry used to build a Fields set.
type FieldPair struct {
	Name string
	Type Type
}

// Names returns the field names in registration order.
func (f Fields) Names() []string {
	out := make([]string, len(f.order))
	copy(out, f.order)
	return out
}

// Get returns the Type registered for name and whether it exists.
func (f Fields) Get(name string) (Type, bool) {
	t, ok := f.byKey[name]
	return t, ok
}

// ValidationError reports a schema violation at a specific field path,
// mirroring the path-prefixed error messages of the original validator.
type ValidationError struct {
	Path    string
	Message string
}

func (e *ValidationError) Error() string {
	if e.Path == "" {
		return e.Message
	}
	return fmt.Sprintf("%s: %s", e.Path, e.Message)
}

func joinPath(path, name string) string {
	if path == "" {
		return name
	}
	return path + "." + name
}

// ValidateValue checks value against t, failing with a *ValidationError on
// any type mismatch, out-of-range numeric value, or (for Mapping) missing
// mandatory / unrecognized field. partial relaxes mandatory-field checks,
// used when validating a partial update rather than a full record.
func ValidateValue(t Type, value any, partial bool, path string) error {
	if value == nil {
		if t.Optional || partial {
			return nil
		}
		return &ValidationError{Path: path, Message: "missing mandatory field"}
	}

	switch t.Kind {
	case KindLong:
		v, ok := asInt64(value)
		if !ok {
			return &ValidationError{Path: path, Message: fmt.Sprintf("invalid value %v for type long", value)}
		}
		if v < MinLong || v > MaxLong {
			return &ValidationError{Path: path, Message: fmt.Sprintf("value %d out of range for type long", v)}
		}
	case KindInteger:
		v, ok := asInt64(value)
		if !ok {
			return &ValidationError{Path: path, Message: fmt.Sprintf("invalid value %v for type integer", value)}
		}
		if v < int64(MinInteger) || v > int64(MaxInteger) {
			return &ValidationError{Path: path, Message: fmt.Sprintf("value %d out of range for type integer", v)}
		}
	case KindReal:
		if _, ok := value.(float64); !ok {
			if _, ok := value.(float32); !ok {
				return &ValidationError{Path: path, Message: fmt.Sprintf("invalid value %v for type real", value)}
			}
		}
	case KindBoolean:
		if _, ok := value.(bool); !ok {
			return &ValidationError{Path: path, Message: fmt.Sprintf("invalid value %v for type boolean", value)}
		}
	case KindText:
		if _, ok := value.(string); !ok {
			return &ValidationError{Path: path, Message: fmt.Sprintf("invalid value %v for type text", value)}
		}
	case KindTimestamp:
		if _, ok := value.(time.Time); !ok {
			return &ValidationError{Path: path, Message: fmt.Sprintf("invalid value %v for type timestamp", value)}
		}
	case KindUUID:
		switch v := value.(type) {
		case uuid.UUID:
		case string:
			if _, err := uuid.Parse(v); err != nil {
				return &ValidationError{Path: path, Message: fmt.Sprintf("invalid uuid %q", v)}
			}
		default:
			return &ValidationError{Path: path, Message: fmt.Sprintf("invalid value %v for type uuid", value)}
		}
	case KindJSON:
		// any JSON-marshalable value is accepted; validity is checked at encode time.
	case KindGeometry:
		// geometry validity is the responsibility of the geometry package's own types.
	case KindSequence:
		items, ok := value.([]any)
		if !ok {
			return &ValidationError{Path: path, Message: fmt.Sprintf("invalid value %v for type sequence", value)}
		}
		for i, item := range items {
			if err := ValidateValue(*t.Sub, item, false, fmt.Sprintf("%s[%d]", path, i)); err != nil {
				return err
			}
		}
	case KindMapping:
		m, ok := value.(map[string]any)
		if !ok {
			return &ValidationError{Path: path, Message: fmt.Sprintf("invalid value %v for type mapping", value)}
		}
		return validateMapping(t.Fields, m, partial, path)
	default:
		return &ValidationError{Path: path, Message: fmt.Sprintf("unsupported type %s", t.Kind)}
	}
	return nil
}

func validateMapping(fields Fields, m map[string]any, partial bool, path string) error {
	for _, name := range fields.Names() {
		sub, _ := fields.Get(name)
		value, present := m[name]
		if !present {
			if sub.Optional || partial {
				continue
			}
			return &ValidationError{Path: joinPath(path, name), Message: "missing mandatory field"}
		}
		if err := ValidateValue(sub, value, partial, joinPath(path, name)); err != nil {
			return err
		}
	}
	for name := range m {
		if _, ok := fields.Get(name); !ok {
			return &ValidationError{Path: joinPath(path, name), Message: "unrecognized field"}
		}
	}
	return nil
}

func asInt64(value any) (int64, bool) {
	switch v := value.(type) {
	case int:
		return int64(v), true
	case int32:
		return int64(v), true
	case int64:
		return v, true
	default:
		return 0, false
	}
}
