package catalog

import (
	"sort"

	"eve.evalgo.org/muninn/schema"
	"eve.evalgo.org/muninn/sqlbuild"
)

// NamespaceRegistry tracks every namespace schema the catalogue knows
// about — the mandatory core namespace plus every registered extension
// — and serves both as sqlbuild.SchemaRegistry (join planning, CREATE
// TABLE generation) and lang.NamespaceResolver (expression analysis).
type NamespaceRegistry struct {
	namespaces map[string]sqlbuild.NamespaceSchema
}

// NewNamespaceRegistry returns a registry seeded with the core namespace.
func NewNamespaceRegistry() *NamespaceRegistry {
	return &NamespaceRegistry{namespaces: map[string]sqlbuild.NamespaceSchema{
		"core": {Name: "core", Fields: schema.CoreNamespace},
	}}
}

// Register adds or replaces an extension namespace's field schema.
func (r *NamespaceRegistry) Register(name string, fields schema.Fields) {
	r.namespaces[name] = sqlbuild.NamespaceSchema{Name: name, Fields: fields}
}

// Namespace implements sqlbuild.SchemaRegistry.
func (r *NamespaceRegistry) Namespace(name string) (sqlbuild.NamespaceSchema, bool) {
	ns, ok := r.namespaces[name]
	return ns, ok
}

// NamespaceNames implements sqlbuild.SchemaRegistry, returning every
// registered namespace name (including core) in sorted order.
func (r *NamespaceRegistry) NamespaceNames() []string {
	names := make([]string, 0, len(r.namespaces))
	for name := range r.namespaces {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// ExtensionNames returns every registered namespace name except core,
// in sorted order.
func (r *NamespaceRegistry) ExtensionNames() []string {
	var names []string
	for name := range r.namespaces {
		if name != "core" {
			names = append(names, name)
		}
	}
	sort.Strings(names)
	return names
}

// HasNamespace implements lang.NamespaceResolver.
func (r *NamespaceRegistry) HasNamespace(name string) bool {
	_, ok := r.namespaces[name]
	return ok
}

// ResolveField implements lang.NamespaceResolver.
func (r *NamespaceRegistry) ResolveField(namespace, field string) (schema.Kind, bool) {
	ns, ok := r.namespaces[namespace]
	if !ok {
		return 0, false
	}
	t, ok := ns.Fields.Get(field)
	if !ok {
		return 0, false
	}
	return t.Kind, ok
}
