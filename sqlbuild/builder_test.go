package sqlbuild

import (
	"testing"

	"eve.evalgo.org/muninn/lang"
	"eve.evalgo.org/muninn/schema"
	"github.com/stretchr/testify/require"
)

type fakeRegistry struct {
	namespaces map[string]NamespaceSchema
}

func (r fakeRegistry) Namespace(name string) (NamespaceSchema, bool) {
	ns, ok := r.namespaces[name]
	return ns, ok
}

func (r fakeRegistry) NamespaceNames() []string {
	var names []string
	for n := range r.namespaces {
		names = append(names, n)
	}
	return names
}

type testNamespaces struct{}

func (testNamespaces) HasNamespace(name string) bool { return name == "core" || name == "gridfile" }

func (testNamespaces) ResolveField(namespace, field string) (schema.Kind, bool) {
	switch namespace {
	case "core":
		switch field {
		case "product_name", "archive_path":
			return schema.KindText, true
		case "uuid":
			return schema.KindUUID, true
		case "size":
			return schema.KindLong, true
		}
	case "gridfile":
		if field == "resolution" {
			return schema.KindLong, true
		}
	}
	return 0, false
}

func parse(t *testing.T, src string, params map[string]any) lang.Node {
	t.Helper()
	a := &lang.Analyzer{Functions: lang.DefaultFunctionTable(), Namespaces: testNamespaces{}, Parameters: params}
	node, err := lang.ParseAndAnalyze(src, a)
	require.NoError(t, err)
	return node
}

func newRegistry() fakeRegistry {
	return fakeRegistry{namespaces: map[string]NamespaceSchema{
		"gridfile": {Name: "gridfile", Fields: schema.NewFields(
			schema.FieldPair{Name: "resolution", Type: schema.Type{Name: "resolution", Kind: schema.KindLong}},
		)},
	}}
}

func TestBuildSearchQueryNullSafeEquality(t *testing.T) {
	node := parse(t, `product_name == "pi.txt"`, nil)
	b := NewBuilder(newRegistry())
	q, err := b.BuildSearchQuery(node, nil, nil, nil, 0, 0)
	require.NoError(t, err)
	require.Contains(t, q.SQL, "IS NOT NULL")
	require.Equal(t, []any{"pi.txt"}, q.Args)
}

func TestBuildSearchQueryPromotesReferencedNamespaceToInnerJoin(t *testing.T) {
	node := parse(t, `gridfile.resolution == 10`, nil)
	b := NewBuilder(newRegistry())
	q, err := b.BuildSearchQuery(node, nil, nil, nil, 0, 0)
	require.NoError(t, err)
	require.Contains(t, q.SQL, `INNER JOIN "gridfile"`)
}

func TestBuildSearchQueryLeftJoinsUnreferencedRequestedNamespace(t *testing.T) {
	node := parse(t, `product_name == "pi.txt"`, nil)
	b := NewBuilder(newRegistry())
	q, err := b.BuildSearchQuery(node, nil, []string{"gridfile"}, nil, 0, 0)
	require.NoError(t, err)
	require.Contains(t, q.SQL, `LEFT JOIN "gridfile"`)
}

func TestBuildSearchQueryBindsParameterReference(t *testing.T) {
	node := parse(t, `product_name == @name`, map[string]any{"name": "pi.txt"})
	b := NewBuilder(newRegistry())
	q, err := b.BuildSearchQuery(node, map[string]any{"name": "pi.txt"}, nil, nil, 0, 0)
	require.NoError(t, err)
	require.Equal(t, []any{"pi.txt"}, q.Args)
}

func TestBuildCountQuery(t *testing.T) {
	node := parse(t, `size > 0`, nil)
	b := NewBuilder(newRegistry())
	q, err := b.BuildCountQuery(node, nil)
	require.NoError(t, err)
	require.Contains(t, q.SQL, "SELECT COUNT(*)")
}

func TestBuildCreateTableQueryEmitsIndexForIndexedField(t *testing.T) {
	ns := NamespaceSchema{Name: "gridfile", Fields: schema.NewFields(
		schema.FieldPair{Name: "resolution", Type: schema.Type{Name: "resolution", Kind: schema.KindLong, Indexed: true}},
	)}
	b := NewBuilder(newRegistry())
	stmts := b.BuildCreateTableQuery(ns)
	require.Len(t, stmts, 2)
	require.Contains(t, stmts[0], `REFERENCES "core"("uuid")`)
	require.Contains(t, stmts[1], "CREATE INDEX")
}
