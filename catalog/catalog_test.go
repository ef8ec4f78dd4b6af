package catalog

import (
	"testing"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"eve.evalgo.org/muninn/geometry"
	"eve.evalgo.org/muninn/schema"
)

func TestNamespaceRegistrySeedsCore(t *testing.T) {
	reg := NewNamespaceRegistry()

	assert.True(t, reg.HasNamespace("core"))
	assert.Empty(t, reg.ExtensionNames())
	assert.Equal(t, []string{"core"}, reg.NamespaceNames())
}

func TestNamespaceRegistryRegisterExtension(t *testing.T) {
	reg := NewNamespaceRegistry()
	fields := schema.NewFields(schema.FieldPair{Name: "resolution", Type: schema.Type{Name: "resolution", Kind: schema.KindLong}})
	reg.Register("gridfile", fields)

	assert.True(t, reg.HasNamespace("gridfile"))
	assert.Equal(t, []string{"gridfile"}, reg.ExtensionNames())
	assert.Equal(t, []string{"core", "gridfile"}, reg.NamespaceNames())

	kind, ok := reg.ResolveField("gridfile", "resolution")
	require.True(t, ok)
	assert.Equal(t, schema.KindLong, kind)

	_, ok = reg.ResolveField("gridfile", "nonexistent")
	assert.False(t, ok)
	_, ok = reg.ResolveField("nosuchns", "resolution")
	assert.False(t, ok)
}

func TestNamespaceRegistryNamespaceLookup(t *testing.T) {
	reg := NewNamespaceRegistry()

	_, ok := reg.Namespace("core")
	assert.True(t, ok)
	_, ok = reg.Namespace("nope")
	assert.False(t, ok)
}

func TestBindValueGeometry(t *testing.T) {
	point := geometry.Point{X: 1.5, Y: 2.5}
	expr, arg, err := bindValue(schema.KindGeometry, point)
	require.NoError(t, err)
	assert.Equal(t, "ST_GeomFromEWKB(?)", expr)
	assert.NotEmpty(t, arg)
}

func TestBindValueGeometryWrongType(t *testing.T) {
	_, _, err := bindValue(schema.KindGeometry, "not-a-geometry")
	assert.Error(t, err)
}

func TestBindValueUUID(t *testing.T) {
	id := uuid.New()
	expr, arg, err := bindValue(schema.KindUUID, id)
	require.NoError(t, err)
	assert.Equal(t, "?", expr)
	assert.Equal(t, id.String(), arg)

	expr, arg, err = bindValue(schema.KindUUID, id.String())
	require.NoError(t, err)
	assert.Equal(t, "?", expr)
	assert.Equal(t, id.String(), arg)

	_, _, err = bindValue(schema.KindUUID, 42)
	assert.Error(t, err)
}

func TestBindValueJSON(t *testing.T) {
	expr, arg, err := bindValue(schema.KindJSON, map[string]any{"a": 1})
	require.NoError(t, err)
	assert.Equal(t, "?", expr)
	assert.JSONEq(t, `{"a":1}`, arg.(string))
}

func TestBindValuePassthrough(t *testing.T) {
	expr, arg, err := bindValue(schema.KindText, "hello")
	require.NoError(t, err)
	assert.Equal(t, "?", expr)
	assert.Equal(t, "hello", arg)
}

func TestCoreUUID(t *testing.T) {
	id := uuid.New()

	got, err := coreUUID(schema.Struct{"uuid": id})
	require.NoError(t, err)
	assert.Equal(t, id, got)

	got, err = coreUUID(schema.Struct{"uuid": id.String()})
	require.NoError(t, err)
	assert.Equal(t, id, got)

	_, err = coreUUID(schema.Struct{})
	assert.Error(t, err)

	_, err = coreUUID(schema.Struct{"uuid": "not-a-uuid"})
	assert.Error(t, err)

	_, err = coreUUID(schema.Struct{"uuid": 42})
	assert.Error(t, err)
}

func TestIsUniqueViolation(t *testing.T) {
	assert.True(t, isUniqueViolation(&pgconn.PgError{Code: postgresUniqueViolation}))
	assert.False(t, isUniqueViolation(&pgconn.PgError{Code: "42601"}))
	assert.False(t, isUniqueViolation(assert.AnError))
}

func TestQuoteIdent(t *testing.T) {
	assert.Equal(t, `"core"`, quoteIdent("core"))
}
