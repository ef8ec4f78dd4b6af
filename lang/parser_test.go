package lang

import (
	"testing"

	"eve.evalgo.org/muninn/schema"
	"github.com/stretchr/testify/require"
)

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
		case "validity_start":
			return schema.KindTimestamp, true
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

func newAnalyzer() *Analyzer {
	return &Analyzer{Functions: DefaultFunctionTable(), Namespaces: testNamespaces{}}
}

func TestParseSimpleComparison(t *testing.T) {
	node, err := Parse(`product_name == "pi.txt"`)
	require.NoError(t, err)

	call, ok := node.(*FunctionCall)
	require.True(t, ok)
	require.Equal(t, OpEq, call.Name)
	require.Len(t, call.Arguments, 2)
}

func TestAnalyzeResolvesBareNameToCore(t *testing.T) {
	node, err := ParseAndAnalyze(`product_name == "pi.txt"`, newAnalyzer())
	require.NoError(t, err)

	call := node.(*FunctionCall)
	name := call.Arguments[0].(*Name)
	require.Equal(t, "core", name.Namespace)
	require.Equal(t, "product_name", name.Field)
	require.Equal(t, schema.KindBoolean, node.Type())
}

func TestAnalyzeNamespaceQualifiedField(t *testing.T) {
	node, err := ParseAndAnalyze(`gridfile.resolution == 10`, newAnalyzer())
	require.NoError(t, err)
	require.Equal(t, schema.KindBoolean, node.Type())
}

func TestAnalyzeUnknownFieldFails(t *testing.T) {
	_, err := ParseAndAnalyze(`nope == 1`, newAnalyzer())
	require.Error(t, err)
}

func TestAnalyzeMissingParameterFails(t *testing.T) {
	_, err := ParseAndAnalyze(`product_name == @name`, newAnalyzer())
	require.Error(t, err)
}

func TestAnalyzeParameterReference(t *testing.T) {
	a := newAnalyzer()
	a.Parameters = map[string]any{"name": "pi.txt"}
	node, err := ParseAndAnalyze(`product_name == @name`, a)
	require.NoError(t, err)
	require.Equal(t, schema.KindBoolean, node.Type())
}

func TestAndOrNotPrecedence(t *testing.T) {
	node, err := ParseAndAnalyze(`not (size > 0) and product_name == "a" or product_name == "b"`, newAnalyzer())
	require.NoError(t, err)
	top := node.(*FunctionCall)
	require.Equal(t, OpOr, top.Name)
}

func TestTimestampSentinels(t *testing.T) {
	tok := NewTokenizer("0000-00-00")
	token, err := tok.Next()
	require.NoError(t, err)
	require.Equal(t, TokTimestamp, token.Kind)
	require.Equal(t, minTimestamp, token.Value)
}

func TestGeometryLiteralParses(t *testing.T) {
	node, err := Parse(`covers(footprint, POINT(4.895 52.370))`)
	require.NoError(t, err)
	call := node.(*FunctionCall)
	require.Equal(t, "covers", call.Name)
	require.Len(t, call.Arguments, 2)
}

func TestAmbiguousOverloadNotPossibleForDistinctArity(t *testing.T) {
	table := DefaultFunctionTable()
	candidates := table.Resolve(FnIsSrcOf, []schema.Kind{schema.KindUUID})
	require.Len(t, candidates, 1)
}
