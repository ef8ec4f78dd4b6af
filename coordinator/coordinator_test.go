package coordinator

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"eve.evalgo.org/muninn/catalog"
	"eve.evalgo.org/muninn/lang"
	"eve.evalgo.org/muninn/schema"
)

// fakeCatalogue is an in-memory catalog.Catalogue stub exercising only
// the operations the coordinator's lifecycle methods actually call.
type fakeCatalogue struct {
	namespaces *catalog.NamespaceRegistry
	rows       map[string]*schema.Product
	tags       map[string][]string
}

func newFakeCatalogue() *fakeCatalogue {
	return &fakeCatalogue{
		namespaces: catalog.NewNamespaceRegistry(),
		rows:       map[string]*schema.Product{},
		tags:       map[string][]string{},
	}
}

func (f *fakeCatalogue) Prepare(ctx context.Context) error { return nil }
func (f *fakeCatalogue) Destroy(ctx context.Context) error { return nil }
func (f *fakeCatalogue) Exists(ctx context.Context) (bool, error) { return true, nil }
func (f *fakeCatalogue) ServerTimeUTC(ctx context.Context) (time.Time, error) {
	return time.Unix(0, 0).UTC(), nil
}
func (f *fakeCatalogue) RegisterNamespace(name string, fields schema.Fields) {
	f.namespaces.Register(name, fields)
}
func (f *fakeCatalogue) Namespaces() *catalog.NamespaceRegistry { return f.namespaces }

func (f *fakeCatalogue) InsertProductProperties(ctx context.Context, product *schema.Product) error {
	id, _ := product.Core["uuid"].(string)
	f.rows[id] = product
	return nil
}

func (f *fakeCatalogue) UpdateProductProperties(ctx context.Context, id uuid.UUID, product *schema.Product, newNamespaces []string) error {
	row, ok := f.rows[id.String()]
	if !ok {
		return nil
	}
	for k, v := range product.Core {
		row.Core[k] = v
	}
	return nil
}

func (f *fakeCatalogue) DeleteProductProperties(ctx context.Context, id uuid.UUID) error {
	delete(f.rows, id.String())
	return nil
}

func (f *fakeCatalogue) Tag(ctx context.Context, id uuid.UUID, tags []string) error {
	f.tags[id.String()] = append(f.tags[id.String()], tags...)
	return nil
}
func (f *fakeCatalogue) Untag(ctx context.Context, id uuid.UUID, tags []string) error {
	return nil
}
func (f *fakeCatalogue) Tags(ctx context.Context, id uuid.UUID) ([]string, error) {
	return f.tags[id.String()], nil
}

func (f *fakeCatalogue) Link(ctx context.Context, id uuid.UUID, sourceIDs []uuid.UUID) error {
	return nil
}
func (f *fakeCatalogue) Unlink(ctx context.Context, id uuid.UUID, sourceIDs []uuid.UUID) error {
	return nil
}
func (f *fakeCatalogue) SourceProducts(ctx context.Context, id uuid.UUID) ([]uuid.UUID, error) {
	return nil, nil
}
func (f *fakeCatalogue) DerivedProducts(ctx context.Context, id uuid.UUID) ([]uuid.UUID, error) {
	return nil, nil
}

func (f *fakeCatalogue) Count(ctx context.Context, where lang.Node, parameters map[string]any) (int64, error) {
	return int64(len(f.rows)), nil
}

func (f *fakeCatalogue) Search(ctx context.Context, q catalog.SearchQuery) ([]*schema.Product, error) {
	var out []*schema.Product
	for _, row := range f.rows {
		out = append(out, row)
		if q.Limit > 0 && len(out) >= q.Limit {
			break
		}
	}
	return out, nil
}

func (f *fakeCatalogue) Summary(ctx context.Context, q catalog.SummaryQuery) ([]map[string]any, error) {
	return nil, nil
}

func (f *fakeCatalogue) FindProductsWithoutSource(ctx context.Context, productType string, grace time.Duration, archivedOnly bool) ([]*schema.Product, error) {
	return nil, nil
}
func (f *fakeCatalogue) FindProductsWithoutAvailableSource(ctx context.Context, productType string, grace time.Duration) ([]*schema.Product, error) {
	return nil, nil
}

func (f *fakeCatalogue) WithTransaction(ctx context.Context, fn func(ctx context.Context) error) error {
	return fn(ctx)
}

var _ catalog.Catalogue = (*fakeCatalogue)(nil)

// stubPlugin is a minimal ProductTypePlugin for exercising the
// coordinator independently of any real product type's analysis logic.
type stubPlugin struct {
	identifies bool
	hashType   string
}

func (p *stubPlugin) Identify(paths []string) bool { return p.identifies }
func (p *stubPlugin) Analyze(ctx context.Context, paths []string) (*schema.Product, []string, error) {
	return schema.NewProduct(), nil, nil
}
func (p *stubPlugin) ArchivePath(product *schema.Product) (string, error) { return "stub/path", nil }
func (p *stubPlugin) UseEnclosingDirectory() bool                        { return false }
func (p *stubPlugin) EnclosingDirectoryName(product *schema.Product) (string, error) {
	return "", nil
}
func (p *stubPlugin) HashType() string { return p.hashType }

func TestRegisterProductTypeRejectsRedefinition(t *testing.T) {
	c := New(newFakeCatalogue(), nil, nil, nil, Config{})
	require.NoError(t, c.RegisterProductType("widget", &stubPlugin{}))
	err := c.RegisterProductType("widget", &stubPlugin{})
	assert.Error(t, err)
}

func TestIdentifyReturnsFirstMatchingPlugin(t *testing.T) {
	c := New(newFakeCatalogue(), nil, nil, nil, Config{})
	require.NoError(t, c.RegisterProductType("a", &stubPlugin{identifies: false}))
	require.NoError(t, c.RegisterProductType("b", &stubPlugin{identifies: true}))
	require.NoError(t, c.RegisterProductType("c", &stubPlugin{identifies: true}))

	productType, err := c.Identify([]string{"/tmp/x"})
	require.NoError(t, err)
	assert.Equal(t, "b", productType)
}

func TestIdentifyErrorsWhenNoPluginMatches(t *testing.T) {
	c := New(newFakeCatalogue(), nil, nil, nil, Config{})
	require.NoError(t, c.RegisterProductType("a", &stubPlugin{}))

	_, err := c.Identify([]string{"/tmp/x"})
	assert.Error(t, err)
}

func TestCheckPathsRejectsDuplicateBasenames(t *testing.T) {
	_, err := checkPaths([]string{"/tmp/a/file", "/tmp/b/file"}, "ingest")
	assert.Error(t, err)
}

func TestCheckPathsRejectsEmpty(t *testing.T) {
	_, err := checkPaths(nil, "ingest")
	assert.Error(t, err)
}

func TestPhysicalNameForSingleFile(t *testing.T) {
	name, err := physicalNameFor(&stubPlugin{}, schema.NewProduct(), []string{"/tmp/a/file.dat"})
	require.NoError(t, err)
	assert.Equal(t, "file.dat", name)
}

func TestPhysicalNameForMultiFileWithoutEnclosingDirErrors(t *testing.T) {
	_, err := physicalNameFor(&stubPlugin{}, schema.NewProduct(), []string{"/tmp/a", "/tmp/b"})
	assert.Error(t, err)
}

func TestSplitHashLegacyValueIsSHA1(t *testing.T) {
	algo, digest := SplitHash("deadbeef")
	assert.Equal(t, "sha1", algo)
	assert.Equal(t, "deadbeef", digest)
}

func TestSplitHashPrefixed(t *testing.T) {
	algo, digest := SplitHash("sha256:deadbeef")
	assert.Equal(t, "sha256", algo)
	assert.Equal(t, "deadbeef", digest)
}
