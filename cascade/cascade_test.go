package cascade

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"eve.evalgo.org/muninn/schema"
)

type fakeFinder struct {
	sourceless  map[string][]*schema.Product
	unavailable map[string][]*schema.Product
	calls       []string
}

func (f *fakeFinder) FindProductsWithoutSource(ctx context.Context, productType string, grace time.Duration, archivedOnly bool) ([]*schema.Product, error) {
	f.calls = append(f.calls, "sourceless:"+productType)
	products := f.sourceless[productType]
	f.sourceless[productType] = nil
	return products, nil
}

func (f *fakeFinder) FindProductsWithoutAvailableSource(ctx context.Context, productType string, grace time.Duration) ([]*schema.Product, error) {
	f.calls = append(f.calls, "unavailable:"+productType)
	products := f.unavailable[productType]
	f.unavailable[productType] = nil
	return products, nil
}

func product(name string) *schema.Product {
	return &schema.Product{Core: schema.Struct{"product_name": name}}
}

func TestCleanupIgnoreRuleSkipsProductType(t *testing.T) {
	finder := &fakeFinder{sourceless: map[string][]*schema.Product{"a": {product("x")}}}
	var stripped, purged []string
	strip := func(ctx context.Context, p *schema.Product) error {
		stripped = append(stripped, p.Core["product_name"].(string))
		return nil
	}
	purge := func(ctx context.Context, p *schema.Product) error {
		purged = append(purged, p.Core["product_name"].(string))
		return nil
	}

	err := Cleanup(context.Background(), finder, strip, purge, Config{Rules: map[string]Rule{"a": IGNORE}})
	require.NoError(t, err)
	assert.Empty(t, stripped)
	assert.Empty(t, purged)
}

func TestCleanupStripRuleStripsBothQueries(t *testing.T) {
	finder := &fakeFinder{
		sourceless:  map[string][]*schema.Product{"a": {product("x")}},
		unavailable: map[string][]*schema.Product{"a": {product("y")}},
	}
	var stripped []string
	strip := func(ctx context.Context, p *schema.Product) error {
		stripped = append(stripped, p.Core["product_name"].(string))
		return nil
	}
	purge := func(ctx context.Context, p *schema.Product) error {
		t.Fatalf("purge should not be called for STRIP rule")
		return nil
	}

	err := Cleanup(context.Background(), finder, strip, purge, Config{Rules: map[string]Rule{"a": STRIP}})
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"x", "y"}, stripped)
}

func TestCleanupCascadeRulePurgesSourcelessStripsUnavailable(t *testing.T) {
	finder := &fakeFinder{
		sourceless:  map[string][]*schema.Product{"a": {product("x")}},
		unavailable: map[string][]*schema.Product{"a": {product("y")}},
	}
	var stripped, purged []string
	strip := func(ctx context.Context, p *schema.Product) error {
		stripped = append(stripped, p.Core["product_name"].(string))
		return nil
	}
	purge := func(ctx context.Context, p *schema.Product) error {
		purged = append(purged, p.Core["product_name"].(string))
		return nil
	}

	err := Cleanup(context.Background(), finder, strip, purge, Config{Rules: map[string]Rule{"a": CASCADE}})
	require.NoError(t, err)
	assert.Equal(t, []string{"y"}, stripped)
	assert.Equal(t, []string{"x"}, purged)
}

func TestCleanupCascadePurgeSkipsAvailabilityQuery(t *testing.T) {
	finder := &fakeFinder{
		sourceless:  map[string][]*schema.Product{"a": {product("x")}},
		unavailable: map[string][]*schema.Product{"a": {product("y")}},
	}
	purge := func(ctx context.Context, p *schema.Product) error { return nil }
	strip := func(ctx context.Context, p *schema.Product) error { return nil }

	err := Cleanup(context.Background(), finder, strip, purge, Config{Rules: map[string]Rule{"a": CASCADE_PURGE}})
	require.NoError(t, err)
	for _, call := range finder.calls {
		assert.NotContains(t, call, "unavailable", "CASCADE_PURGE must never query availability")
	}
}

func TestCleanupStopsWhenNothingAffected(t *testing.T) {
	finder := &fakeFinder{sourceless: map[string][]*schema.Product{"a": nil}, unavailable: map[string][]*schema.Product{"a": nil}}
	noop := func(ctx context.Context, p *schema.Product) error { return nil }

	err := Cleanup(context.Background(), finder, noop, noop, Config{Rules: map[string]Rule{"a": CASCADE}})
	require.NoError(t, err)
	// Exactly one cycle: sourceless + unavailable queries, then stop.
	assert.Equal(t, []string{"sourceless:a", "unavailable:a"}, finder.calls)
}

func TestCleanupRespectsMaxCycles(t *testing.T) {
	calls := 0
	finder := &alwaysAffectedFinder{calls: &calls}
	noop := func(ctx context.Context, p *schema.Product) error { return nil }

	err := Cleanup(context.Background(), finder, noop, noop, Config{Rules: map[string]Rule{"a": STRIP}, MaxCycles: 3})
	require.NoError(t, err)
	assert.Equal(t, 3, calls)
}

type alwaysAffectedFinder struct {
	calls *int
}

func (f *alwaysAffectedFinder) FindProductsWithoutSource(ctx context.Context, productType string, grace time.Duration, archivedOnly bool) ([]*schema.Product, error) {
	*f.calls++
	return []*schema.Product{product("x")}, nil
}

func (f *alwaysAffectedFinder) FindProductsWithoutAvailableSource(ctx context.Context, productType string, grace time.Duration) ([]*schema.Product, error) {
	return nil, nil
}
