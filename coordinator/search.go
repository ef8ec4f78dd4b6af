package coordinator

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"eve.evalgo.org/muninn/catalog"
	"eve.evalgo.org/muninn/lang"
	"eve.evalgo.org/muninn/muninnerr"
	"eve.evalgo.org/muninn/schema"
	"eve.evalgo.org/muninn/sqlbuild"
)

// ParseExpression parses and analyzes src against this archive's
// namespace schemas and function table, for callers (the cmd/muninn CLI)
// that need to build a catalog.SearchQuery from a user-supplied
// expression string, matching archive.py's search/tag/untag/count/
// summary all accepting a "where" expression string.
func (c *Coordinator) ParseExpression(src string, parameters map[string]any) (lang.Node, error) {
	if src == "" {
		return nil, nil
	}
	return lang.ParseAndAnalyze(src, &lang.Analyzer{
		Functions:  c.functions,
		Namespaces: c.catalogue.Namespaces(),
		Parameters: parameters,
	})
}

// Namespaces exposes the catalogue's registered namespace schemas, used
// by the CLI to select every namespace in searches and to describe the
// namespaces in its info command.
func (c *Coordinator) Namespaces() *catalog.NamespaceRegistry {
	return c.catalogue.Namespaces()
}

// Search runs q against the catalogue, following archive.py's search.
func (c *Coordinator) Search(ctx context.Context, q catalog.SearchQuery) ([]*schema.Product, error) {
	return c.catalogue.Search(ctx, q)
}

// Count returns the number of products matching where, following
// archive.py's count.
func (c *Coordinator) Count(ctx context.Context, where lang.Node, parameters map[string]any) (int64, error) {
	return c.catalogue.Count(ctx, where, parameters)
}

// Summary runs a grouped aggregate query, following archive.py's
// summary.
func (c *Coordinator) Summary(ctx context.Context, q catalog.SummaryQuery) ([]map[string]any, error) {
	return c.catalogue.Summary(ctx, q)
}

// SearchAggregate is the aggregate specifier the "summary" CLI command
// builds from its "-a field:func" flags, re-exported so callers don't
// need to import package sqlbuild directly.
type SearchAggregate = sqlbuild.Aggregate

// Tag adds tags to every product matching where, following archive.py's
// tag(where, tags).
func (c *Coordinator) Tag(ctx context.Context, where lang.Node, parameters map[string]any, tags []string) (int, error) {
	products, err := c.catalogue.Search(ctx, catalog.SearchQuery{Where: where, Parameters: parameters})
	if err != nil {
		return 0, err
	}
	for _, product := range products {
		id := mustUUID(product)
		if err := c.catalogue.Tag(ctx, id, tags); err != nil {
			return 0, err
		}
	}
	return len(products), nil
}

// Untag removes tags from every product matching where, following
// archive.py's untag(where, tags). An empty tags list removes all tags.
func (c *Coordinator) Untag(ctx context.Context, where lang.Node, parameters map[string]any, tags []string) (int, error) {
	products, err := c.catalogue.Search(ctx, catalog.SearchQuery{Where: where, Parameters: parameters})
	if err != nil {
		return 0, err
	}
	for _, product := range products {
		id := mustUUID(product)
		var toRemove []string
		if len(tags) == 0 {
			toRemove, err = c.catalogue.Tags(ctx, id)
			if err != nil {
				return 0, err
			}
		} else {
			toRemove = tags
		}
		if err := c.catalogue.Untag(ctx, id, toRemove); err != nil {
			return 0, err
		}
	}
	return len(products), nil
}

// ProductTags returns the tags set on product, following archive.py's
// tags(uuid).
func (c *Coordinator) ProductTags(ctx context.Context, product *schema.Product) ([]string, error) {
	return c.catalogue.Tags(ctx, mustUUID(product))
}

// DeleteProperties removes product's catalogue entry without touching
// its storage, following archive.py's delete_properties (the "remove
// --catalogue-only" CLI path).
func (c *Coordinator) DeleteProperties(ctx context.Context, product *schema.Product) error {
	return c.catalogue.DeleteProductProperties(ctx, mustUUID(product))
}

// ByUUID exposes getByUUID for the CLI's product-identifier lookups.
func (c *Coordinator) ByUUID(ctx context.Context, id uuid.UUID) (*schema.Product, error) {
	return c.getByUUID(ctx, id)
}

// ExportFormats lists the alternative export formats product's product
// type plugin supports beyond plain retrieval, or nil if it implements
// no Exporter, following archive.py's export_formats.
func (c *Coordinator) ExportFormats(product *schema.Product) []string {
	productType, _ := product.Core["product_type"].(string)
	plugin, err := c.plugin(productType)
	if err != nil {
		return nil
	}
	exporter, ok := plugin.(Exporter)
	if !ok {
		return nil
	}
	return exporter.ExportFormats()
}

// Export writes product's files to targetDir in format, either via its
// product type plugin's Exporter (when format is non-empty and the
// plugin supports it) or by falling back to a plain Retrieve, following
// archive.py's export.
func (c *Coordinator) Export(ctx context.Context, product *schema.Product, format, targetDir string) ([]string, error) {
	if format != "" {
		productType, _ := product.Core["product_type"].(string)
		plugin, err := c.plugin(productType)
		if err != nil {
			return nil, err
		}
		exporter, ok := plugin.(Exporter)
		if !ok {
			return nil, muninnerr.NewUserError("product type %q does not support export format %q", productType, format)
		}
		found := false
		for _, f := range exporter.ExportFormats() {
			if f == format {
				found = true
				break
			}
		}
		if !found {
			return nil, muninnerr.NewUserError("product type %q does not support export format %q", productType, format)
		}
		return exporter.Export(ctx, product, format, targetDir)
	}
	if err := c.Retrieve(ctx, product, targetDir, false); err != nil {
		return nil, err
	}
	return nil, nil
}

// Retype changes product's product_type in place, following the
// original's update tool's "retype" action (muninn/tools/update.py),
// which patches core.product_type directly via update_properties rather
// than through any ingest/pull protocol.
func (c *Coordinator) Retype(ctx context.Context, product *schema.Product, newType string) error {
	id := mustUUID(product)
	patch := schema.NewProduct()
	patch.Core["product_type"] = newType
	return c.catalogue.UpdateProductProperties(ctx, id, patch, nil)
}

// VerifyHash recomputes product's archived hash and compares it against
// the stored digest, returning a *muninnerr.IntegrityError on mismatch,
// following archive.py's verify_hash (the "hash verify" CLI subcommand).
// A product with no stored hash passes trivially.
func (c *Coordinator) VerifyHash(ctx context.Context, product *schema.Product) error {
	archivePath, _ := product.Core["archive_path"].(string)
	stored, _ := product.Core["hash"].(string)
	hashType, _ := SplitHash(stored)
	return c.verifyHash(ctx, product, archivePath, hashType)
}

// Destroy drops the catalogue schema and, if a storage backend is
// configured, its archive root, following archive.py's destroy.
func (c *Coordinator) Destroy(ctx context.Context) error {
	if err := c.catalogue.Destroy(ctx); err != nil {
		return fmt.Errorf("coordinator: destroying catalogue: %w", err)
	}
	if c.storage != nil {
		if err := c.storage.Destroy(ctx); err != nil {
			return fmt.Errorf("coordinator: destroying storage: %w", err)
		}
	}
	return nil
}
