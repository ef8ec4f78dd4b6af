package coordinator

import (
	"context"

	"eve.evalgo.org/muninn/cascade"
	"eve.evalgo.org/muninn/schema"
)

// ProductTypePlugin extracts metadata from, and locates within the
// archive, products of one product type, implementing spec.md §4.8's
// plugin API. A product type is registered once, in the order it should
// be consulted both for auto-identification and for hook dispatch.
type ProductTypePlugin interface {
	// Identify reports whether paths look like this product type. Used
	// during Ingest when the caller does not name a type
	// explicitly; plugins are tried in registration order and the first
	// match wins.
	Identify(paths []string) bool

	// Analyze extracts a product's properties (core plus any extension
	// namespaces the plugin populates) and tags from its on-disk
	// representation. The returned product's Core need not be complete:
	// the coordinator fills in uuid/active/hash/size/product_type/
	// physical_name/archive_path itself.
	Analyze(ctx context.Context, paths []string) (*schema.Product, []string, error)

	// ArchivePath derives the archive-relative path a product should be
	// stored at from its properties.
	ArchivePath(product *schema.Product) (string, error)

	// UseEnclosingDirectory reports whether this product type's files
	// live inside a directory named after the product's physical_name.
	UseEnclosingDirectory() bool

	// EnclosingDirectoryName derives the physical_name for a multi-file
	// product from its properties. Only called when
	// UseEnclosingDirectory is true.
	EnclosingDirectoryName(product *schema.Product) (string, error)

	// HashType names the digest algorithm used for this product type's
	// hash field (e.g. "sha1", "sha256"). An empty string disables
	// hashing for this product type.
	HashType() string
}

// CascadeRuleProvider is implemented by a plugin that overrides the
// default cascade.IGNORE rule for its product type, per spec.md §4.9.
type CascadeRuleProvider interface {
	CascadeRule() cascade.Rule
}

// Exporter is implemented by a plugin offering one or more named export
// formats distinct from plain retrieval, per spec.md §4.8's "Retrieve /
// Export" contract (the original's export_<format> method convention).
// ExportFormats is consulted by the coordinator to decide whether a
// caller-requested format is plugin-handled at all; Export is called
// only for a format ExportFormats names.
type Exporter interface {
	ExportFormats() []string
	Export(ctx context.Context, product *schema.Product, format, targetDir string) ([]string, error)
}
