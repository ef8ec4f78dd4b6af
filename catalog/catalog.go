// Package catalog is the product metadata store: the authoritative
// record of every attached or ingested product's core and extension
// namespace properties, tags, and source/derived lineage links,
// following spec.md §4.5. The PostgreSQL-backed implementation in
// postgres.go uses gorm.io/gorm only for connection lifecycle and
// transaction management; every query it actually runs is assembled by
// package sqlbuild, since gorm's own query builder cannot express the
// dynamic, schema-driven namespace joins the expression language
// requires.
package catalog

import (
	"context"
	"time"

	"github.com/google/uuid"

	"eve.evalgo.org/muninn/lang"
	"eve.evalgo.org/muninn/schema"
	"eve.evalgo.org/muninn/sqlbuild"
)

// SearchQuery parameterizes Catalogue.Search.
type SearchQuery struct {
	Where      lang.Node
	Parameters map[string]any
	Namespaces []string
	OrderBy    []sqlbuild.OrderTerm
	Limit      int
	Offset     int
}

// SummaryQuery parameterizes Catalogue.Summary.
type SummaryQuery struct {
	Where      lang.Node
	Parameters map[string]any
	GroupBy    []lang.Node
	Aggregates []sqlbuild.Aggregate
}

// Catalogue is the product metadata store contract every backend
// implements. All mutating methods run inside an implicit transaction;
// WithTransaction lets a caller batch several mutations atomically.
type Catalogue interface {
	// Prepare creates the schema (core/extension/link/tag tables and
	// their indexes) if it does not already exist.
	Prepare(ctx context.Context) error
	// Destroy drops every table the catalogue owns.
	Destroy(ctx context.Context) error
	// Exists reports whether the catalogue schema has been prepared.
	Exists(ctx context.Context) (bool, error)
	// ServerTimeUTC returns the backend's current time, used by the
	// coordinator to stamp archive_date/creation_date consistently
	// with whatever clock the catalogue itself uses for comparisons.
	ServerTimeUTC(ctx context.Context) (time.Time, error)

	// RegisterNamespace adds an extension namespace's schema so the
	// catalogue can materialize its table and accept its properties.
	RegisterNamespace(name string, fields schema.Fields)
	Namespaces() *NamespaceRegistry

	InsertProductProperties(ctx context.Context, product *schema.Product) error
	// UpdateProductProperties updates id's properties. newNamespaces
	// lists namespace names present in product that are being attached
	// for the first time (and so must be inserted, not updated).
	UpdateProductProperties(ctx context.Context, id uuid.UUID, product *schema.Product, newNamespaces []string) error
	DeleteProductProperties(ctx context.Context, id uuid.UUID) error

	Tag(ctx context.Context, id uuid.UUID, tags []string) error
	Untag(ctx context.Context, id uuid.UUID, tags []string) error
	Tags(ctx context.Context, id uuid.UUID) ([]string, error)

	Link(ctx context.Context, id uuid.UUID, sourceIDs []uuid.UUID) error
	Unlink(ctx context.Context, id uuid.UUID, sourceIDs []uuid.UUID) error
	SourceProducts(ctx context.Context, id uuid.UUID) ([]uuid.UUID, error)
	DerivedProducts(ctx context.Context, id uuid.UUID) ([]uuid.UUID, error)

	Count(ctx context.Context, where lang.Node, parameters map[string]any) (int64, error)
	Search(ctx context.Context, q SearchQuery) ([]*schema.Product, error)
	Summary(ctx context.Context, q SummaryQuery) ([]map[string]any, error)

	// FindProductsWithoutSource returns every active product, archived
	// longer ago than gracePeriod, with no outgoing link row — i.e. no
	// recorded source products at all.
	FindProductsWithoutSource(ctx context.Context, productType string, gracePeriod time.Duration, archivedOnly bool) ([]*schema.Product, error)
	// FindProductsWithoutAvailableSource returns every active product,
	// archived longer ago than gracePeriod, that has at least one recorded
	// source and whose every recorded source product is present in the
	// catalogue but unavailable (no archive_path). A product with an external
	// (not-in-catalogue) source link cannot be judged either way and is
	// excluded, mirroring the original implementation's caveat.
	FindProductsWithoutAvailableSource(ctx context.Context, productType string, gracePeriod time.Duration) ([]*schema.Product, error)

	// WithTransaction runs fn with every mutation it performs committed
	// or rolled back atomically. Nested calls fail with
	// *muninnerr.InternalError: the connection wrapper forbids
	// re-entrant transactions (spec.md §9).
	WithTransaction(ctx context.Context, fn func(ctx context.Context) error) error
}
