// Package store is the storage backend: the byte-level counterpart to
// package catalog, responsible for where a product's files actually
// live and how they get there, following spec.md §4.6. A Backend never
// touches the catalogue; the coordinator is what ties a catalogue row
// to the bytes a Backend manages.
package store

import (
	"context"

	"eve.evalgo.org/muninn/schema"
)

// RetrieveFunc populates a staging directory with a product's files,
// returning their final local paths, used when ingest pulls data from a
// remote source directly into staging rather than copying local paths.
type RetrieveFunc func(stagingDir string) ([]string, error)

// RunForProductFunc runs against a product's already-staged files (still
// under the backend's still-inactive state) before the catalogue row is
// activated — e.g. to run a post-archive hook with access to the final
// on-disk layout.
type RunForProductFunc func(paths []string) error

// Backend is the storage contract every concrete store implements.
// Methods accept schema.Struct (a product's core namespace properties)
// rather than *schema.Product, since storage only ever needs the core
// fields (archive_path, physical_name, uuid).
type Backend interface {
	Prepare(ctx context.Context) error
	Destroy(ctx context.Context) error
	Exists(ctx context.Context) (bool, error)

	// ProductPath returns the backend-local path (or key, for object
	// stores) where core's files live once archived.
	ProductPath(core schema.Struct) string

	// CurrentArchivePath derives archive_path from paths already
	// resident inside the archive (use_current_path ingest), validating
	// that every part sits under the same enclosing directory.
	CurrentArchivePath(paths []string, core schema.Struct) (string, error)

	// Put stores paths (or whatever retrieveFiles populates staging
	// with) under core's archive_path/physical_name, following the
	// staging-then-atomic-rename protocol documented on each backend.
	// runForProduct, if non-nil, runs once the product is staged at its
	// final path but before Put returns, so a caller can run a hook
	// against on-disk content while the catalogue row is still
	// inactive.
	Put(ctx context.Context, paths []string, core schema.Struct, useEnclosingDirectory, useSymlinks bool, retrieveFiles RetrieveFunc, runForProduct RunForProductFunc) error

	// Get copies (or symlinks) the product's files from their archived
	// location into targetDir.
	Get(ctx context.Context, core schema.Struct, productPath, targetDir string, useEnclosingDirectory, useSymlinks bool) error

	// Size measures the total byte size of whatever lives at path.
	Size(ctx context.Context, path string) (int64, error)

	// Delete removes the product's files. A path that no longer exists
	// is not an error, matching the original implementation's
	// idempotent delete.
	Delete(ctx context.Context, productPath string, core schema.Struct) error

	// Move relocates an already-archived product to newArchivePath,
	// rewriting paths (if given) to their new absolute locations.
	Move(ctx context.Context, core schema.Struct, newArchivePath string, paths []string) ([]string, error)

	// RunForProduct invokes fn with the product's current file paths,
	// expanding the enclosing directory's contents when present.
	RunForProduct(ctx context.Context, core schema.Struct, fn RunForProductFunc, useEnclosingDirectory bool) error

	// SupportsSymlinks reports whether Put/Get honor useSymlinks. Only a
	// local filesystem backend can, since intra-archive symlinks
	// require a shared filesystem namespace.
	SupportsSymlinks() bool
}

func coreString(core schema.Struct, field string) string {
	v, _ := core[field].(string)
	return v
}

var (
	_ Backend = (*Filesystem)(nil)
	_ Backend = (*S3)(nil)
)
