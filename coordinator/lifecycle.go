package coordinator

import (
	"context"
	"os"
	"strings"

	"github.com/google/uuid"

	"eve.evalgo.org/muninn/hooks"
	"eve.evalgo.org/muninn/muninnerr"
	"eve.evalgo.org/muninn/schema"
)

// IngestOptions parameterizes Ingest, following the original
// implementation's archive.ingest keyword arguments.
type IngestOptions struct {
	ProductType      string
	Properties       *schema.Product
	Tags             []string
	Force            bool
	IngestProduct    bool
	UseCurrentPath   bool
	UseEnclosingDir  bool
	UseSymlinks      bool
	VerifyHash       bool
	VerifyHashBefore bool
}

// Ingest runs the 11-step ingest protocol spec.md §4.8 documents:
// classify, analyze, assign identity, store (or synthesize a remote_url
// when storage is nil), activate, tag, and run the create/ingest hook.
func (c *Coordinator) Ingest(ctx context.Context, paths []string, opts IngestOptions) (*schema.Product, error) {
	resolved, err := checkPaths(paths, "ingest")
	if err != nil {
		return nil, err
	}

	productType := opts.ProductType
	if productType == "" {
		productType, err = c.Identify(resolved)
		if err != nil {
			return nil, err
		}
	}
	plugin, err := c.plugin(productType)
	if err != nil {
		return nil, err
	}

	product := opts.Properties
	var analyzedTags []string
	if product == nil {
		product, analyzedTags, err = plugin.Analyze(ctx, resolved)
		if err != nil {
			return nil, err
		}
	}
	if product.Core == nil {
		product.Core = schema.Struct{}
	}

	now, err := c.catalogue.ServerTimeUTC(ctx)
	if err != nil {
		return nil, err
	}
	id := newUUID()
	product.Core["uuid"] = id.String()
	product.Core["active"] = false
	product.Core["hash"] = nil
	product.Core["metadata_date"] = now
	product.Core["archive_date"] = nil
	product.Core["archive_path"] = nil
	product.Core["product_type"] = productType

	size, err := ProductSize(resolved)
	if err != nil {
		return nil, err
	}
	product.Core["size"] = size

	name, err := physicalNameFor(plugin, product, resolved)
	if err != nil {
		return nil, err
	}
	if err := schema.ValidateBasename(name); err != nil {
		return nil, err
	}
	product.Core["physical_name"] = name

	var archivePath string
	if opts.IngestProduct && c.storage != nil {
		if opts.UseCurrentPath {
			archivePath, err = c.storage.CurrentArchivePath(resolved, product.Core)
		} else {
			archivePath, err = plugin.ArchivePath(product)
		}
		if err != nil {
			return nil, err
		}
	}

	if existing, found, err := c.findByTypeAndName(ctx, productType, name); err != nil {
		return nil, err
	} else if found {
		if !opts.Force {
			return nil, muninnerr.NewUserError("product %s %q already exists", productType, name)
		}
		existingPath, _ := existing.Core["archive_path"].(string)
		if opts.UseCurrentPath && existingPath != "" && existingPath == archivePath {
			// The bytes being ingested are the existing product's own bytes:
			// drop only its catalogue entry so they are not deleted.
			if err := c.catalogue.DeleteProductProperties(ctx, mustUUID(existing)); err != nil {
				return nil, err
			}
		} else if err := c.removeOne(ctx, existing, true, false); err != nil {
			return nil, err
		}
	}

	if err := c.catalogue.InsertProductProperties(ctx, product); err != nil {
		return nil, err
	}
	if len(opts.Tags) > 0 {
		if err := c.catalogue.Tag(ctx, id, opts.Tags); err != nil {
			return nil, err
		}
	}

	if opts.IngestProduct {
		if c.storage == nil {
			product.Core["remote_url"] = "file://" + resolved[0]
		} else {
			hashType := plugin.HashType()
			if hashType != "" {
				hash, err := ProductHash(resolved, hashType)
				if err != nil {
					_ = c.catalogue.DeleteProductProperties(ctx, id)
					return nil, err
				}
				product.Core["hash"] = hash
				if err := c.catalogue.UpdateProductProperties(ctx, id, &schema.Product{Core: schema.Struct{"hash": hash}}, nil); err != nil {
					return nil, err
				}
			}

			product.Core["archive_path"] = archivePath
			if err := c.storage.Put(ctx, resolved, product.Core, opts.UseEnclosingDir || plugin.UseEnclosingDirectory(), opts.UseSymlinks, nil, nil); err != nil {
				if storageErr, ok := err.(*muninnerr.StorageError); ok && storageErr.AnythingStored {
					return nil, storageErr.Orig
				}
				_ = c.catalogue.DeleteProductProperties(ctx, id)
				return nil, err
			}

			if opts.VerifyHash && hashType != "" {
				if err := c.verifyHash(ctx, product, archivePath, hashType); err != nil {
					return nil, err
				}
			}
		}
	}

	product.Core["active"] = true
	product.Core["archive_date"] = now
	if err := c.catalogue.UpdateProductProperties(ctx, id, &schema.Product{Core: schema.Struct{
		"active": true, "archive_date": now, "archive_path": product.Core["archive_path"],
	}}, nil); err != nil {
		return nil, err
	}

	if opts.IngestProduct {
		if err := c.runHooks(ctx, hooks.PostIngest, product, resolved); err != nil {
			return nil, err
		}
	} else {
		if err := c.runHooks(ctx, hooks.PostCreate, product, nil); err != nil {
			return nil, err
		}
	}

	if len(analyzedTags) > 0 {
		if err := c.catalogue.Tag(ctx, id, analyzedTags); err != nil {
			return nil, err
		}
	}

	return product, nil
}

// Attach binds already-catalogued properties (located by product_type +
// physical_name) to bytes on disk, following the original's attach.
func (c *Coordinator) Attach(ctx context.Context, productType, name string, paths []string, force, useCurrentPath, useEnclosingDir, useSymlinks, verifyHashBefore, verifyHash bool) error {
	if c.storage == nil {
		return muninnerr.NewUserError("cannot attach: archive has no storage")
	}
	resolved, err := checkPaths(paths, "attach")
	if err != nil {
		return err
	}
	product, found, err := c.findByTypeAndName(ctx, productType, name)
	if err != nil {
		return err
	}
	if !found {
		return muninnerr.NewNotFoundError("product %s %q not found", productType, name)
	}
	if archivePath, _ := product.Core["archive_path"].(string); archivePath != "" {
		return muninnerr.NewUserError("product %s %q is already attached", productType, name)
	}

	plugin, err := c.plugin(productType)
	if err != nil {
		return err
	}

	var archivePath string
	if useCurrentPath {
		archivePath, err = c.storage.CurrentArchivePath(resolved, product.Core)
	} else {
		archivePath, err = plugin.ArchivePath(product)
	}
	if err != nil {
		return err
	}

	size, err := ProductSize(resolved)
	if err != nil {
		return err
	}
	if existing, _ := product.Core["size"].(int64); existing != 0 && existing != size && !force {
		return muninnerr.NewUserError("size of %s %q does not match catalogued size", productType, name)
	}

	if verifyHashBefore {
		if storedHash, _ := product.Core["hash"].(string); storedHash != "" {
			algo, expected := SplitHash(storedHash)
			computed, err := ProductHash(resolved, algo)
			if err != nil {
				return err
			}
			if _, actual := SplitHash(computed); actual != expected {
				return muninnerr.NewIntegrityError("hash mismatch for product %v", product.Core["uuid"])
			}
		}
	}

	hashType := plugin.HashType()
	var hash string
	if hashType != "" {
		hash, err = ProductHash(resolved, hashType)
		if err != nil {
			return err
		}
	}

	id := mustUUID(product)
	if err := c.catalogue.UpdateProductProperties(ctx, id, &schema.Product{Core: schema.Struct{
		"active": false, "size": size, "archive_path": archivePath, "hash": nullableString(hash),
	}}, nil); err != nil {
		return err
	}
	product.Core["archive_path"] = archivePath
	product.Core["size"] = size
	product.Core["hash"] = hash

	if err := c.storage.Put(ctx, resolved, product.Core, useEnclosingDir || plugin.UseEnclosingDirectory(), useSymlinks, nil, nil); err != nil {
		if storageErr, ok := err.(*muninnerr.StorageError); ok && storageErr.AnythingStored {
			_ = c.catalogue.UpdateProductProperties(ctx, id, &schema.Product{Core: schema.Struct{"active": true, "archive_path": nil}}, nil)
			return storageErr.Orig
		}
		_ = c.catalogue.UpdateProductProperties(ctx, id, &schema.Product{Core: schema.Struct{"active": true, "archive_path": nil}}, nil)
		return err
	}

	if verifyHash && hashType != "" {
		if err := c.verifyHash(ctx, product, archivePath, hashType); err != nil {
			return err
		}
	}

	now, err := c.catalogue.ServerTimeUTC(ctx)
	if err != nil {
		return err
	}
	return c.catalogue.UpdateProductProperties(ctx, id, &schema.Product{Core: schema.Struct{"active": true, "archive_date": now}}, nil)
}

// Pull fetches product, which must be active, not yet archived, and have
// a remote_url, storing the retrieved bytes the same way Ingest would,
// following the original's pull.
func (c *Coordinator) Pull(ctx context.Context, product *schema.Product, verifyHash bool) error {
	if c.storage == nil {
		return muninnerr.NewUserError("cannot pull: archive has no storage")
	}
	active, _ := product.Core["active"].(bool)
	archivePath, _ := product.Core["archive_path"].(string)
	remoteURL, _ := product.Core["remote_url"].(string)
	if !active || archivePath != "" || remoteURL == "" {
		return muninnerr.NewUserError("product is not eligible to be pulled")
	}

	productType := productTypeOf(product)
	plugin, err := c.plugin(productType)
	if err != nil {
		return err
	}
	newPath, err := plugin.ArchivePath(product)
	if err != nil {
		return err
	}

	id := mustUUID(product)
	if err := c.catalogue.UpdateProductProperties(ctx, id, &schema.Product{Core: schema.Struct{"active": false, "archive_path": newPath}}, nil); err != nil {
		return err
	}
	product.Core["archive_path"] = newPath

	retrieve := func(stagingDir string) ([]string, error) {
		return c.remotes.Fetch(ctx, product.Core, stagingDir)
	}

	var pulledPaths []string
	runForProduct := func(paths []string) error {
		pulledPaths = paths
		size, err := ProductSize(paths)
		if err != nil {
			return err
		}
		now, err := c.catalogue.ServerTimeUTC(ctx)
		if err != nil {
			return err
		}
		hashType := plugin.HashType()
		update := schema.Struct{"active": true, "archive_date": now, "size": size}
		if hashType != "" {
			hash, err := ProductHash(paths, hashType)
			if err != nil {
				return err
			}
			update["hash"] = hash
		}
		return c.catalogue.UpdateProductProperties(ctx, id, &schema.Product{Core: update}, nil)
	}

	if err := c.storage.Put(ctx, nil, product.Core, plugin.UseEnclosingDirectory(), false, retrieve, runForProduct); err != nil {
		rollback := schema.Struct{"active": true, "archive_path": nil, "archive_date": nil}
		if storageErr, ok := err.(*muninnerr.StorageError); ok && storageErr.AnythingStored {
			_ = c.catalogue.UpdateProductProperties(ctx, id, &schema.Product{Core: rollback}, nil)
			return storageErr.Orig
		}
		_ = c.catalogue.UpdateProductProperties(ctx, id, &schema.Product{Core: rollback}, nil)
		return err
	}

	if verifyHash {
		if hashType := plugin.HashType(); hashType != "" {
			if err := c.verifyHash(ctx, product, newPath, hashType); err != nil {
				return err
			}
		}
	}

	return c.runHooks(ctx, hooks.PostPull, product, pulledPaths)
}

// Strip removes a product's bytes while keeping its catalogue row,
// following the original's strip. Products with no archive_path are
// silently skipped, except that with force an active product with no
// archive_date (a partial ingest) is stripped.
func (c *Coordinator) Strip(ctx context.Context, products []*schema.Product, force, cascadeAfter bool) error {
	stripped := false
	for _, product := range products {
		archivePath, _ := product.Core["archive_path"].(string)
		active, _ := product.Core["active"].(bool)
		archiveDate := product.Core["archive_date"]
		if archivePath == "" {
			if !force || !(active && archiveDate == nil) {
				continue
			}
		} else if !active && !force {
			return muninnerr.NewUserError("cannot strip an inactive product without force")
		}
		if err := c.stripProduct(ctx, product); err != nil {
			return err
		}
		stripped = true
	}
	if cascadeAfter && stripped {
		return c.cleanupDerivedProducts(ctx)
	}
	return nil
}

func (c *Coordinator) stripProduct(ctx context.Context, product *schema.Product) error {
	id := mustUUID(product)
	archivePath, _ := product.Core["archive_path"].(string)
	if err := c.catalogue.UpdateProductProperties(ctx, id, &schema.Product{Core: schema.Struct{
		"active": true, "archive_path": nil, "archive_date": nil,
	}}, nil); err != nil {
		return err
	}
	if c.storage != nil && archivePath != "" {
		if err := c.storage.Delete(ctx, archivePath, product.Core); err != nil {
			return err
		}
	}
	return nil
}

// Remove deletes each product's catalogue row and bytes, following the
// original's remove. cascadeAfter triggers one cleanupDerivedProducts
// pass after the whole batch, not per product.
func (c *Coordinator) Remove(ctx context.Context, products []*schema.Product, force, cascadeAfter bool) error {
	for _, product := range products {
		if err := c.removeOne(ctx, product, force, false); err != nil {
			return err
		}
	}
	if cascadeAfter && len(products) > 0 {
		return c.cleanupDerivedProducts(ctx)
	}
	return nil
}

func (c *Coordinator) removeOne(ctx context.Context, product *schema.Product, force, _ bool) error {
	active, _ := product.Core["active"].(bool)
	if !active && !force {
		return muninnerr.NewUserError("cannot remove an inactive product without force")
	}
	return c.purgeProduct(ctx, product)
}

func (c *Coordinator) purgeProduct(ctx context.Context, product *schema.Product) error {
	id := mustUUID(product)
	archivePath, _ := product.Core["archive_path"].(string)
	if err := c.catalogue.DeleteProductProperties(ctx, id); err != nil {
		return err
	}
	if c.storage != nil && archivePath != "" {
		if err := c.storage.Delete(ctx, archivePath, product.Core); err != nil {
			return err
		}
	}
	return c.runHooks(ctx, hooks.PostRemove, product, nil)
}

// Retrieve copies or symlinks a product's bytes (archived or remote)
// into targetDir, following the original's retrieve.
func (c *Coordinator) Retrieve(ctx context.Context, product *schema.Product, targetDir string, useSymlinks bool) error {
	active, _ := product.Core["active"].(bool)
	archivePath, _ := product.Core["archive_path"].(string)
	remoteURL, _ := product.Core["remote_url"].(string)
	if !active || (archivePath == "" && remoteURL == "") {
		return muninnerr.NewUserError("product is not available")
	}

	if archivePath != "" {
		if c.storage == nil {
			return muninnerr.NewUserError("cannot retrieve: archive has no storage")
		}
		plugin, err := c.plugin(productTypeOf(product))
		if err != nil {
			return err
		}
		return c.storage.Get(ctx, product.Core, archivePath, targetDir, plugin.UseEnclosingDirectory(), useSymlinks)
	}

	if err := os.MkdirAll(targetDir, 0o755); err != nil {
		return err
	}
	_, err := c.remotes.Fetch(ctx, product.Core, targetDir)
	return err
}

// verifyHash recomputes hash against the stored digest, failing with an
// IntegrityError on mismatch, following the original's _verify_hash.
func (c *Coordinator) verifyHash(ctx context.Context, product *schema.Product, archivePath, hashType string) error {
	stored, _ := product.Core["hash"].(string)
	if stored == "" {
		return nil
	}
	_, expectedDigest := SplitHash(stored)

	var paths []string
	if archivePath != "" && c.storage != nil {
		staging, err := os.MkdirTemp("", "muninn-verify-")
		if err != nil {
			return err
		}
		defer os.RemoveAll(staging)
		plugin, err := c.plugin(productTypeOf(product))
		if err != nil {
			return err
		}
		if err := c.storage.Get(ctx, product.Core, archivePath, staging, plugin.UseEnclosingDirectory(), false); err != nil {
			return err
		}
		entries, err := os.ReadDir(staging)
		if err != nil {
			return err
		}
		for _, e := range entries {
			paths = append(paths, staging+string(os.PathSeparator)+e.Name())
		}
	}

	computed, err := ProductHash(paths, hashType)
	if err != nil {
		return err
	}
	_, computedDigest := SplitHash(computed)
	if computedDigest != expectedDigest {
		return muninnerr.NewIntegrityError("hash mismatch for product %v", product.Core["uuid"])
	}
	return nil
}

// RebuildProperties re-analyzes product from its archived bytes,
// re-merging everything except the protected core fields, following the
// original's rebuild_properties.
func (c *Coordinator) RebuildProperties(ctx context.Context, product *schema.Product, useCurrentPath, disableHooks bool) error {
	archivePath, _ := product.Core["archive_path"].(string)
	if archivePath == "" || c.storage == nil {
		return muninnerr.NewUserError("product has no archived bytes to rebuild from")
	}
	plugin, err := c.plugin(productTypeOf(product))
	if err != nil {
		return err
	}

	staging, err := os.MkdirTemp("", "muninn-rebuild-")
	if err != nil {
		return err
	}
	defer os.RemoveAll(staging)
	if err := c.storage.Get(ctx, product.Core, archivePath, staging, plugin.UseEnclosingDirectory(), false); err != nil {
		return err
	}
	entries, err := os.ReadDir(staging)
	if err != nil {
		return err
	}
	paths := make([]string, 0, len(entries))
	for _, e := range entries {
		paths = append(paths, staging+string(os.PathSeparator)+e.Name())
	}

	fresh, tags, err := plugin.Analyze(ctx, paths)
	if err != nil {
		return err
	}
	for _, protected := range []string{
		"uuid", "active", "hash", "size", "metadata_date", "archive_date",
		"archive_path", "product_type", "physical_name",
	} {
		delete(fresh.Core, protected)
	}

	size, err := ProductSize(paths)
	if err != nil {
		return err
	}
	fresh.Core["size"] = size

	if !useCurrentPath {
		newPath, err := plugin.ArchivePath(product)
		if err != nil {
			return err
		}
		if newPath != archivePath {
			if _, err := c.storage.Move(ctx, product.Core, newPath, nil); err != nil {
				return err
			}
			fresh.Core["archive_path"] = newPath
		}
	}

	hashType := plugin.HashType()
	storedHash, _ := product.Core["hash"].(string)
	switch {
	case hashType == "":
		fresh.Core["hash"] = nil
	case storedHash == "":
		hash, err := ProductHash(paths, hashType)
		if err != nil {
			return err
		}
		fresh.Core["hash"] = hash
	default:
		algo, _ := SplitHash(storedHash)
		switch {
		case algo != hashType:
			hash, err := ProductHash(paths, hashType)
			if err != nil {
				return err
			}
			fresh.Core["hash"] = hash
		case !strings.Contains(storedHash, ":"):
			fresh.Core["hash"] = hashType + ":" + storedHash
		}
	}

	id := mustUUID(product)
	if err := c.catalogue.UpdateProductProperties(ctx, id, fresh, nil); err != nil {
		return err
	}
	if len(tags) > 0 {
		if err := c.catalogue.Tag(ctx, id, tags); err != nil {
			return err
		}
	}
	if !disableHooks {
		return c.runHooks(ctx, hooks.PostIngest, product, paths)
	}
	return nil
}

// RebuildPullProperties re-validates an already-pulled product against
// its stored bytes without re-fetching them, following the original's
// rebuild_pull_properties.
func (c *Coordinator) RebuildPullProperties(ctx context.Context, product *schema.Product, useCurrentPath, verifyHash, disableHooks bool) error {
	archivePath, _ := product.Core["archive_path"].(string)
	remoteURL, _ := product.Core["remote_url"].(string)
	if archivePath == "" || remoteURL == "" {
		return muninnerr.NewUserError("product was not pulled")
	}
	plugin, err := c.plugin(productTypeOf(product))
	if err != nil {
		return err
	}

	if !useCurrentPath {
		newPath, err := plugin.ArchivePath(product)
		if err != nil {
			return err
		}
		if newPath != archivePath {
			if _, err := c.storage.Move(ctx, product.Core, newPath, nil); err != nil {
				return err
			}
			archivePath = newPath
		}
	}

	staging, err := os.MkdirTemp("", "muninn-rebuild-pull-")
	if err != nil {
		return err
	}
	defer os.RemoveAll(staging)
	if err := c.storage.Get(ctx, product.Core, archivePath, staging, plugin.UseEnclosingDirectory(), false); err != nil {
		return err
	}
	entries, err := os.ReadDir(staging)
	if err != nil {
		return err
	}
	paths := make([]string, 0, len(entries))
	for _, e := range entries {
		paths = append(paths, staging+string(os.PathSeparator)+e.Name())
	}

	size, err := ProductSize(paths)
	if err != nil {
		return err
	}
	id := mustUUID(product)
	if err := c.catalogue.UpdateProductProperties(ctx, id, &schema.Product{Core: schema.Struct{
		"archive_path": archivePath, "size": size,
	}}, nil); err != nil {
		return err
	}

	if verifyHash {
		if hashType := plugin.HashType(); hashType != "" {
			if err := c.verifyHash(ctx, product, archivePath, hashType); err != nil {
				return err
			}
		}
	}

	if !disableHooks {
		return c.runHooks(ctx, hooks.PostPull, product, paths)
	}
	return nil
}

func mustUUID(product *schema.Product) uuid.UUID {
	s, _ := product.Core["uuid"].(string)
	id, _ := uuid.Parse(s)
	return id
}

func nullableString(s string) any {
	if s == "" {
		return nil
	}
	return s
}
