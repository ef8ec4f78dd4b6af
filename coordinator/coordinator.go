// Package coordinator is the product-lifecycle coordinator (spec.md
// §4.8): the component that ties a catalog.Catalogue row to the bytes a
// store.Backend manages, running Ingest/Attach/Pull/Strip/Remove/
// Retrieve/Rebuild as the three-atom protocol spec.md §5 describes
// (catalogue mutation, storage mutation, hook dispatch -- never two of
// these overlapping on the same product within one handle).
package coordinator

import (
	"context"
	"path/filepath"
	"time"

	"github.com/google/uuid"

	"eve.evalgo.org/muninn/cascade"
	"eve.evalgo.org/muninn/catalog"
	"eve.evalgo.org/muninn/hooks"
	"eve.evalgo.org/muninn/lang"
	"eve.evalgo.org/muninn/muninnerr"
	"eve.evalgo.org/muninn/remote"
	"eve.evalgo.org/muninn/schema"
	"eve.evalgo.org/muninn/store"
)

type pluginEntry struct {
	name   string
	plugin ProductTypePlugin
}

// Config carries the archive-wide settings the original implementation's
// _ArchiveConfig holds beyond the catalogue/storage backend choice
// itself.
type Config struct {
	// CascadeGracePeriod excludes recently-archived products from
	// cascade cleanup.
	CascadeGracePeriod time.Duration
	// MaxCascadeCycles bounds cleanupDerivedProducts's fixed-point loop;
	// zero means cascade.DefaultMaxCycles.
	MaxCascadeCycles int
}

// Coordinator is an open archive handle: a catalogue, an optional
// storage backend (nil means "storage=none", a catalogue-only archive),
// a remote-fetch registry, a hook dispatcher, and the set of registered
// product type plugins. It is not safe for concurrent mutation from
// multiple goroutines, matching spec.md §5's single-handle model.
type Coordinator struct {
	catalogue catalog.Catalogue
	storage   store.Backend
	remotes   *remote.Registry
	hooks     hooks.Dispatcher
	functions *lang.FunctionTable

	plugins []pluginEntry
	cfg     Config
}

// New opens a coordinator over catalogue and storage (storage may be
// nil, for a catalogue-only archive that never ingests bytes). dispatcher
// defaults to hooks.NewInProcess() if nil.
func New(catalogue catalog.Catalogue, storage store.Backend, remotes *remote.Registry, dispatcher hooks.Dispatcher, cfg Config) *Coordinator {
	if dispatcher == nil {
		dispatcher = hooks.NewInProcess()
	}
	if remotes == nil {
		remotes = remote.NewRegistry()
	}
	return &Coordinator{
		catalogue: catalogue,
		storage:   storage,
		remotes:   remotes,
		hooks:     dispatcher,
		functions: lang.DefaultFunctionTable(),
		cfg:       cfg,
	}
}

// RegisterProductType adds a product type plugin. Plugins are consulted,
// in this registration order, by Identify and by hook dispatch (spec.md
// §4.8's Hooks contract: "the product-type plugin first, then each hook
// extension in registration order").
func (c *Coordinator) RegisterProductType(name string, plugin ProductTypePlugin) error {
	for _, e := range c.plugins {
		if e.name == name {
			return muninnerr.NewIntegrityError("redefinition of product type %q", name)
		}
	}
	c.plugins = append(c.plugins, pluginEntry{name: name, plugin: plugin})
	return nil
}

func (c *Coordinator) plugin(productType string) (ProductTypePlugin, error) {
	for _, e := range c.plugins {
		if e.name == productType {
			return e.plugin, nil
		}
	}
	return nil, muninnerr.NewNotFoundError("undefined product type %q", productType)
}

// Identify returns the first registered plugin (in registration order)
// whose Identify method matches paths, or a UserError if none do.
func (c *Coordinator) Identify(paths []string) (string, error) {
	for _, e := range c.plugins {
		if e.plugin.Identify(paths) {
			return e.name, nil
		}
	}
	return "", muninnerr.NewUserError("could not determine product type for %v", paths)
}

// Prepare creates the catalogue schema and storage area, failing if
// either already exists unless force is set.
func (c *Coordinator) Prepare(ctx context.Context, force bool) error {
	if !force {
		if c.storage != nil {
			exists, err := c.storage.Exists(ctx)
			if err != nil {
				return err
			}
			if exists {
				return muninnerr.NewUserError("storage already exists")
			}
		}
		exists, err := c.catalogue.Exists(ctx)
		if err != nil {
			return err
		}
		if exists {
			return muninnerr.NewUserError("catalogue already exists")
		}
	}
	if err := c.catalogue.Prepare(ctx); err != nil {
		return err
	}
	if c.storage != nil {
		return c.storage.Prepare(ctx)
	}
	return nil
}

// cascadeRuleFor reads a plugin's cascade rule, defaulting to IGNORE per
// spec.md §4.9.
func (c *Coordinator) cascadeRuleFor(productType string) cascade.Rule {
	plugin, err := c.plugin(productType)
	if err != nil {
		return cascade.IGNORE
	}
	if provider, ok := plugin.(CascadeRuleProvider); ok {
		return provider.CascadeRule()
	}
	return cascade.IGNORE
}

// cleanupDerivedProducts is the coordinator's entry point into the
// cascade engine (spec.md §4.9), wiring the catalogue's graph queries and
// the coordinator's own strip/purge operations into cascade.Cleanup.
func (c *Coordinator) cleanupDerivedProducts(ctx context.Context) error {
	rules := make(map[string]cascade.Rule, len(c.plugins))
	for _, e := range c.plugins {
		rules[e.name] = c.cascadeRuleFor(e.name)
	}

	return cascade.Cleanup(ctx, c.catalogue,
		func(ctx context.Context, product *schema.Product) error { return c.stripProduct(ctx, product) },
		func(ctx context.Context, product *schema.Product) error { return c.purgeProduct(ctx, product) },
		cascade.Config{
			Rules:       rules,
			GracePeriod: c.cfg.CascadeGracePeriod,
			MaxCycles:   c.cfg.MaxCascadeCycles,
		})
}

// checkPaths resolves every path to its absolute, symlink-evaluated form
// and rejects duplicate basenames, following the original's _check_paths:
// multi-part products are stored under their basenames, so two parts
// sharing one would collide on disk.
func checkPaths(paths []string, action string) ([]string, error) {
	if len(paths) == 0 {
		return nil, muninnerr.NewUserError("nothing to %s", action)
	}
	resolved := make([]string, len(paths))
	basenames := make(map[string]bool, len(paths))
	for i, p := range paths {
		real, err := filepath.Abs(p)
		if err != nil {
			return nil, muninnerr.NewUserError("cannot resolve path %q: %s", p, err)
		}
		if evaled, err := filepath.EvalSymlinks(real); err == nil {
			real = evaled
		}
		resolved[i] = real
		base := filepath.Base(real)
		if basenames[base] {
			return nil, muninnerr.NewUserError("basename of each part should be unique for multi-part products")
		}
		basenames[base] = true
	}
	return resolved, nil
}

func physicalNameFor(plugin ProductTypePlugin, product *schema.Product, paths []string) (string, error) {
	if plugin.UseEnclosingDirectory() {
		return plugin.EnclosingDirectoryName(product)
	}
	if len(paths) == 1 {
		return filepath.Base(paths[0]), nil
	}
	return "", muninnerr.NewUserError("cannot ingest multi-file product without enclosing directory")
}

// runHooks dispatches event for product. It first gives the product's own
// type plugin a chance to handle the event directly -- the shared
// Dispatcher only knows about registered hook extensions, not about
// per-product-type plugins -- then delegates to the Dispatcher for
// everything else, preserving spec.md §4.8's "product-type plugin first,
// then hook extensions" ordering.
func (c *Coordinator) runHooks(ctx context.Context, event hooks.Event, product *schema.Product, paths []string) error {
	if plugin, err := c.plugin(productTypeOf(product)); err == nil {
		if err := invokePluginHook(ctx, event, plugin, product, paths); err != nil {
			return err
		}
	}
	return c.hooks.Notify(ctx, event, product, paths)
}

// invokePluginHook calls whichever of plugin's two event-specific
// methods fits, preferring the WithPaths variant when paths is non-nil,
// mirroring the dispatch rule hooks.Dispatcher implementations apply to
// their own registered extensions.
func invokePluginHook(ctx context.Context, event hooks.Event, plugin any, product *schema.Product, paths []string) error {
	switch event {
	case hooks.PostCreate:
		if paths != nil {
			if h, ok := plugin.(hooks.PostCreateWithPathsHook); ok {
				return h.PostCreateWithPaths(ctx, product, paths)
			}
		}
		if h, ok := plugin.(hooks.PostCreateHook); ok {
			return h.PostCreate(ctx, product)
		}
	case hooks.PostIngest:
		if paths != nil {
			if h, ok := plugin.(hooks.PostIngestWithPathsHook); ok {
				return h.PostIngestWithPaths(ctx, product, paths)
			}
		}
		if h, ok := plugin.(hooks.PostIngestHook); ok {
			return h.PostIngest(ctx, product)
		}
	case hooks.PostPull:
		if paths != nil {
			if h, ok := plugin.(hooks.PostPullWithPathsHook); ok {
				return h.PostPullWithPaths(ctx, product, paths)
			}
		}
		if h, ok := plugin.(hooks.PostPullHook); ok {
			return h.PostPull(ctx, product)
		}
	case hooks.PostRemove:
		if paths != nil {
			if h, ok := plugin.(hooks.PostRemoveWithPathsHook); ok {
				return h.PostRemoveWithPaths(ctx, product, paths)
			}
		}
		if h, ok := plugin.(hooks.PostRemoveHook); ok {
			return h.PostRemove(ctx, product)
		}
	}
	return nil
}

func productTypeOf(product *schema.Product) string {
	v, _ := product.Core["product_type"].(string)
	return v
}

func newUUID() uuid.UUID {
	return uuid.New()
}
