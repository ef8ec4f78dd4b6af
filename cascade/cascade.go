// Package cascade implements the cascade engine (spec.md §4.9): cleaning
// up derived products whose source products have disappeared or gone
// unavailable, per a cascade rule configured per product type. It knows
// nothing about the catalogue or storage backends directly; the
// coordinator supplies a Finder (wrapping catalog.Catalogue's graph
// queries) and Strip/Purge callbacks (its own operations), keeping this
// package a pure policy engine over those three seams.
package cascade

import (
	"context"
	"sort"
	"time"

	"eve.evalgo.org/muninn/schema"
)

// Rule is a product type's cascade disposition, mirroring the original
// implementation's CascadeRule enum exactly.
type Rule string

const (
	// IGNORE means this product type is never touched by cleanup.
	IGNORE Rule = "ignore"
	// STRIP strips (clears bytes, keeps the row) products that have lost
	// their source or whose source became unavailable.
	STRIP Rule = "strip"
	// CASCADE purges sourceless products and strips products whose
	// sources are all unavailable (catalogued but without bytes).
	CASCADE Rule = "cascade"
	// PURGE deletes (row and bytes) both sourceless and
	// source-unavailable products.
	PURGE Rule = "purge"
	// CASCADE_PURGE purges sourceless products and never inspects
	// source-availability at all.
	CASCADE_PURGE Rule = "cascade_purge"
	// CASCADE_PURGE_AS_STRIP strips (rather than purges) sourceless
	// products and never inspects source-availability.
	CASCADE_PURGE_AS_STRIP Rule = "cascade_purge_as_strip"
)

// Finder is the subset of catalog.Catalogue the cascade engine queries.
// It is satisfied directly by *catalog's concrete backends.
type Finder interface {
	FindProductsWithoutSource(ctx context.Context, productType string, gracePeriod time.Duration, archivedOnly bool) ([]*schema.Product, error)
	FindProductsWithoutAvailableSource(ctx context.Context, productType string, gracePeriod time.Duration) ([]*schema.Product, error)
}

// ActionFunc strips or purges the product identified by core (its "uuid"
// field), matching the coordinator's own Strip/Remove signatures closely
// enough that a thin adapter closure is all that's needed to satisfy it.
type ActionFunc func(ctx context.Context, product *schema.Product) error

// Config parameterizes one Cleanup run.
type Config struct {
	// Rules maps product type name to its cascade rule. A product type
	// absent from this map is treated as IGNORE.
	Rules map[string]Rule
	// GracePeriod excludes products archived more recently than this
	// from cleanup, matching the original's cascade_grace_period.
	GracePeriod time.Duration
	// MaxCycles bounds the fixed-point loop. Zero means DefaultMaxCycles.
	MaxCycles int
}

// DefaultMaxCycles is the original implementation's max_cascade_cycles
// default.
const DefaultMaxCycles = 25

// Cleanup runs the fixed-point cascade cleanup loop: up to cfg.MaxCycles
// iterations over every product type with a non-IGNORE rule, applying
// strip or purge as the rule dictates, stopping as soon as a cycle finds
// nothing to do.
func Cleanup(ctx context.Context, finder Finder, strip, purge ActionFunc, cfg Config) error {
	maxCycles := cfg.MaxCycles
	if maxCycles <= 0 {
		maxCycles = DefaultMaxCycles
	}

	productTypes := make([]string, 0, len(cfg.Rules))
	for productType := range cfg.Rules {
		productTypes = append(productTypes, productType)
	}
	sort.Strings(productTypes)

	repeat := true
	for cycle := 0; repeat && cycle < maxCycles; cycle++ {
		repeat = false

		for _, productType := range productTypes {
			rule := cfg.Rules[productType]
			if rule == IGNORE {
				continue
			}

			stripSourceless := rule == CASCADE_PURGE_AS_STRIP || rule == STRIP
			sourceless, err := finder.FindProductsWithoutSource(ctx, productType, cfg.GracePeriod, stripSourceless)
			if err != nil {
				return err
			}
			if len(sourceless) > 0 {
				repeat = true
			}
			action := purge
			if stripSourceless {
				action = strip
			}
			for _, product := range sourceless {
				if err := action(ctx, product); err != nil {
					return err
				}
			}

			if rule == CASCADE_PURGE_AS_STRIP || rule == CASCADE_PURGE {
				continue
			}

			unavailable, err := finder.FindProductsWithoutAvailableSource(ctx, productType, cfg.GracePeriod)
			if err != nil {
				return err
			}
			if len(unavailable) > 0 {
				repeat = true
			}
			action = purge
			if rule == STRIP || rule == CASCADE {
				action = strip
			}
			for _, product := range unavailable {
				if err := action(ctx, product); err != nil {
					return err
				}
			}
		}
	}

	return nil
}
