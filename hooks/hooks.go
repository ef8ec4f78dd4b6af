// Package hooks dispatches the four lifecycle hook points spec.md §9
// names (post_create/post_ingest/post_pull/post_remove), generalizing
// the teacher's queue/amqp_interface.go + queue/rabbit.go pluggable
// message-dispatch pair from "publish a flow message" to "notify
// whatever observers are registered for a product-lifecycle event".
//
// A hook plugin implements only the methods it cares about; arity
// ("does this hook want the staged file paths too?") is resolved by
// the two-explicit-methods-per-event pattern spec.md's own design
// notes recommend, rather than by reflective signature inspection.
package hooks

import (
	"context"

	"eve.evalgo.org/muninn/schema"
)

// Event names one of the four lifecycle points a Dispatcher notifies.
type Event string

const (
	PostCreate Event = "post_create"
	PostIngest Event = "post_ingest"
	PostPull   Event = "post_pull"
	PostRemove Event = "post_remove"
)

// The following interfaces are the hook plugin contract: a plugin
// (the product-type plugin itself, or a registered hook extension)
// implements whichever pair fits the event it cares about. Only one of
// the two need be implemented; Dispatcher prefers the WithPaths variant
// when it has paths to offer and the hook implements it.
type (
	PostCreateHook          interface{ PostCreate(ctx context.Context, product *schema.Product) error }
	PostCreateWithPathsHook interface {
		PostCreateWithPaths(ctx context.Context, product *schema.Product, paths []string) error
	}
	PostIngestHook          interface{ PostIngest(ctx context.Context, product *schema.Product) error }
	PostIngestWithPathsHook interface {
		PostIngestWithPaths(ctx context.Context, product *schema.Product, paths []string) error
	}
	PostPullHook          interface{ PostPull(ctx context.Context, product *schema.Product) error }
	PostPullWithPathsHook interface {
		PostPullWithPaths(ctx context.Context, product *schema.Product, paths []string) error
	}
	PostRemoveHook          interface{ PostRemove(ctx context.Context, product *schema.Product) error }
	PostRemoveWithPathsHook interface {
		PostRemoveWithPaths(ctx context.Context, product *schema.Product, paths []string) error
	}
)

// Dispatcher notifies registered hooks of a lifecycle event. The
// coordinator calls Notify once per event; a Dispatcher implementation
// decides how ("direct synchronous calls" for InProcess, "publish to a
// topic exchange" for AMQP).
type Dispatcher interface {
	// Notify runs event against product, offering paths when non-nil.
	// For PostRemove, implementations must run registered hooks in
	// reverse registration order; every other event runs forward,
	// matching spec.md §9's "for post_remove_hook, reverse".
	Notify(ctx context.Context, event Event, product *schema.Product, paths []string) error
}

// invokeHook calls whichever of hook's two event-specific methods is
// both implemented and the best fit for whether paths is available,
// returning (false, nil) if hook implements neither.
func invokeHook(ctx context.Context, event Event, hook any, product *schema.Product, paths []string) (bool, error) {
	switch event {
	case PostCreate:
		if paths != nil {
			if h, ok := hook.(PostCreateWithPathsHook); ok {
				return true, h.PostCreateWithPaths(ctx, product, paths)
			}
		}
		if h, ok := hook.(PostCreateHook); ok {
			return true, h.PostCreate(ctx, product)
		}
	case PostIngest:
		if paths != nil {
			if h, ok := hook.(PostIngestWithPathsHook); ok {
				return true, h.PostIngestWithPaths(ctx, product, paths)
			}
		}
		if h, ok := hook.(PostIngestHook); ok {
			return true, h.PostIngest(ctx, product)
		}
	case PostPull:
		if paths != nil {
			if h, ok := hook.(PostPullWithPathsHook); ok {
				return true, h.PostPullWithPaths(ctx, product, paths)
			}
		}
		if h, ok := hook.(PostPullHook); ok {
			return true, h.PostPull(ctx, product)
		}
	case PostRemove:
		if paths != nil {
			if h, ok := hook.(PostRemoveWithPathsHook); ok {
				return true, h.PostRemoveWithPaths(ctx, product, paths)
			}
		}
		if h, ok := hook.(PostRemoveHook); ok {
			return true, h.PostRemove(ctx, product)
		}
	}
	return false, nil
}
