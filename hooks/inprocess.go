package hooks

import (
	"context"

	"eve.evalgo.org/muninn/schema"
)

// InProcess is the default Dispatcher: a registration-ordered list of
// hook plugins invoked synchronously in the calling goroutine, matching
// the original implementation's synchronous hook semantics (the Python
// coordinator calls each hook inline, with no queueing).
type InProcess struct {
	hooks []any
}

// NewInProcess returns an InProcess Dispatcher with no hooks registered.
func NewInProcess() *InProcess {
	return &InProcess{}
}

// Register adds hook to the dispatch list. hook should implement one
// or more of the PostCreate/PostIngest/PostPull/PostRemove (With)Paths
// interfaces; a hook implementing none of them is registered but never
// invoked. The product-type plugin, if it exposes hook methods, should
// be registered first so it runs before extension hooks, per spec.md
// §9's "the product-type plugin first, then each hook extension in
// registration order".
func (d *InProcess) Register(hook any) {
	d.hooks = append(d.hooks, hook)
}

func (d *InProcess) Notify(ctx context.Context, event Event, product *schema.Product, paths []string) error {
	order := d.hooks
	if event == PostRemove {
		order = reversed(d.hooks)
	}
	for _, hook := range order {
		if _, err := invokeHook(ctx, event, hook, product, paths); err != nil {
			return err
		}
	}
	return nil
}

func reversed(hooks []any) []any {
	out := make([]any, len(hooks))
	for i, h := range hooks {
		out[len(hooks)-1-i] = h
	}
	return out
}

var _ Dispatcher = (*InProcess)(nil)
