package hooks

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"eve.evalgo.org/muninn/schema"
)

type recordingHook struct {
	name  string
	calls *[]string
}

func (h recordingHook) PostIngest(ctx context.Context, product *schema.Product) error {
	*h.calls = append(*h.calls, h.name+":post_ingest")
	return nil
}

func (h recordingHook) PostIngestWithPaths(ctx context.Context, product *schema.Product, paths []string) error {
	*h.calls = append(*h.calls, h.name+":post_ingest_with_paths")
	return nil
}

func (h recordingHook) PostRemove(ctx context.Context, product *schema.Product) error {
	*h.calls = append(*h.calls, h.name+":post_remove")
	return nil
}

func TestInProcessNotifyPrefersWithPathsVariant(t *testing.T) {
	var calls []string
	d := NewInProcess()
	d.Register(recordingHook{name: "a", calls: &calls})

	product := &schema.Product{Core: schema.Struct{}}
	err := d.Notify(context.Background(), PostIngest, product, []string{"x.txt"})
	require.NoError(t, err)
	assert.Equal(t, []string{"a:post_ingest_with_paths"}, calls)
}

func TestInProcessNotifyFallsBackWithoutPaths(t *testing.T) {
	var calls []string
	d := NewInProcess()
	d.Register(recordingHook{name: "a", calls: &calls})

	product := &schema.Product{Core: schema.Struct{}}
	err := d.Notify(context.Background(), PostIngest, product, nil)
	require.NoError(t, err)
	assert.Equal(t, []string{"a:post_ingest"}, calls)
}

func TestInProcessNotifyRunsForwardOrder(t *testing.T) {
	var calls []string
	d := NewInProcess()
	d.Register(recordingHook{name: "first", calls: &calls})
	d.Register(recordingHook{name: "second", calls: &calls})

	product := &schema.Product{Core: schema.Struct{}}
	require.NoError(t, d.Notify(context.Background(), PostIngest, product, nil))
	assert.Equal(t, []string{"first:post_ingest", "second:post_ingest"}, calls)
}

func TestInProcessNotifyRunsRemoveInReverseOrder(t *testing.T) {
	var calls []string
	d := NewInProcess()
	d.Register(recordingHook{name: "first", calls: &calls})
	d.Register(recordingHook{name: "second", calls: &calls})

	product := &schema.Product{Core: schema.Struct{}}
	require.NoError(t, d.Notify(context.Background(), PostRemove, product, nil))
	assert.Equal(t, []string{"second:post_remove", "first:post_remove"}, calls)
}

func TestInProcessNotifySkipsHooksWithoutTheEvent(t *testing.T) {
	var calls []string
	d := NewInProcess()
	d.Register(recordingHook{name: "a", calls: &calls})

	product := &schema.Product{Core: schema.Struct{}}
	err := d.Notify(context.Background(), PostCreate, product, nil)
	require.NoError(t, err)
	assert.Empty(t, calls)
}
