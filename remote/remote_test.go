package remote

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"eve.evalgo.org/muninn/schema"
)

type stubBackend struct {
	prefix string
	pulled []string
}

func (s *stubBackend) Prefix() string { return s.prefix }
func (s *stubBackend) Identify(u string) bool {
	return len(u) >= len(s.prefix) && u[:len(s.prefix)] == s.prefix
}
func (s *stubBackend) Pull(ctx context.Context, core schema.Struct, targetDir string) ([]string, error) {
	return s.pulled, nil
}

func TestRegistryResolvesLongestPrefix(t *testing.T) {
	r := NewRegistry()
	r.Register("generic", &stubBackend{prefix: "https://"})
	r.Register("specific", &stubBackend{prefix: "https://example.com/"})

	backend, err := r.Resolve("https://example.com/data.zip")
	require.NoError(t, err)
	assert.Same(t, r.backends["specific"], backend)
}

func TestRegistryResolveUnsupportedScheme(t *testing.T) {
	r := NewRegistry()
	r.Register("http", &stubBackend{prefix: "http://"})

	_, err := r.Resolve("ftp://example.com/data")
	assert.Error(t, err)
}

func TestRegistryFetchRequiresRemoteURL(t *testing.T) {
	r := NewRegistry()
	_, err := r.Fetch(context.Background(), schema.Struct{}, t.TempDir())
	assert.Error(t, err)
}

func TestRegistryFetchDispatchesToBackend(t *testing.T) {
	r := NewRegistry()
	backend := &stubBackend{prefix: "http://", pulled: []string{"a.txt"}}
	r.Register("http", backend)

	core := schema.Struct{"remote_url": "http://example.com/a.txt"}
	paths, err := r.Fetch(context.Background(), core, t.TempDir())
	require.NoError(t, err)
	assert.Equal(t, []string{"a.txt"}, paths)
}
