package remote

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"eve.evalgo.org/muninn/schema"
)

func TestFileBackendIdentify(t *testing.T) {
	b := NewFileBackend()
	assert.True(t, b.Identify("file:///tmp/x"))
	assert.False(t, b.Identify("http://example.com/x"))
}

func TestFileBackendPullCopiesSourceFile(t *testing.T) {
	src := t.TempDir()
	srcPath := filepath.Join(src, "data.bin")
	require.NoError(t, os.WriteFile(srcPath, []byte("payload"), 0o644))

	target := t.TempDir()
	core := schema.Struct{"remote_url": "file://" + srcPath, "physical_name": "data.bin"}

	b := NewFileBackend()
	paths, err := b.Pull(context.Background(), core, target)
	require.NoError(t, err)
	require.Len(t, paths, 1)

	data, err := os.ReadFile(paths[0])
	require.NoError(t, err)
	assert.Equal(t, "payload", string(data))
}
