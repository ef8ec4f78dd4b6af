package store

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"eve.evalgo.org/muninn/schema"
)

func writeTempFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestFilesystemPutSingleFile(t *testing.T) {
	ctx := context.Background()
	root := t.TempDir()
	fs, err := NewFilesystem(root)
	require.NoError(t, err)
	require.NoError(t, fs.Prepare(ctx))

	src := t.TempDir()
	path := writeTempFile(t, src, "pi.txt", "3.14159")

	core := schema.Struct{"uuid": "11111111-1111-1111-1111-111111111111", "archive_path": "archive/path", "physical_name": "pi.txt"}
	err = fs.Put(ctx, []string{path}, core, false, false, nil, nil)
	require.NoError(t, err)

	productPath := fs.ProductPath(core)
	data, err := os.ReadFile(productPath)
	require.NoError(t, err)
	assert.Equal(t, "3.14159", string(data))
}

func TestFilesystemPutMultiFileEnclosingDirectory(t *testing.T) {
	ctx := context.Background()
	root := t.TempDir()
	fs, err := NewFilesystem(root)
	require.NoError(t, err)
	require.NoError(t, fs.Prepare(ctx))

	src := t.TempDir()
	p1 := writeTempFile(t, src, "1.txt", "one")
	p2 := writeTempFile(t, src, "2.txt", "two")

	core := schema.Struct{"uuid": "22222222-2222-2222-2222-222222222222", "archive_path": "archive/multi", "physical_name": "multi-product"}
	err = fs.Put(ctx, []string{p1, p2}, core, true, false, nil, nil)
	require.NoError(t, err)

	productPath := fs.ProductPath(core)
	entries, err := os.ReadDir(productPath)
	require.NoError(t, err)
	assert.Len(t, entries, 2)
}

func TestFilesystemPutRunsRunForProductBeforeReturning(t *testing.T) {
	ctx := context.Background()
	root := t.TempDir()
	fs, err := NewFilesystem(root)
	require.NoError(t, err)
	require.NoError(t, fs.Prepare(ctx))

	src := t.TempDir()
	path := writeTempFile(t, src, "data.bin", "payload")
	core := schema.Struct{"uuid": "33333333-3333-3333-3333-333333333333", "archive_path": "a", "physical_name": "data.bin"}

	var sawPaths []string
	err = fs.Put(ctx, []string{path}, core, false, false, nil, func(paths []string) error {
		sawPaths = append(sawPaths, paths...)
		return nil
	})
	require.NoError(t, err)
	require.Len(t, sawPaths, 1)
	assert.FileExists(t, sawPaths[0])
}

func TestFilesystemDeleteIsIdempotent(t *testing.T) {
	ctx := context.Background()
	root := t.TempDir()
	fs, err := NewFilesystem(root)
	require.NoError(t, err)
	require.NoError(t, fs.Prepare(ctx))

	core := schema.Struct{"uuid": "44444444-4444-4444-4444-444444444444", "archive_path": "a", "physical_name": "gone.txt"}
	err = fs.Delete(ctx, filepath.Join(root, "a", "gone.txt"), core)
	assert.NoError(t, err)
}

func TestFilesystemMoveRewritesPaths(t *testing.T) {
	ctx := context.Background()
	root := t.TempDir()
	fs, err := NewFilesystem(root)
	require.NoError(t, err)
	require.NoError(t, fs.Prepare(ctx))

	src := t.TempDir()
	path := writeTempFile(t, src, "x.txt", "x")
	core := schema.Struct{"uuid": "55555555-5555-5555-5555-555555555555", "archive_path": "old", "physical_name": "x.txt"}
	require.NoError(t, fs.Put(ctx, []string{path}, core, false, false, nil, nil))

	oldPath := fs.ProductPath(core)
	rewritten, err := fs.Move(ctx, core, "new", []string{oldPath})
	require.NoError(t, err)
	require.Len(t, rewritten, 1)
	assert.FileExists(t, rewritten[0])

	core["archive_path"] = "new"
	assert.Equal(t, rewritten[0], fs.ProductPath(core))
}

func TestFilesystemExists(t *testing.T) {
	ctx := context.Background()
	root := filepath.Join(t.TempDir(), "archive")
	fs, err := NewFilesystem(root)
	require.NoError(t, err)

	exists, err := fs.Exists(ctx)
	require.NoError(t, err)
	assert.False(t, exists)

	require.NoError(t, fs.Prepare(ctx))
	exists, err = fs.Exists(ctx)
	require.NoError(t, err)
	assert.True(t, exists)
}
