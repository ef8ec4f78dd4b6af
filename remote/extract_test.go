package remote

import (
	"archive/tar"
	"archive/zip"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"eve.evalgo.org/muninn/schema"
)

func writeZip(t *testing.T, path string, files map[string]string) {
	t.Helper()
	f, err := os.Create(path)
	require.NoError(t, err)
	defer f.Close()

	zw := zip.NewWriter(f)
	for name, content := range files {
		w, err := zw.Create(name)
		require.NoError(t, err)
		_, err = w.Write([]byte(content))
		require.NoError(t, err)
	}
	require.NoError(t, zw.Close())
}

func TestAutoExtractZip(t *testing.T) {
	dir := t.TempDir()
	zipPath := filepath.Join(dir, "product.zip")
	writeZip(t, zipPath, map[string]string{"product/data.txt": "hello"})

	core := schema.Struct{"physical_name": "product"}
	paths, err := autoExtract(zipPath, core)
	require.NoError(t, err)
	require.Len(t, paths, 1)
	assert.Equal(t, filepath.Join(dir, "product"), paths[0])
	assert.NoFileExists(t, zipPath)

	data, err := os.ReadFile(filepath.Join(dir, "product", "data.txt"))
	require.NoError(t, err)
	assert.Equal(t, "hello", string(data))
}

func TestAutoExtractNonArchivePassesThrough(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "README")
	require.NoError(t, os.WriteFile(path, []byte("text"), 0o644))

	core := schema.Struct{"physical_name": "README"}
	paths, err := autoExtract(path, core)
	require.NoError(t, err)
	assert.Equal(t, []string{path}, paths)
	assert.FileExists(t, path)
}

func writeTar(t *testing.T, path string, files map[string]string) {
	t.Helper()
	f, err := os.Create(path)
	require.NoError(t, err)
	defer f.Close()

	tw := tar.NewWriter(f)
	for name, content := range files {
		require.NoError(t, tw.WriteHeader(&tar.Header{Name: name, Size: int64(len(content)), Mode: 0o644}))
		_, err := tw.Write([]byte(content))
		require.NoError(t, err)
	}
	require.NoError(t, tw.Close())
}

func TestAutoExtractTar(t *testing.T) {
	dir := t.TempDir()
	tarPath := filepath.Join(dir, "product.tar")
	writeTar(t, tarPath, map[string]string{"product/a.txt": "one"})

	core := schema.Struct{"physical_name": "product"}
	paths, err := autoExtract(tarPath, core)
	require.NoError(t, err)
	require.Len(t, paths, 1)
	assert.NoFileExists(t, tarPath)

	data, err := os.ReadFile(filepath.Join(dir, "product", "a.txt"))
	require.NoError(t, err)
	assert.Equal(t, "one", string(data))
}

func TestExtractTarRejectsPathEscape(t *testing.T) {
	dir := t.TempDir()
	tarPath := filepath.Join(dir, "evil.tar")

	f, err := os.Create(tarPath)
	require.NoError(t, err)
	tw := tar.NewWriter(f)
	content := "pwned"
	require.NoError(t, tw.WriteHeader(&tar.Header{Name: "../../etc/passwd", Size: int64(len(content)), Mode: 0o644}))
	_, err = tw.Write([]byte(content))
	require.NoError(t, err)
	require.NoError(t, tw.Close())
	require.NoError(t, f.Close())

	extractDir := t.TempDir()
	_, err = extractTar(tarPath, extractDir, ".tar")
	require.NoError(t, err)
	assert.NoFileExists(t, filepath.Join(extractDir, "..", "..", "etc", "passwd"))
}
