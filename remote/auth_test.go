package remote

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeAuthFile(t *testing.T, contents string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "auth.json")
	require.NoError(t, os.WriteFile(path, []byte(contents), 0o600))
	return path
}

func TestLoadCredentialFileEmptyPath(t *testing.T) {
	file, err := LoadCredentialFile("")
	require.NoError(t, err)
	assert.Empty(t, file)
}

func TestCredentialFileResolveLongestPrefix(t *testing.T) {
	path := writeAuthFile(t, `{
		"https://example.com/": {"username": "general", "password": "a"},
		"https://example.com/secure/": {"username": "specific", "password": "b"}
	}`)
	file, err := LoadCredentialFile(path)
	require.NoError(t, err)

	creds, ok := file.Resolve("https://example.com/secure/data.zip")
	require.True(t, ok)
	assert.Equal(t, "specific", creds.Username)
}

func TestCredentialFileResolveHostnameFallback(t *testing.T) {
	path := writeAuthFile(t, `{"example.com": {"username": "u", "password": "p"}}`)
	file, err := LoadCredentialFile(path)
	require.NoError(t, err)

	creds, ok := file.Resolve("https://example.com/data.zip")
	require.True(t, ok)
	assert.Equal(t, "u", creds.Username)
}

func TestCredentialFileResolveNoMatch(t *testing.T) {
	path := writeAuthFile(t, `{"https://other.com/": {"username": "u"}}`)
	file, err := LoadCredentialFile(path)
	require.NoError(t, err)

	_, ok := file.Resolve("https://example.com/data.zip")
	assert.False(t, ok)
}

func TestCredentialFileResolveHostnameSkippedForS3(t *testing.T) {
	path := writeAuthFile(t, `{"my-bucket.s3.example.com": {"access_key": "k"}}`)
	file, err := LoadCredentialFile(path)
	require.NoError(t, err)

	_, ok := file.Resolve("s3://my-bucket.s3.example.com/data")
	assert.False(t, ok)
}
