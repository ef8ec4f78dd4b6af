package remote

import (
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"eve.evalgo.org/muninn/schema"
)

func TestHTTPBackendIdentify(t *testing.T) {
	b := NewHTTPBackend("https", CredentialFile{})
	assert.True(t, b.Identify("https://example.com/a"))
	assert.False(t, b.Identify("http://example.com/a"))
}

func TestHTTPBackendPullDownloadsFile(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("hello world"))
	}))
	defer srv.Close()

	b := NewHTTPBackend("http", CredentialFile{})
	core := schema.Struct{"remote_url": srv.URL + "/data.txt", "physical_name": "data.txt"}

	target := t.TempDir()
	paths, err := b.Pull(context.Background(), core, target)
	require.NoError(t, err)
	require.Len(t, paths, 1)

	data, err := os.ReadFile(paths[0])
	require.NoError(t, err)
	assert.Equal(t, "hello world", string(data))
}

func TestHTTPBackendPullUsesBasicAuth(t *testing.T) {
	var gotUser, gotPass string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotUser, gotPass, _ = r.BasicAuth()
		w.Write([]byte("secret"))
	}))
	defer srv.Close()

	credentials := CredentialFile{srv.URL: {Username: "alice", Password: "hunter2"}}
	b := NewHTTPBackend("http", credentials)
	core := schema.Struct{"remote_url": srv.URL + "/secret.txt", "physical_name": "secret.txt"}

	_, err := b.Pull(context.Background(), core, t.TempDir())
	require.NoError(t, err)
	assert.Equal(t, "alice", gotUser)
	assert.Equal(t, "hunter2", gotPass)
}

func TestHTTPBackendPullHonorsContentDisposition(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Disposition", `attachment; filename="renamed.bin"`)
		w.Write([]byte("x"))
	}))
	defer srv.Close()

	b := NewHTTPBackend("http", CredentialFile{})
	core := schema.Struct{"remote_url": srv.URL + "/download", "physical_name": "renamed"}

	paths, err := b.Pull(context.Background(), core, t.TempDir())
	require.NoError(t, err)
	require.Len(t, paths, 1)
	assert.Contains(t, paths[0], "renamed.bin")
}

func TestHTTPBackendPullErrorsOnHTTPFailure(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}))
	defer srv.Close()

	b := NewHTTPBackend("http", CredentialFile{})
	core := schema.Struct{"remote_url": srv.URL + "/missing", "physical_name": "missing"}

	_, err := b.Pull(context.Background(), core, t.TempDir())
	assert.Error(t, err)
}
