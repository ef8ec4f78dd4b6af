package remote

import (
	"context"
	"io"
	"net/url"
	"os"
	"path/filepath"
	"strings"

	"eve.evalgo.org/muninn/schema"
)

// FileBackend pulls from a local path expressed as a file:// URL,
// ported from muninn/remote.py's FileBackend.
type FileBackend struct {
	prefix string
}

// NewFileBackend returns a FileBackend identifying "file://" URLs.
func NewFileBackend() *FileBackend {
	return &FileBackend{prefix: "file://"}
}

func (b *FileBackend) Prefix() string { return b.prefix }

func (b *FileBackend) Identify(u string) bool {
	return strings.HasPrefix(u, b.prefix)
}

func (b *FileBackend) Pull(ctx context.Context, core schema.Struct, targetDir string) ([]string, error) {
	remoteURL, _ := core["remote_url"].(string)
	parsed, err := url.Parse(remoteURL)
	if err != nil {
		return nil, err
	}
	sourcePath := parsed.Path
	targetPath := filepath.Join(targetDir, filepath.Base(sourcePath))
	if err := copyFile(sourcePath, targetPath); err != nil {
		return nil, err
	}
	return autoExtract(targetPath, core)
}

func copyFile(src, dst string) error {
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()

	out, err := os.Create(dst)
	if err != nil {
		return err
	}
	defer out.Close()

	_, err = io.Copy(out, in)
	return err
}
