package remote

import (
	"context"
	"fmt"
	"io"
	"net/url"
	"os"
	"path/filepath"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"

	"eve.evalgo.org/muninn/schema"
	"eve.evalgo.org/muninn/store"
)

// S3Backend pulls every object under an s3:// URL's key prefix,
// reusing store.S3Client so the storage backend's connection pooling
// and credentials serve double duty, per SPEC_FULL.md §4.7 (wiring the
// storage backend's S3 client as a second remote backend rather than
// introducing a separate S3 SDK surface). Ported from
// muninn/remote.py's S3Backend/download_s3.
type S3Backend struct {
	client S3BucketResolver
}

// S3BucketResolver resolves an s3:// URL's bucket (its hostname) to
// the store.S3Client that can read it. Most deployments have exactly
// one bucket; the indirection exists for archives configured against
// more than one.
type S3BucketResolver interface {
	ClientFor(bucket string) (store.S3Client, bool)
}

// NewS3Backend returns an S3Backend resolving clients through client.
func NewS3Backend(client S3BucketResolver) *S3Backend {
	return &S3Backend{client: client}
}

// SingleBucketResolver is an S3BucketResolver for the common case of a
// single configured bucket, regardless of what bucket name appears in
// a product's remote_url.
type SingleBucketResolver struct {
	Bucket string
	Client store.S3Client
}

func (r SingleBucketResolver) ClientFor(bucket string) (store.S3Client, bool) {
	return r.Client, true
}

func (b *S3Backend) Prefix() string { return "s3://" }

func (b *S3Backend) Identify(u string) bool {
	return strings.HasPrefix(u, "s3://")
}

func (b *S3Backend) Pull(ctx context.Context, core schema.Struct, targetDir string) ([]string, error) {
	remoteURL, _ := core["remote_url"].(string)
	parsed, err := url.Parse(remoteURL)
	if err != nil {
		return nil, err
	}
	bucket := parsed.Hostname()
	client, ok := b.client.ClientFor(bucket)
	if !ok {
		return nil, fmt.Errorf("remote: no S3 client configured for bucket %q", bucket)
	}

	prefix := strings.TrimPrefix(parsed.Path, "/")
	out, err := client.ListObjectsV2(ctx, &s3.ListObjectsV2Input{Bucket: aws.String(bucket), Prefix: aws.String(prefix)})
	if err != nil {
		return nil, fmt.Errorf("error downloading %s (reason: %w)", remoteURL, err)
	}
	if len(out.Contents) == 0 {
		return nil, fmt.Errorf("error downloading %s (no objects found)", remoteURL)
	}

	basepath := filepath.Dir(prefix)
	var paths []string
	seen := map[string]bool{}
	for _, obj := range out.Contents {
		key := aws.ToString(obj.Key)
		relPath, err := filepath.Rel(basepath, key)
		if err != nil {
			return nil, err
		}
		target := filepath.Join(targetDir, relPath)

		top := relPath
		if idx := strings.IndexRune(relPath, filepath.Separator); idx >= 0 {
			top = relPath[:idx]
		}
		topPath := filepath.Join(targetDir, top)
		if !seen[topPath] {
			seen[topPath] = true
			paths = append(paths, topPath)
		}

		if strings.HasSuffix(key, "/") {
			if err := os.MkdirAll(target, 0o755); err != nil {
				return nil, err
			}
			continue
		}
		if err := os.MkdirAll(filepath.Dir(target), 0o755); err != nil {
			return nil, err
		}
		getOut, err := client.GetObject(ctx, &s3.GetObjectInput{Bucket: aws.String(bucket), Key: aws.String(key)})
		if err != nil {
			return nil, fmt.Errorf("error downloading %s (reason: %w)", remoteURL, err)
		}
		if err := writeAllTo(target, getOut.Body); err != nil {
			return nil, err
		}
	}

	if len(paths) == 1 {
		return autoExtract(paths[0], core)
	}
	return paths, nil
}

func writeAllTo(path string, r io.ReadCloser) error {
	defer r.Close()
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()
	_, err = io.Copy(f, r)
	return err
}
