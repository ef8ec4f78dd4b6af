package store

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/feature/s3/manager"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"

	"eve.evalgo.org/muninn/muninnerr"
	"eve.evalgo.org/muninn/schema"
)

// S3Client is the narrow subset of the AWS SDK v2 S3 client this backend
// needs, following the teacher's storage/s3_interface.go pattern so a
// mock can stand in for tests without a live bucket.
type S3Client interface {
	HeadBucket(ctx context.Context, params *s3.HeadBucketInput, optFns ...func(*s3.Options)) (*s3.HeadBucketOutput, error)
	CreateBucket(ctx context.Context, params *s3.CreateBucketInput, optFns ...func(*s3.Options)) (*s3.CreateBucketOutput, error)
	PutObject(ctx context.Context, params *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
	GetObject(ctx context.Context, params *s3.GetObjectInput, optFns ...func(*s3.Options)) (*s3.GetObjectOutput, error)
	HeadObject(ctx context.Context, params *s3.HeadObjectInput, optFns ...func(*s3.Options)) (*s3.HeadObjectOutput, error)
	ListObjectsV2(ctx context.Context, params *s3.ListObjectsV2Input, optFns ...func(*s3.Options)) (*s3.ListObjectsV2Output, error)
	CopyObject(ctx context.Context, params *s3.CopyObjectInput, optFns ...func(*s3.Options)) (*s3.CopyObjectOutput, error)
	DeleteObject(ctx context.Context, params *s3.DeleteObjectInput, optFns ...func(*s3.Options)) (*s3.DeleteObjectOutput, error)
}

// S3 is the S3-compatible object-store Backend. It has no true atomic
// rename, so Put's staging-then-commit protocol is approximated with a
// staging key prefix followed by server-side CopyObject+DeleteObject per
// key: if the process dies between the two, the staged copy is orphaned
// but the destination key may already exist, which is why Put reports
// anything_stored=true on any failure past the initial upload — the
// coordinator must not assume the catalogue row is safe to roll back
// once bytes may have landed at the final key.
type S3 struct {
	client   S3Client
	uploader *manager.Uploader
	bucket   string
}

// NewS3 wraps client and uploader for bucket. uploader handles the
// actual byte transfer (including multipart upload for large files);
// client covers every other S3 operation (bucket lifecycle, listing,
// server-side copy/delete for the commit phase of Put).
func NewS3(client S3Client, uploader *manager.Uploader, bucket string) *S3 {
	return &S3{client: client, uploader: uploader, bucket: bucket}
}

func (s *S3) SupportsSymlinks() bool { return false }

func (s *S3) Prepare(ctx context.Context) error {
	_, err := s.client.HeadBucket(ctx, &s3.HeadBucketInput{Bucket: aws.String(s.bucket)})
	if err == nil {
		return nil
	}
	_, err = s.client.CreateBucket(ctx, &s3.CreateBucketInput{Bucket: aws.String(s.bucket)})
	if err != nil {
		return fmt.Errorf("store: creating bucket %q: %w", s.bucket, err)
	}
	return nil
}

func (s *S3) Exists(ctx context.Context) (bool, error) {
	_, err := s.client.HeadBucket(ctx, &s3.HeadBucketInput{Bucket: aws.String(s.bucket)})
	if err == nil {
		return true, nil
	}
	var notFound *types.NotFound
	var noBucket *types.NoSuchBucket
	if errors.As(err, &notFound) || errors.As(err, &noBucket) {
		return false, nil
	}
	return false, err
}

func (s *S3) Destroy(ctx context.Context) error {
	return s.deletePrefix(ctx, "")
}

func (s *S3) deletePrefix(ctx context.Context, prefix string) error {
	keys, err := s.listKeys(ctx, prefix)
	if err != nil {
		return err
	}
	for _, key := range keys {
		if _, err := s.client.DeleteObject(ctx, &s3.DeleteObjectInput{Bucket: aws.String(s.bucket), Key: aws.String(key)}); err != nil {
			return err
		}
	}
	return nil
}

func (s *S3) listKeys(ctx context.Context, prefix string) ([]string, error) {
	out, err := s.client.ListObjectsV2(ctx, &s3.ListObjectsV2Input{Bucket: aws.String(s.bucket), Prefix: aws.String(prefix)})
	if err != nil {
		return nil, err
	}
	keys := make([]string, len(out.Contents))
	for i, obj := range out.Contents {
		keys[i] = *obj.Key
	}
	return keys, nil
}

func objectKey(core schema.Struct) string {
	archivePath := coreString(core, "archive_path")
	physicalName := coreString(core, "physical_name")
	return strings.TrimPrefix(filepath.ToSlash(filepath.Join(archivePath, physicalName)), "/")
}

// uploadFile streams localPath to key via the multipart-capable
// manager.Uploader, matching the teacher's HetznerUploaderFile pattern
// (storage/s3aws.go) rather than buffering the whole file into memory.
func (s *S3) uploadFile(ctx context.Context, localPath, key string) error {
	f, err := os.Open(localPath)
	if err != nil {
		return err
	}
	defer f.Close()
	_, err = s.uploader.Upload(ctx, &s3.PutObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(key),
		Body:   f,
	})
	return err
}

func (s *S3) ProductPath(core schema.Struct) string { return objectKey(core) }

func (s *S3) CurrentArchivePath(paths []string, core schema.Struct) (string, error) {
	return "", muninnerr.NewUserError("in-place ingestion is not supported by the S3 storage backend")
}

func (s *S3) Put(ctx context.Context, paths []string, core schema.Struct, useEnclosingDirectory, useSymlinks bool, retrieveFiles RetrieveFunc, runForProduct RunForProductFunc) error {
	key := objectKey(core)
	stagingPrefix := fmt.Sprintf(".staging/%s/", coreString(core, "uuid"))

	if retrieveFiles != nil {
		staged, err := os.MkdirTemp("", "muninn-s3-put-")
		if err != nil {
			return muninnerr.NewStorageError(err, false)
		}
		defer os.RemoveAll(staged)
		local, err := retrieveFiles(staged)
		if err != nil {
			return muninnerr.NewStorageError(err, false)
		}
		paths = local
	}

	anythingStored := false
	var stagedKeys []string
	for _, p := range paths {
		if err := s.uploadFile(ctx, p, stagingPrefix+filepath.Base(p)); err != nil {
			return muninnerr.NewStorageError(fmt.Errorf("uploading %q: %w", p, err), anythingStored)
		}
		stagedKeys = append(stagedKeys, stagingPrefix+filepath.Base(p))
		anythingStored = true
	}

	for _, stagedKey := range stagedKeys {
		finalKey := key + "/" + strings.TrimPrefix(stagedKey, stagingPrefix)
		if !useEnclosingDirectory {
			finalKey = key
		}
		if _, err := s.client.CopyObject(ctx, &s3.CopyObjectInput{
			Bucket:     aws.String(s.bucket),
			Key:        aws.String(finalKey),
			CopySource: aws.String(s.bucket + "/" + stagedKey),
		}); err != nil {
			return muninnerr.NewStorageError(fmt.Errorf("committing %q: %w", finalKey, err), true)
		}
		if _, err := s.client.DeleteObject(ctx, &s3.DeleteObjectInput{Bucket: aws.String(s.bucket), Key: aws.String(stagedKey)}); err != nil {
			return muninnerr.NewStorageError(fmt.Errorf("clearing staged object %q: %w", stagedKey, err), true)
		}
	}

	if runForProduct != nil {
		if err := s.RunForProduct(ctx, core, runForProduct, useEnclosingDirectory); err != nil {
			return muninnerr.NewStorageError(err, true)
		}
	}
	return nil
}

func (s *S3) Get(ctx context.Context, core schema.Struct, productPath, targetDir string, useEnclosingDirectory, useSymlinks bool) error {
	if useSymlinks {
		return muninnerr.NewUserError("the S3 storage backend does not support symlinks")
	}
	keys, err := s.listKeys(ctx, productPath+"/")
	if err != nil {
		return muninnerr.NewStorageError(err, false)
	}
	if len(keys) == 0 {
		keys = []string{productPath}
	}
	for _, key := range keys {
		out, err := s.client.GetObject(ctx, &s3.GetObjectInput{Bucket: aws.String(s.bucket), Key: aws.String(key)})
		if err != nil {
			return muninnerr.NewStorageError(fmt.Errorf("fetching %q: %w", key, err), false)
		}
		dst := filepath.Join(targetDir, filepath.Base(key))
		if err := writeAll(dst, out.Body); err != nil {
			return muninnerr.NewStorageError(fmt.Errorf("writing %q: %w", dst, err), false)
		}
	}
	return nil
}

func writeAll(path string, r io.ReadCloser) error {
	defer r.Close()
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()
	_, err = io.Copy(f, r)
	return err
}

func (s *S3) Size(ctx context.Context, path string) (int64, error) {
	keys, err := s.listKeys(ctx, path)
	if err != nil {
		return 0, err
	}
	var total int64
	for _, key := range keys {
		out, err := s.client.HeadObject(ctx, &s3.HeadObjectInput{Bucket: aws.String(s.bucket), Key: aws.String(key)})
		if err != nil {
			return 0, err
		}
		if out.ContentLength != nil {
			total += *out.ContentLength
		}
	}
	return total, nil
}

func (s *S3) Delete(ctx context.Context, productPath string, core schema.Struct) error {
	return s.deletePrefix(ctx, productPath)
}

func (s *S3) Move(ctx context.Context, core schema.Struct, newArchivePath string, paths []string) ([]string, error) {
	oldKey := objectKey(core)
	newCore := schema.Struct{"archive_path": newArchivePath, "physical_name": coreString(core, "physical_name")}
	newKey := objectKey(newCore)
	if oldKey == newKey {
		return paths, nil
	}

	keys, err := s.listKeys(ctx, oldKey)
	if err != nil {
		return nil, err
	}
	for _, key := range keys {
		dest := newKey + strings.TrimPrefix(key, oldKey)
		if _, err := s.client.CopyObject(ctx, &s3.CopyObjectInput{
			Bucket:     aws.String(s.bucket),
			Key:        aws.String(dest),
			CopySource: aws.String(s.bucket + "/" + key),
		}); err != nil {
			return nil, err
		}
		if _, err := s.client.DeleteObject(ctx, &s3.DeleteObjectInput{Bucket: aws.String(s.bucket), Key: aws.String(key)}); err != nil {
			return nil, err
		}
	}
	return paths, nil
}

func (s *S3) RunForProduct(ctx context.Context, core schema.Struct, fn RunForProductFunc, useEnclosingDirectory bool) error {
	keys, err := s.listKeys(ctx, s.ProductPath(core))
	if err != nil {
		return err
	}
	return fn(keys)
}
