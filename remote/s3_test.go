package remote

import (
	"bytes"
	"context"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"eve.evalgo.org/muninn/schema"
	"eve.evalgo.org/muninn/store"
)

// fakeBucket is a minimal store.S3Client backing a single in-memory
// bucket, used to exercise S3Backend.Pull without a live bucket.
type fakeBucket struct {
	objects map[string][]byte
}

func (f *fakeBucket) HeadBucket(ctx context.Context, params *s3.HeadBucketInput, optFns ...func(*s3.Options)) (*s3.HeadBucketOutput, error) {
	return &s3.HeadBucketOutput{}, nil
}
func (f *fakeBucket) CreateBucket(ctx context.Context, params *s3.CreateBucketInput, optFns ...func(*s3.Options)) (*s3.CreateBucketOutput, error) {
	return &s3.CreateBucketOutput{}, nil
}
func (f *fakeBucket) PutObject(ctx context.Context, params *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error) {
	data, err := io.ReadAll(params.Body)
	if err != nil {
		return nil, err
	}
	f.objects[*params.Key] = data
	return &s3.PutObjectOutput{}, nil
}
func (f *fakeBucket) GetObject(ctx context.Context, params *s3.GetObjectInput, optFns ...func(*s3.Options)) (*s3.GetObjectOutput, error) {
	data, ok := f.objects[*params.Key]
	if !ok {
		return nil, &types.NoSuchKey{}
	}
	return &s3.GetObjectOutput{Body: io.NopCloser(bytes.NewReader(data))}, nil
}
func (f *fakeBucket) HeadObject(ctx context.Context, params *s3.HeadObjectInput, optFns ...func(*s3.Options)) (*s3.HeadObjectOutput, error) {
	data, ok := f.objects[*params.Key]
	if !ok {
		return nil, &types.NotFound{}
	}
	return &s3.HeadObjectOutput{ContentLength: aws.Int64(int64(len(data)))}, nil
}
func (f *fakeBucket) ListObjectsV2(ctx context.Context, params *s3.ListObjectsV2Input, optFns ...func(*s3.Options)) (*s3.ListObjectsV2Output, error) {
	prefix := aws.ToString(params.Prefix)
	var contents []types.Object
	for key := range f.objects {
		if strings.HasPrefix(key, prefix) {
			contents = append(contents, types.Object{Key: aws.String(key)})
		}
	}
	return &s3.ListObjectsV2Output{Contents: contents}, nil
}
func (f *fakeBucket) CopyObject(ctx context.Context, params *s3.CopyObjectInput, optFns ...func(*s3.Options)) (*s3.CopyObjectOutput, error) {
	return &s3.CopyObjectOutput{}, nil
}
func (f *fakeBucket) DeleteObject(ctx context.Context, params *s3.DeleteObjectInput, optFns ...func(*s3.Options)) (*s3.DeleteObjectOutput, error) {
	delete(f.objects, *params.Key)
	return &s3.DeleteObjectOutput{}, nil
}

var _ store.S3Client = (*fakeBucket)(nil)

func TestS3BackendIdentify(t *testing.T) {
	b := NewS3Backend(SingleBucketResolver{})
	assert.True(t, b.Identify("s3://my-bucket/key"))
	assert.False(t, b.Identify("http://example.com"))
}

func TestS3BackendPullDownloadsSingleObject(t *testing.T) {
	bucket := &fakeBucket{objects: map[string][]byte{"archive/data.txt": []byte("hello")}}
	b := NewS3Backend(SingleBucketResolver{Bucket: "my-bucket", Client: bucket})

	core := schema.Struct{"remote_url": "s3://my-bucket/archive/data.txt", "physical_name": "data.txt"}
	target := t.TempDir()
	paths, err := b.Pull(context.Background(), core, target)
	require.NoError(t, err)
	require.Len(t, paths, 1)

	data, err := os.ReadFile(filepath.Join(target, "data.txt"))
	require.NoError(t, err)
	assert.Equal(t, "hello", string(data))
}

func TestS3BackendPullNoObjectsFound(t *testing.T) {
	bucket := &fakeBucket{objects: map[string][]byte{}}
	b := NewS3Backend(SingleBucketResolver{Bucket: "my-bucket", Client: bucket})

	core := schema.Struct{"remote_url": "s3://my-bucket/missing/data.txt", "physical_name": "data.txt"}
	_, err := b.Pull(context.Background(), core, t.TempDir())
	assert.Error(t, err)
}
