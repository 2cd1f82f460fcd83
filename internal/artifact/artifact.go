// Where: internal/artifact/artifact.go
// What: Optional upload of the packaged template to S3.
// Why: CI pipelines pick the synthesized template up from a bucket.
package artifact

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"path"
	"slices"
	"strings"
)

// API is the S3 surface used by the uploader.
type API interface {
	ListBuckets(ctx context.Context) ([]string, error)
	CreateBucket(ctx context.Context, name string) error
	PutObject(ctx context.Context, bucket, key, contentType string, body io.Reader) error
}

// Uploader writes artifacts under <service>/<stage>/ in one bucket.
type Uploader struct {
	client API
	bucket string
}

// New returns an uploader for bucket.
func New(client API, bucket string) *Uploader {
	return &Uploader{client: client, bucket: strings.TrimSpace(bucket)}
}

// Key is the object key of an artifact.
func Key(service, stage, name string) string {
	return path.Join(service, stage, name)
}

// Upload stores data and returns its s3:// location. The bucket is
// created when it does not exist yet.
func (u *Uploader) Upload(ctx context.Context, service, stage, name, contentType string, data []byte) (string, error) {
	if u == nil || u.client == nil {
		return "", fmt.Errorf("s3 client is nil")
	}
	if u.bucket == "" {
		return "", fmt.Errorf("artifact bucket is required")
	}
	buckets, err := u.client.ListBuckets(ctx)
	if err != nil {
		return "", fmt.Errorf("list buckets: %w", err)
	}
	if !slices.Contains(buckets, u.bucket) {
		if err := u.client.CreateBucket(ctx, u.bucket); err != nil {
			return "", fmt.Errorf("create bucket %s: %w", u.bucket, err)
		}
	}
	key := Key(service, stage, name)
	if err := u.client.PutObject(ctx, u.bucket, key, contentType, bytes.NewReader(data)); err != nil {
		return "", fmt.Errorf("put object %s: %w", key, err)
	}
	return fmt.Sprintf("s3://%s/%s", u.bucket, key), nil
}
