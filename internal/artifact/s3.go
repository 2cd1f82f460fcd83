// Where: internal/artifact/s3.go
// What: AWS SDK adapter for artifact uploads.
// Why: Map uploader calls to S3 SDK inputs.
package artifact

import (
	"context"
	"fmt"
	"io"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
)

// S3API is the SDK method set used by the adapter.
type S3API interface {
	ListBuckets(ctx context.Context, params *s3.ListBucketsInput, optFns ...func(*s3.Options)) (*s3.ListBucketsOutput, error)
	CreateBucket(ctx context.Context, params *s3.CreateBucketInput, optFns ...func(*s3.Options)) (*s3.CreateBucketOutput, error)
	PutObject(ctx context.Context, params *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
}

// S3 implements API over the SDK client.
type S3 struct {
	Client S3API
}

// NewS3 wraps client.
func NewS3(client S3API) S3 {
	return S3{Client: client}
}

func (c S3) ListBuckets(ctx context.Context) ([]string, error) {
	if c.Client == nil {
		return nil, fmt.Errorf("s3 client is nil")
	}
	resp, err := c.Client.ListBuckets(ctx, &s3.ListBucketsInput{})
	if err != nil {
		return nil, err
	}
	names := make([]string, 0, len(resp.Buckets))
	for _, bucket := range resp.Buckets {
		if bucket.Name == nil {
			continue
		}
		names = append(names, *bucket.Name)
	}
	return names, nil
}

func (c S3) CreateBucket(ctx context.Context, name string) error {
	if c.Client == nil {
		return fmt.Errorf("s3 client is nil")
	}
	_, err := c.Client.CreateBucket(ctx, &s3.CreateBucketInput{Bucket: aws.String(name)})
	return err
}

func (c S3) PutObject(ctx context.Context, bucket, key, contentType string, body io.Reader) error {
	if c.Client == nil {
		return fmt.Errorf("s3 client is nil")
	}
	input := &s3.PutObjectInput{
		Bucket: aws.String(bucket),
		Key:    aws.String(key),
		Body:   body,
	}
	if contentType != "" {
		input.ContentType = aws.String(contentType)
	}
	_, err := c.Client.PutObject(ctx, input)
	return err
}
