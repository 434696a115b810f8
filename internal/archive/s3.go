package archive

import (
	"bytes"
	"context"
	"fmt"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/s3"
)

// S3Destination writes each ledger export to an S3-compatible bucket as a
// timestamped object, so the bucket keeps a history of snapshots instead of
// one overwritten file.
type S3Destination struct {
	client    *s3.Client
	bucket    string
	keyPrefix string
	now       func() time.Time
}

// NewS3Destination creates an S3 destination. Objects are named
// <keyPrefix>-<timestamp>.jsonl. If endpoint is non-empty, path-style
// addressing is enabled (for MinIO and similar).
func NewS3Destination(ctx context.Context, bucket, keyPrefix, region, endpoint string) (*S3Destination, error) {
	opts := []func(*awsconfig.LoadOptions) error{
		awsconfig.WithRegion(region),
	}

	cfg, err := awsconfig.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("load AWS config: %w", err)
	}

	var s3opts []func(*s3.Options)
	if endpoint != "" {
		s3opts = append(s3opts, func(o *s3.Options) {
			o.BaseEndpoint = aws.String(endpoint)
			o.UsePathStyle = true
		})
	}

	return &S3Destination{
		client:    s3.NewFromConfig(cfg, s3opts...),
		bucket:    bucket,
		keyPrefix: keyPrefix,
		now:       time.Now,
	}, nil
}

// Name identifies the destination in scheduler logs.
func (d *S3Destination) Name() string {
	return "s3://" + d.bucket + "/" + d.keyPrefix
}

// objectKey names one export snapshot, second resolution in UTC.
func objectKey(prefix string, now time.Time) string {
	return fmt.Sprintf("%s-%s.jsonl", prefix, now.UTC().Format("20060102T150405Z"))
}

// Write uploads one export as a new timestamped object.
func (d *S3Destination) Write(ctx context.Context, data []byte) error {
	key := objectKey(d.keyPrefix, d.now())
	contentType := "application/x-ndjson"
	_, err := d.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(d.bucket),
		Key:         aws.String(key),
		Body:        bytes.NewReader(data),
		ContentType: &contentType,
	})
	if err != nil {
		return fmt.Errorf("s3 put %s: %w", key, err)
	}
	return nil
}
