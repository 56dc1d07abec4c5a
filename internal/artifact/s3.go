package artifact

import (
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"

	"github.com/sungwon/ticket-printer/internal/awsconf"
)

// s3API defines the subset of the S3 client interface used by S3Fetcher.
type s3API interface {
	GetObject(ctx context.Context, params *s3.GetObjectInput, optFns ...func(*s3.Options)) (*s3.GetObjectOutput, error)
}

// S3Fetcher reads artifacts from an S3-compatible object store.
type S3Fetcher struct {
	client s3API
	bucket string
	prefix string
}

// NewS3Fetcher creates a new S3Fetcher with the given client, bucket, and key prefix.
func NewS3Fetcher(client s3API, bucket, prefix string) *S3Fetcher {
	return &S3Fetcher{client: client, bucket: bucket, prefix: prefix}
}

// NewS3FetcherFromConfig creates a new S3Fetcher from a Config, building a
// real AWS S3 client. It supports custom endpoints (e.g. MinIO, R2) via
// Config.S3Endpoint.
func NewS3FetcherFromConfig(cfg Config) (*S3Fetcher, error) {
	awsCfg, err := awsconf.Load(context.Background(), awsconf.Options{
		Region:          cfg.S3Region,
		AccessKeyID:     cfg.AccessKeyID,
		SecretAccessKey: cfg.SecretAccessKey,
	})
	if err != nil {
		return nil, fmt.Errorf("artifact: %w", err)
	}

	s3OptFns := []func(*s3.Options){}

	if cfg.S3Endpoint != "" {
		s3OptFns = append(s3OptFns, func(o *s3.Options) {
			o.BaseEndpoint = aws.String(cfg.S3Endpoint)
			o.UsePathStyle = true
		})
	}

	return NewS3Fetcher(s3.NewFromConfig(awsCfg, s3OptFns...), cfg.S3Bucket, cfg.S3Prefix), nil
}

// Fetch downloads the artifact at prefix+key. Returns ErrNotFound if the
// object does not exist.
func (f *S3Fetcher) Fetch(ctx context.Context, key string) ([]byte, error) {
	k, err := normalizeKey(key)
	if err != nil {
		return nil, err
	}
	objectKey := f.prefix + k

	out, err := f.client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: &f.bucket,
		Key:    &objectKey,
	})
	if err != nil {
		var nsk *types.NoSuchKey
		if errors.As(err, &nsk) {
			return nil, &FetchError{Key: k, StatusCode: 404, Permanent: true, Err: ErrNotFound}
		}
		return nil, &FetchError{Key: k, Err: fmt.Errorf("s3 get: %w", err)}
	}
	defer out.Body.Close()

	data, err := io.ReadAll(io.LimitReader(out.Body, maxArtifactBytes+1))
	if err != nil {
		return nil, &FetchError{Key: k, Err: fmt.Errorf("%w: %v", ErrPartialDownload, err)}
	}
	if len(data) > maxArtifactBytes {
		return nil, &FetchError{Key: k, Permanent: true, Err: fmt.Errorf("artifact exceeds %d bytes", maxArtifactBytes)}
	}
	if out.ContentLength != nil && int64(len(data)) != *out.ContentLength {
		return nil, &FetchError{Key: k, Err: fmt.Errorf("%w: got %d of %d bytes", ErrPartialDownload, len(data), *out.ContentLength)}
	}
	return data, nil
}
