// Package archive mirrors generated invoice PDFs to a MinIO bucket.
package archive

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
	"github.com/rs/zerolog"

	"billdesk/internal/invoice"
	"billdesk/internal/logger"
)

const pdfContentType = "application/pdf"

// MinioArchive stores invoice PDFs under the same client/year keys they
// have on local disk.
type MinioArchive struct {
	client *minio.Client
	bucket string
	log    zerolog.Logger
}

var _ invoice.Archive = (*MinioArchive)(nil)

// Options configures NewMinioArchive.
type Options struct {
	Endpoint  string
	AccessKey string
	SecretKey string
	Bucket    string
	Secure    bool
}

// NewMinioArchive connects to MinIO and makes sure the bucket exists.
func NewMinioArchive(ctx context.Context, opts Options) (*MinioArchive, error) {
	if opts.Bucket == "" {
		return nil, fmt.Errorf("MinIO bucket name is required")
	}
	endpoint, secure := endpointHost(opts.Endpoint, opts.Secure)

	client, err := minio.New(endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(opts.AccessKey, opts.SecretKey, ""),
		Secure: secure,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to initialize MinIO client: %w", err)
	}

	a := &MinioArchive{
		client: client,
		bucket: opts.Bucket,
		log:    logger.WithComponent("archive"),
	}

	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	if err := a.ensureBucket(ctx); err != nil {
		return nil, err
	}

	a.log.Debug().Str("endpoint", endpoint).Str("bucket", a.bucket).Msg("MinIO archive ready")
	return a, nil
}

// endpointHost accepts MINIO_ENDPOINT with or without a scheme. An https
// scheme turns TLS on.
func endpointHost(endpoint string, secure bool) (string, bool) {
	endpoint = strings.TrimRight(endpoint, "/")
	switch {
	case strings.HasPrefix(endpoint, "https://"):
		return strings.TrimPrefix(endpoint, "https://"), true
	case strings.HasPrefix(endpoint, "http://"):
		return strings.TrimPrefix(endpoint, "http://"), secure
	}
	return endpoint, secure
}

// ensureBucket creates the bucket if it doesn't exist
func (a *MinioArchive) ensureBucket(ctx context.Context) error {
	exists, err := a.client.BucketExists(ctx, a.bucket)
	if err != nil {
		return fmt.Errorf("failed to check bucket %s: %w", a.bucket, err)
	}
	if exists {
		return nil
	}
	if err := a.client.MakeBucket(ctx, a.bucket, minio.MakeBucketOptions{}); err != nil {
		return fmt.Errorf("failed to create bucket %s: %w", a.bucket, err)
	}
	a.log.Info().Str("bucket", a.bucket).Msg("Created archive bucket")
	return nil
}

// Put uploads the file at path as key.
func (a *MinioArchive) Put(ctx context.Context, key, path string) error {
	info, err := a.client.FPutObject(ctx, a.bucket, key, path,
		minio.PutObjectOptions{ContentType: pdfContentType})
	if err != nil {
		return fmt.Errorf("failed to upload %s: %w", key, err)
	}
	a.log.Debug().Str("key", key).Int64("size", info.Size).Msg("Archived PDF")
	return nil
}

// Remove deletes key. Removing a missing object succeeds.
func (a *MinioArchive) Remove(ctx context.Context, key string) error {
	if err := a.client.RemoveObject(ctx, a.bucket, key, minio.RemoveObjectOptions{}); err != nil {
		return fmt.Errorf("failed to delete %s: %w", key, err)
	}
	return nil
}
