package archive

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/minio/minio-go/v7"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEndpointHost(t *testing.T) {
	tests := []struct {
		endpoint   string
		secure     bool
		wantHost   string
		wantSecure bool
	}{
		{"localhost:9000", false, "localhost:9000", false},
		{"localhost:9000", true, "localhost:9000", true},
		{"http://minio.internal:9000/", false, "minio.internal:9000", false},
		{"https://s3.example.com", false, "s3.example.com", true},
	}

	for _, tt := range tests {
		t.Run(tt.endpoint, func(t *testing.T) {
			host, secure := endpointHost(tt.endpoint, tt.secure)
			assert.Equal(t, tt.wantHost, host)
			assert.Equal(t, tt.wantSecure, secure)
		})
	}
}

func TestNewMinioArchiveRejectsBadOptions(t *testing.T) {
	ctx := context.Background()

	_, err := NewMinioArchive(ctx, Options{Endpoint: "localhost:9000", AccessKey: "k", SecretKey: "s"})
	assert.ErrorContains(t, err, "bucket")

	// Endpoints are hosts; a path is rejected before any request is made.
	_, err = NewMinioArchive(ctx, Options{Endpoint: "localhost:9000/invoices", AccessKey: "k", SecretKey: "s", Bucket: "invoices"})
	assert.ErrorContains(t, err, "failed to initialize MinIO client")
}

// Needs a disposable MinIO, e.g. MINIO_TEST_ENDPOINT=localhost:9000 with
// MINIO_TEST_ACCESS_KEY and MINIO_TEST_SECRET_KEY.
func TestMinioArchivePutRemove(t *testing.T) {
	endpoint := os.Getenv("MINIO_TEST_ENDPOINT")
	if endpoint == "" {
		t.Skip("MINIO_TEST_ENDPOINT not set")
	}

	ctx := context.Background()
	a, err := NewMinioArchive(ctx, Options{
		Endpoint:  endpoint,
		AccessKey: os.Getenv("MINIO_TEST_ACCESS_KEY"),
		SecretKey: os.Getenv("MINIO_TEST_SECRET_KEY"),
		Bucket:    "billdesk-test",
	})
	require.NoError(t, err)

	path := filepath.Join(t.TempDir(), "acme_INV-1999-000001.pdf")
	require.NoError(t, os.WriteFile(path, []byte("%PDF-1.4\n"), 0o644))

	key := "acme/1999/acme_INV-1999-" + time.Now().Format("150405") + ".pdf"
	require.NoError(t, a.Put(ctx, key, path))

	info, err := a.client.StatObject(ctx, a.bucket, key, minio.StatObjectOptions{})
	require.NoError(t, err)
	assert.Equal(t, pdfContentType, info.ContentType)

	require.NoError(t, a.Remove(ctx, key))
	require.NoError(t, a.Remove(ctx, key))
}
