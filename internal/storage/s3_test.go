//go:build integration

package storage

import (
	"bytes"
	"context"
	"io"
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func s3Config() (endpoint, accessKey, secretKey, bucket string, useSSL bool) {
	endpoint = os.Getenv("S3_ENDPOINT")
	if endpoint == "" {
		endpoint = "http://localhost:9002"
	}
	accessKey = os.Getenv("S3_ACCESS_KEY")
	if accessKey == "" {
		accessKey = "minioadmin"
	}
	secretKey = os.Getenv("S3_SECRET_KEY")
	if secretKey == "" {
		secretKey = "minioadmin"
	}
	bucket = os.Getenv("S3_BUCKET")
	if bucket == "" {
		bucket = "oracle-test"
	}
	useSSL = false
	return
}

func setupS3(t *testing.T) *S3Client {
	t.Helper()
	ctx := context.Background()
	endpoint, accessKey, secretKey, bucket, useSSL := s3Config()
	client, err := NewS3Client(ctx, endpoint, accessKey, secretKey, bucket, useSSL, true)
	require.NoError(t, err, "failed to connect to S3/MinIO")
	return client
}

func TestS3_GenerateSnapshotKey(t *testing.T) {
	client := setupS3(t)

	key := client.GenerateSnapshotKey("example.com", 100, "snapshot.html")
	assert.Equal(t, "snapshots/example.com/100-snapshot.html", key)
}

func TestS3_UploadDownloadDelete(t *testing.T) {
	client := setupS3(t)
	ctx := context.Background()

	key := client.GenerateSnapshotKey("test-example.com", 1000, "page.html")

	content := "<html><body>Test snapshot content.</body></html>"
	contentBytes := []byte(content)

	err := client.Upload(ctx, key, bytes.NewReader(contentBytes), int64(len(contentBytes)))
	require.NoError(t, err, "Upload should succeed")

	reader, err := client.Download(ctx, key)
	require.NoError(t, err, "Download should succeed")
	defer reader.Close()

	downloaded, err := io.ReadAll(reader)
	require.NoError(t, err)
	assert.Equal(t, content, string(downloaded))

	err = client.Delete(ctx, key)
	require.NoError(t, err, "Delete should succeed")

	_, err = client.Download(ctx, key)
	assert.Error(t, err, "Download after delete should fail")
}

func TestS3_UploadLargeFile(t *testing.T) {
	client := setupS3(t)
	ctx := context.Background()

	key := client.GenerateSnapshotKey("test-large.com", 2000, "big-snapshot.html")

	size := 1024 * 1024
	data := make([]byte, size)
	for i := range data {
		data[i] = byte(i % 256)
	}

	err := client.Upload(ctx, key, bytes.NewReader(data), int64(size))
	require.NoError(t, err)

	reader, err := client.Download(ctx, key)
	require.NoError(t, err)
	defer reader.Close()

	downloaded, err := io.ReadAll(reader)
	require.NoError(t, err)
	assert.Len(t, downloaded, size)
	assert.Equal(t, data, downloaded)

	require.NoError(t, client.Delete(ctx, key))
}

func TestS3_DownloadNonExistent(t *testing.T) {
	client := setupS3(t)
	ctx := context.Background()

	_, err := client.Download(ctx, "nonexistent/path/file.html")
	assert.Error(t, err)
}

func TestS3_DeleteNonExistent(t *testing.T) {
	client := setupS3(t)
	ctx := context.Background()

	// S3 DeleteObject is idempotent; it should not error on missing keys.
	err := client.Delete(ctx, "nonexistent/path/file.html")
	assert.NoError(t, err)
}
