package s3

import (
	"context"
	"crypto/rand"
	"fmt"
	"os"
	"testing"
	"time"

	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hupe1980/bloomgo/blobstore"
)

func TestIntegration_Store(t *testing.T) {
	bucket := os.Getenv("S3_BUCKET")
	if bucket == "" {
		t.Skip("Skipping S3 integration test: S3_BUCKET not set")
	}

	ctx := context.Background()
	cfg, err := config.LoadDefaultConfig(ctx)
	require.NoError(t, err)

	client := s3.NewFromConfig(cfg)

	// Unique prefix per run so parallel CI jobs cannot collide.
	prefix := fmt.Sprintf("test-bloomgo-%d/", time.Now().UnixNano())
	store := NewStore(client, bucket, prefix)

	t.Run("PutAndRead", func(t *testing.T) {
		name := "filters/web.snap"
		data := make([]byte, 1024*1024)
		_, err := rand.Read(data)
		require.NoError(t, err)

		require.NoError(t, store.Put(ctx, name, data))

		names, err := store.List(ctx, "filters/")
		require.NoError(t, err)
		assert.Contains(t, names, name)

		blob, err := store.Open(ctx, name)
		require.NoError(t, err)
		assert.Equal(t, int64(len(data)), blob.Size())

		head := make([]byte, 100)
		_, err = blob.ReadAt(head, 0)
		require.NoError(t, err)
		assert.Equal(t, data[:100], head)
		require.NoError(t, blob.Close())

		got, err := blobstore.ReadAll(ctx, store, name)
		require.NoError(t, err)
		assert.Equal(t, data, got)

		require.NoError(t, store.Delete(ctx, name))
		_, err = store.Open(ctx, name)
		assert.ErrorIs(t, err, blobstore.ErrNotFound)
	})

	t.Run("MultipartUpload", func(t *testing.T) {
		name := "filters/large.snap"
		data := make([]byte, 9*1024*1024) // crosses the default part size
		_, err := rand.Read(data)
		require.NoError(t, err)

		require.NoError(t, store.Put(ctx, name, data))
		defer func() { _ = store.Delete(ctx, name) }()

		got, err := blobstore.ReadAll(ctx, store, name)
		require.NoError(t, err)
		assert.Equal(t, data, got)
	})
}
