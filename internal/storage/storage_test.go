package storage

import (
	"apphasia/exercise-engine/internal/config"
	"apphasia/exercise-engine/internal/logger"
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewS3Storage_EmptyBucketIsNoop(t *testing.T) {
	fs, err := NewS3Storage(config.S3Config{}, logger.NewNop())
	require.NoError(t, err)

	err = fs.PutObject(context.Background(), "archive/VNEST/E1.json", "application/json", []byte("{}"))
	assert.ErrorIs(t, err, ErrStorageDisabled)

	_, err = fs.GeneratePresignedDownloadURL(context.Background(), "archive/VNEST/E1.json", 0)
	assert.ErrorIs(t, err, ErrStorageDisabled)
}

func TestS3Storage_PresignUsesCustomEndpoint(t *testing.T) {
	fs, err := NewS3Storage(config.S3Config{
		Endpoint:        "http://minio.local:9000",
		Region:          "us-east-1",
		AccessKeyID:     "minio",
		SecretAccessKey: "minio123",
		BucketName:      "exercises",
	}, logger.NewNop())
	require.NoError(t, err)

	url, err := fs.GeneratePresignedDownloadURL(context.Background(), "archive/SR/S1.json", 0)
	require.NoError(t, err)
	assert.Contains(t, url, "http://minio.local:9000/exercises/archive/SR/S1.json")
	assert.Contains(t, url, "X-Amz-Signature=")
}
