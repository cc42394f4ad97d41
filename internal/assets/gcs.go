package assets

import (
	"context"
	"fmt"
	"path"
	"strings"

	"cloud.google.com/go/storage"
	"github.com/google/uuid"
)

// AssetStore persists raw receipt uploads and hands back a stable reference
// that the extractor and the stored record can both point at.
type AssetStore interface {
	// PutAsset writes the bytes under a fresh object name and returns its
	// gs:// URI. A failed upload is a hard failure.
	PutAsset(ctx context.Context, data []byte, contentType, filename string) (string, error)
}

// GCSAssetStore stores receipt assets in a Google Cloud Storage bucket under
// receipts/. Assumes Application Default Credentials.
type GCSAssetStore struct {
	client *storage.Client
	bucket string
}

// NewGCSAssetStore wraps an existing storage client.
func NewGCSAssetStore(client *storage.Client, bucket string) *GCSAssetStore {
	return &GCSAssetStore{client: client, bucket: bucket}
}

// PutAsset implements AssetStore.
func (s *GCSAssetStore) PutAsset(ctx context.Context, data []byte, contentType, filename string) (string, error) {
	objectName := fmt.Sprintf("receipts/%s_%s", uuid.NewString(), path.Base(filename))

	w := s.client.Bucket(s.bucket).Object(objectName).NewWriter(ctx)
	w.ContentType = contentType

	if _, err := w.Write(data); err != nil {
		_ = w.Close()
		return "", fmt.Errorf("PutAsset: writing object %s: %w", objectName, err)
	}
	if err := w.Close(); err != nil {
		return "", fmt.Errorf("PutAsset: finalizing upload of %s: %w", objectName, err)
	}

	return ObjectURI(s.bucket, objectName), nil
}

// ObjectURI builds the gs:// URI for a bucket and object name.
func ObjectURI(bucket, objectName string) string {
	return fmt.Sprintf("gs://%s/%s", bucket, objectName)
}

// FilenameFromURI extracts the object filename from a GCS URI.
// e.g. "gs://bucket/receipts/abc_receipt.jpg" -> "abc_receipt.jpg"
func FilenameFromURI(uri string) string {
	trimmed := strings.TrimPrefix(uri, "gs://")
	parts := strings.SplitN(trimmed, "/", 2)
	if len(parts) < 2 {
		return trimmed
	}
	return path.Base(parts[1])
}

var _ AssetStore = (*GCSAssetStore)(nil)
