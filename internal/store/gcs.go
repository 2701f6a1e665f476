package store

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"cloud.google.com/go/storage"
	"github.com/dvloznov/bill-tracker/internal/domain"
	"github.com/dvloznov/bill-tracker/internal/logger"
)

// BlobStorage reads and writes whole objects. It enables mocking the
// bucket in tests.
type BlobStorage interface {
	// ReadObject returns the object bytes, or ErrNotFound.
	ReadObject(ctx context.Context, bucketName, objectName string) ([]byte, error)
	// WriteObject replaces the object with data.
	WriteObject(ctx context.Context, bucketName, objectName string, data []byte) error
}

// GCSStorage is the BlobStorage backed by Google Cloud Storage.
// It assumes Application Default Credentials are configured.
type GCSStorage struct{}

// NewGCSStorage creates a new GCSStorage.
func NewGCSStorage() *GCSStorage {
	return &GCSStorage{}
}

func (s *GCSStorage) ReadObject(ctx context.Context, bucketName, objectName string) ([]byte, error) {
	client, err := storage.NewClient(ctx)
	if err != nil {
		return nil, fmt.Errorf("create storage client: %w", err)
	}
	defer client.Close()

	r, err := client.Bucket(bucketName).Object(objectName).NewReader(ctx)
	if errors.Is(err, storage.ErrObjectNotExist) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("open GCS object reader: %w", err)
	}
	defer r.Close()

	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("read GCS object: %w", err)
	}
	return data, nil
}

func (s *GCSStorage) WriteObject(ctx context.Context, bucketName, objectName string, data []byte) error {
	client, err := storage.NewClient(ctx)
	if err != nil {
		return fmt.Errorf("create storage client: %w", err)
	}
	defer client.Close()

	ctx, cancel := context.WithTimeout(ctx, 2*time.Minute)
	defer cancel()

	w := client.Bucket(bucketName).Object(objectName).NewWriter(ctx)
	w.ContentType = "application/json"

	if _, err := w.Write(data); err != nil {
		_ = w.Close()
		return fmt.Errorf("write GCS object: %w", err)
	}
	// Close finalizes the upload
	if err := w.Close(); err != nil {
		return fmt.Errorf("finalize upload: %w", err)
	}
	return nil
}

// GCSStore keeps the document as a single JSON object in a bucket.
type GCSStore struct {
	blobs    BlobStorage
	bucket   string
	object   string
	userName string
}

// NewGCSStore creates a GCSStore for gs://bucket/object.
func NewGCSStore(blobs BlobStorage, bucket, object, userName string) *GCSStore {
	return &GCSStore{blobs: blobs, bucket: bucket, object: object, userName: userName}
}

// URI returns the gs:// location of the document.
func (s *GCSStore) URI() string {
	return fmt.Sprintf("gs://%s/%s", s.bucket, s.object)
}

func (s *GCSStore) Load(ctx context.Context) (*domain.Document, error) {
	data, err := s.blobs.ReadObject(ctx, s.bucket, s.object)
	if errors.Is(err, ErrNotFound) {
		log := logger.FromContext(ctx)
		log.Debug().Str("uri", s.URI()).Msg("No bills document yet, starting fresh")
		return domain.NewDocument(s.userName), nil
	}
	if err != nil {
		return nil, fmt.Errorf("GCSStore.Load: %s: %w", s.URI(), err)
	}

	doc, err := decodeDocument(data, s.userName)
	if err != nil {
		return nil, fmt.Errorf("GCSStore.Load: %s: %w", s.URI(), err)
	}
	return doc, nil
}

func (s *GCSStore) Save(ctx context.Context, doc *domain.Document) error {
	data, err := encodeDocument(doc)
	if err != nil {
		return fmt.Errorf("GCSStore.Save: %w", err)
	}
	if err := s.blobs.WriteObject(ctx, s.bucket, s.object, data); err != nil {
		return fmt.Errorf("GCSStore.Save: %s: %w", s.URI(), err)
	}
	return nil
}

// ParseGCSURI splits gs://bucket/path/to/object into bucket and object.
func ParseGCSURI(uri string) (bucket, object string, err error) {
	if !strings.HasPrefix(uri, "gs://") {
		return "", "", fmt.Errorf("invalid GCS URI: %s", uri)
	}

	trimmed := strings.TrimPrefix(uri, "gs://")
	parts := strings.SplitN(trimmed, "/", 2)
	if len(parts) != 2 || parts[0] == "" || parts[1] == "" {
		return "", "", fmt.Errorf("invalid GCS URI (no object path): %s", uri)
	}
	return parts[0], parts[1], nil
}
