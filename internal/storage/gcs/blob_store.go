// Package gcs persists documents as objects in a Google Cloud Storage bucket.
package gcs

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	gcstorage "cloud.google.com/go/storage"

	"github.com/JakeFAU/docs-discovery-console/internal/storage"
)

const contentType = "text/markdown; charset=utf-8"

// Config captures the parameters required to reach the bucket.
type Config struct {
	Bucket string
}

// Store reads and writes documents in a configured bucket.
type Store struct {
	client *gcstorage.Client
	bucket string
}

// New creates a GCS-backed store.
func New(client *gcstorage.Client, cfg Config) (*Store, error) {
	if client == nil {
		return nil, fmt.Errorf("storage client is required")
	}
	if strings.TrimSpace(cfg.Bucket) == "" {
		return nil, fmt.Errorf("bucket name is required")
	}
	return &Store{client: client, bucket: cfg.Bucket}, nil
}

// Save uploads content, replacing any existing object under key.
func (s *Store) Save(ctx context.Context, key, content string) error {
	if err := storage.ValidateKey(key); err != nil {
		return err
	}
	writer := s.client.Bucket(s.bucket).Object(key).NewWriter(ctx)
	writer.ContentType = contentType
	if _, err := io.Copy(writer, strings.NewReader(content)); err != nil {
		if closeErr := writer.Close(); closeErr != nil {
			return fmt.Errorf("copy object: %w (close writer: %v)", err, closeErr)
		}
		return fmt.Errorf("copy object: %w", err)
	}
	if err := writer.Close(); err != nil {
		return fmt.Errorf("close writer: %w", err)
	}
	return nil
}

// Load downloads the object under key.
func (s *Store) Load(ctx context.Context, key string) (string, error) {
	if err := storage.ValidateKey(key); err != nil {
		return "", err
	}
	reader, err := s.client.Bucket(s.bucket).Object(key).NewReader(ctx)
	if errors.Is(err, gcstorage.ErrObjectNotExist) {
		return "", storage.ErrNotFound
	}
	if err != nil {
		return "", fmt.Errorf("open object: %w", err)
	}
	defer func() { _ = reader.Close() }()
	data, err := io.ReadAll(reader)
	if err != nil {
		return "", fmt.Errorf("read object: %w", err)
	}
	return string(data), nil
}

// URI returns the gs:// location of key.
func (s *Store) URI(key string) string {
	return fmt.Sprintf("gs://%s/%s", s.bucket, key)
}
