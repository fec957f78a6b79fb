// Package storage defines where aggregated crawl documents are persisted.
// Providers live in subpackages: memory, local, gcs, postgres and redis.
package storage

import (
	"context"
	"errors"
	"fmt"
	"path"
	"strings"
)

// ErrNotFound is returned by Load when no document exists under a key.
var ErrNotFound = errors.New("document not found")

// Store persists markdown documents by key.
type Store interface {
	// Save writes content under key, replacing any previous value.
	Save(ctx context.Context, key, content string) error
	// Load returns the content stored under key or ErrNotFound.
	Load(ctx context.Context, key string) (string, error)
}

// DocumentKey returns the object key for a run's aggregated document.
func DocumentKey(prefix, runID string) (string, error) {
	runID = strings.TrimSpace(runID)
	if runID == "" {
		return "", errors.New("run id is required")
	}
	if strings.ContainsAny(runID, `/\`) || runID == "." || runID == ".." {
		return "", fmt.Errorf("invalid run id %q", runID)
	}
	prefix = strings.Trim(strings.TrimSpace(prefix), "/")
	if prefix == "" {
		return runID + ".md", nil
	}
	return path.Join(prefix, runID+".md"), nil
}

// ValidateKey rejects empty keys.
func ValidateKey(key string) error {
	if strings.TrimSpace(key) == "" {
		return errors.New("key is required")
	}
	return nil
}
