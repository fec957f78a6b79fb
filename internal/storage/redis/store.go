// Package redis persists documents as Redis string values.
package redis

import (
	"context"
	"errors"
	"fmt"
	"time"

	goredis "github.com/redis/go-redis/v9"

	"github.com/JakeFAU/docs-discovery-console/internal/storage"
)

const connectionTimeout = 5 * time.Second

// ErrEmptyAddress is returned when no Redis address is configured.
var ErrEmptyAddress = errors.New("redis address is required")

// Config holds connection and keying options.
type Config struct {
	Address   string
	Password  string
	DB        int
	KeyPrefix string
	// TTL expires documents after the given duration; zero keeps them.
	TTL time.Duration
}

// Store reads and writes documents with GET/SET.
type Store struct {
	client *goredis.Client
	prefix string
	ttl    time.Duration
}

// New dials Redis and verifies the connection with PING.
func New(ctx context.Context, cfg Config) (*Store, error) {
	if cfg.Address == "" {
		return nil, ErrEmptyAddress
	}
	client := goredis.NewClient(&goredis.Options{
		Addr:     cfg.Address,
		Password: cfg.Password,
		DB:       cfg.DB,
	})
	pingCtx, cancel := context.WithTimeout(ctx, connectionTimeout)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("redis ping failed: %w", err)
	}
	return NewWithClient(client, cfg), nil
}

// NewWithClient wraps an existing client.
func NewWithClient(client *goredis.Client, cfg Config) *Store {
	return &Store{client: client, prefix: cfg.KeyPrefix, ttl: cfg.TTL}
}

// Save sets key to content.
func (s *Store) Save(ctx context.Context, key, content string) error {
	if err := storage.ValidateKey(key); err != nil {
		return err
	}
	if err := s.client.Set(ctx, s.prefix+key, content, s.ttl).Err(); err != nil {
		return fmt.Errorf("redis set: %w", err)
	}
	return nil
}

// Load gets the value under key.
func (s *Store) Load(ctx context.Context, key string) (string, error) {
	if err := storage.ValidateKey(key); err != nil {
		return "", err
	}
	content, err := s.client.Get(ctx, s.prefix+key).Result()
	if errors.Is(err, goredis.Nil) {
		return "", storage.ErrNotFound
	}
	if err != nil {
		return "", fmt.Errorf("redis get: %w", err)
	}
	return content, nil
}

// Close closes the client.
func (s *Store) Close() error {
	return s.client.Close()
}
