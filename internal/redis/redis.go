package redis

import (
	"context"
	"errors"
	"fmt"
	"time"

	"docsummarizer/internal/config"
	"docsummarizer/internal/objectstore"

	redis "github.com/redis/go-redis/v9"
)

const scanBatch = 500

// Client wraps go-redis client to centralize configuration.
type Client struct {
	inner *redis.Client
}

// NewRedisClient creates the redis client from app config and checks that the
// server answers.
func NewRedisClient(ctx context.Context, cfg config.RedisConfig) (*Client, error) {
	host := cfg.Host
	if host == "" {
		host = "127.0.0.1"
	}
	port := cfg.Port
	if port == 0 {
		port = 6379
	}

	opts := &redis.Options{
		Addr:     fmt.Sprintf("%s:%d", host, port),
		Username: cfg.Username,
		Password: cfg.Password,
		DB:       cfg.DB,
	}

	client := redis.NewClient(opts)
	pingCtx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("ping redis: %w", err)
	}
	return &Client{inner: client}, nil
}

// Close closes client.
func (c *Client) Close() error {
	if c == nil || c.inner == nil {
		return nil
	}
	return c.inner.Close()
}

// Backend stores each document as a plain string value under prefix+key.
// Content types are not kept; the pipeline relies on the declared type.
type Backend struct {
	client *Client
	prefix string
}

func NewBackend(client *Client, prefix string) *Backend {
	return &Backend{client: client, prefix: prefix}
}

func (b *Backend) ListKeys(ctx context.Context) ([]string, error) {
	if b.client == nil || b.client.inner == nil {
		return nil, errors.New("redis client not initialized")
	}

	var (
		keys   []string
		cursor uint64
	)
	for {
		batch, next, err := b.client.inner.Scan(ctx, cursor, b.prefix+"*", scanBatch).Result()
		if err != nil {
			return nil, fmt.Errorf("scan keys: %w", err)
		}
		for _, k := range batch {
			keys = append(keys, k[len(b.prefix):])
		}
		cursor = next
		if cursor == 0 {
			return keys, nil
		}
	}
}

func (b *Backend) Put(ctx context.Context, key string, data []byte, contentType string) error {
	if b.client == nil || b.client.inner == nil {
		return errors.New("redis client not initialized")
	}
	if key == "" {
		return objectstore.ErrInvalidKey
	}
	return b.client.inner.Set(ctx, b.prefix+key, data, 0).Err()
}

func (b *Backend) Get(ctx context.Context, key string) ([]byte, error) {
	if b.client == nil || b.client.inner == nil {
		return nil, errors.New("redis client not initialized")
	}
	data, err := b.client.inner.Get(ctx, b.prefix+key).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, fmt.Errorf("get %s: %w", key, objectstore.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("get %s: %w", key, err)
	}
	return data, nil
}
