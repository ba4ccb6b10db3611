package redis

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	backend "github.com/redis/go-redis/v9"

	"github.com/vizpipe/vizpipe/pkg/ast"
)

// Cache implements ports.ExpressionCache on Redis. Values are the JSON wire
// form of the composed tree.
type Cache struct {
	client *backend.Client
	prefix string
	ttl    time.Duration
}

type Option func(*Cache)

// WithTTL sets the expiration for cached expressions.
func WithTTL(ttl time.Duration) Option {
	return func(c *Cache) {
		c.ttl = ttl
	}
}

// WithPrefix sets the key prefix.
func WithPrefix(prefix string) Option {
	return func(c *Cache) {
		c.prefix = prefix
	}
}

// New creates a cache with its own client.
func New(address, password string, db int, opts ...Option) *Cache {
	client := backend.NewClient(&backend.Options{
		Addr:     address,
		Password: password,
		DB:       db,
	})
	return NewFromClient(client, opts...)
}

// NewFromClient creates a cache on an existing client.
func NewFromClient(client *backend.Client, opts ...Option) *Cache {
	cache := &Cache{
		client: client,
		prefix: "vizpipe:expression:",
		ttl:    0, // no expiration by default
	}
	for _, opt := range opts {
		opt(cache)
	}
	return cache
}

func (c *Cache) key(fingerprint string) string {
	return c.prefix + fingerprint
}

// Get returns the cached tree for the fingerprint, or (nil, nil) on a miss.
func (c *Cache) Get(ctx context.Context, fingerprint string) (*ast.Expression, error) {
	val, err := c.client.Get(ctx, c.key(fingerprint)).Result()
	if err != nil {
		if err == backend.Nil {
			return nil, nil
		}
		return nil, fmt.Errorf("cache get: %w", err)
	}

	var expr ast.Expression
	if err := json.Unmarshal([]byte(val), &expr); err != nil {
		return nil, fmt.Errorf("cache decode: %w", err)
	}
	return &expr, nil
}

// Put stores the tree under the fingerprint, honoring the configured TTL.
func (c *Cache) Put(ctx context.Context, fingerprint string, expr *ast.Expression) error {
	data, err := json.Marshal(expr)
	if err != nil {
		return fmt.Errorf("cache encode: %w", err)
	}
	if err := c.client.Set(ctx, c.key(fingerprint), data, c.ttl).Err(); err != nil {
		return fmt.Errorf("cache put: %w", err)
	}
	return nil
}

// Close closes the underlying client.
func (c *Cache) Close() error {
	return c.client.Close()
}
