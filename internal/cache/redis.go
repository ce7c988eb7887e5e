// Package cache provides a Redis-backed store for institution name resolutions.
package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	goredis "github.com/redis/go-redis/v9"

	"github.com/helixir/collab-graph-service/internal/catalog"
)

// DefaultKeyPrefix namespaces resolution keys.
const DefaultKeyPrefix = "collabgraph:resolve:"

// RedisConfig holds connection settings for RedisMatchCache.
type RedisConfig struct {
	Addr      string
	Password  string
	DB        int
	KeyPrefix string
	// TTL bounds how long a match is kept; zero keeps it forever.
	TTL time.Duration
}

// RedisMatchCache stores catalog matches keyed by normalized roster name.
type RedisMatchCache struct {
	rdb    goredis.UniversalClient
	prefix string
	ttl    time.Duration
}

// NewRedisMatchCache connects to Redis and verifies the connection with a ping.
func NewRedisMatchCache(ctx context.Context, cfg RedisConfig) (*RedisMatchCache, error) {
	if strings.TrimSpace(cfg.Addr) == "" {
		return nil, fmt.Errorf("redis addr is required")
	}

	rdb := goredis.NewClient(&goredis.Options{
		Addr:        cfg.Addr,
		Password:    cfg.Password,
		DB:          cfg.DB,
		DialTimeout: 5 * time.Second,
	})

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := rdb.Ping(pingCtx).Err(); err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("redis ping: %w", err)
	}

	return NewRedisMatchCacheWithClient(rdb, cfg.KeyPrefix, cfg.TTL), nil
}

// NewRedisMatchCacheWithClient wraps an existing client.
func NewRedisMatchCacheWithClient(rdb goredis.UniversalClient, prefix string, ttl time.Duration) *RedisMatchCache {
	if prefix == "" {
		prefix = DefaultKeyPrefix
	}
	return &RedisMatchCache{rdb: rdb, prefix: prefix, ttl: ttl}
}

// Get returns the cached match for name.
func (c *RedisMatchCache) Get(ctx context.Context, name string) (catalog.InstitutionMatch, bool, error) {
	raw, err := c.rdb.Get(ctx, c.key(name)).Bytes()
	if errors.Is(err, goredis.Nil) {
		return catalog.InstitutionMatch{}, false, nil
	}
	if err != nil {
		return catalog.InstitutionMatch{}, false, fmt.Errorf("redis get: %w", err)
	}

	var match catalog.InstitutionMatch
	if err := json.Unmarshal(raw, &match); err != nil {
		return catalog.InstitutionMatch{}, false, fmt.Errorf("decoding cached match: %w", err)
	}
	return match, true, nil
}

// Set stores match under name.
func (c *RedisMatchCache) Set(ctx context.Context, name string, match catalog.InstitutionMatch) error {
	raw, err := json.Marshal(match)
	if err != nil {
		return fmt.Errorf("encoding match: %w", err)
	}
	if err := c.rdb.Set(ctx, c.key(name), raw, c.ttl).Err(); err != nil {
		return fmt.Errorf("redis set: %w", err)
	}
	return nil
}

// Close releases the underlying client.
func (c *RedisMatchCache) Close() error {
	return c.rdb.Close()
}

func (c *RedisMatchCache) key(name string) string {
	return c.prefix + strings.ToLower(strings.Join(strings.Fields(name), " "))
}
