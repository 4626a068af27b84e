package cache

import (
	"context"
	"crypto/sha256"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"
)

// DefaultTTL bounds how stale a cached public response can get. Writes do
// not invalidate list caches; they simply age out.
const DefaultTTL = 30 * time.Second

// Cache wraps a Redis client for caching rendered API responses. The
// application runs fine without it: a nil *Cache is a no-op on all
// methods.
type Cache struct {
	client *redis.Client
	ctx    context.Context
}

func NewCache(addr string) (*Cache, error) {
	client := redis.NewClient(&redis.Options{
		Addr:         addr,
		DialTimeout:  5 * time.Second,
		ReadTimeout:  3 * time.Second,
		WriteTimeout: 3 * time.Second,
		PoolSize:     10,
		MinIdleConns: 5,
	})

	ctx := context.Background()

	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}

	slog.Info("Connected to Redis", "addr", addr)

	return &Cache{
		client: client,
		ctx:    ctx,
	}, nil
}

// Get retrieves a cached payload. A miss returns nil with no error.
func (c *Cache) Get(key string) ([]byte, error) {
	if c == nil {
		return nil, nil
	}

	val, err := c.client.Get(c.ctx, key).Bytes()
	if err == redis.Nil {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get key %s: %w", key, err)
	}
	return val, nil
}

// Set stores a payload with a TTL. Non-byte values are JSON-encoded.
func (c *Cache) Set(key string, value interface{}, ttl time.Duration) error {
	if c == nil {
		return nil
	}

	var data []byte
	var err error

	switch v := value.(type) {
	case []byte:
		data = v
	case string:
		data = []byte(v)
	default:
		data, err = json.Marshal(value)
		if err != nil {
			return fmt.Errorf("failed to marshal value for key %s: %w", key, err)
		}
	}

	if err := c.client.Set(c.ctx, key, data, ttl).Err(); err != nil {
		return fmt.Errorf("failed to set key %s: %w", key, err)
	}
	return nil
}

func (c *Cache) Delete(key string) error {
	if c == nil {
		return nil
	}

	if err := c.client.Del(c.ctx, key).Err(); err != nil {
		return fmt.Errorf("failed to delete key %s: %w", key, err)
	}
	return nil
}

// NewsListKey builds a cache key from the raw query string of a news
// listing request.
func NewsListKey(rawQuery string) string {
	hash := sha256.Sum256([]byte(rawQuery))
	return fmt.Sprintf("news:list:%x", hash[:8])
}

func NewsItemKey(id string) string {
	return fmt.Sprintf("news:item:%s", id)
}

func StatsKey() string {
	return "stats:site"
}

func (c *Cache) Close() error {
	if c == nil {
		return nil
	}
	return c.client.Close()
}

// Health reports connectivity for the health endpoint.
func (c *Cache) Health() map[string]interface{} {
	if c == nil {
		return map[string]interface{}{"status": "disabled", "type": "redis"}
	}

	health := map[string]interface{}{
		"status": "healthy",
		"type":   "redis",
	}

	if err := c.client.Ping(c.ctx).Err(); err != nil {
		health["status"] = "unhealthy"
		health["error"] = err.Error()
	}

	return health
}
