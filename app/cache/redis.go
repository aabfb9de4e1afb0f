package cache

import (
	"context"
	"crypto/sha256"
	"fmt"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"
)

// Cache stores rendered channel feeds in Redis
type Cache struct {
	client *redis.Client
}

// NewCache connects to Redis at addr
func NewCache(ctx context.Context, addr string) (*Cache, error) {
	client := redis.NewClient(&redis.Options{
		Addr:         addr,
		DialTimeout:  5 * time.Second,
		ReadTimeout:  3 * time.Second,
		WriteTimeout: 3 * time.Second,
		PoolSize:     10,
		MinIdleConns: 2,
	})

	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}

	slog.Info("Connected to Redis", "addr", addr)

	return &Cache{client: client}, nil
}

// FeedKey generates a consistent cache key for a channel name
func FeedKey(channelName string) string {
	hash := sha256.Sum256([]byte(channelName))
	return fmt.Sprintf("feed:%x", hash[:8])
}

// GetFeed returns the cached rendering of a channel and whether it was found
func (c *Cache) GetFeed(ctx context.Context, channelName string) (string, bool, error) {
	key := FeedKey(channelName)

	val, err := c.client.Get(ctx, key).Result()
	if err == redis.Nil {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("failed to get key %s: %w", key, err)
	}

	return val, true, nil
}

func (c *Cache) SetFeed(ctx context.Context, channelName, rss string, ttl time.Duration) error {
	key := FeedKey(channelName)

	if err := c.client.Set(ctx, key, rss, ttl).Err(); err != nil {
		return fmt.Errorf("failed to set key %s: %w", key, err)
	}

	return nil
}

// InvalidateFeed drops the cached rendering after the channel's items change
func (c *Cache) InvalidateFeed(ctx context.Context, channelName string) error {
	key := FeedKey(channelName)

	if err := c.client.Del(ctx, key).Err(); err != nil {
		return fmt.Errorf("failed to delete key %s: %w", key, err)
	}

	return nil
}

// Health reports the connection state for the health endpoint
func (c *Cache) Health(ctx context.Context) map[string]interface{} {
	health := map[string]interface{}{
		"status": "healthy",
	}

	if err := c.client.Ping(ctx).Err(); err != nil {
		health["status"] = "unhealthy"
		health["error"] = err.Error()
		return health
	}

	stats := c.client.PoolStats()
	health["total_conns"] = stats.TotalConns
	health["idle_conns"] = stats.IdleConns

	return health
}

func (c *Cache) Close() error {
	return c.client.Close()
}
