// SPDX-License-Identifier: MIT

package feed

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
)

// PageCache stores fetched reel pages so re-entering the feed does not
// re-hit the backend. Keys combine viewer and cursor.
type PageCache interface {
	Get(ctx context.Context, viewerID, cursor string) (ReelPage, bool)
	Set(ctx context.Context, viewerID, cursor string, page ReelPage, ttl time.Duration)
	Delete(ctx context.Context, viewerID, cursor string)
}

func pageKey(viewerID, cursor string) string {
	if viewerID == "" {
		viewerID = "anon"
	}
	return "reelfeed:page:" + viewerID + ":" + cursor
}

// memoryPageCache is the zero-dependency fallback.
type memoryPageCache struct {
	mu      sync.RWMutex
	entries map[string]memoryPageEntry
}

type memoryPageEntry struct {
	page       ReelPage
	expiration time.Time
}

// NewMemoryPageCache creates an in-memory page cache.
func NewMemoryPageCache() PageCache {
	return &memoryPageCache{entries: make(map[string]memoryPageEntry)}
}

func (c *memoryPageCache) Get(_ context.Context, viewerID, cursor string) (ReelPage, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	e, ok := c.entries[pageKey(viewerID, cursor)]
	if !ok || time.Now().After(e.expiration) {
		return ReelPage{}, false
	}
	return e.page, true
}

func (c *memoryPageCache) Set(_ context.Context, viewerID, cursor string, page ReelPage, ttl time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries[pageKey(viewerID, cursor)] = memoryPageEntry{
		page:       page,
		expiration: time.Now().Add(ttl),
	}
}

func (c *memoryPageCache) Delete(_ context.Context, viewerID, cursor string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.entries, pageKey(viewerID, cursor))
}

// RedisPageCache is the Redis-backed page cache.
type RedisPageCache struct {
	client *redis.Client
	logger zerolog.Logger
}

// RedisConfig holds Redis connection configuration.
type RedisConfig struct {
	Addr     string
	Password string
	DB       int
}

// NewRedisPageCache connects to Redis and verifies the connection.
func NewRedisPageCache(cfg RedisConfig, logger zerolog.Logger) (*RedisPageCache, error) {
	client := redis.NewClient(&redis.Options{
		Addr:         cfg.Addr,
		Password:     cfg.Password,
		DB:           cfg.DB,
		DialTimeout:  5 * time.Second,
		ReadTimeout:  3 * time.Second,
		WriteTimeout: 3 * time.Second,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, err
	}

	logger.Info().Str("addr", cfg.Addr).Int("db", cfg.DB).Msg("connected to redis page cache")
	return &RedisPageCache{client: client, logger: logger}, nil
}

func (c *RedisPageCache) Get(ctx context.Context, viewerID, cursor string) (ReelPage, bool) {
	val, err := c.client.Get(ctx, pageKey(viewerID, cursor)).Bytes()
	if err == redis.Nil {
		return ReelPage{}, false
	}
	if err != nil {
		c.logger.Warn().Err(err).Msg("redis get failed")
		return ReelPage{}, false
	}

	var page ReelPage
	if err := json.Unmarshal(val, &page); err != nil {
		c.logger.Warn().Err(err).Msg("cached page unmarshal failed")
		return ReelPage{}, false
	}
	return page, true
}

func (c *RedisPageCache) Set(ctx context.Context, viewerID, cursor string, page ReelPage, ttl time.Duration) {
	data, err := json.Marshal(page)
	if err != nil {
		c.logger.Warn().Err(err).Msg("page marshal failed")
		return
	}
	if err := c.client.Set(ctx, pageKey(viewerID, cursor), data, ttl).Err(); err != nil {
		c.logger.Warn().Err(err).Msg("redis set failed")
	}
}

func (c *RedisPageCache) Delete(ctx context.Context, viewerID, cursor string) {
	if err := c.client.Del(ctx, pageKey(viewerID, cursor)).Err(); err != nil {
		c.logger.Warn().Err(err).Msg("redis delete failed")
	}
}

// Close closes the Redis connection.
func (c *RedisPageCache) Close() error {
	return c.client.Close()
}

var _ PageCache = (*RedisPageCache)(nil)
