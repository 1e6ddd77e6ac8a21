package storage

import (
	"context"
	"encoding/json"
	"time"

	"github.com/redis/go-redis/v9"

	"simcha-api/domain"
)

type catalogBackend interface {
	ListDefaultTasks(ctx context.Context, eventType string) ([]domain.DefaultTaskTemplate, error)
	ListEventTypes(ctx context.Context) ([]string, error)
}

// CatalogCache wraps a Storage instance with Redis-backed caching for the
// default-task catalog. Catalog entries are immutable, so there is no
// eviction; stale keys simply expire.
type CatalogCache struct {
	*Storage
	base  catalogBackend
	redis *redis.Client
	ttl   time.Duration
}

// NewCatalogCache creates a caching wrapper using the provided Redis client
// and TTL.
func NewCatalogCache(base catalogBackend, client *redis.Client, ttl time.Duration) *CatalogCache {
	if base == nil {
		panic("storage.NewCatalogCache: base storage is nil")
	}
	if ttl < 0 {
		ttl = 0
	}
	c := &CatalogCache{base: base, redis: client, ttl: ttl}
	if s, ok := base.(*Storage); ok {
		c.Storage = s
	}
	return c
}

func (c *CatalogCache) ListDefaultTasks(ctx context.Context, eventType string) ([]domain.DefaultTaskTemplate, error) {
	key := defaultTasksCacheKey(eventType)
	if data, ok := c.load(ctx, key); ok {
		var templates []domain.DefaultTaskTemplate
		if err := json.Unmarshal(data, &templates); err == nil {
			return templates, nil
		}
		_ = c.redis.Del(ctx, key).Err()
	}

	templates, err := c.base.ListDefaultTasks(ctx, eventType)
	if err != nil {
		return nil, err
	}
	c.store(ctx, key, templates)
	return templates, nil
}

func (c *CatalogCache) ListEventTypes(ctx context.Context) ([]string, error) {
	key := eventTypesCacheKey()
	if data, ok := c.load(ctx, key); ok {
		var types []string
		if err := json.Unmarshal(data, &types); err == nil {
			return types, nil
		}
		_ = c.redis.Del(ctx, key).Err()
	}

	types, err := c.base.ListEventTypes(ctx)
	if err != nil {
		return nil, err
	}
	c.store(ctx, key, types)
	return types, nil
}

func (c *CatalogCache) load(ctx context.Context, key string) ([]byte, bool) {
	if c.redis == nil {
		return nil, false
	}
	data, err := c.redis.Get(ctx, key).Bytes()
	if err != nil {
		if err != redis.Nil {
			// On redis errors fall back to the backing storage without failing.
			_ = c.redis.Del(ctx, key).Err()
		}
		return nil, false
	}
	return data, true
}

func (c *CatalogCache) store(ctx context.Context, key string, value any) {
	if c.redis == nil || c.ttl == 0 {
		return
	}
	data, err := json.Marshal(value)
	if err != nil {
		return
	}
	_ = c.redis.Set(ctx, key, data, c.ttl).Err()
}

func defaultTasksCacheKey(eventType string) string {
	return "defaultTasks:" + eventType
}

func eventTypesCacheKey() string {
	return "eventTypes"
}
