package budget

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/mrmushfiq/llm-task-router/internal/shared/clock"
	"github.com/mrmushfiq/llm-task-router/internal/shared/models"
	"github.com/mrmushfiq/llm-task-router/internal/shared/redis"
)

// SubscriptionStore is the external persistence returning the tier
// assignment for a subscriber.
type SubscriptionStore interface {
	Lookup(ctx context.Context, subscriberID string) (models.BudgetTier, error)
}

// SubscriptionCache is a read-mostly TTL cache in front of the
// SubscriptionStore. Staleness policy lives here so it can be tested in
// isolation; Invalidate is called on tier change.
type SubscriptionCache interface {
	Get(ctx context.Context, subscriberID string) (models.Subscription, bool)
	Put(ctx context.Context, sub models.Subscription)
	Invalidate(ctx context.Context, subscriberID string)
}

// MemoryCache is an in-process SubscriptionCache with clock-driven TTL.
type MemoryCache struct {
	mu    sync.RWMutex
	ttl   time.Duration
	clock clock.Clock
	subs  map[string]models.Subscription
}

func NewMemoryCache(ttl time.Duration, clk clock.Clock) *MemoryCache {
	return &MemoryCache{
		ttl:   ttl,
		clock: clk,
		subs:  make(map[string]models.Subscription),
	}
}

func (c *MemoryCache) Get(_ context.Context, subscriberID string) (models.Subscription, bool) {
	c.mu.RLock()
	sub, ok := c.subs[subscriberID]
	c.mu.RUnlock()
	if !ok {
		return models.Subscription{}, false
	}
	if c.clock.Now().Sub(sub.RefreshedAt) >= c.ttl {
		return models.Subscription{}, false
	}
	return sub, true
}

func (c *MemoryCache) Put(_ context.Context, sub models.Subscription) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.subs[sub.SubscriberID] = sub
}

func (c *MemoryCache) Invalidate(_ context.Context, subscriberID string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.subs, subscriberID)
}

// RedisCache stores subscriptions in Redis so the TTL survives process
// restarts and is shared across instances.
type RedisCache struct {
	redis *redis.Client
	ttl   time.Duration
}

func NewRedisCache(redisClient *redis.Client, ttl time.Duration) *RedisCache {
	return &RedisCache{redis: redisClient, ttl: ttl}
}

func cacheKey(subscriberID string) string {
	return "subscription:" + subscriberID
}

func (c *RedisCache) Get(ctx context.Context, subscriberID string) (models.Subscription, bool) {
	val, err := c.redis.Get(ctx, cacheKey(subscriberID))
	if err != nil {
		return models.Subscription{}, false
	}
	var sub models.Subscription
	if err := json.Unmarshal([]byte(val), &sub); err != nil {
		return models.Subscription{}, false
	}
	return sub, true
}

func (c *RedisCache) Put(ctx context.Context, sub models.Subscription) {
	data, err := json.Marshal(sub)
	if err != nil {
		return
	}
	_ = c.redis.Set(ctx, cacheKey(sub.SubscriberID), string(data), c.ttl)
}

func (c *RedisCache) Invalidate(ctx context.Context, subscriberID string) {
	_ = c.redis.Del(ctx, cacheKey(subscriberID))
}
