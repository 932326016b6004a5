package businessflow

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/amirphl/tally/app/dto"
	"github.com/amirphl/tally/config"
	"github.com/amirphl/tally/utils"
	"github.com/patrickmn/go-cache"
	"github.com/redis/go-redis/v9"
)

// CounterCache keeps a short-lived copy of the counter in front of the store.
// The store stays authoritative: a miss or an error always falls back to it.
type CounterCache interface {
	// Get returns the cached counter, or nil on a miss.
	Get(ctx context.Context) (*dto.CounterDTO, error)
	// Set stores counter unless the cached copy already holds a higher count.
	// Counts only grow, so a late write from a slow reader cannot roll the cache back.
	Set(ctx context.Context, counter *dto.CounterDTO) error
	Invalidate(ctx context.Context) error
}

// NewCounterCache picks the cache backend configured in cfg.
// A disabled cache, or redis without a client, yields a no-op cache.
func NewCounterCache(cfg config.CacheConfig, rc *redis.Client) CounterCache {
	if !cfg.Enabled {
		return NoopCounterCache{}
	}
	switch cfg.Provider {
	case "redis":
		if rc == nil {
			log.Println("Counter cache: redis provider configured without a client, caching disabled")
			return NoopCounterCache{}
		}
		return NewRedisCounterCache(rc, redisKey(cfg, utils.CounterCacheKey), cfg.DefaultTTL)
	case "memory":
		return NewMemoryCounterCache(cfg.DefaultTTL, cfg.CleanupInterval)
	default:
		return NoopCounterCache{}
	}
}

func redisKey(cfg config.CacheConfig, key string) string {
	return cfg.RedisPrefix + key
}

// NoopCounterCache never stores anything
type NoopCounterCache struct{}

func (NoopCounterCache) Get(context.Context) (*dto.CounterDTO, error) { return nil, nil }
func (NoopCounterCache) Set(context.Context, *dto.CounterDTO) error { return nil }
func (NoopCounterCache) Invalidate(context.Context) error { return nil }

// setIfNotLower writes ARGV[1] unless the stored JSON value has a count above ARGV[2].
// ARGV[3] is the TTL in milliseconds; 0 keeps the key without expiry.
var setIfNotLower = redis.NewScript(`
local cur = redis.call('GET', KEYS[1])
if cur then
	local ok, obj = pcall(cjson.decode, cur)
	if ok and type(obj) == 'table' and tonumber(obj.count) and tonumber(obj.count) > tonumber(ARGV[2]) then
		return 0
	end
end
if tonumber(ARGV[3]) > 0 then
	redis.call('SET', KEYS[1], ARGV[1], 'PX', ARGV[3])
else
	redis.call('SET', KEYS[1], ARGV[1])
end
return 1
`)

// RedisCounterCache stores the counter as JSON under a single key.
// Every replica shares the key, so it is safe behind a load balancer.
type RedisCounterCache struct {
	rc  *redis.Client
	key string
	ttl time.Duration
}

func NewRedisCounterCache(rc *redis.Client, key string, ttl time.Duration) *RedisCounterCache {
	return &RedisCounterCache{rc: rc, key: key, ttl: ttl}
}

func (c *RedisCounterCache) Get(ctx context.Context) (*dto.CounterDTO, error) {
	bs, err := c.rc.Get(ctx, c.key).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("redis get %s: %w", c.key, err)
	}
	var out dto.CounterDTO
	if err := json.Unmarshal(bs, &out); err != nil {
		return nil, fmt.Errorf("decode cached counter: %w", err)
	}
	return &out, nil
}

func (c *RedisCounterCache) Set(ctx context.Context, counter *dto.CounterDTO) error {
	if counter == nil {
		return nil
	}
	bs, err := json.Marshal(counter)
	if err != nil {
		return fmt.Errorf("encode counter: %w", err)
	}
	if err := setIfNotLower.Run(ctx, c.rc, []string{c.key}, bs, counter.Count, c.ttl.Milliseconds()).Err(); err != nil {
		return fmt.Errorf("redis set %s: %w", c.key, err)
	}
	return nil
}

func (c *RedisCounterCache) Invalidate(ctx context.Context) error {
	if err := c.rc.Del(ctx, c.key).Err(); err != nil {
		return fmt.Errorf("redis del %s: %w", c.key, err)
	}
	return nil
}

// MemoryCounterCache keeps the counter in process memory. Increments made by
// other processes are not seen until the entry expires, so it suits a single
// instance only; deployments with several replicas should use redis.
type MemoryCounterCache struct {
	mu    sync.Mutex
	store *cache.Cache
}

const memoryCounterKey = "counter"

func NewMemoryCounterCache(ttl, cleanupInterval time.Duration) *MemoryCounterCache {
	return &MemoryCounterCache{store: cache.New(ttl, cleanupInterval)}
}

func (c *MemoryCounterCache) Get(context.Context) (*dto.CounterDTO, error) {
	v, ok := c.store.Get(memoryCounterKey)
	if !ok {
		return nil, nil
	}
	counter, ok := v.(dto.CounterDTO)
	if !ok {
		return nil, fmt.Errorf("unexpected cached value %T", v)
	}
	return &counter, nil
}

func (c *MemoryCounterCache) Set(_ context.Context, counter *dto.CounterDTO) error {
	if counter == nil {
		return nil
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if v, ok := c.store.Get(memoryCounterKey); ok {
		if cached, ok := v.(dto.CounterDTO); ok && cached.Count > counter.Count {
			return nil
		}
	}
	c.store.Set(memoryCounterKey, *counter, cache.DefaultExpiration)
	return nil
}

func (c *MemoryCounterCache) Invalidate(context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.store.Delete(memoryCounterKey)
	return nil
}
