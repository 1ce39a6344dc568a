package cache

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/coocood/freecache"
	"github.com/redis/go-redis/v9"
	"github.com/tgdrive/paperlink/internal/config"
	"github.com/vmihailenco/msgpack/v5"
	"golang.org/x/sync/singleflight"
)

const keyPrefix = "paperlink:"

var ErrMiss = errors.New("cache miss")

type Cacher interface {
	Get(ctx context.Context, key string, value interface{}) error
	Set(ctx context.Context, key string, value interface{}, expiration time.Duration) error
	Delete(ctx context.Context, keys ...string) error
}

// NewCache picks redis when an address is configured and freecache otherwise.
func NewCache(ctx context.Context, conf *config.CacheConfig) (Cacher, error) {
	if conf.RedisAddr == "" {
		return NewMemoryCache(conf.MaxSize), nil
	}
	client, err := NewRedisClient(ctx, conf)
	if err != nil {
		return nil, err
	}
	return NewRedisCache(client), nil
}

type MemoryCache struct {
	cache *freecache.Cache
}

func NewMemoryCache(size int) *MemoryCache {
	return &MemoryCache{cache: freecache.NewCache(size)}
}

func (m *MemoryCache) Get(_ context.Context, key string, value interface{}) error {
	data, err := m.cache.Get([]byte(keyPrefix + key))
	if err != nil {
		if errors.Is(err, freecache.ErrNotFound) {
			return ErrMiss
		}
		return err
	}
	return msgpack.Unmarshal(data, value)
}

func (m *MemoryCache) Set(_ context.Context, key string, value interface{}, expiration time.Duration) error {
	data, err := msgpack.Marshal(value)
	if err != nil {
		return err
	}
	return m.cache.Set([]byte(keyPrefix+key), data, int(expiration.Seconds()))
}

func (m *MemoryCache) Delete(_ context.Context, keys ...string) error {
	for _, key := range keys {
		m.cache.Del([]byte(keyPrefix + key))
	}
	return nil
}

type RedisCache struct {
	client *redis.Client
}

func NewRedisCache(client *redis.Client) *RedisCache {
	return &RedisCache{client: client}
}

func (r *RedisCache) Get(ctx context.Context, key string, value interface{}) error {
	data, err := r.client.Get(ctx, keyPrefix+key).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return ErrMiss
		}
		return err
	}
	return msgpack.Unmarshal(data, value)
}

func (r *RedisCache) Set(ctx context.Context, key string, value interface{}, expiration time.Duration) error {
	data, err := msgpack.Marshal(value)
	if err != nil {
		return err
	}
	return r.client.Set(ctx, keyPrefix+key, data, expiration).Err()
}

func (r *RedisCache) Delete(ctx context.Context, keys ...string) error {
	prefixed := make([]string, len(keys))
	for i := range keys {
		prefixed[i] = keyPrefix + keys[i]
	}
	return r.client.Del(ctx, prefixed...).Err()
}

var group singleflight.Group

// Fetch returns the cached value for key or computes it with fn. Concurrent
// misses on the same key share one fn call. Cache write failures are ignored.
func Fetch[T any](ctx context.Context, c Cacher, key string, expiration time.Duration, fn func() (T, error)) (T, error) {
	var value T
	err := c.Get(ctx, key, &value)
	if err == nil {
		return value, nil
	}
	if !errors.Is(err, ErrMiss) {
		return value, err
	}

	v, err, _ := group.Do(key, func() (interface{}, error) {
		res, err := fn()
		if err != nil {
			return res, err
		}
		_ = c.Set(ctx, key, res, expiration)
		return res, nil
	})
	if err != nil {
		var zero T
		return zero, err
	}
	res, _ := v.(T)
	return res, nil
}

func Key(args ...interface{}) string {
	parts := make([]string, len(args))
	for i, arg := range args {
		parts[i] = fmt.Sprintf("%v", arg)
	}
	return strings.Join(parts, ":")
}
