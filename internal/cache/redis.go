package cache

import (
	"context"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/tgdrive/paperlink/internal/config"
)

func NewRedisClient(ctx context.Context, conf *config.CacheConfig) (*redis.Client, error) {
	client := redis.NewClient(&redis.Options{
		Addr:            conf.RedisAddr,
		Password:        conf.RedisPass,
		DialTimeout:     5 * time.Second,
		ReadTimeout:     3 * time.Second,
		WriteTimeout:    3 * time.Second,
		PoolSize:        10,
		MinIdleConns:    2,
		ConnMaxIdleTime: 5 * time.Minute,
	})

	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, err
	}
	return client, nil
}
