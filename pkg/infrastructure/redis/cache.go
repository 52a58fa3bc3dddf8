package redis

import (
	"context"
	"crypto/tls"
	"strings"
	"time"

	goredis "github.com/redis/go-redis/v9"
	"github.com/pkg/errors"

	"github.com/Haimaimon/arrival-confirmation-system/pkg/domain/model"
)

const scanBatch = 200

// Cache implements model.Cache on top of Redis.
type Cache struct {
	rdb goredis.UniversalClient
}

// Connect parses a redis:// or rediss:// URL and fails fast when the server is unreachable.
func Connect(ctx context.Context, url string) (*Cache, error) {
	opts, err := goredis.ParseURL(url)
	if err != nil {
		return nil, errors.Wrap(err, "parse redis url")
	}
	opts.DialTimeout = 5 * time.Second
	opts.ReadTimeout = 2 * time.Second
	opts.WriteTimeout = 2 * time.Second
	opts.MaxRetries = 3
	opts.MinRetryBackoff = 100 * time.Millisecond
	opts.MaxRetryBackoff = time.Second
	if opts.TLSConfig == nil && strings.HasPrefix(url, "rediss://") {
		opts.TLSConfig = &tls.Config{MinVersion: tls.VersionTLS12}
	}

	rdb := goredis.NewClient(opts)
	if err := rdb.Ping(ctx).Err(); err != nil {
		_ = rdb.Close()
		return nil, errors.Wrap(err, "redis ping failed")
	}
	return &Cache{rdb: rdb}, nil
}

func NewCache(rdb goredis.UniversalClient) *Cache {
	return &Cache{rdb: rdb}
}

func (c *Cache) Get(ctx context.Context, key string) ([]byte, error) {
	value, err := c.rdb.Get(ctx, key).Bytes()
	if errors.Is(err, goredis.Nil) {
		return nil, model.ErrCacheMiss
	}
	if err != nil {
		return nil, errors.Wrapf(err, "redis get %s", key)
	}
	return value, nil
}

func (c *Cache) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	return errors.Wrapf(c.rdb.Set(ctx, key, value, ttl).Err(), "redis set %s", key)
}

func (c *Cache) Delete(ctx context.Context, key string) error {
	return errors.Wrapf(c.rdb.Del(ctx, key).Err(), "redis del %s", key)
}

// DeleteByPattern removes every key starting with prefix. It walks the keyspace with SCAN
// so large keyspaces never block the server.
func (c *Cache) DeleteByPattern(ctx context.Context, prefix string) error {
	var cursor uint64
	for {
		keys, next, err := c.rdb.Scan(ctx, cursor, prefix+"*", scanBatch).Result()
		if err != nil {
			return errors.Wrapf(err, "redis scan %s*", prefix)
		}
		if len(keys) > 0 {
			if err := c.rdb.Del(ctx, keys...).Err(); err != nil {
				return errors.Wrapf(err, "redis del %s*", prefix)
			}
		}
		if next == 0 {
			return nil
		}
		cursor = next
	}
}

func (c *Cache) Close() error {
	return c.rdb.Close()
}
