package cache

import (
	"context"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rotisserie/eris"
)

// redisStore backs the cache layer with a Redis instance, the same one the
// async task queue runs on.
type redisStore struct {
	client *redis.Client
}

// NewRedis connects to Redis and verifies the connection.
func NewRedis(ctx context.Context, addr, password string, db int) (Store, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, eris.Wrapf(err, "cache: connect redis %s", addr)
	}
	return &redisStore{client: client}, nil
}

func (r *redisStore) Get(ctx context.Context, key string) ([]byte, bool, error) {
	val, err := r.client.Get(ctx, key).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, eris.Wrapf(err, "cache: get %s", key)
	}
	return val, true, nil
}

func (r *redisStore) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	if err := r.client.Set(ctx, key, value, ttl).Err(); err != nil {
		return eris.Wrapf(err, "cache: set %s", key)
	}
	return nil
}

func (r *redisStore) Delete(ctx context.Context, key string) (bool, error) {
	// DEL replies with the number of keys that actually existed.
	n, err := r.client.Del(ctx, key).Result()
	if err != nil {
		return false, eris.Wrapf(err, "cache: delete %s", key)
	}
	return n > 0, nil
}

func (r *redisStore) DeletePrefix(ctx context.Context, prefix string) (int, error) {
	var deleted int
	iter := r.client.Scan(ctx, 0, prefix+"*", 100).Iterator()
	for iter.Next(ctx) {
		if err := r.client.Del(ctx, iter.Val()).Err(); err != nil {
			return deleted, eris.Wrapf(err, "cache: delete %s", iter.Val())
		}
		deleted++
	}
	if err := iter.Err(); err != nil {
		return deleted, eris.Wrapf(err, "cache: scan %s*", prefix)
	}
	return deleted, nil
}

func (r *redisStore) TTL(ctx context.Context, key string) (time.Duration, error) {
	d, err := r.client.TTL(ctx, key).Result()
	if err != nil {
		return 0, eris.Wrapf(err, "cache: ttl %s", key)
	}
	// Redis returns -2 for missing keys and -1 for keys without expiry.
	if d < 0 {
		return 0, nil
	}
	return d, nil
}

func (r *redisStore) Close() error { return r.client.Close() }
