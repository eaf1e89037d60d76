package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"
)

var ErrMiss = errors.New("setting not found")

// KV settings and counters shared by every qms-data instance
// (backup range, record number sequences).
type KV interface {
	Get(ctx context.Context, key string) (string, error)
	Set(ctx context.Context, key string, value string, ttl time.Duration) error
	// Next raises the counter at key to at least floor, increments it and
	// returns the new value in one atomic step.
	Next(ctx context.Context, key string, floor int64) (int64, error)
}

// nextScript counter bump with a floor; runs atomically inside Redis.
var nextScript = redis.NewScript(`
local v = tonumber(redis.call('GET', KEYS[1]) or '0')
local floor = tonumber(ARGV[1])
if floor > v then v = floor end
v = v + 1
redis.call('SET', KEYS[1], v)
return v
`)

type RedisKV struct {
	c *redis.Client
}

func NewRedisKV(c *redis.Client) *RedisKV { return &RedisKV{c: c} }

func (r *RedisKV) Get(ctx context.Context, key string) (string, error) {
	val, err := r.c.Get(ctx, key).Result()
	switch {
	case err == redis.Nil:
		return "", ErrMiss
	case err != nil:
		return "", fmt.Errorf("redis get %s: %w", key, err)
	}
	return val, nil
}

func (r *RedisKV) Set(ctx context.Context, key string, value string, ttl time.Duration) error {
	if err := r.c.Set(ctx, key, value, ttl).Err(); err != nil {
		return fmt.Errorf("redis set %s: %w", key, err)
	}
	return nil
}

func (r *RedisKV) Next(ctx context.Context, key string, floor int64) (int64, error) {
	n, err := nextScript.Run(ctx, r.c, []string{key}, floor).Int64()
	if err != nil {
		return 0, fmt.Errorf("redis next %s: %w", key, err)
	}
	return n, nil
}
