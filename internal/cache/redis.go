package cache

import (
	"context"
	"errors"
	"log"
	"time"

	"github.com/redis/go-redis/v9"
)

// keyPrefix scopes every entry so the cache can share a Redis database
// with the task queue.
const keyPrefix = "verimail:cache:"

// Redis is a remote KV backend on top of go-redis. Failures are logged
// and swallowed: a dead Redis degrades the cache to a pass-through.
type Redis struct {
	client *redis.Client
}

var _ Store = (*Redis)(nil)

// NewRedis wraps an already-configured client.
func NewRedis(client *redis.Client) *Redis {
	return &Redis{client: client}
}

// DialRedis connects to addr and pings it to ensure it is alive.
func DialRedis(ctx context.Context, addr string) (*Redis, error) {
	client := redis.NewClient(&redis.Options{
		Addr:        addr,
		DialTimeout: 5 * time.Second,
	})
	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		return nil, err
	}
	return &Redis{client: client}, nil
}

func redisKey(ns, key string) string {
	return keyPrefix + ns + ":" + key
}

func (r *Redis) Get(ctx context.Context, ns, key string) ([]byte, bool) {
	raw, err := r.client.Get(ctx, redisKey(ns, key)).Bytes()
	if err != nil {
		if !errors.Is(err, redis.Nil) {
			log.Printf("[DEBUG] cache: redis read %s/%s failed, treating as miss: %v", ns, key, err)
		}
		return nil, false
	}
	return raw, true
}

func (r *Redis) Set(ctx context.Context, ns, key string, value []byte, ttl time.Duration) {
	if err := r.client.Set(ctx, redisKey(ns, key), value, ttl).Err(); err != nil {
		log.Printf("[DEBUG] cache: redis write %s/%s dropped: %v", ns, key, err)
	}
}

func (r *Redis) Delete(ctx context.Context, ns, key string) bool {
	n, err := r.client.Del(ctx, redisKey(ns, key)).Result()
	if err != nil {
		log.Printf("[DEBUG] cache: redis delete %s/%s failed: %v", ns, key, err)
		return false
	}
	return n > 0
}

func (r *Redis) Has(ctx context.Context, ns, key string) bool {
	n, err := r.client.Exists(ctx, redisKey(ns, key)).Result()
	if err != nil {
		return false
	}
	return n > 0
}

func (r *Redis) Clear(ctx context.Context) {
	iter := r.client.Scan(ctx, 0, keyPrefix+"*", 500).Iterator()
	for iter.Next(ctx) {
		if err := r.client.Del(ctx, iter.Val()).Err(); err != nil {
			log.Printf("[DEBUG] cache: redis clear failed on %s: %v", iter.Val(), err)
		}
	}
	if err := iter.Err(); err != nil {
		log.Printf("[DEBUG] cache: redis scan failed during clear: %v", err)
	}
}
