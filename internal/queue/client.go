// Package queue is the Redis-backed work queue between the API and the
// worker pool. Tasks are JSON blobs on a single list; workers block on
// BLPOP.
package queue

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

const queueKey = "verimail:queue:verify"

// Task is one email to verify as part of a job.
type Task struct {
	JobID string `json:"job_id"`
	Email string `json:"email"`
}

// Client wraps the Redis connection with queue semantics.
type Client struct {
	rdb *redis.Client
}

// Dial connects to Redis and pings it to make sure it is alive.
func Dial(addr string) (*Client, error) {
	rdb := redis.NewClient(&redis.Options{
		Addr:        addr,
		DialTimeout: 5 * time.Second,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := rdb.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("redis ping failed: %w", err)
	}
	return &Client{rdb: rdb}, nil
}

// NewClient wraps an existing connection, so the queue and the cache can
// share one.
func NewClient(rdb *redis.Client) *Client {
	return &Client{rdb: rdb}
}

// Redis exposes the underlying connection for sharing.
func (c *Client) Redis() *redis.Client { return c.rdb }

// Enqueue pushes a task onto the tail of the queue.
func (c *Client) Enqueue(ctx context.Context, task Task) error {
	payload, err := json.Marshal(task)
	if err != nil {
		return fmt.Errorf("marshal task: %w", err)
	}
	if err := c.rdb.RPush(ctx, queueKey, payload).Err(); err != nil {
		return fmt.Errorf("enqueue task: %w", err)
	}
	return nil
}

// Dequeue blocks until a task is available or ctx is cancelled.
func (c *Client) Dequeue(ctx context.Context) (Task, error) {
	// BLPOP returns [key, value].
	res, err := c.rdb.BLPop(ctx, 0, queueKey).Result()
	if err != nil {
		return Task{}, err
	}

	var task Task
	if err := json.Unmarshal([]byte(res[1]), &task); err != nil {
		return Task{}, fmt.Errorf("malformed task %q: %w", res[1], err)
	}
	return task, nil
}

// Len reports the number of pending tasks.
func (c *Client) Len(ctx context.Context) (int64, error) {
	return c.rdb.LLen(ctx, queueKey).Result()
}
