package redis

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

const pingTimeout = 3 * time.Second

// Client stores live game state blobs and deadline timers.
type Client struct {
	rdb *redis.Client
}

// NewClient connects to the Redis at redisURL and verifies it answers.
func NewClient(ctx context.Context, redisURL string) (*Client, error) {
	opts, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("parse redis URL: %w", err)
	}
	c := &Client{rdb: redis.NewClient(opts)}
	if err := c.PingContext(ctx); err != nil {
		c.rdb.Close()
		return nil, err
	}
	return c, nil
}

// NewClientFromPool wraps an existing redis.Client.
func NewClientFromPool(rdb *redis.Client) *Client {
	return &Client{rdb: rdb}
}

// PingContext checks the connection, bounded by a short timeout.
func (c *Client) PingContext(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, pingTimeout)
	defer cancel()
	if err := c.rdb.Ping(ctx).Err(); err != nil {
		return fmt.Errorf("redis ping: %w", err)
	}
	return nil
}

func (c *Client) Close() error {
	return c.rdb.Close()
}

// Underlying exposes the go-redis client for keyspace subscriptions.
func (c *Client) Underlying() *redis.Client {
	return c.rdb
}
