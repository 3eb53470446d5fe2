package redisclient

import (
	"context"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"
)

type Client struct {
	rdb *redis.Client
}

// NewClient creates a new Redis client and verifies connectivity
func NewClient(addr, password string, db int) (*Client, error) {
	rdb := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := rdb.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("redis ping failed: %w", err)
	}

	return &Client{rdb: rdb}, nil
}

// GetClient returns the underlying Redis client
func (c *Client) GetClient() *redis.Client {
	return c.rdb
}

// Close closes the Redis connection
func (c *Client) Close() error {
	return c.rdb.Close()
}

// Ping checks connectivity, used by readiness and ping handlers
func (c *Client) Ping(ctx context.Context) error {
	return c.rdb.Ping(ctx).Err()
}

// GetCourierStatus returns a cached courier status payload.
// Returns ("", nil) on cache miss.
func (c *Client) GetCourierStatus(ctx context.Context, orderUID int64) (string, error) {
	val, err := c.rdb.Get(ctx, fmt.Sprintf("courier:status:%d", orderUID)).Result()
	if err == redis.Nil {
		return "", nil
	}
	if err != nil {
		return "", err
	}
	return val, nil
}

// SetCourierStatus caches a courier status payload with TTL
func (c *Client) SetCourierStatus(ctx context.Context, orderUID int64, payload string, ttl time.Duration) error {
	return c.rdb.Set(ctx, fmt.Sprintf("courier:status:%d", orderUID), payload, ttl).Err()
}

// CachedNumbers returns the MSISDN pool cached for a region.
// An empty slice with nil error means cache miss, callers fall back
// to the billing pool API.
func (c *Client) CachedNumbers(ctx context.Context, region string) ([]string, error) {
	numbers, err := c.rdb.SMembers(ctx, fmt.Sprintf("msisdn:pool:%s", region)).Result()
	if err != nil {
		return nil, err
	}
	return numbers, nil
}

// CacheNumbers replaces the cached MSISDN pool for a region
func (c *Client) CacheNumbers(ctx context.Context, region string, numbers []string, ttl time.Duration) error {
	if len(numbers) == 0 {
		return nil
	}
	key := fmt.Sprintf("msisdn:pool:%s", region)

	members := make([]interface{}, len(numbers))
	for i, n := range numbers {
		members[i] = n
	}

	pipe := c.rdb.Pipeline()
	pipe.Del(ctx, key)
	pipe.SAdd(ctx, key, members...)
	pipe.Expire(ctx, key, ttl)

	_, err := pipe.Exec(ctx)
	return err
}

// RemoveCachedNumber evicts one MSISDN from the pool cache, used
// after the number is assigned to a subscriber
func (c *Client) RemoveCachedNumber(ctx context.Context, region, number string) error {
	return c.rdb.SRem(ctx, fmt.Sprintf("msisdn:pool:%s", region), number).Err()
}

// AcquireLock acquires a distributed lock
func (c *Client) AcquireLock(ctx context.Context, lockKey string, ttl time.Duration) (bool, error) {
	return c.rdb.SetNX(ctx, fmt.Sprintf("lock:%s", lockKey), "1", ttl).Result()
}

// ReleaseLock releases a distributed lock
func (c *Client) ReleaseLock(ctx context.Context, lockKey string) error {
	return c.rdb.Del(ctx, fmt.Sprintf("lock:%s", lockKey)).Err()
}
