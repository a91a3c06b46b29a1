package kvs

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"ledger-gateway/internal/pkg/config"

	"github.com/redis/go-redis/v9"
)

// ErrNotFound normalizes redis.Nil for missing keys and empty pops so callers
// never depend on the driver's sentinel.
var ErrNotFound = errors.New("kvs: key not found")

// Store is the key-value surface the gateway consumes. The store is treated as
// reliable and already connected; replication and persistence are its problem.
type Store interface {
	Get(ctx context.Context, key string) (string, error)
	Set(ctx context.Context, key, value string) error
	SetEx(ctx context.Context, key, value string, ttl time.Duration) error
	SetNX(ctx context.Context, key, value string, ttl time.Duration) (bool, error)
	Del(ctx context.Context, keys ...string) error
	Keys(ctx context.Context, pattern string) ([]string, error)
	Incr(ctx context.Context, key string) (int64, error)
	Expire(ctx context.Context, key string, ttl time.Duration) error

	LPush(ctx context.Context, key string, values ...string) error
	RPop(ctx context.Context, key string) (string, error)
	LLen(ctx context.Context, key string) (int64, error)
	LRange(ctx context.Context, key string, start, stop int64) ([]string, error)
	LRem(ctx context.Context, key string, count int64, value string) (int64, error)

	ZAdd(ctx context.Context, key string, score float64, member string) error
	ZRem(ctx context.Context, key string, members ...string) (int64, error)
	ZCard(ctx context.Context, key string) (int64, error)
	ZRangeByScore(ctx context.Context, key string, min, max float64) ([]string, error)

	Ping(ctx context.Context) error
}

type Client struct {
	rdb *redis.Client
}

var _ Store = (*Client)(nil)

func Connect(cfg config.RedisConfig) (*Client, func(), error) {
	rdb := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr(),
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := rdb.Ping(ctx).Err(); err != nil {
		_ = rdb.Close()
		return nil, nil, fmt.Errorf("failed to ping redis at %s: %w", cfg.Addr(), err)
	}

	cleanup := func() {
		if err := rdb.Close(); err != nil {
			slog.Error("error closing redis client", "error", err)
		}
	}

	return &Client{rdb: rdb}, cleanup, nil
}

// NewFromRedis wraps an existing client (tests point this at miniredis).
func NewFromRedis(rdb *redis.Client) *Client {
	return &Client{rdb: rdb}
}

func (c *Client) Get(ctx context.Context, key string) (string, error) {
	val, err := c.rdb.Get(ctx, key).Result()
	if errors.Is(err, redis.Nil) {
		return "", ErrNotFound
	}
	return val, err
}

func (c *Client) Set(ctx context.Context, key, value string) error {
	return c.rdb.Set(ctx, key, value, 0).Err()
}

func (c *Client) SetEx(ctx context.Context, key, value string, ttl time.Duration) error {
	return c.rdb.SetEx(ctx, key, value, ttl).Err()
}

func (c *Client) SetNX(ctx context.Context, key, value string, ttl time.Duration) (bool, error) {
	return c.rdb.SetNX(ctx, key, value, ttl).Result()
}

func (c *Client) Del(ctx context.Context, keys ...string) error {
	return c.rdb.Del(ctx, keys...).Err()
}

func (c *Client) Keys(ctx context.Context, pattern string) ([]string, error) {
	return c.rdb.Keys(ctx, pattern).Result()
}

func (c *Client) Incr(ctx context.Context, key string) (int64, error) {
	return c.rdb.Incr(ctx, key).Result()
}

func (c *Client) Expire(ctx context.Context, key string, ttl time.Duration) error {
	return c.rdb.Expire(ctx, key, ttl).Err()
}

func (c *Client) LPush(ctx context.Context, key string, values ...string) error {
	args := make([]any, len(values))
	for i, v := range values {
		args[i] = v
	}
	return c.rdb.LPush(ctx, key, args...).Err()
}

func (c *Client) RPop(ctx context.Context, key string) (string, error) {
	val, err := c.rdb.RPop(ctx, key).Result()
	if errors.Is(err, redis.Nil) {
		return "", ErrNotFound
	}
	return val, err
}

func (c *Client) LLen(ctx context.Context, key string) (int64, error) {
	return c.rdb.LLen(ctx, key).Result()
}

func (c *Client) LRange(ctx context.Context, key string, start, stop int64) ([]string, error) {
	return c.rdb.LRange(ctx, key, start, stop).Result()
}

func (c *Client) LRem(ctx context.Context, key string, count int64, value string) (int64, error) {
	return c.rdb.LRem(ctx, key, count, value).Result()
}

func (c *Client) ZAdd(ctx context.Context, key string, score float64, member string) error {
	return c.rdb.ZAdd(ctx, key, redis.Z{Score: score, Member: member}).Err()
}

func (c *Client) ZRem(ctx context.Context, key string, members ...string) (int64, error) {
	args := make([]any, len(members))
	for i, m := range members {
		args[i] = m
	}
	return c.rdb.ZRem(ctx, key, args...).Result()
}

func (c *Client) ZCard(ctx context.Context, key string) (int64, error) {
	return c.rdb.ZCard(ctx, key).Result()
}

func (c *Client) ZRangeByScore(ctx context.Context, key string, min, max float64) ([]string, error) {
	return c.rdb.ZRangeByScore(ctx, key, &redis.ZRangeBy{
		Min: formatScore(min),
		Max: formatScore(max),
	}).Result()
}

func (c *Client) Ping(ctx context.Context) error {
	return c.rdb.Ping(ctx).Err()
}

func formatScore(score float64) string {
	return fmt.Sprintf("%f", score)
}
