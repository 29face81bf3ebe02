// Package redisstore is the shared tier of the entity id cache: plain string
// values under keys.EntityID keys, written with a TTL.
package redisstore

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	maintnotifications "github.com/redis/go-redis/v9/maintnotifications"

	"github.com/mohammed-shakir/scene-catalog/internal/core/config"
	"github.com/mohammed-shakir/scene-catalog/internal/core/observability"
)

// Pool and timeout defaults, used for zero Config fields.
const (
	DefaultPoolSize     = 64
	DefaultMinIdleConns = 4
	DefaultDialTimeout  = 2 * time.Second
	DefaultIOTimeout    = 1 * time.Second
)

type Config struct {
	Addr         string
	PoolSize     int
	MinIdleConns int
	DialTimeout  time.Duration
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
}

// ConfigFrom takes the connection settings of the entity cache config.
func ConfigFrom(c config.CacheCfg) Config {
	return Config{
		Addr:         c.RedisAddr,
		PoolSize:     c.RedisPoolSize,
		MinIdleConns: c.RedisMinIdleConns,
		DialTimeout:  c.RedisDialTimeout,
		ReadTimeout:  c.RedisReadTimeout,
		WriteTimeout: c.RedisWriteTimeout,
	}
}

func (c Config) options() (*redis.Options, error) {
	if c.Addr == "" {
		return nil, errors.New("redis address is required")
	}
	o := &redis.Options{
		Addr:         c.Addr,
		PoolSize:     orInt(c.PoolSize, DefaultPoolSize),
		MinIdleConns: orInt(c.MinIdleConns, DefaultMinIdleConns),
		DialTimeout:  orDur(c.DialTimeout, DefaultDialTimeout),
		ReadTimeout:  orDur(c.ReadTimeout, DefaultIOTimeout),
		WriteTimeout: orDur(c.WriteTimeout, DefaultIOTimeout),
		MaintNotificationsConfig: &maintnotifications.Config{
			Mode: maintnotifications.ModeDisabled,
		},
	}
	if o.MinIdleConns > o.PoolSize {
		o.MinIdleConns = o.PoolSize
	}
	return o, nil
}

type Client struct {
	rdb *redis.Client
}

// New connects and pings once, so a bad address fails at startup.
func New(ctx context.Context, cfg Config) (*Client, error) {
	o, err := cfg.options()
	if err != nil {
		return nil, err
	}
	c := &Client{rdb: redis.NewClient(o)}
	if err := c.Ping(ctx); err != nil {
		_ = c.rdb.Close()
		return nil, err
	}
	return c, nil
}

// PoolSize is the connection pool size in effect.
func (c *Client) PoolSize() int { return c.rdb.Options().PoolSize }

// MGet returns the values of the keys that exist. Missing and expired keys
// are absent from the map.
func (c *Client) MGet(ctx context.Context, keys []string) (map[string][]byte, error) {
	out := make(map[string][]byte, len(keys))
	if len(keys) == 0 {
		observe("mget", nil, time.Now())
		return out, nil
	}

	start := time.Now()
	vals, err := c.rdb.MGet(ctx, keys...).Result()
	observe("mget", err, start)
	if err != nil {
		return nil, fmt.Errorf("redis MGET %d keys: %w", len(keys), err)
	}
	for i, v := range vals {
		switch t := v.(type) {
		case nil:
		case string:
			out[keys[i]] = []byte(t)
		case []byte:
			out[keys[i]] = t
		default:
			out[keys[i]] = fmt.Append(nil, t)
		}
	}
	return out, nil
}

// MSetWithTTL writes every pair in one pipeline round trip.
func (c *Client) MSetWithTTL(ctx context.Context, kv map[string][]byte, ttl time.Duration) error {
	start := time.Now()
	if len(kv) == 0 {
		observe("mset", nil, start)
		return nil
	}
	_, err := c.rdb.Pipelined(ctx, func(p redis.Pipeliner) error {
		for k, v := range kv {
			p.Set(ctx, k, v, ttl)
		}
		return nil
	})
	observe("mset", err, start)
	if err != nil {
		return fmt.Errorf("redis MSET %d keys (pipeline): %w", len(kv), err)
	}
	return nil
}

// Del removes keys; keys that do not exist are ignored.
func (c *Client) Del(ctx context.Context, keys ...string) error {
	if len(keys) == 0 {
		return nil
	}
	start := time.Now()
	err := c.rdb.Del(ctx, keys...).Err()
	observe("del", err, start)
	if err != nil {
		return fmt.Errorf("redis DEL %d keys: %w", len(keys), err)
	}
	return nil
}

// Ping reports whether Redis answers; used by readiness checks.
func (c *Client) Ping(ctx context.Context) error {
	start := time.Now()
	err := c.rdb.Ping(ctx).Err()
	observe("ping", err, start)
	if err != nil {
		return fmt.Errorf("redis ping: %w", err)
	}
	return nil
}

func (c *Client) Close() error {
	if err := c.rdb.Close(); err != nil {
		return fmt.Errorf("redis close: %w", err)
	}
	return nil
}

func observe(op string, err error, start time.Time) {
	observability.ObserveCacheOp(op, err, time.Since(start).Seconds())
}

func orInt(v, def int) int {
	if v > 0 {
		return v
	}
	return def
}

func orDur(v, def time.Duration) time.Duration {
	if v > 0 {
		return v
	}
	return def
}
