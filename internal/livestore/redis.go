package livestore

import (
	"context"
	"fmt"
	"log"
	"time"

	"candlefeed/internal/model"

	goredis "github.com/go-redis/redis/v8"
)

// Live slots outlive their bucket only until the next tick rolls them over;
// the TTL reaps slots for mints that stop trading.
const liveTTL = 48 * time.Hour

// writeTimeout bounds each store round trip so a Redis stall cannot wedge the
// consume loop indefinitely.
const writeTimeout = 5 * time.Second

// Redis is the production live-candle store backed by Redis hashes, one hash
// per (mint, interval) under the key "live:{interval}:{mint}".
type Redis struct {
	client *goredis.Client
}

// NewRedis wraps an existing Redis client.
func NewRedis(client *goredis.Client) *Redis {
	return &Redis{client: client}
}

// Dial creates a client, pings the server, and returns the store.
func Dial(addr, password string, db int) (*Redis, error) {
	client := goredis.NewClient(&goredis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("redis ping: %w", err)
	}

	log.Printf("[livestore] connected to %s", addr)
	return &Redis{client: client}, nil
}

// Client returns the underlying Redis client for health checks.
func (s *Redis) Client() *goredis.Client { return s.client }

// Get fetches and decodes the live candle hash for (mint, iv).
func (s *Redis) Get(ctx context.Context, mint string, iv model.Interval) (model.Candle, bool, error) {
	ctx, cancel := context.WithTimeout(ctx, writeTimeout)
	defer cancel()

	fields, err := s.client.HGetAll(ctx, Key(iv, mint)).Result()
	if err != nil {
		return model.Candle{}, false, fmt.Errorf("hgetall %s: %w", Key(iv, mint), err)
	}
	if len(fields) == 0 {
		return model.Candle{}, false, nil
	}
	c, err := unflatten(mint, iv, fields)
	if err != nil {
		return model.Candle{}, false, err
	}
	return c, true, nil
}

// Put writes all candle fields in a single HSET so concurrent readers never
// see a partial update.
func (s *Redis) Put(ctx context.Context, c model.Candle) error {
	ctx, cancel := context.WithTimeout(ctx, writeTimeout)
	defer cancel()

	key := Key(c.Interval, c.Mint)
	pipe := s.client.Pipeline()
	pipe.HSet(ctx, key, flatten(c))
	pipe.Expire(ctx, key, liveTTL)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("hset %s: %w", key, err)
	}
	return nil
}

// Close closes the Redis client.
func (s *Redis) Close() error {
	return s.client.Close()
}
