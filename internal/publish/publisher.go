// Package publish carries every live-candle update and every finalize to
// downstream consumers (the WebSocket gateway) over Redis Pub/Sub.
//
// Delivery is at-least-once per connected subscriber; ordering across
// subscribers is not guaranteed.
package publish

import (
	"context"
	"fmt"
	"time"

	"candlefeed/internal/model"

	goredis "github.com/go-redis/redis/v8"
)

// Publisher emits candle updates as a side effect of aggregation.
type Publisher interface {
	Publish(ctx context.Context, u model.Update) error
}

const publishTimeout = 5 * time.Second

// Redis publishes updates on "pub:candle:{interval}:{mint}" channels.
type Redis struct {
	client *goredis.Client
}

// NewRedis wraps an existing Redis client.
func NewRedis(client *goredis.Client) *Redis {
	return &Redis{client: client}
}

func (p *Redis) Publish(ctx context.Context, u model.Update) error {
	ctx, cancel := context.WithTimeout(ctx, publishTimeout)
	defer cancel()

	if err := p.client.Publish(ctx, u.Channel(), string(u.JSON())).Err(); err != nil {
		return fmt.Errorf("publish %s: %w", u.Channel(), err)
	}
	return nil
}
