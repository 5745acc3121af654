// Package stream reads trade ticks from the Redis Stream the trade-processing
// layer appends to, and appends synthetic ticks for staging runs. Entries are
// flat field lists: mint, price, qtyQuote, ts, side.
package stream

import (
	"context"
	"fmt"
	"log"
	"math"
	"strconv"
	"time"

	"candlefeed/internal/model"

	goredis "github.com/go-redis/redis/v8"
)

const readBatch = 500

// Handler is called for every valid tick, in stream order.
type Handler func(ctx context.Context, t model.Tick)

// ConsumerConfig configures the tick consumer.
type ConsumerConfig struct {
	StreamKey string
	Block     time.Duration // blocking-read timeout (bounded so shutdown is noticed)
	Backoff   time.Duration // sleep after a read/connection error
}

// StreamReader is the one slice of the Redis client the consumer reads
// through. *goredis.Client satisfies it.
type StreamReader interface {
	XRead(ctx context.Context, a *goredis.XReadArgs) *goredis.XStreamSliceCmd
}

// Consumer is a single-goroutine cursor reader over the tick stream. The
// cursor starts at the stream origin and advances to every read entry id
// regardless of whether the entry parsed, so a malformed entry is never
// re-read.
type Consumer struct {
	client  StreamReader
	cfg     ConsumerConfig
	handler Handler

	// Metrics hooks (optional, set externally)
	OnTick      func()
	OnMalformed func()
}

// NewConsumer creates a tick consumer.
func NewConsumer(client StreamReader, cfg ConsumerConfig, handler Handler) *Consumer {
	if cfg.Block <= 0 {
		cfg.Block = 5 * time.Second
	}
	if cfg.Backoff <= 0 {
		cfg.Backoff = 2 * time.Second
	}
	return &Consumer{client: client, cfg: cfg, handler: handler}
}

// Run consumes ticks until ctx is cancelled. Transient read errors back off
// and retry forever; the loop never exits on infrastructure failure.
func (c *Consumer) Run(ctx context.Context) error {
	cursor := "0" // stream origin
	log.Printf("[stream] consuming %s from origin (block=%v)", c.cfg.StreamKey, c.cfg.Block)

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		results, err := c.client.XRead(ctx, &goredis.XReadArgs{
			Streams: []string{c.cfg.StreamKey, cursor},
			Count:   readBatch,
			Block:   c.cfg.Block,
		}).Result()
		if err != nil {
			if err == goredis.Nil {
				continue // no new entries within the block window
			}
			if ctx.Err() != nil {
				return ctx.Err()
			}
			log.Printf("[stream] read error: %v, retrying in %v", err, c.cfg.Backoff)
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(c.cfg.Backoff):
			}
			continue
		}

		for _, res := range results {
			for _, msg := range res.Messages {
				// Advance past the entry whether or not it parses.
				cursor = msg.ID

				t, err := ParseTick(msg.Values)
				if err != nil {
					log.Printf("[stream] malformed entry %s skipped: %v", msg.ID, err)
					if c.OnMalformed != nil {
						c.OnMalformed()
					}
					continue
				}
				if c.OnTick != nil {
					c.OnTick()
				}
				c.handler(ctx, t)
			}
		}
	}
}

// ParseTick converts a stream entry's flat field map into a tick and
// validates it.
func ParseTick(values map[string]interface{}) (model.Tick, error) {
	var t model.Tick
	var err error

	t.Mint, _ = values["mint"].(string)
	t.Side = model.Side(stringField(values, "side"))

	if t.Price, err = floatField(values, "price"); err != nil {
		return model.Tick{}, err
	}
	if t.QtyQuote, err = floatField(values, "qtyQuote"); err != nil {
		return model.Tick{}, err
	}
	ts, err := floatField(values, "ts")
	if err != nil {
		return model.Tick{}, err
	}
	t.TimestampMs = int64(ts)

	if err := t.Validate(); err != nil {
		return model.Tick{}, err
	}
	return t, nil
}

func stringField(values map[string]interface{}, name string) string {
	s, _ := values[name].(string)
	return s
}

// floatField rejects NaN and infinities along with non-numeric strings: a
// non-finite price would poison every later extremum for its candle, and a
// non-finite ts has no defined int64 conversion.
func floatField(values map[string]interface{}, name string) (float64, error) {
	s, ok := values[name].(string)
	if !ok {
		return 0, fmt.Errorf("field %s missing", name)
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil || math.IsNaN(f) || math.IsInf(f, 0) {
		return 0, fmt.Errorf("field %s not a finite number: %q", name, s)
	}
	return f, nil
}
