package stream

import (
	"context"
	"fmt"
	"strconv"

	"candlefeed/internal/model"

	goredis "github.com/go-redis/redis/v8"
)

// Stream trimming: ~3h of ticks at a few hundred per second, approximate.
const tickStreamMaxLen = 2_000_000

// Producer appends ticks to the stream in the flat-field wire format. The
// production appenders live in the trade-processing layer; this one backs
// the staging tick generator and tests.
type Producer struct {
	client *goredis.Client
	stream string
}

// NewProducer creates a tick producer for the given stream key.
func NewProducer(client *goredis.Client, streamKey string) *Producer {
	return &Producer{client: client, stream: streamKey}
}

// Append writes one tick to the stream and returns its entry id.
func (p *Producer) Append(ctx context.Context, t model.Tick) (string, error) {
	id, err := p.client.XAdd(ctx, &goredis.XAddArgs{
		Stream: p.stream,
		MaxLen: tickStreamMaxLen,
		Approx: true,
		Values: map[string]interface{}{
			"mint":     t.Mint,
			"price":    strconv.FormatFloat(t.Price, 'g', -1, 64),
			"qtyQuote": strconv.FormatFloat(t.QtyQuote, 'g', -1, 64),
			"ts":       strconv.FormatInt(t.TimestampMs, 10),
			"side":     string(t.Side),
		},
	}).Result()
	if err != nil {
		return "", fmt.Errorf("xadd %s: %w", p.stream, err)
	}
	return id, nil
}
