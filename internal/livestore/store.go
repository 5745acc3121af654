// Package livestore holds the in-progress candle per (mint, interval).
// The aggregator is the sole writer; the query service reads. Candles are
// typed structs internally and flatten to a string-valued hash only at the
// store boundary.
package livestore

import (
	"context"

	"candlefeed/internal/model"
)

// Store is the live-candle key-value store.
type Store interface {
	// Get returns the live candle for (mint, interval). ok is false when no
	// live candle exists.
	Get(ctx context.Context, mint string, iv model.Interval) (c model.Candle, ok bool, err error)
	// Put replaces the live candle for (c.Mint, c.Interval). All fields are
	// written in one store operation so readers never observe a torn update.
	Put(ctx context.Context, c model.Candle) error
}

// Key returns the store key for a live slot: "live:{interval}:{mint}".
func Key(iv model.Interval, mint string) string {
	return "live:" + string(iv) + ":" + mint
}
