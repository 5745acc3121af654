package model

import (
	"encoding/json"
	"log"
	"time"
)

// Candle is one OHLCV bucket for a (mint, interval) pair. The same struct
// serves as the mutable live candle and the finalized persistent row; all
// prices are USD.
type Candle struct {
	Mint          string   `json:"mint"`
	Interval      Interval `json:"interval"`
	BucketStartMs int64    `json:"bucketStartMs"`
	Open          float64  `json:"open"`
	High          float64  `json:"high"`
	Low           float64  `json:"low"`
	Close         float64  `json:"close"`
	Volume        float64  `json:"volume"`
	TxCount       int64    `json:"txCount"`
}

// Key returns "mint:interval", the identity of the live slot this candle
// occupies.
func (c *Candle) Key() string {
	return c.Mint + ":" + string(c.Interval)
}

// StartTime returns the bucket start as a UTC time.
func (c *Candle) StartTime() time.Time {
	return time.UnixMilli(c.BucketStartMs).UTC()
}

// Update is the JSON event published on every live-candle change and every
// finalize. StartTime is ISO-8601.
type Update struct {
	Mint      string   `json:"mint"`
	Interval  Interval `json:"interval"`
	StartTime string   `json:"startTime"`
	Open      float64  `json:"open"`
	High      float64  `json:"high"`
	Low       float64  `json:"low"`
	Close     float64  `json:"close"`
	Volume    float64  `json:"volume"`
	TxCount   int64    `json:"txCount"`
	IsFinal   bool     `json:"isFinal"`
}

// NewUpdate builds the broadcast event for a candle snapshot.
func NewUpdate(c Candle, final bool) Update {
	return Update{
		Mint:      c.Mint,
		Interval:  c.Interval,
		StartTime: c.StartTime().Format(time.RFC3339Nano),
		Open:      c.Open,
		High:      c.High,
		Low:       c.Low,
		Close:     c.Close,
		Volume:    c.Volume,
		TxCount:   c.TxCount,
		IsFinal:   final,
	}
}

// Channel returns the pub/sub channel this update is published on.
func (u *Update) Channel() string {
	return "pub:candle:" + string(u.Interval) + ":" + u.Mint
}

// JSON returns the JSON-encoded update. Marshal cannot fail for finite
// values; a failure is logged rather than propagated through the hot path.
func (u *Update) JSON() []byte {
	b, err := json.Marshal(u)
	if err != nil {
		log.Printf("[model] marshal update %s:%s: %v", u.Mint, u.Interval, err)
	}
	return b
}
