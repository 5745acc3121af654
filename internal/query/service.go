// Package query serves the candle read path: historical finalized candles
// merged with the in-progress live candle into one ascending series.
package query

import (
	"context"
	"fmt"
	"time"

	"candlefeed/internal/livestore"
	"candlefeed/internal/model"
)

// MaxLimit caps how many finalized candles one query may return.
const MaxLimit = 2000

// DefaultLimit applies when the caller omits limit.
const DefaultLimit = 500

// HistoryReader reads finalized candles, newest-first.
type HistoryReader interface {
	FindRecent(ctx context.Context, mint string, iv model.Interval, limit int) ([]model.Candle, error)
}

// Entry provenance tags.
const (
	SourceDB   = "db"
	SourceLive = "live"
)

// Entry is one candle in a query response, tagged with where it came from.
type Entry struct {
	Mint      string         `json:"mint"`
	Interval  model.Interval `json:"interval"`
	StartTime string         `json:"startTime"`
	Open      float64        `json:"open"`
	High      float64        `json:"high"`
	Low       float64        `json:"low"`
	Close     float64        `json:"close"`
	Volume    float64        `json:"volume"`
	TxCount   int64          `json:"txCount"`
	Source    string         `json:"source"`

	bucketStartMs int64
}

// Service merges the persistent and live candle views.
type Service struct {
	hist HistoryReader
	live livestore.Store
}

// NewService creates a query service over the two candle stores.
func NewService(hist HistoryReader, live livestore.Store) *Service {
	return &Service{hist: hist, live: live}
}

// GetCandles returns up to min(limit, MaxLimit) finalized candles for
// (mint, iv) in ascending time order, with the current live candle merged in.
// When the live candle's bucket equals the last finalized bucket, the live
// view replaces the stale finalized snapshot; otherwise it is appended.
// Bucket-start equality is the sole discriminator.
func (s *Service) GetCandles(ctx context.Context, mint string, iv model.Interval, limit int) ([]Entry, error) {
	if mint == "" {
		return nil, fmt.Errorf("mint is required")
	}
	if !iv.Valid() {
		return nil, fmt.Errorf("unrecognized interval %q", iv)
	}
	if limit <= 0 {
		limit = DefaultLimit
	}
	if limit > MaxLimit {
		limit = MaxLimit
	}

	rows, err := s.hist.FindRecent(ctx, mint, iv, limit)
	if err != nil {
		return nil, fmt.Errorf("read finalized candles: %w", err)
	}

	// Newest-first from the store; flip to ascending.
	entries := make([]Entry, 0, len(rows)+1)
	for i := len(rows) - 1; i >= 0; i-- {
		entries = append(entries, toEntry(rows[i], SourceDB))
	}

	liveCandle, ok, err := s.live.Get(ctx, mint, iv)
	if err != nil {
		return nil, fmt.Errorf("read live candle: %w", err)
	}
	if ok {
		le := toEntry(liveCandle, SourceLive)
		if n := len(entries); n > 0 && entries[n-1].bucketStartMs == le.bucketStartMs {
			entries[n-1] = le
		} else {
			entries = append(entries, le)
		}
	}

	return entries, nil
}

func toEntry(c model.Candle, source string) Entry {
	return Entry{
		Mint:          c.Mint,
		Interval:      c.Interval,
		StartTime:     c.StartTime().Format(time.RFC3339Nano),
		Open:          c.Open,
		High:          c.High,
		Low:           c.Low,
		Close:         c.Close,
		Volume:        c.Volume,
		TxCount:       c.TxCount,
		Source:        source,
		bucketStartMs: c.BucketStartMs,
	}
}
