package query

import (
	"context"
	"errors"
	"testing"

	"candlefeed/internal/livestore"
	"candlefeed/internal/model"
)

// fakeHistory serves canned finalized candles newest-first, like the store.
type fakeHistory struct {
	rows      []model.Candle
	lastLimit int
	err       error
}

func (f *fakeHistory) FindRecent(_ context.Context, _ string, _ model.Interval, limit int) ([]model.Candle, error) {
	f.lastLimit = limit
	if f.err != nil {
		return nil, f.err
	}
	if limit > len(f.rows) {
		limit = len(f.rows)
	}
	return f.rows[:limit], nil
}

func finalized(bucket int64, close float64) model.Candle {
	return model.Candle{
		Mint: "mintA", Interval: model.Interval1m, BucketStartMs: bucket,
		Open: close, High: close, Low: close, Close: close, Volume: 1, TxCount: 1,
	}
}

func TestGetCandles_AscendingWithLiveAppended(t *testing.T) {
	hist := &fakeHistory{rows: []model.Candle{finalized(120_000, 2), finalized(60_000, 1)}}
	live := livestore.NewMemory()
	live.Put(context.Background(), finalized(180_000, 3))
	svc := NewService(hist, live)

	entries, err := svc.GetCandles(context.Background(), "mintA", model.Interval1m, 10)
	if err != nil {
		t.Fatalf("get candles: %v", err)
	}
	if len(entries) != 3 {
		t.Fatalf("expected 3 entries, got %d", len(entries))
	}
	for i, want := range []float64{1, 2, 3} {
		if entries[i].Close != want {
			t.Errorf("entry %d close = %v, want %v (ascending order)", i, entries[i].Close, want)
		}
	}
	if entries[0].Source != SourceDB || entries[2].Source != SourceLive {
		t.Errorf("source tags wrong: %s ... %s", entries[0].Source, entries[2].Source)
	}
}

func TestGetCandles_LiveReplacesEqualBucket(t *testing.T) {
	hist := &fakeHistory{rows: []model.Candle{finalized(120_000, 2), finalized(60_000, 1)}}
	live := livestore.NewMemory()
	// Live candle for the same bucket as the newest finalized row, with
	// fresher values.
	fresher := finalized(120_000, 2.5)
	live.Put(context.Background(), fresher)
	svc := NewService(hist, live)

	entries, err := svc.GetCandles(context.Background(), "mintA", model.Interval1m, 10)
	if err != nil {
		t.Fatalf("get candles: %v", err)
	}
	if len(entries) != 2 {
		t.Fatalf("expected 2 entries (live replaced, not appended), got %d", len(entries))
	}
	last := entries[len(entries)-1]
	if last.Close != 2.5 || last.Source != SourceLive {
		t.Errorf("last entry = %+v, want live close=2.5", last)
	}
}

func TestGetCandles_NoLiveCandle(t *testing.T) {
	hist := &fakeHistory{rows: []model.Candle{finalized(60_000, 1)}}
	svc := NewService(hist, livestore.NewMemory())

	entries, err := svc.GetCandles(context.Background(), "mintA", model.Interval1m, 10)
	if err != nil {
		t.Fatalf("get candles: %v", err)
	}
	if len(entries) != 1 || entries[0].Source != SourceDB {
		t.Errorf("expected just the finalized row, got %+v", entries)
	}
}

func TestGetCandles_LimitClamped(t *testing.T) {
	hist := &fakeHistory{}
	svc := NewService(hist, livestore.NewMemory())
	ctx := context.Background()

	svc.GetCandles(ctx, "mintA", model.Interval1m, 0)
	if hist.lastLimit != DefaultLimit {
		t.Errorf("limit 0 should default to %d, got %d", DefaultLimit, hist.lastLimit)
	}

	svc.GetCandles(ctx, "mintA", model.Interval1m, MaxLimit+500)
	if hist.lastLimit != MaxLimit {
		t.Errorf("limit should clamp to %d, got %d", MaxLimit, hist.lastLimit)
	}
}

func TestGetCandles_Validation(t *testing.T) {
	svc := NewService(&fakeHistory{}, livestore.NewMemory())
	ctx := context.Background()

	if _, err := svc.GetCandles(ctx, "", model.Interval1m, 10); err == nil {
		t.Error("empty mint accepted")
	}
	if _, err := svc.GetCandles(ctx, "mintA", model.Interval("2s"), 10); err == nil {
		t.Error("unknown interval accepted")
	}
}

func TestGetCandles_StoreError(t *testing.T) {
	svc := NewService(&fakeHistory{err: errors.New("boom")}, livestore.NewMemory())

	if _, err := svc.GetCandles(context.Background(), "mintA", model.Interval1m, 10); err == nil {
		t.Error("store error swallowed")
	}
}
