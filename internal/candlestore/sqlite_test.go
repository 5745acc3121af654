package candlestore

import (
	"context"
	"path/filepath"
	"testing"

	"candlefeed/internal/model"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open(filepath.Join(t.TempDir(), "candles.db"))
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func candle(mint string, iv model.Interval, bucket int64, o, h, l, c, v float64, n int64) model.Candle {
	return model.Candle{
		Mint: mint, Interval: iv, BucketStartMs: bucket,
		Open: o, High: h, Low: l, Close: c, Volume: v, TxCount: n,
	}
}

func TestOpen_CreatesDataDir(t *testing.T) {
	path := filepath.Join(t.TempDir(), "data", "nested", "candles.db")
	s, err := Open(path)
	if err != nil {
		t.Fatalf("open with missing parent dirs: %v", err)
	}
	defer s.Close()

	if err := s.Upsert(context.Background(), candle("mintA", model.Interval1s, 1000, 1, 1, 1, 1, 1, 1)); err != nil {
		t.Errorf("upsert into freshly created dir: %v", err)
	}
}

func TestUpsert_InsertAndRead(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	want := candle("mintA", model.Interval1s, 60_000, 1, 2, 0.5, 1.5, 10, 3)
	if err := s.Upsert(ctx, want); err != nil {
		t.Fatalf("upsert: %v", err)
	}

	got, ok, err := s.FindLatest(ctx, "mintA", model.Interval1s, 0)
	if err != nil {
		t.Fatalf("find latest: %v", err)
	}
	if !ok {
		t.Fatal("candle not found after upsert")
	}
	if got != want {
		t.Errorf("got %+v, want %+v", got, want)
	}
}

func TestUpsert_OpenIsImmutable(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	first := candle("mintA", model.Interval1s, 60_000, 1.0, 2, 0.5, 1.5, 10, 3)
	if err := s.Upsert(ctx, first); err != nil {
		t.Fatalf("upsert: %v", err)
	}

	// Corrective re-finalization with a different open.
	second := candle("mintA", model.Interval1s, 60_000, 9.9, 3, 0.4, 2.0, 15, 5)
	if err := s.Upsert(ctx, second); err != nil {
		t.Fatalf("re-upsert: %v", err)
	}

	got, _, err := s.FindLatest(ctx, "mintA", model.Interval1s, 0)
	if err != nil {
		t.Fatalf("find latest: %v", err)
	}
	if got.Open != 1.0 {
		t.Errorf("open mutated on conflict: got %v, want 1.0", got.Open)
	}
	if got.High != 3 || got.Low != 0.4 || got.Close != 2.0 || got.Volume != 15 || got.TxCount != 5 {
		t.Errorf("non-open columns not updated: %+v", got)
	}
}

func TestFindRecent_OrderAndLimit(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	for i := int64(1); i <= 5; i++ {
		c := candle("mintA", model.Interval1m, i*60_000, 1, 1, 1, float64(i), 1, 1)
		if err := s.Upsert(ctx, c); err != nil {
			t.Fatalf("upsert %d: %v", i, err)
		}
	}
	// Different mint and interval must not bleed in.
	s.Upsert(ctx, candle("mintB", model.Interval1m, 60_000, 1, 1, 1, 1, 1, 1))
	s.Upsert(ctx, candle("mintA", model.Interval5m, 300_000, 1, 1, 1, 1, 1, 1))

	rows, err := s.FindRecent(ctx, "mintA", model.Interval1m, 3)
	if err != nil {
		t.Fatalf("find recent: %v", err)
	}
	if len(rows) != 3 {
		t.Fatalf("expected 3 rows, got %d", len(rows))
	}
	for i, wantBucket := range []int64{300_000, 240_000, 180_000} {
		if rows[i].BucketStartMs != wantBucket {
			t.Errorf("row %d bucket = %d, want %d (newest first)", i, rows[i].BucketStartMs, wantBucket)
		}
	}
}

func TestFindLatest_Before(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	s.Upsert(ctx, candle("mintA", model.Interval1m, 60_000, 1, 1, 1, 1, 1, 1))
	s.Upsert(ctx, candle("mintA", model.Interval1m, 120_000, 1, 1, 1, 2, 1, 1))

	got, ok, err := s.FindLatest(ctx, "mintA", model.Interval1m, 120_000)
	if err != nil {
		t.Fatalf("find latest: %v", err)
	}
	if !ok || got.BucketStartMs != 60_000 {
		t.Errorf("beforeMs bound not strict: got %+v ok=%v", got, ok)
	}

	_, ok, err = s.FindLatest(ctx, "mintA", model.Interval1m, 60_000)
	if err != nil {
		t.Fatalf("find latest: %v", err)
	}
	if ok {
		t.Error("expected no candle strictly before the first bucket")
	}
}

func TestFindLatest_Missing(t *testing.T) {
	s := openTestStore(t)

	_, ok, err := s.FindLatest(context.Background(), "nope", model.Interval1s, 0)
	if err != nil {
		t.Fatalf("find latest: %v", err)
	}
	if ok {
		t.Error("expected ok=false for unknown mint")
	}
}
