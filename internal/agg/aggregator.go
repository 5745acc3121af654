// Package agg implements the candle aggregation engine: raw trade ticks fold
// into a live 1s candle per mint; a bucket rollover finalizes the old candle
// into the persistent store and cascades it into every higher timeframe.
//
// All mutation of live candles happens on the single consume-loop goroutine,
// so no locking is needed: the live store has one writer. Aggregation errors
// are absorbed and logged where they occur; a bad tick or a failed write for
// one bucket must never halt processing for other mints and intervals.
package agg

import (
	"context"
	"log"

	"candlefeed/internal/livestore"
	"candlefeed/internal/model"
	"candlefeed/internal/oracle"
	"candlefeed/internal/publish"
)

// CandleStore is the persistent finalized-candle sink. Upsert must be atomic
// and must never overwrite the open of an existing bucket.
type CandleStore interface {
	Upsert(ctx context.Context, c model.Candle) error
}

// Aggregator owns the live candles for every (mint, interval) pair.
type Aggregator struct {
	live  livestore.Store
	store CandleStore
	pub   publish.Publisher
	rates oracle.RateSource

	// Metrics hooks (optional, set externally)
	OnLateTick  func()
	OnFinalized func(iv model.Interval)
}

// New wires the aggregator to its collaborators.
func New(live livestore.Store, store CandleStore, pub publish.Publisher, rates oracle.RateSource) *Aggregator {
	return &Aggregator{
		live:  live,
		store: store,
		pub:   pub,
		rates: rates,
	}
}

// ApplyTick folds one tick into the live candle for (t.Mint, iv). The raw
// price is converted to USD before it touches any OHLC field. Only the 1s
// interval is fed raw ticks; higher intervals are fed by the cascade.
func (a *Aggregator) ApplyTick(ctx context.Context, iv model.Interval, t model.Tick) {
	bucket := model.AlignBucket(t.TimestampMs, iv)
	if bucket <= 0 {
		log.Printf("[agg] invalid bucket %d for tick mint=%s ts=%d iv=%s, skipping", bucket, t.Mint, t.TimestampMs, iv)
		return
	}

	priceUsd := t.Price * a.rates.SolUsd()

	cur, ok, err := a.live.Get(ctx, t.Mint, iv)
	if err != nil {
		log.Printf("[agg] live get %s:%s failed: %v, skipping tick", t.Mint, iv, err)
		return
	}

	switch {
	case !ok:
		// Cold start: first tick opens the bucket.
		a.putAndPublish(ctx, model.Candle{
			Mint:          t.Mint,
			Interval:      iv,
			BucketStartMs: bucket,
			Open:          priceUsd,
			High:          priceUsd,
			Low:           priceUsd,
			Close:         priceUsd,
			Volume:        t.QtyQuote,
			TxCount:       1,
		})

	case bucket < cur.BucketStartMs:
		// Late tick: its bucket is already behind the live one. Reopening a
		// sealed bucket would corrupt it, so the tick is dropped and counted.
		if a.OnLateTick != nil {
			a.OnLateTick()
		}
		log.Printf("[agg] late tick dropped mint=%s iv=%s tick bucket=%d live bucket=%d", t.Mint, iv, bucket, cur.BucketStartMs)

	case bucket > cur.BucketStartMs:
		// Rollover: seal the old bucket, then open the new one. The new open
		// is the previous close, not the tick price: candles never gap.
		a.finalize(ctx, cur, iv)
		a.putAndPublish(ctx, model.Candle{
			Mint:          t.Mint,
			Interval:      iv,
			BucketStartMs: bucket,
			Open:          cur.Close,
			High:          max(cur.Close, priceUsd),
			Low:           min(cur.Close, priceUsd),
			Close:         priceUsd,
			Volume:        t.QtyQuote,
			TxCount:       1,
		})

	default:
		// Same bucket: merge the tick in place.
		cur.High = max(cur.High, priceUsd)
		cur.Low = min(cur.Low, priceUsd)
		cur.Close = priceUsd
		cur.Volume += t.QtyQuote
		cur.TxCount++
		a.putAndPublish(ctx, cur)
	}
}

// finalize seals a live-candle snapshot: re-align its bucket defensively,
// upsert into the persistent store, publish with isFinal=true, and — only for
// a 1s candle — cascade into the higher timeframes. origin is the interval
// whose rollover triggered this call; the cascade only ever originates from
// 1s, so finalize can never re-enter itself through rollup.
func (a *Aggregator) finalize(ctx context.Context, snap model.Candle, origin model.Interval) {
	bucket := model.AlignBucket(snap.BucketStartMs, snap.Interval)
	if bucket <= 0 {
		log.Printf("[agg] finalize %s: invalid bucket %d, skipping", snap.Key(), bucket)
		return
	}
	snap.BucketStartMs = bucket

	if err := a.store.Upsert(ctx, snap); err != nil {
		// Local recovery: the durable write for this bucket is lost for now,
		// but a stream replay can repair it since finalize is an upsert.
		// The cascade is skipped so higher timeframes never absorb state the
		// store did not accept.
		log.Printf("[agg] finalize %s@%d persist failed: %v, cascade skipped", snap.Key(), bucket, err)
		return
	}

	a.publishUpdate(ctx, snap, true)
	if a.OnFinalized != nil {
		a.OnFinalized(snap.Interval)
	}

	if snap.Interval == model.Interval1s && origin == model.Interval1s {
		a.cascade(ctx, snap)
	}
}

// cascade folds a finalized 1s candle into every higher timeframe. The
// targets are independent of each other; a failure in one is logged and the
// rest still run. All of it happens on the consume-loop goroutine, so the
// cascade is part of the per-tick critical path and backpressure is
// end-to-end.
func (a *Aggregator) cascade(ctx context.Context, c1s model.Candle) {
	for _, tf := range model.CascadeIntervals() {
		a.rollup(ctx, tf, c1s)
	}
}

// rollup merges one finalized 1s candle into the live candle for (mint, tf).
func (a *Aggregator) rollup(ctx context.Context, tf model.Interval, in model.Candle) {
	bucket := model.AlignBucket(in.BucketStartMs, tf)
	if bucket <= 0 {
		log.Printf("[agg] rollup %s iv=%s: invalid bucket %d, skipping", in.Mint, tf, bucket)
		return
	}

	cur, ok, err := a.live.Get(ctx, in.Mint, tf)
	if err != nil {
		log.Printf("[agg] rollup live get %s:%s failed: %v, skipping", in.Mint, tf, err)
		return
	}

	if ok && bucket < cur.BucketStartMs {
		// Cannot happen while 1s candles arrive in order; guarded anyway so
		// a replayed stream cannot corrupt an advanced bucket.
		if a.OnLateTick != nil {
			a.OnLateTick()
		}
		log.Printf("[agg] stale rollup dropped mint=%s iv=%s bucket=%d live bucket=%d", in.Mint, tf, bucket, cur.BucketStartMs)
		return
	}

	if ok && bucket == cur.BucketStartMs {
		// Same bucket: lossless merge. Volume and count are additive,
		// high/low are running extrema, the later close wins.
		cur.High = max(cur.High, in.High)
		cur.Low = min(cur.Low, in.Low)
		cur.Close = in.Close
		cur.Volume += in.Volume
		cur.TxCount += in.TxCount
		a.putAndPublish(ctx, cur)
		return
	}

	if ok {
		// Rollover of the higher timeframe. finalize will not cascade again:
		// tf is never 1s here.
		a.finalize(ctx, cur, tf)
	}

	// Cold start or rollover: seed the new bucket directly from the 1s
	// candle's own OHLCV.
	a.putAndPublish(ctx, model.Candle{
		Mint:          in.Mint,
		Interval:      tf,
		BucketStartMs: bucket,
		Open:          in.Open,
		High:          in.High,
		Low:           in.Low,
		Close:         in.Close,
		Volume:        in.Volume,
		TxCount:       in.TxCount,
	})
}

// putAndPublish stores the live candle and publishes it as a non-final
// update. A live-store failure does not suppress the publish: subscribers
// still see the freshest values.
func (a *Aggregator) putAndPublish(ctx context.Context, c model.Candle) {
	if err := a.live.Put(ctx, c); err != nil {
		log.Printf("[agg] live put %s failed: %v", c.Key(), err)
	}
	a.publishUpdate(ctx, c, false)
}

func (a *Aggregator) publishUpdate(ctx context.Context, c model.Candle, final bool) {
	if err := a.pub.Publish(ctx, model.NewUpdate(c, final)); err != nil {
		log.Printf("[agg] publish %s final=%v failed: %v", c.Key(), final, err)
	}
}
