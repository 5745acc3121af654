// cmd/aggregator — the candle aggregation service.
//
// Pipeline: [tick stream] → [1s live candle] → [finalize + cascade] →
// [SQLite candle store + Pub/Sub broadcast]. Ticks are processed strictly
// sequentially; the stream cursor only advances as fast as downstream stores
// accept writes, so backpressure is end-to-end.
package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"candlefeed/config"
	"candlefeed/internal/agg"
	"candlefeed/internal/candlestore"
	"candlefeed/internal/livestore"
	"candlefeed/internal/logger"
	"candlefeed/internal/metrics"
	"candlefeed/internal/model"
	"candlefeed/internal/oracle"
	"candlefeed/internal/publish"
	"candlefeed/internal/stream"
)

// timedStore records upsert latency around the persistent store.
type timedStore struct {
	store *candlestore.Store
	prom  *metrics.Metrics
}

func (s timedStore) Upsert(ctx context.Context, c model.Candle) error {
	start := time.Now()
	err := s.store.Upsert(ctx, c)
	s.prom.UpsertDur.Observe(time.Since(start).Seconds())
	return err
}

func main() {
	log.SetFlags(log.LstdFlags | log.Lmicroseconds | log.Lshortfile)

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("[aggregator] config: %v", err)
	}

	slogger := logger.Init("aggregator", logger.ParseLevel(cfg.LogLevel))
	slogger.Info("starting", "stream", cfg.TickStreamKey, "redis", cfg.RedisAddr)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	prom := metrics.New()
	health := metrics.NewHealthStatus()
	metricsSrv := metrics.NewServer(cfg.MetricsAddr, health)
	metricsSrv.Start()

	// ---- Stores ----
	store, err := candlestore.Open(cfg.SQLitePath)
	if err != nil {
		log.Fatalf("[aggregator] sqlite init failed: %v", err)
	}
	defer store.Close()
	health.SetSQLiteOK(true)

	live, err := livestore.Dial(cfg.RedisAddr, cfg.RedisPassword, cfg.RedisDB)
	if err != nil {
		log.Fatalf("[aggregator] redis init failed: %v", err)
	}
	defer live.Close()
	health.SetRedisConnected(true)

	health.StartLivenessChecker(ctx, live.Client(), store.DB(), 10*time.Second)

	// ---- Oracle ----
	rates := oracle.New(cfg.OracleURL, cfg.OracleTTL())
	rates.OnBreakerChange = func(_, to oracle.State) {
		prom.OracleBreakerState.Set(float64(to))
	}

	// ---- Aggregator ----
	pub := publish.NewRedis(live.Client())
	aggregator := agg.New(live, timedStore{store, prom}, pub, rates)
	aggregator.OnLateTick = func() { prom.TicksLate.Inc() }
	aggregator.OnFinalized = func(iv model.Interval) {
		prom.CandlesFinalized.WithLabelValues(string(iv)).Inc()
	}

	// ---- Consume loop ----
	consumer := stream.NewConsumer(live.Client(), stream.ConsumerConfig{
		StreamKey: cfg.TickStreamKey,
		Block:     cfg.StreamBlock(),
		Backoff:   cfg.StreamBackoff(),
	}, func(ctx context.Context, t model.Tick) {
		health.SetLastTickTime(time.Now())
		start := time.Now()
		aggregator.ApplyTick(ctx, model.Interval1s, t)
		prom.ApplyDur.Observe(time.Since(start).Seconds())
	})
	consumer.OnTick = func() { prom.TicksTotal.Inc() }
	consumer.OnMalformed = func() { prom.TicksMalformed.Inc() }

	done := make(chan struct{})
	go func() {
		defer close(done)
		if err := consumer.Run(ctx); err != nil && ctx.Err() == nil {
			log.Printf("[aggregator] consumer exited: %v", err)
		}
	}()

	log.Println("[aggregator] pipeline ready")

	// ---- Wait for shutdown signal ----
	<-sigCh
	log.Println("[aggregator] shutdown signal received, cleaning up...")
	cancel()
	<-done

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()
	metricsSrv.Stop(shutdownCtx)

	log.Println("[aggregator] shutdown complete.")
}
