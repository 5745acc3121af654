// cmd/tickgen — Synthetic tick producer for staging.
// Appends random-walk trade ticks to the Redis tick stream so the aggregator
// pipeline can be exercised without the trade-processing layer.
//
// Config (env vars, on top of the shared REDIS_* / TICK_STREAM_KEY config):
//
//	TICKGEN_MINTS        — comma-separated mint addresses (default: two fake mints)
//	TICKGEN_INTERVAL_MS  — milliseconds between ticks per mint (default: "100")
package main

import (
	"context"
	"log"
	"math/rand"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"
	"time"

	"candlefeed/config"
	"candlefeed/internal/livestore"
	"candlefeed/internal/model"
	"candlefeed/internal/stream"
)

var sides = []model.Side{model.SideBuy, model.SideSell, model.SideBuy, model.SideBuy}

// mintState holds per-mint simulation state. Prices are in SOL per token,
// starting tiny the way fresh launches do.
type mintState struct {
	Mint  string
	Price float64
}

// walkPrice applies a ±0.5% random walk with a floor so the price never
// collapses to zero.
func walkPrice(p float64) float64 {
	pct := (rand.Float64() - 0.5) / 100.0
	next := p * (1 + pct)
	if next < 1e-12 {
		next = 1e-12
	}
	return next
}

func main() {
	log.SetFlags(log.LstdFlags | log.Lmicroseconds | log.Lshortfile)
	log.Println("[tickgen] starting synthetic tick producer...")

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("[tickgen] config: %v", err)
	}

	mintsEnv := envOrDefault("TICKGEN_MINTS", "So11111111111111111111111111111111111111112,FakeMint1111111111111111111111111111111111")
	intervalMs := envIntOrDefault("TICKGEN_INTERVAL_MS", 100)

	var mints []mintState
	for _, part := range strings.Split(mintsEnv, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		mints = append(mints, mintState{Mint: part, Price: 1e-6 * (1 + rand.Float64())})
	}
	if len(mints) == 0 {
		log.Fatalf("[tickgen] no mints configured via TICKGEN_MINTS")
	}
	log.Printf("[tickgen] mints: %d  interval: %dms  stream: %s", len(mints), intervalMs, cfg.TickStreamKey)

	live, err := livestore.Dial(cfg.RedisAddr, cfg.RedisPassword, cfg.RedisDB)
	if err != nil {
		log.Fatalf("[tickgen] redis init failed: %v", err)
	}
	defer live.Close()

	producer := stream.NewProducer(live.Client(), cfg.TickStreamKey)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigCh
		log.Println("[tickgen] shutdown signal received")
		cancel()
	}()

	ticker := time.NewTicker(time.Duration(intervalMs) * time.Millisecond)
	defer ticker.Stop()

	var produced int64
	for {
		select {
		case <-ctx.Done():
			log.Printf("[tickgen] done, produced %d ticks", produced)
			return
		case <-ticker.C:
			for i := range mints {
				mints[i].Price = walkPrice(mints[i].Price)
				t := model.Tick{
					Mint:        mints[i].Mint,
					Price:       mints[i].Price,
					QtyQuote:    rand.Float64() * 2,
					TimestampMs: time.Now().UnixMilli(),
					Side:        sides[rand.Intn(len(sides))],
				}
				if _, err := producer.Append(ctx, t); err != nil {
					log.Printf("[tickgen] append error: %v", err)
					continue
				}
				produced++
				if produced%1000 == 0 {
					log.Printf("[tickgen] produced %d ticks (last %s @ %g)", produced, t.Mint, t.Price)
				}
			}
		}
	}
}

func envOrDefault(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func envIntOrDefault(key string, def int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return def
}
