// cmd/api — read-side API: the candle query HTTP endpoint and the WebSocket
// fan-out of live candle updates.
package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"candlefeed/config"
	"candlefeed/internal/candlestore"
	"candlefeed/internal/gateway"
	"candlefeed/internal/livestore"
	"candlefeed/internal/logger"
	"candlefeed/internal/metrics"
	"candlefeed/internal/query"

	"github.com/go-chi/chi/v5"
	"github.com/gorilla/websocket"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin:     func(_ *http.Request) bool { return true },
}

func main() {
	log.SetFlags(log.LstdFlags | log.Lmicroseconds | log.Lshortfile)

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("[api] config: %v", err)
	}

	slogger := logger.Init("api", logger.ParseLevel(cfg.LogLevel))
	slogger.Info("starting", "addr", cfg.APIAddr, "redis", cfg.RedisAddr)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	prom := metrics.New()
	health := metrics.NewHealthStatus()
	metricsSrv := metrics.NewServer(cfg.MetricsAddr, health)
	metricsSrv.Start()

	// ---- Stores (read-only here) ----
	store, err := candlestore.Open(cfg.SQLitePath)
	if err != nil {
		log.Fatalf("[api] sqlite init failed: %v", err)
	}
	defer store.Close()
	health.SetSQLiteOK(true)

	live, err := livestore.Dial(cfg.RedisAddr, cfg.RedisPassword, cfg.RedisDB)
	if err != nil {
		log.Fatalf("[api] redis init failed: %v", err)
	}
	defer live.Close()
	health.SetRedisConnected(true)

	health.StartLivenessChecker(ctx, live.Client(), store.DB(), 10*time.Second)

	// ---- WebSocket gateway ----
	hub := gateway.NewHub(live.Client())
	hub.OnBroadcast = func() { prom.BroadcastTotal.Inc() }
	hub.OnSlowDrop = func() { prom.BroadcastDrops.Inc() }
	go hub.Run(ctx)

	go func() {
		ticker := time.NewTicker(5 * time.Second)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				prom.WSClients.Set(float64(hub.ClientCount()))
			}
		}
	}()

	// ---- HTTP router ----
	svc := query.NewService(store, live)
	handler := query.NewHandler(svc, slogger)

	r := chi.NewRouter()
	r.Use(func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
			start := time.Now()
			next.ServeHTTP(w, req)
			prom.QueryDur.Observe(time.Since(start).Seconds())
		})
	})
	handler.Mount(r)
	r.Get("/ws", func(w http.ResponseWriter, req *http.Request) {
		conn, err := upgrader.Upgrade(w, req, nil)
		if err != nil {
			log.Printf("[api] ws upgrade error: %v", err)
			return
		}
		hub.Register(conn)
	})

	srv := &http.Server{Addr: cfg.APIAddr, Handler: r}
	go func() {
		log.Printf("[api] listening on %s", cfg.APIAddr)
		if err := srv.ListenAndServe(); err != http.ErrServerClosed {
			log.Fatalf("[api] server error: %v", err)
		}
	}()

	// ---- Wait for shutdown signal ----
	<-sigCh
	log.Println("[api] shutdown signal received, cleaning up...")
	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()
	srv.Shutdown(shutdownCtx)
	metricsSrv.Stop(shutdownCtx)

	log.Println("[api] shutdown complete.")
}
