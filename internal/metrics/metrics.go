package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Metrics holds all Prometheus metrics for the candle pipeline.
type Metrics struct {
	TicksTotal     prometheus.Counter
	TicksMalformed prometheus.Counter
	TicksLate      prometheus.Counter

	CandlesFinalized *prometheus.CounterVec // labels: interval
	UpsertDur        prometheus.Histogram
	ApplyDur         prometheus.Histogram

	OracleBreakerState prometheus.Gauge // 0=closed, 1=open, 2=half-open

	WSClients      prometheus.Gauge
	BroadcastTotal prometheus.Counter
	BroadcastDrops prometheus.Counter

	QueryDur prometheus.Histogram
}

// New registers and returns all pipeline metrics.
func New() *Metrics {
	m := &Metrics{
		TicksTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "candlefeed_ticks_total",
			Help: "Total ticks read from the tick stream",
		}),
		TicksMalformed: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "candlefeed_ticks_malformed_total",
			Help: "Stream entries skipped because they failed to parse or validate",
		}),
		TicksLate: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "candlefeed_ticks_late_total",
			Help: "Ticks dropped because their bucket was behind the live bucket",
		}),
		CandlesFinalized: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "candlefeed_candles_finalized_total",
			Help: "Finalized candles persisted (by interval)",
		}, []string{"interval"}),
		UpsertDur: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "candlefeed_upsert_duration_seconds",
			Help:    "Persistent candle upsert latency",
			Buckets: prometheus.DefBuckets,
		}),
		ApplyDur: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "candlefeed_apply_tick_duration_seconds",
			Help:    "Per-tick aggregation latency including cascade",
			Buckets: []float64{0.0001, 0.0005, 0.001, 0.005, 0.01, 0.05, 0.1, 0.5},
		}),
		OracleBreakerState: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "candlefeed_oracle_breaker_state",
			Help: "USD oracle circuit breaker state (0=closed, 1=open, 2=half-open)",
		}),
		WSClients: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "candlefeed_ws_clients",
			Help: "Connected WebSocket clients",
		}),
		BroadcastTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "candlefeed_broadcasts_total",
			Help: "Candle updates fanned out to WebSocket clients",
		}),
		BroadcastDrops: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "candlefeed_broadcast_drops_total",
			Help: "Frames dropped because a client send queue was full",
		}),
		QueryDur: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "candlefeed_query_duration_seconds",
			Help:    "GET /candles latency",
			Buckets: prometheus.DefBuckets,
		}),
	}

	prometheus.MustRegister(
		m.TicksTotal,
		m.TicksMalformed,
		m.TicksLate,
		m.CandlesFinalized,
		m.UpsertDur,
		m.ApplyDur,
		m.OracleBreakerState,
		m.WSClients,
		m.BroadcastTotal,
		m.BroadcastDrops,
		m.QueryDur,
	)

	return m
}
