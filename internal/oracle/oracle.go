// Package oracle provides the cached SOL/USD conversion rate used to price
// candles in USD terms. The rate is refreshed from an external HTTP source at
// most once per TTL; the fetch runs behind a circuit breaker so a flapping
// upstream cannot stall the tick pipeline. A zero rate is a soft failure:
// price conversions degrade to 0 and the aggregator keeps running.
package oracle

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"sync"
	"time"
)

// RateSource supplies the current SOL/USD rate. Implementations never block
// the caller beyond one bounded HTTP round trip.
type RateSource interface {
	SolUsd() float64
}

const (
	fetchTimeout = 3 * time.Second

	breakerMaxFailures  = 5
	breakerResetTimeout = 30 * time.Second
)

// Oracle caches the upstream USD rate with a TTL (default 30s).
type Oracle struct {
	url    string
	ttl    time.Duration
	client *http.Client
	cb     *breaker

	mu        sync.Mutex
	rate      float64
	fetchedAt time.Time

	// OnBreakerChange is forwarded to the circuit breaker (optional).
	OnBreakerChange func(from, to State)
}

// New creates an oracle polling the given URL with the given cache TTL.
func New(url string, ttl time.Duration) *Oracle {
	o := &Oracle{
		url:    url,
		ttl:    ttl,
		client: &http.Client{Timeout: fetchTimeout},
		cb:     newBreaker(breakerMaxFailures, breakerResetTimeout),
	}
	o.cb.OnStateChange = func(from, to State) {
		log.Printf("[oracle] circuit breaker %s -> %s", from, to)
		if o.OnBreakerChange != nil {
			o.OnBreakerChange(from, to)
		}
	}
	return o
}

// SolUsd returns the cached rate, refreshing it when stale. On fetch failure
// or open breaker the previous cached value is served; before the first
// successful fetch that value is 0.
func (o *Oracle) SolUsd() float64 {
	o.mu.Lock()
	defer o.mu.Unlock()

	if time.Since(o.fetchedAt) < o.ttl {
		return o.rate
	}

	err := o.cb.execute(func() error {
		rate, err := o.fetch()
		if err != nil {
			return err
		}
		o.rate = rate
		o.fetchedAt = time.Now()
		return nil
	})
	if err != nil && err != ErrCircuitOpen {
		log.Printf("[oracle] rate fetch failed: %v (serving cached %.4f)", err, o.rate)
	}
	return o.rate
}

// BreakerState exposes the breaker state for health reporting.
func (o *Oracle) BreakerState() State {
	return o.cb.currentState()
}

func (o *Oracle) fetch() (float64, error) {
	ctx, cancel := context.WithTimeout(context.Background(), fetchTimeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, o.url, nil)
	if err != nil {
		return 0, fmt.Errorf("build rate request: %w", err)
	}
	resp, err := o.client.Do(req)
	if err != nil {
		return 0, fmt.Errorf("fetch rate: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return 0, fmt.Errorf("rate source returned %d", resp.StatusCode)
	}

	// Expected shape: {"solana":{"usd":123.45}}
	var body struct {
		Solana struct {
			USD float64 `json:"usd"`
		} `json:"solana"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return 0, fmt.Errorf("decode rate response: %w", err)
	}
	if body.Solana.USD <= 0 {
		return 0, fmt.Errorf("rate source returned non-positive rate %v", body.Solana.USD)
	}
	return body.Solana.USD, nil
}

// Static is a fixed-rate source for tests and offline runs.
type Static float64

func (s Static) SolUsd() float64 { return float64(s) }
