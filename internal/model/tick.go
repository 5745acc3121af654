package model

import "fmt"

// Side classifies the trade that produced a tick.
type Side string

const (
	SideBuy       Side = "buy"
	SideSell      Side = "sell"
	SideShort     Side = "short"
	SideClose     Side = "close"
	SideLiquidate Side = "liquidate"
	SideLiquidity Side = "liquidity"
)

// Tick is a single trade event consumed from the tick stream.
// Price is the raw base-asset price; it is converted to USD before it is
// folded into any candle. QtyQuote is the quote-side volume of the trade.
type Tick struct {
	Mint        string  `json:"mint"`
	Price       float64 `json:"price"`
	QtyQuote    float64 `json:"qtyQuote"`
	TimestampMs int64   `json:"ts"`
	Side        Side    `json:"side"`
}

// Validate rejects ticks that must never reach the aggregator: empty mint or
// a non-positive timestamp. Unknown sides are tolerated since they do not
// affect OHLCV math.
func (t *Tick) Validate() error {
	if t.Mint == "" {
		return fmt.Errorf("tick missing mint")
	}
	if t.TimestampMs <= 0 {
		return fmt.Errorf("tick has invalid timestamp %d", t.TimestampMs)
	}
	return nil
}
