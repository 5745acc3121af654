package model

// Interval identifies a candle timeframe. The set is fixed: 1s is the only
// interval built directly from raw ticks; every other interval is built by
// cascading finalized 1s candles.
type Interval string

const (
	Interval1s  Interval = "1s"
	Interval1m  Interval = "1m"
	Interval5m  Interval = "5m"
	Interval15m Interval = "15m"
	Interval1h  Interval = "1h"
	Interval4h  Interval = "4h"
	Interval8h  Interval = "8h"
	Interval12h Interval = "12h"
	Interval24h Interval = "24h"
)

var intervalMs = map[Interval]int64{
	Interval1s:  1_000,
	Interval1m:  60_000,
	Interval5m:  300_000,
	Interval15m: 900_000,
	Interval1h:  3_600_000,
	Interval4h:  14_400_000,
	Interval8h:  28_800_000,
	Interval12h: 43_200_000,
	Interval24h: 86_400_000,
}

// allIntervals is ordered shortest to longest.
var allIntervals = []Interval{
	Interval1s, Interval1m, Interval5m, Interval15m,
	Interval1h, Interval4h, Interval8h, Interval12h, Interval24h,
}

// cascadeIntervals are the targets of the 1s rollup fan-out.
var cascadeIntervals = allIntervals[1:]

// DurationMs returns the interval duration in milliseconds, or 0 for an
// unknown interval.
func (iv Interval) DurationMs() int64 {
	return intervalMs[iv]
}

// Valid reports whether iv is one of the recognized intervals.
func (iv Interval) Valid() bool {
	_, ok := intervalMs[iv]
	return ok
}

// ParseInterval validates s against the recognized set.
func ParseInterval(s string) (Interval, bool) {
	iv := Interval(s)
	return iv, iv.Valid()
}

// Intervals returns every recognized interval, shortest first.
func Intervals() []Interval {
	return allIntervals
}

// CascadeIntervals returns the intervals fed by the 1s cascade, shortest first.
func CascadeIntervals() []Interval {
	return cascadeIntervals
}

// AlignBucket left-aligns a millisecond timestamp to the interval boundary.
// Bucket boundaries are global (epoch-aligned), not relative to stream start.
func AlignBucket(tsMs int64, iv Interval) int64 {
	d := iv.DurationMs()
	if d <= 0 {
		return 0
	}
	return tsMs - tsMs%d
}
