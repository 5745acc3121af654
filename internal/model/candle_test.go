package model

import (
	"encoding/json"
	"math"
	"testing"
	"time"
)

func TestNewUpdate(t *testing.T) {
	c := Candle{
		Mint: "mintA", Interval: Interval1m, BucketStartMs: 60_000,
		Open: 1, High: 2, Low: 0.5, Close: 1.5, Volume: 10, TxCount: 3,
	}
	u := NewUpdate(c, true)

	if u.StartTime != time.UnixMilli(60_000).UTC().Format(time.RFC3339Nano) {
		t.Errorf("startTime = %q", u.StartTime)
	}
	if !u.IsFinal {
		t.Error("isFinal not carried")
	}
	if u.Channel() != "pub:candle:1m:mintA" {
		t.Errorf("channel = %q", u.Channel())
	}

	var decoded Update
	if err := json.Unmarshal(u.JSON(), &decoded); err != nil {
		t.Fatalf("round trip: %v", err)
	}
	if decoded != u {
		t.Errorf("round trip mismatch: %+v != %+v", decoded, u)
	}
}

func TestUpdateJSON_NonFiniteDoesNotPanic(t *testing.T) {
	u := Update{Mint: "mintA", Interval: Interval1s, Close: math.NaN()}
	if b := u.JSON(); len(b) != 0 {
		t.Errorf("expected empty payload for unmarshalable update, got %q", b)
	}
}
