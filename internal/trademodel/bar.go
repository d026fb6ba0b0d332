package trademodel

import (
	"fmt"
	"regexp"
	"time"

	"github.com/shopspring/decimal"
)

var barTypePattern = regexp.MustCompile(`^[a-z0-9_.]+$`)

// EWMAState is the sole metadata variant a bar carries today: the
// exponentially-weighted moving average state an information-driven
// builder needs to resume without a cold start. It is modeled as a
// concrete type — not an open-ended map — because the core only ever
// reads and writes EWMA state through a bar's metadata; see DESIGN.md.
type EWMAState struct {
	Window   int     `json:"ewma_window"`
	Expected float64 `json:"ewma_expected"`
}

// Bar is a completed OHLCV summary over a contiguous run of trades.
type Bar struct {
	TimeStart    time.Time
	TimeEnd      time.Time
	BarType      string
	Source       string
	Pair         string
	Open         decimal.Decimal
	High         decimal.Decimal
	Low          decimal.Decimal
	Close        decimal.Decimal
	VWAP         decimal.Decimal
	Volume       decimal.Decimal
	DollarVolume decimal.Decimal
	TickCount    int64
	Metadata     *EWMAState // nil for standard (non-adaptive) bars
}

// TimeSpan is time_end - time_start.
func (b Bar) TimeSpan() time.Duration {
	return b.TimeEnd.Sub(b.TimeStart)
}

// Validate checks the universal bar invariants from §3/§8 of the spec.
func (b Bar) Validate() error {
	lo, hi := b.Low, b.High
	for _, p := range []struct {
		name string
		v    decimal.Decimal
	}{{"open", b.Open}, {"close", b.Close}, {"vwap", b.VWAP}} {
		if p.v.LessThan(lo) || p.v.GreaterThan(hi) {
			return fmt.Errorf("bar %s %s: %s=%s outside [low=%s, high=%s]", b.BarType, b.Pair, p.name, p.v, lo, hi)
		}
	}
	if b.TickCount < 1 {
		return fmt.Errorf("bar %s %s: tick_count must be >= 1, got %d", b.BarType, b.Pair, b.TickCount)
	}
	if b.Volume.IsNegative() {
		return fmt.Errorf("bar %s %s: volume must be >= 0, got %s", b.BarType, b.Pair, b.Volume)
	}
	if b.DollarVolume.IsNegative() {
		return fmt.Errorf("bar %s %s: dollar_volume must be >= 0, got %s", b.BarType, b.Pair, b.DollarVolume)
	}
	if b.TimeEnd.Before(b.TimeStart) {
		return fmt.Errorf("bar %s %s: time_end %s before time_start %s", b.BarType, b.Pair, b.TimeEnd, b.TimeStart)
	}
	return nil
}

// ValidBarType reports whether s is a legal bar-type label for use in a
// storage table name (see §6's identifier-injection guard).
func ValidBarType(s string) bool {
	return barTypePattern.MatchString(s)
}

// ValidPair reports whether s is a legal trading-pair label.
func ValidPair(s string) bool {
	return pairPattern.MatchString(s)
}
