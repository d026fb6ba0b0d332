package trademodel

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
)

func mustDecimalPlain(s string) decimal.Decimal {
	d, _ := decimal.NewFromString(s)
	return d
}

func validBar() Bar {
	start := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	return Bar{
		TimeStart: start,
		TimeEnd:   start.Add(time.Second),
		BarType:   "tick_4",
		Pair:      "ETH-USD",
		Open:      mustDecimalPlain("100"),
		High:      mustDecimalPlain("110"),
		Low:       mustDecimalPlain("90"),
		Close:     mustDecimalPlain("105"),
		VWAP:      mustDecimalPlain("104.5"),
		Volume:    mustDecimalPlain("5"),
		TickCount: 4,
	}
}

func TestBarValidate(t *testing.T) {
	b := validBar()
	b.Open = mustDecimalPlain("100")
	b.High = mustDecimalPlain("110")
	b.Low = mustDecimalPlain("90")
	b.Close = mustDecimalPlain("105")
	b.VWAP = mustDecimalPlain("104.5")

	if err := b.Validate(); err != nil {
		t.Fatalf("Validate() on well-formed bar: %v", err)
	}

	outside := b
	outside.Close = mustDecimalPlain("200")
	if err := outside.Validate(); err == nil {
		t.Error("Validate() should reject close outside [low, high]")
	}

	noTicks := b
	noTicks.TickCount = 0
	if err := noTicks.Validate(); err == nil {
		t.Error("Validate() should reject tick_count < 1")
	}

	negVolume := b
	negVolume.Volume = mustDecimalPlain("-1")
	if err := negVolume.Validate(); err == nil {
		t.Error("Validate() should reject negative volume")
	}

	backwards := b
	backwards.TimeEnd = backwards.TimeStart.Add(-time.Second)
	if err := backwards.Validate(); err == nil {
		t.Error("Validate() should reject time_end before time_start")
	}
}

func TestBarTimeSpan(t *testing.T) {
	b := validBar()
	if got := b.TimeSpan(); got != time.Second {
		t.Errorf("TimeSpan() = %s, want %s", got, time.Second)
	}
}

func TestValidBarType(t *testing.T) {
	cases := map[string]bool{
		"tick_500":  true,
		"tib_20":    true,
		"time_5m":   true,
		"bars.x":    true,
		"Tick_500":  false,
		"tick 500":  false,
		"":          false,
	}
	for in, want := range cases {
		if got := ValidBarType(in); got != want {
			t.Errorf("ValidBarType(%q) = %v, want %v", in, got, want)
		}
	}
}

func TestValidPair(t *testing.T) {
	cases := map[string]bool{
		"ETH-USD": true,
		"BTC-USD": true,
		"ethusd":  false,
		"ETH_USD": false,
		"":        false,
	}
	for in, want := range cases {
		if got := ValidPair(in); got != want {
			t.Errorf("ValidPair(%q) = %v, want %v", in, got, want)
		}
	}
}
