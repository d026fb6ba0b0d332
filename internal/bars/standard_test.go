package bars

import (
	"testing"
	"time"

	"arcana/internal/trademodel"

	"github.com/shopspring/decimal"
)

func d(s string) decimal.Decimal {
	v, err := decimal.NewFromString(s)
	if err != nil {
		panic(err)
	}
	return v
}

func trade(offset time.Duration, price, size string) trademodel.Trade {
	base := time.Date(2026, 1, 1, 14, 0, 0, 0, time.UTC)
	return trademodel.Trade{
		Timestamp: base.Add(offset),
		Source:    "coinbase",
		Pair:      "ETH-USD",
		Price:     d(price),
		Size:      d(size),
		Side:      trademodel.SideUnknown,
	}
}

// Scenario 1: Tick bar OHLCV.
func TestTickBarBuilder_OHLCV(t *testing.T) {
	b, err := NewTickBarBuilder("coinbase", "ETH-USD", 4)
	if err != nil {
		t.Fatal(err)
	}
	trades := []trademodel.Trade{
		trade(0, "100", "1"),
		trade(time.Second, "110", "2"),
		trade(2*time.Second, "90", "0.5"),
		trade(3*time.Second, "105", "1.5"),
	}
	out := b.ProcessTrades(trades)
	if len(out) != 1 {
		t.Fatalf("got %d bars, want 1", len(out))
	}
	bar := out[0]
	if !bar.Open.Equal(d("100")) || !bar.High.Equal(d("110")) || !bar.Low.Equal(d("90")) || !bar.Close.Equal(d("105")) {
		t.Errorf("OHLC = %s/%s/%s/%s", bar.Open, bar.High, bar.Low, bar.Close)
	}
	if !bar.Volume.Equal(d("5.0")) {
		t.Errorf("Volume = %s, want 5.0", bar.Volume)
	}
	if !bar.DollarVolume.Equal(d("522.5")) {
		t.Errorf("DollarVolume = %s, want 522.5", bar.DollarVolume)
	}
	if !bar.VWAP.Equal(d("104.5")) {
		t.Errorf("VWAP = %s, want 104.5", bar.VWAP)
	}
	if bar.TickCount != 4 {
		t.Errorf("TickCount = %d, want 4", bar.TickCount)
	}
	if bar.TimeSpan() != 3*time.Second {
		t.Errorf("TimeSpan = %s, want 3s", bar.TimeSpan())
	}
}

// Scenario 2: Dollar bar threshold crossing, not equalling.
func TestDollarBarBuilder_ThresholdCrossing(t *testing.T) {
	b, err := NewDollarBarBuilder("coinbase", "ETH-USD", d("500"))
	if err != nil {
		t.Fatal(err)
	}
	trades := []trademodel.Trade{
		trade(0, "100", "2.0"),
		trade(time.Second, "100", "1.5"),
		trade(2*time.Second, "100", "2.0"),
	}
	out := b.ProcessTrades(trades)
	if len(out) != 1 {
		t.Fatalf("got %d bars, want 1", len(out))
	}
	if !out[0].DollarVolume.Equal(d("550.0")) {
		t.Errorf("DollarVolume = %s, want 550.0", out[0].DollarVolume)
	}
}

// Scenario 3: Time bar bucket alignment.
func TestTimeBarBuilder_BucketAlignment(t *testing.T) {
	b, err := NewTimeBarBuilder("coinbase", "ETH-USD", 5*time.Minute)
	if err != nil {
		t.Fatal(err)
	}
	if got := b.BarType(); got != "time_5m" {
		t.Fatalf("BarType() = %q, want time_5m", got)
	}

	var emitted []trademodel.Bar
	feed := func(offset time.Duration) {
		if bar := b.ProcessTrade(trade(offset, "100", "1")); bar != nil {
			emitted = append(emitted, *bar)
		}
	}
	feed(0)
	feed(60 * time.Second)
	feed(120 * time.Second)
	if len(emitted) != 0 {
		t.Fatalf("premature emission: got %d bars", len(emitted))
	}
	feed(300 * time.Second)
	if len(emitted) != 1 {
		t.Fatalf("got %d bars at bucket change, want 1", len(emitted))
	}
	if emitted[0].TickCount != 3 {
		t.Errorf("TickCount = %d, want 3", emitted[0].TickCount)
	}

	final := b.Flush()
	if final == nil || final.TickCount != 1 {
		t.Fatalf("Flush() should carry the fourth trade alone, got %+v", final)
	}
}

func TestTimeBarBuilder_Labels(t *testing.T) {
	cases := []struct {
		interval time.Duration
		want     string
	}{
		{30 * time.Second, "time_30s"},
		{5 * time.Minute, "time_5m"},
		{2 * time.Hour, "time_2h"},
		{24 * time.Hour, "time_1d"},
	}
	for _, c := range cases {
		b, err := NewTimeBarBuilder("coinbase", "ETH-USD", c.interval)
		if err != nil {
			t.Fatal(err)
		}
		if got := b.BarType(); got != c.want {
			t.Errorf("BarType() for %s = %q, want %q", c.interval, got, c.want)
		}
	}
}

func TestVolumeBarBuilder_Threshold(t *testing.T) {
	b, err := NewVolumeBarBuilder("coinbase", "ETH-USD", d("10"))
	if err != nil {
		t.Fatal(err)
	}
	out := b.ProcessTrades([]trademodel.Trade{
		trade(0, "100", "6"),
		trade(time.Second, "100", "5"),
	})
	if len(out) != 1 {
		t.Fatalf("got %d bars, want 1", len(out))
	}
	if !out[0].Volume.Equal(d("11")) {
		t.Errorf("Volume = %s, want 11", out[0].Volume)
	}
}

func TestBuilder_RejectsNonPositiveThresholds(t *testing.T) {
	if _, err := NewTickBarBuilder("c", "ETH-USD", 0); err == nil {
		t.Error("expected error for zero tick threshold")
	}
	if _, err := NewVolumeBarBuilder("c", "ETH-USD", decimal.Zero); err == nil {
		t.Error("expected error for zero volume threshold")
	}
	if _, err := NewDollarBarBuilder("c", "ETH-USD", d("-1")); err == nil {
		t.Error("expected error for negative dollar threshold")
	}
	if _, err := NewTimeBarBuilder("c", "ETH-USD", 0); err == nil {
		t.Error("expected error for zero time interval")
	}
}

func TestFlush_EmptyAccumulatorReturnsNil(t *testing.T) {
	b, _ := NewTickBarBuilder("coinbase", "ETH-USD", 10)
	if got := b.Flush(); got != nil {
		t.Errorf("Flush() on empty builder = %+v, want nil", got)
	}
}

// Determinism: splitting a batch across two ProcessTrades calls must
// produce the same bars as one call with the full batch.
func TestProcessTrades_DeterministicAcrossSplits(t *testing.T) {
	trades := []trademodel.Trade{
		trade(0, "100", "1"),
		trade(time.Second, "110", "2"),
		trade(2*time.Second, "90", "0.5"),
		trade(3*time.Second, "105", "1.5"),
		trade(4*time.Second, "120", "1"),
	}

	whole, err := NewTickBarBuilder("coinbase", "ETH-USD", 2)
	if err != nil {
		t.Fatal(err)
	}
	wholeOut := whole.ProcessTrades(trades)

	split, err := NewTickBarBuilder("coinbase", "ETH-USD", 2)
	if err != nil {
		t.Fatal(err)
	}
	var splitOut []trademodel.Bar
	splitOut = append(splitOut, split.ProcessTrades(trades[:2])...)
	splitOut = append(splitOut, split.ProcessTrades(trades[2:])...)

	if len(wholeOut) != len(splitOut) {
		t.Fatalf("bar count mismatch: whole=%d split=%d", len(wholeOut), len(splitOut))
	}
	for i := range wholeOut {
		if !wholeOut[i].Close.Equal(splitOut[i].Close) || wholeOut[i].TickCount != splitOut[i].TickCount {
			t.Errorf("bar %d differs: whole=%+v split=%+v", i, wholeOut[i], splitOut[i])
		}
	}
}
