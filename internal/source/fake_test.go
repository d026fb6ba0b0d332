package source

import (
	"context"
	"testing"
	"time"

	"arcana/internal/trademodel"

	"github.com/shopspring/decimal"
)

func tradeAt(offset time.Duration, id string) trademodel.Trade {
	base := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	return trademodel.Trade{
		Timestamp: base.Add(offset),
		TradeID:   id,
		Source:    "fake",
		Pair:      "ETH-USD",
		Price:     decimal.NewFromInt(100),
		Size:      decimal.NewFromInt(1),
		Side:      trademodel.SideBuy,
	}
}

func TestFake_FetchTrades_RespectsWindowAndLimit(t *testing.T) {
	f := NewFake(tradeAt(0, "1"), tradeAt(time.Second, "2"), tradeAt(2*time.Second, "3"))
	ctx := context.Background()
	base := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)

	got, err := f.FetchTrades(ctx, "ETH-USD", base, base.Add(2*time.Second), 10)
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != 2 {
		t.Fatalf("FetchTrades() returned %d trades, want 2 (end exclusive)", len(got))
	}

	limited, err := f.FetchTrades(ctx, "ETH-USD", base, base.Add(3*time.Second), 1)
	if err != nil {
		t.Fatal(err)
	}
	if len(limited) != 1 {
		t.Fatalf("FetchTrades() with limit=1 returned %d trades", len(limited))
	}
}

func TestFetchAllTrades_PaginatesPastLimit(t *testing.T) {
	var trades []trademodel.Trade
	for i := 0; i < 2500; i++ {
		trades = append(trades, tradeAt(time.Duration(i)*time.Millisecond, string(rune('a'+i%26))+string(rune(i)))) // unique-ish ids
	}
	f := NewFake(trades...)
	ctx := context.Background()
	base := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)

	out, err := FetchAllTrades(ctx, f, "ETH-USD", base, base.Add(time.Hour))
	if err != nil {
		t.Fatal(err)
	}
	if len(out) != 2500 {
		t.Fatalf("FetchAllTrades() returned %d trades, want 2500", len(out))
	}
}
