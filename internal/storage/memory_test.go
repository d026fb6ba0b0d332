package storage

import (
	"context"
	"testing"
	"time"

	"arcana/internal/trademodel"

	"github.com/shopspring/decimal"
)

func testTrade(id string, offset time.Duration) trademodel.Trade {
	base := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	return trademodel.Trade{
		Timestamp: base.Add(offset),
		TradeID:   id,
		Source:    "coinbase",
		Pair:      "ETH-USD",
		Price:     decimal.NewFromInt(100),
		Size:      decimal.NewFromInt(1),
		Side:      trademodel.SideBuy,
	}
}

func TestMemory_InsertTrades_Idempotent(t *testing.T) {
	ctx := context.Background()
	m := NewMemory()

	trades := []trademodel.Trade{testTrade("1", 0), testTrade("2", time.Second)}
	n, err := m.InsertTrades(ctx, trades)
	if err != nil {
		t.Fatal(err)
	}
	if n != 2 {
		t.Fatalf("InsertTrades() = %d, want 2", n)
	}

	// Re-inserting the same trades plus one new one should only count
	// the new one.
	n, err = m.InsertTrades(ctx, []trademodel.Trade{testTrade("1", 0), testTrade("3", 2 * time.Second)})
	if err != nil {
		t.Fatal(err)
	}
	if n != 1 {
		t.Fatalf("InsertTrades() on repeat = %d, want 1", n)
	}
}

func TestMemory_ScanTrades_CompositeCursor(t *testing.T) {
	ctx := context.Background()
	m := NewMemory()
	base := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	// Two trades share a timestamp; cursor ordering must fall back to trade_id.
	trades := []trademodel.Trade{
		{Timestamp: base, TradeID: "b", Source: "coinbase", Pair: "ETH-USD", Price: decimal.NewFromInt(1), Size: decimal.NewFromInt(1), Side: trademodel.SideBuy},
		{Timestamp: base, TradeID: "a", Source: "coinbase", Pair: "ETH-USD", Price: decimal.NewFromInt(1), Size: decimal.NewFromInt(1), Side: trademodel.SideBuy},
		{Timestamp: base.Add(time.Second), TradeID: "c", Source: "coinbase", Pair: "ETH-USD", Price: decimal.NewFromInt(1), Size: decimal.NewFromInt(1), Side: trademodel.SideBuy},
	}
	if _, err := m.InsertTrades(ctx, trades); err != nil {
		t.Fatal(err)
	}

	got, err := m.ScanTrades(ctx, "ETH-USD", "coinbase", Cursor{Timestamp: base, TradeID: "a"}, 10)
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != 2 {
		t.Fatalf("ScanTrades() returned %d trades, want 2", len(got))
	}
	if got[0].TradeID != "b" || got[1].TradeID != "c" {
		t.Errorf("ScanTrades() order = %v, want [b, c]", []string{got[0].TradeID, got[1].TradeID})
	}
}

func TestMemory_BarLifecycle(t *testing.T) {
	ctx := context.Background()
	m := NewMemory()

	if _, err := m.LastBar(ctx, "tick_500", "ETH-USD"); err == nil {
		t.Fatal("expected NotFoundError before any bars inserted")
	}

	bar := trademodel.Bar{
		TimeStart: time.Now().Add(-time.Hour),
		TimeEnd:   time.Now(),
		BarType:   "tick_500",
		Pair:      "ETH-USD",
		Open:      decimal.NewFromInt(100),
		High:      decimal.NewFromInt(100),
		Low:       decimal.NewFromInt(100),
		Close:     decimal.NewFromInt(100),
		VWAP:      decimal.NewFromInt(100),
		TickCount: 1,
	}
	if err := m.InsertBars(ctx, []trademodel.Bar{bar}); err != nil {
		t.Fatal(err)
	}
	got, err := m.LastBar(ctx, "tick_500", "ETH-USD")
	if err != nil {
		t.Fatal(err)
	}
	if got.TickCount != 1 {
		t.Errorf("LastBar().TickCount = %d, want 1", got.TickCount)
	}

	if err := m.DeleteAllBars(ctx, "tick_500", "ETH-USD"); err != nil {
		t.Fatal(err)
	}
	if _, err := m.LastBar(ctx, "tick_500", "ETH-USD"); err == nil {
		t.Fatal("expected NotFoundError after DeleteAllBars")
	}
}

func TestBarTableName(t *testing.T) {
	name, err := barTableName("tick_500", "ETH-USD")
	if err != nil {
		t.Fatal(err)
	}
	if name != "bars_tick_500_eth_usd" {
		t.Errorf("barTableName() = %q, want bars_tick_500_eth_usd", name)
	}

	if _, err := barTableName("tick 500", "ETH-USD"); err == nil {
		t.Error("expected error for bar type with space")
	}
	if _, err := barTableName("tick_500", "ethusd"); err == nil {
		t.Error("expected error for malformed pair")
	}
}
