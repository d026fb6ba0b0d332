package pipeline

import (
	"context"
	"fmt"
	"testing"
	"time"

	"arcana/internal/source"
	"arcana/internal/storage"
	"arcana/internal/trademodel"

	"github.com/shopspring/decimal"
)

func seedFakeTrades(start time.Time, n int, step time.Duration) []trademodel.Trade {
	trades := make([]trademodel.Trade, 0, n)
	for i := 0; i < n; i++ {
		trades = append(trades, trademodel.Trade{
			Timestamp: start.Add(time.Duration(i) * step),
			TradeID:   fmt.Sprintf("%d", i),
			Source:    "fake",
			Pair:      "ETH-USD",
			Price:     decimal.NewFromInt(100),
			Size:      decimal.NewFromInt(1),
			Side:      trademodel.SideBuy,
		})
	}
	return trades
}

func TestBackfill_InsertsAllTradesAcrossWindows(t *testing.T) {
	start := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	trades := seedFakeTrades(start, 50, time.Minute)
	ds := source.NewFake(trades...)
	m := storage.NewMemory()

	until := start.Add(55 * time.Minute)
	inserted, err := Backfill(context.Background(), ds, m, "ETH-USD", start, &until, 10*time.Minute, 0, nil)
	if err != nil {
		t.Fatal(err)
	}
	if inserted != 50 {
		t.Errorf("Backfill() inserted = %d, want 50", inserted)
	}

	last, err := m.LastTradeTimestamp(context.Background(), "ETH-USD", "fake")
	if err != nil {
		t.Fatal(err)
	}
	if !last.Equal(trades[len(trades)-1].Timestamp) {
		t.Errorf("last stored timestamp = %v, want %v", last, trades[len(trades)-1].Timestamp)
	}
}

func TestBackfill_ResumesFromLastStoredTrade(t *testing.T) {
	start := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	trades := seedFakeTrades(start, 20, time.Minute)
	ds := source.NewFake(trades...)
	m := storage.NewMemory()

	// Pre-seed the first half directly, simulating a prior interrupted run.
	if _, err := m.InsertTrades(context.Background(), trades[:10]); err != nil {
		t.Fatal(err)
	}

	until := start.Add(20 * time.Minute)
	inserted, err := Backfill(context.Background(), ds, m, "ETH-USD", start, &until, 5*time.Minute, 0, nil)
	if err != nil {
		t.Fatal(err)
	}
	if inserted != 10 {
		t.Errorf("Backfill() inserted = %d, want 10 (only the unseen half)", inserted)
	}
}

func TestBackfill_StopsOnShutdownBeforeFirstWindow(t *testing.T) {
	start := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	trades := seedFakeTrades(start, 30, time.Minute)
	ds := source.NewFake(trades...)
	m := storage.NewMemory()

	ctx, cancel := context.WithCancel(context.Background())
	token := &ShutdownToken{ctx: ctx}
	cancel() // shutdown requested before the loop even starts

	until := start.Add(30 * time.Minute)
	inserted, err := Backfill(context.Background(), ds, m, "ETH-USD", start, &until, 5*time.Minute, 0, token)
	if err != nil {
		t.Fatal(err)
	}
	if inserted != 0 {
		t.Errorf("Backfill() inserted = %d, want 0 (shutdown before first window)", inserted)
	}
}
