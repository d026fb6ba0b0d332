package calibration

import (
	"context"
	"testing"
	"time"

	"arcana/internal/storage"
	"arcana/internal/trademodel"

	"github.com/shopspring/decimal"
)

func seedTrades(t *testing.T, m *storage.Memory, n int, days float64, side trademodel.Side) {
	t.Helper()
	ctx := context.Background()
	base := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	step := time.Duration(days*24*float64(time.Hour)) / time.Duration(n)
	var trades []trademodel.Trade
	for i := 0; i < n; i++ {
		trades = append(trades, trademodel.Trade{
			Timestamp: base.Add(time.Duration(i) * step),
			TradeID:   fmt_(i),
			Source:    "coinbase",
			Pair:      "ETH-USD",
			Price:     decimal.NewFromInt(100),
			Size:      decimal.NewFromInt(2),
			Side:      side,
		})
	}
	if _, err := m.InsertTrades(ctx, trades); err != nil {
		t.Fatal(err)
	}
}

func fmt_(i int) string {
	const digits = "0123456789"
	if i == 0 {
		return "0"
	}
	var b []byte
	for i > 0 {
		b = append([]byte{digits[i%10]}, b...)
		i /= 10
	}
	return string(b)
}

func TestTickThreshold_FloorsAtOne(t *testing.T) {
	m := storage.NewMemory()
	seedTrades(t, m, 10, 10, trademodel.SideBuy) // 10 trades over 10 days, target 50/day -> raw << 1
	got, err := TickThreshold(context.Background(), m, "ETH-USD", "coinbase", 50)
	if err != nil {
		t.Fatal(err)
	}
	if got != 1 {
		t.Errorf("TickThreshold() = %d, want 1 (floored)", got)
	}
}

func TestDollarThreshold_RoundsToCleanMagnitude(t *testing.T) {
	m := storage.NewMemory()
	// 1000 trades * 200 dollar volume each = 200000 total, spanning 0.999 day
	// (first to last trade), 50 bars/day target.
	// raw = 200000 / (0.999 * 50) ≈ 4004 -> rounds to 4000.
	seedTrades(t, m, 1000, 1, trademodel.SideBuy)
	got, err := DollarThreshold(context.Background(), m, "ETH-USD", "coinbase", 50)
	if err != nil {
		t.Fatal(err)
	}
	if got <= 0 {
		t.Errorf("DollarThreshold() = %v, want positive", got)
	}
}

func TestInitialExpected_ImbalanceVsRun(t *testing.T) {
	m := storage.NewMemory()
	seedTrades(t, m, 1000, 1, trademodel.SideBuy)

	e0Imbalance, err := InitialExpected(context.Background(), m, "ETH-USD", "coinbase", "tib", 50)
	if err != nil {
		t.Fatal(err)
	}
	if e0Imbalance <= 0 {
		t.Errorf("InitialExpected(tib) = %v, want positive", e0Imbalance)
	}

	e0Run, err := InitialExpected(context.Background(), m, "ETH-USD", "coinbase", "trb", 50)
	if err != nil {
		t.Fatal(err)
	}
	if e0Run <= 0 {
		t.Errorf("InitialExpected(trb) = %v, want positive", e0Run)
	}
}

func TestInitialExpected_RejectsUnknownKind(t *testing.T) {
	m := storage.NewMemory()
	seedTrades(t, m, 10, 1, trademodel.SideBuy)
	if _, err := InitialExpected(context.Background(), m, "ETH-USD", "coinbase", "bogus", 50); err == nil {
		t.Error("expected error for unknown bar kind")
	}
}

func TestCache_NilWhenHostEmpty(t *testing.T) {
	c := NewCache("", 6379, "")
	if c != nil {
		t.Fatal("NewCache with empty host should return nil")
	}
	// Nil cache methods must be safe no-ops.
	if _, ok := c.Get(context.Background(), "ETH-USD", "coinbase", "tib"); ok {
		t.Error("Get on nil cache should report a miss")
	}
	c.Set(context.Background(), "ETH-USD", "coinbase", "tib", Result{Value: 1})
	if err := c.Close(); err != nil {
		t.Errorf("Close on nil cache should be a no-op, got %v", err)
	}
}
