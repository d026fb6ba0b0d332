package pipeline

import (
	"context"
	"errors"
	"testing"
	"time"

	"arcana/internal/source"
	"arcana/internal/storage"
)

func TestDaemon_ErrorsWithoutExistingTrades(t *testing.T) {
	ds := source.NewFake()
	m := storage.NewMemory()

	err := Daemon(context.Background(), ds, m, "ETH-USD", time.Minute, 0, nil)
	if err == nil {
		t.Fatal("Daemon() with no stored trades should error")
	}
}

func TestDaemon_CatchesUpThenStopsOnShutdown(t *testing.T) {
	start := time.Now().UTC().Add(-2 * time.Hour)
	trades := seedFakeTrades(start, 30, 2*time.Minute)
	ds := source.NewFake(trades...)
	m := storage.NewMemory()

	// Seed only the first trade directly so Daemon's catch-up backfill has
	// a large gap to fill before it would enter the poll loop.
	if _, err := m.InsertTrades(context.Background(), trades[:1]); err != nil {
		t.Fatal(err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	token := &ShutdownToken{ctx: ctx}

	done := make(chan error, 1)
	go func() {
		done <- Daemon(context.Background(), ds, m, "ETH-USD", time.Minute, 0, token)
	}()

	// Let catch-up run (it's instant against an in-memory store and a
	// zero rate delay), then request shutdown so the poll loop exits
	// after at most one cycle instead of spinning for a minute.
	time.Sleep(50 * time.Millisecond)
	cancel()

	select {
	case err := <-done:
		if err != nil {
			t.Fatal(err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("Daemon did not stop after shutdown was requested")
	}

	stats, err := m.Stats(context.Background(), "ETH-USD", "fake")
	if err != nil {
		t.Fatal(err)
	}
	if stats.TradeCount != 30 {
		t.Errorf("after catch-up, trade count = %d, want 30", stats.TradeCount)
	}
}

func TestDaemon_SurfacesNotFoundAsPlainError(t *testing.T) {
	ds := source.NewFake()
	m := storage.NewMemory()
	err := Daemon(context.Background(), ds, m, "ETH-USD", time.Minute, 0, nil)
	var notFound *storage.NotFoundError
	if errors.As(err, &notFound) {
		t.Error("Daemon() should translate NotFoundError into a plain operator-facing error, not leak the storage type")
	}
}
