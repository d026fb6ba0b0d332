package pipeline

import (
	"context"
	"errors"
	"fmt"
	"time"

	"arcana/internal/source"
	"arcana/internal/storage"
)

// DaemonInterval is the default poll interval between cycles.
const DaemonInterval = 15 * time.Minute

// Daemon polls source for new trades on a timer, inserting whatever it
// finds into storage. On startup it requires an existing trade log for
// pair — there's no sensible "since" to start a live poll from — and
// catches up any gap between the last stored trade and now via Backfill
// before entering the poll loop. It runs until token reports a shutdown
// request.
func Daemon(ctx context.Context, ds source.DataSource, s storage.Storage, pair string, interval, rateDelay time.Duration, token *ShutdownToken) error {
	logger := newRunLogger("daemon")
	if interval <= 0 {
		interval = DaemonInterval
	}

	lastTS, err := s.LastTradeTimestamp(ctx, pair, ds.Name())
	if err != nil {
		var notFound *storage.NotFoundError
		if errors.As(err, &notFound) {
			return fmt.Errorf("pipeline: no trades found for %s %s; run `arcana ingest %s --since <ts>` first", ds.Name(), pair, pair)
		}
		return fmt.Errorf("pipeline: daemon: check last trade: %w", err)
	}

	logger.Printf("daemon starting for %s %s | last trade: %s | poll interval: %s",
		ds.Name(), pair, lastTS.Format(time.RFC3339), interval)

	if gap := time.Since(lastTS); gap > interval {
		logger.Printf("catching up: %s gap detected", formatETA(gap))
		if _, err := Backfill(ctx, ds, s, pair, lastTS, nil, DefaultWindow, rateDelay, token); err != nil {
			return fmt.Errorf("pipeline: daemon: catch-up backfill: %w", err)
		}
		if newLast, err := s.LastTradeTimestamp(ctx, pair, ds.Name()); err == nil {
			lastTS = newLast
		}
	}

	cycle := 0
	for token == nil || !token.Requested() {
		cycle++
		now := time.Now().UTC()

		trades, err := ds.FetchAllTrades(ctx, pair, lastTS, now)
		if err != nil {
			logger.Printf("cycle %d failed, will retry next cycle: %v", cycle, err)
		} else if len(trades) > 0 {
			inserted, err := s.InsertTrades(ctx, trades)
			if err != nil {
				logger.Printf("cycle %d failed to insert trades, will retry next cycle: %v", cycle, err)
			} else {
				newLast, lastErr := s.LastTradeTimestamp(ctx, pair, ds.Name())
				if lastErr == nil {
					lastTS = newLast
				}
				logger.Printf("cycle %d | %d trades fetched, %d new | last: %s",
					cycle, len(trades), inserted, lastTS.Format(time.RFC3339))
			}
		} else {
			logger.Printf("cycle %d | no new trades", cycle)
		}

		if !sleepInterruptibly(ctx, interval, token) {
			break
		}
	}

	stats, err := s.Stats(ctx, pair, ds.Name())
	if err != nil {
		logger.Printf("daemon stopped for %s. trade count unavailable: %v", pair, err)
	} else {
		logger.Printf("daemon stopped. total trades for %s: %d", pair, stats.TradeCount)
	}
	return nil
}

// sleepInterruptibly waits up to d in one-second increments so a
// shutdown request is noticed promptly instead of after a long sleep.
// It returns false if shutdown was requested during the wait.
func sleepInterruptibly(ctx context.Context, d time.Duration, token *ShutdownToken) bool {
	deadline := time.Now().Add(d)
	for time.Now().Before(deadline) {
		if token != nil && token.Requested() {
			return false
		}
		step := time.Second
		if remaining := time.Until(deadline); remaining < step {
			step = remaining
		}
		timer := time.NewTimer(step)
		select {
		case <-timer.C:
		case <-ctx.Done():
			timer.Stop()
			return false
		}
	}
	return token == nil || !token.Requested()
}
