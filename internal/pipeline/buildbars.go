package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"arcana/internal/bars"
	"arcana/internal/storage"
	"arcana/internal/trademodel"
)

// TradeBatch is the page size BuildBars pulls from storage per round
// trip, independent of BatchSize's insert-commit granularity.
const TradeBatch = 100_000

// BuildBars drains stored trades for (pair, builder.BarType()) through
// builder and persists every completed bar. It resumes from the last
// stored bar by default, restoring the builder's EWMA state from that
// bar's metadata before deleting it and anything after it (plain
// inserts have no upsert to fall back on, so the resume point must be
// cleared first). With rebuild set, it wipes all existing bars
// for this (bar_type, pair) and starts from the first stored trade.
func BuildBars(ctx context.Context, b bars.Builder, s storage.Storage, pair, source string, rebuild bool, token *ShutdownToken) (int, error) {
	logger := newRunLogger("buildbars")
	barType := b.BarType()

	if rebuild {
		if err := s.DeleteAllBars(ctx, barType, pair); err != nil {
			return 0, fmt.Errorf("pipeline: build bars: rebuild: delete existing: %w", err)
		}
		logger.Printf("rebuild: cleared existing %s bars for %s", barType, pair)
	}

	since, sinceTradeID, err := resumePoint(ctx, logger, b, s, barType, pair, source)
	if err != nil {
		return 0, err
	}
	if since == nil {
		logger.Printf("no trades found for %s %s; run a backfill first", source, pair)
		return 0, nil
	}

	totalBars := 0
	totalTrades := 0
	cursor := storage.Cursor{Timestamp: *since, TradeID: sinceTradeID}
	start := time.Now()

	for token == nil || !token.Requested() {
		trades, err := s.ScanTrades(ctx, pair, source, cursor, TradeBatch)
		if err != nil {
			return totalBars, fmt.Errorf("pipeline: build bars: scan trades: %w", err)
		}
		if len(trades) == 0 {
			break
		}

		newBars := b.ProcessTrades(trades)
		if len(newBars) > 0 {
			if err := s.InsertBars(ctx, newBars); err != nil {
				return totalBars, fmt.Errorf("pipeline: build bars: insert bars: %w", err)
			}
			totalBars += len(newBars)
		}

		totalTrades += len(trades)
		last := trades[len(trades)-1]
		cursor = storage.Cursor{Timestamp: last.Timestamp, TradeID: last.TradeID}

		elapsed := time.Since(start)
		rate := 0.0
		if elapsed > 0 {
			rate = float64(totalTrades) / elapsed.Seconds()
		}
		logger.Printf("processed %d trades | %d %s bars emitted | %.0f trades/sec",
			totalTrades, totalBars, barType, rate)

		if len(trades) < TradeBatch {
			break
		}
	}

	if token == nil || !token.Requested() {
		if final := b.Flush(); final != nil {
			if err := s.InsertBars(ctx, []trademodel.Bar{*final}); err != nil {
				return totalBars, fmt.Errorf("pipeline: build bars: insert final bar: %w", err)
			}
			totalBars++
		}
	}

	logger.Printf("bar construction complete: %d %s bars from %d trades in %s",
		totalBars, barType, totalTrades, formatETA(time.Since(start)))
	return totalBars, nil
}

// resumePoint picks the composite cursor BuildBars should scan trades
// from. If a bar already exists, it is treated as possibly incomplete
// (the run that produced it may have been interrupted before flushing a
// full batch): its EWMA state is restored, it and anything after it is
// deleted, and the scan resumes from its time_start with an empty
// trade-id half of the cursor, so every trade at or after that instant
// is replayed into a fresh bar. Otherwise it resumes from the first
// stored trade's timestamp minus a microsecond so the strict
// greater-than scan still includes that trade.
func resumePoint(ctx context.Context, logger *log.Logger, b bars.Builder, s storage.Storage, barType, pair, source string) (*time.Time, string, error) {
	lastBar, err := s.LastBar(ctx, barType, pair)
	var notFound *storage.NotFoundError
	switch {
	case err == nil:
		if lastBar.Metadata != nil {
			b.RestoreState(lastBar.Metadata)
			logger.Printf("restored builder state from last bar metadata (ewma=%.4f)", lastBar.Metadata.Expected)
		}
		if err := s.DeleteBarsSince(ctx, barType, pair, lastBar.TimeStart); err != nil {
			return nil, "", fmt.Errorf("pipeline: build bars: clear stale bars: %w", err)
		}
		logger.Printf("resuming %s bar construction from %s", barType, lastBar.TimeStart.Format(time.RFC3339))
		since := lastBar.TimeStart
		return &since, "", nil
	case errors.As(err, &notFound):
		firstTS, err := s.FirstTradeTimestamp(ctx, pair, source)
		if err != nil {
			if errors.As(err, &notFound) {
				return nil, "", nil
			}
			return nil, "", fmt.Errorf("pipeline: build bars: first trade timestamp: %w", err)
		}
		since := firstTS.Add(-time.Microsecond)
		logger.Printf("building %s bars from first trade at %s", barType, firstTS.Format(time.RFC3339))
		return &since, "", nil
	default:
		return nil, "", fmt.Errorf("pipeline: build bars: last bar: %w", err)
	}
}
