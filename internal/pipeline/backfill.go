package pipeline

import (
	"context"
	"errors"
	"fmt"
	"time"

	"arcana/internal/source"
	"arcana/internal/storage"
	"arcana/internal/trademodel"
)

// BatchSize is how many fetched trades accumulate before a commit to
// storage, independent of the fetch window size.
const BatchSize = 1000

// DefaultWindow is the time span each backfill step requests from the
// source when the caller doesn't pick one.
const DefaultWindow = 15 * time.Minute

// Backfill bulk-loads trades for pair from since up to until (defaulting
// to now), walking forward in windows and committing each batch to
// storage. It resumes from the latest stored trade within the range
// rather than re-fetching from since, so re-running it after an
// interruption is cheap. rateDelay paces requests between windows; token
// (optional) lets a caller interrupt a long backfill between windows and
// still commit whatever is buffered.
func Backfill(ctx context.Context, ds source.DataSource, s storage.Storage, pair string, since time.Time, until *time.Time, window, rateDelay time.Duration, token *ShutdownToken) (int, error) {
	logger := newRunLogger("backfill")
	if window <= 0 {
		window = DefaultWindow
	}
	end := time.Now().UTC()
	if until != nil {
		end = *until
	}

	lastTS, err := s.LastTradeTimestampBefore(ctx, pair, ds.Name(), end)
	var notFound *storage.NotFoundError
	switch {
	case err == nil && lastTS.After(since):
		logger.Printf("resuming backfill for %s %s from %s (found existing data)", ds.Name(), pair, lastTS.Format(time.RFC3339))
		since = lastTS
	case err != nil && !errors.As(err, &notFound):
		return 0, fmt.Errorf("pipeline: backfill: check resume point: %w", err)
	}

	if !since.Before(end) {
		return 0, nil
	}

	totalWindows := int(end.Sub(since)/window) + 1
	if totalWindows < 1 {
		totalWindows = 1
	}

	current := since
	windowNum := 0
	totalInserted := 0
	var buffer []trademodel.Trade
	start := time.Now()

	logger.Printf("starting backfill: %s %s from %s to %s (~%d windows)",
		ds.Name(), pair, since.Format("2006-01-02 15:04"), end.Format("2006-01-02 15:04"), totalWindows)

	flush := func() error {
		if len(buffer) == 0 {
			return nil
		}
		inserted, err := s.InsertTrades(ctx, buffer)
		if err != nil {
			return err
		}
		totalInserted += inserted
		buffer = nil
		return nil
	}

	for current.Before(end) {
		if token != nil && token.Requested() {
			logger.Printf("shutdown requested, committing remaining buffer...")
			if err := flush(); err != nil {
				return totalInserted, fmt.Errorf("pipeline: backfill: final flush: %w", err)
			}
			return totalInserted, nil
		}

		windowEnd := current.Add(window)
		if windowEnd.After(end) {
			windowEnd = end
		}
		windowNum++

		trades, err := ds.FetchAllTrades(ctx, pair, current, windowEnd)
		if err != nil {
			logger.Printf("failed to fetch window %d (%s -> %s): %v. halting backfill.",
				windowNum, current.Format(time.RFC3339), windowEnd.Format(time.RFC3339), err)
			if ferr := flush(); ferr != nil {
				return totalInserted, fmt.Errorf("pipeline: backfill: flush after fetch error: %w", ferr)
			}
			return totalInserted, fmt.Errorf("pipeline: backfill: fetch window %d: %w", windowNum, err)
		}

		buffer = append(buffer, trades...)

		if len(buffer) >= BatchSize {
			if err := flush(); err != nil {
				return totalInserted, fmt.Errorf("pipeline: backfill: checkpoint flush: %w", err)
			}
		}

		elapsed := time.Since(start)
		rate := 0.0
		if elapsed > 0 {
			rate = float64(totalInserted) / elapsed.Seconds()
		}
		remainingWindows := totalWindows - windowNum
		var eta time.Duration
		if elapsed > 0 && windowNum > 0 {
			eta = time.Duration(float64(remainingWindows) * elapsed.Seconds() / float64(windowNum) * float64(time.Second))
		}

		logger.Printf("window %d/%d | %s -> %s | %d trades this window | total: %d stored | %.1f trades/sec | eta: %s",
			windowNum, totalWindows, current.Format("2006-01-02 15:04"), windowEnd.Format("2006-01-02 15:04"),
			len(trades), totalInserted+len(buffer), rate, formatETA(eta))

		current = windowEnd

		if current.Before(end) && rateDelay > 0 {
			timer := time.NewTimer(rateDelay)
			select {
			case <-timer.C:
			case <-ctx.Done():
				timer.Stop()
			}
		}
	}

	if err := flush(); err != nil {
		return totalInserted, fmt.Errorf("pipeline: backfill: final flush: %w", err)
	}

	logger.Printf("backfill complete: %d trades inserted in %s", totalInserted, formatETA(time.Since(start)))
	return totalInserted, nil
}
