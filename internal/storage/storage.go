// Package storage defines the persistence contract the pipeline runs
// against (§6) and a Postgres/TimescaleDB-backed implementation of it.
package storage

import (
	"context"
	"time"

	"arcana/internal/trademodel"
)

// Cursor is the composite pagination key used to page trades out of
// storage without gaps or duplicates: (timestamp, trade_id) forms a
// total order even when many trades share a timestamp.
type Cursor struct {
	Timestamp time.Time
	TradeID   string
}

// TradeStats summarizes a stored trade log for calibration (§5): total
// size and dollar volume, trade count, the log's time span, and the
// fraction of trades recognized as buys (used to seed imbalance bars).
type TradeStats struct {
	TotalSize         float64
	TotalDollarVolume float64
	TradeCount        int64
	Since             time.Time
	Until             time.Time
	MeanSize          float64
	MeanDollarVolume  float64
	BuyFraction       float64
}

// Days is the span of the trade log in days, used by the calibration
// formulas' "total / (days × bars_per_day)" division.
func (s TradeStats) Days() float64 {
	return s.Until.Sub(s.Since).Hours() / 24
}

// Storage is the contract every component in the pipeline depends on
// (§6's "Storage contract" section). Implementations must make trade
// insertion idempotent on (source, trade_id) and bar tables lazily
// created per (bar_type, pair).
type Storage interface {
	// InsertTrades idempotently upserts trades keyed on (source,
	// trade_id) and returns the number of rows that were newly
	// inserted (duplicates do not count).
	InsertTrades(ctx context.Context, trades []trademodel.Trade) (inserted int, err error)

	// FirstTradeTimestamp returns the earliest stored trade timestamp
	// for (pair, source), or NotFoundError if none exist.
	FirstTradeTimestamp(ctx context.Context, pair, source string) (time.Time, error)

	// LastTradeTimestamp returns the latest stored trade timestamp for
	// (pair, source), or NotFoundError if none exist.
	LastTradeTimestamp(ctx context.Context, pair, source string) (time.Time, error)

	// LastTradeTimestampBefore returns the latest stored trade
	// timestamp at or before `before`, or NotFoundError if none exist.
	LastTradeTimestampBefore(ctx context.Context, pair, source string, before time.Time) (time.Time, error)

	// ScanTrades returns up to limit trades for (pair, source) with
	// (timestamp, trade_id) strictly greater than since, ascending.
	ScanTrades(ctx context.Context, pair, source string, since Cursor, limit int) ([]trademodel.Trade, error)

	// TradesInRange returns trades for (pair, source) with timestamp in
	// [start, end), ascending.
	TradesInRange(ctx context.Context, pair, source string, start, end time.Time) ([]trademodel.Trade, error)

	// Stats computes aggregate statistics over the stored trade log for
	// (pair, source), used by calibration.
	Stats(ctx context.Context, pair, source string) (TradeStats, error)

	// InsertBars appends bars to the (bar_type, pair) table, creating it
	// lazily on first use. Plain append — no conflict handling.
	InsertBars(ctx context.Context, bars []trademodel.Bar) error

	// LastBar returns the most recently stored bar for (bar_type, pair)
	// ordered by time_start, or NotFoundError if none exist.
	LastBar(ctx context.Context, barType, pair string) (trademodel.Bar, error)

	// DeleteBarsSince removes bars for (bar_type, pair) with time_start
	// >= cutoff.
	DeleteBarsSince(ctx context.Context, barType, pair string, cutoff time.Time) error

	// DeleteAllBars removes every bar for (bar_type, pair).
	DeleteAllBars(ctx context.Context, barType, pair string) error

	// Close releases underlying resources (connection pool, etc).
	Close() error
}
