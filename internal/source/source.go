// Package source defines the exchange trade feed contract (§6's
// "DataSource contract") and concrete implementations of it.
package source

import (
	"context"
	"time"

	"arcana/internal/trademodel"
)

// DataSource fetches historical trades from an exchange. Implementations
// must return trades in ascending (timestamp, trade_id) order within a
// single call.
type DataSource interface {
	// Name identifies this source, e.g. "coinbase". Stored alongside
	// every trade it produces.
	Name() string

	// FetchTrades returns up to limit trades for pair in [start, end).
	FetchTrades(ctx context.Context, pair string, start, end time.Time, limit int) ([]trademodel.Trade, error)

	// FetchAllTrades returns every trade for pair in [start, end),
	// paginating internally as needed.
	FetchAllTrades(ctx context.Context, pair string, start, end time.Time) ([]trademodel.Trade, error)

	// SupportedPairs lists the trading pairs this source can serve.
	SupportedPairs(ctx context.Context) ([]string, error)
}

// defaultFetchLimit is the page size FetchAllTrades uses when an
// implementation doesn't need a different one.
const defaultFetchLimit = 1000

// FetchAllTrades is a reusable default for DataSource implementations
// whose FetchTrades already accepts a limit and start/end window: it
// pages by advancing the window start to just after the last trade
// returned, stopping once a page comes back short of the limit.
func FetchAllTrades(ctx context.Context, ds DataSource, pair string, start, end time.Time) ([]trademodel.Trade, error) {
	var all []trademodel.Trade
	cursor := start
	for {
		page, err := ds.FetchTrades(ctx, pair, cursor, end, defaultFetchLimit)
		if err != nil {
			return all, err
		}
		all = append(all, page...)
		if len(page) < defaultFetchLimit {
			return all, nil
		}
		last := page[len(page)-1].Timestamp
		cursor = last.Add(time.Microsecond)
	}
}
