package source

import (
	"context"
	"sort"
	"time"

	"arcana/internal/trademodel"
)

// Fake is an in-memory DataSource used by tests: trades are seeded ahead
// of time and served back honoring the same [start, end) and limit
// semantics a real exchange API would.
type Fake struct {
	SourceName string
	Trades     []trademodel.Trade
	Pairs      []string
}

// NewFake builds a Fake source named "fake" unless overridden.
func NewFake(trades ...trademodel.Trade) *Fake {
	sorted := append([]trademodel.Trade(nil), trades...)
	sort.Slice(sorted, func(i, j int) bool {
		if !sorted[i].Timestamp.Equal(sorted[j].Timestamp) {
			return sorted[i].Timestamp.Before(sorted[j].Timestamp)
		}
		return sorted[i].TradeID < sorted[j].TradeID
	})
	return &Fake{SourceName: "fake", Trades: sorted}
}

func (f *Fake) Name() string {
	if f.SourceName == "" {
		return "fake"
	}
	return f.SourceName
}

func (f *Fake) FetchTrades(_ context.Context, pair string, start, end time.Time, limit int) ([]trademodel.Trade, error) {
	var out []trademodel.Trade
	for _, t := range f.Trades {
		if t.Pair != pair {
			continue
		}
		if t.Timestamp.Before(start) || !t.Timestamp.Before(end) {
			continue
		}
		out = append(out, t)
		if len(out) == limit {
			break
		}
	}
	return out, nil
}

func (f *Fake) FetchAllTrades(ctx context.Context, pair string, start, end time.Time) ([]trademodel.Trade, error) {
	return FetchAllTrades(ctx, f, pair, start, end)
}

func (f *Fake) SupportedPairs(context.Context) ([]string, error) {
	return f.Pairs, nil
}

var _ DataSource = (*Fake)(nil)
