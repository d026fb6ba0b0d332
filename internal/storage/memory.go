package storage

import (
	"context"
	"sort"
	"sync"
	"time"

	"arcana/internal/trademodel"
)

// Memory is an in-process Storage implementation used by tests. It
// honors the same idempotency and ordering contract as Postgres.
type Memory struct {
	mu    sync.Mutex
	trade map[tradeStreamKey][]trademodel.Trade
	seen  map[trademodel.TradeKey]bool
	bars  map[barStreamKey][]trademodel.Bar
}

type tradeStreamKey struct{ pair, source string }
type barStreamKey struct{ barType, pair string }

// NewMemory returns an empty in-memory store.
func NewMemory() *Memory {
	return &Memory{
		trade: make(map[tradeStreamKey][]trademodel.Trade),
		seen:  make(map[trademodel.TradeKey]bool),
		bars:  make(map[barStreamKey][]trademodel.Bar),
	}
}

func (m *Memory) InsertTrades(_ context.Context, trades []trademodel.Trade) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	inserted := 0
	touched := make(map[tradeStreamKey]bool)
	for _, t := range trades {
		key := t.Key()
		if m.seen[key] {
			continue
		}
		m.seen[key] = true
		sk := tradeStreamKey{pair: t.Pair, source: t.Source}
		m.trade[sk] = append(m.trade[sk], t)
		touched[sk] = true
		inserted++
	}
	for sk := range touched {
		rows := m.trade[sk]
		sort.Slice(rows, func(i, j int) bool {
			if !rows[i].Timestamp.Equal(rows[j].Timestamp) {
				return rows[i].Timestamp.Before(rows[j].Timestamp)
			}
			return rows[i].TradeID < rows[j].TradeID
		})
		m.trade[sk] = rows
	}
	return inserted, nil
}

func (m *Memory) FirstTradeTimestamp(_ context.Context, pair, source string) (time.Time, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	rows := m.trade[tradeStreamKey{pair, source}]
	if len(rows) == 0 {
		return time.Time{}, NewNotFoundErrorWithID("trade", pair+"/"+source)
	}
	return rows[0].Timestamp, nil
}

func (m *Memory) LastTradeTimestamp(_ context.Context, pair, source string) (time.Time, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	rows := m.trade[tradeStreamKey{pair, source}]
	if len(rows) == 0 {
		return time.Time{}, NewNotFoundErrorWithID("trade", pair+"/"+source)
	}
	return rows[len(rows)-1].Timestamp, nil
}

func (m *Memory) LastTradeTimestampBefore(_ context.Context, pair, source string, before time.Time) (time.Time, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	rows := m.trade[tradeStreamKey{pair, source}]
	var best time.Time
	found := false
	for _, t := range rows {
		if t.Timestamp.After(before) {
			break
		}
		best = t.Timestamp
		found = true
	}
	if !found {
		return time.Time{}, NewNotFoundErrorWithID("trade", pair+"/"+source)
	}
	return best, nil
}

func (m *Memory) ScanTrades(_ context.Context, pair, source string, since Cursor, limit int) ([]trademodel.Trade, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	rows := m.trade[tradeStreamKey{pair, source}]
	var out []trademodel.Trade
	for _, t := range rows {
		if after(t.Timestamp, t.TradeID, since.Timestamp, since.TradeID) {
			out = append(out, t)
			if len(out) == limit {
				break
			}
		}
	}
	return out, nil
}

func after(ts time.Time, id string, sinceTS time.Time, sinceID string) bool {
	if ts.After(sinceTS) {
		return true
	}
	if ts.Before(sinceTS) {
		return false
	}
	return id > sinceID
}

func (m *Memory) TradesInRange(_ context.Context, pair, source string, start, end time.Time) ([]trademodel.Trade, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	rows := m.trade[tradeStreamKey{pair, source}]
	var out []trademodel.Trade
	for _, t := range rows {
		if !t.Timestamp.Before(start) && t.Timestamp.Before(end) {
			out = append(out, t)
		}
	}
	return out, nil
}

func (m *Memory) Stats(_ context.Context, pair, source string) (TradeStats, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	rows := m.trade[tradeStreamKey{pair, source}]
	if len(rows) == 0 {
		return TradeStats{}, NewNotFoundErrorWithID("trade", pair+"/"+source)
	}

	var totalSize, totalDollar float64
	var buyCount int64
	for _, t := range rows {
		size, _ := t.Size.Float64()
		dv, _ := t.DollarVolume().Float64()
		totalSize += size
		totalDollar += dv
		if t.Side == trademodel.SideBuy {
			buyCount++
		}
	}
	n := float64(len(rows))
	return TradeStats{
		TotalSize:         totalSize,
		TotalDollarVolume: totalDollar,
		TradeCount:        int64(len(rows)),
		Since:             rows[0].Timestamp,
		Until:             rows[len(rows)-1].Timestamp,
		MeanSize:          totalSize / n,
		MeanDollarVolume:  totalDollar / n,
		BuyFraction:       float64(buyCount) / n,
	}, nil
}

func (m *Memory) InsertBars(_ context.Context, bars []trademodel.Bar) error {
	if len(bars) == 0 {
		return nil
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, b := range bars {
		key := barStreamKey{barType: b.BarType, pair: b.Pair}
		m.bars[key] = append(m.bars[key], b)
	}
	return nil
}

func (m *Memory) LastBar(_ context.Context, barType, pair string) (trademodel.Bar, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	rows := m.bars[barStreamKey{barType, pair}]
	if len(rows) == 0 {
		return trademodel.Bar{}, NewNotFoundErrorWithID("bar", barType+"/"+pair)
	}
	return rows[len(rows)-1], nil
}

func (m *Memory) DeleteBarsSince(_ context.Context, barType, pair string, cutoff time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	key := barStreamKey{barType, pair}
	var kept []trademodel.Bar
	for _, b := range m.bars[key] {
		if b.TimeStart.Before(cutoff) {
			kept = append(kept, b)
		}
	}
	m.bars[key] = kept
	return nil
}

func (m *Memory) DeleteAllBars(_ context.Context, barType, pair string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.bars, barStreamKey{barType, pair})
	return nil
}

func (m *Memory) Close() error { return nil }

var _ Storage = (*Memory)(nil)
