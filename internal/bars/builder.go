package bars

import "arcana/internal/trademodel"

// Builder is the contract every bar builder implements (§4.1). There is no
// abstract base class — per §9's redesign note, the ten concrete builders
// share three coherent algorithms (fixed-threshold scalar, time-bucket,
// adaptive EWMA) via small composed helpers (Accumulator, EWMAEstimator,
// tick rule) rather than inheritance.
type Builder interface {
	// BarType is this builder's label, e.g. "tick_500" or "time_5m".
	BarType() string

	// ProcessTrade feeds one trade and returns a completed bar if a
	// boundary is reached as a consequence of that trade.
	ProcessTrade(t trademodel.Trade) *trademodel.Bar

	// ProcessTrades is a convenience wrapper over ProcessTrade that
	// preserves order. The batch must be ascending in (timestamp, trade_id).
	ProcessTrades(batch []trademodel.Trade) []trademodel.Bar

	// Flush emits any partial bar carried in the accumulator, or nil if
	// nothing has been accumulated.
	Flush() *trademodel.Bar

	// RestoreState rehydrates adaptive-estimator state from a previously
	// flushed bar's metadata. No-op for standard builders.
	RestoreState(metadata *trademodel.EWMAState)
}

// processTrades is the shared ProcessTrades implementation every concrete
// builder delegates to.
func processTrades(b Builder, batch []trademodel.Trade) []trademodel.Bar {
	var out []trademodel.Bar
	for _, t := range batch {
		if bar := b.ProcessTrade(t); bar != nil {
			out = append(out, *bar)
		}
	}
	return out
}
