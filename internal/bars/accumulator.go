// Package bars implements the bar-construction subsystem: the shared
// accumulator/builder contract (§4.1), the four standard builders (§4.2),
// and the six information-driven builders (§4.3).
package bars

import (
	"time"

	"arcana/internal/trademodel"

	"github.com/shopspring/decimal"
)

// vwapPrecision is the number of decimal places VWAP is truncated to.
const vwapPrecision = 8

// Accumulator tracks running OHLCV state while one bar is being built.
// It is created fresh after every emission and is never shared between
// builders (§3's ownership rule).
type Accumulator struct {
	timeStart    time.Time
	timeEnd      time.Time
	open         decimal.Decimal
	high         decimal.Decimal
	low          decimal.Decimal
	close        decimal.Decimal
	volume       decimal.Decimal
	dollarVolume decimal.Decimal
	priceXVolume decimal.Decimal
	tickCount    int64
}

// NewAccumulator returns an empty accumulator ready to receive trades.
func NewAccumulator() *Accumulator {
	return &Accumulator{
		volume:       decimal.Zero,
		dollarVolume: decimal.Zero,
		priceXVolume: decimal.Zero,
	}
}

// Add incorporates one trade into the running accumulation.
func (a *Accumulator) Add(t trademodel.Trade) {
	if a.tickCount == 0 {
		a.timeStart = t.Timestamp
		a.open = t.Price
		a.high = t.Price
		a.low = t.Price
	} else {
		if t.Price.GreaterThan(a.high) {
			a.high = t.Price
		}
		if t.Price.LessThan(a.low) {
			a.low = t.Price
		}
	}
	a.timeEnd = t.Timestamp
	a.close = t.Price
	a.volume = a.volume.Add(t.Size)
	dv := t.DollarVolume()
	a.dollarVolume = a.dollarVolume.Add(dv)
	a.priceXVolume = a.priceXVolume.Add(dv)
	a.tickCount++
}

// TickCount is the number of trades accumulated so far.
func (a *Accumulator) TickCount() int64 { return a.tickCount }

// Volume is the running Σ size.
func (a *Accumulator) Volume() decimal.Decimal { return a.volume }

// DollarVolume is the running Σ price·size.
func (a *Accumulator) DollarVolume() decimal.Decimal { return a.dollarVolume }

// ToBar assembles a completed Bar from the accumulated state. It panics if
// no trade has been added — that indicates a builder bug, not a runtime
// condition callers need to handle (§7's "invariant violation" policy).
func (a *Accumulator) ToBar(barType, source, pair string, metadata *trademodel.EWMAState) trademodel.Bar {
	if a.tickCount == 0 {
		panic("bars: ToBar called on an empty accumulator")
	}
	vwap := a.close
	if a.volume.Sign() > 0 {
		// Truncated to 8 decimal places — enough precision for any
		// crypto quote currency, and a documented, stable contract
		// rather than decimal's arbitrary default division scale.
		vwap, _ = a.priceXVolume.QuoRem(a.volume, vwapPrecision)
	}
	return trademodel.Bar{
		TimeStart:    a.timeStart,
		TimeEnd:      a.timeEnd,
		BarType:      barType,
		Source:       source,
		Pair:         pair,
		Open:         a.open,
		High:         a.high,
		Low:          a.low,
		Close:        a.close,
		VWAP:         vwap,
		Volume:       a.volume,
		DollarVolume: a.dollarVolume,
		TickCount:    a.tickCount,
		Metadata:     metadata,
	}
}
