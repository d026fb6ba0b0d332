package bars

import (
	"fmt"

	"arcana/internal/trademodel"

	"github.com/shopspring/decimal"
)

// imbalanceContribution maps one trade to the signed quantity an imbalance
// builder accumulates: tick imbalance uses ±1, volume imbalance uses
// ±size, dollar imbalance uses ±dollar_volume (§4.3).
type imbalanceContribution func(t trademodel.Trade, sign int) float64

// imbalanceBase is the shared state and algorithm behind the three
// imbalance builders: accumulate a signed running sum, emit when its
// magnitude crosses an adaptively estimated threshold, and feed the
// crossing magnitude back into the estimator.
type imbalanceBase struct {
	source, pair string
	label        string
	contribute   imbalanceContribution
	ewma         *EWMAEstimator
	acc          *Accumulator
	cumImbalance float64
	prevPrice    decimal.Decimal
	prevSign     int
	havePrev     bool
}

func newImbalanceBase(source, pair, label string, window int, initial float64, contribute imbalanceContribution) (*imbalanceBase, error) {
	ewma, err := NewEWMAEstimator(window, initial)
	if err != nil {
		return nil, err
	}
	return &imbalanceBase{
		source:     source,
		pair:       pair,
		label:      label,
		contribute: contribute,
		ewma:       ewma,
		acc:        NewAccumulator(),
		prevSign:   1,
	}, nil
}

func (b *imbalanceBase) BarType() string { return b.label }

func (b *imbalanceBase) resolveSign(t trademodel.Trade) int {
	if sign := t.Sign(); sign != 0 {
		return sign
	}
	if !b.havePrev {
		return b.prevSign
	}
	return tickRule(t.Price, b.prevPrice, b.prevSign)
}

func (b *imbalanceBase) ProcessTrade(t trademodel.Trade) *trademodel.Bar {
	sign := b.resolveSign(t)
	b.prevPrice = t.Price
	b.prevSign = sign
	b.havePrev = true

	b.acc.Add(t)
	b.cumImbalance += b.contribute(t, sign)

	var result *trademodel.Bar
	if absF(b.cumImbalance) >= b.ewma.Expected() {
		bar := b.acc.ToBar(b.label, b.source, b.pair, b.ewma.ToState())
		result = &bar
		b.ewma.Update(absF(b.cumImbalance))
		b.cumImbalance = 0
		b.acc = NewAccumulator()
	}
	return result
}

func (b *imbalanceBase) ProcessTrades(batch []trademodel.Trade) []trademodel.Bar {
	var out []trademodel.Bar
	for _, t := range batch {
		if bar := b.ProcessTrade(t); bar != nil {
			out = append(out, *bar)
		}
	}
	return out
}

func (b *imbalanceBase) Flush() *trademodel.Bar {
	if b.acc.TickCount() == 0 {
		return nil
	}
	bar := b.acc.ToBar(b.label, b.source, b.pair, b.ewma.ToState())
	b.acc = NewAccumulator()
	return &bar
}

func (b *imbalanceBase) RestoreState(metadata *trademodel.EWMAState) {
	b.ewma.RestoreFromState(metadata)
}

func absF(v float64) float64 {
	if v < 0 {
		return -v
	}
	return v
}

// TickImbalanceBarBuilder emits a bar when the cumulative signed tick
// count crosses an adaptive expected threshold ("tib_W").
type TickImbalanceBarBuilder struct{ *imbalanceBase }

// NewTickImbalanceBarBuilder builds tib_W bars. window is the EWMA window
// in bars; initial is the calibrated seed for the expected threshold.
func NewTickImbalanceBarBuilder(source, pair string, window int, initial float64) (*TickImbalanceBarBuilder, error) {
	base, err := newImbalanceBase(source, pair, fmt.Sprintf("tib_%d", window), window, initial,
		func(_ trademodel.Trade, sign int) float64 { return float64(sign) })
	if err != nil {
		return nil, err
	}
	return &TickImbalanceBarBuilder{base}, nil
}

// VolumeImbalanceBarBuilder emits a bar when the cumulative signed volume
// crosses an adaptive expected threshold ("vib_W").
type VolumeImbalanceBarBuilder struct{ *imbalanceBase }

// NewVolumeImbalanceBarBuilder builds vib_W bars.
func NewVolumeImbalanceBarBuilder(source, pair string, window int, initial float64) (*VolumeImbalanceBarBuilder, error) {
	base, err := newImbalanceBase(source, pair, fmt.Sprintf("vib_%d", window), window, initial,
		func(t trademodel.Trade, sign int) float64 { return float64(sign) * mustFloat(t.Size) })
	if err != nil {
		return nil, err
	}
	return &VolumeImbalanceBarBuilder{base}, nil
}

// DollarImbalanceBarBuilder emits a bar when the cumulative signed dollar
// volume crosses an adaptive expected threshold ("dib_W").
type DollarImbalanceBarBuilder struct{ *imbalanceBase }

// NewDollarImbalanceBarBuilder builds dib_W bars.
func NewDollarImbalanceBarBuilder(source, pair string, window int, initial float64) (*DollarImbalanceBarBuilder, error) {
	base, err := newImbalanceBase(source, pair, fmt.Sprintf("dib_%d", window), window, initial,
		func(t trademodel.Trade, sign int) float64 { return float64(sign) * mustFloat(t.DollarVolume()) })
	if err != nil {
		return nil, err
	}
	return &DollarImbalanceBarBuilder{base}, nil
}

// mustFloat converts an exact decimal to float64 for use in the
// statistical EWMA estimator only — never for OHLCV or threshold values
// themselves, which stay decimal end to end.
func mustFloat(d decimal.Decimal) float64 {
	f, _ := d.Float64()
	return f
}
