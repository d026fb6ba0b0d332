package bars

import (
	"fmt"

	"arcana/internal/trademodel"

	"github.com/shopspring/decimal"
)

// runContribution maps one trade to the unsigned quantity a run builder
// adds to whichever side's run is currently extending: tick run uses 1,
// volume run uses size, dollar run uses dollar_volume (§4.3).
type runContribution func(t trademodel.Trade) float64

// runBase is the shared state and algorithm behind the three run
// builders: track the length of the current same-direction run on each
// side, emit when the longer run crosses an adaptively estimated
// threshold, and feed the crossing length back into the estimator.
type runBase struct {
	source, pair string
	label        string
	contribute   runContribution
	ewma         *EWMAEstimator
	acc          *Accumulator
	buyRun       float64
	sellRun      float64
	prevPrice    decimal.Decimal
	prevSign     int
	havePrev     bool
}

func newRunBase(source, pair, label string, window int, initial float64, contribute runContribution) (*runBase, error) {
	ewma, err := NewEWMAEstimator(window, initial)
	if err != nil {
		return nil, err
	}
	return &runBase{
		source:     source,
		pair:       pair,
		label:      label,
		contribute: contribute,
		ewma:       ewma,
		acc:        NewAccumulator(),
		prevSign:   1,
	}, nil
}

func (b *runBase) BarType() string { return b.label }

func (b *runBase) resolveSign(t trademodel.Trade) int {
	if sign := t.Sign(); sign != 0 {
		return sign
	}
	if !b.havePrev {
		return b.prevSign
	}
	return tickRule(t.Price, b.prevPrice, b.prevSign)
}

func (b *runBase) ProcessTrade(t trademodel.Trade) *trademodel.Bar {
	sign := b.resolveSign(t)
	b.prevPrice = t.Price
	b.prevSign = sign
	b.havePrev = true

	b.acc.Add(t)
	contribution := b.contribute(t)
	if sign >= 0 {
		b.buyRun += contribution
		b.sellRun = 0
	} else {
		b.sellRun += contribution
		b.buyRun = 0
	}

	maxRun := b.buyRun
	if b.sellRun > maxRun {
		maxRun = b.sellRun
	}

	var result *trademodel.Bar
	if maxRun >= b.ewma.Expected() {
		bar := b.acc.ToBar(b.label, b.source, b.pair, b.ewma.ToState())
		result = &bar
		b.ewma.Update(maxRun)
		b.buyRun, b.sellRun = 0, 0
		b.acc = NewAccumulator()
	}
	return result
}

func (b *runBase) ProcessTrades(batch []trademodel.Trade) []trademodel.Bar {
	var out []trademodel.Bar
	for _, t := range batch {
		if bar := b.ProcessTrade(t); bar != nil {
			out = append(out, *bar)
		}
	}
	return out
}

func (b *runBase) Flush() *trademodel.Bar {
	if b.acc.TickCount() == 0 {
		return nil
	}
	bar := b.acc.ToBar(b.label, b.source, b.pair, b.ewma.ToState())
	b.acc = NewAccumulator()
	return &bar
}

func (b *runBase) RestoreState(metadata *trademodel.EWMAState) {
	b.ewma.RestoreFromState(metadata)
}

// TickRunBarBuilder emits a bar when the longer same-direction tick run
// crosses an adaptive expected threshold ("trb_W").
type TickRunBarBuilder struct{ *runBase }

// NewTickRunBarBuilder builds trb_W bars.
func NewTickRunBarBuilder(source, pair string, window int, initial float64) (*TickRunBarBuilder, error) {
	base, err := newRunBase(source, pair, fmt.Sprintf("trb_%d", window), window, initial,
		func(trademodel.Trade) float64 { return 1.0 })
	if err != nil {
		return nil, err
	}
	return &TickRunBarBuilder{base}, nil
}

// VolumeRunBarBuilder emits a bar when the longer same-direction volume
// run crosses an adaptive expected threshold ("vrb_W").
type VolumeRunBarBuilder struct{ *runBase }

// NewVolumeRunBarBuilder builds vrb_W bars.
func NewVolumeRunBarBuilder(source, pair string, window int, initial float64) (*VolumeRunBarBuilder, error) {
	base, err := newRunBase(source, pair, fmt.Sprintf("vrb_%d", window), window, initial,
		func(t trademodel.Trade) float64 { return mustFloat(t.Size) })
	if err != nil {
		return nil, err
	}
	return &VolumeRunBarBuilder{base}, nil
}

// DollarRunBarBuilder emits a bar when the longer same-direction dollar
// run crosses an adaptive expected threshold ("drb_W").
type DollarRunBarBuilder struct{ *runBase }

// NewDollarRunBarBuilder builds drb_W bars.
func NewDollarRunBarBuilder(source, pair string, window int, initial float64) (*DollarRunBarBuilder, error) {
	base, err := newRunBase(source, pair, fmt.Sprintf("drb_%d", window), window, initial,
		func(t trademodel.Trade) float64 { return mustFloat(t.DollarVolume()) })
	if err != nil {
		return nil, err
	}
	return &DollarRunBarBuilder{base}, nil
}
