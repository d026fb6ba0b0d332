package bars

import (
	"fmt"

	"arcana/internal/trademodel"

	"github.com/shopspring/decimal"
)

// EWMAEstimator tracks an adaptive expected value used as the emission
// threshold for information-driven builders (§3, §4.3). It deliberately
// uses float64 — it is a statistical estimate, not a financial quantity,
// and the spec tolerates bounded floating-point drift here.
type EWMAEstimator struct {
	window   int
	alpha    float64
	expected float64
}

// NewEWMAEstimator creates an estimator with the given window and an
// optional calibrated seed (zero for a cold start). Window must be >= 1;
// window == 1 degenerates to "last value wins", which the spec tolerates.
func NewEWMAEstimator(window int, initial float64) (*EWMAEstimator, error) {
	if window < 1 {
		return nil, fmt.Errorf("bars: EWMA window must be >= 1, got %d", window)
	}
	return &EWMAEstimator{
		window:   window,
		alpha:    2.0 / float64(window+1),
		expected: initial,
	}, nil
}

// Expected is the current EWMA estimate.
func (e *EWMAEstimator) Expected() float64 { return e.expected }

// Window is the configured EWMA window.
func (e *EWMAEstimator) Window() int { return e.window }

// Update folds a new observation into the running estimate and returns it.
func (e *EWMAEstimator) Update(value float64) float64 {
	e.expected = e.alpha*value + (1-e.alpha)*e.expected
	return e.expected
}

// ToState serializes the estimator into bar metadata.
func (e *EWMAEstimator) ToState() *trademodel.EWMAState {
	return &trademodel.EWMAState{Window: e.window, Expected: e.expected}
}

// RestoreFromState rehydrates the estimator from previously flushed bar
// metadata, preserving the persisted window rather than any window the
// caller originally constructed with — a warm restart always resumes the
// exact adaptive state the prior process finished with.
func (e *EWMAEstimator) RestoreFromState(state *trademodel.EWMAState) {
	if state == nil {
		return
	}
	e.window = state.Window
	if e.window < 1 {
		e.window = 1
	}
	e.alpha = 2.0 / float64(e.window+1)
	e.expected = state.Expected
}

// tickRule infers trade direction from price movement when the trade's
// own side is unknown (sign() == 0). It returns +1 on an uptick, -1 on a
// downtick, and carries prevSign forward when the price is unchanged.
func tickRule(price, prevPrice decimal.Decimal, prevSign int) int {
	switch {
	case price.GreaterThan(prevPrice):
		return 1
	case price.LessThan(prevPrice):
		return -1
	default:
		return prevSign
	}
}
