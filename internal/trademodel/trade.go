// Package trademodel holds the immutable value types shared by every
// downstream component: the raw exchange trade and the aggregated bar.
package trademodel

import (
	"fmt"
	"regexp"
	"time"

	"github.com/shopspring/decimal"
)

// Side is the taker side of a trade.
type Side string

const (
	SideBuy     Side = "buy"
	SideSell    Side = "sell"
	SideUnknown Side = "unknown"
)

var pairPattern = regexp.MustCompile(`^[A-Za-z0-9]+-[A-Za-z0-9]+$`)

// Trade is a single executed trade from an exchange. All prices and sizes
// use exact decimal arithmetic — binary floats are never acceptable for
// financial data.
type Trade struct {
	Timestamp time.Time // UTC, microsecond resolution
	TradeID   string    // opaque, unique per Source
	Source    string    // e.g. "coinbase"
	Pair      string    // e.g. "ETH-USD"
	Price     decimal.Decimal
	Size      decimal.Decimal
	Side      Side
}

// Validate checks the invariants from the data model: positive price and
// size, and a timestamp not in the future.
func (t Trade) Validate(now time.Time) error {
	if t.Price.Sign() <= 0 {
		return fmt.Errorf("trade %s/%s: price must be positive, got %s", t.Source, t.TradeID, t.Price)
	}
	if t.Size.Sign() <= 0 {
		return fmt.Errorf("trade %s/%s: size must be positive, got %s", t.Source, t.TradeID, t.Size)
	}
	if t.Timestamp.After(now) {
		return fmt.Errorf("trade %s/%s: timestamp %s is in the future", t.Source, t.TradeID, t.Timestamp)
	}
	if !pairPattern.MatchString(t.Pair) {
		return fmt.Errorf("trade %s/%s: pair %q does not match %s", t.Source, t.TradeID, t.Pair, pairPattern.String())
	}
	return nil
}

// DollarVolume is price × size, the notional value of the trade.
func (t Trade) DollarVolume() decimal.Decimal {
	return t.Price.Mul(t.Size)
}

// Sign returns +1 for a buy, -1 for a sell, 0 when the side is unknown.
// Information-driven builders fall back to the tick rule whenever this
// returns 0.
func (t Trade) Sign() int {
	switch t.Side {
	case SideBuy:
		return 1
	case SideSell:
		return -1
	default:
		return 0
	}
}

// Key is the natural key used for idempotent storage: (source, trade_id).
func (t Trade) Key() TradeKey {
	return TradeKey{Source: t.Source, TradeID: t.TradeID}
}

// TradeKey identifies a trade independent of its content.
type TradeKey struct {
	Source  string
	TradeID string
}
