package storage

import (
	"encoding/json"
	"time"

	"arcana/internal/trademodel"

	"github.com/shopspring/decimal"
)

// tradeRow is the GORM model backing the single shared trades table.
// (source, trade_id) is the natural key the idempotent upsert relies on.
type tradeRow struct {
	ID        int64           `gorm:"primaryKey;autoIncrement"`
	Timestamp time.Time       `gorm:"index:idx_trades_pair_source_ts;not null"`
	TradeID   string          `gorm:"size:128;not null;uniqueIndex:idx_trades_source_tradeid"`
	Source    string          `gorm:"size:64;not null;index:idx_trades_pair_source_ts;uniqueIndex:idx_trades_source_tradeid"`
	Pair      string          `gorm:"size:32;not null;index:idx_trades_pair_source_ts"`
	Price     decimal.Decimal `gorm:"type:numeric;not null"`
	Size      decimal.Decimal `gorm:"type:numeric;not null"`
	Side      string          `gorm:"size:16;not null"`
}

func (tradeRow) TableName() string { return tradesTable }

func toTradeRow(t trademodel.Trade) tradeRow {
	return tradeRow{
		Timestamp: t.Timestamp,
		TradeID:   t.TradeID,
		Source:    t.Source,
		Pair:      t.Pair,
		Price:     t.Price,
		Size:      t.Size,
		Side:      string(t.Side),
	}
}

func (r tradeRow) toTrade() trademodel.Trade {
	return trademodel.Trade{
		Timestamp: r.Timestamp,
		TradeID:   r.TradeID,
		Source:    r.Source,
		Pair:      r.Pair,
		Price:     r.Price,
		Size:      r.Size,
		Side:      trademodel.Side(r.Side),
	}
}

// barRow is the GORM model backing every per-(bar_type, pair) bar table.
// The table name is set per query via db.Table(...), not TableName(),
// since it is derived dynamically.
type barRow struct {
	ID           int64           `gorm:"primaryKey;autoIncrement"`
	TimeStart    time.Time       `gorm:"not null;index"`
	TimeEnd      time.Time       `gorm:"not null"`
	Source       string          `gorm:"size:64;not null"`
	Open         decimal.Decimal `gorm:"type:numeric;not null"`
	High         decimal.Decimal `gorm:"type:numeric;not null"`
	Low          decimal.Decimal `gorm:"type:numeric;not null"`
	Close        decimal.Decimal `gorm:"type:numeric;not null"`
	VWAP         decimal.Decimal `gorm:"type:numeric;not null"`
	Volume       decimal.Decimal `gorm:"type:numeric;not null"`
	DollarVolume decimal.Decimal `gorm:"type:numeric;not null"`
	TickCount    int64           `gorm:"not null"`
	Metadata     *string         `gorm:"type:jsonb"`
}

func toBarRow(b trademodel.Bar) (barRow, error) {
	row := barRow{
		TimeStart:    b.TimeStart,
		TimeEnd:      b.TimeEnd,
		Source:       b.Source,
		Open:         b.Open,
		High:         b.High,
		Low:          b.Low,
		Close:        b.Close,
		VWAP:         b.VWAP,
		Volume:       b.Volume,
		DollarVolume: b.DollarVolume,
		TickCount:    b.TickCount,
	}
	if b.Metadata != nil {
		raw, err := json.Marshal(b.Metadata)
		if err != nil {
			return barRow{}, err
		}
		s := string(raw)
		row.Metadata = &s
	}
	return row, nil
}

func (r barRow) toBar(barType, pair string) (trademodel.Bar, error) {
	bar := trademodel.Bar{
		TimeStart:    r.TimeStart,
		TimeEnd:      r.TimeEnd,
		BarType:      barType,
		Source:       r.Source,
		Pair:         pair,
		Open:         r.Open,
		High:         r.High,
		Low:          r.Low,
		Close:        r.Close,
		VWAP:         r.VWAP,
		Volume:       r.Volume,
		DollarVolume: r.DollarVolume,
		TickCount:    r.TickCount,
	}
	if r.Metadata != nil {
		var state trademodel.EWMAState
		if err := json.Unmarshal([]byte(*r.Metadata), &state); err != nil {
			return trademodel.Bar{}, err
		}
		bar.Metadata = &state
	}
	return bar, nil
}
