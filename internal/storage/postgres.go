package storage

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sync"
	"time"

	"arcana/internal/trademodel"

	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
	"gorm.io/gorm/logger"
)

// Postgres is the Storage implementation backing Arcana's trade log and
// bar tables. GORM's AutoMigrate manages the static trades table; bar
// tables are created with raw DDL on first use, the same split the
// teacher uses for hypertables GORM can't auto-migrate cleanly.
type Postgres struct {
	db *gorm.DB

	mu      sync.Mutex
	created map[string]bool // bar tables confirmed to exist this process
}

// Config holds the Postgres connection parameters (§6's configuration
// surface).
type Config struct {
	Host     string
	Port     int
	Database string
	User     string
	Password string
	SSLMode  string
}

// DSN renders the libpq connection string GORM's postgres driver expects.
func (c Config) DSN() string {
	sslmode := c.SSLMode
	if sslmode == "" {
		sslmode = "disable"
	}
	return fmt.Sprintf("host=%s port=%d dbname=%s user=%s password=%s sslmode=%s",
		c.Host, c.Port, c.Database, c.User, c.Password, sslmode)
}

// Open connects to Postgres and ensures the static trades table exists.
func Open(cfg Config) (*Postgres, error) {
	db, err := gorm.Open(postgres.Open(cfg.DSN()), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Warn),
	})
	if err != nil {
		return nil, Wrap("connect", err)
	}

	if err := db.AutoMigrate(&tradeRow{}); err != nil {
		return nil, Wrap("migrate trades table", err)
	}

	log.Printf("storage: connected to %s:%d/%s", cfg.Host, cfg.Port, cfg.Database)
	return &Postgres{db: db, created: make(map[string]bool)}, nil
}

func (p *Postgres) Close() error {
	sqlDB, err := p.db.DB()
	if err != nil {
		return Wrap("close", err)
	}
	return Wrap("close", sqlDB.Close())
}

func (p *Postgres) InsertTrades(ctx context.Context, trades []trademodel.Trade) (int, error) {
	if len(trades) == 0 {
		return 0, nil
	}
	rows := make([]tradeRow, len(trades))
	for i, t := range trades {
		rows[i] = toTradeRow(t)
	}

	// ON CONFLICT DO NOTHING on (source, trade_id) makes ingestion
	// idempotent: re-running a backfill window never double-counts.
	result := p.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "source"}, {Name: "trade_id"}},
			DoNothing: true,
		}).
		Create(&rows)
	if result.Error != nil {
		return 0, Wrap("insert trades", result.Error)
	}
	return int(result.RowsAffected), nil
}

func (p *Postgres) FirstTradeTimestamp(ctx context.Context, pair, source string) (time.Time, error) {
	var row tradeRow
	err := p.db.WithContext(ctx).
		Where("pair = ? AND source = ?", pair, source).
		Order("timestamp ASC, trade_id ASC").
		First(&row).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return time.Time{}, NewNotFoundErrorWithID("trade", fmt.Sprintf("%s/%s", source, pair))
	}
	if err != nil {
		return time.Time{}, Wrap("first trade timestamp", err)
	}
	return row.Timestamp, nil
}

func (p *Postgres) LastTradeTimestamp(ctx context.Context, pair, source string) (time.Time, error) {
	var row tradeRow
	err := p.db.WithContext(ctx).
		Where("pair = ? AND source = ?", pair, source).
		Order("timestamp DESC, trade_id DESC").
		First(&row).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return time.Time{}, NewNotFoundErrorWithID("trade", fmt.Sprintf("%s/%s", source, pair))
	}
	if err != nil {
		return time.Time{}, Wrap("last trade timestamp", err)
	}
	return row.Timestamp, nil
}

func (p *Postgres) LastTradeTimestampBefore(ctx context.Context, pair, source string, before time.Time) (time.Time, error) {
	var row tradeRow
	err := p.db.WithContext(ctx).
		Where("pair = ? AND source = ? AND timestamp <= ?", pair, source, before).
		Order("timestamp DESC, trade_id DESC").
		First(&row).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return time.Time{}, NewNotFoundErrorWithID("trade", fmt.Sprintf("%s/%s", source, pair))
	}
	if err != nil {
		return time.Time{}, Wrap("last trade timestamp before", err)
	}
	return row.Timestamp, nil
}

func (p *Postgres) ScanTrades(ctx context.Context, pair, source string, since Cursor, limit int) ([]trademodel.Trade, error) {
	var rows []tradeRow
	err := p.db.WithContext(ctx).
		Where("pair = ? AND source = ? AND (timestamp, trade_id) > (?, ?)", pair, source, since.Timestamp, since.TradeID).
		Order("timestamp ASC, trade_id ASC").
		Limit(limit).
		Find(&rows).Error
	if err != nil {
		return nil, Wrap("scan trades", err)
	}
	return rowsToTrades(rows), nil
}

func (p *Postgres) TradesInRange(ctx context.Context, pair, source string, start, end time.Time) ([]trademodel.Trade, error) {
	var rows []tradeRow
	err := p.db.WithContext(ctx).
		Where("pair = ? AND source = ? AND timestamp >= ? AND timestamp < ?", pair, source, start, end).
		Order("timestamp ASC, trade_id ASC").
		Find(&rows).Error
	if err != nil {
		return nil, Wrap("trades in range", err)
	}
	return rowsToTrades(rows), nil
}

func rowsToTrades(rows []tradeRow) []trademodel.Trade {
	out := make([]trademodel.Trade, len(rows))
	for i, r := range rows {
		out[i] = r.toTrade()
	}
	return out
}

func (p *Postgres) Stats(ctx context.Context, pair, source string) (TradeStats, error) {
	type aggregateRow struct {
		TotalSize         float64
		TotalDollarVolume float64
		TradeCount        int64
		Since             time.Time
		Until             time.Time
		BuyCount          int64
	}
	var agg aggregateRow
	err := p.db.WithContext(ctx).Table(tradesTable).
		Select(
			"COALESCE(SUM(size), 0) AS total_size",
			"COALESCE(SUM(price * size), 0) AS total_dollar_volume",
			"COUNT(*) AS trade_count",
			"MIN(timestamp) AS since",
			"MAX(timestamp) AS until",
			"COALESCE(SUM(CASE WHEN side = 'buy' THEN 1 ELSE 0 END), 0) AS buy_count",
		).
		Where("pair = ? AND source = ?", pair, source).
		Scan(&agg).Error
	if err != nil {
		return TradeStats{}, Wrap("trade stats", err)
	}
	if agg.TradeCount == 0 {
		return TradeStats{}, NewNotFoundErrorWithID("trade", fmt.Sprintf("%s/%s", source, pair))
	}

	stats := TradeStats{
		TotalSize:         agg.TotalSize,
		TotalDollarVolume: agg.TotalDollarVolume,
		TradeCount:        agg.TradeCount,
		Since:             agg.Since,
		Until:             agg.Until,
		MeanSize:          agg.TotalSize / float64(agg.TradeCount),
		MeanDollarVolume:  agg.TotalDollarVolume / float64(agg.TradeCount),
		BuyFraction:       float64(agg.BuyCount) / float64(agg.TradeCount),
	}
	return stats, nil
}

// ensureBarTable creates the (bar_type, pair)'s table if it doesn't
// already exist. GORM's AutoMigrate doesn't support a per-call dynamic
// table name cleanly, so — the same way the teacher hand-writes DDL for
// structures its ORM can't auto-migrate — this issues raw, validated SQL.
func (p *Postgres) ensureBarTable(ctx context.Context, barType, pair string) (string, error) {
	table, err := barTableName(barType, pair)
	if err != nil {
		return "", err
	}

	p.mu.Lock()
	known := p.created[table]
	p.mu.Unlock()
	if known {
		return table, nil
	}

	ddl := fmt.Sprintf(`
		CREATE TABLE IF NOT EXISTS %s (
			id BIGSERIAL PRIMARY KEY,
			time_start TIMESTAMPTZ NOT NULL,
			time_end TIMESTAMPTZ NOT NULL,
			source VARCHAR(64) NOT NULL,
			open NUMERIC NOT NULL,
			high NUMERIC NOT NULL,
			low NUMERIC NOT NULL,
			close NUMERIC NOT NULL,
			vwap NUMERIC NOT NULL,
			volume NUMERIC NOT NULL,
			dollar_volume NUMERIC NOT NULL,
			tick_count BIGINT NOT NULL,
			metadata JSONB
		)`, table)
	if err := p.db.WithContext(ctx).Exec(ddl).Error; err != nil {
		return "", Wrap("create bar table "+table, err)
	}
	indexDDL := fmt.Sprintf(`CREATE INDEX IF NOT EXISTS idx_%s_time_start ON %s (time_start)`, table, table)
	if err := p.db.WithContext(ctx).Exec(indexDDL).Error; err != nil {
		return "", Wrap("index bar table "+table, err)
	}

	p.mu.Lock()
	p.created[table] = true
	p.mu.Unlock()
	return table, nil
}

func (p *Postgres) InsertBars(ctx context.Context, bars []trademodel.Bar) error {
	if len(bars) == 0 {
		return nil
	}
	// All bars in one call share a (bar_type, pair) by construction — a
	// builder only ever emits its own type for its own pair.
	table, err := p.ensureBarTable(ctx, bars[0].BarType, bars[0].Pair)
	if err != nil {
		return err
	}

	rows := make([]barRow, len(bars))
	for i, b := range bars {
		row, err := toBarRow(b)
		if err != nil {
			return Wrap("encode bar metadata", err)
		}
		rows[i] = row
	}
	if err := p.db.WithContext(ctx).Table(table).Create(&rows).Error; err != nil {
		return Wrap("insert bars into "+table, err)
	}
	return nil
}

func (p *Postgres) LastBar(ctx context.Context, barType, pair string) (trademodel.Bar, error) {
	table, err := p.ensureBarTable(ctx, barType, pair)
	if err != nil {
		return trademodel.Bar{}, err
	}

	var row barRow
	err = p.db.WithContext(ctx).Table(table).
		Order("time_start DESC").
		First(&row).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return trademodel.Bar{}, NewNotFoundErrorWithID("bar", fmt.Sprintf("%s/%s", barType, pair))
	}
	if err != nil {
		return trademodel.Bar{}, Wrap("last bar", err)
	}
	return row.toBar(barType, pair)
}

func (p *Postgres) DeleteBarsSince(ctx context.Context, barType, pair string, cutoff time.Time) error {
	table, err := p.ensureBarTable(ctx, barType, pair)
	if err != nil {
		return err
	}
	err = p.db.WithContext(ctx).Table(table).
		Where("time_start >= ?", cutoff).
		Delete(&barRow{}).Error
	if err != nil {
		return Wrap("delete bars since "+cutoff.String(), err)
	}
	return nil
}

func (p *Postgres) DeleteAllBars(ctx context.Context, barType, pair string) error {
	table, err := p.ensureBarTable(ctx, barType, pair)
	if err != nil {
		return err
	}
	if err := p.db.WithContext(ctx).Table(table).Where("1 = 1").Delete(&barRow{}).Error; err != nil {
		return Wrap("delete all bars from "+table, err)
	}
	return nil
}

var _ Storage = (*Postgres)(nil)
