package bars

import (
	"fmt"
	"time"

	"arcana/internal/trademodel"

	"github.com/shopspring/decimal"
)

// TickBarBuilder emits a bar every N trades (§4.2).
type TickBarBuilder struct {
	source, pair string
	threshold    int64
	acc          *Accumulator
}

// NewTickBarBuilder builds tick_N bars. threshold must be a positive
// integer.
func NewTickBarBuilder(source, pair string, threshold int64) (*TickBarBuilder, error) {
	if threshold <= 0 {
		return nil, fmt.Errorf("bars: tick threshold must be positive, got %d", threshold)
	}
	return &TickBarBuilder{source: source, pair: pair, threshold: threshold, acc: NewAccumulator()}, nil
}

func (b *TickBarBuilder) BarType() string { return fmt.Sprintf("tick_%d", b.threshold) }

func (b *TickBarBuilder) ProcessTrade(t trademodel.Trade) *trademodel.Bar {
	b.acc.Add(t)
	if b.acc.TickCount() >= b.threshold {
		bar := b.acc.ToBar(b.BarType(), b.source, b.pair, nil)
		b.acc = NewAccumulator()
		return &bar
	}
	return nil
}

func (b *TickBarBuilder) ProcessTrades(batch []trademodel.Trade) []trademodel.Bar {
	return processTrades(b, batch)
}

func (b *TickBarBuilder) Flush() *trademodel.Bar {
	return flushAccumulator(&b.acc, b.BarType(), b.source, b.pair, nil)
}

func (b *TickBarBuilder) RestoreState(*trademodel.EWMAState) {}

// VolumeBarBuilder emits a bar every V units of base-currency volume.
type VolumeBarBuilder struct {
	source, pair string
	threshold    decimal.Decimal
	acc          *Accumulator
}

// NewVolumeBarBuilder builds volume_V bars. threshold must be positive.
func NewVolumeBarBuilder(source, pair string, threshold decimal.Decimal) (*VolumeBarBuilder, error) {
	if !threshold.IsPositive() {
		return nil, fmt.Errorf("bars: volume threshold must be positive, got %s", threshold)
	}
	return &VolumeBarBuilder{source: source, pair: pair, threshold: threshold, acc: NewAccumulator()}, nil
}

func (b *VolumeBarBuilder) BarType() string { return fmt.Sprintf("volume_%s", b.threshold.String()) }

func (b *VolumeBarBuilder) ProcessTrade(t trademodel.Trade) *trademodel.Bar {
	b.acc.Add(t)
	if b.acc.Volume().GreaterThanOrEqual(b.threshold) {
		bar := b.acc.ToBar(b.BarType(), b.source, b.pair, nil)
		b.acc = NewAccumulator()
		return &bar
	}
	return nil
}

func (b *VolumeBarBuilder) ProcessTrades(batch []trademodel.Trade) []trademodel.Bar {
	return processTrades(b, batch)
}

func (b *VolumeBarBuilder) Flush() *trademodel.Bar {
	return flushAccumulator(&b.acc, b.BarType(), b.source, b.pair, nil)
}

func (b *VolumeBarBuilder) RestoreState(*trademodel.EWMAState) {}

// DollarBarBuilder emits a bar every D dollars of notional volume.
type DollarBarBuilder struct {
	source, pair string
	threshold    decimal.Decimal
	acc          *Accumulator
}

// NewDollarBarBuilder builds dollar_D bars. threshold must be positive.
func NewDollarBarBuilder(source, pair string, threshold decimal.Decimal) (*DollarBarBuilder, error) {
	if !threshold.IsPositive() {
		return nil, fmt.Errorf("bars: dollar threshold must be positive, got %s", threshold)
	}
	return &DollarBarBuilder{source: source, pair: pair, threshold: threshold, acc: NewAccumulator()}, nil
}

func (b *DollarBarBuilder) BarType() string { return fmt.Sprintf("dollar_%s", b.threshold.String()) }

func (b *DollarBarBuilder) ProcessTrade(t trademodel.Trade) *trademodel.Bar {
	b.acc.Add(t)
	if b.acc.DollarVolume().GreaterThanOrEqual(b.threshold) {
		bar := b.acc.ToBar(b.BarType(), b.source, b.pair, nil)
		b.acc = NewAccumulator()
		return &bar
	}
	return nil
}

func (b *DollarBarBuilder) ProcessTrades(batch []trademodel.Trade) []trademodel.Bar {
	return processTrades(b, batch)
}

func (b *DollarBarBuilder) Flush() *trademodel.Bar {
	return flushAccumulator(&b.acc, b.BarType(), b.source, b.pair, nil)
}

func (b *DollarBarBuilder) RestoreState(*trademodel.EWMAState) {}

// TimeBarBuilder emits a bar at fixed, epoch-aligned wall-clock intervals
// (§4.2). A trade that lands in a new bucket emits the previous bucket's
// bar first, then becomes the sole content of the fresh bucket.
type TimeBarBuilder struct {
	source, pair      string
	interval          time.Duration
	intervalSeconds   int64
	label             string
	currentBucketEnd  time.Time
	haveBucket        bool
	acc               *Accumulator
}

// NewTimeBarBuilder builds time_Nu bars. interval must be positive.
func NewTimeBarBuilder(source, pair string, interval time.Duration) (*TimeBarBuilder, error) {
	if interval <= 0 {
		return nil, fmt.Errorf("bars: time interval must be positive, got %s", interval)
	}
	return &TimeBarBuilder{
		source:          source,
		pair:            pair,
		interval:        interval,
		intervalSeconds: int64(interval.Seconds()),
		label:           timeBarLabel(interval),
		acc:             NewAccumulator(),
	}, nil
}

func timeBarLabel(interval time.Duration) string {
	secs := int64(interval.Seconds())
	switch {
	case secs < 60:
		return fmt.Sprintf("time_%ds", secs)
	case secs < 3600:
		return fmt.Sprintf("time_%dm", secs/60)
	case secs < 86400:
		return fmt.Sprintf("time_%dh", secs/3600)
	default:
		return fmt.Sprintf("time_%dd", secs/86400)
	}
}

func (b *TimeBarBuilder) BarType() string { return b.label }

// bucketEnd computes the end of the epoch-aligned bucket containing ts,
// per §4.2: bucket(t) = [⌊t/I⌋·I, ⌊t/I⌋·I + I), computed in Unix seconds.
func (b *TimeBarBuilder) bucketEnd(ts time.Time) time.Time {
	epoch := ts.Unix()
	bucketStart := (epoch / b.intervalSeconds) * b.intervalSeconds
	return time.Unix(bucketStart+b.intervalSeconds, 0).UTC()
}

func (b *TimeBarBuilder) ProcessTrade(t trademodel.Trade) *trademodel.Bar {
	end := b.bucketEnd(t.Timestamp)

	var result *trademodel.Bar
	if b.haveBucket && !end.Equal(b.currentBucketEnd) && b.acc.TickCount() > 0 {
		bar := b.acc.ToBar(b.BarType(), b.source, b.pair, nil)
		result = &bar
		b.acc = NewAccumulator()
	}

	b.currentBucketEnd = end
	b.haveBucket = true
	b.acc.Add(t)
	return result
}

func (b *TimeBarBuilder) ProcessTrades(batch []trademodel.Trade) []trademodel.Bar {
	return processTrades(b, batch)
}

func (b *TimeBarBuilder) Flush() *trademodel.Bar {
	return flushAccumulator(&b.acc, b.BarType(), b.source, b.pair, nil)
}

func (b *TimeBarBuilder) RestoreState(*trademodel.EWMAState) {}

// flushAccumulator is the shared Flush() body for every builder: emit the
// partial bar if any trades were accumulated, then reset.
func flushAccumulator(acc **Accumulator, barType, source, pair string, metadata *trademodel.EWMAState) *trademodel.Bar {
	if (*acc).TickCount() == 0 {
		return nil
	}
	bar := (*acc).ToBar(barType, source, pair, metadata)
	*acc = NewAccumulator()
	return &bar
}
