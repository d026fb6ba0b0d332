// Package calibration implements the four auto-calibration formulas from
// §5: scalar thresholds for tick/volume/dollar bars, and the initial EWMA
// expected value for information-driven bars, all estimated from a
// pair's stored trade history.
package calibration

import (
	"context"
	"fmt"
	"math"

	"arcana/internal/storage"
)

// defaultBarsPerDay is the target emission rate calibration aims for
// when the caller doesn't override it.
const defaultBarsPerDay = 50

// roundToCleanMagnitude rounds raw to the nearest multiple of its own
// power-of-ten order of magnitude — 213847 → 200000, 58312 → 60000 — so
// calibrated thresholds read as round numbers instead of noise.
func roundToCleanMagnitude(raw float64) float64 {
	magnitude := math.Pow(10, math.Floor(math.Log10(raw)))
	return math.Round(raw/magnitude) * magnitude
}

// DollarThreshold auto-calibrates a dollar_D threshold from stored
// trades: total dollar volume divided by (days × bars_per_day), rounded
// to a clean magnitude.
func DollarThreshold(ctx context.Context, s storage.Storage, pair, source string, barsPerDay int) (float64, error) {
	if barsPerDay <= 0 {
		barsPerDay = defaultBarsPerDay
	}
	stats, err := s.Stats(ctx, pair, source)
	if err != nil {
		return 0, fmt.Errorf("calibration: dollar threshold: %w", err)
	}
	days := stats.Days()
	if days <= 0 {
		return 0, fmt.Errorf("calibration: dollar threshold: trade log for %s/%s spans zero days", source, pair)
	}
	raw := stats.TotalDollarVolume / (days * float64(barsPerDay))
	return roundToCleanMagnitude(raw), nil
}

// TickThreshold auto-calibrates a tick_N threshold: total trade count
// divided by (days × bars_per_day), rounded to an integer, floored at 1.
func TickThreshold(ctx context.Context, s storage.Storage, pair, source string, barsPerDay int) (int64, error) {
	if barsPerDay <= 0 {
		barsPerDay = defaultBarsPerDay
	}
	stats, err := s.Stats(ctx, pair, source)
	if err != nil {
		return 0, fmt.Errorf("calibration: tick threshold: %w", err)
	}
	days := stats.Days()
	if days <= 0 {
		return 0, fmt.Errorf("calibration: tick threshold: trade log for %s/%s spans zero days", source, pair)
	}
	raw := float64(stats.TradeCount) / (days * float64(barsPerDay))
	threshold := int64(math.Round(raw))
	if threshold < 1 {
		threshold = 1
	}
	return threshold, nil
}

// VolumeThreshold auto-calibrates a volume_V threshold: total size
// divided by (days × bars_per_day). Values at or above 1.0 round to a
// clean magnitude like the dollar threshold; values below 1.0 round to
// four decimal places, floored at 0.0001 so the threshold never collapses
// to zero on a thin, low-volume pair.
func VolumeThreshold(ctx context.Context, s storage.Storage, pair, source string, barsPerDay int) (float64, error) {
	if barsPerDay <= 0 {
		barsPerDay = defaultBarsPerDay
	}
	stats, err := s.Stats(ctx, pair, source)
	if err != nil {
		return 0, fmt.Errorf("calibration: volume threshold: %w", err)
	}
	days := stats.Days()
	if days <= 0 {
		return 0, fmt.Errorf("calibration: volume threshold: trade log for %s/%s spans zero days", source, pair)
	}
	raw := stats.TotalSize / (days * float64(barsPerDay))

	var threshold float64
	if raw >= 1.0 {
		threshold = roundToCleanMagnitude(raw)
	} else {
		threshold = math.Round(raw*10000) / 10000
	}
	if threshold < 0.0001 {
		threshold = 0.0001
	}
	return threshold, nil
}

// imbalanceKinds and runKinds partition the six information-driven bar
// kinds calibration knows how to seed.
var (
	imbalanceKinds = map[string]bool{"tib": true, "vib": true, "dib": true}
	runKinds       = map[string]bool{"trb": true, "vrb": true, "drb": true}
	tickKinds      = map[string]bool{"tib": true, "trb": true}
	volumeKinds    = map[string]bool{"vib": true, "vrb": true}
)

// InitialExpected calibrates E₀, the EWMA estimator's seed, for an
// information-driven bar kind ("tib", "vib", "dib", "trb", "vrb", "drb"),
// following Prado's expected-ticks/expected-run-length reasoning (§5).
func InitialExpected(ctx context.Context, s storage.Storage, pair, source, barKind string, barsPerDay int) (float64, error) {
	if !imbalanceKinds[barKind] && !runKinds[barKind] {
		return 0, fmt.Errorf("calibration: unknown information-driven bar kind %q", barKind)
	}
	if barsPerDay <= 0 {
		barsPerDay = defaultBarsPerDay
	}

	stats, err := s.Stats(ctx, pair, source)
	if err != nil {
		return 0, fmt.Errorf("calibration: initial expected: %w", err)
	}
	days := stats.Days()
	if days <= 0 {
		return 0, fmt.Errorf("calibration: initial expected: trade log for %s/%s spans zero days", source, pair)
	}
	expectedTicksPerBar := float64(stats.TradeCount) / (days * float64(barsPerDay))

	var contribution float64
	switch {
	case tickKinds[barKind]:
		contribution = 1.0
	case volumeKinds[barKind]:
		contribution = stats.MeanSize
	default:
		contribution = stats.MeanDollarVolume
	}

	if imbalanceKinds[barKind] {
		directionBias := math.Max(math.Abs(2*stats.BuyFraction-1), 0.1)
		return expectedTicksPerBar * directionBias * contribution, nil
	}

	pSame := math.Max(stats.BuyFraction, 1-stats.BuyFraction)
	pSame = math.Min(math.Max(pSame, 0.55), 0.95)
	expectedRunLength := pSame / (1 - pSame)
	return expectedRunLength * contribution, nil
}
