package arcana

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/shopspring/decimal"
	"github.com/spf13/cobra"

	"arcana/internal/bars"
	"arcana/internal/calibration"
	"arcana/internal/pipeline"
	"arcana/internal/storage"
	"arcana/internal/trademodel"
)

var barsCmd = &cobra.Command{
	Use:   "bars",
	Short: "Build or calibrate bars from stored trades",
}

func init() {
	barsCmd.AddCommand(barsBuildCmd)
	barsCmd.AddCommand(barsBuildAllCmd)
	barsCmd.AddCommand(barsCalibrateCmd)
}

var (
	buildSource  string
	buildRebuild bool
)

var barsBuildCmd = &cobra.Command{
	Use:   "build <bar-spec> <pair>",
	Short: "Build bars from stored trades using a bar spec",
	Args:  cobra.ExactArgs(2),
	Run: func(cmd *cobra.Command, args []string) {
		spec, pair := args[0], args[1]

		cfg, err := loadConfig()
		if err != nil {
			fail(err)
		}
		s, err := openStorage(cfg)
		if err != nil {
			fail(err)
		}
		defer s.Close()

		ctx := context.Background()
		cache := calibration.NewCache(cfg.Redis.Host, cfg.Redis.Port, cfg.Redis.Password)
		defer cache.Close()

		builder, err := resolveSpec(ctx, s, cache, spec, buildSource, pair, cfg.Pipeline.BarsPerDay)
		if err != nil {
			fail(err)
		}

		token, cancel := pipeline.WatchSignals()
		defer cancel()

		total, err := pipeline.BuildBars(token.Context(), builder, s, pair, buildSource, buildRebuild, token)
		if err != nil {
			fail(err)
		}
		fmt.Printf("built %d %s bars for %s\n", total, builder.BarType(), pair)
	},
}

func init() {
	barsBuildCmd.Flags().StringVar(&buildSource, "source", "coinbase", "exchange data source")
	barsBuildCmd.Flags().BoolVar(&buildRebuild, "rebuild", false, "delete all existing bars and rebuild from scratch")
}

// resolveSpec parses spec into a Builder, resolving auto-calibrated
// forms (tick_auto[_B], volume_auto[_B], dollar_auto[_B]) against stored
// trades — consulting the calibration cache first — since that's the
// one piece of bar-spec resolution that needs a live Storage handle.
func resolveSpec(ctx context.Context, s storage.Storage, cache *calibration.Cache, spec, source, pair string, barsPerDay int) (bars.Builder, error) {
	builder, err := bars.ParseSpec(spec, source, pair)
	if err == nil {
		return builder, nil
	}

	var autoErr *bars.ErrAutoSpec
	if !errors.As(err, &autoErr) {
		return nil, err
	}

	target := barsPerDay
	if autoErr.BarsPerDay > 0 {
		target = autoErr.BarsPerDay
	}

	// The cache key carries the bars-per-day target, so a value calibrated
	// for one target is never reused for another.
	cacheKind := fmt.Sprintf("%s_auto_%d", autoErr.Kind, target)
	if cached, ok := cache.Get(ctx, pair, source, cacheKind); ok {
		return buildFromThreshold(autoErr.Kind, source, pair, cached.Value)
	}

	var threshold float64
	switch autoErr.Kind {
	case "tick":
		n, err := calibration.TickThreshold(ctx, s, pair, source, target)
		if err != nil {
			return nil, err
		}
		threshold = float64(n)
	case "volume", "dollar":
		var err error
		if autoErr.Kind == "volume" {
			threshold, err = calibration.VolumeThreshold(ctx, s, pair, source, target)
		} else {
			threshold, err = calibration.DollarThreshold(ctx, s, pair, source, target)
		}
		if err != nil {
			return nil, err
		}
	default:
		return nil, fmt.Errorf("bars: unexpected auto-calibrated kind %q", autoErr.Kind)
	}

	cache.Set(ctx, pair, source, cacheKind, calibration.Result{Value: threshold})
	return buildFromThreshold(autoErr.Kind, source, pair, threshold)
}

func buildFromThreshold(kind, source, pair string, threshold float64) (bars.Builder, error) {
	switch kind {
	case "tick":
		return bars.NewTickBarBuilder(source, pair, int64(threshold))
	case "volume":
		return bars.NewVolumeBarBuilder(source, pair, decimal.NewFromFloat(threshold))
	case "dollar":
		return bars.NewDollarBarBuilder(source, pair, decimal.NewFromFloat(threshold))
	default:
		return nil, fmt.Errorf("bars: unexpected auto-calibrated kind %q", kind)
	}
}

var buildAllSource string

// barsBuildAllCmd builds every enabled entry of the `bars:` config list
// against a single pair, the way original_source's overnight_ingest.py
// loops over cfg.bars after a backfill: resolve each spec (applying its
// per-entry overrides), build it, log a failure and move on to the next
// entry rather than aborting the whole run.
var barsBuildAllCmd = &cobra.Command{
	Use:   "build-all <pair>",
	Short: "Build every enabled bar spec from the bars: config list",
	Args:  cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		pair := args[0]

		cfg, err := loadConfig()
		if err != nil {
			fail(err)
		}
		if len(cfg.Bars) == 0 {
			fail(fmt.Errorf("no bars configured; pass --bars-config pointing at a YAML file with a 'bars:' list"))
		}

		s, err := openStorage(cfg)
		if err != nil {
			fail(err)
		}
		defer s.Close()

		ctx := context.Background()
		cache := calibration.NewCache(cfg.Redis.Host, cfg.Redis.Port, cfg.Redis.Password)
		defer cache.Close()

		token, cancel := pipeline.WatchSignals()
		defer cancel()

		for _, bc := range cfg.Bars {
			if token.Requested() {
				break
			}
			if !bc.IsEnabled() {
				fmt.Printf("skipping disabled bar spec %q\n", bc.Spec)
				continue
			}

			barsPerDay := bc.BarsPerDayOverride
			if barsPerDay <= 0 {
				barsPerDay = cfg.Pipeline.BarsPerDay
			}

			builder, err := resolveSpec(ctx, s, cache, bc.Spec, buildAllSource, pair, barsPerDay)
			if err != nil {
				fmt.Fprintf(os.Stderr, "arcana: bar spec %q: %v\n", bc.Spec, err)
				continue
			}
			if bc.InitialExpectedOverride != nil {
				applyInitialExpectedOverride(builder, bc.Spec, *bc.InitialExpectedOverride)
			}

			total, err := pipeline.BuildBars(token.Context(), builder, s, pair, buildAllSource, false, token)
			if err != nil {
				fmt.Fprintf(os.Stderr, "arcana: building %q: %v\n", bc.Spec, err)
				continue
			}
			fmt.Printf("built %d %s bars for %s\n", total, builder.BarType(), pair)
		}
	},
}

func init() {
	barsBuildAllCmd.Flags().StringVar(&buildAllSource, "source", "coinbase", "exchange data source")
}

// infoDrivenKinds names the bar kinds whose spec has the form
// "<kind>_<window>" and whose Builder honors RestoreState as an EWMA seed.
var infoDrivenKinds = map[string]bool{
	"tib": true, "vib": true, "dib": true,
	"trb": true, "vrb": true, "drb": true,
}

// applyInitialExpectedOverride seeds an information-driven builder's EWMA
// estimator with a config-supplied initial expected value, preserving the
// window the spec already parsed to. It's a no-op for every other bar
// kind, since RestoreState is a no-op on the standard builders too.
func applyInitialExpectedOverride(builder bars.Builder, spec string, value float64) {
	kind, rest, ok := strings.Cut(spec, "_")
	if !ok || !infoDrivenKinds[kind] {
		return
	}
	window, err := strconv.Atoi(rest)
	if err != nil {
		return
	}
	builder.RestoreState(&trademodel.EWMAState{Window: window, Expected: value})
}

var (
	calibrateSource     string
	calibrateBarsPerDay int
)

var barsCalibrateCmd = &cobra.Command{
	Use:   "calibrate <kind> <pair>",
	Short: "Calibrate a bar threshold or EWMA seed against stored trades",
	Long: "kind is one of tick, volume, dollar (scalar thresholds) or " +
		"tib, vib, dib, trb, vrb, drb (information-driven EWMA seeds).",
	Args: cobra.ExactArgs(2),
	Run: func(cmd *cobra.Command, args []string) {
		kind, pair := args[0], args[1]

		cfg, err := loadConfig()
		if err != nil {
			fail(err)
		}
		s, err := openStorage(cfg)
		if err != nil {
			fail(err)
		}
		defer s.Close()

		ctx := context.Background()
		barsPerDay := calibrateBarsPerDay
		if barsPerDay <= 0 {
			barsPerDay = cfg.Pipeline.BarsPerDay
		}

		switch kind {
		case "tick":
			v, err := calibration.TickThreshold(ctx, s, pair, calibrateSource, barsPerDay)
			failOnErr(err)
			fmt.Printf("tick_%d\n", v)
		case "volume":
			v, err := calibration.VolumeThreshold(ctx, s, pair, calibrateSource, barsPerDay)
			failOnErr(err)
			fmt.Printf("volume_%s\n", decimal.NewFromFloat(v).String())
		case "dollar":
			v, err := calibration.DollarThreshold(ctx, s, pair, calibrateSource, barsPerDay)
			failOnErr(err)
			fmt.Printf("dollar_%s\n", decimal.NewFromFloat(v).String())
		case "tib", "vib", "dib", "trb", "vrb", "drb":
			v, err := calibration.InitialExpected(ctx, s, pair, calibrateSource, kind, barsPerDay)
			failOnErr(err)
			fmt.Printf("%s initial expected value: %.6f\n", kind, v)
		default:
			fail(fmt.Errorf("unknown calibration kind %q", kind))
		}
	},
}

func init() {
	barsCalibrateCmd.Flags().StringVar(&calibrateSource, "source", "coinbase", "exchange data source")
	barsCalibrateCmd.Flags().IntVar(&calibrateBarsPerDay, "bars-per-day", 0, "target bars per day (default: config ARCANA_BARS_PER_DAY)")
}

func failOnErr(err error) {
	if err != nil {
		fail(err)
	}
}
