package bars

import (
	"fmt"
	"regexp"
	"strconv"
	"time"

	"github.com/shopspring/decimal"
)

// fixedSpecPattern matches tick_N, volume_N, dollar_N, and time_Nu.
var fixedSpecPattern = regexp.MustCompile(`^(tick|volume|dollar)_(\d+(?:\.\d+)?)$|^time_(\d+)([smhd])$`)

// infoSpecPattern matches the six information-driven forms: tib_W, vib_W,
// dib_W, trb_W, vrb_W, drb_W.
var infoSpecPattern = regexp.MustCompile(`^(tib|vib|dib|trb|vrb|drb)_(\d+)$`)

// autoSpecPattern matches tick_auto[_B], volume_auto[_B], dollar_auto[_B].
var autoSpecPattern = regexp.MustCompile(`^(tick|volume|dollar)_auto(?:_(\d+))?$`)

var timeUnitToDuration = map[string]time.Duration{
	"s": time.Second,
	"m": time.Minute,
	"h": time.Hour,
	"d": 24 * time.Hour,
}

// supportedFormsMessage lists every recognized bar-spec form, used in
// diagnostics so callers know exactly what to retype.
const supportedFormsMessage = "Expected one of: tick_N, volume_N, dollar_N, time_Nu (u=s/m/h/d), " +
	"tick_auto[_B], volume_auto[_B], dollar_auto[_B], tib_W, vib_W, dib_W, trb_W, vrb_W, drb_W. " +
	"Examples: tick_500, time_5m, dollar_50000, tib_20"

// ErrAutoSpec is returned by ParseSpec when the spec names an
// auto-calibrated form (e.g. "dollar_auto_50"). Auto forms need a live
// trade log to calibrate against, so ParseSpec — which is pure and I/O
// free — cannot resolve them; the caller must run calibration first and
// substitute the resulting fixed threshold.
type ErrAutoSpec struct {
	Kind      string // "tick", "volume", or "dollar"
	BarsPerDay int    // 0 means "use the default"
}

func (e *ErrAutoSpec) Error() string {
	return fmt.Sprintf("bars: spec %q requires calibration before it can be built; "+
		"run calibration for bar kind %q and substitute the resulting fixed threshold", e.Kind+"_auto", e.Kind)
}

// SpecError reports a bar spec that could not be parsed at all.
type SpecError struct {
	Spec string
}

func (e *SpecError) Error() string {
	return fmt.Sprintf("bars: invalid bar spec %q. %s", e.Spec, supportedFormsMessage)
}

// ParseSpec parses a bar-spec string into a ready-to-use Builder for the
// given source and pair. It handles every pure, I/O-free form (§6's
// bar-spec surface); the `_auto[_B]` forms return ErrAutoSpec instead,
// since resolving them requires calibration against stored trades.
//
// Information-driven forms (tib_W etc.) are constructed with a cold-start
// EWMA (initial expected value 0); callers that have a calibrated seed
// should build the concrete builder directly instead of going through
// ParseSpec.
func ParseSpec(spec, source, pair string) (Builder, error) {
	if m := fixedSpecPattern.FindStringSubmatch(spec); m != nil {
		if m[1] != "" {
			return parseFixedScalar(m[1], m[2], source, pair)
		}
		return parseFixedTime(m[3], m[4], source, pair)
	}

	if m := infoSpecPattern.FindStringSubmatch(spec); m != nil {
		window, err := strconv.Atoi(m[2])
		if err != nil {
			return nil, &SpecError{Spec: spec}
		}
		return parseInfoDriven(m[1], window, source, pair)
	}

	if m := autoSpecPattern.FindStringSubmatch(spec); m != nil {
		barsPerDay := 0
		if m[2] != "" {
			n, err := strconv.Atoi(m[2])
			if err != nil {
				return nil, &SpecError{Spec: spec}
			}
			barsPerDay = n
		}
		return nil, &ErrAutoSpec{Kind: m[1], BarsPerDay: barsPerDay}
	}

	return nil, &SpecError{Spec: spec}
}

func parseFixedScalar(kind, value, source, pair string) (Builder, error) {
	switch kind {
	case "tick":
		n, err := strconv.ParseInt(value, 10, 64)
		if err != nil {
			return nil, &SpecError{Spec: "tick_" + value}
		}
		return NewTickBarBuilder(source, pair, n)
	case "volume":
		d, err := decimal.NewFromString(value)
		if err != nil {
			return nil, &SpecError{Spec: "volume_" + value}
		}
		return NewVolumeBarBuilder(source, pair, d)
	case "dollar":
		d, err := decimal.NewFromString(value)
		if err != nil {
			return nil, &SpecError{Spec: "dollar_" + value}
		}
		return NewDollarBarBuilder(source, pair, d)
	default:
		return nil, &SpecError{Spec: kind}
	}
}

func parseFixedTime(amount, unit, source, pair string) (Builder, error) {
	n, err := strconv.Atoi(amount)
	if err != nil {
		return nil, &SpecError{Spec: "time_" + amount + unit}
	}
	unitDur, ok := timeUnitToDuration[unit]
	if !ok {
		return nil, &SpecError{Spec: "time_" + amount + unit}
	}
	return NewTimeBarBuilder(source, pair, time.Duration(n)*unitDur)
}

func parseInfoDriven(kind string, window int, source, pair string) (Builder, error) {
	const coldStart = 0.0
	switch kind {
	case "tib":
		return NewTickImbalanceBarBuilder(source, pair, window, coldStart)
	case "vib":
		return NewVolumeImbalanceBarBuilder(source, pair, window, coldStart)
	case "dib":
		return NewDollarImbalanceBarBuilder(source, pair, window, coldStart)
	case "trb":
		return NewTickRunBarBuilder(source, pair, window, coldStart)
	case "vrb":
		return NewVolumeRunBarBuilder(source, pair, window, coldStart)
	case "drb":
		return NewDollarRunBarBuilder(source, pair, window, coldStart)
	default:
		return nil, &SpecError{Spec: kind}
	}
}
