package bars

import (
	"errors"
	"testing"
	"time"
)

func TestParseSpec_FixedForms(t *testing.T) {
	cases := []struct {
		spec    string
		wantBar string
	}{
		{"tick_500", "tick_500"},
		{"volume_12.5", "volume_12.5"},
		{"dollar_50000", "dollar_50000"},
		{"time_5m", "time_5m"},
		{"time_30s", "time_30s"},
		{"tib_20", "tib_20"},
		{"vib_15", "vib_15"},
		{"dib_7", "dib_7"},
		{"trb_10", "trb_10"},
		{"vrb_8", "vrb_8"},
		{"drb_3", "drb_3"},
	}
	for _, c := range cases {
		b, err := ParseSpec(c.spec, "coinbase", "ETH-USD")
		if err != nil {
			t.Errorf("ParseSpec(%q) error = %v", c.spec, err)
			continue
		}
		if got := b.BarType(); got != c.wantBar {
			t.Errorf("ParseSpec(%q).BarType() = %q, want %q", c.spec, got, c.wantBar)
		}
	}
}

func TestParseSpec_TimeInterval(t *testing.T) {
	b, err := ParseSpec("time_2h", "coinbase", "ETH-USD")
	if err != nil {
		t.Fatal(err)
	}
	tb, ok := b.(*TimeBarBuilder)
	if !ok {
		t.Fatalf("ParseSpec(time_2h) returned %T, want *TimeBarBuilder", b)
	}
	if tb.interval != 2*time.Hour {
		t.Errorf("interval = %s, want 2h", tb.interval)
	}
}

func TestParseSpec_AutoFormsReturnErrAutoSpec(t *testing.T) {
	cases := []struct {
		spec       string
		wantKind   string
		wantPerDay int
	}{
		{"dollar_auto", "dollar", 0},
		{"tick_auto_50", "tick", 50},
		{"volume_auto_25", "volume", 25},
	}
	for _, c := range cases {
		_, err := ParseSpec(c.spec, "coinbase", "ETH-USD")
		var autoErr *ErrAutoSpec
		if !errors.As(err, &autoErr) {
			t.Errorf("ParseSpec(%q) error = %v, want *ErrAutoSpec", c.spec, err)
			continue
		}
		if autoErr.Kind != c.wantKind || autoErr.BarsPerDay != c.wantPerDay {
			t.Errorf("ParseSpec(%q) = %+v, want kind=%s barsPerDay=%d", c.spec, autoErr, c.wantKind, c.wantPerDay)
		}
	}
}

func TestParseSpec_RejectsMalformedSpec(t *testing.T) {
	cases := []string{"", "bogus", "tick_", "tick_abc", "time_5", "time_5x", "tib_"}
	for _, spec := range cases {
		_, err := ParseSpec(spec, "coinbase", "ETH-USD")
		if err == nil {
			t.Errorf("ParseSpec(%q) should have failed", spec)
			continue
		}
		var specErr *SpecError
		if !errors.As(err, &specErr) {
			t.Errorf("ParseSpec(%q) error = %v (%T), want *SpecError", spec, err, err)
		}
	}
}
