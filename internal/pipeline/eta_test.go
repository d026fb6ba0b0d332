package pipeline

import (
	"testing"
	"time"
)

func TestFormatETA(t *testing.T) {
	cases := []struct {
		d    time.Duration
		want string
	}{
		{30 * time.Second, "30s"},
		{90 * time.Second, "1.5m"},
		{2 * time.Hour, "2h 0m"},
		{2*time.Hour + 15*time.Minute, "2h 15m"},
	}
	for _, c := range cases {
		if got := formatETA(c.d); got != c.want {
			t.Errorf("formatETA(%v) = %q, want %q", c.d, got, c.want)
		}
	}
}
