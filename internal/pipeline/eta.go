package pipeline

import (
	"fmt"
	"time"
)

// formatETA renders a duration as a short human-readable estimate:
// seconds below a minute, minutes with one decimal below an hour,
// otherwise whole hours and minutes.
func formatETA(d time.Duration) string {
	seconds := d.Seconds()
	switch {
	case seconds < 60:
		return fmt.Sprintf("%.0fs", seconds)
	case seconds < 3600:
		return fmt.Sprintf("%.1fm", seconds/60)
	default:
		hours := int(seconds) / 3600
		minutes := (int(seconds) % 3600) / 60
		return fmt.Sprintf("%dh %dm", hours, minutes)
	}
}
