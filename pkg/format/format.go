package format

import (
	"fmt"
	"math"
	"time"
)

const (
	zeroPercent = "0%"
	neverSeen   = "never"
	mbPerGB     = 1024
)

// Memory formats a megabyte quantity for display. Values below one
// gigabyte render as whole megabytes, anything larger as fractional
// gigabytes with one decimal place.
func Memory(mb int64) string {
	if mb < mbPerGB {
		return fmt.Sprintf("%d MB", mb)
	}
	return fmt.Sprintf("%.1f GB", float64(mb)/float64(mbPerGB))
}

// CalculateMemoryUsage returns used memory as a percentage of total.
// A zero or negative total yields 0 rather than a division error.
func CalculateMemoryUsage(usedMB, totalMB int64) float64 {
	if totalMB <= 0 {
		return 0
	}
	return math.Round(100*float64(usedMB)/float64(totalMB)*10) / 10
}

// Duration formats duration in a readable way
func Duration(d time.Duration) string {
	if d < time.Second {
		return d.String()
	}

	hours := int(d.Hours())
	minutes := int(d.Minutes()) % 60
	seconds := int(d.Seconds()) % 60

	if hours > 0 {
		return fmt.Sprintf("%dh%dm%ds", hours, minutes, seconds)
	} else if minutes > 0 {
		return fmt.Sprintf("%dm%ds", minutes, seconds)
	}
	return fmt.Sprintf("%ds", seconds)
}

func Percentage(value float64) string {
	if value == 0 {
		return zeroPercent
	}
	if value == 100.0 {
		return "100%"
	}
	return fmt.Sprintf("%.1f%%", value)
}

func TimeAgo(t time.Time) string {
	if t.IsZero() {
		return neverSeen
	}
	return TimeDuration(time.Since(t)) + " ago"
}

func TimeDuration(d time.Duration) string {
	if d < time.Minute {
		return fmt.Sprintf("%ds", int(d.Seconds()))
	}
	if d < time.Hour {
		return fmt.Sprintf("%.0fm", d.Minutes())
	}
	if d < 24*time.Hour {
		return fmt.Sprintf("%.0fh", d.Hours())
	}
	return fmt.Sprintf("%.0fd", d.Hours()/24)
}
