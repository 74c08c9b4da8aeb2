package helper

import (
	"fmt"
	"math"
	"time"
)

// FormatRelative renders the distance between t and now as "5 minutes ago",
// "about 2 hours ago" and so on. Future times are clamped to "less than a
// minute ago".
func FormatRelative(t, now time.Time) string {
	d := now.Sub(t)
	if d < 0 {
		d = 0
	}

	seconds := d.Seconds()
	minutes := int(math.Round(seconds / 60))

	switch {
	case seconds < 30:
		return "less than a minute ago"
	case minutes < 2:
		return "1 minute ago"
	case minutes < 45:
		return fmt.Sprintf("%d minutes ago", minutes)
	case minutes < 90:
		return "about 1 hour ago"
	case minutes < 24*60:
		return fmt.Sprintf("about %d hours ago", int(math.Round(float64(minutes)/60)))
	case minutes < 42*60:
		return "1 day ago"
	case minutes < 30*24*60:
		return fmt.Sprintf("%d days ago", int(math.Round(float64(minutes)/(24*60))))
	case minutes < 45*24*60:
		return "about 1 month ago"
	case minutes < 60*24*60:
		return "about 2 months ago"
	}

	months := int(math.Round(float64(minutes) / (30 * 24 * 60)))
	if months < 12 {
		return fmt.Sprintf("%d months ago", months)
	}

	years := months / 12
	if years <= 1 {
		return "about 1 year ago"
	}
	return fmt.Sprintf("about %d years ago", years)
}
