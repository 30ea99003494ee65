package video

import "fmt"

// FormatDuration renders seconds as "1h05m" or "12m30s", and "?" when unknown.
func FormatDuration(seconds int) string {
	if seconds >= UnknownDuration {
		return "?"
	}
	if seconds < 0 {
		seconds = 0
	}
	h := seconds / 3600
	m := (seconds % 3600) / 60
	s := seconds % 60
	if h > 0 {
		return fmt.Sprintf("%dh%02dm", h, m)
	}
	return fmt.Sprintf("%dm%02ds", m, s)
}

// FormatViews renders a view count as "1.2M", "3.4K" or the plain number.
func FormatViews(count int64) string {
	switch {
	case count >= 1_000_000:
		return fmt.Sprintf("%.1fM", float64(count)/1_000_000)
	case count >= 1_000:
		return fmt.Sprintf("%.1fK", float64(count)/1_000)
	default:
		return fmt.Sprintf("%d", count)
	}
}
