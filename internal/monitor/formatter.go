package monitor

import "fmt"

// FormatUptime formats uptime seconds as "Xh Ym" or "Xm".
func FormatUptime(seconds float64) string {
	total := int64(seconds)
	hours := total / 3600
	minutes := (total % 3600) / 60

	if hours > 0 {
		return fmt.Sprintf("%dh %dm", hours, minutes)
	}
	return fmt.Sprintf("%dm", minutes)
}

// FormatPercentage formats a ratio in [0,1] as "X.X%".
func FormatPercentage(ratio float64) string {
	return fmt.Sprintf("%.1f%%", ratio*100)
}

// FormatScore formats a composite score with three decimals.
func FormatScore(score float64) string {
	return fmt.Sprintf("%.3f", score)
}

// Ratio divides part by total, returning 0 for an empty total.
func Ratio(part, total uint64) float64 {
	if total == 0 {
		return 0
	}
	return float64(part) / float64(total)
}
