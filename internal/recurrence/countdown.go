package recurrence

import (
	"fmt"
	"time"
)

// FormatCountdown renders target-now using the largest non-zero unit:
//
//	"2 days", "5 hours", "5:07 hours", "1:30 minutes", "45 seconds"
//
// Each unit is taken from the whole-second total on its own (hours is
// totalHours mod 24, not derived from the truncated day count). Targets in the
// past render as "0 seconds". time.Duration saturates near 292 years, so
// anything further out renders as "106751 days".
func FormatCountdown(target, now time.Time) string {
	total := int64(target.Sub(now) / time.Second)
	if total < 0 {
		total = 0
	}

	days := total / 86400
	hours := (total / 3600) % 24
	minutes := (total / 60) % 60
	seconds := total % 60

	switch {
	case days > 0:
		return fmt.Sprintf("%d days", days)
	case hours > 0:
		if minutes == 0 {
			return fmt.Sprintf("%d hours", hours)
		}
		return fmt.Sprintf("%d:%02d hours", hours, minutes)
	case minutes > 0:
		return fmt.Sprintf("%d:%02d minutes", minutes, seconds)
	default:
		return fmt.Sprintf("%d seconds", seconds)
	}
}

// Countdown renders the time left until the next reset of c.
func Countdown(c Cadence, now time.Time) string {
	return FormatCountdown(NextReset(c, now), now)
}

func DailyCountdown(now time.Time) string   { return Countdown(Daily, now) }
func WeeklyCountdown(now time.Time) string  { return Countdown(Weekly, now) }
func MonthlyCountdown(now time.Time) string { return Countdown(Monthly, now) }
