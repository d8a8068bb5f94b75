package recurrence

import "time"

const resetWeekday = time.Wednesday

// NextReset returns the next UTC instant, strictly after now, at which tasks
// of cadence c become available again.
//
// Daily resets at UTC midnight, weekly at UTC midnight on Wednesday and monthly
// at UTC midnight on the 1st. When now sits exactly on a boundary the following
// occurrence is returned. Unknown cadences yield the zero time.
func NextReset(c Cadence, now time.Time) time.Time {
	now = now.UTC()
	today := startOfDay(now)

	switch c {
	case Daily:
		if today.After(now) {
			return today
		}
		return addDays(today, 1)
	case Weekly:
		offset := (int(resetWeekday) + 7 - int(now.Weekday())) % 7
		if offset == 0 {
			offset = 7
		}
		return addDays(today, offset)
	case Monthly:
		// time.Date normalizes month 13 into January of the next year.
		return time.Date(now.Year(), now.Month()+1, 1, 0, 0, 0, 0, time.UTC)
	default:
		return time.Time{}
	}
}
