package ledger

import (
	"time"
)

// nextStreak returns the streak after activity at now.
// Days are calendar days in now's location.
func nextStreak(streak int, last *time.Time, now time.Time) int {
	if last == nil {
		return 1
	}

	switch days := calendarDays(*last, now); {
	case days == 0:
		return streak
	case days == 1:
		return streak + 1
	case days > 1:
		return 1
	default:
		// last activity is in the future; treat like the same day
		return streak
	}
}

// calendarDays counts midnights between from and to in to's location.
func calendarDays(from, to time.Time) int {
	loc := to.Location()
	fy, fm, fd := from.In(loc).Date()
	ty, tm, td := to.Date()
	a := time.Date(fy, fm, fd, 0, 0, 0, 0, time.UTC)
	b := time.Date(ty, tm, td, 0, 0, 0, 0, time.UTC)
	return int(b.Sub(a).Hours() / 24)
}

func sameDay(a, b time.Time) bool {
	return calendarDays(a, b) == 0
}
