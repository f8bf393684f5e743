package billing

import "time"

// Pure due-date arithmetic over a lease's rent-due day (1-28) and grace
// period. No stored state: callers pass the clock.

// RentDueDate returns the rent due date in the month containing ref.
func RentDueDate(ref time.Time, dueDay int) time.Time {
	year, month, _ := ref.Date()
	return time.Date(year, month, dueDay, 0, 0, 0, 0, ref.Location())
}

// GraceDeadline is the last instant a payment is on time: the end of the
// due day plus the grace period.
func GraceDeadline(due time.Time, graceDays int) time.Time {
	return due.AddDate(0, 0, graceDays+1).Add(-time.Nanosecond)
}

// IsLate reports whether now is past the grace deadline for the period
// containing now.
func IsLate(now time.Time, dueDay, graceDays int) bool {
	due := RentDueDate(now, dueDay)
	if now.Before(due) {
		return false
	}
	return now.After(GraceDeadline(due, graceDays))
}
