package domain

import "time"

// activeWindowFallback bounds closures that report no end date under the
// active-only policy.
const activeWindowFallback = 24 * time.Hour

// Eligible decides whether a closure is still worth reporting under a
// region's age policy.
//
//	maxAgeDays == 0: eligible only while the closure window is active
//	                 (missing end date assumes 24h from start)
//	maxAgeDays  > 0: eligible while the report is at most that many days old
//	maxAgeDays  < 0: always eligible
func Eligible(c ClosureEvent, maxAgeDays int, now time.Time) bool {
	switch {
	case maxAgeDays == 0:
		start := c.CreatedAt()
		if c.StartDate != 0 {
			start = time.UnixMilli(c.StartDate).UTC()
		}
		end := start.Add(activeWindowFallback)
		if c.EndDate != 0 {
			end = time.UnixMilli(c.EndDate).UTC()
		}
		return !now.Before(start) && !now.After(end)
	case maxAgeDays > 0:
		maxAge := time.Duration(maxAgeDays) * 24 * time.Hour
		return now.Sub(c.CreatedAt()) <= maxAge
	default:
		return true
	}
}
