package notifications

import "time"

// Policy decides whether a sink fires for a cycle at now.
type Policy func(now time.Time) bool

// Always fires every cycle.
func Always(time.Time) bool { return true }

// EveryHours fires when the hour of now is a multiple of n. n <= 1 fires
// every cycle.
func EveryHours(n int) Policy {
	if n <= 1 {
		return Always
	}
	return func(now time.Time) bool {
		return now.Hour()%n == 0
	}
}
