package timetable

import "time"

// MockClock freezes the clock of the package at `now` until reset is called.
func MockClock(now time.Time) (reset func()) {
	prev := nowFunc
	nowFunc = func() time.Time { return now }
	return func() { nowFunc = prev }
}

// MockIDs makes the package hand out `ids` in order, then fall back to random IDs.
func MockIDs(ids ...string) (reset func()) {
	prev := newIDFunc
	next := 0
	newIDFunc = func() string {
		if next < len(ids) {
			next++
			return ids[next-1]
		}
		return prev()
	}
	return func() { newIDFunc = prev }
}
