// internal/services/noc.go
package services

import "time"

// nocWindow computes the notice-of-consideration window: the start is the next
// calendar day at 00:01 legislative time, the end is exactly windowDays later.
func nocWindow(now time.Time, loc *time.Location, windowDays int) (time.Time, time.Time) {
	local := now.In(loc)
	nextDay := local.AddDate(0, 0, 1)
	start := time.Date(nextDay.Year(), nextDay.Month(), nextDay.Day(), 0, 1, 0, 0, loc)
	end := start.AddDate(0, 0, windowDays)
	return start, end
}

// startOfDay truncates a time to midnight legislative time.
func startOfDay(t time.Time, loc *time.Location) time.Time {
	local := t.In(loc)
	return time.Date(local.Year(), local.Month(), local.Day(), 0, 0, 0, 0, loc)
}
