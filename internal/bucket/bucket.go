// Package bucket maps block timestamps to canonical aggregation buckets.
package bucket

import "strconv"

// Day boundaries are shifted so that a trading day rolls over at 16:00 UTC,
// matching the exchange convention the dashboards were built around.
const OffsetSeconds int64 = 16 * 3600

const (
	secondsPerHour = 3600
	secondsPerDay  = 86400
	secondsPerWeek = 7 * 86400

	// The week epoch is anchored so weeks start on Friday 16:00 UTC.
	weekAnchorShift = 4 * secondsPerDay
)

// Period tags used in aggregate record ids.
const (
	PeriodHourly = "hourly"
	PeriodDaily  = "daily"
	PeriodWeekly = "weekly"
	PeriodTotal  = "total"
)

// TotalID is the bucket id of the all-time row.
const TotalID = "total"

// DayID returns the daily bucket id for a Unix timestamp.
func DayID(ts int64) string {
	return strconv.FormatInt((ts-OffsetSeconds)/secondsPerDay, 10)
}

// HourID returns the hourly bucket id for a Unix timestamp.
func HourID(ts int64) string {
	return strconv.FormatInt((ts-OffsetSeconds)/secondsPerHour, 10)
}

// WeekID returns the weekly bucket id for a Unix timestamp.
func WeekID(ts int64) string {
	return strconv.FormatInt((ts-OffsetSeconds-weekAnchorShift)/secondsPerWeek, 10)
}
