package schedule

import (
	"errors"
	"strings"
	"time"
)

const DateLayout = "2006-01-02"

var (
	ErrInvalidDate     = errors.New("date must be in format YYYY-MM-DD")
	ErrInvalidDateTime = errors.New("invalid date")
)

// layouts that carry their own offset; the instant is moved into the
// configured wall-clock zone before the offset is dropped.
var zonedLayouts = []string{
	time.RFC3339Nano,
	time.RFC3339,
	"2006-01-02T15:04Z07:00",
}

// layouts without an offset are read as wall-clock time as-is.
var naiveLayouts = []string{
	"2006-01-02T15:04:05.999999999",
	"2006-01-02T15:04:05",
	"2006-01-02T15:04",
	"2006-01-02 15:04:05",
	"2006-01-02 15:04",
	DateLayout,
}

// ParseDate parses a strict YYYY-MM-DD calendar date into its naive midnight.
func ParseDate(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	if len(s) != len(DateLayout) {
		return time.Time{}, ErrInvalidDate
	}
	d, err := time.ParseInLocation(DateLayout, s, time.UTC)
	if err != nil {
		return time.Time{}, ErrInvalidDate
	}
	return d, nil
}

// ParseDateTime parses a client supplied timestamp into a naive wall-clock
// time truncated to the minute. Timestamps with an offset are first
// converted into loc.
func ParseDateTime(s string, loc *time.Location) (time.Time, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}, ErrInvalidDateTime
	}
	if loc == nil {
		loc = time.UTC
	}

	for _, layout := range zonedLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return TruncateToMinute(WallClock(t, loc)), nil
		}
	}
	for _, layout := range naiveLayouts {
		if t, err := time.ParseInLocation(layout, s, time.UTC); err == nil {
			return TruncateToMinute(t), nil
		}
	}
	return time.Time{}, ErrInvalidDateTime
}

// WallClock returns the naive wall-clock reading of instant t in loc.
func WallClock(t time.Time, loc *time.Location) time.Time {
	if loc == nil {
		loc = time.UTC
	}
	l := t.In(loc)
	return time.Date(l.Year(), l.Month(), l.Day(), l.Hour(), l.Minute(), l.Second(), l.Nanosecond(), time.UTC)
}

// TruncateToMinute zeroes seconds and sub-second precision.
func TruncateToMinute(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), t.Hour(), t.Minute(), 0, 0, t.Location())
}

// DayBounds returns the inclusive [00:00, 23:59] window of day used to
// attribute bookings to a calendar date.
func DayBounds(day time.Time) (time.Time, time.Time) {
	start := StartOfDay(day)
	return start, start.Add(23*time.Hour + 59*time.Minute)
}

// RangeBounds parses an inclusive [from 00:00:00, to 23:59:59.999] range.
func RangeBounds(from, to string) (time.Time, time.Time, error) {
	start, err := ParseDate(from)
	if err != nil {
		return time.Time{}, time.Time{}, err
	}
	end, err := ParseDate(to)
	if err != nil {
		return time.Time{}, time.Time{}, err
	}
	return start, end.Add(24*time.Hour - time.Millisecond), nil
}
