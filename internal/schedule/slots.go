// Package schedule holds the pure parts of appointment scheduling: the daily
// slot grid, calendar date parsing and the availability partition.
//
// All times handled here are naive wall-clock times. They are carried as
// time.Time values in the UTC location so that the clock fields read back
// exactly as they were written, regardless of the server's zone.
package schedule

import (
	"time"
)

const (
	SlotMinutes = 30
	WorkStart   = "09:00"
	WorkEnd     = "17:00"
)

// WorkingHours is a doctor's bookable window within a day, expressed as
// offsets from midnight, and the length of one slot.
type WorkingHours struct {
	Start time.Duration
	End   time.Duration
	Slot  time.Duration
}

// DefaultHours is the fixed 09:00-17:00 window with 30 minute slots.
var DefaultHours = WorkingHours{
	Start: 9 * time.Hour,
	End:   17 * time.Hour,
	Slot:  SlotMinutes * time.Minute,
}

// Slots returns the ordered slot start times covering [Start, End) of day,
// stepped by Slot. day may carry any clock time; only its date is used.
func (h WorkingHours) Slots(day time.Time) []time.Time {
	if h.Slot <= 0 || h.End <= h.Start {
		return nil
	}

	midnight := StartOfDay(day)
	end := midnight.Add(h.End)

	slots := make([]time.Time, 0, int((h.End-h.Start)/h.Slot))
	for t := midnight.Add(h.Start); t.Before(end); t = t.Add(h.Slot) {
		slots = append(slots, t)
	}
	return slots
}

// SlotCount is the number of slots Slots produces for any day.
func (h WorkingHours) SlotCount() int {
	if h.Slot <= 0 || h.End <= h.Start {
		return 0
	}
	n := (h.End - h.Start) / h.Slot
	if (h.End-h.Start)%h.Slot != 0 {
		n++
	}
	return int(n)
}

// StartOfDay returns the naive midnight of t's calendar date.
func StartOfDay(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}

// ClockLabel formats t as "HH:MM".
func ClockLabel(t time.Time) string {
	return t.Format("15:04")
}
