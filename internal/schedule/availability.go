package schedule

import (
	"sort"
	"time"
)

// Partition splits the generated slots into the ones still free and the set
// of booked clock labels. A booked time only hides a slot when it matches
// the slot's exact minute; off-grid bookings are reported as booked but never
// remove a slot.
func Partition(slots []time.Time, bookedTimes []time.Time) (available []string, booked []string) {
	taken := make(map[string]struct{}, len(bookedTimes))
	for _, t := range bookedTimes {
		taken[ClockLabel(t)] = struct{}{}
	}

	available = make([]string, 0, len(slots))
	for _, s := range slots {
		label := ClockLabel(s)
		if _, ok := taken[label]; ok {
			continue
		}
		available = append(available, label)
	}

	booked = make([]string, 0, len(taken))
	for label := range taken {
		booked = append(booked, label)
	}
	// "HH:MM" sorts chronologically as a string.
	sort.Strings(booked)

	return available, booked
}
