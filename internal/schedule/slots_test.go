package schedule

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSlots_DefaultHours(t *testing.T) {
	day := time.Date(2025, 6, 10, 0, 0, 0, 0, time.UTC)

	slots := DefaultHours.Slots(day)

	require.Len(t, slots, 16)
	assert.Equal(t, DefaultHours.SlotCount(), len(slots))
	assert.Equal(t, "09:00", ClockLabel(slots[0]))
	assert.Equal(t, "16:30", ClockLabel(slots[len(slots)-1]))
	for i := 1; i < len(slots); i++ {
		assert.True(t, slots[i].After(slots[i-1]), "slot %d not after slot %d", i, i-1)
		assert.Equal(t, 30*time.Minute, slots[i].Sub(slots[i-1]))
	}
}

func TestSlots_IgnoresClockOfDay(t *testing.T) {
	a := DefaultHours.Slots(time.Date(2025, 6, 10, 0, 0, 0, 0, time.UTC))
	b := DefaultHours.Slots(time.Date(2025, 6, 10, 22, 17, 3, 0, time.UTC))

	assert.Equal(t, a, b)
}

func TestSlots_CountAcrossDates(t *testing.T) {
	for _, d := range []string{"2024-02-29", "2025-01-01", "2025-03-30", "2025-10-26", "2025-12-31"} {
		day, err := ParseDate(d)
		require.NoError(t, err)
		assert.Len(t, DefaultHours.Slots(day), 16, d)
	}
}

func TestSlots_UnevenWindow(t *testing.T) {
	h := WorkingHours{Start: 9 * time.Hour, End: 10*time.Hour + 15*time.Minute, Slot: 30 * time.Minute}
	day := time.Date(2025, 6, 10, 0, 0, 0, 0, time.UTC)

	slots := h.Slots(day)

	require.Len(t, slots, 3)
	assert.Equal(t, h.SlotCount(), len(slots))
	assert.Equal(t, "10:00", ClockLabel(slots[2]))
}

func TestSlots_InvalidHours(t *testing.T) {
	day := time.Date(2025, 6, 10, 0, 0, 0, 0, time.UTC)

	assert.Empty(t, WorkingHours{Start: 9 * time.Hour, End: 9 * time.Hour, Slot: time.Minute}.Slots(day))
	assert.Empty(t, WorkingHours{Start: 9 * time.Hour, End: 17 * time.Hour}.Slots(day))
}
