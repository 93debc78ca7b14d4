package services

import (
	"strings"
	"time"
)

const slotLayout = "3:04 PM"

// NormalizeTimeSlot canonicalizes textual slots like "4:00 pm" or " 4:00PM"
// to "4:00 PM". Unparseable values are returned trimmed so the candidate
// query can still do an exact match against whatever the trainer stored.
func NormalizeTimeSlot(slot string) string {
	trimmed := strings.TrimSpace(slot)
	upper := strings.ToUpper(trimmed)
	if !strings.Contains(upper, " AM") && !strings.Contains(upper, " PM") {
		upper = strings.Replace(upper, "AM", " AM", 1)
		upper = strings.Replace(upper, "PM", " PM", 1)
	}
	parsed, err := time.Parse(slotLayout, upper)
	if err != nil {
		return trimmed
	}
	return parsed.Format(slotLayout)
}

// adjacentHourSlots returns the slots one hour before and after the given
// slot, for the sequential-slot travel check. An unparseable slot has no
// computable neighbors.
func adjacentHourSlots(slot string) []string {
	parsed, err := time.Parse(slotLayout, NormalizeTimeSlot(slot))
	if err != nil {
		return nil
	}
	return []string{
		parsed.Add(-time.Hour).Format(slotLayout),
		parsed.Add(time.Hour).Format(slotLayout),
	}
}
