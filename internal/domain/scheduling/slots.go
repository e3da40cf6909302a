package scheduling

import (
	"fmt"
	"time"
)

// Daily slot template: every 30 minutes from 09:00 to 16:30 inclusive,
// skipping the 12:00-13:00 midday break.
const (
	firstSlotMinute  = 9 * 60
	lastSlotMinute   = 16*60 + 30
	slotStepMinutes  = 30
	breakStartMinute = 12 * 60
	breakEndMinute   = 13 * 60
)

var dailyTemplate = buildTemplate()

func buildTemplate() []string {
	var slots []string
	for m := firstSlotMinute; m <= lastSlotMinute; m += slotStepMinutes {
		if m >= breakStartMinute && m < breakEndMinute {
			continue
		}
		slots = append(slots, fmt.Sprintf("%02d:%02d", m/60, m%60))
	}
	return slots
}

// Template returns a copy of the daily slot template in order.
func Template() []string {
	return append([]string(nil), dailyTemplate...)
}

// IsTemplateSlot reports whether slot is one of the bookable times.
func IsTemplateSlot(slot string) bool {
	for _, s := range dailyTemplate {
		if s == slot {
			return true
		}
	}
	return false
}

// FreeSlots is the template minus booked, in template order. Booked values
// outside the template are ignored.
func FreeSlots(booked []string) []string {
	taken := make(map[string]struct{}, len(booked))
	for _, b := range booked {
		taken[b] = struct{}{}
	}
	free := make([]string, 0, len(dailyTemplate))
	for _, s := range dailyTemplate {
		if _, ok := taken[s]; !ok {
			free = append(free, s)
		}
	}
	return free
}

// slotStart returns the instant slot begins on date, in date's location.
func slotStart(date time.Time, slot string) (time.Time, error) {
	t, err := time.Parse("15:04", slot)
	if err != nil {
		return time.Time{}, err
	}
	y, mo, d := date.Date()
	return time.Date(y, mo, d, t.Hour(), t.Minute(), 0, 0, date.Location()), nil
}
