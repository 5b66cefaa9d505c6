package entity

import (
	"regexp"
	"strings"
	"time"
)

const (
	// SlotLayout formats a slot label.
	SlotLayout     = "15:04"
	// DateLayout is the calendar date format used by the slot endpoints.
	DateLayout     = "2006-01-02"
	// DateTimeLayout is the normalized appointment timestamp format.
	DateTimeLayout = "2006-01-02 15:04:05"

	firstSlotHour = 8
	lastSlotHour  = 15
	slotMinutes   = 30
)

var (
	datePattern      = regexp.MustCompile(`^\d{4}-\d{2}-\d{2}$`)
	zuluPattern      = regexp.MustCompile(`\d{4}-\d{2}-\d{2}.*Z$`)
	shortTimePattern = regexp.MustCompile(`^\d{4}-\d{2}-\d{2} \d{2}:\d{2}$`)
	fullTimePattern  = regexp.MustCompile(`^\d{4}-\d{2}-\d{2} \d{2}:\d{2}:\d{2}$`)

	zuluLayouts = []string{
		time.RFC3339Nano,
		"2006-01-02T15:04Z07:00",
		"2006-01-02 15:04:05.999999999Z07:00",
		"2006-01-02 15:04Z07:00",
	}

	allSlots = buildSlots()
	slotSet  = toSet(allSlots)
)

func buildSlots() []string {
	slots := make([]string, 0, (lastSlotHour-firstSlotHour+1)*60/slotMinutes)
	for h := firstSlotHour; h <= lastSlotHour; h++ {
		for m := 0; m < 60; m += slotMinutes {
			slots = append(slots, time.Date(2000, 1, 1, h, m, 0, 0, time.UTC).Format(SlotLayout))
		}
	}
	return slots
}

func toSet(values []string) map[string]struct{} {
	set := make(map[string]struct{}, len(values))
	for _, v := range values {
		set[v] = struct{}{}
	}
	return set
}

// AllSlots returns the clinic's fixed half-hour slots, 08:00 through 15:30.
func AllSlots() []string {
	out := make([]string, len(allSlots))
	copy(out, allSlots)
	return out
}

// IsSlot reports whether label is one of AllSlots.
func IsSlot(label string) bool {
	_, ok := slotSet[label]
	return ok
}

// IsWeekend is decided from the calendar date alone.
func IsWeekend(date time.Time) bool {
	wd := date.Weekday()
	return wd == time.Saturday || wd == time.Sunday
}

// OfferableSlots returns the slots a client may pick on date.
func OfferableSlots(date time.Time) []string {
	if IsWeekend(date) {
		return []string{}
	}
	return AllSlots()
}

// ParseSlotDate parses a strict YYYY-MM-DD calendar date.
func ParseSlotDate(raw string) (time.Time, bool) {
	if !datePattern.MatchString(raw) {
		return time.Time{}, false
	}
	d, err := time.ParseInLocation(DateLayout, raw, time.UTC)
	if err != nil {
		return time.Time{}, false
	}
	return d, true
}

// NormalizeScheduledAt rewrites a client timestamp into "YYYY-MM-DD HH:mm:ss".
// Strings ending in Z are read as UTC instants; everything else is taken as
// wall-clock time with "T" replaced by a space and ":00" seconds appended when
// missing.
func NormalizeScheduledAt(raw string) (string, bool) {
	if zuluPattern.MatchString(raw) {
		for _, layout := range zuluLayouts {
			if t, err := time.Parse(layout, raw); err == nil {
				return t.UTC().Format(DateTimeLayout), true
			}
		}
		return "", false
	}

	s := strings.Replace(raw, "T", " ", 1)
	if shortTimePattern.MatchString(s) {
		s += ":00"
	}
	if !fullTimePattern.MatchString(s) {
		return "", false
	}
	return s, true
}

// ParseScheduledAt normalizes raw and rejects impossible calendar values
// such as 2025-02-30 or 25:00.
func ParseScheduledAt(raw string) (time.Time, bool) {
	s, ok := NormalizeScheduledAt(raw)
	if !ok {
		return time.Time{}, false
	}
	t, err := time.ParseInLocation(DateTimeLayout, s, time.UTC)
	if err != nil {
		return time.Time{}, false
	}
	return t, true
}

// DayBounds returns [start, end) of the calendar day containing date.
func DayBounds(date time.Time) (time.Time, time.Time) {
	start := time.Date(date.Year(), date.Month(), date.Day(), 0, 0, 0, 0, time.UTC)
	return start, start.AddDate(0, 0, 1)
}

// OnSlotGrid reports whether t is a weekday slot start.
func OnSlotGrid(t time.Time) bool {
	return !IsWeekend(t) && t.Second() == 0 && t.Nanosecond() == 0 && IsSlot(t.Format(SlotLayout))
}
