// Package schedule generates candidate appointment slots from a provider's
// declared availability and decides whether a slot collides with existing
// bookings.
package schedule

import (
	"strconv"
	"strings"
	"time"

	"github.com/curasoft/emr-assist/internal/emr"
)

const (
	defaultStartHour = 9
	defaultEndHour   = 17

	// DefaultWindowDays is the booking horizon used when none is
	// configured: slots cover days +1..+7 relative to "today",
	// excluding today itself.
	DefaultWindowDays = 7

	// SlotLayout is the local-time ISO layout carried on every slot. No
	// timezone conversion is applied anywhere in the flow.
	SlotLayout = "2006-01-02T15:04:05"
)

// Slot is a candidate appointment start time.
type Slot struct {
	Time     time.Time `json:"-"`
	DateTime string    `json:"datetime"` // local ISO string
	Display  string    `json:"display"`  // human-readable label
}

// When returns the slot's start time. Slots that round-tripped through
// JSON lose the Time field and are reparsed from DateTime.
func (s Slot) When() time.Time {
	if !s.Time.IsZero() {
		return s.Time
	}
	t, err := time.ParseInLocation(SlotLayout, s.DateTime, time.Local)
	if err != nil {
		return time.Time{}
	}
	return t
}

// Generate produces hourly slots for the given provider covering the next
// windowDays calendar days after today (DefaultWindowDays when windowDays
// is zero or negative). Days are restricted to the provider's working days
// (empty means every day) and hours to [start, end) from the provider's
// working hours (missing means 09:00-17:00). Output is deterministic for a
// given today and provider, and the function has no side effects; callers
// regenerate rather than resume.
func Generate(doctor emr.StaffRecord, today time.Time, windowDays int) []Slot {
	if windowDays <= 0 {
		windowDays = DefaultWindowDays
	}

	startHour := parseHour(doctor.WorkingHours.Start, defaultStartHour)
	endHour := parseHour(doctor.WorkingHours.End, defaultEndHour)
	if endHour <= startHour {
		startHour, endHour = defaultStartHour, defaultEndHour
	}

	allowed := workingDaySet(doctor.WorkingDays)

	var slots []Slot
	for day := 1; day <= windowDays; day++ {
		date := today.AddDate(0, 0, day)
		if allowed != nil {
			if _, ok := allowed[date.Weekday().String()]; !ok {
				continue
			}
		}
		for hour := startHour; hour < endHour; hour++ {
			at := time.Date(date.Year(), date.Month(), date.Day(), hour, 0, 0, 0, date.Location())
			slots = append(slots, Slot{
				Time:     at,
				DateTime: at.Format(SlotLayout),
				Display:  at.Format("Monday, Jan 2 at 03:04 PM"),
			})
		}
	}
	return slots
}

// workingDaySet normalizes weekday names; nil means all days allowed.
func workingDaySet(days []string) map[string]struct{} {
	if len(days) == 0 {
		return nil
	}
	set := make(map[string]struct{}, len(days))
	for _, d := range days {
		d = strings.TrimSpace(d)
		if d == "" {
			continue
		}
		set[normalizeWeekday(d)] = struct{}{}
	}
	if len(set) == 0 {
		return nil
	}
	return set
}

func normalizeWeekday(name string) string {
	name = strings.ToLower(name)
	return strings.ToUpper(name[:1]) + name[1:]
}

func parseHour(hhmm string, fallback int) int {
	hhmm = strings.TrimSpace(hhmm)
	if hhmm == "" {
		return fallback
	}
	parts := strings.SplitN(hhmm, ":", 2)
	hour, err := strconv.Atoi(parts[0])
	if err != nil || hour < 0 || hour > 23 {
		return fallback
	}
	return hour
}
