package schedule

import (
	"time"

	"github.com/curasoft/emr-assist/internal/emr"
)

// ConflictPolicy decides whether a candidate slot collides with an existing
// appointment. It is a named, injectable policy so the comparison rule can
// be swapped without touching the conversation flow.
type ConflictPolicy func(existing emr.Appointment, candidate time.Time) bool

// ClockConflict marks a candidate unavailable only when an existing
// appointment falls on the same calendar date at the identical hour:minute.
// Duration overlap is deliberately ignored: an existing 90-minute booking
// starting at 09:30 does not block a 10:00 candidate under this rule.
func ClockConflict(existing emr.Appointment, candidate time.Time) bool {
	at, ok := existing.ScheduledTime()
	if !ok {
		return false
	}
	sameDate := at.Year() == candidate.Year() && at.Month() == candidate.Month() && at.Day() == candidate.Day()
	return sameDate && at.Hour() == candidate.Hour() && at.Minute() == candidate.Minute()
}

// HasConflict reports whether any existing appointment collides with the
// candidate under the given policy (ClockConflict when policy is nil).
func HasConflict(existing []emr.Appointment, candidate time.Time, policy ConflictPolicy) bool {
	if policy == nil {
		policy = ClockConflict
	}
	for _, appt := range existing {
		if policy(appt, candidate) {
			return true
		}
	}
	return false
}
