package model

import (
	"errors"
	"fmt"
	"time"
)

// WorkScheduleRole tags events synthesized from the nominal work schedule.
// Regular calendar events carry RoleNone.
type WorkScheduleRole string

const (
	RoleNone       WorkScheduleRole = ""
	RoleStartOfDay WorkScheduleRole = "start"
	RoleMidDay     WorkScheduleRole = "middle"
	RoleEndOfDay   WorkScheduleRole = "end"
)

// Schedule is a time interval. End is optional: a schedule with only a
// start marks a day for which no usable time pair could be extracted, and
// ErrorMessage then says why.
type Schedule struct {
	Start        time.Time
	End          time.Time // zero when unknown
	IsHoliday    bool
	IsPaidLeave  bool
	ErrorMessage string
}

// NewSchedule validates the interval invariants at construction time.
// Violations here are programmer-error class and must reach the caller;
// silently coercing them would corrupt day partitioning downstream.
func NewSchedule(start, end time.Time, isHoliday, isPaidLeave bool) (Schedule, error) {
	if start.IsZero() {
		return Schedule{}, errors.New("schedule: start is required")
	}
	if isPaidLeave && !isHoliday {
		return Schedule{}, fmt.Errorf("schedule: paid leave on %s requires the holiday flag", start.Format("2006-01-02"))
	}
	if !end.IsZero() && end.Before(start) {
		return Schedule{}, fmt.Errorf("schedule: end %s precedes start %s", end.Format(time.RFC3339), start.Format(time.RFC3339))
	}
	return Schedule{Start: start, End: end, IsHoliday: isHoliday, IsPaidLeave: isPaidLeave}, nil
}

// HasEnd reports whether the interval is closed.
func (s Schedule) HasEnd() bool { return !s.End.IsZero() }

// Duration returns the interval length, or zero for open intervals.
func (s Schedule) Duration() time.Duration {
	if !s.HasEnd() {
		return 0
	}
	return s.End.Sub(s.Start)
}

// BaseDate returns the calendar day the schedule belongs to, at midnight
// in the start's location.
func (s Schedule) BaseDate() time.Time {
	y, m, d := s.Start.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, s.Start.Location())
}

// IsError reports whether the schedule carries a diagnostic instead of a
// usable time pair.
func (s Schedule) IsError() bool { return s.ErrorMessage != "" }

// Event is a canonical calendar event record.
type Event struct {
	ID        string
	Name      string
	Organizer string
	Location  string

	IsPrivate   bool
	IsCancelled bool

	Schedule Schedule

	// Recurrence holds the expanded occurrence instants of a recurring
	// event, ascending, truncated at "now" and capped during expansion.
	Recurrence []time.Time

	Role WorkScheduleRole
}

// Fingerprint derives the event's identity key for history lookups. It is
// intentionally independent of the schedule so that a re-imported event
// with shifted times still resolves to its prior work item.
func (e Event) Fingerprint() string {
	return e.ID + "|" + e.Name + "|" + e.Organizer
}

// BaseDate returns the calendar day of the event's start.
func (e Event) BaseDate() time.Time { return e.Schedule.BaseDate() }

// DayTask is the per-calendar-day unit of reconciliation: the events that
// belong to one day, with work-schedule anchor events held separately.
type DayTask struct {
	BaseDate           time.Time
	Events             []Event
	WorkScheduleEvents []Event
}
