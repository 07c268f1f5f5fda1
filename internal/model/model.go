package model

import "time"

// Event is a single concrete calendar entry as shown on the schedule for a
// day, after parsing and recurrence expansion. Events are immutable once
// produced; every resolution builds a fresh slice from the raw payload.
type Event struct {
	UID string // iCalendar UID

	Summary     string
	Description string
	Location    string

	AllDay bool

	// Start / End are in the configured display timezone.
	Start time.Time
	End   time.Time
}

// InProgress reports whether the event is happening at the given instant.
// The start boundary is inclusive and the end boundary is exclusive, so an
// event ending at 10:00 and one starting at 10:00 never overlap.
func (e Event) InProgress(now time.Time) bool {
	return !now.Before(e.Start) && now.Before(e.End)
}

// OnDay reports whether the event starts on the given calendar day in loc.
// Day membership is start-day equality only: an event running past midnight
// belongs to the day it starts on.
func (e Event) OnDay(day time.Time, loc *time.Location) bool {
	s := e.Start.In(loc)
	d := day.In(loc)
	return s.Year() == d.Year() && s.Month() == d.Month() && s.Day() == d.Day()
}

// DayStart truncates t to midnight of its calendar day in loc.
func DayStart(t time.Time, loc *time.Location) time.Time {
	t = t.In(loc)
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, loc)
}
