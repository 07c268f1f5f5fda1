package ics

import (
	"time"

	"github.com/teambition/rrule-go"

	appLog "dayview/internal/log"
	"dayview/internal/model"
)

// maxOccurrencesPerDay is a safety cap on recurrence expansion. A single day
// can never legitimately contain more instances of one event.
const maxOccurrencesPerDay = 100

// ExpandDay turns parsed events into the concrete events of one calendar day
// in the display timezone loc. It handles:
//
//   - single non-recurring events
//   - RRULE-based recurrence
//   - EXDATE exception removal
//   - RECURRENCE-ID overrides
//   - all-day semantics ([day 00:00, next day 00:00) in the display zone)
//
// Day membership is start-day equality: an event or occurrence is included
// iff its start falls on day in loc. Feed order is preserved across events;
// occurrences of a recurring event appear in chronological order.
func ExpandDay(events []ParsedEvent, day time.Time, loc *time.Location) []model.Event {
	if loc == nil {
		loc = time.Local
	}
	dayStart := model.DayStart(day, loc)
	dayEnd := dayStart.AddDate(0, 0, 1)

	// Group base events and overrides by UID, keeping feed order for bases.
	overridesByUID := make(map[string][]ParsedEvent)
	bases := make([]ParsedEvent, 0, len(events))
	for _, ev := range events {
		if ev.IsOverride && ev.Recurrence != nil {
			overridesByUID[ev.UID] = append(overridesByUID[ev.UID], ev)
		} else {
			bases = append(bases, ev)
		}
	}

	out := make([]model.Event, 0)
	for _, ev := range bases {
		if ev.RawRRule == "" {
			if e, ok := expandSingle(ev, overridesByUID[ev.UID], dayStart, loc); ok {
				out = append(out, e)
			}
			continue
		}
		out = append(out, expandRecurring(ev, overridesByUID[ev.UID], dayStart, dayEnd, loc)...)
	}

	return out
}

func expandSingle(ev ParsedEvent, overrides []ParsedEvent, dayStart time.Time, loc *time.Location) (model.Event, bool) {
	start, end := ev.Start, ev.End
	if o, ok := findOverrideForStart(overrides, start); ok {
		ev = o
		start, end = o.Start, o.End
	}

	e := makeEvent(ev, start, end, loc)
	if !e.OnDay(dayStart, loc) {
		return model.Event{}, false
	}
	return e, true
}

func expandRecurring(ev ParsedEvent, overrides []ParsedEvent, dayStart, dayEnd time.Time, loc *time.Location) []model.Event {
	out := make([]model.Event, 0)

	r, err := rrule.StrToRRule(ev.RawRRule)
	if err != nil {
		appLog.Warn("skipping unparseable RRULE", "uid", ev.UID, "rrule", ev.RawRRule, "reason", err)
		return out
	}
	r.DTStart(ev.Start)

	var set rrule.Set
	set.RRule(r)
	for _, ex := range ev.ExDates {
		// Align EXDATE location with the event's start.
		set.ExDate(ex.In(ev.Start.Location()))
	}

	// Query the rule in the event's own location; membership is then checked
	// against the display-zone day.
	rangeStart := dayStart.In(ev.Start.Location())
	rangeEnd := dayEnd.In(ev.Start.Location())

	occTimes := set.Between(rangeStart, rangeEnd, true)
	if len(occTimes) > maxOccurrencesPerDay {
		appLog.Warn("recurrence expansion capped", "uid", ev.UID, "cap", maxOccurrencesPerDay)
		occTimes = occTimes[:maxOccurrencesPerDay]
	}

	for _, occStart := range occTimes {
		var occEnd time.Time
		if ev.AllDay {
			date := time.Date(occStart.Year(), occStart.Month(), occStart.Day(), 0, 0, 0, 0, occStart.Location())
			occStart = date
			occEnd = date.Add(24 * time.Hour)
		} else {
			occEnd = occStart.Add(ev.End.Sub(ev.Start))
		}

		src := ev
		if o, ok := findOverrideForStart(overrides, occStart); ok {
			src = o
			occStart, occEnd = o.Start, o.End
		}

		e := makeEvent(src, occStart, occEnd, loc)
		if e.OnDay(dayStart, loc) {
			out = append(out, e)
		}
	}

	return out
}

// findOverrideForStart finds an override whose RECURRENCE-ID matches the
// given occurrence start with exact time equality.
func findOverrideForStart(overrides []ParsedEvent, occStart time.Time) (ParsedEvent, bool) {
	for _, ov := range overrides {
		if ov.Recurrence == nil {
			continue
		}
		if ov.Recurrence.In(occStart.Location()).Equal(occStart) {
			return ov, true
		}
	}
	return ParsedEvent{}, false
}

// makeEvent converts a (possibly overridden) ParsedEvent plus concrete
// start/end into a model.Event normalized into the display timezone.
func makeEvent(ev ParsedEvent, start, end time.Time, loc *time.Location) model.Event {
	return model.Event{
		UID:         ev.UID,
		Summary:     ev.Summary,
		Description: ev.Description,
		Location:    ev.Location,
		AllDay:      ev.AllDay,
		Start:       start.In(loc),
		End:         end.In(loc),
	}
}
