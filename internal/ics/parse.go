package ics

import (
	"bytes"
	"errors"
	"fmt"
	"strings"
	"time"

	ical "github.com/arran4/golang-ical"

	appLog "dayview/internal/log"
)

// ParseError reports a payload that could not be understood as an iCalendar
// document. A payload that fails to parse must never be committed to the
// snapshot cache.
type ParseError struct {
	Err error
}

func (e *ParseError) Error() string { return fmt.Sprintf("parse calendar: %v", e.Err) }

func (e *ParseError) Unwrap() error { return e.Err }

// ParsedEvent is the normalized representation of a VEVENT before recurrence
// expansion. ExpandDay turns these into concrete model.Event values.
type ParsedEvent struct {
	UID string

	Summary     string
	Description string
	Location    string

	Start  time.Time
	End    time.Time
	AllDay bool

	RawRRule   string
	ExDates    []time.Time
	Recurrence *time.Time // RECURRENCE-ID (if present) in the event's own timezone
	IsOverride bool       // true if this VEVENT overrides a recurring instance
}

// ParseFeed parses a raw feed payload into a list of ParsedEvent.
//
//   - Timezone resolution (VTIMEZONE/TZID) is delegated to the library's
//     GetStartAt/GetEndAt helpers.
//   - All-day events are detected from the DTSTART value format.
//   - RRULE/EXDATE/RECURRENCE-ID are recorded but not expanded here.
//   - A document with zero VEVENTs yields an empty slice, not an error.
//   - Individual malformed VEVENTs are logged and skipped; only a payload
//     that is not a calendar at all produces a ParseError.
func ParseFeed(body []byte) ([]ParsedEvent, error) {
	if len(body) == 0 {
		return nil, &ParseError{Err: errors.New("empty payload")}
	}

	cal, err := ical.ParseCalendar(bytes.NewReader(body))
	if err != nil {
		return nil, &ParseError{Err: err}
	}

	events := make([]ParsedEvent, 0)

	for _, comp := range cal.Events() {
		ev, perr := parseVEvent(comp)
		if perr != nil {
			appLog.Warn("skipping malformed vevent", "reason", perr)
			continue
		}
		events = append(events, ev)
	}

	appLog.Debug("feed parse completed", "event_count", len(events))
	return events, nil
}

func parseVEvent(ve *ical.VEvent) (ParsedEvent, error) {
	var out ParsedEvent

	uidProp := ve.GetProperty(ical.ComponentPropertyUniqueId)
	if uidProp == nil || uidProp.Value == "" {
		return out, errors.New("missing UID")
	}
	out.UID = uidProp.Value

	if p := ve.GetProperty(ical.ComponentPropertySummary); p != nil {
		out.Summary = p.Value
	}
	if p := ve.GetProperty(ical.ComponentPropertyDescription); p != nil {
		out.Description = p.Value
	}
	if p := ve.GetProperty(ical.ComponentPropertyLocation); p != nil {
		out.Location = p.Value
	}

	// DTSTART / DTEND via the library's timezone-aware helpers.
	start, _ := ve.GetStartAt()
	end, _ := ve.GetEndAt()
	out.Start = start
	out.End = end

	// All-day if DTSTART carries VALUE=DATE or has no time component.
	if dtStartProp := ve.GetProperty(ical.ComponentPropertyDtStart); dtStartProp != nil {
		val := dtStartProp.Value
		if params := dtStartProp.ICalParameters; params != nil {
			if vs, ok := params["VALUE"]; ok && len(vs) > 0 && strings.EqualFold(vs[0], "DATE") {
				out.AllDay = true
			}
		}
		if !strings.Contains(val, "T") {
			out.AllDay = true
		}
	}

	if rruleProp := ve.GetProperty(ical.ComponentPropertyRrule); rruleProp != nil {
		out.RawRRule = rruleProp.Value
	}

	// EXDATE may appear multiple times, each possibly comma-separated.
	for _, p := range ve.GetProperties(ical.ComponentPropertyExdate) {
		for _, part := range strings.Split(p.Value, ",") {
			part = strings.TrimSpace(part)
			if part == "" {
				continue
			}
			if t, err := parseICSTime(part); err == nil {
				out.ExDates = append(out.ExDates, t)
			}
		}
	}

	if ridProp := ve.GetProperty("RECURRENCE-ID"); ridProp != nil {
		if t, err := parseICSTime(ridProp.Value); err == nil {
			out.Recurrence = &t
			out.IsOverride = true
		}
	}

	return out, nil
}

// parseICSTime parses a basic ICS date/date-time string. It covers the
// DATE, local DATE-TIME and UTC DATE-TIME forms used by EXDATE and
// RECURRENCE-ID values.
func parseICSTime(v string) (time.Time, error) {
	v = strings.TrimSpace(v)
	if v == "" {
		return time.Time{}, errors.New("empty time value")
	}

	// UTC form, e.g. 20250101T090000Z
	if strings.HasSuffix(v, "Z") {
		const layout = "20060102T150405Z"
		return time.Parse(layout, v)
	}

	// Local date-time, e.g. 20250101T090000
	if strings.Contains(v, "T") {
		const layout = "20060102T150405"
		return time.ParseInLocation(layout, v, time.Local)
	}

	// Date-only (all-day), e.g. 20250101
	const layoutDate = "20060102"
	return time.ParseInLocation(layoutDate, v, time.Local)
}
