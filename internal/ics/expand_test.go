package ics

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func utcDay(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func TestExpandDaySingleEvents(t *testing.T) {
	day := utcDay(2025, 3, 14)
	events := []ParsedEvent{
		{
			UID:     "on-day",
			Summary: "On the day",
			Start:   day.Add(9 * time.Hour),
			End:     day.Add(10 * time.Hour),
		},
		{
			UID:     "other-day",
			Summary: "Elsewhere",
			Start:   day.AddDate(0, 0, 2).Add(9 * time.Hour),
			End:     day.AddDate(0, 0, 2).Add(10 * time.Hour),
		},
	}

	got := ExpandDay(events, day, time.UTC)
	require.Len(t, got, 1)
	assert.Equal(t, "on-day", got[0].UID)
}

func TestExpandDayCrossMidnightBelongsToStartDay(t *testing.T) {
	day := utcDay(2025, 3, 14)
	next := day.AddDate(0, 0, 1)

	events := []ParsedEvent{{
		UID:     "late",
		Summary: "Late show",
		Start:   day.Add(23*time.Hour + 30*time.Minute),
		End:     next.Add(1 * time.Hour),
	}}

	onDay := ExpandDay(events, day, time.UTC)
	require.Len(t, onDay, 1)

	onNext := ExpandDay(events, next, time.UTC)
	assert.Empty(t, onNext)
}

func TestExpandDayDailyRecurrence(t *testing.T) {
	start := time.Date(2025, 3, 10, 9, 0, 0, 0, time.UTC)
	events := []ParsedEvent{{
		UID:      "daily",
		Summary:  "Daily sync",
		Start:    start,
		End:      start.Add(30 * time.Minute),
		RawRRule: "FREQ=DAILY",
	}}

	got := ExpandDay(events, utcDay(2025, 3, 14), time.UTC)
	require.Len(t, got, 1)
	assert.True(t, got[0].Start.Equal(time.Date(2025, 3, 14, 9, 0, 0, 0, time.UTC)))
	assert.True(t, got[0].End.Equal(time.Date(2025, 3, 14, 9, 30, 0, 0, time.UTC)))

	// Before the series started there is nothing.
	assert.Empty(t, ExpandDay(events, utcDay(2025, 3, 9), time.UTC))
}

func TestExpandDayExDateRemovesOccurrence(t *testing.T) {
	start := time.Date(2025, 3, 10, 9, 0, 0, 0, time.UTC)
	excluded := time.Date(2025, 3, 14, 9, 0, 0, 0, time.UTC)
	events := []ParsedEvent{{
		UID:      "daily",
		Summary:  "Daily sync",
		Start:    start,
		End:      start.Add(30 * time.Minute),
		RawRRule: "FREQ=DAILY",
		ExDates:  []time.Time{excluded},
	}}

	assert.Empty(t, ExpandDay(events, utcDay(2025, 3, 14), time.UTC))

	// Neighboring days are unaffected.
	assert.Len(t, ExpandDay(events, utcDay(2025, 3, 13), time.UTC), 1)
	assert.Len(t, ExpandDay(events, utcDay(2025, 3, 15), time.UTC), 1)
}

func TestExpandDayRecurrenceOverride(t *testing.T) {
	start := time.Date(2025, 3, 10, 9, 0, 0, 0, time.UTC)
	rid := time.Date(2025, 3, 14, 9, 0, 0, 0, time.UTC)
	movedStart := time.Date(2025, 3, 14, 14, 0, 0, 0, time.UTC)

	events := []ParsedEvent{
		{
			UID:      "daily",
			Summary:  "Daily sync",
			Start:    start,
			End:      start.Add(30 * time.Minute),
			RawRRule: "FREQ=DAILY",
		},
		{
			UID:        "daily",
			Summary:    "Daily sync (moved)",
			Start:      movedStart,
			End:        movedStart.Add(30 * time.Minute),
			Recurrence: &rid,
			IsOverride: true,
		},
	}

	got := ExpandDay(events, utcDay(2025, 3, 14), time.UTC)
	require.Len(t, got, 1)
	assert.Equal(t, "Daily sync (moved)", got[0].Summary)
	assert.True(t, got[0].Start.Equal(movedStart))
}

func TestExpandDayPreservesFeedOrder(t *testing.T) {
	day := utcDay(2025, 3, 14)
	events := []ParsedEvent{
		{UID: "b", Summary: "Later but listed first", Start: day.Add(15 * time.Hour), End: day.Add(16 * time.Hour)},
		{UID: "a", Summary: "Earlier but listed second", Start: day.Add(9 * time.Hour), End: day.Add(10 * time.Hour)},
	}

	got := ExpandDay(events, day, time.UTC)
	require.Len(t, got, 2)
	assert.Equal(t, "b", got[0].UID)
	assert.Equal(t, "a", got[1].UID)
}

func TestExpandDaySkipsBadRRule(t *testing.T) {
	day := utcDay(2025, 3, 14)
	events := []ParsedEvent{
		{UID: "bad", Start: day.Add(9 * time.Hour), End: day.Add(10 * time.Hour), RawRRule: "FREQ=NONSENSE"},
		{UID: "ok", Start: day.Add(11 * time.Hour), End: day.Add(12 * time.Hour)},
	}

	got := ExpandDay(events, day, time.UTC)
	require.Len(t, got, 1)
	assert.Equal(t, "ok", got[0].UID)
}
