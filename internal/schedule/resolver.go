// Package schedule resolves the list of calendar events for a selected day:
// it decides between the cached snapshot and a fresh fetch, parses the
// payload, expands recurrences and filters to the day.
package schedule

import (
	"context"
	"errors"
	"sync/atomic"
	"time"

	"dayview/internal/ics"
	appLog "dayview/internal/log"
	"dayview/internal/model"
	"dayview/internal/snapshot"
)

// ErrSuperseded is returned when a newer resolution started while this one
// was waiting on the network. The superseded result is dropped so an older
// fetch can never overwrite a newer selection's cache or display.
var ErrSuperseded = errors.New("schedule: resolution superseded by a newer request")

// Fetcher retrieves the raw feed payload. Satisfied by *ics.Fetcher.
type Fetcher interface {
	Fetch(ctx context.Context, url string) ([]byte, error)
}

// Cache is the single-slot snapshot store. Satisfied by *snapshot.Store.
type Cache interface {
	Load() (snapshot.Snapshot, bool)
	Save(payload []byte, day time.Time, loc *time.Location) error
}

// Config carries the resolver's collaborators. Fetcher, Cache and FeedURL
// are required; Location defaults to time.Local and Now to time.Now.
type Config struct {
	Fetcher  Fetcher
	Cache    Cache
	FeedURL  string
	Location *time.Location

	// Now is the injected clock. Tests use it to pin "today" and the
	// in-progress instant.
	Now func() time.Time
}

// Resolver orchestrates cache-or-fetch, parsing and day filtering. Selected
// date and results are threaded through Resolve as explicit values; the
// resolver holds no per-day state.
type Resolver struct {
	fetcher Fetcher
	cache   Cache
	feedURL string
	loc     *time.Location
	now     func() time.Time

	// seq numbers resolution requests so stale in-flight fetches can be
	// detected and dropped.
	seq atomic.Uint64
}

// NewResolver creates a Resolver from cfg.
func NewResolver(cfg Config) *Resolver {
	loc := cfg.Location
	if loc == nil {
		loc = time.Local
	}
	now := cfg.Now
	if now == nil {
		now = time.Now
	}
	return &Resolver{
		fetcher: cfg.Fetcher,
		cache:   cfg.Cache,
		feedURL: cfg.FeedURL,
		loc:     loc,
		now:     now,
	}
}

// Location returns the display timezone.
func (r *Resolver) Location() *time.Location { return r.loc }

// Today returns midnight of the current calendar day in the display timezone.
func (r *Resolver) Today() time.Time {
	return model.DayStart(r.now(), r.loc)
}

// Resolve returns the events of the selected calendar day, in feed order.
//
// With forceRefresh false a snapshot fetched today is reused without network
// access. Otherwise the feed is fetched, validated by parsing, and only then
// committed to the cache; a payload that fails to parse never replaces the
// stored snapshot. The day boundary is the only cache invalidation rule: the
// selected date plays no part in snapshot validity.
//
// On fetch failure the cache is left untouched and no stale snapshot is used
// as a fallback (strict today-or-fetch policy). The per-event "happening
// now" flag is not computed here; callers evaluate model.Event.InProgress
// at render time because "now" drifts.
func (r *Resolver) Resolve(ctx context.Context, selected time.Time, forceRefresh bool) ([]model.Event, error) {
	token := r.seq.Add(1)
	today := r.Today()

	var parsed []ics.ParsedEvent
	fromCache := false

	if !forceRefresh {
		if snap, ok := r.cache.Load(); ok && snap.ValidOn(today, r.loc) {
			p, err := ics.ParseFeed(snap.Payload)
			if err != nil {
				// A committed snapshot should always parse; if it no longer
				// does, treat it like any other cache failure and refetch.
				appLog.Warn("cached snapshot failed to parse, refetching", "reason", err)
			} else {
				parsed = p
				fromCache = true
			}
		}
	}

	if !fromCache {
		payload, err := r.fetcher.Fetch(ctx, r.feedURL)
		if err != nil {
			appLog.Error("feed fetch failed", err)
			return nil, err
		}

		p, err := ics.ParseFeed(payload)
		if err != nil {
			appLog.Error("fetched payload failed to parse, cache left untouched", err)
			return nil, err
		}

		if r.seq.Load() != token {
			appLog.Info("dropping superseded resolution", "token", token)
			return nil, ErrSuperseded
		}

		if err := r.cache.Save(payload, today, r.loc); err != nil {
			// The result is still good; the next resolution just refetches.
			appLog.Warn("snapshot save failed", "reason", err)
		}
		parsed = p
	}

	events := ics.ExpandDay(parsed, selected, r.loc)
	appLog.Debug("resolution completed",
		"selected", model.DayStart(selected, r.loc).Format(snapshot.DateLayout),
		"from_cache", fromCache,
		"event_count", len(events),
	)
	return events, nil
}
