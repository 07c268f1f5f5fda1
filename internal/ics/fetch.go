package ics

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"time"

	appLog "dayview/internal/log"
)

const defaultFetchTimeout = 15 * time.Second

// maxFeedBytes bounds how much of a response body is read. A term schedule
// is a few hundred kilobytes at most; anything larger is a broken feed.
const maxFeedBytes = 8 << 20

// FetchError reports a failed feed retrieval (network error or non-2xx
// response). The feed URL is stored redacted because it carries an access
// token in its query string.
type FetchError struct {
	URL    string // redacted
	Status int    // HTTP status code, 0 for transport errors
	Err    error
}

func (e *FetchError) Error() string {
	if e.Status != 0 {
		return fmt.Sprintf("fetch %s: unexpected status %d", e.URL, e.Status)
	}
	return fmt.Sprintf("fetch %s: %v", e.URL, e.Err)
}

func (e *FetchError) Unwrap() error { return e.Err }

// Fetcher retrieves the raw iCalendar payload from the configured feed URL.
// It performs a plain GET per call; snapshot caching is the caller's concern.
type Fetcher struct {
	client *http.Client
}

// NewFetcher creates a Fetcher with a bounded request timeout. A zero
// timeout selects the default of 15s; indefinite suspension is never allowed
// since resolution runs in a user-facing interactive context.
func NewFetcher(timeout time.Duration) *Fetcher {
	if timeout <= 0 {
		timeout = defaultFetchTimeout
	}
	return &Fetcher{
		client: &http.Client{
			Timeout: timeout,
		},
	}
}

// Fetch performs a single HTTP GET against url and returns the response
// body. There is no retry; the caller decides whether to surface an error
// state to the user.
func (f *Fetcher) Fetch(ctx context.Context, url string) ([]byte, error) {
	if url == "" {
		return nil, &FetchError{URL: "(empty)", Err: fmt.Errorf("feed URL is empty")}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, &FetchError{URL: RedactURL(url), Err: err}
	}
	req.Header.Set("Accept", "text/calendar")

	appLog.Info("feed fetch start", "url", RedactURL(url))

	resp, err := f.client.Do(req)
	if err != nil {
		return nil, &FetchError{URL: RedactURL(url), Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, &FetchError{URL: RedactURL(url), Status: resp.StatusCode}
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxFeedBytes))
	if err != nil {
		return nil, &FetchError{URL: RedactURL(url), Err: err}
	}

	appLog.Info("feed fetch success", "url", RedactURL(url), "status", resp.StatusCode, "bytes", len(body))
	return body, nil
}

// RedactURL hides the path and query of a feed URL for logging purposes.
// Example:
//
//	https://example.com/private/basic.ics?token=abcd
//	-> https://example.com/...(redacted)
func RedactURL(u string) string {
	const redactedSuffix = "/...(redacted)"

	// Find scheme separator.
	i := -1
	for idx := 0; idx+2 < len(u); idx++ {
		if u[idx:idx+3] == "://" {
			i = idx + 3
			break
		}
	}
	if i == -1 {
		return "feed://...(redacted)"
	}

	// Find next slash after host.
	j := i
	for j < len(u) && u[j] != '/' {
		j++
	}

	return u[:j] + redactedSuffix
}
