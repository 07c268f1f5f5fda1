package ics

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFetchSuccess(t *testing.T) {
	const payload = "BEGIN:VCALENDAR\r\nEND:VCALENDAR\r\n"

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodGet, r.Method)
		_, _ = w.Write([]byte(payload))
	}))
	defer srv.Close()

	f := NewFetcher(0)
	body, err := f.Fetch(context.Background(), srv.URL+"/feed.ics?token=secret")
	require.NoError(t, err)
	assert.Equal(t, payload, string(body))
}

func TestFetchNonSuccessStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "gone", http.StatusNotFound)
	}))
	defer srv.Close()

	f := NewFetcher(0)
	_, err := f.Fetch(context.Background(), srv.URL+"/feed.ics")
	require.Error(t, err)

	var fe *FetchError
	require.True(t, errors.As(err, &fe))
	assert.Equal(t, http.StatusNotFound, fe.Status)
}

func TestFetchNetworkError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	url := srv.URL
	srv.Close() // nothing is listening anymore

	f := NewFetcher(0)
	_, err := f.Fetch(context.Background(), url)
	require.Error(t, err)

	var fe *FetchError
	require.True(t, errors.As(err, &fe))
	assert.Zero(t, fe.Status)
	assert.Error(t, fe.Unwrap())
}

func TestFetchEmptyURL(t *testing.T) {
	f := NewFetcher(0)
	_, err := f.Fetch(context.Background(), "")

	var fe *FetchError
	require.True(t, errors.As(err, &fe))
}

func TestFetchErrorNeverExposesFullURL(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "no", http.StatusForbidden)
	}))
	defer srv.Close()

	f := NewFetcher(0)
	_, err := f.Fetch(context.Background(), srv.URL+"/cal/private.ics?token=supersecret")
	require.Error(t, err)
	assert.NotContains(t, err.Error(), "supersecret")
}

func TestRedactURL(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"https://example.com/cal/private.ics?token=abcd", "https://example.com/...(redacted)"},
		{"http://example.com", "http://example.com/...(redacted)"},
		{"garbage", "feed://...(redacted)"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, RedactURL(tt.in))
	}
}
