package snapshot

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStoreRoundTrip(t *testing.T) {
	dir := t.TempDir()
	s := NewStore(dir)

	day := time.Date(2025, 3, 14, 16, 30, 0, 0, time.UTC)
	payload := []byte("BEGIN:VCALENDAR\r\nEND:VCALENDAR\r\n")

	require.NoError(t, s.Save(payload, day, time.UTC))

	snap, ok := s.Load()
	require.True(t, ok)
	assert.Equal(t, payload, snap.Payload)
	assert.Equal(t, "2025-03-14", snap.FetchDate)
}

func TestLoadMissingIsAMiss(t *testing.T) {
	s := NewStore(t.TempDir())

	_, ok := s.Load()
	assert.False(t, ok)
}

func TestLoadCorruptMetaIsAMiss(t *testing.T) {
	dir := t.TempDir()
	s := NewStore(dir)

	require.NoError(t, s.Save([]byte("payload"), time.Now(), time.UTC))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "meta.json"), []byte("{not json"), 0o600))

	_, ok := s.Load()
	assert.False(t, ok)
}

func TestLoadMissingPayloadIsAMiss(t *testing.T) {
	dir := t.TempDir()
	s := NewStore(dir)

	require.NoError(t, s.Save([]byte("payload"), time.Now(), time.UTC))
	require.NoError(t, os.Remove(filepath.Join(dir, "feed.ics")))

	_, ok := s.Load()
	assert.False(t, ok)
}

func TestSaveOverwritesSingleSlot(t *testing.T) {
	dir := t.TempDir()
	s := NewStore(dir)

	require.NoError(t, s.Save([]byte("first"), time.Date(2025, 3, 13, 10, 0, 0, 0, time.UTC), time.UTC))
	require.NoError(t, s.Save([]byte("second"), time.Date(2025, 3, 14, 10, 0, 0, 0, time.UTC), time.UTC))

	snap, ok := s.Load()
	require.True(t, ok)
	assert.Equal(t, "second", string(snap.Payload))
	assert.Equal(t, "2025-03-14", snap.FetchDate)
}

func TestSnapshotValidOn(t *testing.T) {
	snap := Snapshot{Payload: []byte("x"), FetchDate: "2025-03-14"}

	sameDay := time.Date(2025, 3, 14, 23, 59, 0, 0, time.UTC)
	nextDay := time.Date(2025, 3, 15, 0, 1, 0, 0, time.UTC)

	assert.True(t, snap.ValidOn(sameDay, time.UTC))
	assert.False(t, snap.ValidOn(nextDay, time.UTC))
}

func TestSnapshotValidOnRespectsZone(t *testing.T) {
	berlin, err := time.LoadLocation("Europe/Berlin")
	if err != nil {
		t.Skip("tzdata unavailable")
	}

	snap := Snapshot{Payload: []byte("x"), FetchDate: "2025-03-15"}

	// 23:30 UTC on the 14th is already the 15th in Berlin.
	at := time.Date(2025, 3, 14, 23, 30, 0, 0, time.UTC)
	assert.True(t, snap.ValidOn(at, berlin))
	assert.False(t, snap.ValidOn(at, time.UTC))
}

func TestSavedFilesArePrivate(t *testing.T) {
	dir := t.TempDir()
	s := NewStore(dir)
	require.NoError(t, s.Save([]byte("payload"), time.Now(), time.UTC))

	for _, name := range []string{"feed.ics", "meta.json"} {
		info, err := os.Stat(filepath.Join(dir, name))
		require.NoError(t, err)
		assert.Equal(t, os.FileMode(0o600), info.Mode().Perm(), name)
	}
}
