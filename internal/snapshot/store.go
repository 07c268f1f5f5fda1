// Package snapshot persists the single cached feed payload together with the
// calendar date it was fetched on. There is exactly one slot; every store
// overwrites the previous snapshot and no history is kept.
package snapshot

import (
	"encoding/json"
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"time"

	appLog "dayview/internal/log"
)

// DateLayout is the ISO calendar-date form used for FetchDate.
const DateLayout = "2006-01-02"

const (
	payloadFile = "feed.ics"
	metaFile    = "meta.json"
)

// Snapshot is the cached raw payload plus its fetch date.
type Snapshot struct {
	Payload   []byte
	FetchDate string // YYYY-MM-DD in the display timezone
}

// ValidOn reports whether the snapshot may be reused on the given day.
// The day boundary is the only invalidation rule.
func (s Snapshot) ValidOn(day time.Time, loc *time.Location) bool {
	return s.FetchDate == day.In(loc).Format(DateLayout)
}

// meta is the on-disk metadata entry next to the payload.
type meta struct {
	FetchDate string    `json:"fetch_date"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Store is a disk-backed single-slot snapshot store rooted at a state
// directory (e.g. /var/lib/dayview).
type Store struct {
	dir string
}

// NewStore creates a Store rooted at dir. The directory is created on first
// write, not here, so construction never fails.
func NewStore(dir string) *Store {
	if dir == "" {
		// Fallback for development runs without a configured state dir.
		dir = "./var/snapshot"
	}
	return &Store{dir: dir}
}

// Load reads the persisted snapshot. Any read or decode failure is degraded
// to a miss: with a single slot there is nothing to repair, the next
// resolution simply fetches fresh.
func (s *Store) Load() (Snapshot, bool) {
	metaData, err := os.ReadFile(filepath.Join(s.dir, metaFile))
	if err != nil {
		if !errors.Is(err, fs.ErrNotExist) {
			appLog.Warn("snapshot meta unreadable, treating as miss", "dir", s.dir, "reason", err)
		}
		return Snapshot{}, false
	}

	var m meta
	if err := json.Unmarshal(metaData, &m); err != nil {
		appLog.Warn("snapshot meta corrupt, treating as miss", "dir", s.dir, "reason", err)
		return Snapshot{}, false
	}
	if m.FetchDate == "" {
		appLog.Warn("snapshot meta missing fetch_date, treating as miss", "dir", s.dir)
		return Snapshot{}, false
	}

	payload, err := os.ReadFile(filepath.Join(s.dir, payloadFile))
	if err != nil || len(payload) == 0 {
		appLog.Warn("snapshot payload unreadable, treating as miss", "dir", s.dir, "reason", err)
		return Snapshot{}, false
	}

	return Snapshot{Payload: payload, FetchDate: m.FetchDate}, true
}

// Save overwrites the stored snapshot with payload fetched on day (in loc).
// The payload is written before the metadata so a crash between the two
// leaves a stale-dated snapshot rather than a dated empty one, and each file
// is written atomically via temp file + rename.
func (s *Store) Save(payload []byte, day time.Time, loc *time.Location) error {
	if err := os.MkdirAll(s.dir, 0o700); err != nil {
		return err
	}

	if err := writeFileAtomic(filepath.Join(s.dir, payloadFile), payload); err != nil {
		return err
	}

	m := meta{
		FetchDate: day.In(loc).Format(DateLayout),
		UpdatedAt: time.Now().UTC(),
	}
	data, err := json.MarshalIndent(&m, "", "  ")
	if err != nil {
		return err
	}
	return writeFileAtomic(filepath.Join(s.dir, metaFile), data)
}

// writeFileAtomic writes data to path via a temp file in the same directory
// followed by a rename, with 0600 permissions on the final file.
func writeFileAtomic(path string, data []byte) error {
	dir := filepath.Dir(path)

	tmp, err := os.CreateTemp(dir, ".dayview-snapshot-*.tmp")
	if err != nil {
		return err
	}
	tmpName := tmp.Name()
	defer os.Remove(tmpName)

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	if err := os.Chmod(tmpName, 0o600); err != nil {
		return err
	}
	return os.Rename(tmpName, path)
}
