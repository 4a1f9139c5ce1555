// Package store provides the file-backed persistence used by the relay: the
// closure tracking (dedup) store, the uploader allow-list, and the feature
// cache. Each document is a single JSON file with one writer at a time;
// every mutation is flushed to disk before it returns, so a crash after a
// mutation never replays an already-notified closure.
package store

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"
)

// TrackedEntry records a closure id the relay has already seen.
type TrackedEntry struct {
	FirstSeen time.Time `json:"firstSeen"`
	Region    string    `json:"region"`
}

// Tracking is the durable dedup store keyed by closure id. A tracked id is
// never notified again; reassignment only updates the stored region.
type Tracking struct {
	mu      sync.Mutex
	path    string
	entries map[string]TrackedEntry
}

// OpenTracking loads the tracking document at path, starting empty when it
// does not exist yet.
func OpenTracking(path string) (*Tracking, error) {
	t := &Tracking{path: path, entries: make(map[string]TrackedEntry)}

	b, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return t, nil
	}
	if err != nil {
		return nil, fmt.Errorf("open tracking store: %w", err)
	}
	if err := json.Unmarshal(b, &t.entries); err != nil {
		return nil, fmt.Errorf("parse tracking store %s: %w", path, err)
	}
	return t, nil
}

// IsTracked reports whether the id has been seen before.
func (t *Tracking) IsTracked(id string) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	_, ok := t.entries[id]
	return ok
}

// Record marks an id as seen under a region and persists before returning.
func (t *Tracking) Record(id, region string, firstSeen time.Time) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.entries[id] = TrackedEntry{FirstSeen: firstSeen.UTC(), Region: region}
	return t.flushLocked()
}

// Reassign moves an already-tracked id to a different region. The first-seen
// timestamp is preserved; unknown ids are ignored.
func (t *Tracking) Reassign(id, region string) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	e, ok := t.entries[id]
	if !ok {
		return nil
	}
	e.Region = region
	t.entries[id] = e
	return t.flushLocked()
}

// Forget drops an id so it may be re-evaluated on a later batch. Used when
// region resolution fails entirely.
func (t *Tracking) Forget(id string) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if _, ok := t.entries[id]; !ok {
		return nil
	}
	delete(t.entries, id)
	return t.flushLocked()
}

// Region returns the region currently assigned to an id.
func (t *Tracking) Region(id string) (string, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	e, ok := t.entries[id]
	return e.Region, ok
}

// IDs returns every tracked id whose entry passes the filter. A nil filter
// returns everything. Order is unspecified.
func (t *Tracking) IDs(filter func(TrackedEntry) bool) []string {
	t.mu.Lock()
	defer t.mu.Unlock()
	ids := make([]string, 0, len(t.entries))
	for id, e := range t.entries {
		if filter == nil || filter(e) {
			ids = append(ids, id)
		}
	}
	return ids
}

// Len returns the number of tracked ids.
func (t *Tracking) Len() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.entries)
}

func (t *Tracking) flushLocked() error {
	return writeJSONFile(t.path, t.entries)
}

// writeJSONFile persists v through a temp file and rename so readers never
// observe a torn document.
func writeJSONFile(path string, v any) error {
	b, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal %s: %w", path, err)
	}

	tmp, err := os.CreateTemp(filepath.Dir(path), filepath.Base(path)+".tmp*")
	if err != nil {
		return fmt.Errorf("write %s: %w", path, err)
	}
	if _, err := tmp.Write(b); err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		return fmt.Errorf("write %s: %w", path, err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmp.Name())
		return fmt.Errorf("write %s: %w", path, err)
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		os.Remove(tmp.Name())
		return fmt.Errorf("write %s: %w", path, err)
	}
	return nil
}
