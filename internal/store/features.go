package store

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"sync"

	"github.com/couchcryptid/closure-relay-service/internal/domain"
)

// Features is the persistent feature cache: six id → record maps populated
// from batched upstream fetches. Records are never invalidated; upstream
// identities are treated as immutable.
type Features struct {
	mu   sync.Mutex
	path string
	set  domain.FeatureSet
}

// OpenFeatures loads the feature cache document at path, starting empty when
// it does not exist yet.
func OpenFeatures(path string) (*Features, error) {
	f := &Features{path: path, set: emptySet()}

	b, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return f, nil
	}
	if err != nil {
		return nil, fmt.Errorf("open feature cache: %w", err)
	}
	if err := json.Unmarshal(b, &f.set); err != nil {
		return nil, fmt.Errorf("parse feature cache %s: %w", path, err)
	}
	ensureMaps(&f.set)
	return f, nil
}

// Merge folds an entire upstream response into the cache and persists.
// Everything in the response is kept, not just the records the current
// closure needs, so one fetch amortizes future lookups.
func (f *Features) Merge(set domain.FeatureSet) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for id, v := range set.Users {
		f.set.Users[id] = v
	}
	for id, v := range set.Segments {
		f.set.Segments[id] = v
	}
	for id, v := range set.Streets {
		f.set.Streets[id] = v
	}
	for id, v := range set.Cities {
		f.set.Cities[id] = v
	}
	for id, v := range set.States {
		f.set.States[id] = v
	}
	for id, v := range set.Countries {
		f.set.Countries[id] = v
	}
	return writeJSONFile(f.path, f.set)
}

// User looks up an editor account by id or name key.
func (f *Features) User(id string) (domain.User, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	u, ok := f.set.Users[id]
	return u, ok
}

// Segment looks up a road segment by id.
func (f *Features) Segment(id string) (domain.Segment, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	s, ok := f.set.Segments[id]
	return s, ok
}

// Street looks up a street by id.
func (f *Features) Street(id string) (domain.Street, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	s, ok := f.set.Streets[id]
	return s, ok
}

// City looks up a city by id.
func (f *Features) City(id string) (domain.City, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	c, ok := f.set.Cities[id]
	return c, ok
}

// State looks up a state by id.
func (f *Features) State(id string) (domain.State, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	s, ok := f.set.States[id]
	return s, ok
}

// Country looks up a country by id.
func (f *Features) Country(id string) (domain.Country, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	c, ok := f.set.Countries[id]
	return c, ok
}

func emptySet() domain.FeatureSet {
	return domain.FeatureSet{
		Users:     make(map[string]domain.User),
		Segments:  make(map[string]domain.Segment),
		Streets:   make(map[string]domain.Street),
		Cities:    make(map[string]domain.City),
		States:    make(map[string]domain.State),
		Countries: make(map[string]domain.Country),
	}
}

// ensureMaps replaces nil maps from a partial document so lookups and merges
// never hit a nil map.
func ensureMaps(s *domain.FeatureSet) {
	if s.Users == nil {
		s.Users = make(map[string]domain.User)
	}
	if s.Segments == nil {
		s.Segments = make(map[string]domain.Segment)
	}
	if s.Streets == nil {
		s.Streets = make(map[string]domain.Street)
	}
	if s.Cities == nil {
		s.Cities = make(map[string]domain.City)
	}
	if s.States == nil {
		s.States = make(map[string]domain.State)
	}
	if s.Countries == nil {
		s.Countries = make(map[string]domain.Country)
	}
}
