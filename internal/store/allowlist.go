package store

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"sync"
)

// AllowStatus is the allow-list verdict for an uploader name.
type AllowStatus int

const (
	// AllowUnknown means the name has never been seen.
	AllowUnknown AllowStatus = iota
	// AllowPending means the name is provisioned but not yet approved.
	AllowPending
	// AllowApproved means uploads from the name are accepted.
	AllowApproved
)

// Allowlist is the persisted uploader allow-list. The canonical shape is a
// name → approved map; a legacy array form (every listed name approved) is
// normalized on load so business logic never branches on the stored shape.
type Allowlist struct {
	mu    sync.Mutex
	path  string
	users map[string]bool
}

// OpenAllowlist loads the allow-list document at path, starting empty when
// it does not exist yet.
func OpenAllowlist(path string) (*Allowlist, error) {
	a := &Allowlist{path: path, users: make(map[string]bool)}

	b, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return a, nil
	}
	if err != nil {
		return nil, fmt.Errorf("open allowlist: %w", err)
	}

	if err := json.Unmarshal(b, &a.users); err == nil {
		return a, nil
	}

	// Legacy form: a bare array of approved names.
	var names []string
	if err := json.Unmarshal(b, &names); err != nil {
		return nil, fmt.Errorf("parse allowlist %s: %w", path, err)
	}
	for _, n := range names {
		a.users[n] = true
	}
	return a, nil
}

// Status returns the verdict for a name.
func (a *Allowlist) Status(name string) AllowStatus {
	a.mu.Lock()
	defer a.mu.Unlock()
	approved, ok := a.users[name]
	switch {
	case !ok:
		return AllowUnknown
	case approved:
		return AllowApproved
	default:
		return AllowPending
	}
}

// Provision registers a first-seen name as pending and persists. An operator
// approves it by flipping the entry in the file. Already-known names are
// left untouched.
func (a *Allowlist) Provision(name string) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	if _, ok := a.users[name]; ok {
		return nil
	}
	a.users[name] = false
	return writeJSONFile(a.path, a.users)
}
