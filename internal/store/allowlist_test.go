package store_test

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/couchcryptid/closure-relay-service/internal/store"
)

func writeFile(t *testing.T, path, content string) error {
	t.Helper()
	return os.WriteFile(path, []byte(content), 0o644)
}

func TestAllowlistStatuses(t *testing.T) {
	path := filepath.Join(t.TempDir(), "allowlist.json")
	require.NoError(t, writeFile(t, path, `{"alice": true, "bob": false}`))

	a, err := store.OpenAllowlist(path)
	require.NoError(t, err)

	assert.Equal(t, store.AllowApproved, a.Status("alice"))
	assert.Equal(t, store.AllowPending, a.Status("bob"))
	assert.Equal(t, store.AllowUnknown, a.Status("mallory"))
}

func TestAllowlistLegacyArrayNormalized(t *testing.T) {
	path := filepath.Join(t.TempDir(), "allowlist.json")
	require.NoError(t, writeFile(t, path, `["alice", "bob"]`))

	a, err := store.OpenAllowlist(path)
	require.NoError(t, err)

	assert.Equal(t, store.AllowApproved, a.Status("alice"))
	assert.Equal(t, store.AllowApproved, a.Status("bob"))
	assert.Equal(t, store.AllowUnknown, a.Status("carol"))
}

func TestAllowlistProvisionPersistsPending(t *testing.T) {
	path := filepath.Join(t.TempDir(), "allowlist.json")

	a, err := store.OpenAllowlist(path)
	require.NoError(t, err)

	require.NoError(t, a.Provision("newcomer"))
	assert.Equal(t, store.AllowPending, a.Status("newcomer"))

	reopened, err := store.OpenAllowlist(path)
	require.NoError(t, err)
	assert.Equal(t, store.AllowPending, reopened.Status("newcomer"))
}

func TestAllowlistProvisionDoesNotDowngrade(t *testing.T) {
	path := filepath.Join(t.TempDir(), "allowlist.json")
	require.NoError(t, writeFile(t, path, `{"alice": true}`))

	a, err := store.OpenAllowlist(path)
	require.NoError(t, err)

	require.NoError(t, a.Provision("alice"))
	assert.Equal(t, store.AllowApproved, a.Status("alice"))
}

func TestAllowlistMissingFileStartsEmpty(t *testing.T) {
	a, err := store.OpenAllowlist(filepath.Join(t.TempDir(), "nope.json"))
	require.NoError(t, err)
	assert.Equal(t, store.AllowUnknown, a.Status("anyone"))
}
