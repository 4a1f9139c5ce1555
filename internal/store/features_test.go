package store_test

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/couchcryptid/closure-relay-service/internal/domain"
	"github.com/couchcryptid/closure-relay-service/internal/store"
)

func TestFeaturesMergeAndLookup(t *testing.T) {
	path := filepath.Join(t.TempDir(), "features.json")
	f, err := store.OpenFeatures(path)
	require.NoError(t, err)

	_, ok := f.Segment("seg-1")
	assert.False(t, ok)

	require.NoError(t, f.Merge(domain.FeatureSet{
		Users:    map[string]domain.User{"u1": {Name: "alice", Rank: 4}},
		Segments: map[string]domain.Segment{"seg-1": {RoadType: 2, StreetID: "st-1"}},
		Streets:  map[string]domain.Street{"st-1": {Name: "Main St", CityID: "city-1"}},
	}))

	u, ok := f.User("u1")
	require.True(t, ok)
	assert.Equal(t, "alice", u.Name)

	seg, ok := f.Segment("seg-1")
	require.True(t, ok)
	assert.Equal(t, "st-1", seg.StreetID)
}

func TestFeaturesMergeIsAdditive(t *testing.T) {
	f, err := store.OpenFeatures(filepath.Join(t.TempDir(), "features.json"))
	require.NoError(t, err)

	require.NoError(t, f.Merge(domain.FeatureSet{
		Streets: map[string]domain.Street{"st-1": {Name: "Main St"}},
	}))
	require.NoError(t, f.Merge(domain.FeatureSet{
		Streets: map[string]domain.Street{"st-2": {Name: "Oak Ave"}},
	}))

	_, ok := f.Street("st-1")
	assert.True(t, ok)
	_, ok = f.Street("st-2")
	assert.True(t, ok)
}

func TestFeaturesSurviveReopen(t *testing.T) {
	path := filepath.Join(t.TempDir(), "features.json")

	f, err := store.OpenFeatures(path)
	require.NoError(t, err)
	require.NoError(t, f.Merge(domain.FeatureSet{
		Countries: map[string]domain.Country{"c1": {Name: "USA", Abbr: "US"}},
	}))

	reopened, err := store.OpenFeatures(path)
	require.NoError(t, err)
	country, ok := reopened.Country("c1")
	require.True(t, ok)
	assert.Equal(t, "USA", country.Name)
}
