package domain

import "context"

// Feature records hold only the denormalized fields needed for display.
// Upstream identities are immutable, so cached records are never invalidated.

// User is a map editor account.
type User struct {
	Name string `json:"name"`
	Rank int    `json:"rank"`
}

// Segment links a road segment to its primary street.
type Segment struct {
	RoadType int    `json:"roadType"`
	StreetID string `json:"primaryStreetId"`
}

// Street carries the display name and owning city.
type Street struct {
	Name        string `json:"name"`
	EnglishName string `json:"englishName,omitempty"`
	CityID      string `json:"cityId"`
}

// City carries the display name and owning state and country.
type City struct {
	Name        string `json:"name"`
	EnglishName string `json:"englishName,omitempty"`
	StateID     string `json:"stateId"`
	CountryID   string `json:"countryId"`
}

// State is a first-level administrative division.
type State struct {
	Name string `json:"name"`
}

// Country carries the display name and abbreviation.
type Country struct {
	Name string `json:"name"`
	Abbr string `json:"abbr,omitempty"`
}

// DisplayName prefers the localized name and falls back to the english name.
func (s Street) DisplayName() string {
	if s.Name != "" {
		return s.Name
	}
	return s.EnglishName
}

// DisplayName prefers the localized name and falls back to the english name.
func (c City) DisplayName() string {
	if c.Name != "" {
		return c.Name
	}
	return c.EnglishName
}

// FeatureSet is one upstream Features response: every object inside the
// requested bounding box, keyed by id. Merged wholesale into the feature
// cache so one fetch amortizes lookups for neighboring closures.
type FeatureSet struct {
	Users     map[string]User    `json:"users"`
	Segments  map[string]Segment `json:"segments"`
	Streets   map[string]Street  `json:"streets"`
	Cities    map[string]City    `json:"cities"`
	States    map[string]State   `json:"states"`
	Countries map[string]Country `json:"countries"`
}

// FetchBox is the small bounding box around an event used to scope a
// Features fetch.
type FetchBox struct {
	XMin, YMin, XMax, YMax float64
}

// BoxAround builds a fetch box centered on a coordinate pair. The padding
// matches the grid granularity the scanning agent uses.
func BoxAround(lat, lon float64) FetchBox {
	const pad = 0.005
	return FetchBox{
		XMin: lon - pad,
		YMin: lat - pad,
		XMax: lon + pad,
		YMax: lat + pad,
	}
}

// FeatureFetcher retrieves features from the upstream map editor API.
// Implementations return ErrUnauthorized-compatible errors when upstream
// access is denied; the caller treats that as fatal.
type FeatureFetcher interface {
	FetchFeatures(ctx context.Context, box FetchBox, env string) (FeatureSet, error)
}
