package domain

import "strings"

// Webhook is one notification destination owned by a region.
type Webhook struct {
	// Type selects the payload shape: "discord" or "slack".
	Type string `json:"type" mapstructure:"type"`
	URL  string `json:"url" mapstructure:"url"`
}

// BoundingBox is the region's scan geometry. The scanning agent consumes it;
// this service uses it only to pick an upstream env for events that arrive
// without a location.
type BoundingBox struct {
	XMin float64 `json:"xMin" mapstructure:"xMin"`
	XMax float64 `json:"xMax" mapstructure:"xMax"`
	YMin float64 `json:"yMin" mapstructure:"yMin"`
	YMax float64 `json:"yMax" mapstructure:"yMax"`
}

// Contains reports whether the point (lon along x, lat along y) falls inside
// the box. A zero box contains nothing.
func (b BoundingBox) Contains(lat, lon float64) bool {
	if b.XMin == 0 && b.XMax == 0 && b.YMin == 0 && b.YMax == 0 {
		return false
	}
	return lon >= b.XMin && lon <= b.XMax && lat >= b.YMin && lat <= b.YMax
}

// Region is an operator-configured geographic bucket with its own webhook
// destinations and filtering policy. Declaration order in the config file is
// resolution order.
type Region struct {
	Name   string      `json:"name" mapstructure:"name"`
	Bounds BoundingBox `json:"bounds" mapstructure:"bounds"`

	// Env selects the upstream URL namespace: "na" (default), "row", "il".
	Env string `json:"env" mapstructure:"env"`

	// LocationKeywordsFilter holds lowercase substrings matched against a
	// closure's location string.
	LocationKeywordsFilter []string  `json:"locationKeywordsFilter" mapstructure:"locationKeywordsFilter"`
	Webhooks               []Webhook `json:"webhooks" mapstructure:"webhooks"`

	// DotMapURL is an optional external reference-map link template. One
	// {lat}/{lon} pair substitutes the closure point; two pairs substitute a
	// small bounding box around it.
	DotMapURL  string `json:"dotMapUrl,omitempty" mapstructure:"dotMapUrl"`
	DotMapName string `json:"dotMapName,omitempty" mapstructure:"dotMapName"`

	// GroupBySegment toggles co-located grouping; nil means enabled.
	GroupBySegment *bool `json:"groupBySegment,omitempty" mapstructure:"groupBySegment"`

	// MaxClosureAgeDays is the reporting-eligibility policy; nil means the
	// default of 3. Zero restricts to currently active closures, negative
	// disables the age check.
	MaxClosureAgeDays *int `json:"maxClosureAgeDays,omitempty" mapstructure:"maxClosureAgeDays"`
}

// GroupingEnabled reports the grouping toggle with its default applied.
func (r Region) GroupingEnabled() bool {
	return r.GroupBySegment == nil || *r.GroupBySegment
}

// MaxAgeDays reports the age policy with its default applied.
func (r Region) MaxAgeDays() int {
	if r.MaxClosureAgeDays == nil {
		return 3
	}
	return *r.MaxClosureAgeDays
}

// Matches reports whether any of the region's keyword filters is a
// case-insensitive substring of the location text.
func (r Region) Matches(location string) bool {
	loc := strings.ToLower(location)
	for _, kw := range r.LocationKeywordsFilter {
		if kw != "" && strings.Contains(loc, strings.ToLower(kw)) {
			return true
		}
	}
	return false
}

// ResolveRegion assigns a location string to the first matching region in
// declared order. The second return is false when no region matches; the
// caller must treat the closure as unassignable.
func ResolveRegion(regions []Region, location string) (Region, bool) {
	for _, r := range regions {
		if r.Matches(location) {
			return r, true
		}
	}
	return Region{}, false
}

// EnvForPoint picks the upstream env for a feature fetch by finding the
// first region whose bounds contain the point. Defaults to "na" when no
// region claims it.
func EnvForPoint(regions []Region, lat, lon float64) string {
	for _, r := range regions {
		if r.Bounds.Contains(lat, lon) && r.Env != "" {
			return r.Env
		}
	}
	return "na"
}

// ResolveRegionExcluding re-resolves a location against every region except
// the named one. Used after enrichment when the original assignment's
// keywords no longer match, so a reassignment is never a no-op.
func ResolveRegionExcluding(regions []Region, location, exclude string) (Region, bool) {
	for _, r := range regions {
		if r.Name == exclude {
			continue
		}
		if r.Matches(location) {
			return r, true
		}
	}
	return Region{}, false
}
