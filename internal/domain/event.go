package domain

import (
	"time"
)

// ClosureEvent is one raw closure report as uploaded by a collection agent.
// Fields are read-only after ingestion; enrichment output lives in
// EnrichedClosure rather than mutating the event.
type ClosureEvent struct {
	ID        string `json:"id"`
	SegmentID string `json:"segmentId"`

	// CreatedBy is either the editor's display name (editor agent) or an
	// opaque numeric user id (scanner agent). Enrichment resolves ids to
	// names via the user cache and falls back to the raw value.
	CreatedBy string `json:"createdBy"`

	// CreatedOn is the report creation time in Unix epoch milliseconds.
	CreatedOn int64 `json:"createdOn"`

	// IsForward marks the closed travel direction along the segment.
	IsForward bool `json:"isForward"`

	Lat float64 `json:"lat,omitempty"`
	Lon float64 `json:"lon,omitempty"`

	// Geometry is an optional [lon, lat] polyline; when present its centroid
	// supplies the coordinates.
	Geometry [][2]float64 `json:"geometry,omitempty"`

	// Location is the comma-joined display location. Scanner-sourced events
	// leave it empty until enrichment fills it in.
	Location string `json:"location,omitempty"`

	// RoadType is the upstream integer road type code.
	RoadType int `json:"roadType"`

	Duration string `json:"duration,omitempty"`
	Status   string `json:"status,omitempty"`

	// StartDate/EndDate bound the closure window, epoch milliseconds.
	// Only consulted by the active-window age policy.
	StartDate int64 `json:"startDate,omitempty"`
	EndDate   int64 `json:"endDate,omitempty"`
}

// CreatedAt returns the creation timestamp as a time.Time.
func (c ClosureEvent) CreatedAt() time.Time {
	return time.UnixMilli(c.CreatedOn).UTC()
}

// Centroid returns the event's coordinates, averaging the polyline geometry
// when no direct lat/lon pair is set.
func (c ClosureEvent) Centroid() (lat, lon float64) {
	if c.Lat != 0 || c.Lon != 0 {
		return c.Lat, c.Lon
	}
	if len(c.Geometry) == 0 {
		return 0, 0
	}
	for _, pt := range c.Geometry {
		lon += pt[0]
		lat += pt[1]
	}
	n := float64(len(c.Geometry))
	return lat / n, lon / n
}

// Direction renders the direction flag in the upstream display form.
func (c ClosureEvent) Direction() string {
	if c.IsForward {
		return "A➜B"
	}
	return "B➜A"
}

// DisplayStatus normalizes the closure status for rendering. Empty statuses
// read as "New"; finished closures read as "Past".
func (c ClosureEvent) DisplayStatus() string {
	switch {
	case c.Status == "":
		return "New"
	case len(c.Status) >= 8 && c.Status[:8] == "Finished":
		return "Past"
	default:
		return c.Status
	}
}

// EnrichedClosure pairs a closure event with the display fields resolved by
// the feature cache. Transient; built per batch and never persisted.
type EnrichedClosure struct {
	ClosureEvent

	Reporter      string // display name of the reporting editor
	ReporterRank  int
	Location      string // enriched location string (overrides the raw one)
	RoadTypeLabel string
}

// DisplayDuration returns the human duration string, defaulting to "Unknown".
func (e EnrichedClosure) DisplayDuration() string {
	if e.Duration == "" {
		return "Unknown"
	}
	return e.Duration
}

// Upload is the batch body accepted by the ingestion endpoint.
type Upload struct {
	UserName string         `json:"userName"`
	Closures []ClosureEvent `json:"closures"`
}

// TrackedQuery is the body accepted by the tracked-closures endpoint. Env
// optionally restricts the response to regions with a matching env tag.
type TrackedQuery struct {
	UserName string `json:"userName"`
	Env      string `json:"env,omitempty"`
}

// NotificationGroup is a non-empty, ordered set of enriched closures sharing
// one (segment, region) key, dispatched as a single notification.
type NotificationGroup struct {
	Region   Region
	Closures []EnrichedClosure
}
