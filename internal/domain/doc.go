// Package domain models user-reported road closures from the upstream map
// editor.
//
// # Data Source
//
// Closure reports are produced outside this service, either by an editor-side
// collection agent that watches a live map-editing session, or by a scanning
// agent that polls the upstream Features endpoint over a grid of bounding
// boxes. Both upload the same batch shape to POST /uploadClosures:
//
//	{ "userName": "<editor>", "closures": [ ClosureEvent, ... ] }
//
// # Closure Conventions
//
// Timestamps (createdOn, startDate, endDate) are Unix epoch milliseconds.
// Closures are direction-specific: isForward reports the closed travel
// direction along the segment, rendered as "A➜B" or "B➜A".
//
// Location strings are comma-joined place names in street, city, state,
// country order, e.g. "Main St, Springfield, Illinois, United States".
// Scanner-sourced closures arrive without a location string and carry only a
// segment id; the enrichment cache resolves the display chain
// (segment → street → city → state → country) before dispatch.
//
// Coordinates are either a single lat/lon pair or a polyline geometry whose
// centroid is used (the editor agent averages the segment geometry the same
// way).
//
// Road types are the upstream integer codes (1 = Street, 3 = Freeway,
// 6 = Major Highway, ...). See [RoadTypeLabel] and [RoadTypeColor].
//
// # Regions
//
// A region is an operator-configured bucket owning keyword filters, webhook
// destinations, a grouping toggle, and an age policy. A closure belongs to
// the first declared region whose keyword matches its location string;
// resolution order is declaration order, so overlapping filters are settled
// by the config file.
package domain
