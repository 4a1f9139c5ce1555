// Package enrich resolves the terse identifiers on a closure event (user and
// segment ids) into the display fields notifications need, backed by the
// persistent feature cache and the upstream Features API.
package enrich

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/couchcryptid/closure-relay-service/internal/domain"
	"github.com/couchcryptid/closure-relay-service/internal/observability"
	"github.com/couchcryptid/closure-relay-service/internal/store"
)

// unknownLocation is surfaced when the chain cannot be resolved even after a
// refetch. Not retried; upstream simply does not know the object.
const unknownLocation = "Unknown"

// Enricher resolves closure display fields through the feature cache,
// hydrating the cache from upstream at most once per event.
type Enricher struct {
	cache   *store.Features
	fetcher domain.FeatureFetcher
	logger  *slog.Logger
	metrics *observability.Metrics
}

// New creates an Enricher. A nil fetcher disables hydration; lookups then
// resolve from the cache alone.
func New(cache *store.Features, fetcher domain.FeatureFetcher, logger *slog.Logger, metrics *observability.Metrics) *Enricher {
	return &Enricher{cache: cache, fetcher: fetcher, logger: logger, metrics: metrics}
}

// Enrich resolves the reporter name and location chain for one closure.
//
// Events that already carry a display location (editor-agent uploads) are
// resolved from the cache only. Events without one (scanner uploads) trigger
// a single batched Features fetch scoped to a small box around the event
// when the reporter or any link in the segment → street → city → state →
// country chain is missing; the full response is merged into the cache
// before the chain is re-resolved. A link still missing after the refetch is
// skipped rather than retried.
func (e *Enricher) Enrich(ctx context.Context, c domain.ClosureEvent, env string) (domain.EnrichedClosure, error) {
	out := domain.EnrichedClosure{
		ClosureEvent:  c,
		Reporter:      c.CreatedBy,
		Location:      c.Location,
		RoadTypeLabel: domain.RoadTypeLabel(c.RoadType),
	}

	location, complete := e.resolveChain(c)
	_, userKnown := e.cache.User(c.CreatedBy)

	needFetch := c.Location == "" && (!complete || !userKnown)
	if needFetch && e.fetcher != nil {
		if e.metrics != nil {
			e.metrics.EnrichmentFetches.Inc()
		}
		lat, lon := c.Centroid()
		set, err := e.fetcher.FetchFeatures(ctx, domain.BoxAround(lat, lon), env)
		if err != nil {
			return out, fmt.Errorf("hydrate features for closure %s: %w", c.ID, err)
		}
		if err := e.cache.Merge(set); err != nil {
			return out, fmt.Errorf("merge features for closure %s: %w", c.ID, err)
		}
		location, complete = e.resolveChain(c)
	}

	if u, ok := e.cache.User(c.CreatedBy); ok {
		out.Reporter = u.Name
		out.ReporterRank = u.Rank
	}

	// A fully resolved chain is the authoritative display location, even for
	// events that arrived with one; partially resolved chains only fill in a
	// missing location.
	switch {
	case complete && location != "":
		out.Location = location
	case c.Location == "" && location != "":
		out.Location = location
	case c.Location == "":
		out.Location = unknownLocation
	}

	if seg, ok := e.cache.Segment(c.SegmentID); ok && c.RoadType == 0 {
		out.RoadType = seg.RoadType
		out.RoadTypeLabel = domain.RoadTypeLabel(seg.RoadType)
	}

	return out, nil
}

// resolveChain walks segment → street → city → state → country through the
// cache and joins the non-empty display names in that order. The second
// return reports whether every link resolved.
func (e *Enricher) resolveChain(c domain.ClosureEvent) (string, bool) {
	var parts []string
	complete := true

	hit := func(ok bool) bool {
		if e.metrics != nil {
			if ok {
				e.metrics.FeatureCacheHits.Inc()
			} else {
				e.metrics.FeatureCacheMisses.Inc()
			}
		}
		return ok
	}

	seg, ok := e.cache.Segment(c.SegmentID)
	if !hit(ok) {
		return "", false
	}

	street, ok := e.cache.Street(seg.StreetID)
	if !hit(ok) {
		return "", false
	}
	if name := street.DisplayName(); name != "" {
		parts = append(parts, name)
	}

	city, ok := e.cache.City(street.CityID)
	if !hit(ok) {
		return strings.Join(parts, ", "), false
	}
	if name := city.DisplayName(); name != "" {
		parts = append(parts, name)
	}

	if state, ok := e.cache.State(city.StateID); hit(ok) {
		if state.Name != "" {
			parts = append(parts, state.Name)
		}
	} else {
		complete = false
	}

	if country, ok := e.cache.Country(city.CountryID); hit(ok) {
		if country.Name != "" {
			parts = append(parts, country.Name)
		}
	} else {
		complete = false
	}

	return strings.Join(parts, ", "), complete
}
