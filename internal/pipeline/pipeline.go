// Package pipeline orchestrates the dedup-resolve-enrich-dispatch flow for
// uploaded closure batches.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/couchcryptid/closure-relay-service/internal/adapter/descartes"
	"github.com/couchcryptid/closure-relay-service/internal/adapter/kafka"
	"github.com/couchcryptid/closure-relay-service/internal/config"
	"github.com/couchcryptid/closure-relay-service/internal/domain"
	"github.com/couchcryptid/closure-relay-service/internal/notify"
	"github.com/couchcryptid/closure-relay-service/internal/observability"
	"github.com/couchcryptid/closure-relay-service/internal/store"
)

// Enricher resolves the display fields for one closure.
type Enricher interface {
	Enrich(ctx context.Context, c domain.ClosureEvent, env string) (domain.EnrichedClosure, error)
}

// Dispatcher delivers one notification group to its region's webhooks.
type Dispatcher interface {
	Dispatch(ctx context.Context, g domain.NotificationGroup) []notify.DeliveryResult
}

// StreamPublisher mirrors accepted closures onto the event stream. Optional;
// a nil publisher disables mirroring.
type StreamPublisher interface {
	PublishAccepted(ctx context.Context, items []kafka.StreamItem) error
}

// BatchResult summarizes what happened to one uploaded batch.
type BatchResult struct {
	Received     int `json:"received"`
	Accepted     int `json:"accepted"`
	Duplicates   int `json:"duplicates"`
	Unassignable int `json:"unassignable"`
	Stale        int `json:"stale"`
	Suppressed   int `json:"suppressed"`
	Notified     int `json:"notified"`
}

// Processor runs uploaded batches through the full flow: dedup against the
// tracking store, region resolution, age policy, durable tracking, stream
// mirroring, enrichment, post-enrichment re-resolution, grouping, dispatch.
//
// Batches are serialized; the tracking store is the only cross-batch state
// and interleaving two batches could notify the same closure twice.
type Processor struct {
	mu sync.Mutex

	provider   *config.Provider
	tracking   *store.Tracking
	enricher   Enricher
	dispatcher Dispatcher
	publisher  StreamPublisher
	logger     *slog.Logger
	metrics    *observability.Metrics
}

// New creates a Processor. publisher may be nil.
func New(provider *config.Provider, tracking *store.Tracking, enricher Enricher, dispatcher Dispatcher, publisher StreamPublisher, logger *slog.Logger, metrics *observability.Metrics) *Processor {
	return &Processor{
		provider:   provider,
		tracking:   tracking,
		enricher:   enricher,
		dispatcher: dispatcher,
		publisher:  publisher,
		logger:     logger,
		metrics:    metrics,
	}
}

// CheckReadiness returns nil once a usable config snapshot is loaded.
func (p *Processor) CheckReadiness(_ context.Context) error {
	snap := p.provider.Snapshot()
	if snap == nil {
		return errors.New("no config snapshot loaded")
	}
	if len(snap.Regions) == 0 {
		return errors.New("no regions configured")
	}
	return nil
}

// accepted is a closure that survived dedup, resolution and the age policy.
type accepted struct {
	event    domain.ClosureEvent
	region   domain.Region
	enriched *domain.EnrichedClosure // set when enrichment already ran during resolution
}

// ProcessBatch runs one uploaded batch end to end. The returned error is
// fatal: an upstream session rejection that the process cannot recover from.
// All per-closure failures are absorbed into the result counts.
func (p *Processor) ProcessBatch(ctx context.Context, upload domain.Upload) (BatchResult, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	start := domain.Now()
	snap := p.provider.Snapshot()
	regions := snap.Regions

	var res BatchResult
	res.Received = len(upload.Closures)
	p.metrics.ClosuresReceived.Add(float64(res.Received))

	acceptedBatch, err := p.filterBatch(ctx, upload, regions, &res)
	if err != nil {
		return res, err
	}
	res.Accepted = len(acceptedBatch)
	p.metrics.ClosuresAccepted.Add(float64(res.Accepted))

	p.publishAccepted(ctx, acceptedBatch)

	assigned, err := p.enrichBatch(ctx, acceptedBatch, regions, &res)
	if err != nil {
		return res, err
	}

	for _, g := range domain.GroupClosures(assigned) {
		p.dispatcher.Dispatch(ctx, g)
		res.Notified++
	}

	p.metrics.TrackedClosures.Set(float64(p.tracking.Len()))
	p.metrics.BatchDuration.Observe(domain.Now().Sub(start).Seconds())

	p.logger.Info("batch processed",
		"uploaded_by", upload.UserName,
		"received", res.Received,
		"accepted", res.Accepted,
		"duplicates", res.Duplicates,
		"unassignable", res.Unassignable,
		"stale", res.Stale,
		"suppressed", res.Suppressed,
		"groups_notified", res.Notified,
	)
	return res, nil
}

// filterBatch applies dedup, region resolution, the age policy and tracking
// recording, in that order. Events without a location are enriched up front
// so resolution has text to match against; the enrichment is kept so the
// later pass does not repeat it.
func (p *Processor) filterBatch(ctx context.Context, upload domain.Upload, regions []domain.Region, res *BatchResult) ([]accepted, error) {
	now := domain.Now()
	var out []accepted

	for _, c := range upload.Closures {
		if c.ID == "" {
			p.logger.Warn("closure without id skipped", "uploaded_by", upload.UserName)
			continue
		}
		if p.tracking.IsTracked(c.ID) {
			res.Duplicates++
			p.metrics.ClosuresDropped.WithLabelValues("duplicate").Inc()
			continue
		}

		location := c.Location
		var enriched *domain.EnrichedClosure
		if location == "" {
			lat, lon := c.Centroid()
			e, err := p.enricher.Enrich(ctx, c, domain.EnvForPoint(regions, lat, lon))
			if err != nil {
				if errors.Is(err, descartes.ErrUnauthorized) {
					return nil, fmt.Errorf("enrich closure %s: %w", c.ID, err)
				}
				p.logger.Warn("enrichment failed, closure left unassigned", "closure", c.ID, "error", err)
				res.Unassignable++
				p.metrics.ClosuresDropped.WithLabelValues("unassignable").Inc()
				continue
			}
			enriched = &e
			location = e.Location
		}

		region, ok := domain.ResolveRegion(regions, location)
		if !ok {
			// Not recorded: a later batch may carry a resolvable location
			// for the same id.
			res.Unassignable++
			p.metrics.ClosuresDropped.WithLabelValues("unassignable").Inc()
			p.logger.Debug("closure matched no region", "closure", c.ID, "location", location)
			continue
		}

		if !domain.Eligible(c, region.MaxAgeDays(), now) {
			// Recorded so the same stale closure is not re-evaluated every
			// scan, but never notified.
			if err := p.tracking.Record(c.ID, region.Name, now); err != nil {
				p.logger.Error("tracking write failed", "closure", c.ID, "error", err)
			}
			res.Stale++
			p.metrics.ClosuresDropped.WithLabelValues("stale").Inc()
			continue
		}

		if err := p.tracking.Record(c.ID, region.Name, now); err != nil {
			p.logger.Error("tracking write failed", "closure", c.ID, "error", err)
		}
		out = append(out, accepted{event: c, region: region, enriched: enriched})
	}
	return out, nil
}

// publishAccepted mirrors the accepted closures onto the stream. Publish
// failures are logged and do not affect notification delivery.
func (p *Processor) publishAccepted(ctx context.Context, batch []accepted) {
	if p.publisher == nil || len(batch) == 0 {
		return
	}
	items := make([]kafka.StreamItem, len(batch))
	for i, a := range batch {
		items[i] = kafka.StreamItem{Event: a.event, Region: a.region.Name, Env: a.region.Env}
	}
	if err := p.publisher.PublishAccepted(ctx, items); err != nil {
		p.logger.Error("stream publish failed", "closures", len(items), "error", err)
	}
}

// enrichBatch enriches each accepted closure and verifies the assignment
// still holds afterwards. When the enriched location no longer matches the
// assigned region's keywords the closure is re-resolved against the others:
// a match moves the tracking entry and the notification to the new region,
// no match leaves the entry tracked but sends nothing.
func (p *Processor) enrichBatch(ctx context.Context, batch []accepted, regions []domain.Region, res *BatchResult) ([]domain.AssignedClosure, error) {
	var assigned []domain.AssignedClosure

	for _, a := range batch {
		enriched := a.enriched
		if enriched == nil {
			e, err := p.enricher.Enrich(ctx, a.event, a.region.Env)
			if err != nil {
				if errors.Is(err, descartes.ErrUnauthorized) {
					return nil, fmt.Errorf("enrich closure %s: %w", a.event.ID, err)
				}
				p.logger.Warn("enrichment incomplete, notifying with raw fields", "closure", a.event.ID, "error", err)
				e = domain.EnrichedClosure{
					ClosureEvent:  a.event,
					Reporter:      a.event.CreatedBy,
					Location:      a.event.Location,
					RoadTypeLabel: domain.RoadTypeLabel(a.event.RoadType),
				}
			}
			enriched = &e
		}

		region := a.region
		if !region.Matches(enriched.Location) {
			next, ok := domain.ResolveRegionExcluding(regions, enriched.Location, region.Name)
			if !ok {
				res.Suppressed++
				p.metrics.ClosuresDropped.WithLabelValues("suppressed").Inc()
				p.logger.Info("enriched location matches no region, notification suppressed",
					"closure", a.event.ID,
					"region", region.Name,
					"location", enriched.Location,
				)
				continue
			}
			if err := p.tracking.Reassign(a.event.ID, next.Name); err != nil {
				p.logger.Error("tracking reassign failed", "closure", a.event.ID, "error", err)
			}
			p.logger.Info("closure reassigned after enrichment",
				"closure", a.event.ID,
				"from", region.Name,
				"to", next.Name,
			)
			region = next
		}

		assigned = append(assigned, domain.AssignedClosure{Closure: *enriched, Region: region})
	}
	return assigned, nil
}
