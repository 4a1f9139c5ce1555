package domain

// AssignedClosure pairs an enriched closure with its resolved region.
type AssignedClosure struct {
	Closure EnrichedClosure
	Region  Region
}

// GroupClosures buckets closures by (segment, region) so a burst of
// near-duplicate reports on one road segment collapses into a single
// aggregate notification. Closures whose region disables grouping become
// singleton groups immediately.
//
// Groups appear in first-appearance order and members keep batch order, so
// dispatch order is stable for a given batch.
func GroupClosures(assigned []AssignedClosure) []NotificationGroup {
	type key struct {
		segment string
		region  string
	}

	buckets := make(map[key]*NotificationGroup)
	var groups []*NotificationGroup

	for _, a := range assigned {
		if !a.Region.GroupingEnabled() {
			groups = append(groups, &NotificationGroup{
				Region:   a.Region,
				Closures: []EnrichedClosure{a.Closure},
			})
			continue
		}

		k := key{segment: a.Closure.SegmentID, region: a.Region.Name}
		g, ok := buckets[k]
		if !ok {
			g = &NotificationGroup{Region: a.Region}
			buckets[k] = g
			groups = append(groups, g)
		}
		g.Closures = append(g.Closures, a.Closure)
	}

	out := make([]NotificationGroup, 0, len(groups))
	for _, g := range groups {
		out = append(out, *g)
	}
	return out
}
