package domain_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/couchcryptid/closure-relay-service/internal/domain"
)

func TestCentroidPrefersDirectCoordinates(t *testing.T) {
	c := domain.ClosureEvent{
		Lat:      39.5,
		Lon:      -89.5,
		Geometry: [][2]float64{{0, 0}, {10, 10}},
	}
	lat, lon := c.Centroid()
	assert.Equal(t, 39.5, lat)
	assert.Equal(t, -89.5, lon)
}

func TestCentroidAveragesGeometry(t *testing.T) {
	c := domain.ClosureEvent{
		Geometry: [][2]float64{{-89.0, 39.0}, {-90.0, 40.0}},
	}
	lat, lon := c.Centroid()
	assert.InDelta(t, 39.5, lat, 1e-9)
	assert.InDelta(t, -89.5, lon, 1e-9)
}

func TestCentroidEmpty(t *testing.T) {
	lat, lon := domain.ClosureEvent{}.Centroid()
	assert.Zero(t, lat)
	assert.Zero(t, lon)
}

func TestDirection(t *testing.T) {
	assert.Equal(t, "A➜B", domain.ClosureEvent{IsForward: true}.Direction())
	assert.Equal(t, "B➜A", domain.ClosureEvent{}.Direction())
}

func TestDisplayStatus(t *testing.T) {
	assert.Equal(t, "New", domain.ClosureEvent{}.DisplayStatus())
	assert.Equal(t, "Past", domain.ClosureEvent{Status: "Finished"}.DisplayStatus())
	assert.Equal(t, "Past", domain.ClosureEvent{Status: "Finished-Early"}.DisplayStatus())
	assert.Equal(t, "Active", domain.ClosureEvent{Status: "Active"}.DisplayStatus())
}

func TestDisplayDuration(t *testing.T) {
	e := domain.EnrichedClosure{}
	assert.Equal(t, "Unknown", e.DisplayDuration())

	e.Duration = "2 days"
	assert.Equal(t, "2 days", e.DisplayDuration())
}

func TestCreatedAt(t *testing.T) {
	ts := time.Date(2026, time.January, 2, 3, 4, 5, 0, time.UTC)
	c := domain.ClosureEvent{CreatedOn: ts.UnixMilli()}
	assert.Equal(t, ts, c.CreatedAt())
}
