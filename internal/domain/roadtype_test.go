package domain_test

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/couchcryptid/closure-relay-service/internal/domain"
)

func TestRoadTypeLabel(t *testing.T) {
	assert.Equal(t, "Street", domain.RoadTypeLabel(1))
	assert.Equal(t, "Major Highway", domain.RoadTypeLabel(6))
	assert.Equal(t, "Private Road", domain.RoadTypeLabel(17))
	assert.Equal(t, "Unknown", domain.RoadTypeLabel(0))
	assert.Equal(t, "Unknown", domain.RoadTypeLabel(99))
}

func TestRoadTypeColor(t *testing.T) {
	assert.Equal(t, 0xAF6ABA, domain.RoadTypeColor(3))
	assert.Equal(t, domain.DefaultRoadColor, domain.RoadTypeColor(99))
}
