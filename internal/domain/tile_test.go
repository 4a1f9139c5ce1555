package domain_test

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/couchcryptid/closure-relay-service/internal/domain"
)

var tileServers = []string{
	"https://tiles-1.example.com/tiles/${env}/${z}/${x}/${y}.png",
	"https://tiles-2.example.com/tiles/${env}/${z}/${x}/${y}.png",
	"https://tiles-3.example.com/tiles/${env}/${z}/${x}/${y}.png",
	"https://tiles-4.example.com/tiles/${env}/${z}/${x}/${y}.png",
}

func TestTileCoordinateConversion(t *testing.T) {
	// At zoom 1 the world is a 2x2 grid; the origin lands in column 1, row 1.
	assert.Equal(t, "1", domain.LonToTileX(0, 1))
	assert.Equal(t, "1", domain.LatToTileY(0, 1))

	assert.Equal(t, "0", domain.LonToTileX(-179.9, 1))
	assert.Equal(t, "0", domain.LatToTileY(85, 1))
}

func TestPickTileServerDeterministic(t *testing.T) {
	first := domain.PickTileServer("5", "9", tileServers, "na")
	second := domain.PickTileServer("5", "9", tileServers, "na")
	assert.Equal(t, first, second)
}

func TestPickTileServerFillsTemplate(t *testing.T) {
	url := domain.PickTileServer("41357", "49567", tileServers, "na")

	require.NotEmpty(t, url)
	assert.Contains(t, url, "/tiles/na/17/41357/49567.png")
	assert.NotContains(t, url, "${")

	served := false
	for _, s := range tileServers {
		if strings.HasPrefix(url, strings.SplitN(s, "${", 2)[0]) {
			served = true
		}
	}
	assert.True(t, served, "url %s must come from the server list", url)
}

func TestPickTileServerEnvNormalization(t *testing.T) {
	assert.Contains(t, domain.PickTileServer("1", "2", tileServers, "row"), "/tiles/row/")
	assert.Contains(t, domain.PickTileServer("1", "2", tileServers, "il"), "/tiles/il/")
	assert.Contains(t, domain.PickTileServer("1", "2", tileServers, "usa"), "/tiles/na/")
	assert.Contains(t, domain.PickTileServer("1", "2", tileServers, ""), "/tiles/na/")
}

func TestPickTileServerNoServers(t *testing.T) {
	assert.Empty(t, domain.PickTileServer("1", "2", nil, "na"))
}
