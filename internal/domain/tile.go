package domain

import (
	"math"
	"strconv"
	"strings"
)

// PreviewZoom is the zoom level used for notification thumbnail tiles.
const PreviewZoom = 17

// urlHashFactor is the fractional part of the golden ratio, (√5−1)/2. The
// tile server picker multiplies character codes by it and keeps only the
// fractional part, which spreads tile coordinates evenly across servers
// without shared state.
var urlHashFactor = (math.Sqrt(5) - 1) / 2

// LonToTileX converts a longitude to a slippy-map tile column at zoom.
func LonToTileX(lon float64, zoom int) string {
	return strconv.Itoa(int(math.Floor((lon + 180) / 360 * math.Exp2(float64(zoom)))))
}

// LatToTileY converts a latitude to a slippy-map tile row at zoom.
func LatToTileY(lat float64, zoom int) string {
	rad := lat * math.Pi / 180
	y := (1 - math.Log(math.Tan(rad)+1/math.Cos(rad))/math.Pi) / 2 * math.Exp2(float64(zoom))
	return strconv.Itoa(int(math.Floor(y)))
}

// PickTileServer deterministically selects a tile host for a tile coordinate
// pair and fills in the URL template. Repeated previews of the same location
// hit the same host, so the tile stays cached downstream.
//
// Templates contain ${x}, ${y}, ${z} and ${env} placeholders. Env tags other
// than "row" and "il" map to the default "na" namespace.
func PickTileServer(x, y string, servers []string, env string) string {
	if len(servers) == 0 {
		return ""
	}

	n := 1.0
	for _, ch := range x + y {
		n *= float64(ch) * urlHashFactor
		n -= math.Floor(n)
	}
	idx := int(math.Floor(n * float64(len(servers))))
	if idx >= len(servers) {
		idx = len(servers) - 1
	}

	if env != "row" && env != "il" {
		env = "na"
	}

	url := servers[idx]
	url = strings.Replace(url, "${x}", x, 1)
	url = strings.Replace(url, "${y}", y, 1)
	url = strings.Replace(url, "${z}", strconv.Itoa(PreviewZoom), 1)
	url = strings.Replace(url, "${env}", env, 1)
	return url
}
