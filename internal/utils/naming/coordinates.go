package naming

import (
	"fmt"
	"math"
	"strings"
)

// Quadkey generates the Bing-style quadkey for the tile containing the
// center of a geographic bounding box at the given zoom. Used to give mosaic
// files a compact, sortable location component.
func Quadkey(minLon, minLat, maxLon, maxLat float64, zoom int) string {
	centerLat := (minLat + maxLat) / 2
	centerLon := (minLon + maxLon) / 2

	n := math.Pow(2, float64(zoom))
	x := int((centerLon + 180.0) / 360.0 * n)
	y := int((1.0 - math.Log(math.Tan(centerLat*math.Pi/180.0)+1.0/math.Cos(centerLat*math.Pi/180.0))/math.Pi) / 2.0 * n)

	var quadkey strings.Builder
	for i := zoom; i > 0; i-- {
		digit := 0
		mask := 1 << (i - 1)
		if (x & mask) != 0 {
			digit++
		}
		if (y & mask) != 0 {
			digit += 2
		}
		quadkey.WriteByte(byte('0' + digit))
	}
	return quadkey.String()
}

// SanitizeCoordinate formats a coordinate for use in filenames: hemisphere
// letter instead of a sign, 'p' instead of the decimal point for Windows
// compatibility.
func SanitizeCoordinate(coord float64, isLat bool) string {
	var dir string
	if isLat {
		dir = "N"
		if coord < 0 {
			dir = "S"
		}
	} else {
		dir = "E"
		if coord < 0 {
			dir = "W"
		}
	}
	coordStr := fmt.Sprintf("%.4f", math.Abs(coord))
	coordStr = strings.Replace(coordStr, ".", "p", 1)
	return coordStr + dir
}
