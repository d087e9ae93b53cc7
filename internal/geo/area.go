// Package geo computes surface areas of geographic bounding boxes on a
// spherical body. Planetary WMS servers cover more than Earth, so the radius
// is configurable; the default matches the Moon, the body the default
// endpoint serves.
package geo

import (
	"fmt"
	"math"
	"strings"

	"wms-tiler/internal/grid"
)

// Mean radii in kilometers.
const (
	MoonRadiusKm  = 1737.4
	EarthRadiusKm = 6371.0088
	MarsRadiusKm  = 3389.5
)

// RadiusForBody maps a body name to its mean radius. Unknown names fall back
// to the Moon, matching the source data's default.
func RadiusForBody(name string) float64 {
	switch strings.ToLower(name) {
	case "earth":
		return EarthRadiusKm
	case "mars":
		return MarsRadiusKm
	case "moon", "":
		return MoonRadiusKm
	default:
		return MoonRadiusKm
	}
}

// QuadAreaKm2 returns the surface area in square kilometers of a lat/lon
// aligned bounding box on a sphere of the given radius. For a graticule
// quad the spherical area is exact:
//
//	A = R^2 * (lon2 - lon1) * (sin lat2 - sin lat1)
//
// with longitudes in radians. An invalid result (NaN or non-positive) is an
// error, mirroring the validation the tile metadata requires.
func QuadAreaKm2(b grid.BoundingBox, radiusKm float64) (float64, error) {
	if radiusKm <= 0 {
		return 0, fmt.Errorf("radius must be positive, got %f", radiusKm)
	}
	if err := b.ValidateGeographic(); err != nil {
		return 0, err
	}

	dLon := (b.MaxX - b.MinX) * math.Pi / 180
	sinBand := math.Sin(b.MaxY*math.Pi/180) - math.Sin(b.MinY*math.Pi/180)

	area := radiusKm * radiusKm * dLon * sinBand
	if math.IsNaN(area) || area <= 0 {
		return 0, fmt.Errorf("calculated area is not valid: %f", area)
	}
	return area, nil
}
