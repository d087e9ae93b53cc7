package grid

import (
	"fmt"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/maptile"
)

// Web Mercator latitude limit; tiles do not exist beyond it.
const (
	MinMercatorLat = -85.051129
	MaxMercatorLat = 85.051129
	MaxTileZoom    = 22
)

// CoveringTiles returns the standard XYZ tiles covering a geographic
// bounding box at the given zoom, row-major from the north-west corner.
func CoveringTiles(b BoundingBox, zoom int) ([]maptile.Tile, error) {
	if zoom < 0 || zoom > MaxTileZoom {
		return nil, fmt.Errorf("zoom %d out of range [0, %d]", zoom, MaxTileZoom)
	}
	if err := b.ValidateGeographic(); err != nil {
		return nil, err
	}

	clipped := b
	if clipped.MinY < MinMercatorLat {
		clipped.MinY = MinMercatorLat
	}
	if clipped.MaxY > MaxMercatorLat {
		clipped.MaxY = MaxMercatorLat
	}

	z := maptile.Zoom(zoom)
	nw := maptile.At(orb.Point{clipped.MinX, clipped.MaxY}, z)
	se := maptile.At(orb.Point{clipped.MaxX, clipped.MinY}, z)

	var tiles []maptile.Tile
	for y := nw.Y; y <= se.Y; y++ {
		for x := nw.X; x <= se.X; x++ {
			tiles = append(tiles, maptile.New(x, y, z))
		}
	}

	return tiles, nil
}

// TileGeoBounds returns the geographic bounds of an XYZ tile as a
// BoundingBox (lon/lat).
func TileGeoBounds(t maptile.Tile) BoundingBox {
	bound := t.Bound()
	return BoundingBox{
		MinX: bound.Min[0],
		MinY: bound.Min[1],
		MaxX: bound.Max[0],
		MaxY: bound.Max[1],
	}
}

// EstimateTileCount reports how many XYZ tiles cover the box at a zoom
// without materializing them.
func EstimateTileCount(b BoundingBox, zoom int) (int, error) {
	tiles, err := CoveringTiles(b, zoom)
	if err != nil {
		return 0, err
	}
	return len(tiles), nil
}
