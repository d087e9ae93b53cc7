package naming

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

// TestSanitizeComponent strips or replaces path-hostile characters.
func TestSanitizeComponent(t *testing.T) {
	assert.Equal(t, "EPSG4326", SanitizeComponent("EPSG:4326"))
	assert.Equal(t, "image_png", SanitizeComponent("image/png"))
	assert.Equal(t, "image_jpegmode=24bit", SanitizeComponent("image/jpeg; mode=24bit"))
	assert.Equal(t, "plain", SanitizeComponent("plain"))
}

// TestFormatExtension derives extensions from MIME formats.
func TestFormatExtension(t *testing.T) {
	assert.Equal(t, "png", FormatExtension("image/png"))
	assert.Equal(t, "jpeg", FormatExtension("image/jpeg"))
	assert.Equal(t, "jpeg", FormatExtension("image/jpeg; mode=24bit"))
	assert.Equal(t, "tiff", FormatExtension("image/tiff"))
	assert.Equal(t, "png", FormatExtension(""))
}

// TestDatasetDirName follows {layer}_zoom_{z}_format_{fmt}_projection_{crs}.
func TestDatasetDirName(t *testing.T) {
	got := DatasetDirName("luna_wac_global", 5, "image/png", "EPSG:4326")
	assert.Equal(t, "luna_wac_global_zoom_5_format_png_projection_EPSG4326", got)
}

// TestMetadataCSVName follows {layer}_zoom_{z}_tiles_info.csv.
func TestMetadataCSVName(t *testing.T) {
	assert.Equal(t, "luna_wac_global_zoom_5_tiles_info.csv", MetadataCSVName("luna_wac_global", 5))
}

// TestTileFilename is deterministic per grid position.
func TestTileFilename(t *testing.T) {
	assert.Equal(t, "tile_3_7.png", TileFilename(3, 7, "image/png"))
	assert.Equal(t, "tile_0_0.jpeg", TileFilename(0, 0, "image/jpeg"))
}

// TestSanitizeCoordinate uses hemisphere letters and 'p' for the decimal
// point.
func TestSanitizeCoordinate(t *testing.T) {
	assert.Equal(t, "12p5000N", SanitizeCoordinate(12.5, true))
	assert.Equal(t, "12p5000S", SanitizeCoordinate(-12.5, true))
	assert.Equal(t, "120p2500E", SanitizeCoordinate(120.25, false))
	assert.Equal(t, "120p2500W", SanitizeCoordinate(-120.25, false))
	assert.Equal(t, "0p0000N", SanitizeCoordinate(0, true))
}

// TestQuadkey_KnownTiles checks quadkeys against hand-computed tile paths.
func TestQuadkey_KnownTiles(t *testing.T) {
	// Zoom 0 has a single tile and an empty quadkey.
	assert.Equal(t, "", Quadkey(-10, -10, 10, 10, 0))

	// A box centered slightly north-east of the origin is in tile (1,0) at
	// zoom 1, quadkey digit 1.
	assert.Equal(t, "1", Quadkey(0.5, 0.5, 1.5, 1.5, 1))

	// South-west of the origin is tile (0,1), digit 2.
	assert.Equal(t, "2", Quadkey(-1.5, -1.5, -0.5, -0.5, 1))

	// Quadkey length equals the zoom level.
	assert.Len(t, Quadkey(30, 40, 31, 41, 8), 8)
}

// TestMosaicFilename combines layer, quadkey, zoom and sanitized bbox.
func TestMosaicFilename(t *testing.T) {
	got := MosaicFilename("wac", -10, -5, 10, 5, 0, "png")
	assert.Equal(t, "wac__z0_5p0000S-5p0000N_10p0000W-10p0000E.png", got)
}
