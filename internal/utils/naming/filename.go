package naming

import (
	"fmt"
	"strings"
)

// SanitizeComponent makes a string safe for use as a path component.
// CRS identifiers ("EPSG:4326") and MIME formats ("image/png; mode=8bit")
// both need this before they can appear in directory names.
func SanitizeComponent(s string) string {
	replacer := strings.NewReplacer(":", "", "/", "_", ";", "", " ", "", "\\", "_")
	return replacer.Replace(s)
}

// FormatExtension derives a file extension from a MIME image format,
// e.g. "image/png" -> "png", "image/jpeg; mode=24bit" -> "jpeg".
func FormatExtension(mimeFormat string) string {
	ext := mimeFormat
	if idx := strings.LastIndex(ext, "/"); idx != -1 {
		ext = ext[idx+1:]
	}
	if idx := strings.Index(ext, ";"); idx != -1 {
		ext = ext[:idx]
	}
	ext = strings.ToLower(strings.TrimSpace(ext))
	if ext == "" {
		ext = "png"
	}
	return ext
}

// DatasetDirName builds the directory name a download run writes into.
// Format: {layer}_zoom_{z}_format_{fmt}_projection_{crs}
func DatasetDirName(layer string, zoom int, format, crs string) string {
	return fmt.Sprintf("%s_zoom_%d_format_%s_projection_%s",
		SanitizeComponent(layer), zoom, SanitizeComponent(FormatExtension(format)), SanitizeComponent(crs))
}

// MetadataCSVName builds the metadata file name for a download run.
// Format: {layer}_zoom_{z}_tiles_info.csv
func MetadataCSVName(layer string, zoom int) string {
	return fmt.Sprintf("%s_zoom_%d_tiles_info.csv", SanitizeComponent(layer), zoom)
}

// TileFilename builds the deterministic per-tile file name from the tile's
// grid position.
func TileFilename(col, row int, format string) string {
	return fmt.Sprintf("tile_%d_%d.%s", col, row, FormatExtension(format))
}

// MosaicFilename builds a stitched mosaic file name with a quadkey location
// component. Format: {layer}_{quadkey}_z{zoom}_{bbox}.{ext}
func MosaicFilename(layer string, minLon, minLat, maxLon, maxLat float64, zoom int, ext string) string {
	quadkey := Quadkey(minLon, minLat, maxLon, maxLat, zoom)
	bboxStr := fmt.Sprintf("%s-%s_%s-%s",
		SanitizeCoordinate(minLat, true),
		SanitizeCoordinate(maxLat, true),
		SanitizeCoordinate(minLon, false),
		SanitizeCoordinate(maxLon, false))
	return fmt.Sprintf("%s_%s_z%d_%s.%s", SanitizeComponent(layer), quadkey, zoom, bboxStr, ext)
}
