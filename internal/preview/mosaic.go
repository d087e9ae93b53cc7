// Package preview fetches a small centered tile grid and renders it as an
// interactive HTML mosaic plus a stitched raster, so a user can sanity-check
// layer, CRS and bounding box before committing to a full download.
package preview

import (
	"context"
	"fmt"
	"html/template"
	"log"
	"os"
	"path/filepath"

	"wms-tiler/internal/downloads"
	"wms-tiler/internal/grid"
	"wms-tiler/internal/utils/naming"
	"wms-tiler/internal/wms"
)

// Tile is one preview tile: its grid cell, where it was written, and whether
// the fetch succeeded.
type Tile struct {
	Cell grid.Cell
	Path string
	Data []byte
	OK   bool
}

// Params configures a preview fetch.
type Params struct {
	Layer      string
	CRS        string
	Format     string
	TileWidth  int
	TileHeight int
	OutputDir  string
}

// Download fetches the given cells one at a time, writing each image under
// the output directory. A failed tile is logged and skipped; the mosaic is
// built from whatever arrived.
func Download(ctx context.Context, fetcher downloads.TileFetcher, p Params, cells []grid.Cell) ([]Tile, error) {
	if err := os.MkdirAll(p.OutputDir, 0755); err != nil {
		return nil, &wms.WriteError{Path: p.OutputDir, Err: err}
	}

	tiles := make([]Tile, 0, len(cells))
	for _, cell := range cells {
		select {
		case <-ctx.Done():
			return tiles, ctx.Err()
		default:
		}

		tile := Tile{Cell: cell}
		data, err := fetcher.GetMap(ctx, wms.TileRequest{
			Layer:  p.Layer,
			CRS:    p.CRS,
			Bounds: cell.Bounds,
			Width:  p.TileWidth,
			Height: p.TileHeight,
			Format: p.Format,
		})
		if err != nil {
			log.Printf("[preview] tile %d,%d failed: %v", cell.Col, cell.Row, err)
			tiles = append(tiles, tile)
			continue
		}

		tile.Path = filepath.Join(p.OutputDir, naming.TileFilename(cell.Col, cell.Row, p.Format))
		if err := os.WriteFile(tile.Path, data, 0644); err != nil {
			log.Printf("[preview] failed to save tile %d,%d: %v", cell.Col, cell.Row, err)
			tile.Path = ""
			tiles = append(tiles, tile)
			continue
		}

		tile.Data = data
		tile.OK = true
		tiles = append(tiles, tile)
	}

	return tiles, nil
}

var mosaicTemplate = template.Must(template.New("mosaic").Parse(`<!DOCTYPE html>
<html>
<head>
<meta charset="utf-8">
<title>{{.Title}}</title>
<link rel="stylesheet" href="https://unpkg.com/leaflet@1.9.4/dist/leaflet.css">
<script src="https://unpkg.com/leaflet@1.9.4/dist/leaflet.js"></script>
<style>html, body, #map { height: 100%; margin: 0; }</style>
</head>
<body>
<div id="map"></div>
<script>
var map = L.map('map', { crs: L.CRS.EPSG4326 });
{{range .Overlays}}L.imageOverlay({{.File}}, [[{{.South}}, {{.West}}], [{{.North}}, {{.East}}]], { opacity: 1, interactive: true }).addTo(map);
{{end}}map.fitBounds([[{{.South}}, {{.West}}], [{{.North}}, {{.East}}]]);
map.on('click', function(e) {
  L.popup().setLatLng(e.latlng).setContent(e.latlng.lat.toFixed(5) + ', ' + e.latlng.lng.toFixed(5)).openOn(map);
});
</script>
</body>
</html>
`))

type overlayData struct {
	File                     string
	South, West, North, East float64
}

type mosaicData struct {
	Title                    string
	Overlays                 []overlayData
	South, West, North, East float64
}

// WriteMosaicHTML renders the fetched tiles as a Leaflet page with one image
// overlay per successful tile, written next to the tiles so relative links
// resolve.
func WriteMosaicHTML(path, title string, tiles []Tile) error {
	data := mosaicData{Title: title}

	first := true
	for _, t := range tiles {
		if !t.OK {
			continue
		}
		b := t.Cell.Bounds
		data.Overlays = append(data.Overlays, overlayData{
			File:  filepath.Base(t.Path),
			South: b.MinY,
			West:  b.MinX,
			North: b.MaxY,
			East:  b.MaxX,
		})
		if first {
			data.South, data.West, data.North, data.East = b.MinY, b.MinX, b.MaxY, b.MaxX
			first = false
			continue
		}
		if b.MinY < data.South {
			data.South = b.MinY
		}
		if b.MinX < data.West {
			data.West = b.MinX
		}
		if b.MaxY > data.North {
			data.North = b.MaxY
		}
		if b.MaxX > data.East {
			data.East = b.MaxX
		}
	}

	if len(data.Overlays) == 0 {
		return fmt.Errorf("no tiles downloaded successfully, nothing to preview")
	}

	f, err := os.Create(path)
	if err != nil {
		return &wms.WriteError{Path: path, Err: err}
	}
	defer f.Close()

	if err := mosaicTemplate.Execute(f, data); err != nil {
		return &wms.WriteError{Path: path, Err: err}
	}
	return nil
}
