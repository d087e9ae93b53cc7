package preview

import (
	"bytes"
	"context"
	"image"
	"image/color"
	"image/png"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"wms-tiler/internal/grid"
	"wms-tiler/internal/wms"
)

// pngTile encodes a solid-color PNG of the given size.
func pngTile(t *testing.T, w, h int, c color.Color) []byte {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.Set(x, y, c)
		}
	}
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, img))
	return buf.Bytes()
}

type stubFetcher struct {
	data   []byte
	failAt map[string]bool
	calls  int
}

func (f *stubFetcher) GetMap(ctx context.Context, req wms.TileRequest) ([]byte, error) {
	f.calls++
	if f.failAt[req.Bounds.String()] {
		return nil, &wms.RequestError{Layer: req.Layer, Status: 404}
	}
	return f.data, nil
}

func previewCells(t *testing.T) []grid.Cell {
	t.Helper()
	b := grid.BoundingBox{MinX: -30, MinY: -30, MaxX: 30, MaxY: 30}
	cells, err := grid.CenteredGrid(b, 3, 3)
	require.NoError(t, err)
	return cells
}

// TestDownload_WritesTilesAndSkipsFailures verifies failed tiles come back
// with OK unset while the rest are written to disk.
func TestDownload_WritesTilesAndSkipsFailures(t *testing.T) {
	cells := previewCells(t)
	fetcher := &stubFetcher{
		data:   pngTile(t, 8, 8, color.White),
		failAt: map[string]bool{cells[4].Bounds.String(): true},
	}

	dir := t.TempDir()
	tiles, err := Download(context.Background(), fetcher, Params{
		Layer: "wac", CRS: "EPSG:4326", Format: "image/png",
		TileWidth: 8, TileHeight: 8, OutputDir: dir,
	}, cells)
	require.NoError(t, err)
	require.Len(t, tiles, 9)
	assert.Equal(t, 9, fetcher.calls, "every cell attempted")

	okCount := 0
	for i, tile := range tiles {
		if i == 4 {
			assert.False(t, tile.OK)
			assert.Empty(t, tile.Path)
			continue
		}
		assert.True(t, tile.OK)
		_, statErr := os.Stat(tile.Path)
		assert.NoError(t, statErr)
		okCount++
	}
	assert.Equal(t, 8, okCount)
}

// TestDownload_Cancellation stops between tiles.
func TestDownload_Cancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	fetcher := &stubFetcher{data: pngTile(t, 4, 4, color.White)}
	_, err := Download(ctx, fetcher, Params{
		Layer: "wac", CRS: "EPSG:4326", Format: "image/png",
		TileWidth: 4, TileHeight: 4, OutputDir: t.TempDir(),
	}, previewCells(t))
	require.ErrorIs(t, err, context.Canceled)
	assert.Zero(t, fetcher.calls)
}

// TestWriteMosaicHTML_OneOverlayPerTile verifies the page holds an image
// overlay per successful tile and covers the combined bounds.
func TestWriteMosaicHTML_OneOverlayPerTile(t *testing.T) {
	tiles := []Tile{
		{Cell: grid.Cell{Col: 0, Row: 0, Bounds: grid.BoundingBox{MinX: 0, MinY: 5, MaxX: 5, MaxY: 10}}, Path: "a/tile_0_0.png", OK: true},
		{Cell: grid.Cell{Col: 1, Row: 0, Bounds: grid.BoundingBox{MinX: 5, MinY: 5, MaxX: 10, MaxY: 10}}, Path: "a/tile_1_0.png", OK: true},
		{Cell: grid.Cell{Col: 0, Row: 1, Bounds: grid.BoundingBox{MinX: 0, MinY: 0, MaxX: 5, MaxY: 5}}, OK: false},
	}

	path := filepath.Join(t.TempDir(), "mosaic.html")
	require.NoError(t, WriteMosaicHTML(path, "wac preview", tiles))

	html, err := os.ReadFile(path)
	require.NoError(t, err)
	s := string(html)

	assert.Equal(t, 2, bytes.Count(html, []byte("L.imageOverlay(")), "one overlay per successful tile")
	assert.Contains(t, s, "tile_0_0.png")
	assert.Contains(t, s, "tile_1_0.png")
	assert.Contains(t, s, "wac preview")
	assert.Contains(t, s, "L.CRS.EPSG4326")
	assert.Contains(t, s, "fitBounds")
}

// TestWriteMosaicHTML_NothingToPreview errors when every tile failed.
func TestWriteMosaicHTML_NothingToPreview(t *testing.T) {
	tiles := []Tile{{OK: false}, {OK: false}}
	err := WriteMosaicHTML(filepath.Join(t.TempDir(), "mosaic.html"), "empty", tiles)
	assert.Error(t, err)
}

// TestStitch_Dimensions verifies the mosaic spans the tile grid and scales
// mixed-size tiles to the requested cell size.
func TestStitch_Dimensions(t *testing.T) {
	tiles := []Tile{
		{Cell: grid.Cell{Col: 2, Row: 5}, Data: pngTile(t, 8, 8, color.White), OK: true},
		{Cell: grid.Cell{Col: 3, Row: 5}, Data: pngTile(t, 16, 16, color.Black), OK: true},
		{Cell: grid.Cell{Col: 2, Row: 6}, Data: pngTile(t, 8, 8, color.White), OK: true},
	}

	img, err := Stitch(tiles, 10, 10)
	require.NoError(t, err)

	bounds := img.Bounds()
	assert.Equal(t, 20, bounds.Dx(), "2 columns x 10px")
	assert.Equal(t, 20, bounds.Dy(), "2 rows x 10px")

	// The black 16x16 tile was scaled into the top-right 10x10 cell.
	r, g, b, _ := img.At(15, 5).RGBA()
	assert.Zero(t, r)
	assert.Zero(t, g)
	assert.Zero(t, b)
}

// TestStitch_NoDecodableTiles errors instead of returning a blank image.
func TestStitch_NoDecodableTiles(t *testing.T) {
	_, err := Stitch(nil, 10, 10)
	assert.Error(t, err)

	tiles := []Tile{{Cell: grid.Cell{}, Data: []byte("not an image"), OK: true}}
	_, err = Stitch(tiles, 10, 10)
	assert.Error(t, err)
}

// TestSavePNG_RoundTrip writes and re-decodes the mosaic.
func TestSavePNG_RoundTrip(t *testing.T) {
	img := image.NewRGBA(image.Rect(0, 0, 4, 4))
	path := filepath.Join(t.TempDir(), "mosaic.png")
	require.NoError(t, SavePNG(img, path))

	f, err := os.Open(path)
	require.NoError(t, err)
	defer f.Close()
	decoded, err := png.Decode(f)
	require.NoError(t, err)
	assert.Equal(t, img.Bounds(), decoded.Bounds())
}
