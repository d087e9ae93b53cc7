package preview

import (
	"bytes"
	"fmt"
	"image"
	_ "image/jpeg"
	"image/png"
	"os"

	"golang.org/x/image/draw"

	"wms-tiler/internal/wms"
)

// Stitch composes the fetched tiles into a single image. Tiles are placed by
// grid position; each is scaled to tileW x tileH so mixed-size responses
// still line up. Returns an error when nothing decoded.
func Stitch(tiles []Tile, tileW, tileH int) (image.Image, error) {
	minCol, minRow := 0, 0
	maxCol, maxRow := 0, 0
	first := true
	for _, t := range tiles {
		if !t.OK {
			continue
		}
		if first {
			minCol, maxCol = t.Cell.Col, t.Cell.Col
			minRow, maxRow = t.Cell.Row, t.Cell.Row
			first = false
			continue
		}
		if t.Cell.Col < minCol {
			minCol = t.Cell.Col
		}
		if t.Cell.Col > maxCol {
			maxCol = t.Cell.Col
		}
		if t.Cell.Row < minRow {
			minRow = t.Cell.Row
		}
		if t.Cell.Row > maxRow {
			maxRow = t.Cell.Row
		}
	}
	if first {
		return nil, fmt.Errorf("no tiles to stitch")
	}

	cols := maxCol - minCol + 1
	rows := maxRow - minRow + 1
	output := image.NewRGBA(image.Rect(0, 0, cols*tileW, rows*tileH))

	stitched := 0
	for _, t := range tiles {
		if !t.OK {
			continue
		}
		img, _, err := image.Decode(bytes.NewReader(t.Data))
		if err != nil {
			continue
		}

		xOff := (t.Cell.Col - minCol) * tileW
		yOff := (t.Cell.Row - minRow) * tileH
		dest := image.Rect(xOff, yOff, xOff+tileW, yOff+tileH)
		draw.ApproxBiLinear.Scale(output, dest, img, img.Bounds(), draw.Src, nil)
		stitched++
	}

	if stitched == 0 {
		return nil, fmt.Errorf("no tiles decoded successfully")
	}
	return output, nil
}

// SavePNG writes the stitched mosaic as a PNG file.
func SavePNG(img image.Image, path string) error {
	f, err := os.Create(path)
	if err != nil {
		return &wms.WriteError{Path: path, Err: err}
	}
	defer f.Close()

	if err := png.Encode(f, img); err != nil {
		return &wms.WriteError{Path: path, Err: err}
	}
	return nil
}
