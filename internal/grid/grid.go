package grid

import (
	"fmt"
)

// BoundingBox represents a rectangular extent in an arbitrary coordinate
// reference system. X is the east-west axis, Y the north-south axis.
type BoundingBox struct {
	MinX float64 `json:"minX"`
	MinY float64 `json:"minY"`
	MaxX float64 `json:"maxX"`
	MaxY float64 `json:"maxY"`
}

// Validate checks that the box has positive extent on both axes.
func (b BoundingBox) Validate() error {
	if b.MinX >= b.MaxX {
		return fmt.Errorf("minX (%f) must be less than maxX (%f)", b.MinX, b.MaxX)
	}
	if b.MinY >= b.MaxY {
		return fmt.Errorf("minY (%f) must be less than maxY (%f)", b.MinY, b.MaxY)
	}
	return nil
}

// ValidateGeographic additionally checks WGS84 lat/lon ranges. Only
// meaningful when the box is expressed in geographic coordinates.
func (b BoundingBox) ValidateGeographic() error {
	if err := b.Validate(); err != nil {
		return err
	}
	if b.MinY < -90 || b.MaxY > 90 {
		return fmt.Errorf("latitude out of range [-90, 90]: minY=%f, maxY=%f", b.MinY, b.MaxY)
	}
	if b.MinX < -180 || b.MaxX > 180 {
		return fmt.Errorf("longitude out of range [-180, 180]: minX=%f, maxX=%f", b.MinX, b.MaxX)
	}
	return nil
}

// Width returns the extent along the X axis.
func (b BoundingBox) Width() float64 {
	return b.MaxX - b.MinX
}

// Height returns the extent along the Y axis.
func (b BoundingBox) Height() float64 {
	return b.MaxY - b.MinY
}

// Center returns the midpoint of the box.
func (b BoundingBox) Center() (x, y float64) {
	return (b.MinX + b.MaxX) / 2, (b.MinY + b.MaxY) / 2
}

// String formats the box as "minx,miny,maxx,maxy", the WMS bbox parameter
// order for lon/lat axis ordering.
func (b BoundingBox) String() string {
	return fmt.Sprintf("%f,%f,%f,%f", b.MinX, b.MinY, b.MaxX, b.MaxY)
}

// Cell is one sub-box of a subdivided bounding box together with its grid
// position. Col counts from the west edge, Row from the north edge, matching
// tile row ordering.
type Cell struct {
	Col    int
	Row    int
	Bounds BoundingBox
}

// Subdivide splits the box into exactly cols x rows cells in row-major order
// (north to south, west to east). Cells tile the box with no gaps and
// zero-area pairwise overlaps. Non-positive counts are rejected.
func Subdivide(b BoundingBox, cols, rows int) ([]Cell, error) {
	if cols <= 0 || rows <= 0 {
		return nil, fmt.Errorf("grid dimensions must be positive, got %dx%d", cols, rows)
	}
	if err := b.Validate(); err != nil {
		return nil, err
	}

	cellW := b.Width() / float64(cols)
	cellH := b.Height() / float64(rows)

	cells := make([]Cell, 0, cols*rows)
	for row := 0; row < rows; row++ {
		for col := 0; col < cols; col++ {
			// Edges computed from the box corners rather than accumulated,
			// so adjacent cells share exact boundaries.
			minX := b.MinX + float64(col)*cellW
			maxX := b.MinX + float64(col+1)*cellW
			maxY := b.MaxY - float64(row)*cellH
			minY := b.MaxY - float64(row+1)*cellH
			if col == cols-1 {
				maxX = b.MaxX
			}
			if row == rows-1 {
				minY = b.MinY
			}
			cells = append(cells, Cell{
				Col:    col,
				Row:    row,
				Bounds: BoundingBox{MinX: minX, MinY: minY, MaxX: maxX, MaxY: maxY},
			})
		}
	}

	return cells, nil
}

// SubdivideBySize splits the box into cells of a fixed extent. The last row
// and column are clipped to the remaining extent when the box does not divide
// evenly; nothing is padded past the box edges.
func SubdivideBySize(b BoundingBox, cellW, cellH float64) ([]Cell, error) {
	if cellW <= 0 || cellH <= 0 {
		return nil, fmt.Errorf("cell size must be positive, got %fx%f", cellW, cellH)
	}
	if err := b.Validate(); err != nil {
		return nil, err
	}

	cols := int(b.Width() / cellW)
	if b.MinX+float64(cols)*cellW < b.MaxX {
		cols++
	}
	rows := int(b.Height() / cellH)
	if b.MinY+float64(rows)*cellH < b.MaxY {
		rows++
	}

	cells := make([]Cell, 0, cols*rows)
	for row := 0; row < rows; row++ {
		for col := 0; col < cols; col++ {
			minX := b.MinX + float64(col)*cellW
			maxX := minX + cellW
			maxY := b.MaxY - float64(row)*cellH
			minY := maxY - cellH
			if maxX > b.MaxX {
				maxX = b.MaxX
			}
			if minY < b.MinY {
				minY = b.MinY
			}
			cells = append(cells, Cell{
				Col:    col,
				Row:    row,
				Bounds: BoundingBox{MinX: minX, MinY: minY, MaxX: maxX, MaxY: maxY},
			})
		}
	}

	return cells, nil
}

// TileAt returns the bounds of tile (x, y) when the box is split into
// 2^zoom x 2^zoom tiles. y counts from the top (north) edge, following
// slippy-map row ordering.
func TileAt(b BoundingBox, x, y, zoom int) (BoundingBox, error) {
	if zoom < 0 {
		return BoundingBox{}, fmt.Errorf("zoom %d must be non-negative", zoom)
	}
	n := 1 << zoom
	if x < 0 || x >= n || y < 0 || y >= n {
		return BoundingBox{}, fmt.Errorf("tile %d,%d out of range for zoom %d", x, y, zoom)
	}

	tileW := b.Width() / float64(n)
	tileH := b.Height() / float64(n)

	return BoundingBox{
		MinX: b.MinX + float64(x)*tileW,
		MaxX: b.MinX + float64(x+1)*tileW,
		MinY: b.MaxY - float64(y+1)*tileH,
		MaxY: b.MaxY - float64(y)*tileH,
	}, nil
}

// CenteredGrid returns the n x n block of tile cells centered on the middle
// of the 2^zoom subdivision of the box, clamped to the valid tile range.
// This is the grid the preview uses.
func CenteredGrid(b BoundingBox, n, zoom int) ([]Cell, error) {
	if n <= 0 {
		return nil, fmt.Errorf("grid size must be positive, got %d", n)
	}
	if err := b.Validate(); err != nil {
		return nil, err
	}

	total := 1 << zoom
	center := total / 2
	half := n / 2

	var cells []Cell
	for dy := -half; dy <= half+(n%2-1); dy++ {
		for dx := -half; dx <= half+(n%2-1); dx++ {
			x := clamp(center+dx, 0, total-1)
			y := clamp(center+dy, 0, total-1)
			bounds, err := TileAt(b, x, y, zoom)
			if err != nil {
				return nil, err
			}
			cells = append(cells, Cell{Col: x, Row: y, Bounds: bounds})
		}
	}

	return cells, nil
}

func clamp(val, min, max int) int {
	if val < min {
		return min
	}
	if val > max {
		return max
	}
	return val
}
