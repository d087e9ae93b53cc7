package grid

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// TestSubdivide_TwoByTwo verifies the canonical case: a (0,0)-(10,10) box
// split 2x2 yields four 5x5 sub-boxes in row-major order from the north-west
// corner.
func TestSubdivide_TwoByTwo(t *testing.T) {
	b := BoundingBox{MinX: 0, MinY: 0, MaxX: 10, MaxY: 10}

	cells, err := Subdivide(b, 2, 2)
	require.NoError(t, err)
	require.Len(t, cells, 4)

	want := []BoundingBox{
		{MinX: 0, MinY: 5, MaxX: 5, MaxY: 10},  // row 0, col 0 (north-west)
		{MinX: 5, MinY: 5, MaxX: 10, MaxY: 10}, // row 0, col 1
		{MinX: 0, MinY: 0, MaxX: 5, MaxY: 5},   // row 1, col 0
		{MinX: 5, MinY: 0, MaxX: 10, MaxY: 5},  // row 1, col 1
	}
	for i, cell := range cells {
		assert.Equal(t, want[i], cell.Bounds, "cell %d", i)
		assert.Equal(t, i%2, cell.Col)
		assert.Equal(t, i/2, cell.Row)
	}
}

// TestSubdivide_Count verifies the cell count for asymmetric grids.
func TestSubdivide_Count(t *testing.T) {
	b := BoundingBox{MinX: -180, MinY: -90, MaxX: 180, MaxY: 90}

	for _, tc := range []struct{ cols, rows int }{
		{1, 1}, {3, 2}, {7, 5}, {16, 16},
	} {
		cells, err := Subdivide(b, tc.cols, tc.rows)
		require.NoError(t, err)
		assert.Len(t, cells, tc.cols*tc.rows, "%dx%d", tc.cols, tc.rows)
	}
}

// TestSubdivide_CoversBoxWithoutOverlap verifies cells tile the box: the
// union covers every edge exactly and adjacent cells share boundaries
// instead of overlapping.
func TestSubdivide_CoversBoxWithoutOverlap(t *testing.T) {
	b := BoundingBox{MinX: -12.5, MinY: 3.25, MaxX: 41.75, MaxY: 67}

	cells, err := Subdivide(b, 5, 3)
	require.NoError(t, err)

	for _, cell := range cells {
		require.NoError(t, cell.Bounds.Validate())
	}

	// Row-major neighbours share exact edges.
	for i, cell := range cells {
		if cell.Col < 4 {
			right := cells[i+1]
			assert.Equal(t, cell.Bounds.MaxX, right.Bounds.MinX)
		}
		if cell.Row < 2 {
			below := cells[i+5]
			assert.Equal(t, cell.Bounds.MinY, below.Bounds.MaxY)
		}
	}

	// Outer edges land exactly on the box.
	assert.Equal(t, b.MinX, cells[0].Bounds.MinX)
	assert.Equal(t, b.MaxY, cells[0].Bounds.MaxY)
	last := cells[len(cells)-1]
	assert.Equal(t, b.MaxX, last.Bounds.MaxX)
	assert.Equal(t, b.MinY, last.Bounds.MinY)
}

// TestSubdivide_RejectsNonPositiveCounts verifies invalid grid dimensions
// fail before anything else happens.
func TestSubdivide_RejectsNonPositiveCounts(t *testing.T) {
	b := BoundingBox{MinX: 0, MinY: 0, MaxX: 10, MaxY: 10}

	for _, tc := range []struct{ cols, rows int }{
		{0, 1}, {1, 0}, {-1, 2}, {2, -3}, {0, 0},
	} {
		_, err := Subdivide(b, tc.cols, tc.rows)
		assert.Error(t, err, "%dx%d", tc.cols, tc.rows)
	}
}

// TestSubdivide_RejectsInvalidBox verifies degenerate boxes are rejected.
func TestSubdivide_RejectsInvalidBox(t *testing.T) {
	_, err := Subdivide(BoundingBox{MinX: 10, MinY: 0, MaxX: 0, MaxY: 10}, 2, 2)
	assert.Error(t, err)

	_, err = Subdivide(BoundingBox{MinX: 0, MinY: 5, MaxX: 10, MaxY: 5}, 2, 2)
	assert.Error(t, err)
}

// TestSubdivideBySize_Exact verifies an evenly-dividing cell size produces
// uniform cells.
func TestSubdivideBySize_Exact(t *testing.T) {
	b := BoundingBox{MinX: 0, MinY: 0, MaxX: 10, MaxY: 10}

	cells, err := SubdivideBySize(b, 5, 5)
	require.NoError(t, err)
	require.Len(t, cells, 4)
	for _, cell := range cells {
		assert.InDelta(t, 5, cell.Bounds.Width(), 1e-9)
		assert.InDelta(t, 5, cell.Bounds.Height(), 1e-9)
	}
}

// TestSubdivideBySize_ClipsLastRowAndColumn verifies the last row/column is
// clipped to the remaining extent, never padded past the box.
func TestSubdivideBySize_ClipsLastRowAndColumn(t *testing.T) {
	b := BoundingBox{MinX: 0, MinY: 0, MaxX: 10, MaxY: 7}

	cells, err := SubdivideBySize(b, 4, 3)
	require.NoError(t, err)
	require.Len(t, cells, 9) // 3 cols x 3 rows

	for _, cell := range cells {
		assert.LessOrEqual(t, cell.Bounds.MaxX, b.MaxX)
		assert.GreaterOrEqual(t, cell.Bounds.MinY, b.MinY)
		if cell.Col == 2 {
			assert.InDelta(t, 2, cell.Bounds.Width(), 1e-9, "last column clipped")
		} else {
			assert.InDelta(t, 4, cell.Bounds.Width(), 1e-9)
		}
		if cell.Row == 2 {
			assert.InDelta(t, 1, cell.Bounds.Height(), 1e-9, "last row clipped")
		} else {
			assert.InDelta(t, 3, cell.Bounds.Height(), 1e-9)
		}
	}
}

// TestSubdivideBySize_RejectsNonPositiveSize verifies invalid cell extents
// are rejected.
func TestSubdivideBySize_RejectsNonPositiveSize(t *testing.T) {
	b := BoundingBox{MinX: 0, MinY: 0, MaxX: 10, MaxY: 10}

	_, err := SubdivideBySize(b, 0, 5)
	assert.Error(t, err)
	_, err = SubdivideBySize(b, 5, -1)
	assert.Error(t, err)
}

// TestTileAt_CountsFromNorth verifies y=0 is the northernmost tile row.
func TestTileAt_CountsFromNorth(t *testing.T) {
	b := BoundingBox{MinX: 0, MinY: 0, MaxX: 8, MaxY: 8}

	top, err := TileAt(b, 0, 0, 1)
	require.NoError(t, err)
	assert.Equal(t, BoundingBox{MinX: 0, MinY: 4, MaxX: 4, MaxY: 8}, top)

	bottom, err := TileAt(b, 1, 1, 1)
	require.NoError(t, err)
	assert.Equal(t, BoundingBox{MinX: 4, MinY: 0, MaxX: 8, MaxY: 4}, bottom)
}

// TestTileAt_ZoomZero verifies the whole box is the single zoom-0 tile.
func TestTileAt_ZoomZero(t *testing.T) {
	b := BoundingBox{MinX: -180, MinY: -90, MaxX: 180, MaxY: 90}

	tile, err := TileAt(b, 0, 0, 0)
	require.NoError(t, err)
	assert.Equal(t, b, tile)
}

// TestTileAt_OutOfRange verifies coordinates outside the 2^zoom grid are
// rejected.
func TestTileAt_OutOfRange(t *testing.T) {
	b := BoundingBox{MinX: 0, MinY: 0, MaxX: 10, MaxY: 10}

	_, err := TileAt(b, 2, 0, 1)
	assert.Error(t, err)
	_, err = TileAt(b, 0, -1, 1)
	assert.Error(t, err)
	_, err = TileAt(b, 0, 0, -1)
	assert.Error(t, err)
}

// TestCenteredGrid_Size verifies an n x n preview block comes back with n^2
// cells around the middle of the subdivision.
func TestCenteredGrid_Size(t *testing.T) {
	b := BoundingBox{MinX: -180, MinY: -90, MaxX: 180, MaxY: 90}

	cells, err := CenteredGrid(b, 3, 5)
	require.NoError(t, err)
	require.Len(t, cells, 9)

	// Center of a zoom-5 grid is tile 16; a 3x3 block spans 15..17.
	for _, cell := range cells {
		assert.GreaterOrEqual(t, cell.Col, 15)
		assert.LessOrEqual(t, cell.Col, 17)
		assert.GreaterOrEqual(t, cell.Row, 15)
		assert.LessOrEqual(t, cell.Row, 17)
	}
}

// TestCenteredGrid_ClampsAtLowZoom verifies a preview block bigger than the
// tile grid clamps to valid tiles instead of failing.
func TestCenteredGrid_ClampsAtLowZoom(t *testing.T) {
	b := BoundingBox{MinX: 0, MinY: 0, MaxX: 10, MaxY: 10}

	cells, err := CenteredGrid(b, 3, 0)
	require.NoError(t, err)
	require.Len(t, cells, 9)
	for _, cell := range cells {
		assert.Equal(t, 0, cell.Col)
		assert.Equal(t, 0, cell.Row)
	}
}

// TestBoundingBox_Validate covers the min<max invariant per axis.
func TestBoundingBox_Validate(t *testing.T) {
	assert.NoError(t, BoundingBox{MinX: 0, MinY: 0, MaxX: 1, MaxY: 1}.Validate())
	assert.Error(t, BoundingBox{MinX: 1, MinY: 0, MaxX: 1, MaxY: 1}.Validate())
	assert.Error(t, BoundingBox{MinX: 0, MinY: 2, MaxX: 1, MaxY: 1}.Validate())
}

// TestBoundingBox_ValidateGeographic covers lat/lon range checks.
func TestBoundingBox_ValidateGeographic(t *testing.T) {
	assert.NoError(t, BoundingBox{MinX: -180, MinY: -90, MaxX: 180, MaxY: 90}.ValidateGeographic())
	assert.Error(t, BoundingBox{MinX: -181, MinY: 0, MaxX: 0, MaxY: 10}.ValidateGeographic())
	assert.Error(t, BoundingBox{MinX: 0, MinY: -91, MaxX: 10, MaxY: 0}.ValidateGeographic())
}

// TestBoundingBox_String verifies the WMS bbox parameter order.
func TestBoundingBox_String(t *testing.T) {
	b := BoundingBox{MinX: -10.5, MinY: -20, MaxX: 30, MaxY: 40.25}
	assert.Equal(t, "-10.500000,-20.000000,30.000000,40.250000", b.String())
}
