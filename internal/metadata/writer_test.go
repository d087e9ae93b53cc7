package metadata

import (
	"encoding/csv"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"wms-tiler/internal/grid"
)

func testRow(col, row int, status string) Row {
	return Row{
		ImgPath: "tiles/tile_0_0.png",
		Bounds:  grid.BoundingBox{MinX: -10, MinY: -5, MaxX: 10, MaxY: 5},
		Zoom:    4,
		Row:     row,
		Col:     col,
		AreaKm2: 1234.5,
		HasArea: true,
		Status:  status,
	}
}

// TestNewWriter_WritesHeaderOnce verifies the header is written on creation
// and not duplicated when the file is reopened for appending.
func TestNewWriter_WritesHeaderOnce(t *testing.T) {
	path := filepath.Join(t.TempDir(), "tiles_info.csv")

	w, err := NewWriter(path)
	require.NoError(t, err)
	require.NoError(t, w.Append(testRow(0, 0, StatusOK)))
	require.NoError(t, w.Close())

	w, err = NewWriter(path)
	require.NoError(t, err)
	require.NoError(t, w.Append(testRow(1, 0, StatusOK)))
	require.NoError(t, w.Close())

	records := readAll(t, path)
	require.Len(t, records, 3)
	assert.Equal(t, Header, records[0])
}

// TestAppend_CornerOrder verifies the four corner columns: lower-left,
// upper-left, upper-right, lower-right as lat/lon pairs.
func TestAppend_CornerOrder(t *testing.T) {
	path := filepath.Join(t.TempDir(), "tiles_info.csv")

	w, err := NewWriter(path)
	require.NoError(t, err)
	require.NoError(t, w.Append(testRow(2, 3, StatusOK)))
	require.NoError(t, w.Close())

	records := readAll(t, path)
	require.Len(t, records, 2)
	row := records[1]

	assert.Equal(t, "tiles/tile_0_0.png", row[0])
	assert.Equal(t, []string{"-5", "-10"}, row[1:3], "LL lat,lon")
	assert.Equal(t, []string{"5", "-10"}, row[3:5], "UL lat,lon")
	assert.Equal(t, []string{"5", "10"}, row[5:7], "UR lat,lon")
	assert.Equal(t, []string{"-5", "10"}, row[7:9], "LR lat,lon")
	assert.Equal(t, "4", row[colZoom])
	assert.Equal(t, "3", row[colRow])
	assert.Equal(t, "2", row[colCol])
	assert.Equal(t, "1234.500000", row[12])
	assert.Equal(t, StatusOK, row[colStatus])
}

// TestAppend_EmptyAreaWhenInvalid verifies a row without a computed area
// leaves the column empty rather than writing zero.
func TestAppend_EmptyAreaWhenInvalid(t *testing.T) {
	path := filepath.Join(t.TempDir(), "tiles_info.csv")

	w, err := NewWriter(path)
	require.NoError(t, err)
	r := testRow(0, 0, StatusFailed)
	r.HasArea = false
	require.NoError(t, w.Append(r))
	require.NoError(t, w.Close())

	records := readAll(t, path)
	assert.Equal(t, "", records[1][12])
	assert.Equal(t, StatusFailed, records[1][colStatus])
}

// TestLastPosition verifies the resume lookup points at the last appended
// row.
func TestLastPosition(t *testing.T) {
	path := filepath.Join(t.TempDir(), "tiles_info.csv")

	// Missing file: no position, no error.
	col, row, ok, err := LastPosition(path)
	require.NoError(t, err)
	assert.False(t, ok)

	w, err := NewWriter(path)
	require.NoError(t, err)

	// Header only: still no position.
	col, row, ok, err = LastPosition(path)
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, w.Append(testRow(0, 0, StatusOK)))
	require.NoError(t, w.Append(testRow(1, 0, StatusFailed)))
	require.NoError(t, w.Append(testRow(2, 1, StatusOK)))
	require.NoError(t, w.Close())

	col, row, ok, err = LastPosition(path)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, 2, col)
	assert.Equal(t, 1, row)
}

// TestRowCount excludes the header.
func TestRowCount(t *testing.T) {
	path := filepath.Join(t.TempDir(), "tiles_info.csv")

	n, err := RowCount(path)
	require.NoError(t, err)
	assert.Equal(t, 0, n)

	w, err := NewWriter(path)
	require.NoError(t, err)
	require.NoError(t, w.Append(testRow(0, 0, StatusOK)))
	require.NoError(t, w.Append(testRow(1, 0, StatusOK)))
	require.NoError(t, w.Close())

	n, err = RowCount(path)
	require.NoError(t, err)
	assert.Equal(t, 2, n)
}

func readAll(t *testing.T, path string) [][]string {
	t.Helper()
	f, err := os.Open(path)
	require.NoError(t, err)
	defer f.Close()
	records, err := csv.NewReader(f).ReadAll()
	require.NoError(t, err)
	return records
}
