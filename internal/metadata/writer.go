// Package metadata appends one CSV row per attempted tile download. The CSV
// is best-effort documentation of what was fetched: rows are written
// incrementally, never updated or deleted, and a failed download still gets
// a row so the file always has one entry per attempted tile.
package metadata

import (
	"encoding/csv"
	"fmt"
	"os"
	"strconv"

	"wms-tiler/internal/grid"
	"wms-tiler/internal/wms"
)

// Tile status values recorded in the STATUS column.
const (
	StatusOK     = "ok"
	StatusFailed = "failed"
)

// Header is the CSV column layout. The corner columns record the four tile
// corners as lat/lon pairs; ROW and COL are the tile's grid position.
var Header = []string{
	"IMG_PATH",
	"LL_LAT", "LL_LON",
	"UL_LAT", "UL_LON",
	"UR_LAT", "UR_LON",
	"LR_LAT", "LR_LON",
	"ZOOM",
	"ROW", "COL",
	"SQ_KM_AREA",
	"STATUS",
}

// Column indexes used when reading rows back for resume.
const (
	colZoom   = 9
	colRow    = 10
	colCol    = 11
	colStatus = 13
)

// Row is one flattened tile result ready for appending.
type Row struct {
	ImgPath string
	Bounds  grid.BoundingBox
	Zoom    int
	Row     int
	Col     int
	AreaKm2 float64
	HasArea bool
	Status  string
}

// Writer appends rows to a metadata CSV, creating it with a header when
// missing. Each append is flushed so a crash loses at most the current row.
type Writer struct {
	path string
	file *os.File
	csv  *csv.Writer
}

// NewWriter opens (or creates) the metadata CSV at path for appending.
func NewWriter(path string) (*Writer, error) {
	writeHeader := false
	if _, err := os.Stat(path); os.IsNotExist(err) {
		writeHeader = true
	}

	file, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
	if err != nil {
		return nil, &wms.WriteError{Path: path, Err: err}
	}

	w := &Writer{path: path, file: file, csv: csv.NewWriter(file)}

	if writeHeader {
		if err := w.csv.Write(Header); err != nil {
			file.Close()
			return nil, &wms.WriteError{Path: path, Err: err}
		}
		w.csv.Flush()
		if err := w.csv.Error(); err != nil {
			file.Close()
			return nil, &wms.WriteError{Path: path, Err: err}
		}
	}

	return w, nil
}

// Path returns the CSV file path.
func (w *Writer) Path() string { return w.path }

// Append writes one row and flushes it to disk.
func (w *Writer) Append(r Row) error {
	b := r.Bounds
	area := ""
	if r.HasArea {
		area = strconv.FormatFloat(r.AreaKm2, 'f', 6, 64)
	}

	record := []string{
		r.ImgPath,
		formatCoord(b.MinY), formatCoord(b.MinX), // lower-left
		formatCoord(b.MaxY), formatCoord(b.MinX), // upper-left
		formatCoord(b.MaxY), formatCoord(b.MaxX), // upper-right
		formatCoord(b.MinY), formatCoord(b.MaxX), // lower-right
		strconv.Itoa(r.Zoom),
		strconv.Itoa(r.Row),
		strconv.Itoa(r.Col),
		area,
		r.Status,
	}

	if err := w.csv.Write(record); err != nil {
		return &wms.WriteError{Path: w.path, Err: err}
	}
	w.csv.Flush()
	if err := w.csv.Error(); err != nil {
		return &wms.WriteError{Path: w.path, Err: err}
	}
	return nil
}

// Close flushes and closes the underlying file.
func (w *Writer) Close() error {
	w.csv.Flush()
	if err := w.csv.Error(); err != nil {
		w.file.Close()
		return &wms.WriteError{Path: w.path, Err: err}
	}
	return w.file.Close()
}

func formatCoord(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}

// LastPosition reads the grid position of the last recorded row, used to
// resume an interrupted download. ok is false when the file is missing or
// holds no data rows.
func LastPosition(path string) (col, row int, ok bool, err error) {
	file, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return 0, 0, false, nil
		}
		return 0, 0, false, fmt.Errorf("failed to open metadata file: %w", err)
	}
	defer file.Close()

	reader := csv.NewReader(file)
	reader.FieldsPerRecord = -1
	records, err := reader.ReadAll()
	if err != nil {
		return 0, 0, false, fmt.Errorf("failed to read metadata file: %w", err)
	}
	if len(records) < 2 {
		return 0, 0, false, nil
	}

	last := records[len(records)-1]
	if len(last) <= colCol {
		return 0, 0, false, fmt.Errorf("metadata row has %d columns, want at least %d", len(last), colCol+1)
	}

	col, err = strconv.Atoi(last[colCol])
	if err != nil {
		return 0, 0, false, fmt.Errorf("invalid COL value %q: %w", last[colCol], err)
	}
	row, err = strconv.Atoi(last[colRow])
	if err != nil {
		return 0, 0, false, fmt.Errorf("invalid ROW value %q: %w", last[colRow], err)
	}

	return col, row, true, nil
}

// RowCount returns the number of data rows (excluding the header).
func RowCount(path string) (int, error) {
	file, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return 0, nil
		}
		return 0, err
	}
	defer file.Close()

	reader := csv.NewReader(file)
	reader.FieldsPerRecord = -1
	records, err := reader.ReadAll()
	if err != nil {
		return 0, err
	}
	if len(records) == 0 {
		return 0, nil
	}
	return len(records) - 1, nil
}
