// Package downloads drives the batch tile download: iterate the tile grid in
// order, issue one GetMap request at a time, write each image to disk and
// record a metadata row per attempted tile. A failed tile is recorded and
// skipped; the rest of the grid still runs. There is no retry and no
// parallel fetch.
package downloads

import (
	"context"
	"fmt"
	"log"
	"os"
	"path/filepath"

	"github.com/google/uuid"

	"wms-tiler/internal/cache"
	"wms-tiler/internal/geo"
	"wms-tiler/internal/grid"
	"wms-tiler/internal/metadata"
	"wms-tiler/internal/utils/naming"
	"wms-tiler/internal/wms"
)

// TileFetcher is the capability the driver needs from the WMS client:
// one request in, image bytes or a typed error out.
type TileFetcher interface {
	GetMap(ctx context.Context, req wms.TileRequest) ([]byte, error)
}

// Progress reports the state of a running download.
type Progress struct {
	Downloaded int    `json:"downloaded"`
	Total      int    `json:"total"`
	Percent    int    `json:"percent"`
	Status     string `json:"status"`
}

// Job describes one full download run. Cells come pre-built from the grid
// package; Zoom is recorded in the metadata and used for cache keys.
type Job struct {
	Layer      string
	CRS        string
	Format     string
	Cells      []grid.Cell
	Zoom       int
	TileWidth  int
	TileHeight int
	OutputDir  string

	// PlanetRadiusKm controls the per-tile area column; areas are only
	// recorded when the CRS is geographic.
	PlanetRadiusKm float64

	// Resume skips cells up to and including the last position recorded in
	// an existing metadata CSV.
	Resume bool
}

// Validate rejects a job before any network call is made.
func (j Job) Validate() error {
	if j.Layer == "" {
		return fmt.Errorf("layer name is required")
	}
	if j.CRS == "" {
		return fmt.Errorf("CRS is required")
	}
	if j.Format == "" {
		return fmt.Errorf("image format is required")
	}
	if len(j.Cells) == 0 {
		return fmt.Errorf("tile grid is empty")
	}
	if j.TileWidth <= 0 || j.TileHeight <= 0 {
		return fmt.Errorf("tile pixel size must be positive, got %dx%d", j.TileWidth, j.TileHeight)
	}
	return nil
}

// Summary is the outcome of a completed run.
type Summary struct {
	RunID     string `json:"runId"`
	Attempted int    `json:"attempted"`
	Succeeded int    `json:"succeeded"`
	Failed    int    `json:"failed"`
	Resumed   int    `json:"resumed"`
	OutputDir string `json:"outputDir"`
	CSVPath   string `json:"csvPath"`
}

// Driver executes download jobs. The tile cache is optional; when present it
// is consulted before the network.
type Driver struct {
	fetcher    TileFetcher
	store      *cache.Store
	onProgress func(Progress)
	onLog      func(string)
}

// NewDriver creates a driver. store, onProgress and onLog may be nil.
func NewDriver(fetcher TileFetcher, store *cache.Store, onProgress func(Progress), onLog func(string)) *Driver {
	return &Driver{
		fetcher:    fetcher,
		store:      store,
		onProgress: onProgress,
		onLog:      onLog,
	}
}

func (d *Driver) emitLog(format string, args ...interface{}) {
	if d.onLog != nil {
		d.onLog(fmt.Sprintf(format, args...))
	}
}

func (d *Driver) emitProgress(p Progress) {
	if d.onProgress != nil {
		d.onProgress(p)
	}
}

// Run executes the job: setup failures return immediately with no partial
// progress; per-tile failures are recorded and skipped. Cancellation through
// ctx abandons the loop after the in-flight tile.
func (d *Driver) Run(ctx context.Context, job Job) (*Summary, error) {
	if err := job.Validate(); err != nil {
		return nil, err
	}

	if err := os.MkdirAll(job.OutputDir, 0755); err != nil {
		return nil, &wms.WriteError{Path: job.OutputDir, Err: err}
	}

	csvPath := filepath.Join(job.OutputDir, naming.MetadataCSVName(job.Layer, job.Zoom))

	cells := job.Cells
	resumed := 0
	if job.Resume {
		var err error
		cells, resumed, err = resumeCells(csvPath, cells)
		if err != nil {
			return nil, err
		}
		if resumed > 0 {
			d.emitLog("Resuming: %d tiles already recorded", resumed)
		}
	}

	writer, err := metadata.NewWriter(csvPath)
	if err != nil {
		return nil, err
	}
	defer writer.Close()

	summary := &Summary{
		RunID:     uuid.NewString(),
		Resumed:   resumed,
		OutputDir: job.OutputDir,
		CSVPath:   csvPath,
	}

	total := len(cells)
	d.emitLog("Downloading %d tiles to %s", total, job.OutputDir)

	for i, cell := range cells {
		select {
		case <-ctx.Done():
			return summary, ctx.Err()
		default:
		}

		summary.Attempted++
		row := metadata.Row{
			Bounds: cell.Bounds,
			Zoom:   job.Zoom,
			Row:    cell.Row,
			Col:    cell.Col,
		}

		imgPath, err := d.downloadTile(ctx, job, cell)
		if err != nil {
			log.Printf("[download] tile %d,%d failed: %v", cell.Col, cell.Row, err)
			d.emitLog("Tile %d,%d failed: %v", cell.Col, cell.Row, err)
			row.Status = metadata.StatusFailed
			summary.Failed++
		} else {
			row.ImgPath = imgPath
			row.Status = metadata.StatusOK
			summary.Succeeded++
		}

		if job.PlanetRadiusKm > 0 {
			if area, err := geo.QuadAreaKm2(cell.Bounds, job.PlanetRadiusKm); err == nil {
				row.AreaKm2 = area
				row.HasArea = true
			}
		}

		if err := writer.Append(row); err != nil {
			// Metadata is best effort, but a dead CSV makes the rest of the
			// run unaccounted for; stop here.
			return summary, err
		}

		d.emitProgress(Progress{
			Downloaded: i + 1,
			Total:      total,
			Percent:    ((i + 1) * 100) / total,
			Status:     fmt.Sprintf("Downloading %d/%d tiles", i+1, total),
		})
	}

	d.emitLog("Done: %d succeeded, %d failed", summary.Succeeded, summary.Failed)
	return summary, nil
}

// downloadTile fetches one tile (cache first, then network) and writes it to
// its deterministic path.
func (d *Driver) downloadTile(ctx context.Context, job Job, cell grid.Cell) (string, error) {
	imgPath := filepath.Join(job.OutputDir, naming.TileFilename(cell.Col, cell.Row, job.Format))
	ext := naming.FormatExtension(job.Format)

	var data []byte
	if d.store != nil {
		if cached, ok := d.store.Get(job.Layer, job.CRS, job.Zoom, cell.Col, cell.Row); ok {
			data = cached
		}
	}

	if data == nil {
		fetched, err := d.fetcher.GetMap(ctx, wms.TileRequest{
			Layer:  job.Layer,
			CRS:    job.CRS,
			Bounds: cell.Bounds,
			Width:  job.TileWidth,
			Height: job.TileHeight,
			Format: job.Format,
		})
		if err != nil {
			return "", err
		}
		data = fetched

		if d.store != nil {
			if err := d.store.Set(job.Layer, job.CRS, job.Zoom, cell.Col, cell.Row, ext, data); err != nil {
				log.Printf("[download] cache write failed: %v", err)
			}
		}
	}

	if err := os.WriteFile(imgPath, data, 0644); err != nil {
		return "", &wms.WriteError{Path: imgPath, Err: err}
	}
	return imgPath, nil
}

// resumeCells drops the prefix of cells already recorded in an existing
// metadata CSV. The CSV records tiles in grid order, so everything up to and
// including the last recorded position is done.
func resumeCells(csvPath string, cells []grid.Cell) (remaining []grid.Cell, skipped int, err error) {
	lastCol, lastRow, ok, err := metadata.LastPosition(csvPath)
	if err != nil {
		return nil, 0, err
	}
	if !ok {
		return cells, 0, nil
	}

	for i, cell := range cells {
		if cell.Col == lastCol && cell.Row == lastRow {
			return cells[i+1:], i + 1, nil
		}
	}

	// Recorded position not in this grid: treat as a fresh run.
	return cells, 0, nil
}
