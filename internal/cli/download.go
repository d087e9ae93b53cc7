package cli

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/spf13/cobra"

	"wms-tiler/internal/cache"
	"wms-tiler/internal/config"
	"wms-tiler/internal/downloads"
	"wms-tiler/internal/geo"
	"wms-tiler/internal/grid"
	"wms-tiler/internal/preview"
	"wms-tiler/internal/utils/naming"
	"wms-tiler/pkg/geotiff"
)

type downloadFlags struct {
	endpoint string
	layer    string
	bbox     string
	zoom     int
	cols     int
	rows     int
	cellW    float64
	cellH    float64
	format   string
	outDir   string
	body     string
	resume   bool
	noCache  bool
	stitch   bool
	geoTIFF  bool
}

// NewDownloadCommand creates the "download" command: the full grid download
// with metadata CSV.
func NewDownloadCommand() *cobra.Command {
	flags := &downloadFlags{}

	cmd := &cobra.Command{
		Use:   "download",
		Short: "Download a full tile grid with a metadata CSV",
		Long: `Split the bounding box into a tile grid and download every tile in order,
one request at a time. Each attempted tile gets a row in the metadata CSV;
failed tiles are recorded and skipped so one bad tile never aborts the run.

The grid comes from --zoom (2^zoom by 2^zoom tiles), from explicit --cols and
--rows, or from a fixed cell extent via --cell-width/--cell-height.

Examples:
  wms-tiler download --layer luna_wac_global --bbox -10,-10,10,10 --zoom 4
  wms-tiler download --layer luna_wac_global --bbox -10,-10,10,10 --cols 8 --rows 4
  wms-tiler download --layer luna_wac_global --bbox -10,-10,10,10 --zoom 4 --resume`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runDownload(cmd, flags)
		},
	}

	cmd.Flags().StringVar(&flags.endpoint, "url", "", "WMS endpoint URL (default from settings)")
	cmd.Flags().StringVar(&flags.layer, "layer", "", "WMS layer name (required)")
	cmd.Flags().StringVar(&flags.bbox, "bbox", "", "Bounding box as minLon,minLat,maxLon,maxLat (required)")
	cmd.Flags().IntVar(&flags.zoom, "zoom", 0, "Zoom level; splits the box into 2^zoom x 2^zoom tiles")
	cmd.Flags().IntVar(&flags.cols, "cols", 0, "Explicit grid column count (with --rows)")
	cmd.Flags().IntVar(&flags.rows, "rows", 0, "Explicit grid row count (with --cols)")
	cmd.Flags().Float64Var(&flags.cellW, "cell-width", 0, "Fixed cell width in map units (with --cell-height)")
	cmd.Flags().Float64Var(&flags.cellH, "cell-height", 0, "Fixed cell height in map units (with --cell-width)")
	cmd.Flags().StringVar(&flags.format, "format", "", "GetMap image format (default auto-detected)")
	cmd.Flags().StringVar(&flags.outDir, "out", "", "Output directory (default from settings)")
	cmd.Flags().StringVar(&flags.body, "body", "", "Planet body for the CSV area column: moon, earth, mars (default from settings)")
	cmd.Flags().BoolVar(&flags.resume, "resume", false, "Resume after the last tile recorded in the metadata CSV")
	cmd.Flags().BoolVar(&flags.noCache, "no-cache", false, "Skip the persistent tile cache")
	cmd.Flags().BoolVar(&flags.stitch, "stitch", false, "Also write a stitched PNG mosaic")
	cmd.Flags().BoolVar(&flags.geoTIFF, "geotiff", false, "Also write a georeferenced TIFF mosaic")
	_ = cmd.MarkFlagRequired("layer")
	_ = cmd.MarkFlagRequired("bbox")

	return cmd
}

func runDownload(cmd *cobra.Command, flags *downloadFlags) error {
	settings := loadSettings()
	if flags.outDir == "" {
		flags.outDir = settings.OutputDir
	}
	if flags.body == "" {
		flags.body = settings.PlanetBody
	}

	bounds, err := parseBBox(flags.bbox)
	if err != nil {
		return err
	}
	cells, zoom, err := buildGrid(bounds, flags, settings.DefaultZoom)
	if err != nil {
		return err
	}

	client := newClient(flags.endpoint, settings)
	_, crs, format, err := resolveLayer(cmd, client, flags.layer, flags.format)
	if err != nil {
		return err
	}

	var store *cache.Store
	if !flags.noCache {
		store, err = cache.NewStore(config.CacheDir(), settings.CacheMaxSizeMB, settings.CacheTTLDays)
		if err != nil {
			verboseLog("tile cache unavailable: %v", err)
		} else {
			defer store.Close()
		}
	}

	radius := geo.RadiusForBody(flags.body)
	if crs != "EPSG:4326" && crs != "CRS:84" {
		radius = 0 // areas are only meaningful for geographic coordinates
	}

	driver := downloads.NewDriver(client, store, progressPrinter(), func(msg string) {
		verboseLog("%s", msg)
	})

	start := time.Now()
	summary, err := driver.Run(cmd.Context(), downloads.Job{
		Layer:          flags.layer,
		CRS:            crs,
		Format:         format,
		Cells:          cells,
		Zoom:           zoom,
		TileWidth:      settings.TileWidth,
		TileHeight:     settings.TileHeight,
		OutputDir:      filepath.Join(flags.outDir, naming.DatasetDirName(flags.layer, zoom, format, crs)),
		PlanetRadiusKm: radius,
		Resume:         flags.resume,
	})
	if err != nil {
		return err
	}
	if !jsonOutput {
		fmt.Println()
	}

	var mosaicPath string
	if flags.stitch || flags.geoTIFF {
		mosaicPath, err = writeMosaic(bounds, cells, zoom, flags, format, crs, summary.OutputDir, settings)
		if err != nil {
			verboseLog("mosaic skipped: %v", err)
			mosaicPath = ""
		}
	}

	if jsonOutput {
		out := struct {
			*downloads.Summary
			Mosaic  string `json:"mosaic,omitempty"`
			Elapsed string `json:"elapsed"`
		}{summary, mosaicPath, time.Since(start).Round(time.Millisecond).String()}
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(out)
	}

	fmt.Printf("Downloaded %d/%d tiles (%d failed", summary.Succeeded, summary.Attempted, summary.Failed)
	if summary.Resumed > 0 {
		fmt.Printf(", %d resumed", summary.Resumed)
	}
	fmt.Printf(") in %s\n", time.Since(start).Round(time.Millisecond))
	fmt.Printf("Dataset: %s\n", summary.OutputDir)
	fmt.Printf("Metadata: %s\n", summary.CSVPath)
	if mosaicPath != "" {
		fmt.Printf("Mosaic: %s\n", mosaicPath)
	}
	return nil
}

// buildGrid resolves the three ways of describing the grid to a cell list.
func buildGrid(bounds grid.BoundingBox, flags *downloadFlags, defaultZoom int) ([]grid.Cell, int, error) {
	switch {
	case flags.cols != 0 || flags.rows != 0:
		cells, err := grid.Subdivide(bounds, flags.cols, flags.rows)
		return cells, flags.zoom, err
	case flags.cellW != 0 || flags.cellH != 0:
		cells, err := grid.SubdivideBySize(bounds, flags.cellW, flags.cellH)
		return cells, flags.zoom, err
	default:
		zoom := flags.zoom
		if zoom == 0 {
			zoom = defaultZoom
		}
		if zoom < 0 || zoom > grid.MaxTileZoom {
			return nil, 0, fmt.Errorf("zoom must be between 0 and %d, got %d", grid.MaxTileZoom, zoom)
		}
		n := 1 << zoom
		cells, err := grid.Subdivide(bounds, n, n)
		return cells, zoom, err
	}
}

// progressPrinter returns a per-tile progress callback for text output.
func progressPrinter() func(downloads.Progress) {
	if jsonOutput {
		return nil
	}
	return func(p downloads.Progress) {
		fmt.Printf("\r%s: %d/%d (%d%%)", p.Status, p.Downloaded, p.Total, p.Percent)
	}
}

// writeMosaic stitches the downloaded tiles back into a single image, as
// PNG and/or GeoTIFF.
func writeMosaic(bounds grid.BoundingBox, cells []grid.Cell, zoom int, flags *downloadFlags, format, crs, outDir string, settings *config.Settings) (string, error) {
	tiles := make([]preview.Tile, 0, len(cells))
	for _, c := range cells {
		path := filepath.Join(outDir, naming.TileFilename(c.Col, c.Row, format))
		data, err := os.ReadFile(path)
		if err != nil {
			continue
		}
		tiles = append(tiles, preview.Tile{Cell: c, Path: path, Data: data, OK: true})
	}
	img, err := preview.Stitch(tiles, settings.TileWidth, settings.TileHeight)
	if err != nil {
		return "", err
	}

	if flags.geoTIFF {
		path := filepath.Join(outDir, naming.MosaicFilename(flags.layer,
			bounds.MinX, bounds.MinY, bounds.MaxX, bounds.MaxY, zoom, "tif"))
		f, err := os.Create(path)
		if err != nil {
			return "", err
		}
		defer f.Close()
		size := img.Bounds().Size()
		err = geotiff.Encode(f, img, geotiff.GeoRef{
			EPSG:        epsgCode(crs),
			Geographic:  crs == "EPSG:4326" || crs == "CRS:84",
			OriginX:     bounds.MinX,
			OriginY:     bounds.MaxY,
			PixelW:      bounds.Width() / float64(size.X),
			PixelH:      bounds.Height() / float64(size.Y),
			Description: flags.layer,
			DateTime:    time.Now().Format("2006:01:02 15:04:05"),
		})
		if err != nil {
			return "", err
		}
		return path, nil
	}

	path := filepath.Join(outDir, naming.MosaicFilename(flags.layer,
		bounds.MinX, bounds.MinY, bounds.MaxX, bounds.MaxY, zoom, "png"))
	if err := preview.SavePNG(img, path); err != nil {
		return "", err
	}
	return path, nil
}

func epsgCode(crs string) int {
	switch crs {
	case "EPSG:4326", "CRS:84":
		return 4326
	case "EPSG:3857":
		return 3857
	}
	var code int
	if _, err := fmt.Sscanf(crs, "EPSG:%d", &code); err == nil {
		return code
	}
	return 4326
}
