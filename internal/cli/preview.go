package cli

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"wms-tiler/internal/grid"
	"wms-tiler/internal/preview"
	"wms-tiler/internal/utils/naming"
)

type previewFlags struct {
	endpoint string
	layer    string
	bbox     string
	zoom     int
	gridSize int
	format   string
	outDir   string
}

// NewPreviewCommand creates the "preview" command: download a small centered
// tile grid and emit a browsable mosaic.
func NewPreviewCommand() *cobra.Command {
	flags := &previewFlags{}

	cmd := &cobra.Command{
		Use:   "preview",
		Short: "Download a small centered tile grid and build a mosaic",
		Long: `Download a small grid of tiles centered on the bounding box at the given
zoom, then write a Leaflet HTML mosaic and a stitched PNG for inspection
before committing to a full download.

Examples:
  wms-tiler preview --layer luna_wac_global --bbox -10,-10,10,10 --zoom 5
  wms-tiler preview --layer luna_wac_global --bbox -10,-10,10,10 --grid 5`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runPreview(cmd, flags)
		},
	}

	cmd.Flags().StringVar(&flags.endpoint, "url", "", "WMS endpoint URL (default from settings)")
	cmd.Flags().StringVar(&flags.layer, "layer", "", "WMS layer name (required)")
	cmd.Flags().StringVar(&flags.bbox, "bbox", "", "Bounding box as minLon,minLat,maxLon,maxLat (required)")
	cmd.Flags().IntVar(&flags.zoom, "zoom", 0, "Zoom level (default from settings)")
	cmd.Flags().IntVar(&flags.gridSize, "grid", 0, "Preview grid size N for an NxN mosaic (default from settings)")
	cmd.Flags().StringVar(&flags.format, "format", "", "GetMap image format (default auto-detected)")
	cmd.Flags().StringVar(&flags.outDir, "out", "", "Output directory (default from settings)")
	_ = cmd.MarkFlagRequired("layer")
	_ = cmd.MarkFlagRequired("bbox")

	return cmd
}

func runPreview(cmd *cobra.Command, flags *previewFlags) error {
	settings := loadSettings()
	if flags.zoom == 0 {
		flags.zoom = settings.DefaultZoom
	}
	if flags.gridSize == 0 {
		flags.gridSize = settings.PreviewGridSize
	}
	if flags.outDir == "" {
		flags.outDir = settings.PreviewDir
	}

	bounds, err := parseBBox(flags.bbox)
	if err != nil {
		return err
	}
	cells, err := grid.CenteredGrid(bounds, flags.gridSize, flags.zoom)
	if err != nil {
		return err
	}

	client := newClient(flags.endpoint, settings)
	_, crs, format, err := resolveLayer(cmd, client, flags.layer, flags.format)
	if err != nil {
		return err
	}

	outDir := filepath.Join(flags.outDir, naming.DatasetDirName(flags.layer, flags.zoom, format, crs))
	tiles, err := preview.Download(cmd.Context(), client, preview.Params{
		Layer:      flags.layer,
		CRS:        crs,
		Format:     format,
		TileWidth:  settings.TileWidth,
		TileHeight: settings.TileHeight,
		OutputDir:  outDir,
	}, cells)
	if err != nil {
		return err
	}

	htmlPath := filepath.Join(outDir, "mosaic.html")
	if err := preview.WriteMosaicHTML(htmlPath, flags.layer, tiles); err != nil {
		return err
	}

	pngPath := filepath.Join(outDir, naming.MosaicFilename(flags.layer,
		bounds.MinX, bounds.MinY, bounds.MaxX, bounds.MaxY, flags.zoom, "png"))
	img, err := preview.Stitch(tiles, settings.TileWidth, settings.TileHeight)
	if err != nil {
		verboseLog("stitch skipped: %v", err)
		pngPath = ""
	} else if err := preview.SavePNG(img, pngPath); err != nil {
		return err
	}

	ok := 0
	for _, t := range tiles {
		if t.OK {
			ok++
		}
	}

	if jsonOutput {
		out := map[string]interface{}{
			"tiles":      len(tiles),
			"downloaded": ok,
			"mosaicHtml": htmlPath,
			"mosaicPng":  pngPath,
		}
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(out)
	}
	fmt.Printf("Preview: %d/%d tiles downloaded\n", ok, len(tiles))
	fmt.Printf("Mosaic page: %s\n", htmlPath)
	if pngPath != "" {
		fmt.Printf("Stitched image: %s\n", pngPath)
	}
	return nil
}
