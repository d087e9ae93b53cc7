// Package cli implements the cobra commands for wms-tiler. Each subcommand
// lives in its own file; this file holds the root command, global flags and
// the error-to-exit-code mapping.
package cli

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"wms-tiler/internal/config"
	"wms-tiler/internal/grid"
	"wms-tiler/internal/wms"
)

// Exit codes keyed to the error kinds a run can fail with.
const (
	ExitGeneralError    = 1
	ExitConnectionError = 2
	ExitRequestError    = 3
	ExitWriteError      = 4
)

// Global flags bound to persistent flags on the root command.
var (
	jsonOutput bool
	verbose    bool
)

// Version is set at build time via ldflags.
var Version = "dev"

// NewRootCommand creates the root command with all subcommands registered.
func NewRootCommand() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "wms-tiler",
		Short: "Download tile grids from a WMS endpoint",
		Long: `wms-tiler connects to a Web Map Service, lists its layers, previews a small
mosaic, and downloads a full grid of map tiles with a metadata CSV describing
each tile's bounds and area.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		Version:       Version,
	}

	rootCmd.PersistentFlags().BoolVar(&jsonOutput, "json", false, "Output in JSON format")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Enable verbose logging to stderr")

	rootCmd.AddCommand(NewLayersCommand())
	rootCmd.AddCommand(NewPreviewCommand())
	rootCmd.AddCommand(NewDownloadCommand())
	rootCmd.AddCommand(NewServeCommand())
	rootCmd.AddCommand(NewCacheCommand())

	return rootCmd
}

// Execute runs the root command and exits with a code derived from the
// error kind.
func Execute(rootCmd *cobra.Command) {
	if err := rootCmd.Execute(); err != nil {
		printError(err)
		os.Exit(exitCode(err))
	}
}

func exitCode(err error) int {
	var connErr *wms.ConnectionError
	var reqErr *wms.RequestError
	var writeErr *wms.WriteError
	switch {
	case errors.As(err, &connErr):
		return ExitConnectionError
	case errors.As(err, &reqErr):
		return ExitRequestError
	case errors.As(err, &writeErr):
		return ExitWriteError
	}
	return ExitGeneralError
}

func printError(err error) {
	if jsonOutput {
		obj := map[string]interface{}{
			"error": map[string]interface{}{
				"message": err.Error(),
				"code":    exitCode(err),
			},
		}
		data, _ := json.MarshalIndent(obj, "", "  ")
		fmt.Fprintln(os.Stderr, string(data))
		return
	}
	fmt.Fprintf(os.Stderr, "Error: %v\n", err)
}

// verboseLog prints to stderr only with --verbose.
func verboseLog(format string, args ...interface{}) {
	if verbose {
		fmt.Fprintf(os.Stderr, "[wms-tiler] "+format+"\n", args...)
	}
}

// loadSettings reads the settings file, falling back to defaults when it
// cannot be read.
func loadSettings() *config.Settings {
	s, err := config.Load()
	if err != nil {
		verboseLog("settings load failed, using defaults: %v", err)
		return config.DefaultSettings()
	}
	return s
}

// newClient builds a WMS client from the endpoint flag, falling back to the
// configured default endpoint.
func newClient(endpoint string, s *config.Settings) *wms.Client {
	if endpoint == "" {
		endpoint = s.Endpoint
	}
	return wms.NewClient(endpoint, time.Duration(s.RequestTimeoutSec)*time.Second)
}

// parseBBox parses "minLon,minLat,maxLon,maxLat".
func parseBBox(s string) (grid.BoundingBox, error) {
	parts := strings.Split(s, ",")
	if len(parts) != 4 {
		return grid.BoundingBox{}, fmt.Errorf("bbox must be minLon,minLat,maxLon,maxLat, got %q", s)
	}
	vals := make([]float64, 4)
	for i, p := range parts {
		v, err := strconv.ParseFloat(strings.TrimSpace(p), 64)
		if err != nil {
			return grid.BoundingBox{}, fmt.Errorf("invalid bbox coordinate %q: %w", p, err)
		}
		vals[i] = v
	}
	b := grid.BoundingBox{MinX: vals[0], MinY: vals[1], MaxX: vals[2], MaxY: vals[3]}
	if err := b.Validate(); err != nil {
		return grid.BoundingBox{}, err
	}
	return b, nil
}

// resolveLayer fetches capabilities and resolves the requested layer, its
// CRS (preferring EPSG:4326) and a GetMap format.
func resolveLayer(cmd *cobra.Command, client *wms.Client, layerName, format string) (*wms.Layer, string, string, error) {
	caps, err := client.GetCapabilities(cmd.Context())
	if err != nil {
		return nil, "", "", err
	}
	layer, err := caps.LayerByName(layerName)
	if err != nil {
		return nil, "", "", err
	}
	crs := layer.PreferredCRS()
	if crs == "" {
		return nil, "", "", fmt.Errorf("layer %q advertises no coordinate reference system", layerName)
	}
	if format == "" {
		format = "image/png"
		if len(caps.MapFormats) > 0 {
			format = caps.MapFormats[0]
			for _, f := range caps.MapFormats {
				if f == "image/png" {
					format = f
					break
				}
			}
		}
	}
	verboseLog("layer %s: crs=%s format=%s wms=%s", layerName, crs, format, client.Version())
	return layer, crs, format, nil
}
