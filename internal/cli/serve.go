package cli

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"wms-tiler/internal/cache"
	"wms-tiler/internal/config"
	"wms-tiler/internal/server"
)

type serveFlags struct {
	endpoint string
	layer    string
	format   string
	port     int
	noCache  bool
}

// NewServeCommand creates the "serve" command: a local tile server that
// proxies slippy-map requests to WMS GetMap.
func NewServeCommand() *cobra.Command {
	flags := &serveFlags{}

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve a WMS layer as slippy-map tiles for interactive browsing",
		Long: `Start a local HTTP server translating /tiles/{z}/{x}/{y} requests into WMS
GetMap calls for the layer, with in-memory and on-disk tile caching. Open
the printed URL in a browser for an interactive map.

Examples:
  wms-tiler serve --layer luna_wac_global
  wms-tiler serve --layer luna_wac_global --port 8080`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(cmd, flags)
		},
	}

	cmd.Flags().StringVar(&flags.endpoint, "url", "", "WMS endpoint URL (default from settings)")
	cmd.Flags().StringVar(&flags.layer, "layer", "", "WMS layer name (required)")
	cmd.Flags().StringVar(&flags.format, "format", "", "GetMap image format (default auto-detected)")
	cmd.Flags().IntVar(&flags.port, "port", 0, "Listen port (default from settings; 0 in settings picks a random port)")
	cmd.Flags().BoolVar(&flags.noCache, "no-cache", false, "Skip the persistent tile cache")
	_ = cmd.MarkFlagRequired("layer")

	return cmd
}

func runServe(cmd *cobra.Command, flags *serveFlags) error {
	settings := loadSettings()
	port := flags.port
	if port == 0 {
		port = settings.ServerPort
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
			store = nil
		} else {
			defer store.Close()
		}
	}

	srv, err := server.New(client, store, server.Options{
		Layer:           flags.layer,
		CRS:             crs,
		Format:          format,
		TileSize:        settings.TileWidth,
		Port:            port,
		UpstreamLimit:   int64(settings.ServerUpstreamLimit),
		HotCacheEntries: settings.ServerHotCacheEntries,
	})
	if err != nil {
		return err
	}
	if err := srv.Start(); err != nil {
		return err
	}
	fmt.Printf("Serving %s at %s\n", flags.layer, srv.URL())
	fmt.Println("Press Ctrl+C to stop")

	// Block until interrupted or the command context is cancelled.
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	select {
	case <-sigCh:
	case <-cmd.Context().Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}
