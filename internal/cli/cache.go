package cli

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"wms-tiler/internal/cache"
	"wms-tiler/internal/config"
)

// NewCacheCommand creates the "cache" command group for persistent tile
// cache maintenance.
func NewCacheCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "cache",
		Short: "Inspect or clear the persistent tile cache",
	}
	cmd.AddCommand(newCacheStatsCommand())
	cmd.AddCommand(newCacheClearCommand())
	return cmd
}

func newCacheStatsCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "stats",
		Short: "Show tile cache size and entry count",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			store, err := openStore()
			if err != nil {
				return err
			}
			defer store.Close()

			entries, sizeBytes, maxBytes := store.Stats()
			if jsonOutput {
				out := map[string]interface{}{
					"dir":       store.Dir(),
					"entries":   entries,
					"sizeBytes": sizeBytes,
					"maxBytes":  maxBytes,
				}
				enc := json.NewEncoder(os.Stdout)
				enc.SetIndent("", "  ")
				return enc.Encode(out)
			}
			fmt.Printf("Cache directory: %s\n", store.Dir())
			fmt.Printf("Entries: %d\n", entries)
			fmt.Printf("Size: %.1f MB of %.1f MB\n",
				float64(sizeBytes)/(1024*1024), float64(maxBytes)/(1024*1024))
			return nil
		},
	}
}

func newCacheClearCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "clear",
		Short: "Delete all cached tiles",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			store, err := openStore()
			if err != nil {
				return err
			}
			defer store.Close()

			if err := store.Clear(); err != nil {
				return err
			}
			if !jsonOutput {
				fmt.Println("Tile cache cleared")
			}
			return nil
		},
	}
}

func openStore() (*cache.Store, error) {
	settings := loadSettings()
	return cache.NewStore(config.CacheDir(), settings.CacheMaxSizeMB, settings.CacheTTLDays)
}
