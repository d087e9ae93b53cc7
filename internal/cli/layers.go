package cli

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"wms-tiler/internal/wms"
)

// NewLayersCommand creates the "layers" command: GetCapabilities and list
// what the endpoint offers.
func NewLayersCommand() *cobra.Command {
	var endpoint string

	cmd := &cobra.Command{
		Use:   "layers",
		Short: "List the layers a WMS endpoint offers",
		Long: `Fetch the endpoint's capabilities document and list its named layers with
their title, coordinate reference systems and advertised bounding box.

Examples:
  wms-tiler layers --url http://webmap.lroc.asu.edu/
  wms-tiler layers --json`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			settings := loadSettings()
			client := newClient(endpoint, settings)
			verboseLog("fetching capabilities from %s", client.Endpoint())

			caps, err := client.GetCapabilities(cmd.Context())
			if err != nil {
				return err
			}
			return printLayers(caps)
		},
	}

	cmd.Flags().StringVar(&endpoint, "url", "", "WMS endpoint URL (default from settings)")

	return cmd
}

func printLayers(caps *wms.Capabilities) error {
	if jsonOutput {
		out := struct {
			Version    string      `json:"version"`
			Title      string      `json:"title"`
			MapFormats []string    `json:"mapFormats"`
			Layers     []wms.Layer `json:"layers"`
		}{caps.Version, caps.Title, caps.MapFormats, caps.Layers}
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(out)
	}

	fmt.Printf("%s (WMS %s)\n", caps.Title, caps.Version)
	fmt.Printf("GetMap formats: %s\n\n", strings.Join(caps.MapFormats, ", "))

	tw := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "NAME\tTITLE\tCRS\tBOUNDS")
	for _, l := range caps.Layers {
		bounds := "-"
		if l.HasBounds {
			bounds = l.Bounds.String()
		}
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\n", l.Name, l.Title, strings.Join(l.CRSOptions, ","), bounds)
	}
	return tw.Flush()
}
