// Command wms-tiler downloads tile grids and metadata from WMS endpoints.
package main

import (
	"wms-tiler/internal/cli"
)

// version is set by the release build via ldflags.
var version = "dev"

func main() {
	cli.Version = version
	rootCmd := cli.NewRootCommand()
	cli.Execute(rootCmd)
}
