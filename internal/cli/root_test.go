package cli

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"wms-tiler/internal/grid"
	"wms-tiler/internal/wms"
)

// TestParseBBox accepts comma-separated lon/lat bounds and rejects
// malformed or degenerate input.
func TestParseBBox(t *testing.T) {
	b, err := parseBBox("-10,-5,10,5")
	require.NoError(t, err)
	assert.Equal(t, grid.BoundingBox{MinX: -10, MinY: -5, MaxX: 10, MaxY: 5}, b)

	b, err = parseBBox(" -10 , -5 , 10 , 5 ")
	require.NoError(t, err)
	assert.Equal(t, -10.0, b.MinX)

	_, err = parseBBox("1,2,3")
	assert.Error(t, err)
	_, err = parseBBox("a,b,c,d")
	assert.Error(t, err)
	_, err = parseBBox("10,-5,-10,5")
	assert.Error(t, err, "minX must be less than maxX")
}

// TestExitCode maps each error kind to its exit code.
func TestExitCode(t *testing.T) {
	assert.Equal(t, ExitConnectionError, exitCode(&wms.ConnectionError{Endpoint: "x"}))
	assert.Equal(t, ExitRequestError, exitCode(&wms.RequestError{Layer: "x"}))
	assert.Equal(t, ExitWriteError, exitCode(&wms.WriteError{Path: "x"}))
	assert.Equal(t, ExitGeneralError, exitCode(errors.New("other")))

	// Wrapped typed errors still map.
	wrapped := &wms.ConnectionError{Endpoint: "x", Err: errors.New("refused")}
	assert.Equal(t, ExitConnectionError, exitCode(wrapped))
}

// TestEpsgCode extracts numeric codes with a geographic fallback.
func TestEpsgCode(t *testing.T) {
	assert.Equal(t, 4326, epsgCode("EPSG:4326"))
	assert.Equal(t, 4326, epsgCode("CRS:84"))
	assert.Equal(t, 3857, epsgCode("EPSG:3857"))
	assert.Equal(t, 104903, epsgCode("EPSG:104903"))
	assert.Equal(t, 4326, epsgCode("weird"))
}

// TestNewRootCommand registers every subcommand.
func TestNewRootCommand(t *testing.T) {
	root := NewRootCommand()

	names := make(map[string]bool)
	for _, c := range root.Commands() {
		names[c.Name()] = true
	}
	for _, want := range []string{"layers", "preview", "download", "serve", "cache"} {
		assert.True(t, names[want], "missing %s command", want)
	}
}
