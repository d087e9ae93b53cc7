package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
)

// Settings holds persistent user preferences. Loaded once at startup and
// overridable per-invocation by CLI flags.
type Settings struct {
	// WMS defaults
	Endpoint    string `json:"endpoint"`
	DefaultZoom int    `json:"defaultZoom"`

	// Tile request defaults
	TileWidth  int    `json:"tileWidth"`
	TileHeight int    `json:"tileHeight"`
	PlanetBody string `json:"planetBody"` // "moon", "earth", "mars"

	// Preview
	PreviewGridSize int `json:"previewGridSize"`

	// Output
	OutputDir  string `json:"outputDir"`
	PreviewDir string `json:"previewDir"`

	// Cache
	CacheMaxSizeMB int `json:"cacheMaxSizeMB"`
	CacheTTLDays   int `json:"cacheTTLDays"`

	// Network
	RequestTimeoutSec int `json:"requestTimeoutSec"`

	// Preview tile server
	ServerPort            int `json:"serverPort"`
	ServerUpstreamLimit   int `json:"serverUpstreamLimit"`
	ServerHotCacheEntries int `json:"serverHotCacheEntries"`
}

// DefaultSettings returns the defaults applied when no settings file exists.
// The default endpoint is the LROC lunar imagery server the tool was built
// around.
func DefaultSettings() *Settings {
	return &Settings{
		Endpoint:              "http://webmap.lroc.asu.edu/",
		DefaultZoom:           5,
		TileWidth:             512,
		TileHeight:            512,
		PlanetBody:            "moon",
		PreviewGridSize:       3,
		OutputDir:             "datasets",
		PreviewDir:            "preview",
		CacheMaxSizeMB:        250,
		CacheTTLDays:          30,
		RequestTimeoutSec:     30,
		ServerPort:            45123,
		ServerUpstreamLimit:   4,
		ServerHotCacheEntries: 256,
	}
}

// SettingsPath returns the settings file location under the user's home
// directory.
func SettingsPath() string {
	homeDir, _ := os.UserHomeDir()
	return filepath.Join(homeDir, ".wms-tiler", "settings.json")
}

// Load reads settings from disk, returning defaults when the file does not
// exist. Missing fields are merged with defaults so older settings files
// keep working after new fields are added.
func Load() (*Settings, error) {
	return loadFrom(SettingsPath())
}

func loadFrom(path string) (*Settings, error) {
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return DefaultSettings(), nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read settings file: %w", err)
	}

	var s Settings
	if err := json.Unmarshal(data, &s); err != nil {
		return nil, fmt.Errorf("failed to parse settings: %w", err)
	}

	defaults := DefaultSettings()
	if s.Endpoint == "" {
		s.Endpoint = defaults.Endpoint
	}
	if s.DefaultZoom == 0 {
		s.DefaultZoom = defaults.DefaultZoom
	}
	if s.TileWidth == 0 {
		s.TileWidth = defaults.TileWidth
	}
	if s.TileHeight == 0 {
		s.TileHeight = defaults.TileHeight
	}
	if s.PlanetBody == "" {
		s.PlanetBody = defaults.PlanetBody
	}
	if s.PreviewGridSize == 0 {
		s.PreviewGridSize = defaults.PreviewGridSize
	}
	if s.OutputDir == "" {
		s.OutputDir = defaults.OutputDir
	}
	if s.PreviewDir == "" {
		s.PreviewDir = defaults.PreviewDir
	}
	if s.CacheMaxSizeMB == 0 {
		s.CacheMaxSizeMB = defaults.CacheMaxSizeMB
	}
	if s.CacheTTLDays == 0 {
		s.CacheTTLDays = defaults.CacheTTLDays
	}
	if s.RequestTimeoutSec == 0 {
		s.RequestTimeoutSec = defaults.RequestTimeoutSec
	}
	if s.ServerPort == 0 {
		s.ServerPort = defaults.ServerPort
	}
	if s.ServerUpstreamLimit == 0 {
		s.ServerUpstreamLimit = defaults.ServerUpstreamLimit
	}
	if s.ServerHotCacheEntries == 0 {
		s.ServerHotCacheEntries = defaults.ServerHotCacheEntries
	}

	return &s, nil
}

// Save writes settings to disk, creating the directory if needed.
func Save(s *Settings) error {
	return saveTo(SettingsPath(), s)
}

func saveTo(path string, s *Settings) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("failed to create settings directory: %w", err)
	}

	data, err := json.MarshalIndent(s, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal settings: %w", err)
	}

	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write settings file: %w", err)
	}

	return nil
}

// CacheDir returns the persistent tile cache directory.
func CacheDir() string {
	homeDir, _ := os.UserHomeDir()
	return filepath.Join(homeDir, ".wms-tiler", "cache")
}
