package server

import (
	"fmt"
	"log"
	"net/http"
	"strconv"
	"strings"

	"github.com/paulmach/orb/maptile"

	"wms-tiler/internal/grid"
	"wms-tiler/internal/utils/naming"
	"wms-tiler/internal/wms"
)

// handleTile serves one map tile.
// URL format: /tiles/{z}/{x}/{y}
func (s *Server) handleTile(w http.ResponseWriter, r *http.Request) {
	path := strings.TrimPrefix(r.URL.Path, "/tiles/")
	parts := strings.Split(strings.TrimSuffix(path, "/"), "/")
	if len(parts) != 3 {
		http.Error(w, "Invalid URL format. Expected: /tiles/{z}/{x}/{y}", http.StatusBadRequest)
		return
	}

	z, err := strconv.Atoi(parts[0])
	if err != nil || z < 0 || z > grid.MaxTileZoom {
		http.Error(w, "Invalid zoom level", http.StatusBadRequest)
		return
	}
	x, err := strconv.Atoi(parts[1])
	if err != nil || x < 0 {
		http.Error(w, "Invalid X coordinate", http.StatusBadRequest)
		return
	}
	// Leaflet can append a file extension to the Y coordinate.
	yPart := parts[2]
	if i := strings.IndexByte(yPart, '.'); i >= 0 {
		yPart = yPart[:i]
	}
	y, err := strconv.Atoi(yPart)
	if err != nil || y < 0 {
		http.Error(w, "Invalid Y coordinate", http.StatusBadRequest)
		return
	}

	key := fmt.Sprintf("%s:%s:%d:%d:%d", s.opts.Layer, s.opts.CRS, z, x, y)

	if data, ok := s.hot.Get(key); ok {
		s.writeTile(w, data, "HIT")
		return
	}

	if s.store != nil {
		if data, ok := s.store.Get(s.opts.Layer, s.opts.CRS, z, x, y); ok {
			s.hot.Add(key, data)
			s.writeTile(w, data, "HIT")
			return
		}
	}

	// Cache miss. Bound the number of in-flight upstream requests so a
	// fast-panning map client cannot flood the WMS endpoint.
	if err := s.upstream.Acquire(r.Context(), 1); err != nil {
		s.serveTransparentTile(w)
		return
	}
	data, err := s.fetchTile(r, z, x, y)
	s.upstream.Release(1)
	if err != nil {
		log.Printf("[TileServer] z=%d x=%d y=%d: %v", z, x, y, err)
		s.serveTransparentTile(w)
		return
	}

	s.hot.Add(key, data)
	if s.store != nil {
		ext := naming.FormatExtension(s.opts.Format)
		if err := s.store.Set(s.opts.Layer, s.opts.CRS, z, x, y, ext, data); err != nil {
			log.Printf("[TileServer] cache write failed: %v", err)
		}
	}
	s.writeTile(w, data, "MISS")
}

func (s *Server) fetchTile(r *http.Request, z, x, y int) ([]byte, error) {
	b := s.tileBounds(z, x, y)
	req := wms.TileRequest{
		Layer:  s.opts.Layer,
		CRS:    s.opts.CRS,
		Bounds: b,
		Width:  s.opts.TileSize,
		Height: s.opts.TileSize,
		Format: s.opts.Format,
	}
	return s.client.GetMap(r.Context(), req)
}

// tileBounds maps slippy tile coordinates to geographic bounds. Geographic
// layers use the plate carree grid Leaflet's EPSG4326 CRS expects (two
// root tiles, 180 degrees per tile at zoom 0); everything else uses the
// Web Mercator grid.
func (s *Server) tileBounds(z, x, y int) grid.BoundingBox {
	if s.opts.CRS == "EPSG:4326" || s.opts.CRS == "CRS:84" {
		deg := 180.0 / float64(int(1)<<z)
		return grid.BoundingBox{
			MinX: -180 + float64(x)*deg,
			MaxX: -180 + float64(x+1)*deg,
			MinY: 90 - float64(y+1)*deg,
			MaxY: 90 - float64(y)*deg,
		}
	}
	return grid.TileGeoBounds(maptile.New(uint32(x), uint32(y), maptile.Zoom(z)))
}

func (s *Server) writeTile(w http.ResponseWriter, data []byte, status string) {
	w.Header().Set("Content-Type", s.opts.Format)
	w.Header().Set("Cache-Control", "max-age=86400")
	w.Header().Set("X-Cache-Status", status)
	w.Write(data)
}

// serveTransparentTile serves a 1x1 transparent PNG for tiles that could
// not be fetched, so the map client renders a gap instead of a broken tile.
func (s *Server) serveTransparentTile(w http.ResponseWriter) {
	transparentPNG := []byte{
		0x89, 0x50, 0x4e, 0x47, 0x0d, 0x0a, 0x1a, 0x0a, 0x00, 0x00, 0x00, 0x0d,
		0x49, 0x48, 0x44, 0x52, 0x00, 0x00, 0x01, 0x00, 0x00, 0x00, 0x01, 0x00,
		0x01, 0x03, 0x00, 0x00, 0x00, 0x66, 0xbc, 0x3a, 0x25, 0x00, 0x00, 0x00,
		0x03, 0x50, 0x4c, 0x54, 0x45, 0x00, 0x00, 0x00, 0xa7, 0x7a, 0x3d, 0xda,
		0x00, 0x00, 0x00, 0x01, 0x74, 0x52, 0x4e, 0x53, 0x00, 0x40, 0xe6, 0xd8,
		0x66, 0x00, 0x00, 0x00, 0x1f, 0x49, 0x44, 0x41, 0x54, 0x68, 0xde, 0xed,
		0xc1, 0x01, 0x0d, 0x00, 0x00, 0x00, 0xc2, 0xa0, 0xf7, 0x4f, 0x6d, 0x0e,
		0x37, 0xa0, 0x00, 0x00, 0x00, 0x00, 0x00, 0x00, 0x00, 0x00, 0xbe, 0x0d,
		0x21, 0x00, 0x00, 0x01, 0x9a, 0x60, 0xe1, 0xd5, 0x00, 0x00, 0x00, 0x00,
		0x49, 0x45, 0x4e, 0x44, 0xae, 0x42, 0x60, 0x82,
	}
	w.Header().Set("Content-Type", "image/png")
	w.Header().Set("Cache-Control", "max-age=3600")
	w.Write(transparentPNG)
}
