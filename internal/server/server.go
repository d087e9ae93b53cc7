// Package server runs a local slippy-map tile server that proxies a WMS
// layer. Each /tiles/{z}/{x}/{y} request is translated into a GetMap call
// for the tile's geographic bounds, so any XYZ-speaking map client can
// browse the layer interactively. Tiles are cached in memory and on disk.
package server

import (
	"context"
	"fmt"
	"log"
	"net"
	"net/http"

	lru "github.com/hashicorp/golang-lru/v2"
	"golang.org/x/sync/semaphore"

	"wms-tiler/internal/cache"
	"wms-tiler/internal/wms"
)

// Options configures a tile server.
type Options struct {
	Layer      string
	CRS        string
	Format     string
	TileSize   int
	Port       int // 0 picks a random port

	// UpstreamLimit caps concurrent GetMap requests to the WMS endpoint.
	UpstreamLimit int64
	// HotCacheEntries sizes the in-memory tile cache.
	HotCacheEntries int
}

// Server serves map tiles over HTTP, backed by a WMS client.
type Server struct {
	client    *wms.Client
	store     *cache.Store
	opts      Options
	hot       *lru.Cache[string, []byte]
	upstream  *semaphore.Weighted
	url       string
	httpSrv   *http.Server
}

// New creates a tile server. store may be nil to disable the disk cache.
func New(client *wms.Client, store *cache.Store, opts Options) (*Server, error) {
	if opts.Layer == "" {
		return nil, fmt.Errorf("layer name is required")
	}
	if opts.TileSize <= 0 {
		opts.TileSize = 256
	}
	if opts.UpstreamLimit <= 0 {
		opts.UpstreamLimit = 4
	}
	if opts.HotCacheEntries <= 0 {
		opts.HotCacheEntries = 256
	}
	hot, err := lru.New[string, []byte](opts.HotCacheEntries)
	if err != nil {
		return nil, err
	}
	return &Server{
		client:   client,
		store:    store,
		opts:     opts,
		hot:      hot,
		upstream: semaphore.NewWeighted(opts.UpstreamLimit),
	}, nil
}

// URL returns the base URL once the server has started.
func (s *Server) URL() string {
	return s.url
}

// corsMiddleware adds CORS headers so browser map clients on other origins
// can load tiles.
func corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Accept")

		if r.Method == "OPTIONS" {
			w.WriteHeader(http.StatusOK)
			return
		}

		next.ServeHTTP(w, r)
	})
}

// Start binds the listener and begins serving in a background goroutine.
func (s *Server) Start() error {
	mux := http.NewServeMux()
	mux.HandleFunc("/", s.handleIndex)
	mux.HandleFunc("/tiles/", s.handleTile)

	addr := fmt.Sprintf("127.0.0.1:%d", s.opts.Port)
	listener, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("failed to start tile server: %w", err)
	}

	port := listener.Addr().(*net.TCPAddr).Port
	s.url = fmt.Sprintf("http://127.0.0.1:%d", port)
	log.Printf("Tile server started on %s (layer=%s)", s.url, s.opts.Layer)

	s.httpSrv = &http.Server{
		Handler: corsMiddleware(mux),
	}

	go func() {
		if err := s.httpSrv.Serve(listener); err != nil && err != http.ErrServerClosed {
			log.Printf("Tile server stopped: %v", err)
		}
	}()

	return nil
}

// Shutdown stops the HTTP server.
func (s *Server) Shutdown(ctx context.Context) error {
	if s.httpSrv == nil {
		return nil
	}
	return s.httpSrv.Shutdown(ctx)
}
