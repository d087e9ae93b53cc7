package server

import (
	"html/template"
	"net/http"
)

var indexTemplate = template.Must(template.New("index").Parse(`<!DOCTYPE html>
<html>
<head>
  <meta charset="utf-8">
  <title>{{.Layer}}</title>
  <meta name="viewport" content="width=device-width, initial-scale=1.0">
  <link rel="stylesheet" href="https://unpkg.com/leaflet@1.9.4/dist/leaflet.css">
  <script src="https://unpkg.com/leaflet@1.9.4/dist/leaflet.js"></script>
  <style>
    html, body, #map { height: 100%; margin: 0; }
  </style>
</head>
<body>
  <div id="map"></div>
  <script>
    var map = L.map('map', {
      {{if .Geographic}}crs: L.CRS.EPSG4326,{{end}}
      center: [0, 0],
      zoom: 2
    });
    L.tileLayer('/tiles/{z}/{x}/{y}', {
      attribution: '{{.Layer}}',
      tileSize: {{.TileSize}},
      maxZoom: {{.MaxZoom}},
      noWrap: true
    }).addTo(map);
  </script>
</body>
</html>
`))

func (s *Server) handleIndex(w http.ResponseWriter, r *http.Request) {
	if r.URL.Path != "/" {
		http.NotFound(w, r)
		return
	}
	data := struct {
		Layer      string
		TileSize   int
		MaxZoom    int
		Geographic bool
	}{
		Layer:      s.opts.Layer,
		TileSize:   s.opts.TileSize,
		MaxZoom:    12,
		Geographic: s.opts.CRS == "EPSG:4326" || s.opts.CRS == "CRS:84",
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	if err := indexTemplate.Execute(w, data); err != nil {
		http.Error(w, "Failed to render page", http.StatusInternalServerError)
	}
}
