package wms

import (
	"encoding/xml"
	"fmt"

	"wms-tiler/internal/grid"
)

// Layer represents a named, requestable WMS layer after capabilities parsing.
type Layer struct {
	Name       string           `json:"name"`
	Title      string           `json:"title"`
	Abstract   string           `json:"abstract,omitempty"`
	CRSOptions []string         `json:"crsOptions"`
	Bounds     grid.BoundingBox `json:"bounds"`
	HasBounds  bool             `json:"hasBounds"`
}

// Capabilities holds the parsed server metadata both WMS versions reduce to.
type Capabilities struct {
	Version    string
	Title      string
	Layers     []Layer
	MapFormats []string
}

// PreferredCRS picks a coordinate reference system for a layer. EPSG:4326 is
// used when the server offers it, otherwise the layer's first option.
func (l *Layer) PreferredCRS() string {
	for _, crs := range l.CRSOptions {
		if crs == "EPSG:4326" {
			return crs
		}
	}
	if len(l.CRSOptions) > 0 {
		return l.CRSOptions[0]
	}
	return ""
}

// LayerByName looks up a layer by its requestable name.
func (c *Capabilities) LayerByName(name string) (*Layer, error) {
	for i := range c.Layers {
		if c.Layers[i].Name == name {
			return &c.Layers[i], nil
		}
	}
	return nil, fmt.Errorf("layer %q not found in capabilities", name)
}

// XML structures shared by WMS 1.3.0 (WMS_Capabilities) and 1.1.1
// (WMT_MS_Capabilities). Element names that differ between versions are both
// declared and merged during flattening: 1.3.0 uses CRS and
// EX_GeographicBoundingBox, 1.1.1 uses SRS and LatLonBoundingBox.
type xmlCapabilities struct {
	XMLName xml.Name
	Version string     `xml:"version,attr"`
	Service xmlService `xml:"Service"`
	Cap     struct {
		Request struct {
			GetMap struct {
				Formats []string `xml:"Format"`
			} `xml:"GetMap"`
		} `xml:"Request"`
		Layer []xmlLayer `xml:"Layer"`
	} `xml:"Capability"`
}

type xmlService struct {
	Title string `xml:"Title"`
}

type xmlLayer struct {
	Name     string   `xml:"Name"`
	Title    string   `xml:"Title"`
	Abstract string   `xml:"Abstract"`
	CRS      []string `xml:"CRS"`
	SRS      []string `xml:"SRS"`

	GeoBox *struct {
		West  float64 `xml:"westBoundLongitude"`
		East  float64 `xml:"eastBoundLongitude"`
		South float64 `xml:"southBoundLatitude"`
		North float64 `xml:"northBoundLatitude"`
	} `xml:"EX_GeographicBoundingBox"`

	LatLonBox *struct {
		MinX float64 `xml:"minx,attr"`
		MinY float64 `xml:"miny,attr"`
		MaxX float64 `xml:"maxx,attr"`
		MaxY float64 `xml:"maxy,attr"`
	} `xml:"LatLonBoundingBox"`

	Layers []xmlLayer `xml:"Layer"`
}

// ParseCapabilities parses a GetCapabilities response body. Both WMS 1.3.0
// and 1.1.1 documents are accepted; the version is taken from the root
// element's version attribute.
func ParseCapabilities(data []byte) (*Capabilities, error) {
	var doc xmlCapabilities
	if err := xml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("failed to parse capabilities XML: %w", err)
	}

	switch doc.XMLName.Local {
	case "WMS_Capabilities", "WMT_MS_Capabilities":
	default:
		return nil, fmt.Errorf("unexpected root element %q: not a WMS capabilities document", doc.XMLName.Local)
	}

	caps := &Capabilities{
		Version:    doc.Version,
		Title:      doc.Service.Title,
		MapFormats: doc.Cap.Request.GetMap.Formats,
	}

	for _, top := range doc.Cap.Layer {
		flattenLayers(top, nil, &caps.Layers)
	}

	if len(caps.Layers) == 0 {
		return nil, fmt.Errorf("no requestable layers found in capabilities")
	}

	return caps, nil
}

// flattenLayers walks the nested layer tree. WMS layers inherit CRS options
// and bounding boxes from their ancestors; only named layers are requestable.
func flattenLayers(l xmlLayer, inheritedCRS []string, out *[]Layer) {
	crs := append(append([]string{}, inheritedCRS...), l.CRS...)
	crs = append(crs, l.SRS...)
	crs = dedupe(crs)

	if l.Name != "" {
		layer := Layer{
			Name:       l.Name,
			Title:      l.Title,
			Abstract:   l.Abstract,
			CRSOptions: crs,
		}
		if l.GeoBox != nil {
			layer.Bounds = grid.BoundingBox{
				MinX: l.GeoBox.West,
				MinY: l.GeoBox.South,
				MaxX: l.GeoBox.East,
				MaxY: l.GeoBox.North,
			}
			layer.HasBounds = true
		} else if l.LatLonBox != nil {
			layer.Bounds = grid.BoundingBox{
				MinX: l.LatLonBox.MinX,
				MinY: l.LatLonBox.MinY,
				MaxX: l.LatLonBox.MaxX,
				MaxY: l.LatLonBox.MaxY,
			}
			layer.HasBounds = true
		}
		*out = append(*out, layer)
	}

	for _, child := range l.Layers {
		flattenLayers(child, crs, out)
	}
}

func dedupe(values []string) []string {
	seen := make(map[string]bool, len(values))
	result := values[:0]
	for _, v := range values {
		if v == "" || seen[v] {
			continue
		}
		seen[v] = true
		result = append(result, v)
	}
	return result
}
