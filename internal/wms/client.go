package wms

import (
	"context"
	"encoding/xml"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"wms-tiler/internal/grid"
)

const (
	// User agent sent on every request. Some public WMS servers reject the
	// default Go client string.
	UserAgent = "Mozilla/5.0 (Macintosh; Intel Mac OS X 10_15_7) AppleWebKit/537.36"

	DefaultTimeout = 30 * time.Second
)

// TileRequest describes one GetMap call. Immutable once constructed.
type TileRequest struct {
	Layer  string
	CRS    string
	Bounds grid.BoundingBox
	Width  int
	Height int
	Format string
}

// Validate rejects requests that would fail before reaching the network.
func (r TileRequest) Validate() error {
	if r.Layer == "" {
		return fmt.Errorf("layer name is required")
	}
	if r.CRS == "" {
		return fmt.Errorf("CRS is required")
	}
	if r.Width <= 0 || r.Height <= 0 {
		return fmt.Errorf("image size must be positive, got %dx%d", r.Width, r.Height)
	}
	if r.Format == "" {
		return fmt.Errorf("image format is required")
	}
	return r.Bounds.Validate()
}

// Client talks to a single WMS endpoint.
type Client struct {
	endpoint   string
	version    string
	httpClient *http.Client
}

// NewClient creates a client for the endpoint. The reported capabilities
// version later overrides the default request version.
func NewClient(endpoint string, timeout time.Duration) *Client {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	transport := &http.Transport{
		Proxy: http.ProxyFromEnvironment,
	}
	return &Client{
		endpoint: strings.TrimRight(endpoint, "?&"),
		version:  "1.3.0",
		httpClient: &http.Client{
			Timeout:   timeout,
			Transport: transport,
		},
	}
}

// Endpoint returns the configured endpoint URL.
func (c *Client) Endpoint() string { return c.endpoint }

// Version returns the negotiated WMS version.
func (c *Client) Version() string { return c.version }

// GetCapabilities fetches and parses the server's capabilities document.
// A failure here is a ConnectionError: the endpoint is unreachable or is not
// a WMS server.
func (c *Client) GetCapabilities(ctx context.Context) (*Capabilities, error) {
	reqURL, err := c.buildURL(map[string]string{
		"service": "WMS",
		"request": "GetCapabilities",
	})
	if err != nil {
		return nil, &ConnectionError{Endpoint: c.endpoint, Err: err}
	}

	data, _, err := c.fetch(ctx, reqURL)
	if err != nil {
		return nil, &ConnectionError{Endpoint: c.endpoint, Err: err}
	}

	caps, err := ParseCapabilities(data)
	if err != nil {
		return nil, &ConnectionError{Endpoint: c.endpoint, Err: err}
	}

	if caps.Version != "" {
		c.version = caps.Version
	}
	return caps, nil
}

// GetMap fetches a rendered map image for one tile request. Rejections are
// RequestErrors so the download loop can skip the tile and continue.
func (c *Client) GetMap(ctx context.Context, req TileRequest) ([]byte, error) {
	if err := req.Validate(); err != nil {
		return nil, &RequestError{Layer: req.Layer, Err: err}
	}

	reqURL, err := c.GetMapURL(req)
	if err != nil {
		return nil, &RequestError{Layer: req.Layer, Err: err}
	}

	data, contentType, err := c.fetch(ctx, reqURL)
	if err != nil {
		var reqErr *RequestError
		if errors.As(err, &reqErr) {
			reqErr.Layer = req.Layer
			return nil, reqErr
		}
		return nil, &RequestError{Layer: req.Layer, Err: err}
	}

	// WMS servers report per-request failures as XML service exceptions with
	// HTTP 200; only the content type gives them away.
	if strings.Contains(contentType, "xml") {
		return nil, &RequestError{
			Layer:   req.Layer,
			Message: parseServiceException(data),
		}
	}

	return data, nil
}

// GetMapURL builds the GetMap request URL for the client's negotiated
// version. WMS 1.1.1 uses the SRS parameter with bbox in lon/lat order;
// 1.3.0 uses CRS and flips the axis order for EPSG:4326.
func (c *Client) GetMapURL(req TileRequest) (string, error) {
	params := map[string]string{
		"service": "WMS",
		"request": "GetMap",
		"version": c.version,
		"layers":  req.Layer,
		"styles":  "",
		"width":   strconv.Itoa(req.Width),
		"height":  strconv.Itoa(req.Height),
		"format":  req.Format,
	}

	b := req.Bounds
	if c.version == "1.3.0" {
		params["crs"] = req.CRS
		if req.CRS == "EPSG:4326" {
			// 1.3.0 honors the EPSG axis definition: latitude first.
			params["bbox"] = fmt.Sprintf("%f,%f,%f,%f", b.MinY, b.MinX, b.MaxY, b.MaxX)
		} else {
			params["bbox"] = b.String()
		}
	} else {
		params["srs"] = req.CRS
		params["bbox"] = b.String()
	}

	return c.buildURL(params)
}

func (c *Client) buildURL(params map[string]string) (string, error) {
	u, err := url.Parse(c.endpoint)
	if err != nil {
		return "", fmt.Errorf("invalid endpoint URL: %w", err)
	}
	q := u.Query()
	for k, v := range params {
		q.Set(k, v)
	}
	u.RawQuery = q.Encode()
	return u.String(), nil
}

func (c *Client) fetch(ctx context.Context, reqURL string) (data []byte, contentType string, err error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return nil, "", fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("User-Agent", UserAgent)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, "", err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, "", &RequestError{Status: resp.StatusCode}
	}

	data, err = io.ReadAll(resp.Body)
	if err != nil {
		return nil, "", fmt.Errorf("failed to read response: %w", err)
	}

	return data, resp.Header.Get("Content-Type"), nil
}

// Service exception documents differ slightly between versions but both
// carry ServiceException elements under the report root.
type serviceExceptionReport struct {
	Exceptions []struct {
		Code    string `xml:"code,attr"`
		Message string `xml:",chardata"`
	} `xml:"ServiceException"`
}

func parseServiceException(data []byte) string {
	var report serviceExceptionReport
	if err := xml.Unmarshal(data, &report); err != nil || len(report.Exceptions) == 0 {
		return "server returned an XML response instead of an image"
	}

	var parts []string
	for _, e := range report.Exceptions {
		msg := strings.TrimSpace(e.Message)
		if e.Code != "" {
			msg = e.Code + ": " + msg
		}
		if msg != "" {
			parts = append(parts, msg)
		}
	}
	if len(parts) == 0 {
		return "server returned a service exception"
	}
	return strings.Join(parts, "; ")
}
