package wms

import "fmt"

// ConnectionError indicates the endpoint was unreachable or did not respond
// like a WMS server. Raised at setup time; halts everything.
type ConnectionError struct {
	Endpoint string
	Err      error
}

func (e *ConnectionError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("cannot connect to WMS endpoint %s: %v", e.Endpoint, e.Err)
	}
	return fmt.Sprintf("cannot connect to WMS endpoint %s", e.Endpoint)
}

func (e *ConnectionError) Unwrap() error { return e.Err }

// RequestError indicates a single GetMap request was rejected by the server,
// for example an invalid layer or CRS. Per-tile: callers skip and continue.
type RequestError struct {
	Layer   string
	Status  int
	Message string
	Err     error
}

func (e *RequestError) Error() string {
	switch {
	case e.Message != "":
		return fmt.Sprintf("GetMap rejected for layer %q: %s", e.Layer, e.Message)
	case e.Status != 0:
		return fmt.Sprintf("GetMap failed for layer %q: HTTP %d", e.Layer, e.Status)
	default:
		return fmt.Sprintf("GetMap failed for layer %q: %v", e.Layer, e.Err)
	}
}

func (e *RequestError) Unwrap() error { return e.Err }

// WriteError indicates a local filesystem failure while persisting a tile or
// metadata row.
type WriteError struct {
	Path string
	Err  error
}

func (e *WriteError) Error() string {
	return fmt.Sprintf("failed to write %s: %v", e.Path, e.Err)
}

func (e *WriteError) Unwrap() error { return e.Err }
