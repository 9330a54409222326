// Package ota implements the firmware update lifecycle: check the configured
// source, apply a newer image atomically, report the outcome, repeat on a
// fixed cadence.
package ota

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"
)

// ErrNoUpdate is the source's explicit "no newer version" indication. It is a
// normal outcome, not a failure.
var ErrNoUpdate = errors.New("ota: no newer firmware available")

// Source is the update-source capability: one request that yields a new image
// stream, ErrNoUpdate, or an error.
type Source interface {
	Fetch(ctx context.Context) (io.ReadCloser, error)
}

const fetchTimeout = 30 * time.Second

// versionHeader carries the running firmware version so the source can answer
// "no newer version".
const versionHeader = "X-Firmware-Version"

// HTTPSource fetches the image over HTTP(S). A 304 response, or a 404 from
// sources that simply have no image staged, maps to ErrNoUpdate.
type HTTPSource struct {
	url     string
	version string
	client  *http.Client
}

// NewHTTPSource builds a source for the given image URL, reporting the given
// running version.
func NewHTTPSource(url, version string) *HTTPSource {
	return &HTTPSource{url: url, version: version, client: &http.Client{Timeout: fetchTimeout}}
}

func (s *HTTPSource) Fetch(ctx context.Context) (io.ReadCloser, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.url, nil)
	if err != nil {
		return nil, fmt.Errorf("build update request: %w", err)
	}
	req.Header.Set(versionHeader, s.version)

	resp, err := s.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetch firmware: %w", err)
	}

	switch resp.StatusCode {
	case http.StatusOK:
		return resp.Body, nil
	case http.StatusNotModified, http.StatusNotFound:
		resp.Body.Close()
		return nil, ErrNoUpdate
	default:
		resp.Body.Close()
		return nil, fmt.Errorf("update source returned status %d", resp.StatusCode)
	}
}
