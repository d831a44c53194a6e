// Package imagery fetches raster and terrain tile payloads over HTTP.
package imagery

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"image"
	_ "image/jpeg"
	_ "image/png"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	_ "golang.org/x/image/webp"

	"github.com/handaome/three-earth/pkg/slippy"
)

// ErrBadStatus reports a non-2xx tile server response.
var ErrBadStatus = errors.New("imagery: bad response status")

// ErrNotRaster reports a payload that does not decode as a known image
// format.
var ErrNotRaster = errors.New("imagery: payload is not a raster image")

// Source retrieves the payload for one tile coordinate.
type Source interface {
	Fetch(ctx context.Context, coord slippy.TileCoord) ([]byte, error)
}

func expandTemplate(tpl string, coord slippy.TileCoord) string {
	r := strings.NewReplacer(
		"{z}", strconv.Itoa(coord.Z),
		"{x}", strconv.Itoa(coord.X),
		"{y}", strconv.Itoa(coord.Y),
	)
	return r.Replace(tpl)
}

func get(ctx context.Context, client *http.Client, url, accept string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, err
	}
	if accept != "" {
		req.Header.Set("Accept", accept)
	}

	resp, err := client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, fmt.Errorf("%w: %s from %s", ErrBadStatus, resp.Status, url)
	}
	return io.ReadAll(resp.Body)
}

// TileSource fetches raster imagery from a slippy-map URL template with
// {z}/{x}/{y} placeholders. Payloads must decode as JPEG, PNG or WebP.
type TileSource struct {
	URLTemplate string
	AccessToken string
	Client      *http.Client
}

// NewTileSource creates a raster source for the given URL template.
func NewTileSource(urlTemplate, accessToken string) *TileSource {
	return &TileSource{
		URLTemplate: urlTemplate,
		AccessToken: accessToken,
		Client:      &http.Client{Timeout: 15 * time.Second},
	}
}

// Fetch downloads and validates the raster tile at coord.
func (s *TileSource) Fetch(ctx context.Context, coord slippy.TileCoord) ([]byte, error) {
	url := expandTemplate(s.URLTemplate, coord)
	if s.AccessToken != "" {
		sep := "?"
		if strings.Contains(url, "?") {
			sep = "&"
		}
		url += sep + "access_token=" + s.AccessToken
	}

	data, err := get(ctx, s.Client, url, "")
	if err != nil {
		return nil, err
	}
	if _, _, err := image.DecodeConfig(bytes.NewReader(data)); err != nil {
		return nil, fmt.Errorf("%w: tile %s: %v", ErrNotRaster, coord.Key(), err)
	}
	return data, nil
}

// TerrainSource fetches quantized-mesh terrain tiles.
type TerrainSource struct {
	URLTemplate string
	AccessToken string
	Client      *http.Client
}

// NewTerrainSource creates a terrain source for the given URL template.
func NewTerrainSource(urlTemplate, accessToken string) *TerrainSource {
	return &TerrainSource{
		URLTemplate: urlTemplate,
		AccessToken: accessToken,
		Client:      &http.Client{Timeout: 15 * time.Second},
	}
}

// Fetch downloads the terrain tile at coord. The Accept header asks for
// the quantized-mesh encoding, falling back to plain octet-stream.
func (s *TerrainSource) Fetch(ctx context.Context, coord slippy.TileCoord) ([]byte, error) {
	url := expandTemplate(s.URLTemplate, coord)
	if s.AccessToken != "" {
		sep := "?"
		if strings.Contains(url, "?") {
			sep = "&"
		}
		url += sep + "access_token=" + s.AccessToken
	}
	return get(ctx, s.Client, url,
		"application/vnd.quantized-mesh,application/octet-stream;q=0.9")
}
