package tile

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/rs/zerolog"
)

// ErrUpstream is returned when the map-data API does not deliver a tile.
var ErrUpstream = errors.New("upstream map-data request failed")

// DefaultBaseURL is the public OSM editing API.
const DefaultBaseURL = "https://api.openstreetmap.org"

// Fetcher downloads the raw OSM XML for a tile and writes it to w.
type Fetcher interface {
	Fetch(ctx context.Context, id ID, w io.Writer) (int64, error)
}

// HTTPDoer abstracts HTTP request execution so the resilient client can be
// injected.
type HTTPDoer interface {
	Do(req *http.Request) (*http.Response, error)
}

// FetcherConfig holds configuration for HTTPFetcher.
type FetcherConfig struct {
	// BaseURL is the API root; the bbox map call is appended to it.
	BaseURL string

	// HTTPClient executes requests. Defaults to an http.Client with Timeout.
	HTTPClient HTTPDoer

	// Timeout applies only to the default client.
	Timeout time.Duration

	Logger zerolog.Logger
}

// HTTPFetcher queries the OSM API 0.6 map call with the tile's bounding box.
type HTTPFetcher struct {
	baseURL    string
	httpClient HTTPDoer
	logger     zerolog.Logger
}

// NewHTTPFetcher creates a fetcher against cfg.BaseURL.
func NewHTTPFetcher(cfg FetcherConfig) *HTTPFetcher {
	if cfg.BaseURL == "" {
		cfg.BaseURL = DefaultBaseURL
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = 60 * time.Second
	}
	if cfg.HTTPClient == nil {
		cfg.HTTPClient = &http.Client{Timeout: cfg.Timeout}
	}

	return &HTTPFetcher{
		baseURL:    strings.TrimRight(cfg.BaseURL, "/"),
		httpClient: cfg.HTTPClient,
		logger:     cfg.Logger,
	}
}

// URL returns the request URL for a tile.
func (f *HTTPFetcher) URL(id ID) string {
	b := id.Bound()
	return fmt.Sprintf("%s/api/0.6/map?bbox=%.7f,%.7f,%.7f,%.7f",
		f.baseURL, b.Left(), b.Bottom(), b.Right(), b.Top())
}

// Fetch performs one GET for the tile and copies the body to w verbatim.
func (f *HTTPFetcher) Fetch(ctx context.Context, id ID, w io.Writer) (int64, error) {
	url := f.URL(id)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, http.NoBody)
	if err != nil {
		return 0, fmt.Errorf("%w: build request: %w", ErrUpstream, err)
	}
	req.Header.Set("Accept", "application/xml, text/xml")

	f.logger.Debug().Str("tile", id.String()).Str("url", url).Msg("fetching tile")

	resp, err := f.httpClient.Do(req)
	if err != nil {
		return 0, fmt.Errorf("%w: %w", ErrUpstream, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 4096))
		return 0, fmt.Errorf("%w: status %d", ErrUpstream, resp.StatusCode)
	}

	n, err := io.Copy(w, resp.Body)
	if err != nil {
		return n, fmt.Errorf("%w: read body: %w", ErrUpstream, err)
	}
	return n, nil
}
