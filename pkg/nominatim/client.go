// Package nominatim provides free-text address search against the OSM
// Nominatim API. The public instance allows at most one request per second,
// so every call waits on a built-in pacing limiter before going out.
package nominatim

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/rotisserie/eris"
	"golang.org/x/time/rate"

	"github.com/southlink/geosync/internal/resilience"
)

const defaultBaseURL = "https://nominatim.openstreetmap.org"

// Result holds the geocoding output for one address.
type Result struct {
	Lat     float64
	Lon     float64
	Matched bool
}

// Option configures the client.
type Option func(*Client)

// WithBaseURL overrides the default API base URL.
func WithBaseURL(u string) Option {
	return func(c *Client) {
		c.baseURL = u
	}
}

// WithHTTPClient sets a custom HTTP client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		c.httpClient = hc
	}
}

// WithCountryCodes restricts results to the given comma-separated ISO
// country codes.
func WithCountryCodes(codes string) Option {
	return func(c *Client) {
		c.countryCodes = codes
	}
}

// WithMinInterval sets the minimum spacing between consecutive requests.
// The spacing is enforced process-wide across all callers of this client.
func WithMinInterval(d time.Duration) Option {
	return func(c *Client) {
		if d > 0 {
			c.limiter = rate.NewLimiter(rate.Every(d), 1)
		}
	}
}

// WithUserAgent sets the User-Agent header. The public instance rejects
// requests without an identifying agent.
func WithUserAgent(ua string) Option {
	return func(c *Client) {
		c.userAgent = ua
	}
}

// WithTimeout sets the per-request timeout.
func WithTimeout(d time.Duration) Option {
	return func(c *Client) {
		if d > 0 {
			c.httpClient.Timeout = d
		}
	}
}

// Client is a Nominatim search client with built-in request pacing.
type Client struct {
	baseURL      string
	countryCodes string
	userAgent    string
	httpClient   *http.Client
	limiter      *rate.Limiter
}

// NewClient creates a Nominatim client with the default 1 req/s pacing.
func NewClient(opts ...Option) *Client {
	c := &Client{
		baseURL:      defaultBaseURL,
		countryCodes: "nz",
		userAgent:    "geosync/1.0",
		httpClient:   &http.Client{Timeout: 15 * time.Second},
		limiter:      rate.NewLimiter(rate.Every(time.Second), 1),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// searchItem is one entry of the Nominatim search response. Coordinates
// arrive as JSON strings.
type searchItem struct {
	Lat string `json:"lat"`
	Lon string `json:"lon"`
}

// Search geocodes a free-text address. An empty result set is reported as
// Matched: false, not as an error.
func (c *Client) Search(ctx context.Context, address string) (Result, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return Result{}, eris.Wrap(err, "nominatim: pacing wait")
	}

	params := url.Values{
		"q":      {address},
		"format": {"json"},
		"limit":  {"1"},
	}
	if c.countryCodes != "" {
		params.Set("countrycodes", c.countryCodes)
	}

	reqURL := c.baseURL + "/search?" + params.Encode()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return Result{}, eris.Wrap(err, "nominatim: build request")
	}
	req.Header.Set("User-Agent", c.userAgent)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return Result{}, eris.Wrap(err, "nominatim: request")
	}
	defer resp.Body.Close() //nolint:errcheck

	if resp.StatusCode != http.StatusOK {
		err := eris.Errorf("nominatim: unexpected status %d", resp.StatusCode)
		if resilience.IsTransientHTTPStatus(resp.StatusCode) {
			return Result{}, resilience.NewTransientError(err, resp.StatusCode)
		}
		return Result{}, err
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return Result{}, eris.Wrap(err, "nominatim: read body")
	}

	var items []searchItem
	if err := json.Unmarshal(body, &items); err != nil {
		return Result{}, eris.Wrap(err, "nominatim: parse response")
	}
	if len(items) == 0 {
		return Result{Matched: false}, nil
	}

	lat, err := strconv.ParseFloat(items[0].Lat, 64)
	if err != nil {
		return Result{}, eris.Wrapf(err, "nominatim: parse lat %q", items[0].Lat)
	}
	lon, err := strconv.ParseFloat(items[0].Lon, 64)
	if err != nil {
		return Result{}, eris.Wrapf(err, "nominatim: parse lon %q", items[0].Lon)
	}

	return Result{Lat: lat, Lon: lon, Matched: true}, nil
}
