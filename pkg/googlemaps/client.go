// Package googlemaps provides address geocoding via the Google Geocoding
// API, used as the paid fallback when the free provider finds nothing.
package googlemaps

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/rotisserie/eris"

	"github.com/southlink/geosync/internal/resilience"
)

const defaultBaseURL = "https://maps.googleapis.com/maps/api/geocode/json"

// ErrRequestDenied marks the provider's authorization-class failures
// (invalid or exhausted API key). Callers treat it differently from a
// transient "no result": further calls in the same run are pointless.
var ErrRequestDenied = errors.New("googlemaps: request denied")

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

// WithRegion sets the ccTLD region bias for results.
func WithRegion(region string) Option {
	return func(c *Client) {
		c.region = region
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

// Client is a Google Geocoding API client.
type Client struct {
	baseURL    string
	apiKey     string
	region     string
	httpClient *http.Client
}

// NewClient creates a client with the given API key.
func NewClient(apiKey string, opts ...Option) *Client {
	c := &Client{
		baseURL:    defaultBaseURL,
		apiKey:     apiKey,
		region:     "nz",
		httpClient: &http.Client{Timeout: 15 * time.Second},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// geocodeResponse is the JSON response from the Geocoding API.
type geocodeResponse struct {
	Status  string `json:"status"`
	Results []struct {
		Geometry struct {
			Location struct {
				Lat float64 `json:"lat"`
				Lng float64 `json:"lng"`
			} `json:"location"`
		} `json:"geometry"`
	} `json:"results"`
}

// Geocode geocodes a free-text address. ZERO_RESULTS is reported as
// Matched: false; REQUEST_DENIED and OVER_DAILY_LIMIT map to
// ErrRequestDenied; any other non-OK status is a plain error.
func (c *Client) Geocode(ctx context.Context, address string) (Result, error) {
	params := url.Values{
		"address": {address},
		"key":     {c.apiKey},
	}
	if c.region != "" {
		params.Set("region", c.region)
	}

	reqURL := c.baseURL + "?" + params.Encode()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return Result{}, eris.Wrap(err, "googlemaps: build request")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return Result{}, eris.Wrap(err, "googlemaps: request")
	}
	defer resp.Body.Close() //nolint:errcheck

	if resp.StatusCode != http.StatusOK {
		err := eris.Errorf("googlemaps: unexpected status %d", resp.StatusCode)
		if resilience.IsTransientHTTPStatus(resp.StatusCode) {
			return Result{}, resilience.NewTransientError(err, resp.StatusCode)
		}
		return Result{}, err
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return Result{}, eris.Wrap(err, "googlemaps: read body")
	}

	var geoResp geocodeResponse
	if err := json.Unmarshal(body, &geoResp); err != nil {
		return Result{}, eris.Wrap(err, "googlemaps: parse response")
	}

	switch geoResp.Status {
	case "OK":
		if len(geoResp.Results) == 0 {
			return Result{Matched: false}, nil
		}
		loc := geoResp.Results[0].Geometry.Location
		return Result{Lat: loc.Lat, Lon: loc.Lng, Matched: true}, nil
	case "ZERO_RESULTS":
		return Result{Matched: false}, nil
	case "REQUEST_DENIED", "OVER_DAILY_LIMIT":
		return Result{}, eris.Wrapf(ErrRequestDenied, "status %s", geoResp.Status)
	default:
		return Result{}, eris.Errorf("googlemaps: status %s", geoResp.Status)
	}
}
