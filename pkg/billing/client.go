// Package billing provides REST access to the ISP management backend that
// owns customers, services, and their location metadata.
package billing

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/rotisserie/eris"

	"github.com/southlink/geosync/internal/resilience"
)

const defaultPageSize = 100

// Client defines the backend operations used by the reconciliation run.
type Client interface {
	// ListActiveCustomers pages through every active customer.
	ListActiveCustomers(ctx context.Context) ([]Customer, error)

	// ListServices returns all services attached to a customer.
	ListServices(ctx context.Context, customerID int) ([]Service, error)

	// TariffTitle resolves a tariff id to its display title.
	TariffTitle(ctx context.Context, id int) (string, error)

	// RouterTitle resolves a router id to its display title.
	RouterTitle(ctx context.Context, id int) (string, error)

	// UpdateServiceAttributes writes both auxiliary attribute fields.
	UpdateServiceAttributes(ctx context.Context, serviceID int, patch AttributesPatch) error

	// UpdateServiceGeo writes one geo payload. Callers implementing the
	// clear-then-set protocol send the zero-value patch first.
	UpdateServiceGeo(ctx context.Context, serviceID int, patch GeoPatch) error
}

// Option configures the backend client.
type Option func(*client)

// WithHTTPClient sets a custom HTTP client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *client) {
		c.httpClient = hc
	}
}

// WithPageSize sets the customer listing page size.
func WithPageSize(n int) Option {
	return func(c *client) {
		if n > 0 {
			c.pageSize = n
		}
	}
}

// WithTimeout sets the per-request timeout.
func WithTimeout(d time.Duration) Option {
	return func(c *client) {
		if d > 0 {
			c.httpClient.Timeout = d
		}
	}
}

type client struct {
	baseURL    string
	token      string
	pageSize   int
	httpClient *http.Client
}

// NewClient creates a backend client for the given base URL and API token.
func NewClient(baseURL, token string, opts ...Option) Client {
	c := &client{
		baseURL:    baseURL,
		token:      token,
		pageSize:   defaultPageSize,
		httpClient: &http.Client{Timeout: 15 * time.Second},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// listResponse wraps the backend's paginated list envelope.
type listResponse[T any] struct {
	Items []T `json:"items"`
}

// titleResponse is the shape of tariff and router lookups.
type titleResponse struct {
	ID    int    `json:"id"`
	Title string `json:"title"`
}

func (c *client) ListActiveCustomers(ctx context.Context) ([]Customer, error) {
	var all []Customer
	for page := 1; ; page++ {
		params := url.Values{
			"status": {"active"},
			"page":   {strconv.Itoa(page)},
			"limit":  {strconv.Itoa(c.pageSize)},
		}
		var resp listResponse[Customer]
		if err := c.get(ctx, "/api/v1/customers?"+params.Encode(), &resp); err != nil {
			return nil, eris.Wrap(err, "billing: list customers")
		}
		all = append(all, resp.Items...)
		if len(resp.Items) < c.pageSize {
			return all, nil
		}
	}
}

func (c *client) ListServices(ctx context.Context, customerID int) ([]Service, error) {
	var resp listResponse[Service]
	path := fmt.Sprintf("/api/v1/customers/%d/services", customerID)
	if err := c.get(ctx, path, &resp); err != nil {
		return nil, eris.Wrapf(err, "billing: list services for customer %d", customerID)
	}
	return resp.Items, nil
}

func (c *client) TariffTitle(ctx context.Context, id int) (string, error) {
	var resp titleResponse
	if err := c.get(ctx, fmt.Sprintf("/api/v1/tariffs/%d", id), &resp); err != nil {
		return "", eris.Wrapf(err, "billing: tariff %d", id)
	}
	return resp.Title, nil
}

func (c *client) RouterTitle(ctx context.Context, id int) (string, error) {
	var resp titleResponse
	if err := c.get(ctx, fmt.Sprintf("/api/v1/routers/%d", id), &resp); err != nil {
		return "", eris.Wrapf(err, "billing: router %d", id)
	}
	return resp.Title, nil
}

func (c *client) UpdateServiceAttributes(ctx context.Context, serviceID int, patch AttributesPatch) error {
	path := fmt.Sprintf("/api/v1/services/%d/attributes", serviceID)
	if err := c.put(ctx, path, patch); err != nil {
		return eris.Wrapf(err, "billing: update attributes for service %d", serviceID)
	}
	return nil
}

func (c *client) UpdateServiceGeo(ctx context.Context, serviceID int, patch GeoPatch) error {
	path := fmt.Sprintf("/api/v1/services/%d/geo", serviceID)
	if err := c.put(ctx, path, patch); err != nil {
		return eris.Wrapf(err, "billing: update geo for service %d", serviceID)
	}
	return nil
}

func (c *client) get(ctx context.Context, path string, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path, nil)
	if err != nil {
		return eris.Wrap(err, "build request")
	}
	return c.do(req, out)
}

func (c *client) put(ctx context.Context, path string, body any) error {
	buf, err := json.Marshal(body)
	if err != nil {
		return eris.Wrap(err, "encode body")
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPut, c.baseURL+path, bytes.NewReader(buf))
	if err != nil {
		return eris.Wrap(err, "build request")
	}
	req.Header.Set("Content-Type", "application/json")
	return c.do(req, nil)
}

func (c *client) do(req *http.Request, out any) error {
	req.Header.Set("X-Auth-Token", c.token)
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return eris.Wrap(err, "request")
	}
	defer resp.Body.Close() //nolint:errcheck

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		err := eris.Errorf("unexpected status %d from %s", resp.StatusCode, req.URL.Path)
		if resilience.IsTransientHTTPStatus(resp.StatusCode) {
			return resilience.NewTransientError(err, resp.StatusCode)
		}
		return err
	}

	if out == nil {
		return nil
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return eris.Wrap(err, "read body")
	}
	if err := json.Unmarshal(body, out); err != nil {
		return eris.Wrap(err, "parse response")
	}
	return nil
}
