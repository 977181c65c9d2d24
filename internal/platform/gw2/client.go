// Package gw2 is the client for the Guild Wars 2 commerce API and the
// translation of its trading post responses into domain values.
package gw2

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/alanyoungcy/tpwatch/internal/domain"
)

// DefaultBaseURL is the production API root.
const DefaultBaseURL = "https://api.guildwars2.com/v2"

const defaultTimeout = 30 * time.Second

// Client is the REST client for the trading post endpoints of the Guild Wars
// 2 API. Each call is a single unauthenticated GET; failures are returned as
// *TransportError and never retried.
type Client struct {
	baseURL    string
	httpClient *http.Client
}

// NewClient creates a new API client.
//
// baseURL is the API root, e.g. "https://api.guildwars2.com/v2"; an empty
// value selects DefaultBaseURL. A non-positive timeout selects 30s.
func NewClient(baseURL string, timeout time.Duration) *Client {
	baseURL = strings.TrimRight(strings.TrimSpace(baseURL), "/")
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	return &Client{
		baseURL: baseURL,
		httpClient: &http.Client{
			Timeout: timeout,
		},
	}
}

// BaseURL returns the API root the client talks to.
func (c *Client) BaseURL() string {
	return c.baseURL
}

// ItemListings returns every buy and sell listing currently on the trading
// post for an item.
func (c *Client) ItemListings(ctx context.Context, itemID uint32) (APIListings, error) {
	var listings APIListings
	if err := c.getJSON(ctx, "item listings", fmt.Sprintf("/commerce/listings/%d", itemID), &listings); err != nil {
		return APIListings{}, err
	}
	return listings, nil
}

// ItemPrices returns the best buy and sell price for an item. Use
// ItemListings for the full distribution of listed prices.
func (c *Client) ItemPrices(ctx context.Context, itemID uint32) (APIAggregatePrice, error) {
	var prices APIAggregatePrice
	if err := c.getJSON(ctx, "item prices", fmt.Sprintf("/commerce/prices/%d", itemID), &prices); err != nil {
		return APIAggregatePrice{}, err
	}
	return prices, nil
}

// --------------------------------------------------------------------------
// Internal helpers
// --------------------------------------------------------------------------

// getJSON performs a GET against path and decodes the body into dst.
func (c *Client) getJSON(ctx context.Context, op, path string, dst any) error {
	url := c.baseURL + path

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return &TransportError{Op: op, URL: url, Err: fmt.Errorf("create request: %w", err)}
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return &TransportError{Op: op, URL: url, Err: fmt.Errorf("http request: %w", err)}
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return &TransportError{Op: op, URL: url, StatusCode: resp.StatusCode, Err: fmt.Errorf("read response: %w", err)}
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return &TransportError{Op: op, URL: url, StatusCode: resp.StatusCode, Err: fmt.Errorf("unexpected status: %s", strings.TrimSpace(string(body)))}
	}

	if err := json.Unmarshal(body, dst); err != nil {
		return &TransportError{Op: op, URL: url, StatusCode: resp.StatusCode, Err: fmt.Errorf("decode response: %w", err)}
	}
	return nil
}

// TransportError reports a failed API call: the request could not be made,
// the server answered with a non-2xx status, or the body did not decode into
// the expected shape. errors.Is(err, domain.ErrTransport) holds for it.
type TransportError struct {
	Op         string
	URL        string
	StatusCode int // 0 when no response was received
	Err        error
}

func (e *TransportError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("gw2: %s: HTTP %d: %v", e.Op, e.StatusCode, e.Err)
	}
	return fmt.Sprintf("gw2: %s: %v", e.Op, e.Err)
}

func (e *TransportError) Unwrap() []error {
	return []error{domain.ErrTransport, e.Err}
}
