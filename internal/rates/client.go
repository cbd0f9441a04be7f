// Package rates talks to the MetalPriceAPI-compatible rates service and
// converts its raw rates into domain price records.
package rates

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"
)

// Endpoints relative to the API base URL.
const (
	timeframeEndpoint = "/timeframe"
	latestEndpoint    = "/latest"
)

// currencies is the comma-separated symbol list requested on every call.
const currencies = "XAU,XAG,XPT,XPD"

// baseCurrency is the quote currency for all requests.
const baseCurrency = "USD"

// Client is an HTTP client for the rates API.
type Client struct {
	BaseURL string
	APIKey  string
	HTTP    *http.Client
}

// NewClient creates a Client for the given base URL and API key with a
// fixed request timeout.
func NewClient(baseURL, apiKey string) *Client {
	return &Client{
		BaseURL: baseURL,
		APIKey:  apiKey,
		HTTP:    &http.Client{Timeout: 30 * time.Second},
	}
}

// ---------------------------------------------------------------------------
// Response envelope
// ---------------------------------------------------------------------------

// apiError is the structured error payload the API returns on failure.
type apiError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
	Info    string `json:"info"`
}

// timeframeResponse is the envelope for /timeframe: rates keyed by date,
// then by symbol.
type timeframeResponse struct {
	Success bool                          `json:"success"`
	Rates   map[string]map[string]float64 `json:"rates"`
	Error   apiError                      `json:"error"`
}

// latestResponse is the envelope for /latest: rates keyed by symbol.
type latestResponse struct {
	Success bool               `json:"success"`
	Rates   map[string]float64 `json:"rates"`
	Error   apiError           `json:"error"`
}

// message picks the most descriptive error text the provider supplied.
func (e apiError) message() string {
	if e.Info != "" {
		return e.Info
	}
	if e.Message != "" {
		return e.Message
	}
	return "unknown API error"
}

// ---------------------------------------------------------------------------
// Endpoints
// ---------------------------------------------------------------------------

// Timeframe fetches daily rates for the inclusive date range [start, end].
// The result maps "YYYY-MM-DD" date strings to symbol→rate maps.
func (c *Client) Timeframe(ctx context.Context, start, end time.Time) (map[string]map[string]float64, error) {
	params := url.Values{
		"api_key":    {c.APIKey},
		"start_date": {start.Format("2006-01-02")},
		"end_date":   {end.Format("2006-01-02")},
		"base":       {baseCurrency},
		"currencies": {currencies},
	}

	var resp timeframeResponse
	if err := c.get(ctx, timeframeEndpoint, params, &resp); err != nil {
		return nil, err
	}
	if !resp.Success {
		return nil, fmt.Errorf("rates API error: %s", resp.Error.message())
	}
	return resp.Rates, nil
}

// Latest fetches the current rates, keyed by symbol.
func (c *Client) Latest(ctx context.Context) (map[string]float64, error) {
	params := url.Values{
		"api_key":    {c.APIKey},
		"base":       {baseCurrency},
		"currencies": {currencies},
	}

	var resp latestResponse
	if err := c.get(ctx, latestEndpoint, params, &resp); err != nil {
		return nil, err
	}
	if !resp.Success {
		return nil, fmt.Errorf("rates API error: %s", resp.Error.message())
	}
	return resp.Rates, nil
}

// get issues a GET request and decodes the JSON body into out. Transport
// errors and non-2xx statuses surface as a generic fetch failure with the
// underlying cause attached.
func (c *Client) get(ctx context.Context, endpoint string, params url.Values, out any) error {
	u := c.BaseURL + endpoint + "?" + params.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return fmt.Errorf("building request: %w", err)
	}

	resp, err := c.HTTP.Do(req)
	if err != nil {
		return fmt.Errorf("fetch %s: %w", endpoint, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("fetch %s: status %d, body: %s", endpoint, resp.StatusCode, string(body))
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode %s response: %w", endpoint, err)
	}
	return nil
}
