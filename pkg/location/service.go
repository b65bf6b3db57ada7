// Package location is a small Nominatim search client.
package location

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"
)

const DefaultBaseURL = "https://nominatim.openstreetmap.org"

// ErrNoResults is returned when the search matched nothing.
var ErrNoResults = errors.New("no results")

// StatusError reports a non-200 response from the provider.
type StatusError struct {
	StatusCode int
	Status     string
}

func (e *StatusError) Error() string {
	return "unexpected status: " + e.Status
}

type Client struct {
	httpClient *http.Client
	baseURL    string
	userAgent  string
}

// NewClient returns a client for the Nominatim instance at baseURL. Nominatim
// rejects requests without a User-Agent, so an empty one is replaced.
func NewClient(baseURL, userAgent string, timeout time.Duration) *Client {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	if userAgent == "" {
		userAgent = "city_paper_worker"
	}
	return &Client{
		httpClient: &http.Client{Timeout: timeout},
		baseURL:    strings.TrimRight(baseURL, "/"),
		userAgent:  userAgent,
	}
}

// Search returns the best match for a free-text query.
func (c *Client) Search(ctx context.Context, query string) (*Place, error) {
	return c.search(ctx, query, false)
}

// SearchWithAddress is Search with the structured address breakdown included.
func (c *Client) SearchWithAddress(ctx context.Context, query string) (*Place, error) {
	return c.search(ctx, query, true)
}

func (c *Client) search(ctx context.Context, query string, addressDetails bool) (*Place, error) {
	params := url.Values{}
	params.Set("q", query)
	params.Set("format", "json")
	params.Set("limit", "1")
	if addressDetails {
		params.Set("addressdetails", "1")
	}

	reqURL := fmt.Sprintf("%s/search?%s", c.baseURL, params.Encode())
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("User-Agent", c.userAgent)
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil, &StatusError{StatusCode: resp.StatusCode, Status: resp.Status}
	}

	var results []Place
	if err := json.NewDecoder(resp.Body).Decode(&results); err != nil {
		return nil, fmt.Errorf("decode search response: %w", err)
	}
	if len(results) == 0 {
		return nil, fmt.Errorf("%w for %q", ErrNoResults, query)
	}
	return &results[0], nil
}
