// Package cloudflare implements the provider adapter for Cloudflare DNS
// through the v4 REST API.
package cloudflare

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"gitlab.bluewillows.net/root/dns-syncer/pkg/provider"
)

const (
	// DefaultAPIEndpoint is the base URL for Cloudflare API v4.
	DefaultAPIEndpoint = "https://api.cloudflare.com/client/v4"

	// DefaultTimeout is the HTTP client timeout.
	DefaultTimeout = 30 * time.Second
)

// apiError represents an error from the Cloudflare API.
type apiError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

// apiResponse is the standard Cloudflare API response wrapper.
type apiResponse struct {
	Success  bool            `json:"success"`
	Errors   []apiError      `json:"errors"`
	Messages []string        `json:"messages"`
	Result   json.RawMessage `json:"result"`
}

// zoneResult represents a zone from the Cloudflare API.
type zoneResult struct {
	ID     string `json:"id"`
	Name   string `json:"name"`
	Status string `json:"status"`
}

// dnsRecord represents a DNS record from the Cloudflare API.
type dnsRecord struct {
	ID      string `json:"id"`
	Type    string `json:"type"`
	Name    string `json:"name"`
	Content string `json:"content"`
	TTL     int    `json:"ttl"`
	Proxied bool   `json:"proxied"`
	ZoneID  string `json:"zone_id"`
}

// recordRequest is the request body for creating or replacing a record.
type recordRequest struct {
	Type     string `json:"type"`
	Name     string `json:"name"`
	Content  string `json:"content"`
	TTL      int    `json:"ttl"`
	Proxied  bool   `json:"proxied"`
	Priority int    `json:"priority,omitempty"`
}

// Client is a Cloudflare DNS API client. It supports both bearer-token
// and legacy email+key authentication.
type Client struct {
	apiEndpoint string
	token       string
	email       string
	key         string
	httpClient  *http.Client
	logger      *slog.Logger

	// Zone name to zone ID, resolved lazily and kept for the process
	// lifetime; Cloudflare zone IDs never change.
	mu    sync.Mutex
	zones map[string]string
}

// ClientOption is a functional option for configuring the Client.
type ClientOption func(*Client)

// WithHTTPClient sets a custom HTTP client.
func WithHTTPClient(httpClient *http.Client) ClientOption {
	return func(c *Client) {
		c.httpClient = httpClient
	}
}

// WithClientLogger sets a custom logger.
func WithClientLogger(logger *slog.Logger) ClientOption {
	return func(c *Client) {
		if logger != nil {
			c.logger = logger
		}
	}
}

// WithAPIEndpoint sets a custom API endpoint (useful for testing).
func WithAPIEndpoint(endpoint string) ClientOption {
	return func(c *Client) {
		c.apiEndpoint = endpoint
	}
}

// NewClient creates a Cloudflare API client from an authentication
// variant. Only api_token and api_key are accepted.
func NewClient(auth provider.Auth, opts ...ClientOption) (*Client, error) {
	c := &Client{
		apiEndpoint: DefaultAPIEndpoint,
		httpClient: &http.Client{
			Timeout: DefaultTimeout,
		},
		logger: slog.Default(),
		zones:  make(map[string]string),
	}

	switch a := auth.(type) {
	case provider.APIToken:
		if a.Token == "" {
			return nil, fmt.Errorf("api_token auth requires a token")
		}
		c.token = a.Token
	case provider.APIKey:
		if a.Email == "" || a.Key == "" {
			return nil, fmt.Errorf("api_key auth requires email and key")
		}
		c.email = a.Email
		c.key = a.Key
	default:
		method := "none"
		if auth != nil {
			method = auth.Method()
		}
		return nil, fmt.Errorf("cloudflare requires api_token or api_key authentication, got %s", method)
	}

	for _, opt := range opts {
		opt(c)
	}

	return c, nil
}

// setAuthHeaders installs the authentication headers for the
// configured variant.
func (c *Client) setAuthHeaders(req *http.Request) {
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
		return
	}
	req.Header.Set("X-Auth-Email", c.email)
	req.Header.Set("X-Auth-Key", c.key)
}

// doRequest performs an HTTP request to the Cloudflare API and decodes
// the standard response envelope. Non-2xx statuses come back wrapped
// in the matching provider sentinel.
func (c *Client) doRequest(ctx context.Context, method, path string, body io.Reader) (*apiResponse, error) {
	reqURL := fmt.Sprintf("%s%s", c.apiEndpoint, path)

	c.logger.Debug("making API request",
		slog.String("method", method),
		slog.String("path", path),
	)

	req, err := http.NewRequestWithContext(ctx, method, reqURL, body)
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}

	c.setAuthHeaders(req)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", provider.ErrUnavailable, err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("reading response body: %w", err)
	}

	if sentinel := provider.FromHTTPStatus(resp.StatusCode); sentinel != nil {
		var apiResp apiResponse
		if err := json.Unmarshal(respBody, &apiResp); err == nil && len(apiResp.Errors) > 0 {
			return nil, fmt.Errorf("%w: %s (code %d)", sentinel, apiResp.Errors[0].Message, apiResp.Errors[0].Code)
		}
		return nil, fmt.Errorf("%w: status %d", sentinel, resp.StatusCode)
	}

	var apiResp apiResponse
	if err := json.Unmarshal(respBody, &apiResp); err != nil {
		return nil, fmt.Errorf("parsing response JSON: %w", err)
	}

	if !apiResp.Success {
		if len(apiResp.Errors) > 0 {
			return nil, fmt.Errorf("API error: %s (code %d)", apiResp.Errors[0].Message, apiResp.Errors[0].Code)
		}
		return nil, fmt.Errorf("API request failed with unknown error")
	}

	return &apiResp, nil
}

// VerifyAuth checks the configured credentials against the API.
// Bearer tokens use the dedicated verify endpoint; email+key pairs
// fetch the user profile, which any valid key can read.
func (c *Client) VerifyAuth(ctx context.Context) error {
	path := "/user/tokens/verify"
	if c.token == "" {
		path = "/user"
	}
	if _, err := c.doRequest(ctx, http.MethodGet, path, nil); err != nil {
		return fmt.Errorf("verifying credentials: %w", err)
	}
	return nil
}

// ZoneID resolves a zone name to its Cloudflare zone ID, caching the
// result across cycles.
func (c *Client) ZoneID(ctx context.Context, zone string) (string, error) {
	c.mu.Lock()
	id, ok := c.zones[zone]
	c.mu.Unlock()
	if ok {
		return id, nil
	}

	params := url.Values{}
	params.Set("name", zone)
	params.Set("status", "active")

	resp, err := c.doRequest(ctx, http.MethodGet, "/zones?"+params.Encode(), nil)
	if err != nil {
		return "", fmt.Errorf("looking up zone %s: %w", zone, err)
	}

	var zones []zoneResult
	if err := json.Unmarshal(resp.Result, &zones); err != nil {
		return "", fmt.Errorf("parsing zones response: %w", err)
	}
	if len(zones) == 0 {
		return "", fmt.Errorf("%w: no active zone named %q", provider.ErrZoneNotFound, zone)
	}

	c.logger.Debug("resolved zone",
		slog.String("zone", zone),
		slog.String("zone_id", zones[0].ID),
	)

	c.mu.Lock()
	c.zones[zone] = zones[0].ID
	c.mu.Unlock()

	return zones[0].ID, nil
}

// ListRecords returns the records in the zone matching type and name.
func (c *Client) ListRecords(ctx context.Context, zoneID, recordType, name string) ([]dnsRecord, error) {
	params := url.Values{}
	params.Set("type", recordType)
	params.Set("name", name)
	params.Set("per_page", "100")

	path := fmt.Sprintf("/zones/%s/dns_records?%s", zoneID, params.Encode())
	resp, err := c.doRequest(ctx, http.MethodGet, path, nil)
	if err != nil {
		return nil, fmt.Errorf("listing records: %w", err)
	}

	var records []dnsRecord
	if err := json.Unmarshal(resp.Result, &records); err != nil {
		return nil, fmt.Errorf("parsing records response: %w", err)
	}

	c.logger.Debug("listed records",
		slog.String("zone_id", zoneID),
		slog.String("type", recordType),
		slog.String("name", name),
		slog.Int("count", len(records)),
	)

	return records, nil
}

// CreateRecord creates a new DNS record in the zone.
func (c *Client) CreateRecord(ctx context.Context, zoneID string, rec recordRequest) error {
	body, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("marshaling request: %w", err)
	}

	path := fmt.Sprintf("/zones/%s/dns_records", zoneID)
	if _, err := c.doRequest(ctx, http.MethodPost, path, strings.NewReader(string(body))); err != nil {
		return fmt.Errorf("creating record: %w", err)
	}
	return nil
}

// UpdateRecord replaces the record identified by recordID.
func (c *Client) UpdateRecord(ctx context.Context, zoneID, recordID string, rec recordRequest) error {
	body, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("marshaling request: %w", err)
	}

	path := fmt.Sprintf("/zones/%s/dns_records/%s", zoneID, recordID)
	if _, err := c.doRequest(ctx, http.MethodPut, path, strings.NewReader(string(body))); err != nil {
		return fmt.Errorf("updating record: %w", err)
	}
	return nil
}

// DeleteRecord deletes a DNS record by ID.
func (c *Client) DeleteRecord(ctx context.Context, zoneID, recordID string) error {
	path := fmt.Sprintf("/zones/%s/dns_records/%s", zoneID, recordID)
	if _, err := c.doRequest(ctx, http.MethodDelete, path, nil); err != nil {
		return fmt.Errorf("deleting record: %w", err)
	}
	return nil
}
