package accountapi

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync"
	"time"
)

// ErrUnauthorized is returned when the service rejects the session token.
var ErrUnauthorized = errors.New("accountapi: unauthorized")

// ErrManifestNotFound is returned when the app manifest is missing or empty.
var ErrManifestNotFound = errors.New("accountapi: manifest not found")

// StatusError is returned for any non-2xx response. It unwraps to
// ErrUnauthorized for 401 responses.
type StatusError struct {
	Code int
	Body string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("accountapi: unexpected status %d: %s", e.Code, e.Body)
}

// Unwrap lets errors.Is(err, ErrUnauthorized) match 401 responses.
func (e *StatusError) Unwrap() error {
	if e.Code == http.StatusUnauthorized {
		return ErrUnauthorized
	}
	return nil
}

// Endpoints groups the service URLs for one deployment environment.
type Endpoints struct {
	API      string // REST API base (no trailing slash).
	App      string // Embedded app origin; the manifest lives below it.
	Realtime string // Realtime socket URL.
}

// DefaultEndpoints returns the production or staging endpoints.
func DefaultEndpoints(testnet bool) Endpoints {
	if testnet {
		return Endpoints{
			API:      "https://card-staging.whales-api.com",
			App:      "https://stage.holders.io",
			Realtime: "wss://card-staging.whales-api.com/v2/realtime",
		}
	}

	return Endpoints{
		API:      "https://card-prod.whales-api.com",
		App:      "https://app.holders.io",
		Realtime: "wss://card-prod.whales-api.com/v2/realtime",
	}
}

// ManifestURL returns the well-known manifest location for the app.
func (e Endpoints) ManifestURL() string {
	return strings.TrimRight(e.App, "/") + "/jsons/tonconnect-manifest.json"
}

// Client talks to the account service.
type Client struct {
	Endpoints Endpoints
	Testnet   bool
	Client    *http.Client      // HTTP client; falls back to a 30s-timeout default.
	Headers   map[string]string // Extra headers applied to every request.

	clientOnce    sync.Once
	defaultClient *http.Client
}

// New creates a Client for the given endpoints. A nil client falls back to a
// default client at call time.
func New(endpoints Endpoints, testnet bool, client *http.Client) *Client {
	return &Client{
		Endpoints: endpoints,
		Testnet:   testnet,
		Client:    client,
	}
}

func (c *Client) httpClient() *http.Client {
	if c.Client != nil {
		return c.Client
	}

	c.clientOnce.Do(func() {
		c.defaultClient = &http.Client{Timeout: 30 * time.Second}
	})

	return c.defaultClient
}

// NewRequest builds an *http.Request for an absolute URL with the custom
// headers applied.
func (c *Client) NewRequest(ctx context.Context, method, url string, body io.Reader) (*http.Request, error) {
	req, err := http.NewRequestWithContext(ctx, method, url, body)
	if err != nil {
		return nil, err
	}

	for k, v := range c.Headers {
		req.Header.Set(k, v)
	}

	return req, nil
}

// Do sends the request and converts non-2xx responses into *StatusError.
// On success the caller owns the response body.
func (c *Client) Do(req *http.Request) (*http.Response, error) {
	resp, err := c.httpClient().Do(req) //nolint:gosec // URL is built from configured endpoints
	if err != nil {
		return nil, fmt.Errorf("accountapi: do request: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		defer func() { _ = resp.Body.Close() }()
		respBody, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return nil, &StatusError{Code: resp.StatusCode, Body: string(respBody)}
	}

	return resp, nil
}

// PostJSON marshals payload, POSTs it to path below the API base and decodes
// the response into dest. A nil dest discards the body.
func (c *Client) PostJSON(ctx context.Context, path string, payload any, dest any) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("accountapi: marshal payload: %w", err)
	}

	req, err := c.NewRequest(ctx, http.MethodPost, c.Endpoints.API+path, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("accountapi: build request: %w", err)
	}

	req.Header.Set("Content-Type", "application/json")

	resp, err := c.Do(req)
	if err != nil {
		return err
	}
	defer func() { _ = resp.Body.Close() }()

	if dest == nil {
		return nil
	}

	if err := json.NewDecoder(resp.Body).Decode(dest); err != nil {
		return fmt.Errorf("accountapi: decode response: %w", err)
	}

	return nil
}

// RealtimeURL returns the socket URL, deriving it from the API base when no
// explicit endpoint is configured: https becomes wss, http becomes ws.
func (c *Client) RealtimeURL() string {
	if c.Endpoints.Realtime != "" {
		return c.Endpoints.Realtime
	}

	u := c.Endpoints.API + "/v2/realtime"

	if strings.HasPrefix(u, "https://") {
		return "wss://" + u[len("https://"):]
	}

	if strings.HasPrefix(u, "http://") {
		return "ws://" + u[len("http://"):]
	}

	return u
}
