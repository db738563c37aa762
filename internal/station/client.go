package station

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"time"
)

// Endpoint is the path of the station's live-data document.
const Endpoint = "/webrtd.json"

// DefaultTimeout bounds one fetch end to end.
const DefaultTimeout = 10 * time.Second

// maxBodySize caps the response body; real documents are a few KiB.
const maxBodySize = 1 << 20

// Client fetches live data from one station.
type Client struct {
	host       string
	httpClient *http.Client
	timeout    time.Duration
}

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient replaces the underlying HTTP client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		c.httpClient = hc
	}
}

// WithTimeout overrides DefaultTimeout.
func WithTimeout(d time.Duration) Option {
	return func(c *Client) {
		if d > 0 {
			c.timeout = d
		}
	}
}

// NewClient creates a client for the station at host (hostname or IP,
// optionally with :port).
func NewClient(host string, opts ...Option) *Client {
	c := &Client{
		host:    host,
		timeout: DefaultTimeout,
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.httpClient == nil {
		c.httpClient = &http.Client{Timeout: c.timeout}
	}
	return c
}

// Host returns the configured station address.
func (c *Client) Host() string {
	return c.host
}

// URL returns the full live-data URL.
func (c *Client) URL() string {
	return "http://" + c.host + Endpoint
}

// Fetch performs one GET of the live-data document and validates it.
//
// The request is sent with caching disabled and is bounded by the client
// timeout in addition to any deadline on ctx.
//
// Returns:
//   - *Payload: the decoded document, with both rtd and info present
//   - error: wraps ErrConnect, ErrTimeout, ErrProtocol or ErrAuth
func (c *Client) Fetch(ctx context.Context) (*Payload, error) {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.URL(), nil)
	if err != nil {
		return nil, fmt.Errorf("%w: building request: %w", ErrConnect, err)
	}
	req.Header.Set("Cache-Control", "no-cache")
	req.Header.Set("Pragma", "no-cache")
	req.Header.Set("Expires", "0")
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, classifyTransportError(ctx, err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusUnauthorized:
		return nil, fmt.Errorf("%w: %s returned %d", ErrAuth, c.URL(), resp.StatusCode)
	case resp.StatusCode < 200 || resp.StatusCode > 299:
		return nil, fmt.Errorf("%w: %s returned %d", ErrProtocol, c.URL(), resp.StatusCode)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodySize))
	if err != nil {
		return nil, classifyTransportError(ctx, err)
	}

	return decodePayload(body)
}

// classifyTransportError maps errors from the HTTP round trip or body read.
func classifyTransportError(ctx context.Context, err error) error {
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(ctx.Err(), context.DeadlineExceeded) {
		return fmt.Errorf("%w: %w", ErrTimeout, err)
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return fmt.Errorf("%w: %w", ErrTimeout, err)
	}
	return fmt.Errorf("%w: %w", ErrConnect, err)
}

// decodePayload parses and validates a live-data document.
func decodePayload(body []byte) (*Payload, error) {
	var doc map[string]any
	if err := json.Unmarshal(body, &doc); err != nil {
		return nil, fmt.Errorf("%w: decoding body: %w", ErrProtocol, err)
	}
	if doc == nil {
		return nil, fmt.Errorf("%w: body is not a JSON object", ErrProtocol)
	}

	rtd, ok := doc["rtd"].(map[string]any)
	if !ok {
		return nil, fmt.Errorf("%w: missing or invalid rtd group", ErrProtocol)
	}
	info, ok := doc["info"].(map[string]any)
	if !ok {
		return nil, fmt.Errorf("%w: missing or invalid info group", ErrProtocol)
	}

	return &Payload{RTD: rtd, Info: info}, nil
}
