// Package configclient is a small Go client for the config client HTTP API.
package configclient

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"path"
	"strings"
	"time"
)

// DefaultHTTPTimeout is used by clients created without a custom http.Client.
const DefaultHTTPTimeout = 15 * time.Second

// MessagePrefix precedes the property value in /client/config responses.
const MessagePrefix = "A propriedade configurada é: "

// ErrUnexpectedBody is returned when a /client/config response lacks the prefix.
var ErrUnexpectedBody = errors.New("configclient: response does not carry the expected prefix")

// Client wraps the HTTP interactions with a config client service.
type Client struct {
	baseURL    *url.URL
	httpClient *http.Client
}

// Health is the payload returned by /healthz.
type Health struct {
	Status string `json:"status"`
}

// APIError represents a non-2xx response.
type APIError struct {
	StatusCode int
	Message    string
	RequestID  string
}

func (e *APIError) Error() string {
	if e == nil {
		return ""
	}
	if e.RequestID != "" {
		return fmt.Sprintf("configclient api error (%d, request %s): %s", e.StatusCode, e.RequestID, e.Message)
	}
	return fmt.Sprintf("configclient api error (%d): %s", e.StatusCode, e.Message)
}

// NewClient instantiates a client for the service at rawURL. When httpClient is
// nil, a default client with DefaultHTTPTimeout is used.
func NewClient(rawURL string, httpClient *http.Client) (*Client, error) {
	parsed, err := url.Parse(rawURL)
	if err != nil {
		return nil, fmt.Errorf("invalid base url: %w", err)
	}
	if parsed.Scheme == "" || parsed.Host == "" {
		return nil, fmt.Errorf("invalid base url %q: scheme and host are required", rawURL)
	}
	if httpClient == nil {
		httpClient = &http.Client{Timeout: DefaultHTTPTimeout}
	}
	return &Client{baseURL: parsed, httpClient: httpClient}, nil
}

// Raw returns the /client/config response body unchanged.
func (c *Client) Raw(ctx context.Context) (string, error) {
	data, err := c.get(ctx, "/client/config")
	if err != nil {
		return "", err
	}
	return string(data), nil
}

// GetConfig returns the configured property value with the message prefix
// stripped.
func (c *Client) GetConfig(ctx context.Context) (string, error) {
	body, err := c.Raw(ctx)
	if err != nil {
		return "", err
	}
	value, ok := strings.CutPrefix(body, MessagePrefix)
	if !ok {
		return "", ErrUnexpectedBody
	}
	return value, nil
}

// Health queries /healthz.
func (c *Client) Health(ctx context.Context) (Health, error) {
	data, err := c.get(ctx, "/healthz")
	if err != nil {
		return Health{}, err
	}
	var out Health
	if err := json.Unmarshal(data, &out); err != nil {
		return Health{}, fmt.Errorf("decode response: %w", err)
	}
	return out, nil
}

func (c *Client) get(ctx context.Context, endpoint string) ([]byte, error) {
	rel := &url.URL{Path: path.Join(c.baseURL.Path, endpoint)}
	u := c.baseURL.ResolveReference(rel)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("perform request: %w", err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}
	if resp.StatusCode >= 400 {
		return nil, &APIError{
			StatusCode: resp.StatusCode,
			Message:    string(bytes.TrimSpace(data)),
			RequestID:  resp.Header.Get("X-Request-Id"),
		}
	}
	return data, nil
}
