// Package nimble provides a client for Nimble's AI parsing skills API,
// which extracts named fields from raw HTML.
package nimble

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"time"

	"github.com/rotisserie/eris"
)

// Client defines the Nimble field-parsing operations.
type Client interface {
	// ParseFields extracts the requested fields from raw HTML or text.
	// Fields the parser cannot find are omitted from the result map.
	ParseFields(ctx context.Context, html string, fields []string) (map[string]string, error)
}

type parseRequest struct {
	HTML   string   `json:"html"`
	Fields []string `json:"fields"`
}

// Option configures the Nimble client.
type Option func(*httpClient)

// WithBaseURL sets a custom base URL (for testing).
func WithBaseURL(url string) Option {
	return func(c *httpClient) {
		c.baseURL = url
	}
}

// WithHTTPClient sets a custom HTTP client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *httpClient) {
		c.http = hc
	}
}

type httpClient struct {
	apiKey  string
	baseURL string
	http    *http.Client
}

// NewClient creates a new Nimble parsing client.
func NewClient(apiKey string, opts ...Option) Client {
	c := &httpClient{
		apiKey:  apiKey,
		baseURL: "https://api.nimble.com",
		http: &http.Client{
			Timeout: 30 * time.Second,
			Transport: &http.Transport{
				MaxIdleConnsPerHost: 10,
				IdleConnTimeout:     90 * time.Second,
			},
		},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

func retryableStatusCode(code int) bool {
	return code == http.StatusTooManyRequests ||
		code == http.StatusInternalServerError ||
		code == http.StatusBadGateway ||
		code == http.StatusServiceUnavailable
}

func (c *httpClient) ParseFields(ctx context.Context, html string, fields []string) (map[string]string, error) {
	const maxAttempts = 3
	backoff := 1 * time.Second

	data, err := json.Marshal(parseRequest{HTML: html, Fields: fields})
	if err != nil {
		return nil, eris.Wrap(err, "nimble: marshal request")
	}

	var body []byte
	var statusCode int
	var lastErr error
	for attempt := 1; attempt <= maxAttempts; attempt++ {
		req, reqErr := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/parse-fields", bytes.NewReader(data))
		if reqErr != nil {
			return nil, eris.Wrap(reqErr, "nimble: create request")
		}
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
		req.Header.Set("Content-Type", "application/json")

		resp, doErr := c.http.Do(req)
		if doErr != nil {
			lastErr = doErr
			if attempt < maxAttempts {
				select {
				case <-ctx.Done():
					return nil, ctx.Err()
				case <-time.After(backoff):
				}
				backoff *= 2
				continue
			}
			return nil, eris.Wrap(lastErr, "nimble: request failed")
		}

		b, readErr := io.ReadAll(resp.Body)
		_ = resp.Body.Close()
		if readErr != nil {
			return nil, eris.Wrap(readErr, "nimble: read response body")
		}

		if retryableStatusCode(resp.StatusCode) && attempt < maxAttempts {
			lastErr = eris.Errorf("nimble: status %d: %s", resp.StatusCode, string(b))
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(backoff):
			}
			backoff *= 2
			continue
		}

		body, statusCode = b, resp.StatusCode
		break
	}

	if statusCode != http.StatusOK {
		return nil, eris.Errorf("nimble: unexpected status %d: %s", statusCode, string(body))
	}

	// The API returns a flat object mapping field name to extracted value.
	// Non-string values are ignored.
	var raw map[string]any
	if err := json.Unmarshal(body, &raw); err != nil {
		return nil, eris.Wrap(err, "nimble: unmarshal response")
	}

	out := make(map[string]string, len(raw))
	for k, v := range raw {
		if s, ok := v.(string); ok && s != "" {
			out[k] = s
		}
	}
	return out, nil
}
