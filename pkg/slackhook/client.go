// Package slackhook delivers messages to a Slack incoming webhook.
package slackhook

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/rotisserie/eris"
)

// Notifier defines webhook delivery.
type Notifier interface {
	// Notify posts a message to the webhook. A non-2xx response is an error.
	Notify(ctx context.Context, msg Message) error
}

// Message is a Slack webhook payload with Block Kit blocks.
type Message struct {
	Text   string  `json:"text"`
	Blocks []Block `json:"blocks,omitempty"`
}

// Block is a single Block Kit block.
type Block struct {
	Type   string `json:"type"`
	Text   *Text  `json:"text,omitempty"`
	Fields []Text `json:"fields,omitempty"`
}

// Text is a Block Kit text object.
type Text struct {
	Type string `json:"type"` // "plain_text" or "mrkdwn"
	Text string `json:"text"`
}

// Option configures the webhook client.
type Option func(*webhookClient)

// WithHTTPClient sets a custom HTTP client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *webhookClient) {
		c.http = hc
	}
}

type webhookClient struct {
	url  string
	http *http.Client
}

// NewClient creates a notifier posting to the given webhook URL.
func NewClient(webhookURL string, opts ...Option) Notifier {
	c := &webhookClient{
		url:  webhookURL,
		http: &http.Client{Timeout: 10 * time.Second},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

func (c *webhookClient) Notify(ctx context.Context, msg Message) error {
	payload, err := json.Marshal(msg)
	if err != nil {
		return eris.Wrap(err, "slackhook: marshal message")
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.url, bytes.NewReader(payload))
	if err != nil {
		return eris.Wrap(err, "slackhook: create request")
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return eris.Wrap(err, "slackhook: post webhook")
	}
	defer resp.Body.Close() //nolint:errcheck

	if resp.StatusCode >= 300 {
		return eris.Errorf("slackhook: webhook returned status %d", resp.StatusCode)
	}
	return nil
}
