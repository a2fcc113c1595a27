// Package outbound delivers replies to the messaging gateway. Delivery is
// fire-and-forget from the orchestrator's point of view; the decision and
// turn are already committed by the time a send happens.
package outbound

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"
)

// Channel sends one message to one handle.
type Channel interface {
	Send(ctx context.Context, handle, text string) error
}

// HTTPChannel posts messages to an SMS gateway webhook.
type HTTPChannel struct {
	url        string
	httpClient *http.Client
}

func NewHTTPChannel(url string, timeout time.Duration) *HTTPChannel {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &HTTPChannel{url: url, httpClient: &http.Client{Timeout: timeout}}
}

type sendRequest struct {
	Handle string `json:"handle"`
	Text   string `json:"text"`
}

func (c *HTTPChannel) Send(ctx context.Context, handle, text string) error {
	payload, err := json.Marshal(sendRequest{Handle: handle, Text: text})
	if err != nil {
		return fmt.Errorf("outbound: marshal request: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.url, bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("outbound: build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("outbound: request failed: %w", err)
	}
	defer resp.Body.Close()
	io.Copy(io.Discard, io.LimitReader(resp.Body, 4096))

	if resp.StatusCode >= 300 {
		return fmt.Errorf("outbound: gateway status %d", resp.StatusCode)
	}
	return nil
}

// LogChannel writes sends to the log. Default for local development where
// no gateway is configured.
type LogChannel struct {
	logger *slog.Logger
}

func NewLogChannel(logger *slog.Logger) *LogChannel {
	return &LogChannel{logger: logger}
}

func (c *LogChannel) Send(ctx context.Context, handle, text string) error {
	c.logger.InfoContext(ctx, "outbound message", "handle", handle, "chars", len(text))
	return nil
}
