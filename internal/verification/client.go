package verification

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"
)

// Client starts an age verification check and returns the link the user
// completes it at.
type Client interface {
	Begin(ctx context.Context, handle string) (string, error)
}

// HTTPClient talks to the external verification provider.
type HTTPClient struct {
	baseURL    string
	httpClient *http.Client
}

func NewHTTPClient(baseURL string, timeout time.Duration) *HTTPClient {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &HTTPClient{
		baseURL:    baseURL,
		httpClient: &http.Client{Timeout: timeout},
	}
}

type beginRequest struct {
	Handle string `json:"handle"`
}

type beginResponse struct {
	URL string `json:"url"`
}

func (c *HTTPClient) Begin(ctx context.Context, handle string) (string, error) {
	payload, err := json.Marshal(beginRequest{Handle: handle})
	if err != nil {
		return "", fmt.Errorf("verification: marshal request: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/v1/checks", bytes.NewReader(payload))
	if err != nil {
		return "", fmt.Errorf("verification: build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("verification: request failed: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return "", fmt.Errorf("verification: read response: %w", err)
	}
	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusCreated {
		return "", fmt.Errorf("verification: status %d", resp.StatusCode)
	}

	var out beginResponse
	if err := json.Unmarshal(body, &out); err != nil {
		return "", fmt.Errorf("verification: decode response: %w", err)
	}
	if out.URL == "" {
		return "", fmt.Errorf("verification: provider returned no link")
	}
	return out.URL, nil
}

// NoopClient serves deployments without a provider configured. Begin
// returns an empty link; the verification prompt is sent without one.
type NoopClient struct{}

func (NoopClient) Begin(context.Context, string) (string, error) { return "", nil }
