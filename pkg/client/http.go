package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"

	"github.com/oklog/ulid/v2"
)

// HTTPClient talks to the chat service's POST /chat endpoint.
type HTTPClient struct {
	baseURL string
	client  *http.Client
}

// NewHTTPClient uses http.DefaultClient's settings; no timeout is set beyond
// the caller's context.
func NewHTTPClient(baseURL string) *HTTPClient {
	return &HTTPClient{
		baseURL: strings.TrimRight(baseURL, "/"),
		client:  &http.Client{},
	}
}

func (c *HTTPClient) Ask(ctx context.Context, question string) (string, error) {
	data, err := json.Marshal(chatQuery{Question: question})
	if err != nil {
		return "", fmt.Errorf("failed to marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/chat", bytes.NewReader(data))
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-Trace-ID", ulid.Make().String())

	resp, err := c.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("failed to reach backend: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("failed to read response: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		slog.Debug("Backend returned error status", "status", resp.StatusCode, "body", string(body))
		return "", &StatusError{StatusCode: resp.StatusCode, Body: strings.TrimSpace(string(body))}
	}

	var out chatAnswer
	if err := json.Unmarshal(body, &out); err != nil {
		return "", fmt.Errorf("failed to parse response: %w", err)
	}
	return out.Answer, nil
}
