package slack

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

// StatusError reports a non-success response from the sink. The response
// body is logged for diagnosis but never carried back to the caller.
type StatusError struct {
	Status int
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("sink responded with status %d", e.Status)
}

// Sender delivers one payload to a webhook URL.
type Sender interface {
	Send(ctx context.Context, webhookURL string, payload any) error
}

// Client posts JSON payloads to Slack incoming webhooks. Best-effort:
// one attempt, no retries.
type Client struct {
	httpClient *http.Client
	logger     *slog.Logger
}

func NewClient(logger *slog.Logger) *Client {
	return &Client{
		httpClient: &http.Client{Timeout: 15 * time.Second},
		logger:     logger,
	}
}

// Send posts payload as JSON to webhookURL. A non-2xx response is an
// error; the response body is logged, truncated.
func (c *Client) Send(ctx context.Context, webhookURL string, payload any) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal sink payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, webhookURL, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("build sink request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("post to sink: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		detail, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		c.logger.Error("slack webhook rejected payload",
			"status", resp.StatusCode,
			"response", string(detail),
		)
		return &StatusError{Status: resp.StatusCode}
	}

	return nil
}
