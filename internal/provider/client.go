// internal/provider/client.go
package provider

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"sync"
	"time"

	"github.com/jpillora/backoff"
)

// Message is one outbound email as the provider API accepts it.
type Message struct {
	From    string   `json:"from"`
	To      []string `json:"to"`
	Subject string   `json:"subject"`
	HTML    string   `json:"html"`
	ReplyTo string   `json:"reply_to,omitempty"`
}

// Outcome is the per-message result of a batch send. Order matches the input.
type Outcome struct {
	Index     int
	MessageID string
	Err       string
}

func (o Outcome) OK() bool { return o.Err == "" }

// MessageDetails is the provider's view of a previously sent message.
type MessageDetails struct {
	ID          string     `json:"id"`
	To          []string   `json:"to"`
	Subject     string     `json:"subject"`
	LastEvent   string     `json:"last_event"`
	CreatedAt   *time.Time `json:"created_at,omitempty"`
	DeliveredAt *time.Time `json:"delivered_at,omitempty"`
}

// Client talks to the bulk-email provider's HTTP API.
type Client struct {
	BaseURL    string
	APIKey     string
	HTTPClient *http.Client
}

func NewClient(baseURL, apiKey string) *Client {
	return &Client{
		BaseURL:    baseURL,
		APIKey:     apiKey,
		HTTPClient: &http.Client{Timeout: 30 * time.Second},
	}
}

type sendResponse struct {
	ID string `json:"id"`
}

type apiError struct {
	Name    string `json:"name"`
	Message string `json:"message"`
}

// SendBatch delivers all messages, fanning the individual sends out
// concurrently and joining them before returning. Each message gets a derived
// idempotency key (<batch key>/<index>) so a retried batch is deduplicated by
// the provider member-by-member. Failures are isolated per message: a rejected
// or unreachable send fills in Err for that outcome only. The error return is
// reserved for calls that could not be attempted at all.
func (c *Client) SendBatch(ctx context.Context, msgs []Message, idempotencyKey string) ([]Outcome, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	outcomes := make([]Outcome, len(msgs))

	var wg sync.WaitGroup
	for i, msg := range msgs {
		wg.Add(1)
		go func(i int, msg Message) {
			defer wg.Done()
			out := Outcome{Index: i}
			key := fmt.Sprintf("%s/%d", idempotencyKey, i)
			id, err := c.send(ctx, msg, key)
			if err != nil {
				out.Err = err.Error()
			} else {
				out.MessageID = id
			}
			outcomes[i] = out
		}(i, msg)
	}
	wg.Wait()

	return outcomes, nil
}

func (c *Client) send(ctx context.Context, msg Message, idempotencyKey string) (string, error) {
	body, err := json.Marshal(msg)
	if err != nil {
		return "", err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.BaseURL+"/emails", bytes.NewReader(body))
	if err != nil {
		return "", err
	}
	req.Header.Set("Authorization", "Bearer "+c.APIKey)
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Idempotency-Key", idempotencyKey)

	res, err := c.HTTPClient.Do(req)
	if err != nil {
		return "", err
	}
	defer res.Body.Close()

	if res.StatusCode >= 400 {
		return "", decodeAPIError(res)
	}

	var parsed sendResponse
	if err := json.NewDecoder(res.Body).Decode(&parsed); err != nil {
		return "", fmt.Errorf("decoding send response: %w", err)
	}
	if parsed.ID == "" {
		return "", fmt.Errorf("provider returned no message id")
	}
	return parsed.ID, nil
}

// GetMessage looks up a single previously sent message.
func (c *Client) GetMessage(ctx context.Context, id string) (*MessageDetails, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.BaseURL+"/emails/"+id, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Authorization", "Bearer "+c.APIKey)

	res, err := c.HTTPClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer res.Body.Close()

	if res.StatusCode >= 400 {
		return nil, decodeAPIError(res)
	}

	var details MessageDetails
	if err := json.NewDecoder(res.Body).Decode(&details); err != nil {
		return nil, fmt.Errorf("decoding message details: %w", err)
	}
	return &details, nil
}

// VerifyConnectivity makes an authenticated read against the provider,
// retrying with exponential backoff until the context expires. Used as a
// startup health check.
func (c *Client) VerifyConnectivity(ctx context.Context) error {
	boff := &backoff.Backoff{
		Min:    500 * time.Millisecond,
		Max:    10 * time.Second,
		Jitter: true,
	}

	var lastErr error
	for {
		lastErr = c.ping(ctx)
		if lastErr == nil {
			return nil
		}
		select {
		case <-ctx.Done():
			return fmt.Errorf("provider unreachable: %w", lastErr)
		case <-time.After(boff.Duration()):
		}
	}
}

func (c *Client) ping(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.BaseURL+"/domains", nil)
	if err != nil {
		return err
	}
	req.Header.Set("Authorization", "Bearer "+c.APIKey)

	res, err := c.HTTPClient.Do(req)
	if err != nil {
		return err
	}
	defer res.Body.Close()
	io.Copy(io.Discard, res.Body)

	if res.StatusCode >= 400 {
		return fmt.Errorf("provider ping returned %d", res.StatusCode)
	}
	return nil
}

func decodeAPIError(res *http.Response) error {
	var apiErr apiError
	if err := json.NewDecoder(res.Body).Decode(&apiErr); err == nil && apiErr.Message != "" {
		return fmt.Errorf("provider error (%d): %s", res.StatusCode, apiErr.Message)
	}
	return fmt.Errorf("provider error (%d)", res.StatusCode)
}
