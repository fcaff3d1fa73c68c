package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"
)

// StatusError is a non-2xx answer of the push provider.
type StatusError struct {
	Code int
	Body string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("push provider answered %d: %s", e.Code, e.Body)
}

// HTTPPush posts notifications to a push provider endpoint as JSON.
type HTTPPush struct {
	endpoint string
	client   *http.Client
}

// NewHTTPPush creates a push sender. An empty endpoint returns nil.
func NewHTTPPush(endpoint string, timeout time.Duration) *HTTPPush {
	if endpoint == "" {
		return nil
	}
	return &HTTPPush{endpoint: endpoint, client: &http.Client{Timeout: timeout}}
}

type pushRequest struct {
	To    string            `json:"to"`
	Title string            `json:"title"`
	Body  string            `json:"body"`
	Data  map[string]string `json:"data,omitempty"`
	Sound string            `json:"sound,omitempty"`
}

// Send implements Sender.
func (p *HTTPPush) Send(ctx context.Context, n Notification) error {
	if n.Token == "" {
		return ErrNoRecipient
	}
	payload, err := json.Marshal(pushRequest{To: n.Token, Title: n.Title, Body: n.Body, Data: n.Data, Sound: "default"})
	if err != nil {
		return fmt.Errorf("encode push: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.endpoint, bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("build push request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")

	resp, err := p.client.Do(req)
	if err != nil {
		return fmt.Errorf("push to %s: %w", n.Recipient, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return &StatusError{Code: resp.StatusCode, Body: string(body)}
	}
	_, _ = io.Copy(io.Discard, resp.Body)
	return nil
}
