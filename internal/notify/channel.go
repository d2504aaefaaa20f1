package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"
)

// PushMessage is a rendered notification addressed to device tokens.
type PushMessage struct {
	Tokens    []string `json:"tokens"`
	Title     string   `json:"title"`
	Body      string   `json:"body"`
	AlertID   string   `json:"alert_id"`
	Latitude  float64  `json:"latitude"`
	Longitude float64  `json:"longitude"`
}

// Channel delivers push messages.
type Channel interface {
	Send(ctx context.Context, msg PushMessage) error
}

// WebhookChannel relays push messages to an external push gateway.
type WebhookChannel struct {
	url    string
	client *http.Client
}

// WebhookOption configures the webhook channel.
type WebhookOption func(*WebhookChannel)

// WithHTTPClient overrides the HTTP client.
func WithHTTPClient(client *http.Client) WebhookOption {
	return func(ch *WebhookChannel) {
		if client != nil {
			ch.client = client
		}
	}
}

// NewWebhookChannel constructs a webhook channel.
func NewWebhookChannel(url string, opts ...WebhookOption) (*WebhookChannel, error) {
	if url == "" {
		return nil, errors.New("push channel: empty url")
	}
	channel := &WebhookChannel{
		url:    url,
		client: &http.Client{Timeout: 10 * time.Second},
	}
	for _, opt := range opts {
		opt(channel)
	}
	return channel, nil
}

// Send posts the message as JSON to the gateway.
func (w *WebhookChannel) Send(ctx context.Context, msg PushMessage) error {
	if w == nil || w.url == "" {
		return errors.New("push channel: empty url")
	}
	body, err := json.Marshal(msg)
	if err != nil {
		return err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, w.url, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	resp, err := w.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 300 {
		return fmt.Errorf("push channel: non-2xx response %d", resp.StatusCode)
	}
	return nil
}
