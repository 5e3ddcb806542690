package sms

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"
)

// MaxBodyRunes keeps a message within three concatenated SMS segments.
const MaxBodyRunes = 459

type Sender interface {
	Send(ctx context.Context, to string, body string) error
	ProviderID() string
}

type WebhookSender struct {
	url    string
	token  string
	sender string
	http   *http.Client
}

type WebhookOption func(*WebhookSender)

// WithSenderID sets the alphanumeric sender shown on the handset.
func WithSenderID(id string) WebhookOption {
	return func(s *WebhookSender) { s.sender = strings.TrimSpace(id) }
}

func WithTimeout(d time.Duration) WebhookOption {
	return func(s *WebhookSender) {
		if d > 0 {
			s.http.Timeout = d
		}
	}
}

func NewWebhookSender(url string, token string, opts ...WebhookOption) *WebhookSender {
	s := &WebhookSender{
		url:   strings.TrimSpace(url),
		token: strings.TrimSpace(token),
		http: &http.Client{
			Timeout: 5 * time.Second,
		},
	}
	for _, o := range opts {
		o(s)
	}
	return s
}

func (s *WebhookSender) ProviderID() string {
	return "sms-webhook"
}

type webhookPayload struct {
	To   string `json:"to"`
	From string `json:"from,omitempty"`
	Body string `json:"body"`
}

func (s *WebhookSender) Send(ctx context.Context, to string, body string) error {
	if s.url == "" {
		return errors.New("sms webhook url not configured")
	}
	raw, err := json.Marshal(webhookPayload{To: to, From: s.sender, Body: truncate(body, MaxBodyRunes)})
	if err != nil {
		return err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.url, bytes.NewReader(raw))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	if s.token != "" {
		req.Header.Set("Authorization", "Bearer "+s.token)
	}
	resp, err := s.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("sms webhook returned %d", resp.StatusCode)
	}
	return nil
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n-1]) + "…"
}

// NoopSender accepts every message. Used when no SMS provider is configured.
type NoopSender struct{}

func NewNoopSender() *NoopSender {
	return &NoopSender{}
}

func (s *NoopSender) ProviderID() string {
	return "sms-noop"
}

func (s *NoopSender) Send(_ context.Context, _ string, _ string) error {
	return nil
}
