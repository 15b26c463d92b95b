// Package mail delivers notification email through an HTTP mail API.
package mail

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"

	"github.com/adeilh/taskdo/internal/logutil"
)

var ErrDelivery = errors.New("mail: delivery failed")

// Notifier sends a single message to a recipient. Callers treat delivery
// as best-effort; a failed send never fails the surrounding operation.
type Notifier interface {
	Notify(ctx context.Context, recipient, subject, body string) error
}

type message struct {
	From    string `json:"from"`
	To      string `json:"to"`
	Subject string `json:"subject"`
	Text    string `json:"text"`
}

// Mailer posts messages to an HTTP mail API endpoint.
type Mailer struct {
	client *resty.Client
	sender string
}

type mailerOptions struct {
	apiKey  string
	sender  string
	timeout time.Duration
}

type MailerOption func(*mailerOptions)

// WithAPIKey sets the bearer credential sent to the mail API.
func WithAPIKey(key string) MailerOption {
	return func(o *mailerOptions) { o.apiKey = key }
}

// WithSender sets the From address.
func WithSender(sender string) MailerOption {
	return func(o *mailerOptions) { o.sender = sender }
}

// WithTimeout bounds each delivery attempt.
func WithTimeout(d time.Duration) MailerOption {
	return func(o *mailerOptions) { o.timeout = d }
}

func NewMailer(endpoint string, opts ...MailerOption) *Mailer {
	cfg := mailerOptions{
		sender:  "noreply@taskdo.local",
		timeout: 15 * time.Second,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(&cfg)
		}
	}

	rc := resty.New().
		SetBaseURL(strings.TrimRight(endpoint, "/")).
		SetTimeout(cfg.timeout).
		SetHeader("Content-Type", "application/json")
	if cfg.apiKey != "" {
		rc.SetHeader("Authorization", "Bearer "+cfg.apiKey)
	}
	return &Mailer{client: rc, sender: cfg.sender}
}

func (m *Mailer) Notify(ctx context.Context, recipient, subject, body string) error {
	resp, err := m.client.R().
		SetContext(ctx).
		SetBody(message{
			From:    m.sender,
			To:      recipient,
			Subject: subject,
			Text:    body,
		}).
		Post("/messages")
	if err != nil {
		return fmt.Errorf("%w: %v", ErrDelivery, err)
	}
	if resp.IsError() {
		return fmt.Errorf("%w: http %d: %s", ErrDelivery, resp.StatusCode(), strings.TrimSpace(resp.String()))
	}
	return nil
}

// LogNotifier writes messages to the log instead of sending them. Used
// in development when no mail endpoint is configured.
type LogNotifier struct{}

func (LogNotifier) Notify(ctx context.Context, recipient, subject, body string) error {
	logger := logutil.GetOrDefault(ctx)
	logger.Info().
		Str("recipient", recipient).
		Str("subject", subject).
		Str("body", body).
		Msg("mail notification (log only)")
	return nil
}
