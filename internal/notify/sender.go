package notify

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/resend/resend-go/v2"
	"github.com/rs/zerolog"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
)

// Email is a provider-neutral outgoing message.
type Email struct {
	From        string
	To          []string
	ReplyTo     string
	Subject     string
	HTML        string
	Attachments []Attachment
	Tags        map[string]string
}

// Attachment is a file sent with an Email.
type Attachment struct {
	Filename    string
	ContentType string
	Content     []byte
}

// Sender delivers an Email and returns the provider message id.
type Sender interface {
	Send(ctx context.Context, email Email) (string, error)
}

// ResendSender delivers email through the Resend API.
type ResendSender struct {
	client *resend.Client
}

// NewResendSender builds a Resend client whose HTTP calls are traced. A nil
// base uses http.DefaultTransport.
func NewResendSender(apiKey string, base http.RoundTripper) (*ResendSender, error) {
	if strings.TrimSpace(apiKey) == "" {
		return nil, errors.New("notify: resend api key is required")
	}
	if base == nil {
		base = http.DefaultTransport
	}
	httpClient := &http.Client{Transport: otelhttp.NewTransport(base), Timeout: 30 * time.Second}
	return &ResendSender{client: resend.NewCustomClient(httpClient, apiKey)}, nil
}

// Send implements Sender.
func (s *ResendSender) Send(ctx context.Context, email Email) (string, error) {
	params := &resend.SendEmailRequest{
		From:    email.From,
		To:      email.To,
		Subject: email.Subject,
		Html:    email.HTML,
		ReplyTo: email.ReplyTo,
	}
	for _, a := range email.Attachments {
		params.Attachments = append(params.Attachments, &resend.Attachment{
			Filename:    a.Filename,
			ContentType: a.ContentType,
			Content:     a.Content,
		})
	}
	for name, value := range email.Tags {
		params.Tags = append(params.Tags, resend.Tag{Name: name, Value: value})
	}
	sent, err := s.client.Emails.SendWithContext(ctx, params)
	if err != nil {
		return "", err
	}
	return sent.Id, nil
}

// LogSender writes emails to the log instead of sending them. It is used when
// no provider key is configured.
type LogSender struct {
	Logger zerolog.Logger
}

// Send implements Sender.
func (s LogSender) Send(_ context.Context, email Email) (string, error) {
	s.Logger.Info().
		Strs("to", email.To).
		Str("subject", email.Subject).
		Int("attachments", len(email.Attachments)).
		Msg("email_not_sent_no_provider")
	return "", nil
}
