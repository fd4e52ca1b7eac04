// Package notify emails a university's contacts when one of its students
// records an absence.
package notify

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/sendgrid/sendgrid-go"
	sgmail "github.com/sendgrid/sendgrid-go/helpers/mail"
)

// Sender delivers one email to a set of recipients.
type Sender interface {
	Send(ctx context.Context, to []string, subject, htmlBody string) error
}

// SendGridSender delivers through the SendGrid v3 API.
type SendGridSender struct {
	client   *sendgrid.Client
	fromName string
	fromAddr string
}

func NewSendGridSender(apiKey, fromName, fromAddr string) *SendGridSender {
	return &SendGridSender{
		client:   sendgrid.NewSendClient(apiKey),
		fromName: fromName,
		fromAddr: fromAddr,
	}
}

func (s *SendGridSender) Send(ctx context.Context, to []string, subject, htmlBody string) error {
	p := sgmail.NewPersonalization()
	p.Subject = subject
	for _, addr := range to {
		p.AddTos(sgmail.NewEmail("", addr))
	}

	m := sgmail.NewV3Mail()
	m.SetFrom(sgmail.NewEmail(s.fromName, s.fromAddr))
	m.AddPersonalizations(p)
	m.AddContent(sgmail.NewContent("text/html", htmlBody))

	res, err := s.client.SendWithContext(ctx, m)
	if err != nil {
		return fmt.Errorf("sendgrid send: %w", err)
	}
	if res.StatusCode >= http.StatusBadRequest {
		return fmt.Errorf("sendgrid send: status %d: %s", res.StatusCode, res.Body)
	}
	return nil
}

// ConsoleSender logs instead of sending. Wired when no SendGrid key is
// configured so development environments never email real contacts.
type ConsoleSender struct {
	logger *slog.Logger
}

func NewConsoleSender(logger *slog.Logger) *ConsoleSender {
	return &ConsoleSender{logger: logger}
}

func (s *ConsoleSender) Send(ctx context.Context, to []string, subject, htmlBody string) error {
	s.logger.InfoContext(ctx, "email suppressed, no delivery backend configured",
		"to", to, "subject", subject, "body_bytes", len(htmlBody))
	return nil
}
