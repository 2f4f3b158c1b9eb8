// Package mail delivers attendee emails through SendGrid, or to the log when
// no API key is configured.
package mail

import (
	"context"
	"fmt"

	"github.com/sendgrid/sendgrid-go"
	sgmail "github.com/sendgrid/sendgrid-go/helpers/mail"
	"github.com/sirupsen/logrus"
)

// Email is one outgoing message to one recipient.
type Email struct {
	ToName  string
	ToEmail string
	Subject string
	Text    string
	HTML    string
}

// Mailer sends a single email.
type Mailer interface {
	Send(ctx context.Context, e Email) error
}

// SendGridMailer sends through the SendGrid v3 API.
type SendGridMailer struct {
	client   *sendgrid.Client
	fromName string
	fromAddr string
	logger   *logrus.Logger
}

func NewSendGridMailer(apiKey, fromName, fromAddr string, logger *logrus.Logger) *SendGridMailer {
	return &SendGridMailer{
		client:   sendgrid.NewSendClient(apiKey),
		fromName: fromName,
		fromAddr: fromAddr,
		logger:   logger,
	}
}

func (m *SendGridMailer) Send(ctx context.Context, e Email) error {
	msg := buildMessage(m.fromName, m.fromAddr, e)

	resp, err := m.client.SendWithContext(ctx, msg)
	if err != nil {
		return fmt.Errorf("failed to send email to %s: %w", e.ToEmail, err)
	}
	if resp.StatusCode >= 400 {
		m.logger.WithFields(logrus.Fields{
			"status": resp.StatusCode,
			"body":   resp.Body,
		}).Error("SendGrid returned error status")
		return fmt.Errorf("sendgrid returned status %d for %s", resp.StatusCode, e.ToEmail)
	}
	return nil
}

func buildMessage(fromName, fromAddr string, e Email) *sgmail.SGMailV3 {
	from := sgmail.NewEmail(fromName, fromAddr)
	to := sgmail.NewEmail(e.ToName, e.ToEmail)
	return sgmail.NewSingleEmail(from, e.Subject, to, e.Text, e.HTML)
}

// LogMailer writes emails to the log instead of sending them.
type LogMailer struct {
	logger *logrus.Logger
}

func NewLogMailer(logger *logrus.Logger) *LogMailer {
	return &LogMailer{logger: logger}
}

func (m *LogMailer) Send(ctx context.Context, e Email) error {
	m.logger.WithFields(logrus.Fields{
		"to":      e.ToEmail,
		"subject": e.Subject,
	}).Info("Email not sent: SENDGRID_API_KEY is not configured")
	return nil
}

// New picks SendGrid when apiKey is set and the log mailer otherwise.
func New(apiKey, fromName, fromAddr string, logger *logrus.Logger) Mailer {
	if apiKey == "" {
		return NewLogMailer(logger)
	}
	return NewSendGridMailer(apiKey, fromName, fromAddr, logger)
}
