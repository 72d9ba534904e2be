package services

import (
	"context"
	"fmt"
	"html"
	"strings"
	"time"

	"github.com/sendgrid/rest"
	"github.com/sendgrid/sendgrid-go"
	"github.com/sendgrid/sendgrid-go/helpers/mail"
	"github.com/sirupsen/logrus"

	"github.com/learnly/mono-repo/backend/services/auth-service/internal/config"
	"github.com/learnly/mono-repo/backend/shared/go-utils"
)

// NotificationDispatcher delivers a message to one recipient. Callers treat
// it as fire-and-forget.
type NotificationDispatcher interface {
	Dispatch(ctx context.Context, recipient, subject, body string) error
}

// NewNotificationDispatcher picks SendGrid when an API key is configured
// and a log-only dispatcher otherwise.
func NewNotificationDispatcher(cfg *config.Config) NotificationDispatcher {
	if cfg.SendGridAPIKey == "" {
		utils.Logger.Warn("SENDGRID_API_KEY not set; notifications will only be logged")
		return NewLogDispatcher()
	}
	return NewSendGridDispatcher(
		sendgrid.NewSendClient(cfg.SendGridAPIKey),
		cfg.OrganizationName,
		cfg.SendGridFromEmail,
		cfg.LDFlag_SendgridSandboxMode,
	)
}

/* ---------- SendGrid ---------- */

const (
	sendAttempts     = 3
	sendInitialDelay = 500 * time.Millisecond
)

type mailSender interface {
	SendWithContext(ctx context.Context, email *mail.SGMailV3) (*rest.Response, error)
}

type sendGridDispatcher struct {
	client      mailSender
	fromName    string
	fromEmail   string
	sandboxMode bool
	retryDelay  time.Duration
}

func NewSendGridDispatcher(client mailSender, fromName, fromEmail string, sandboxMode bool) NotificationDispatcher {
	return &sendGridDispatcher{
		client:      client,
		fromName:    fromName,
		fromEmail:   fromEmail,
		sandboxMode: sandboxMode,
		retryDelay:  sendInitialDelay,
	}
}

// Dispatch retries transport errors and 5xx/429 responses a bounded number
// of times. Other 4xx responses are not retried.
func (d *sendGridDispatcher) Dispatch(ctx context.Context, recipient, subject, body string) error {
	from := mail.NewEmail(d.fromName, d.fromEmail)
	to := mail.NewEmail("", recipient)
	message := mail.NewSingleEmail(from, subject, to, body, renderEmailHTML(subject, body))
	if d.sandboxMode {
		ms := mail.NewMailSettings()
		ms.SetSandboxMode(mail.NewSetting(true))
		message.SetMailSettings(ms)
	}

	delay := d.retryDelay
	var lastErr error
	for attempt := 1; attempt <= sendAttempts; attempt++ {
		resp, err := d.client.SendWithContext(ctx, message)
		switch {
		case err != nil:
			lastErr = err
		case resp.StatusCode >= 500 || resp.StatusCode == 429:
			lastErr = fmt.Errorf("sendgrid status %d", resp.StatusCode)
		case resp.StatusCode >= 400:
			return fmt.Errorf("%w: sendgrid status %d: %s", utils.ErrExternalServiceFailure, resp.StatusCode, resp.Body)
		default:
			return nil
		}

		if attempt == sendAttempts {
			break
		}
		utils.Logger.WithError(lastErr).Warnf("email send attempt %d/%d failed; retrying in %v", attempt, sendAttempts, delay)
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(delay):
		}
		delay *= 2
	}
	return fmt.Errorf("%w: failed to send email via sendgrid: %v", utils.ErrExternalServiceFailure, lastErr)
}

/* ---------- log only ---------- */

type logDispatcher struct{}

func NewLogDispatcher() NotificationDispatcher { return logDispatcher{} }

// Dispatch records that a message would have been sent. The body is not
// logged because it can carry reset tokens.
func (logDispatcher) Dispatch(_ context.Context, recipient, subject, _ string) error {
	utils.Logger.WithFields(logrus.Fields{
		"recipient": recipient,
		"subject":   subject,
	}).Info("notification (log only)")
	return nil
}

func renderEmailHTML(title, body string) string {
	paragraphs := strings.Split(html.EscapeString(body), "\n\n")
	var b strings.Builder
	for _, p := range paragraphs {
		b.WriteString("<p>")
		b.WriteString(strings.ReplaceAll(p, "\n", "<br>"))
		b.WriteString("</p>")
	}
	return fmt.Sprintf(emailLayoutHTML, html.EscapeString(title), html.EscapeString(title), b.String(), time.Now().Year(), utils.OrganizationName)
}
