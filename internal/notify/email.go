package notify

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/go-pkgz/email"
	"github.com/go-pkgz/lgr"

	"meal-mailer/internal/config"
)

// ErrNoRecipients is returned when email delivery is on but nobody would receive it.
var ErrNoRecipients = errors.New("no recipient emails configured")

// Mailer sends one message; *email.Sender satisfies it.
type Mailer interface {
	Send(text string, params email.Params) error
}

// EmailDeliverer sends the HTML plan over SMTP.
type EmailDeliverer struct {
	mailer     Mailer
	from       string
	recipients []string
}

// NewEmailDeliverer builds an SMTP deliverer from the email configuration.
func NewEmailDeliverer(cfg config.EmailConfig) *EmailDeliverer {
	sender := email.NewSender(cfg.Host,
		email.Port(cfg.Port),
		email.TLS(cfg.Port == 465),
		email.STARTTLS(cfg.Port == 587),
		email.Auth(cfg.Sender, cfg.Password),
		email.ContentType("text/html"),
		email.TimeOut(30*time.Second),
		email.Log(lgr.Default()),
	)
	return NewEmailDelivererWith(sender, cfg.Sender, cfg.Recipients)
}

// NewEmailDelivererWith creates a deliverer over an existing mailer.
func NewEmailDelivererWith(m Mailer, from string, recipients []string) *EmailDeliverer {
	return &EmailDeliverer{mailer: m, from: from, recipients: recipients}
}

// Name implements Deliverer.
func (e *EmailDeliverer) Name() string { return "email" }

// Validate implements Deliverer.
func (e *EmailDeliverer) Validate() error {
	if len(e.nonEmptyRecipients()) == 0 {
		return ErrNoRecipients
	}
	if e.from == "" {
		return fmt.Errorf("sender email is not set")
	}
	return nil
}

// Deliver implements Deliverer. The SMTP client has its own timeout, ctx is
// only checked before sending.
func (e *EmailDeliverer) Deliver(ctx context.Context, s Summary) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	to := e.nonEmptyRecipients()
	err := e.mailer.Send(s.HTML, email.Params{From: e.from, To: to, Subject: s.Subject})
	if err != nil {
		return fmt.Errorf("failed to send email: %w", err)
	}
	return nil
}

func (e *EmailDeliverer) nonEmptyRecipients() []string {
	var to []string
	for _, r := range e.recipients {
		if r = strings.TrimSpace(r); r != "" {
			to = append(to, r)
		}
	}
	return to
}
