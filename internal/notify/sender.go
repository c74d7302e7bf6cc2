// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

package notify

import (
	"context"
	"errors"
	"time"

	"github.com/samber/oops"
	gomail "github.com/wneessen/go-mail"

	"github.com/holomush/accounts/internal/account"
)

// ErrNotConfigured is returned by the sender used when no SMTP host is set.
var ErrNotConfigured = errors.New("mail delivery is not configured")

// Default SMTP settings.
const (
	DefaultPort    = 587
	DefaultTimeout = 10 * time.Second
)

// Sender transmits composed messages.
type Sender interface {
	Send(ctx context.Context, msg *gomail.Msg) error
}

// SMTPConfig holds the SMTP relay settings.
type SMTPConfig struct {
	Host     string
	Port     int
	Username string
	Password string
	Timeout  time.Duration
}

// SMTPSender sends mail through an SMTP relay with go-mail.
type SMTPSender struct {
	client *gomail.Client
}

// NewSMTPSender creates a sender for cfg. STARTTLS is used when the relay
// offers it. Auth is only attempted when a username is set.
func NewSMTPSender(cfg SMTPConfig) (*SMTPSender, error) {
	if cfg.Host == "" {
		return nil, oops.Code("MAIL_CONFIG_INVALID").With("field", "host").Wrap(ErrNotConfigured)
	}
	if cfg.Port == 0 {
		cfg.Port = DefaultPort
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = DefaultTimeout
	}

	opts := []gomail.Option{
		gomail.WithPort(cfg.Port),
		gomail.WithTLSPolicy(gomail.TLSOpportunistic),
		gomail.WithTimeout(cfg.Timeout),
	}
	if cfg.Username != "" {
		opts = append(opts,
			gomail.WithSMTPAuth(gomail.SMTPAuthPlain),
			gomail.WithUsername(cfg.Username),
			gomail.WithPassword(cfg.Password),
		)
	}

	client, err := gomail.NewClient(cfg.Host, opts...)
	if err != nil {
		return nil, oops.Code("MAIL_CONFIG_INVALID").With("host", cfg.Host).With("port", cfg.Port).Wrap(err)
	}
	return &SMTPSender{client: client}, nil
}

// Send dials the relay and sends msg.
func (s *SMTPSender) Send(ctx context.Context, msg *gomail.Msg) error {
	if err := s.client.DialAndSendWithContext(ctx, msg); err != nil {
		return oops.Code("MAIL_SEND_FAILED").Wrap(err)
	}
	return nil
}

type disabledSender struct{}

func (disabledSender) Send(context.Context, *gomail.Msg) error {
	return oops.Code("MAIL_DISABLED").Wrap(ErrNotConfigured)
}

// DisabledSender returns a Sender that fails every message with
// ErrNotConfigured.
func DisabledSender() Sender {
	return disabledSender{}
}

// Mailer is a synchronous account.Notifier that composes and sends one
// message per event.
type Mailer struct {
	composer *Composer
	sender   Sender
}

// NewMailer creates a Mailer.
func NewMailer(composer *Composer, sender Sender) *Mailer {
	return &Mailer{composer: composer, sender: sender}
}

// Notify composes event and sends it.
func (m *Mailer) Notify(ctx context.Context, event account.Event) error {
	msg, err := m.composer.Compose(event)
	if err != nil {
		return err
	}
	return m.sender.Send(ctx, msg)
}

var _ account.Notifier = (*Mailer)(nil)
