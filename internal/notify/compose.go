// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

// Package notify delivers account notifications as email.
//
// A Composer turns an account.Event into a multipart message, a Mailer
// sends it through a Sender, and a Dispatcher moves delivery off the
// request path onto a bounded background queue.
package notify

import (
	"embed"
	htmltemplate "html/template"
	texttemplate "text/template"

	"github.com/samber/oops"
	gomail "github.com/wneessen/go-mail"

	"github.com/holomush/accounts/internal/account"
)

//go:embed templates/*.tmpl
var templateFS embed.FS

// DefaultFrom is the sender address used when none is configured.
const DefaultFrom = "Accounts <no-reply@localhost>"

var subjects = map[account.EventKind]string{
	account.EventSignup:         "Welcome to Our Platform!",
	account.EventLogin:          "Login Successful",
	account.EventAccountDeleted: "Account Deletion Confirmation",
	account.EventOTPIssued:      "Your One-Time Password (OTP) for Password Reset",
	account.EventPasswordReset:  "Your Password Has Been Successfully Reset",
}

// Subject returns the subject line for kind, or "" if kind is unknown.
func Subject(kind account.EventKind) string {
	return subjects[kind]
}

type templatePair struct {
	text *texttemplate.Template
	html *htmltemplate.Template
}

// Composer builds email messages for account events.
type Composer struct {
	from      string
	templates map[account.EventKind]templatePair
}

// NewComposer parses the embedded templates. An empty from uses DefaultFrom.
func NewComposer(from string) (*Composer, error) {
	if from == "" {
		from = DefaultFrom
	}
	c := &Composer{from: from, templates: make(map[account.EventKind]templatePair, len(subjects))}
	for kind := range subjects {
		name := string(kind)
		text, err := texttemplate.ParseFS(templateFS, "templates/"+name+".txt.tmpl")
		if err != nil {
			return nil, oops.Code("MAIL_TEMPLATE_FAILED").With("kind", name).Wrap(err)
		}
		html, err := htmltemplate.ParseFS(templateFS, "templates/"+name+".html.tmpl")
		if err != nil {
			return nil, oops.Code("MAIL_TEMPLATE_FAILED").With("kind", name).Wrap(err)
		}
		c.templates[kind] = templatePair{text: text, html: html}
	}
	return c, nil
}

// Compose renders event into a message with a plain-text body and an
// HTML alternative.
func (c *Composer) Compose(event account.Event) (*gomail.Msg, error) {
	tpl, ok := c.templates[event.Kind]
	if !ok {
		return nil, oops.Code("MAIL_UNKNOWN_KIND").With("kind", string(event.Kind)).Errorf("no template for event")
	}

	msg := gomail.NewMsg()
	if err := msg.From(c.from); err != nil {
		return nil, oops.Code("MAIL_ADDRESS_INVALID").With("field", "from").Wrap(err)
	}
	if err := msg.To(event.To); err != nil {
		return nil, oops.Code("MAIL_ADDRESS_INVALID").With("field", "to").Wrap(err)
	}
	msg.Subject(subjects[event.Kind])
	msg.SetDate()
	msg.SetMessageID()

	if err := msg.SetBodyTextTemplate(tpl.text, event); err != nil {
		return nil, oops.Code("MAIL_RENDER_FAILED").With("kind", string(event.Kind)).With("part", "text").Wrap(err)
	}
	if err := msg.AddAlternativeHTMLTemplate(tpl.html, event); err != nil {
		return nil, oops.Code("MAIL_RENDER_FAILED").With("kind", string(event.Kind)).With("part", "html").Wrap(err)
	}
	return msg, nil
}
