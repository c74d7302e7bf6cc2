// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

package notify

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	gomail "github.com/wneessen/go-mail"

	"github.com/holomush/accounts/internal/account"
	"github.com/holomush/accounts/pkg/errutil"
)

func render(t *testing.T, msg *gomail.Msg) string {
	t.Helper()
	var buf bytes.Buffer
	_, err := msg.WriteTo(&buf)
	require.NoError(t, err)
	return buf.String()
}

func TestComposer_EveryKindHasSubjectAndBody(t *testing.T) {
	c, err := NewComposer("")
	require.NoError(t, err)

	kinds := []account.EventKind{
		account.EventSignup,
		account.EventLogin,
		account.EventAccountDeleted,
		account.EventOTPIssued,
		account.EventPasswordReset,
	}
	for _, kind := range kinds {
		t.Run(string(kind), func(t *testing.T) {
			msg, err := c.Compose(account.Event{Kind: kind, To: "alice@example.com", Username: "alice"})
			require.NoError(t, err)

			assert.Equal(t, []string{Subject(kind)}, msg.GetGenHeader(gomail.HeaderSubject))
			out := render(t, msg)
			assert.Contains(t, out, "Hello alice")
			assert.Contains(t, out, "text/plain")
			assert.Contains(t, out, "text/html")
			assert.Contains(t, out, "alice@example.com")
		})
	}
}

func TestComposer_OTPMessageCarriesCodeAndValidity(t *testing.T) {
	c, err := NewComposer("Support <support@example.com>")
	require.NoError(t, err)

	msg, err := c.Compose(account.Event{
		Kind:      account.EventOTPIssued,
		To:        "alice@example.com",
		Username:  "alice",
		OTP:       "482913",
		ExpiresIn: "10 minutes",
	})
	require.NoError(t, err)

	assert.Equal(t, []string{"Your One-Time Password (OTP) for Password Reset"}, msg.GetGenHeader(gomail.HeaderSubject))
	out := render(t, msg)
	assert.Contains(t, out, "482913")
	assert.Contains(t, out, "10 minutes")
	assert.Contains(t, out, "support@example.com")
}

func TestComposer_EscapesHTML(t *testing.T) {
	c, err := NewComposer("")
	require.NoError(t, err)

	msg, err := c.Compose(account.Event{Kind: account.EventSignup, To: "eve@example.com", Username: "<script>"})
	require.NoError(t, err)

	out := render(t, msg)
	assert.Contains(t, out, "&lt;script&gt;")
}

func TestComposer_Errors(t *testing.T) {
	c, err := NewComposer("")
	require.NoError(t, err)

	_, err = c.Compose(account.Event{Kind: "bogus", To: "alice@example.com"})
	require.Error(t, err)
	errutil.AssertErrorCode(t, err, "MAIL_UNKNOWN_KIND")

	_, err = c.Compose(account.Event{Kind: account.EventLogin, To: "not an address"})
	require.Error(t, err)
	errutil.AssertErrorCode(t, err, "MAIL_ADDRESS_INVALID")
	errutil.AssertErrorContext(t, err, "field", "to")
}

func TestNewComposer_InvalidFromFailsAtCompose(t *testing.T) {
	c, err := NewComposer("definitely not an address")
	require.NoError(t, err)

	_, err = c.Compose(account.Event{Kind: account.EventLogin, To: "alice@example.com"})
	require.Error(t, err)
	errutil.AssertErrorContext(t, err, "field", "from")
}
