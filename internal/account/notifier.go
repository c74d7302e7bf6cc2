// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

package account

import "context"

// EventKind identifies a notification template.
type EventKind string

// Notification kinds.
const (
	EventSignup         EventKind = "signup"
	EventLogin          EventKind = "login"
	EventAccountDeleted EventKind = "account_deleted"
	EventOTPIssued      EventKind = "otp_issued"
	EventPasswordReset  EventKind = "password_reset"
)

// Event is a notification about something that happened to an account.
type Event struct {
	Kind     EventKind
	To       string
	Username string
	// OTP is set only for EventOTPIssued.
	OTP string
	// ExpiresIn is set only for EventOTPIssued.
	ExpiresIn string
}

// Notifier delivers account notifications. Implementations may deliver
// asynchronously; the returned error only reports that the event could not
// be accepted.
type Notifier interface {
	Notify(ctx context.Context, event Event) error
}

// NotifierFunc adapts a function to Notifier.
type NotifierFunc func(ctx context.Context, event Event) error

// Notify calls f.
func (f NotifierFunc) Notify(ctx context.Context, event Event) error {
	return f(ctx, event)
}
