// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

// Package account implements user accounts and their credential lifecycle.
//
// # Domain Types
//
// A User is created with NewUser, which validates the required fields and
// normalizes the email address. Direct struct initialization bypasses
// validation and may create invalid state.
//
// The one-time password used for password resets lives on the User record
// and moves through three states (see OTPState):
//
//	NoOTP -> Pending      IssueOTP
//	Pending -> Verified   CheckOTP with the right code before expiry
//	Verified -> NoOTP     ConsumeOTP together with the new password hash
//
// # Services
//
// Service coordinates the repository, hasher, token issuer and notifier for
// registration, login, profile changes, deletion and the reset flow. It is
// created with NewService, which validates its dependencies.
//
// Notifications are best-effort: a failing Notifier is logged and never
// changes the outcome of the operation that triggered it.
package account
