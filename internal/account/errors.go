// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

package account

import "errors"

// Sentinel errors. Coded errors returned by this package wrap one of these so
// callers can classify failures with errors.Is.
var (
	// ErrNotFound is returned when a requested user does not exist.
	ErrNotFound = errors.New("not found")

	// ErrConflict is returned when a user with the same email already exists.
	ErrConflict = errors.New("conflict")

	// ErrInvalidInput is returned for missing or malformed input.
	ErrInvalidInput = errors.New("invalid input")

	// ErrInvalidCredentials is returned for any failed login.
	ErrInvalidCredentials = errors.New("invalid credentials")

	// ErrForbidden is returned when a password reset is attempted without a verified OTP.
	ErrForbidden = errors.New("forbidden")

	// ErrInvalidToken is returned when a bearer token fails verification.
	ErrInvalidToken = errors.New("invalid token")
)
