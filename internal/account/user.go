// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

package account

import (
	"context"
	"crypto/subtle"
	"net/mail"
	"strings"
	"time"

	"github.com/oklog/ulid/v2"
	"github.com/samber/oops"
)

// Field limits.
const (
	MaxUsernameLength = 64
	MaxEmailLength    = 254
	MaxPhoneLength    = 32
)

// User is a registered account.
type User struct {
	ID           ulid.ULID
	Username     string
	Email        string
	PasswordHash string
	PhoneNumber  string

	// OTP is the pending one-time password, nil outside a reset flow.
	OTP          *string
	OTPExpiresAt *time.Time
	OTPVerified  bool

	CreatedAt time.Time
	UpdatedAt time.Time
}

// OTPState is the position of a user in the reset flow.
type OTPState int

// OTP states.
const (
	OTPNone OTPState = iota
	OTPPending
	OTPVerified
)

// String returns the state name.
func (s OTPState) String() string {
	switch s {
	case OTPPending:
		return "pending"
	case OTPVerified:
		return "verified"
	default:
		return "none"
	}
}

// NewUser creates a User with a fresh ID after validating its fields.
// The email is normalized with NormalizeEmail.
func NewUser(username, email, passwordHash, phoneNumber string, now time.Time) (*User, error) {
	if err := ValidateUsername(username); err != nil {
		return nil, err
	}
	normalized, err := ValidateEmail(email)
	if err != nil {
		return nil, err
	}
	if err := ValidatePhoneNumber(phoneNumber); err != nil {
		return nil, err
	}
	if passwordHash == "" {
		return nil, oops.Code("ACCOUNT_INVALID_INPUT").
			With("field", "password").
			Wrapf(ErrInvalidInput, "password hash cannot be empty")
	}

	return &User{
		ID:           ulid.Make(),
		Username:     strings.TrimSpace(username),
		Email:        normalized,
		PasswordHash: passwordHash,
		PhoneNumber:  strings.TrimSpace(phoneNumber),
		CreatedAt:    now,
		UpdatedAt:    now,
	}, nil
}

// NormalizeEmail trims and lowercases an email address.
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// ValidateEmail checks that email is a bare address and returns it normalized.
func ValidateEmail(email string) (string, error) {
	normalized := NormalizeEmail(email)
	if normalized == "" {
		return "", invalidField("email", "email is required")
	}
	if len(normalized) > MaxEmailLength {
		return "", invalidField("email", "email is too long")
	}
	addr, err := mail.ParseAddress(normalized)
	if err != nil || addr.Address != normalized {
		return "", invalidField("email", "email is not a valid address")
	}
	return normalized, nil
}

// ValidateUsername checks that a username is present and within limits.
func ValidateUsername(username string) error {
	trimmed := strings.TrimSpace(username)
	if trimmed == "" {
		return invalidField("username", "username is required")
	}
	if len(trimmed) > MaxUsernameLength {
		return invalidField("username", "username is too long")
	}
	return nil
}

// ValidatePhoneNumber checks that a phone number is present and within limits.
func ValidatePhoneNumber(phone string) error {
	trimmed := strings.TrimSpace(phone)
	if trimmed == "" {
		return invalidField("phonenumber", "phone number is required")
	}
	if len(trimmed) > MaxPhoneLength {
		return invalidField("phonenumber", "phone number is too long")
	}
	return nil
}

func invalidField(field, msg string) error {
	return oops.Code("ACCOUNT_INVALID_INPUT").With("field", field).Wrapf(ErrInvalidInput, "%s", msg)
}

// OTPState reports where the user is in the reset flow at the given time.
// An expired, unverified code counts as OTPNone.
func (u *User) OTPState(now time.Time) OTPState {
	if u.OTP == nil {
		return OTPNone
	}
	if u.OTPVerified {
		return OTPVerified
	}
	if u.OTPExpiresAt == nil || !now.Before(*u.OTPExpiresAt) {
		return OTPNone
	}
	return OTPPending
}

// IssueOTP stores a new code that expires after OTPExpiry and clears any
// earlier verification.
func (u *User) IssueOTP(code string, now time.Time) {
	expiresAt := now.Add(OTPExpiry)
	u.OTP = &code
	u.OTPExpiresAt = &expiresAt
	u.OTPVerified = false
	u.UpdatedAt = now
}

// CheckOTP compares code against the stored one. It returns true and marks
// the user verified when the codes match and the code has not expired.
// Any other outcome clears the verified flag. The stored code is kept.
func (u *User) CheckOTP(code string, now time.Time) bool {
	ok := u.OTP != nil &&
		u.OTPExpiresAt != nil &&
		now.Before(*u.OTPExpiresAt) &&
		subtle.ConstantTimeCompare([]byte(*u.OTP), []byte(code)) == 1
	u.OTPVerified = ok
	u.UpdatedAt = now
	return ok
}

// ConsumeOTP replaces the password hash and clears the OTP fields.
// It fails with ErrForbidden unless the OTP was verified.
func (u *User) ConsumeOTP(newHash string, now time.Time) error {
	if !u.OTPVerified {
		return oops.Code("OTP_NOT_VERIFIED").
			With("user_id", u.ID.String()).
			Wrapf(ErrForbidden, "otp not verified")
	}
	if newHash == "" {
		return oops.Code("ACCOUNT_INVALID_INPUT").
			With("field", "password").
			Wrapf(ErrInvalidInput, "password hash cannot be empty")
	}
	u.PasswordHash = newHash
	u.OTP = nil
	u.OTPExpiresAt = nil
	u.OTPVerified = false
	u.UpdatedAt = now
	return nil
}

// Profile returns the fields that may be shown to the account owner.
func (u *User) Profile() Profile {
	return Profile{ID: u.ID, Username: u.Username, Email: u.Email}
}

// Profile is the public view of a user. It never carries the password hash.
type Profile struct {
	ID       ulid.ULID
	Username string
	Email    string
}

// UserRepository manages user persistence.
//
// Update persists the whole record and is last-write-wins; no version check
// is made against concurrent writers.
type UserRepository interface {
	// FindByEmail returns ErrNotFound when no user has the (normalized) email.
	FindByEmail(ctx context.Context, email string) (*User, error)
	// FindByID returns ErrNotFound when the user does not exist.
	FindByID(ctx context.Context, id ulid.ULID) (*User, error)
	// Create returns ErrConflict when the email is already registered.
	Create(ctx context.Context, user *User) error
	// Update returns ErrNotFound when the user no longer exists.
	Update(ctx context.Context, user *User) error
	// Delete returns the number of removed rows (0 or 1).
	Delete(ctx context.Context, id ulid.ULID) (int64, error)
}
