// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

package account

import (
	"context"
	"crypto/rand"
	"errors"
	"math/big"
	"strconv"
	"time"

	"github.com/samber/oops"
)

// OTPExpiry is how long an issued one-time password stays valid.
const OTPExpiry = 10 * time.Minute

// OTP codes are six digits drawn uniformly from [otpMin, otpMin+otpSpan).
const (
	otpMin  = 100000
	otpSpan = 900000
)

// CodeGenerator produces one-time password codes.
type CodeGenerator func() (string, error)

// GenerateOTP returns a uniformly random six digit code.
func GenerateOTP() (string, error) {
	n, err := rand.Int(rand.Reader, big.NewInt(otpSpan))
	if err != nil {
		return "", oops.Code("OTP_GENERATE_FAILED").Wrap(err)
	}
	return strconv.FormatInt(n.Int64()+otpMin, 10), nil
}

// OTPEngine drives the per-user one-time password state machine.
type OTPEngine struct {
	users    UserRepository
	now      func() time.Time
	generate CodeGenerator
}

// OTPOption configures an OTPEngine.
type OTPOption func(*OTPEngine)

// WithOTPClock sets the engine's time source.
func WithOTPClock(now func() time.Time) OTPOption {
	return func(e *OTPEngine) {
		if now != nil {
			e.now = now
		}
	}
}

// WithCodeGenerator replaces GenerateOTP.
func WithCodeGenerator(gen CodeGenerator) OTPOption {
	return func(e *OTPEngine) {
		if gen != nil {
			e.generate = gen
		}
	}
}

// NewOTPEngine creates an OTPEngine.
func NewOTPEngine(users UserRepository, opts ...OTPOption) (*OTPEngine, error) {
	if users == nil {
		return nil, oops.Errorf("user repository is required")
	}
	e := &OTPEngine{
		users:    users,
		now:      time.Now,
		generate: GenerateOTP,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e, nil
}

// Request issues a fresh code for the user with the given email and returns
// the user and the plaintext code for delivery. An unknown email returns a
// nil user, an empty code and no error so callers cannot tell the difference.
func (e *OTPEngine) Request(ctx context.Context, email string) (*User, string, error) {
	user, err := e.users.FindByEmail(ctx, NormalizeEmail(email))
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return nil, "", nil
		}
		return nil, "", oops.Code("OTP_REQUEST_FAILED").
			With("operation", "FindByEmail").
			Wrap(err)
	}

	code, err := e.generate()
	if err != nil {
		return nil, "", oops.Code("OTP_REQUEST_FAILED").
			With("operation", "generate").
			Wrap(err)
	}

	user.IssueOTP(code, e.now())
	if err := e.users.Update(ctx, user); err != nil {
		return nil, "", oops.Code("OTP_REQUEST_FAILED").
			With("operation", "Update").
			With("user_id", user.ID.String()).
			Wrap(err)
	}
	return user, code, nil
}

// Verify checks code for the user with the given email. Unknown emails,
// wrong codes and expired codes all fail with the same OTP_INVALID error.
// A failed check clears the verified flag and is persisted.
func (e *OTPEngine) Verify(ctx context.Context, email, code string) (*User, error) {
	user, err := e.users.FindByEmail(ctx, NormalizeEmail(email))
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return nil, errInvalidOTP()
		}
		return nil, oops.Code("OTP_VERIFY_FAILED").
			With("operation", "FindByEmail").
			Wrap(err)
	}

	ok := user.CheckOTP(code, e.now())
	if err := e.users.Update(ctx, user); err != nil {
		return nil, oops.Code("OTP_VERIFY_FAILED").
			With("operation", "Update").
			With("user_id", user.ID.String()).
			Wrap(err)
	}
	if !ok {
		return nil, errInvalidOTP()
	}
	return user, nil
}

// Verified loads the user with the given email and checks that a reset may
// proceed. Unknown emails fail with RESET_INVALID, unverified users with
// OTP_NOT_VERIFIED.
func (e *OTPEngine) Verified(ctx context.Context, email string) (*User, error) {
	normalized := NormalizeEmail(email)
	user, err := e.users.FindByEmail(ctx, normalized)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return nil, oops.Code("RESET_INVALID").Wrapf(ErrInvalidInput, "invalid reset request")
		}
		return nil, oops.Code("RESET_FAILED").
			With("operation", "FindByEmail").
			Wrap(err)
	}
	if state := user.OTPState(e.now()); state != OTPVerified {
		return nil, oops.Code("OTP_NOT_VERIFIED").
			With("user_id", user.ID.String()).
			With("otp_state", state.String()).
			Wrapf(ErrForbidden, "otp not verified")
	}
	return user, nil
}

// Consume stores newHash and clears the OTP fields in a single update.
func (e *OTPEngine) Consume(ctx context.Context, user *User, newHash string) error {
	if err := user.ConsumeOTP(newHash, e.now()); err != nil {
		return err
	}
	if err := e.users.Update(ctx, user); err != nil {
		return oops.Code("RESET_FAILED").
			With("operation", "Update").
			With("user_id", user.ID.String()).
			Wrap(err)
	}
	return nil
}

func errInvalidOTP() error {
	return oops.Code("OTP_INVALID").Wrapf(ErrInvalidInput, "invalid email or otp")
}
