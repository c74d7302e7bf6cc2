// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

package account

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"time"

	"github.com/samber/oops"
)

// dummyPasswordHash is verified against when the email is unknown so that a
// failed login costs the same bcrypt work either way. It matches no password
// a client can know.
//
//nolint:gosec // G101: not a credential
const dummyPasswordHash = "$2a$12$R9h/cIPz0gi.URNNX3kh2OPST9/PgBkqquzi.Ss7KIUgO2t0jWMUW"

// TokenService issues and verifies bearer tokens.
type TokenService interface {
	Issue(id Identity) (string, error)
	Verify(token string) (Identity, error)
}

// RegisterInput holds the fields supplied at registration.
type RegisterInput struct {
	Username    string
	Email       string
	Password    string
	PhoneNumber string
}

// ProfileUpdate holds optional profile changes. Nil fields are left alone.
type ProfileUpdate struct {
	Username    *string
	PhoneNumber *string
	Password    *string
}

// LoginResult is returned by a successful Login.
type LoginResult struct {
	Token   string
	Profile Profile
}

// Service provides the account operations.
type Service struct {
	users    UserRepository
	hasher   PasswordHasher
	tokens   TokenService
	notifier Notifier
	otp      *OTPEngine
	logger   *slog.Logger
	now      func() time.Time
	otpGen   CodeGenerator
}

// ServiceOption configures a Service.
type ServiceOption func(*Service)

// WithLogger sets the logger used for best-effort failures and audit lines.
func WithLogger(logger *slog.Logger) ServiceOption {
	return func(s *Service) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// WithClock sets the time source.
func WithClock(now func() time.Time) ServiceOption {
	return func(s *Service) {
		if now != nil {
			s.now = now
		}
	}
}

// WithOTPGenerator replaces the random OTP generator.
func WithOTPGenerator(gen CodeGenerator) ServiceOption {
	return func(s *Service) {
		s.otpGen = gen
	}
}

// NewService creates a Service.
func NewService(
	users UserRepository,
	hasher PasswordHasher,
	tokens TokenService,
	notifier Notifier,
	opts ...ServiceOption,
) (*Service, error) {
	if users == nil {
		return nil, oops.Errorf("user repository is required")
	}
	if hasher == nil {
		return nil, oops.Errorf("password hasher is required")
	}
	if tokens == nil {
		return nil, oops.Errorf("token service is required")
	}
	if notifier == nil {
		return nil, oops.Errorf("notifier is required")
	}

	s := &Service{
		users:    users,
		hasher:   hasher,
		tokens:   tokens,
		notifier: notifier,
		logger:   slog.Default(),
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}

	engine, err := NewOTPEngine(users, WithOTPClock(s.now), WithCodeGenerator(s.otpGen))
	if err != nil {
		return nil, err
	}
	s.otp = engine
	return s, nil
}

// Register creates an account. A second registration with the same email
// fails with ACCOUNT_EMAIL_TAKEN.
func (s *Service) Register(ctx context.Context, in RegisterInput) (*User, error) {
	if err := ValidateUsername(in.Username); err != nil {
		return nil, err
	}
	email, err := ValidateEmail(in.Email)
	if err != nil {
		return nil, err
	}
	if err := ValidatePhoneNumber(in.PhoneNumber); err != nil {
		return nil, err
	}
	if in.Password == "" {
		return nil, ErrEmptyPassword
	}

	_, err = s.users.FindByEmail(ctx, email)
	switch {
	case err == nil:
		return nil, errEmailTaken(email)
	case !errors.Is(err, ErrNotFound):
		return nil, oops.Code("ACCOUNT_REGISTER_FAILED").
			With("operation", "FindByEmail").
			Wrap(err)
	}

	hash, err := s.hasher.Hash(in.Password)
	if err != nil {
		return nil, oops.Code("ACCOUNT_REGISTER_FAILED").
			With("operation", "Hash").
			Wrap(err)
	}

	user, err := NewUser(in.Username, email, hash, in.PhoneNumber, s.now())
	if err != nil {
		return nil, err
	}

	if err := s.users.Create(ctx, user); err != nil {
		if errors.Is(err, ErrConflict) {
			return nil, errEmailTaken(email)
		}
		return nil, oops.Code("ACCOUNT_REGISTER_FAILED").
			With("operation", "Create").
			Wrap(err)
	}

	s.logger.InfoContext(ctx, "user registered", "user_id", user.ID.String())
	s.notify(ctx, Event{Kind: EventSignup, To: user.Email, Username: user.Username})
	return user, nil
}

// Login checks the credentials and issues a bearer token. Unknown emails and
// wrong passwords fail with the same ACCOUNT_INVALID_CREDENTIALS error.
func (s *Service) Login(ctx context.Context, email, password string) (*LoginResult, error) {
	user, lookupErr := s.users.FindByEmail(ctx, NormalizeEmail(email))

	var targetHash string
	var userExists bool
	if lookupErr != nil {
		if !errors.Is(lookupErr, ErrNotFound) {
			return nil, oops.Code("ACCOUNT_LOGIN_FAILED").
				With("operation", "FindByEmail").
				Wrap(lookupErr)
		}
		targetHash = dummyPasswordHash
	} else {
		targetHash = user.PasswordHash
		userExists = true
	}

	valid, verifyErr := s.hasher.Verify(password, targetHash)
	if verifyErr != nil && userExists {
		return nil, oops.Code("ACCOUNT_LOGIN_FAILED").
			With("operation", "Verify").
			With("user_id", user.ID.String()).
			Wrap(verifyErr)
	}
	if !userExists || !valid {
		return nil, errInvalidCredentials()
	}

	token, err := s.tokens.Issue(Identity{UserID: user.ID, Email: user.Email})
	if err != nil {
		return nil, oops.Code("ACCOUNT_LOGIN_FAILED").
			With("operation", "Issue").
			With("user_id", user.ID.String()).
			Wrap(err)
	}

	s.logger.InfoContext(ctx, "user logged in", "user_id", user.ID.String())
	s.notify(ctx, Event{Kind: EventLogin, To: user.Email, Username: user.Username})
	return &LoginResult{Token: token, Profile: user.Profile()}, nil
}

// Authenticate verifies a bearer token and returns its identity.
func (s *Service) Authenticate(token string) (Identity, error) {
	//nolint:wrapcheck // already coded TOKEN_INVALID
	return s.tokens.Verify(token)
}

// EditProfile applies the present fields of upd that differ from the stored
// values. Blank fields count as absent. A password equal to the current one
// is not rehashed. It reports whether anything was persisted.
func (s *Service) EditProfile(ctx context.Context, id Identity, upd ProfileUpdate) (bool, error) {
	user, err := s.users.FindByEmail(ctx, NormalizeEmail(id.Email))
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return false, errUserNotFound(id)
		}
		return false, oops.Code("ACCOUNT_EDIT_FAILED").
			With("operation", "FindByEmail").
			Wrap(err)
	}

	changed := false

	if present(upd.Username) && strings.TrimSpace(*upd.Username) != user.Username {
		if err := ValidateUsername(*upd.Username); err != nil {
			return false, err
		}
		user.Username = strings.TrimSpace(*upd.Username)
		changed = true
	}

	if present(upd.PhoneNumber) && strings.TrimSpace(*upd.PhoneNumber) != user.PhoneNumber {
		if err := ValidatePhoneNumber(*upd.PhoneNumber); err != nil {
			return false, err
		}
		user.PhoneNumber = strings.TrimSpace(*upd.PhoneNumber)
		changed = true
	}

	if upd.Password != nil && *upd.Password != "" {
		same, err := s.hasher.Verify(*upd.Password, user.PasswordHash)
		if err != nil {
			return false, oops.Code("ACCOUNT_EDIT_FAILED").
				With("operation", "Verify").
				With("user_id", user.ID.String()).
				Wrap(err)
		}
		if !same {
			hash, err := s.hasher.Hash(*upd.Password)
			if err != nil {
				return false, oops.Code("ACCOUNT_EDIT_FAILED").
					With("operation", "Hash").
					With("user_id", user.ID.String()).
					Wrap(err)
			}
			user.PasswordHash = hash
			changed = true
		}
	}

	if !changed {
		return false, nil
	}

	user.UpdatedAt = s.now()
	if err := s.users.Update(ctx, user); err != nil {
		if errors.Is(err, ErrNotFound) {
			return false, errUserNotFound(id)
		}
		return false, oops.Code("ACCOUNT_EDIT_FAILED").
			With("operation", "Update").
			With("user_id", user.ID.String()).
			Wrap(err)
	}

	s.logger.InfoContext(ctx, "profile updated", "user_id", user.ID.String())
	return true, nil
}

func present(v *string) bool {
	return v != nil && strings.TrimSpace(*v) != ""
}

// DeleteAccount removes the account identified by the token.
func (s *Service) DeleteAccount(ctx context.Context, id Identity) error {
	user, err := s.users.FindByID(ctx, id.UserID)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return errUserNotFound(id)
		}
		return oops.Code("ACCOUNT_DELETE_FAILED").
			With("operation", "FindByID").
			Wrap(err)
	}

	n, err := s.users.Delete(ctx, user.ID)
	if err != nil {
		return oops.Code("ACCOUNT_DELETE_FAILED").
			With("operation", "Delete").
			With("user_id", user.ID.String()).
			Wrap(err)
	}
	if n == 0 {
		return errUserNotFound(id)
	}

	s.logger.InfoContext(ctx, "user deleted", "user_id", user.ID.String())
	s.notify(ctx, Event{Kind: EventAccountDeleted, To: user.Email, Username: user.Username})
	return nil
}

// ForgotPassword starts a password reset. It succeeds whether or not the
// email belongs to an account, blank included; only real accounts receive a
// code.
func (s *Service) ForgotPassword(ctx context.Context, email string) error {
	if strings.TrimSpace(email) == "" {
		s.logger.DebugContext(ctx, "password reset requested without an email")
		return nil
	}

	user, code, err := s.otp.Request(ctx, email)
	if err != nil {
		return err
	}
	if user == nil {
		s.logger.DebugContext(ctx, "password reset requested for unknown email")
		return nil
	}

	s.logger.InfoContext(ctx, "otp issued", "user_id", user.ID.String())
	s.notify(ctx, Event{
		Kind:      EventOTPIssued,
		To:        user.Email,
		Username:  user.Username,
		OTP:       code,
		ExpiresIn: "10 minutes",
	})
	return nil
}

// VerifyOTP checks a reset code. Unknown emails and bad codes fail alike.
func (s *Service) VerifyOTP(ctx context.Context, email, code string) error {
	user, err := s.otp.Verify(ctx, email, code)
	if err != nil {
		return err
	}
	s.logger.InfoContext(ctx, "otp verified", "user_id", user.ID.String())
	return nil
}

// ResetPassword sets a new password for a user whose OTP was verified.
func (s *Service) ResetPassword(ctx context.Context, email, newPassword string) error {
	user, err := s.otp.Verified(ctx, email)
	if err != nil {
		return err
	}
	if newPassword == "" {
		return ErrEmptyPassword
	}

	hash, err := s.hasher.Hash(newPassword)
	if err != nil {
		return oops.Code("RESET_FAILED").
			With("operation", "Hash").
			With("user_id", user.ID.String()).
			Wrap(err)
	}

	if err := s.otp.Consume(ctx, user, hash); err != nil {
		return err
	}

	s.logger.InfoContext(ctx, "password reset", "user_id", user.ID.String())
	s.notify(ctx, Event{Kind: EventPasswordReset, To: user.Email, Username: user.Username})
	return nil
}

// Logout acknowledges a logout. Tokens are not revocable; the client discards its copy.
func (s *Service) Logout(ctx context.Context) {
	s.logger.DebugContext(ctx, "logout acknowledged")
}

// notify hands an event to the notifier and logs, never returns, a failure.
func (s *Service) notify(ctx context.Context, event Event) {
	if err := s.notifier.Notify(ctx, event); err != nil {
		s.logger.WarnContext(ctx, "best-effort notification failed",
			"operation", "notify",
			"kind", string(event.Kind),
			"error", err,
		)
	}
}

func errEmailTaken(email string) error {
	return oops.Code("ACCOUNT_EMAIL_TAKEN").With("email", email).Wrapf(ErrConflict, "user with this email already exists")
}

func errInvalidCredentials() error {
	return oops.Code("ACCOUNT_INVALID_CREDENTIALS").Wrapf(ErrInvalidCredentials, "invalid email or password")
}

func errUserNotFound(id Identity) error {
	return oops.Code("ACCOUNT_NOT_FOUND").With("user_id", id.UserID.String()).Wrapf(ErrNotFound, "user not found")
}
