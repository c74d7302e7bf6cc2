// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

// Package accounttest provides in-memory fakes for exercising account flows.
package accounttest

import (
	"context"
	"sync"

	"github.com/oklog/ulid/v2"

	"github.com/holomush/accounts/internal/account"
)

// UserStore is an in-memory account.UserRepository. Records are copied on
// the way in and out so callers cannot mutate stored state.
type UserStore struct {
	mu    sync.Mutex
	users map[ulid.ULID]account.User
}

var _ account.UserRepository = (*UserStore)(nil)

// NewUserStore creates an empty UserStore.
func NewUserStore() *UserStore {
	return &UserStore{users: make(map[ulid.ULID]account.User)}
}

// FindByEmail implements account.UserRepository.
func (s *UserStore) FindByEmail(_ context.Context, email string) (*account.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, u := range s.users {
		if u.Email == email {
			return clone(u), nil
		}
	}
	return nil, account.ErrNotFound
}

// FindByID implements account.UserRepository.
func (s *UserStore) FindByID(_ context.Context, id ulid.ULID) (*account.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	u, ok := s.users[id]
	if !ok {
		return nil, account.ErrNotFound
	}
	return clone(u), nil
}

// Create implements account.UserRepository.
func (s *UserStore) Create(_ context.Context, user *account.User) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, u := range s.users {
		if u.Email == user.Email {
			return account.ErrConflict
		}
	}
	s.users[user.ID] = *clone(*user)
	return nil
}

// Update implements account.UserRepository.
func (s *UserStore) Update(_ context.Context, user *account.User) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.users[user.ID]; !ok {
		return account.ErrNotFound
	}
	s.users[user.ID] = *clone(*user)
	return nil
}

// Delete implements account.UserRepository.
func (s *UserStore) Delete(_ context.Context, id ulid.ULID) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.users[id]; !ok {
		return 0, nil
	}
	delete(s.users, id)
	return 1, nil
}

// Len returns the number of stored users.
func (s *UserStore) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.users)
}

func clone(u account.User) *account.User {
	if u.OTP != nil {
		otp := *u.OTP
		u.OTP = &otp
	}
	if u.OTPExpiresAt != nil {
		exp := *u.OTPExpiresAt
		u.OTPExpiresAt = &exp
	}
	return &u
}
