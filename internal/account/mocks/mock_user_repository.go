// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

// Package mocks provides testify mocks for the account package interfaces.
package mocks

import (
	"context"

	"github.com/oklog/ulid/v2"
	"github.com/stretchr/testify/mock"

	"github.com/holomush/accounts/internal/account"
)

// MockUserRepository is a mock implementation of account.UserRepository.
type MockUserRepository struct {
	mock.Mock
}

var _ account.UserRepository = (*MockUserRepository)(nil)

// NewMockUserRepository creates a MockUserRepository that asserts its
// expectations when the test finishes.
func NewMockUserRepository(t interface {
	mock.TestingT
	Cleanup(func())
}) *MockUserRepository {
	m := &MockUserRepository{}
	m.Mock.Test(t)
	t.Cleanup(func() { m.AssertExpectations(t) })
	return m
}

// FindByEmail provides a mock function.
func (m *MockUserRepository) FindByEmail(ctx context.Context, email string) (*account.User, error) {
	args := m.Called(ctx, email)
	user, _ := args.Get(0).(*account.User)
	return user, args.Error(1)
}

// FindByID provides a mock function.
func (m *MockUserRepository) FindByID(ctx context.Context, id ulid.ULID) (*account.User, error) {
	args := m.Called(ctx, id)
	user, _ := args.Get(0).(*account.User)
	return user, args.Error(1)
}

// Create provides a mock function.
func (m *MockUserRepository) Create(ctx context.Context, user *account.User) error {
	return m.Called(ctx, user).Error(0)
}

// Update provides a mock function.
func (m *MockUserRepository) Update(ctx context.Context, user *account.User) error {
	return m.Called(ctx, user).Error(0)
}

// Delete provides a mock function.
func (m *MockUserRepository) Delete(ctx context.Context, id ulid.ULID) (int64, error) {
	args := m.Called(ctx, id)
	n, _ := args.Get(0).(int64)
	return n, args.Error(1)
}
